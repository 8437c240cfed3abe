package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"wager-escrow-backend/internal/config"
	"wager-escrow-backend/internal/handlers"
	"wager-escrow-backend/internal/middleware"
	"wager-escrow-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)
	custodian := services.NewCustodianClient(cfg)

	engine, err := services.NewEscrowEngine(custodian, redisService, cfg.PrincipalAccount, cfg.CommissionRateBps)
	if err != nil {
		log.Fatalf("Failed to build escrow engine: %v", err)
	}
	if err := engine.Restore(); err != nil {
		log.Fatalf("Failed to restore escrow state: %v", err)
	}
	if cfg.AdjudicatorAccount != "" && engine.Adjudicator() == "" {
		if err := engine.SetAdjudicator(engine.Principal(), cfg.AdjudicatorAccount); err != nil {
			log.Printf("Failed to seed adjudicator: %v", err)
		}
	}

	wsHandler := handlers.NewWebSocketHandler(engine)
	engine.SetBroadcaster(wsHandler)

	go func() {
		ticker := time.NewTicker(cfg.AuditInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := engine.AuditConservation(); err != nil {
				log.Printf("LEDGER AUDIT FAILED: %v", err)
			}
		}
	}()

	authHandler := handlers.NewAuthHandler(jwtService, cfg.APIAuthKey)
	accountHandler := handlers.NewAccountHandler(engine)
	escrowHandler := handlers.NewEscrowHandler(engine, redisService)
	gameHandler := handlers.NewGameHandler(engine)
	adminHandler := handlers.NewAdminHandler(engine)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/token", authHandler.IssueToken)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisService))
	{
		protected.GET("/me", accountHandler.GetCurrentAccount)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		escrow := protected.Group("/escrow")
		{
			escrow.POST("/deposit", escrowHandler.Deposit)
			escrow.POST("/withdraw", escrowHandler.Withdraw)
			escrow.GET("/balance", escrowHandler.GetBalance)
			escrow.GET("/transactions", escrowHandler.GetTransactions)
			escrow.GET("/status", escrowHandler.GetStatus)
			escrow.GET("/events", escrowHandler.GetRecentEvents)
		}

		games := protected.Group("/games")
		{
			games.POST("", gameHandler.CreateGame)
			games.GET("", gameHandler.ListGames)
			games.GET("/:id", gameHandler.GetGame)
			games.POST("/:id/join", gameHandler.JoinGame)
			games.POST("/:id/cancel", gameHandler.CancelGame)
		}

		admin := protected.Group("/admin")
		{
			admin.POST("/games/:id/resolve", adminHandler.ResolveGame)
			admin.POST("/games/:id/refund", adminHandler.ForceRefund)
			admin.POST("/rate", adminHandler.SetRate)
			admin.POST("/commission/withdraw", adminHandler.WithdrawCommission)
			admin.POST("/adjudicator", adminHandler.SetAdjudicator)
			admin.DELETE("/adjudicator", adminHandler.ClearAdjudicator)
			admin.POST("/principal", adminHandler.TransferPrincipal)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
