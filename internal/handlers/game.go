package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

type GameHandler struct {
	engine *services.EscrowEngine
}

func NewGameHandler(engine *services.EscrowEngine) *GameHandler {
	return &GameHandler{
		engine: engine,
	}
}

func (h *GameHandler) CreateGame(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := req.Validate(); err != nil {
		respondEscrowError(c, err)
		return
	}

	gameID, err := h.engine.CreateGame(account, req.Stake)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	game, err := h.engine.GameByID(gameID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    game,
	})
}

func (h *GameHandler) ListGames(c *gin.Context) {
	status := models.GameStatus(c.Query("status"))
	if status != "" && !models.ValidGameStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	account := c.Query("account")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	games := h.engine.ListGames(status, account, limit)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   games,
		"count":   len(games),
	})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.engine.GameByID(gameID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    game,
	})
}

func (h *GameHandler) JoinGame(c *gin.Context) {
	account := c.GetString("account_id")

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	if err := h.engine.JoinGame(account, gameID); err != nil {
		respondEscrowError(c, err)
		return
	}

	game, err := h.engine.GameByID(gameID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    game,
	})
}

func (h *GameHandler) CancelGame(c *gin.Context) {
	account := c.GetString("account_id")

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	if err := h.engine.CancelGame(account, gameID); err != nil {
		respondEscrowError(c, err)
		return
	}

	game, err := h.engine.GameByID(gameID)
	if err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    game,
	})
}

func parseGameID(c *gin.Context) (uint64, bool) {
	gameID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || gameID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return 0, false
	}
	return gameID, true
}
