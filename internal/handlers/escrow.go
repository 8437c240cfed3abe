package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

type EscrowHandler struct {
	engine       *services.EscrowEngine
	redisService *services.RedisService
}

func NewEscrowHandler(engine *services.EscrowEngine, redisService *services.RedisService) *EscrowHandler {
	return &EscrowHandler{
		engine:       engine,
		redisService: redisService,
	}
}

func (h *EscrowHandler) Deposit(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.DepositRequest
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

	if err := h.engine.Deposit(c.Request.Context(), account, req.Amount); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": h.engine.BalanceOf(account),
	})
}

func (h *EscrowHandler) Withdraw(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.WithdrawRequest
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

	if err := h.engine.Withdraw(c.Request.Context(), account, req.Amount); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": h.engine.BalanceOf(account),
	})
}

func (h *EscrowHandler) GetBalance(c *gin.Context) {
	account := c.GetString("account_id")

	balance := h.engine.BalanceOf(account)
	locked := h.engine.LockedOf(account)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{
			Account: account,
			Balance: balance,
			Locked:  locked,
			Total:   balance + locked,
		},
	})
}

func (h *EscrowHandler) GetTransactions(c *gin.Context) {
	account := c.GetString("account_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := h.redisService.GetAccountTransactions(account, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get transactions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (h *EscrowHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  h.engine.Status(),
	})
}

func (h *EscrowHandler) GetRecentEvents(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	events, err := h.redisService.GetRecentEvents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get events",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
		"count":   len(events),
	})
}

// respondEscrowError maps ledger errors onto HTTP statuses. Refusals from
// the single-flight guard come back as 409 so clients know to retry.
func respondEscrowError(c *gin.Context, err error) {
	status := http.StatusBadRequest

	switch {
	case errors.Is(err, models.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidGameState), errors.Is(err, models.ErrOperationInProgress):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInsufficientBalance), errors.Is(err, models.ErrInsufficientCommission):
		status = http.StatusPaymentRequired
	case errors.Is(err, models.ErrTransferFailed):
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
