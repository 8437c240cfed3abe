package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

type AccountHandler struct {
	engine *services.EscrowEngine
}

func NewAccountHandler(engine *services.EscrowEngine) *AccountHandler {
	return &AccountHandler{
		engine: engine,
	}
}

func (h *AccountHandler) GetCurrentAccount(c *gin.Context) {
	accountID, exists := c.Get("account_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not authenticated"})
		return
	}
	account := accountID.(string)

	balance := h.engine.BalanceOf(account)
	locked := h.engine.LockedOf(account)

	c.JSON(http.StatusOK, gin.H{
		"account": models.Account{
			ID:            account,
			IsPrincipal:   account == h.engine.Principal(),
			IsAdjudicator: account == h.engine.Adjudicator(),
			Balance:       balance,
			Locked:        locked,
		},
	})
}
