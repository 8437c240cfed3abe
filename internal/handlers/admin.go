package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

// AdminHandler exposes the settlement and control-role operations. It does
// no authorization of its own; the engine decides per call whether the
// authenticated account holds the required role.
type AdminHandler struct {
	engine *services.EscrowEngine
}

func NewAdminHandler(engine *services.EscrowEngine) *AdminHandler {
	return &AdminHandler{
		engine: engine,
	}
}

func (h *AdminHandler) ResolveGame(c *gin.Context) {
	account := c.GetString("account_id")

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	var req models.ResolveGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := h.engine.ResolveGame(account, gameID, req.Winner); err != nil {
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

func (h *AdminHandler) ForceRefund(c *gin.Context) {
	account := c.GetString("account_id")

	gameID, ok := parseGameID(c)
	if !ok {
		return
	}

	if err := h.engine.ForceRefund(account, gameID); err != nil {
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

func (h *AdminHandler) SetRate(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.SetRateRequest
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

	if err := h.engine.SetCommissionRate(account, req.RateBps); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"rate_bps": req.RateBps,
	})
}

func (h *AdminHandler) WithdrawCommission(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.WithdrawCommissionRequest
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

	if err := h.engine.WithdrawCommission(c.Request.Context(), account, req.Amount); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"withdrawn": req.Amount,
		"remaining": h.engine.AccruedCommission(),
	})
}

func (h *AdminHandler) SetAdjudicator(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.SetAdjudicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := h.engine.SetAdjudicator(account, req.Account); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"adjudicator": req.Account,
	})
}

func (h *AdminHandler) ClearAdjudicator(c *gin.Context) {
	account := c.GetString("account_id")

	if err := h.engine.ClearAdjudicator(account); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

func (h *AdminHandler) TransferPrincipal(c *gin.Context) {
	account := c.GetString("account_id")

	var req models.TransferPrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := h.engine.TransferPrincipal(account, req.Account); err != nil {
		respondEscrowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"principal": req.Account,
	})
}
