package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

type AuthHandler struct {
	jwtService *services.JWTService
	apiKey     string
}

func NewAuthHandler(jwtService *services.JWTService, apiKey string) *AuthHandler {
	return &AuthHandler{
		jwtService: jwtService,
		apiKey:     apiKey,
	}
}

// IssueToken exchanges the shared API key for a bearer token scoped to a
// single custodian account.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}

	token, err := h.jwtService.GenerateToken(req.Account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"account": req.Account,
	})
}
