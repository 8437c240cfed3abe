package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wager-escrow-backend/internal/config"
	"wager-escrow-backend/internal/services"
)

func TestJWTRoundtrip(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := jwtService.GenerateToken("acct_alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "acct_alice", claims.AccountID)
}

func TestJWTRejectsTampering(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := jwtService.GenerateToken("acct_alice")
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token + "x")
	require.Error(t, err)

	_, err = jwtService.ValidateToken("not-a-token")
	require.Error(t, err)

	other := services.NewJWTService(&config.Config{JWTSecret: "different-secret"})
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestJWTRejectsEmptyAccount(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := jwtService.GenerateToken("")
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}
