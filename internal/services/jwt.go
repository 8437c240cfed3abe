package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wager-escrow-backend/internal/config"
)

type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// AccountClaims identify a custodian account. Tokens never carry role
// information; the engine checks principal and adjudicator at call time.
type AccountClaims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret: []byte(cfg.JWTSecret),
		ttl:    24 * time.Hour,
	}
}

func (s *JWTService) GenerateToken(accountID string) (string, error) {
	now := time.Now()
	claims := &AccountClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) ValidateToken(tokenString string) (*AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("token has no account")
	}

	return claims, nil
}
