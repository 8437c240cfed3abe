package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateEventID() string {
	return fmt.Sprintf("evt_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// validAmount accepts strictly positive values that leave headroom for pot
// and commission arithmetic.
func validAmount(amount int64) error {
	if amount < 1 {
		return fmt.Errorf("amount must be positive: %w", ErrInvalidAmount)
	}
	if amount > MaxAmount {
		return fmt.Errorf("amount exceeds the maximum of %d: %w", int64(MaxAmount), ErrInvalidAmount)
	}
	return nil
}

func (r *DepositRequest) Validate() error {
	return validAmount(r.Amount)
}

func (r *WithdrawRequest) Validate() error {
	return validAmount(r.Amount)
}

func (r *CreateGameRequest) Validate() error {
	return validAmount(r.Stake)
}

func (r *WithdrawCommissionRequest) Validate() error {
	return validAmount(r.Amount)
}

func (r *SetRateRequest) Validate() error {
	if r.RateBps < 0 {
		return fmt.Errorf("rate cannot be negative: %w", ErrInvalidAmount)
	}
	if r.RateBps > MaxCommissionRateBps {
		return fmt.Errorf("rate %d exceeds %d bps: %w", r.RateBps, MaxCommissionRateBps, ErrRateTooHigh)
	}
	return nil
}
