package models

import "math"

const (
	// MaxCommissionRateBps caps the commission rate at 15%.
	MaxCommissionRateBps = 1500

	// MaxAmount bounds any single deposit, withdrawal or stake so that pot
	// and commission arithmetic always stays inside int64.
	MaxAmount = math.MaxInt64 / 20000
)

// EscrowState carries the scalar ledger-wide state: control roles, the
// commission pool and the game ID sequence. Balances and games are mirrored
// separately; together with them this is everything needed to rebuild the
// engine after a restart.
type EscrowState struct {
	Principal         string `json:"principal" redis:"principal"`
	Adjudicator       string `json:"adjudicator,omitempty" redis:"adjudicator"`
	CommissionRateBps int64  `json:"commission_rate_bps" redis:"commission_rate_bps"`
	AccruedCommission int64  `json:"accrued_commission" redis:"accrued_commission"`
	NextGameID        uint64 `json:"next_game_id" redis:"next_game_id"`
	NetInflow         int64  `json:"net_inflow" redis:"net_inflow"`
}

// EscrowStatus is the public read-only view of the ledger-wide state.
type EscrowStatus struct {
	Principal         string `json:"principal"`
	Adjudicator       string `json:"adjudicator,omitempty"`
	CommissionRateBps int64  `json:"commission_rate_bps"`
	AccruedCommission int64  `json:"accrued_commission"`
	GameCount         uint64 `json:"game_count"`
}
