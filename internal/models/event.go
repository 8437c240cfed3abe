package models

import "time"

// Event types, one per ledger state transition.
const (
	EventDeposit             = "escrow.deposit"
	EventWithdraw            = "escrow.withdraw"
	EventGameCreated         = "escrow.game_created"
	EventGameJoined          = "escrow.game_joined"
	EventGameResolved        = "escrow.game_resolved"
	EventGameCancelled       = "escrow.game_cancelled"
	EventGameVoided          = "escrow.game_voided"
	EventRateChanged         = "escrow.rate_changed"
	EventCommissionWithdrawn = "escrow.commission_withdrawn"
	EventRoleChanged         = "escrow.role_changed"
)

// Event is the structured record emitted after every completed state
// transition, pushed to connected websocket observers and published on the
// redis event channel for external indexers.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Account   string         `json:"account,omitempty"`
	GameID    uint64         `json:"game_id,omitempty"`
	Amount    int64          `json:"amount,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
