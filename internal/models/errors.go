package models

import "errors"

// Ledger error kinds. The escrow engine returns these verbatim (optionally
// wrapped with context) so callers can branch with errors.Is; handlers map
// them onto HTTP status codes.
var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidAccount         = errors.New("invalid account")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientCommission = errors.New("insufficient accrued commission")
	ErrGameNotFound           = errors.New("game not found")
	ErrInvalidGameState       = errors.New("game is not in a valid state for this action")
	ErrSelfJoin               = errors.New("cannot join your own game")
	ErrInvalidWinner          = errors.New("winner is not a participant of this game")
	ErrUnauthorized           = errors.New("caller is not authorized")
	ErrRateTooHigh            = errors.New("commission rate exceeds the maximum")
	ErrTransferFailed         = errors.New("custodian transfer failed")

	// ErrOperationInProgress is returned when a state-mutating call arrives
	// while another one is still in flight. The engine never queues or
	// retries; callers retry.
	ErrOperationInProgress = errors.New("another ledger operation is in progress")
)
