package services

import "wager-escrow-backend/internal/models"

// Broadcaster pushes ledger events to connected observers. The websocket
// hub implements it; the engine treats a nil Broadcaster as a no-op sink.
// Implementations must not block: the engine calls BroadcastEvent while
// holding its state lock.
type Broadcaster interface {
	BroadcastEvent(event *models.Event)
}
