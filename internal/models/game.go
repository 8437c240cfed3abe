package models

import "time"

type GameStatus string

const (
	GameStatusOpen      GameStatus = "open"
	GameStatusActive    GameStatus = "active"
	GameStatusResolved  GameStatus = "resolved"
	GameStatusCancelled GameStatus = "cancelled"
	GameStatusVoided    GameStatus = "voided"
)

// Terminal reports whether the status is final. Terminal games are never
// modified again.
func (s GameStatus) Terminal() bool {
	switch s {
	case GameStatusResolved, GameStatusCancelled, GameStatusVoided:
		return true
	}
	return false
}

// ValidGameStatus reports whether s names a known lifecycle state. Used to
// validate status filters coming in from the API.
func ValidGameStatus(s GameStatus) bool {
	switch s {
	case GameStatusOpen, GameStatusActive, GameStatusResolved, GameStatusCancelled, GameStatusVoided:
		return true
	}
	return false
}

// Game is one head-to-head wager. Both players stake the same amount; the
// stakes are debited from internal balances when the game is created and
// joined, and released again on resolution, cancellation or void.
type Game struct {
	ID       uint64     `json:"id" redis:"id"`
	Creator  string     `json:"creator" redis:"creator"`
	Opponent string     `json:"opponent,omitempty" redis:"opponent"`
	Stake    int64      `json:"stake" redis:"stake"`
	Status   GameStatus `json:"status" redis:"status"`

	// Set on resolution only.
	Winner     string `json:"winner,omitempty" redis:"winner"`
	Payout     int64  `json:"payout,omitempty" redis:"payout"`
	Commission int64  `json:"commission,omitempty" redis:"commission"`

	CreatedAt time.Time `json:"created_at" redis:"created_at"`
	UpdatedAt time.Time `json:"updated_at" redis:"updated_at"`
	EndedAt   time.Time `json:"ended_at,omitempty" redis:"ended_at"`
}

func (g *Game) Terminal() bool {
	return g.Status.Terminal()
}

// Pot is the total value currently escrowed for the game: both stakes once
// an opponent has joined, the creator's stake alone while open.
func (g *Game) Pot() int64 {
	if g.Opponent == "" {
		return g.Stake
	}
	return 2 * g.Stake
}

// HasPlayer reports whether account holds a seat in the game.
func (g *Game) HasPlayer(account string) bool {
	return account == g.Creator || (g.Opponent != "" && account == g.Opponent)
}
