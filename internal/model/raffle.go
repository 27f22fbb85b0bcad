package model

import (
	"time"

	"github.com/google/uuid"
)

// RaffleEntry registers a user as eligible for the post-expiry draw.
type RaffleEntry struct {
	QuestID     uuid.UUID
	UserAddress string
	EnteredAt   time.Time
}

// RaffleDraw is the once-only outcome of the winner selection. The
// same winners are returned on every subsequent call.
type RaffleDraw struct {
	QuestID  uuid.UUID
	DrawnAt  time.Time
	PoolSize int
	Winners  []RaffleWinner
}

// RaffleWinner maps a drawn user to their position, which is also the
// prize slot they may claim.
type RaffleWinner struct {
	QuestID     uuid.UUID
	UserAddress string
	Position    int
}
