package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestProgressView is the read-only projection the presentation layer
// renders progress and claim buttons from. It carries no write access
// to the underlying state.
type QuestProgressView struct {
	QuestID        uuid.UUID
	UserAddress    string
	State          QuestState
	Steps          []StepProgressView
	Complete       bool
	Claim          *ClaimRecord
	RemainingSlots int
}

type StepProgressView struct {
	StepID        uuid.UUID
	OrderIndex    int
	Optional      bool
	Title         string
	Status        VerificationStatus
	CooldownUntil *time.Time
}
