package model

import (
	"time"

	"github.com/google/uuid"
)

// EscrowAccount tracks the deposited balance backing a quest's prizes.
// ReservedAmount + ReclaimedAmount <= DepositedAmount must hold after
// every operation; a reservation that would break it halts the account
// instead of capping silently.
type EscrowAccount struct {
	QuestID         uuid.UUID
	DepositedAmount int64
	ReservedAmount  int64
	ReclaimedAmount int64
	Halted          bool
	ReclaimedAt     *time.Time
}

func (a *EscrowAccount) Residual() int64 {
	return a.DepositedAmount - a.ReservedAmount
}

// PrizeSlot is one position of the prize schedule. Reservation is
// first-come on the lowest unreserved index.
type PrizeSlot struct {
	QuestID    uuid.UUID
	SlotIndex  int
	Amount     int64
	ReservedBy *string
	ReservedAt *time.Time
	ReleasedAt *time.Time
	PaymentRef *string
}
