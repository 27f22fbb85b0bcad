package model

import (
	"time"

	"github.com/google/uuid"
)

// PointsOnlySlot marks a claim that credited points without a prize
// slot (FCFS slots exhausted under the points-when-exhausted policy).
const PointsOnlySlot = -1

// ClaimRecord is the single irreversible grant per (user, quest).
// Its (UserAddress, QuestID) key doubles as the mutual-exclusion point
// for concurrent claims: creation is create-if-absent.
type ClaimRecord struct {
	UserAddress  string
	QuestID      uuid.UUID
	SlotIndex    int
	PrizeAmount  int64
	PointsAmount int
	GrantedAt    time.Time
}

func (c *ClaimRecord) PointsOnly() bool {
	return c.SlotIndex == PointsOnlySlot
}

type ClaimStatus string

const (
	// ClaimGranted means a ClaimRecord exists and a prize slot is
	// reserved for the caller.
	ClaimGranted ClaimStatus = "GRANTED"
	// ClaimEligible means a raffle entry was registered; the draw
	// happens after expiry.
	ClaimEligible ClaimStatus = "ELIGIBLE"
	// ClaimPointsOnly means points were credited but no prize slot
	// was available.
	ClaimPointsOnly ClaimStatus = "POINTS_ONLY"
)

type ClaimResult struct {
	Status ClaimStatus
	Record *ClaimRecord
}
