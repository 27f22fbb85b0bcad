package model

import (
	"time"

	"github.com/google/uuid"
)

type DistributionMode string

const (
	DistributionFCFS   DistributionMode = "FCFS"
	DistributionRaffle DistributionMode = "RAFFLE"
)

type QuestState string

const (
	QuestStateDraft   QuestState = "DRAFT"
	QuestStateActive  QuestState = "ACTIVE"
	QuestStateExpired QuestState = "EXPIRED"
	QuestStateClosed  QuestState = "CLOSED"
)

type Quest struct {
	QuestID         uuid.UUID
	CreatorAddress  string
	Title           string
	Description     string
	Mode            DistributionMode
	WinnerSlots     int
	PrizeSchedule   []int64
	DepositedAmount int64
	RewardPoints    int
	ActivationTime  *time.Time
	ExpiryTime      time.Time
	GracePeriod     time.Duration
	// State holds the stored lifecycle state. EXPIRED is never stored;
	// it is derived from ExpiryTime on read so that no timer has to fire
	// for the transition to take effect.
	State            QuestState
	RaffleCommitment []byte
	Steps            []Step
	CreatedAt        time.Time
}

type Step struct {
	StepID     uuid.UUID
	QuestID    uuid.UUID
	OrderIndex int
	Optional   bool
	Title      string
	Action     string
}

// EffectiveState resolves the quest's lifecycle state at the given
// instant. A stored ACTIVE quest whose expiry has passed reads as
// EXPIRED without any stored transition.
func (q *Quest) EffectiveState(now time.Time) QuestState {
	if q.State == QuestStateActive && !now.Before(q.ExpiryTime) {
		return QuestStateExpired
	}
	return q.State
}

// ReclaimableAt is the instant the creator may take back unreserved
// escrow funds.
func (q *Quest) ReclaimableAt() time.Time {
	return q.ExpiryTime.Add(q.GracePeriod)
}

// RequiredSteps returns the non-optional steps, which are the ones
// that gate completion.
func (q *Quest) RequiredSteps() []Step {
	required := make([]Step, 0, len(q.Steps))
	for _, s := range q.Steps {
		if !s.Optional {
			required = append(required, s)
		}
	}
	return required
}
