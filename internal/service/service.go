package service

import (
	"context"
	"errors"
	"time"

	"questhub/internal/model"

	"github.com/google/uuid"
)

var (
	ErrQuestNotFound = errors.New("quest not found")
	ErrStepNotFound  = errors.New("step not found")

	ErrQuestNotActive        = errors.New("quest is not active")
	ErrQuestNotClaimable     = errors.New("quest is not claimable")
	ErrRequirementsNotMet    = errors.New("required steps are not complete")
	ErrAlreadyClaimed        = errors.New("reward already claimed")
	ErrSlotsExhausted        = errors.New("all prize slots are taken")
	ErrNotSelected           = errors.New("not among the drawn winners")
	ErrSelfClaimForbidden    = errors.New("creators cannot claim their own quest")
	ErrGracePeriodActive     = errors.New("grace period has not elapsed")
	ErrInvariantViolation    = errors.New("escrow invariant violated")
	ErrNotQuestOwner         = errors.New("caller does not own the quest")
	ErrQuestNotDraft         = errors.New("quest is not a draft")
	ErrPrizeScheduleMismatch = errors.New("prize schedule does not match deposit")
	ErrQuestStillActive      = errors.New("quest has not expired yet")
	ErrNotRaffleQuest        = errors.New("quest is not raffle mode")

	// ErrOracleUnavailable wraps oracle transport failures; distinct
	// from a negative verdict, which starts a cooldown instead.
	ErrOracleUnavailable = errors.New("verification oracle unavailable")
)

// VerificationOracle performs one verification of a step action for a
// user. A returned error is a transport failure, not a verdict: the
// caller must not treat it as evidence the user failed the task.
type VerificationOracle interface {
	Verify(ctx context.Context, userAddress string, step *model.Step) (bool, error)
}

// AttestationLedger records a public (subject, predicate, object) fact
// for a completed quest. Best-effort: failures are logged, never block
// a payout.
type AttestationLedger interface {
	Record(ctx context.Context, userAddress string, questID uuid.UUID) (string, error)
}

// PaymentSink is the hand-off to the external payment rail.
type PaymentSink interface {
	Pay(ctx context.Context, userAddress string, amount int64) (string, error)
}

// EventPublisher pushes domain events to the presentation layer.
type EventPublisher interface {
	Publish(eventType string, payload map[string]any)
}

type QuestRepository interface {
	CreateQuest(ctx context.Context, quest *model.Quest) error
	GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error)
	GetStep(ctx context.Context, stepID uuid.UUID) (*model.Step, error)
	ListQuests(ctx context.Context) ([]*model.Quest, error)
	ActivateQuest(ctx context.Context, quest *model.Quest, activatedAt time.Time) error
	CloseQuest(ctx context.Context, questID uuid.UUID) error
	ListQuestsDueForDraw(ctx context.Context, now time.Time) ([]*model.Quest, error)
}

type VerificationRepository interface {
	GetStepVerification(ctx context.Context, userAddress string, stepID uuid.UUID) (*model.StepVerification, error)
	UpsertStepVerification(ctx context.Context, v *model.StepVerification) error
	GetQuestVerifications(ctx context.Context, userAddress string, questID uuid.UUID) (map[uuid.UUID]*model.StepVerification, error)
}

type ClaimRepository interface {
	GetClaim(ctx context.Context, userAddress string, questID uuid.UUID) (*model.ClaimRecord, error)
	ClaimNextSlot(ctx context.Context, userAddress string, questID uuid.UUID, points int) (*model.ClaimRecord, error)
	ClaimRaffleSlot(ctx context.Context, userAddress string, questID uuid.UUID, slotIndex, points int) (*model.ClaimRecord, error)
	CreatePointsOnlyClaim(ctx context.Context, userAddress string, questID uuid.UUID, points int) (*model.ClaimRecord, error)
}

type EscrowRepository interface {
	GetEscrowAccount(ctx context.Context, questID uuid.UUID) (*model.EscrowAccount, error)
	CountRemainingSlots(ctx context.Context, questID uuid.UUID) (int, error)
	ListUnreleasedSlots(ctx context.Context, before time.Time) ([]model.PrizeSlot, error)
	MarkSlotReleased(ctx context.Context, questID uuid.UUID, slotIndex int, paymentRef string) error
	ReclaimResidual(ctx context.Context, questID uuid.UUID) (int64, error)
}

type RaffleRepository interface {
	AddRaffleEntry(ctx context.Context, questID uuid.UUID, userAddress string) error
	GetRaffleEntries(ctx context.Context, questID uuid.UUID) ([]string, error)
	GetRaffleDraw(ctx context.Context, questID uuid.UUID) (*model.RaffleDraw, error)
	RecordRaffleDraw(ctx context.Context, draw *model.RaffleDraw) error
}

// ProgressChecker is the slice of the verification service the claim
// coordinator needs.
type ProgressChecker interface {
	Complete(ctx context.Context, userAddress string, quest *model.Quest) (bool, error)
}
