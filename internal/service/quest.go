package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"questhub/internal/model"
	"questhub/internal/repository"

	"github.com/google/uuid"
)

// QuestService owns the quest lifecycle: draft creation, publishing
// (which freezes the prize schedule and seeds escrow), and the
// read-only progress projection.
type QuestService struct {
	quests       QuestRepository
	escrow       EscrowRepository
	claims       ClaimRepository
	verification *VerificationService

	now func() time.Time
}

func NewQuestService(quests QuestRepository, escrow EscrowRepository, claims ClaimRepository, verification *VerificationService) *QuestService {
	return &QuestService{
		quests:       quests,
		escrow:       escrow,
		claims:       claims,
		verification: verification,
		now:          time.Now,
	}
}

func (s *QuestService) CreateQuest(ctx context.Context, quest *model.Quest) (uuid.UUID, error) {
	if quest.WinnerSlots < 1 {
		return uuid.Nil, fmt.Errorf("winner slots must be at least 1")
	}
	if len(quest.PrizeSchedule) != quest.WinnerSlots {
		return uuid.Nil, fmt.Errorf("prize schedule must have %d entries", quest.WinnerSlots)
	}
	for _, amount := range quest.PrizeSchedule {
		if amount <= 0 {
			return uuid.Nil, fmt.Errorf("prize amounts must be positive")
		}
	}
	if quest.Mode != model.DistributionFCFS && quest.Mode != model.DistributionRaffle {
		return uuid.Nil, fmt.Errorf("unknown distribution mode %q", quest.Mode)
	}
	if !quest.ExpiryTime.After(s.now().UTC()) {
		return uuid.Nil, fmt.Errorf("expiry time must be in the future")
	}

	quest.QuestID = uuid.New()
	quest.State = model.QuestStateDraft
	for i := range quest.Steps {
		quest.Steps[i].StepID = uuid.New()
		quest.Steps[i].QuestID = quest.QuestID
		quest.Steps[i].OrderIndex = i
	}

	if err := s.quests.CreateQuest(ctx, quest); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create quest: %w", err)
	}
	return quest.QuestID, nil
}

// Publish activates a draft. The schedule/deposit invariant is checked
// here, before activation, and the schedule is immutable afterwards.
func (s *QuestService) Publish(ctx context.Context, questID uuid.UUID, callerAddress string) error {
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuestNotFound
		}
		return fmt.Errorf("failed to get quest: %w", err)
	}

	if quest.CreatorAddress != callerAddress {
		return ErrNotQuestOwner
	}
	if quest.State != model.QuestStateDraft {
		return ErrQuestNotDraft
	}

	var sum int64
	for _, amount := range quest.PrizeSchedule {
		sum += amount
	}
	if sum != quest.DepositedAmount {
		return ErrPrizeScheduleMismatch
	}

	if quest.Mode == model.DistributionRaffle {
		commitment := make([]byte, 32)
		if _, err := rand.Read(commitment); err != nil {
			return fmt.Errorf("failed to generate raffle commitment: %w", err)
		}
		quest.RaffleCommitment = commitment
	}

	if err := s.quests.ActivateQuest(ctx, quest, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrQuestNotDraft) {
			return ErrQuestNotDraft
		}
		return fmt.Errorf("failed to activate quest: %w", err)
	}
	return nil
}

func (s *QuestService) GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return quest, nil
}

func (s *QuestService) ListQuests(ctx context.Context) ([]*model.Quest, error) {
	return s.quests.ListQuests(ctx)
}

// Progress assembles the presentation projection for one (user, quest)
// pair: per-step states, completion, the claim if any, remaining
// slots, and the clock-resolved lifecycle state.
func (s *QuestService) Progress(ctx context.Context, userAddress string, questID uuid.UUID) (*model.QuestProgressView, error) {
	quest, err := s.GetQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	steps, complete, err := s.verification.StepStates(ctx, userAddress, quest)
	if err != nil {
		return nil, err
	}

	claim, err := s.claims.GetClaim(ctx, userAddress, questID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	remaining := quest.WinnerSlots
	if quest.State != model.QuestStateDraft {
		remaining, err = s.escrow.CountRemainingSlots(ctx, questID)
		if err != nil {
			return nil, fmt.Errorf("failed to count remaining slots: %w", err)
		}
	}

	return &model.QuestProgressView{
		QuestID:        questID,
		UserAddress:    userAddress,
		State:          quest.EffectiveState(s.now().UTC()),
		Steps:          steps,
		Complete:       complete,
		Claim:          claim,
		RemainingSlots: remaining,
	}, nil
}
