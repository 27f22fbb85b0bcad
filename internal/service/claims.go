package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questhub/internal/model"
	"questhub/internal/repository"
	"questhub/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClaimService coordinates reward claims. At most one ClaimRecord ever
// exists per (user, quest); the record's create-if-absent insert in the
// repository is the mutual-exclusion point, so concurrent claims for
// the same pair serialize there rather than on any in-process lock.
type ClaimService struct {
	quests     QuestRepository
	claims     ClaimRepository
	raffleRepo RaffleRepository
	escrow     *EscrowService
	raffle     *RaffleService
	progress   ProgressChecker

	attest AttestationLedger
	events EventPublisher

	pointsWhenExhausted bool

	now func() time.Time
}

func NewClaimService(
	quests QuestRepository,
	claims ClaimRepository,
	raffleRepo RaffleRepository,
	escrow *EscrowService,
	raffle *RaffleService,
	progress ProgressChecker,
	attest AttestationLedger,
	events EventPublisher,
	pointsWhenExhausted bool,
) *ClaimService {
	return &ClaimService{
		quests:              quests,
		claims:              claims,
		raffleRepo:          raffleRepo,
		escrow:              escrow,
		raffle:              raffle,
		progress:            progress,
		attest:              attest,
		events:              events,
		pointsWhenExhausted: pointsWhenExhausted,
		now:                 time.Now,
	}
}

// Claim converts a completed quest into a granted reward. Calls after
// a successful grant return the existing record so client retries are
// safe.
func (s *ClaimService) Claim(ctx context.Context, userAddress string, questID uuid.UUID) (*model.ClaimResult, error) {
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	if quest.CreatorAddress == userAddress {
		return nil, ErrSelfClaimForbidden
	}

	existing, err := s.claims.GetClaim(ctx, userAddress, questID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing claim: %w", err)
	}
	if existing != nil {
		return resultFor(existing), nil
	}

	switch quest.Mode {
	case model.DistributionFCFS:
		return s.claimFCFS(ctx, userAddress, quest)
	case model.DistributionRaffle:
		return s.claimRaffle(ctx, userAddress, quest)
	default:
		return nil, fmt.Errorf("unknown distribution mode %q", quest.Mode)
	}
}

func (s *ClaimService) claimFCFS(ctx context.Context, userAddress string, quest *model.Quest) (*model.ClaimResult, error) {
	switch quest.EffectiveState(s.now().UTC()) {
	case model.QuestStateActive:
	case model.QuestStateClosed:
		return s.refuseAfterClose(ctx, userAddress, quest)
	default:
		return nil, ErrQuestNotClaimable
	}

	complete, err := s.progress.Complete(ctx, userAddress, quest)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, ErrRequirementsNotMet
	}

	record, err := s.claims.ClaimNextSlot(ctx, userAddress, quest.QuestID, quest.RewardPoints)
	switch {
	case err == nil:
		s.afterGrant(ctx, quest, record)
		return resultFor(record), nil

	case errors.Is(err, repository.ErrAlreadyClaimed):
		// Lost the race against our own retry; the winner's record is
		// the answer.
		existing, getErr := s.claims.GetClaim(ctx, userAddress, quest.QuestID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load racing claim: %w", getErr)
		}
		return resultFor(existing), nil

	case errors.Is(err, repository.ErrSlotsExhausted):
		if s.pointsWhenExhausted && quest.RewardPoints > 0 {
			if _, creditErr := s.claims.CreatePointsOnlyClaim(ctx, userAddress, quest.QuestID, quest.RewardPoints); creditErr != nil {
				logger.Logger().Error("failed to credit points after exhaustion",
					zap.String("user", userAddress), zap.Error(creditErr))
			}
		}
		return nil, ErrSlotsExhausted

	case errors.Is(err, repository.ErrEscrowReclaimed):
		return nil, ErrQuestNotClaimable

	case errors.Is(err, repository.ErrInvariantViolated), errors.Is(err, repository.ErrEscrowHalted):
		logger.Logger().Error("escrow invariant violation on claim",
			zap.String("quest_id", quest.QuestID.String()),
			zap.String("user", userAddress), zap.Error(err))
		return nil, ErrInvariantViolation

	default:
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}
}

// refuseAfterClose decides what a completed claimant hears once the
// quest is closed. A quest closes the instant its last slot is granted,
// so an eligible user racing that close gets the same answer, and the
// same points credit, as one who lost the slot race directly. A quest
// closed by reclaim still has unreserved slots and is simply not
// claimable.
func (s *ClaimService) refuseAfterClose(ctx context.Context, userAddress string, quest *model.Quest) (*model.ClaimResult, error) {
	complete, err := s.progress.Complete(ctx, userAddress, quest)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, ErrRequirementsNotMet
	}

	remaining, err := s.escrow.RemainingSlots(ctx, quest.QuestID)
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining slots: %w", err)
	}
	if remaining > 0 {
		return nil, ErrQuestNotClaimable
	}

	if s.pointsWhenExhausted && quest.RewardPoints > 0 {
		if _, creditErr := s.claims.CreatePointsOnlyClaim(ctx, userAddress, quest.QuestID, quest.RewardPoints); creditErr != nil {
			logger.Logger().Error("failed to credit points after exhaustion",
				zap.String("user", userAddress), zap.Error(creditErr))
		}
	}
	return nil, ErrSlotsExhausted
}

func (s *ClaimService) claimRaffle(ctx context.Context, userAddress string, quest *model.Quest) (*model.ClaimResult, error) {
	switch quest.EffectiveState(s.now().UTC()) {
	case model.QuestStateActive:
		complete, err := s.progress.Complete(ctx, userAddress, quest)
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, ErrRequirementsNotMet
		}

		if err := s.raffleRepo.AddRaffleEntry(ctx, quest.QuestID, userAddress); err != nil {
			return nil, fmt.Errorf("failed to register raffle entry: %w", err)
		}
		return &model.ClaimResult{Status: model.ClaimEligible}, nil

	case model.QuestStateExpired, model.QuestStateClosed:
		draw, err := s.raffle.SelectWinners(ctx, quest.QuestID)
		if err != nil {
			return nil, err
		}

		position := -1
		for _, w := range draw.Winners {
			if w.UserAddress == userAddress {
				position = w.Position
				break
			}
		}
		if position < 0 {
			return nil, ErrNotSelected
		}

		// A closed quest's escrow may already be reclaimed, so a winner
		// who waited past the close cannot take the slot anymore.
		if quest.State == model.QuestStateClosed {
			return nil, ErrQuestNotClaimable
		}

		record, err := s.claims.ClaimRaffleSlot(ctx, userAddress, quest.QuestID, position, quest.RewardPoints)
		switch {
		case err == nil:
			s.afterGrant(ctx, quest, record)
			return resultFor(record), nil
		case errors.Is(err, repository.ErrAlreadyClaimed):
			existing, getErr := s.claims.GetClaim(ctx, userAddress, quest.QuestID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load racing claim: %w", getErr)
			}
			return resultFor(existing), nil
		case errors.Is(err, repository.ErrEscrowReclaimed):
			return nil, ErrQuestNotClaimable
		case errors.Is(err, repository.ErrInvariantViolated), errors.Is(err, repository.ErrEscrowHalted):
			logger.Logger().Error("escrow invariant violation on raffle claim",
				zap.String("quest_id", quest.QuestID.String()),
				zap.String("user", userAddress), zap.Error(err))
			return nil, ErrInvariantViolation
		default:
			return nil, fmt.Errorf("failed to claim raffle slot: %w", err)
		}

	default:
		return nil, ErrQuestNotClaimable
	}
}

// afterGrant runs the decoupled post-claim effects: best-effort
// attestation, payment hand-off, closing the quest once every slot is
// reserved, and the presentation event. None of them can undo the
// grant.
func (s *ClaimService) afterGrant(ctx context.Context, quest *model.Quest, record *model.ClaimRecord) {
	log := logger.Logger()

	if s.attest != nil {
		if _, err := s.attest.Record(ctx, record.UserAddress, quest.QuestID); err != nil {
			log.Warn("attestation record failed",
				zap.String("quest_id", quest.QuestID.String()),
				zap.String("user", record.UserAddress), zap.Error(err))
		}
	}

	if err := s.escrow.ReleaseToUser(ctx, record.UserAddress, quest.QuestID, record.SlotIndex, record.PrizeAmount); err != nil {
		log.Error("payout release failed; slot stays reserved",
			zap.String("quest_id", quest.QuestID.String()),
			zap.String("user", record.UserAddress), zap.Error(err))
	}

	remaining, err := s.escrow.RemainingSlots(ctx, quest.QuestID)
	if err != nil {
		log.Error("failed to count remaining slots", zap.Error(err))
	} else if remaining == 0 {
		if err := s.quests.CloseQuest(ctx, quest.QuestID); err != nil {
			log.Error("failed to close exhausted quest", zap.Error(err))
		}
	}

	if s.events != nil {
		s.events.Publish("claim_granted", map[string]any{
			"quest_id":     quest.QuestID.String(),
			"user_address": record.UserAddress,
			"slot_index":   record.SlotIndex,
			"prize_amount": record.PrizeAmount,
		})
	}
}

func resultFor(record *model.ClaimRecord) *model.ClaimResult {
	status := model.ClaimGranted
	if record.PointsOnly() {
		status = model.ClaimPointsOnly
	}
	return &model.ClaimResult{Status: status, Record: record}
}
