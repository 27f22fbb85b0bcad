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

// EscrowService fronts the quest's deposited balance: payment hand-off
// for reserved slots and the post-grace reclaim of the residual.
type EscrowService struct {
	escrow   EscrowRepository
	quests   QuestRepository
	payments PaymentSink

	now func() time.Time
}

func NewEscrowService(escrow EscrowRepository, quests QuestRepository, payments PaymentSink) *EscrowService {
	return &EscrowService{
		escrow:   escrow,
		quests:   quests,
		payments: payments,
		now:      time.Now,
	}
}

func (s *EscrowService) Account(ctx context.Context, questID uuid.UUID) (*model.EscrowAccount, error) {
	account, err := s.escrow.GetEscrowAccount(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get escrow account: %w", err)
	}
	return account, nil
}

func (s *EscrowService) RemainingSlots(ctx context.Context, questID uuid.UUID) (int, error) {
	return s.escrow.CountRemainingSlots(ctx, questID)
}

// ReleaseToUser hands a reserved slot's amount to the payment rail and
// records the confirmation reference.
func (s *EscrowService) ReleaseToUser(ctx context.Context, userAddress string, questID uuid.UUID, slotIndex int, amount int64) error {
	if slotIndex == model.PointsOnlySlot || amount == 0 {
		return nil
	}

	ref, err := s.payments.Pay(ctx, userAddress, amount)
	if err != nil {
		return fmt.Errorf("payment failed: %w", err)
	}

	if err := s.escrow.MarkSlotReleased(ctx, questID, slotIndex, ref); err != nil {
		return fmt.Errorf("failed to record release: %w", err)
	}
	return nil
}

// ReleaseOutstanding retries the payment hand-off for slots reserved
// before the cutoff whose release was never recorded, picking up
// payouts that failed at grant time.
func (s *EscrowService) ReleaseOutstanding(ctx context.Context, before time.Time) error {
	slots, err := s.escrow.ListUnreleasedSlots(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to list unreleased slots: %w", err)
	}

	for _, slot := range slots {
		if slot.ReservedBy == nil {
			continue
		}
		if err := s.ReleaseToUser(ctx, *slot.ReservedBy, slot.QuestID, slot.SlotIndex, slot.Amount); err != nil {
			logger.Logger().Error("payout retry failed",
				zap.String("quest_id", slot.QuestID.String()),
				zap.Int("slot_index", slot.SlotIndex), zap.Error(err))
		}
	}
	return nil
}

// Reclaim returns the never-reserved residual to the quest creator.
// Legal only at or after expiry + grace period; the second call is a
// no-op returning zero.
func (s *EscrowService) Reclaim(ctx context.Context, questID uuid.UUID, callerAddress string) (int64, error) {
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrQuestNotFound
		}
		return 0, fmt.Errorf("failed to get quest: %w", err)
	}

	if quest.CreatorAddress != callerAddress {
		return 0, ErrNotQuestOwner
	}

	if s.now().UTC().Before(quest.ReclaimableAt()) {
		return 0, ErrGracePeriodActive
	}

	amount, err := s.escrow.ReclaimResidual(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrQuestNotFound
		}
		return 0, fmt.Errorf("failed to reclaim residual: %w", err)
	}

	if amount > 0 {
		if _, payErr := s.payments.Pay(ctx, callerAddress, amount); payErr != nil {
			// The ledger already records the reclaim; the transfer is
			// the rail's problem to retry.
			logger.Logger().Error("reclaim payout failed",
				zap.String("quest_id", questID.String()), zap.Error(payErr))
		}
	}

	if err := s.quests.CloseQuest(ctx, questID); err != nil {
		logger.Logger().Error("failed to close reclaimed quest",
			zap.String("quest_id", questID.String()), zap.Error(err))
	}

	return amount, nil
}
