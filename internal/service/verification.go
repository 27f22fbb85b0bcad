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

// VerificationService owns the per-(user, step) retry state machine
// and the per-(user, quest) completion check.
type VerificationService struct {
	repo   VerificationRepository
	quests QuestRepository
	oracle VerificationOracle

	cooldown      time.Duration
	verifyTimeout time.Duration

	now func() time.Time
}

func NewVerificationService(repo VerificationRepository, quests QuestRepository, oracle VerificationOracle, cooldown, verifyTimeout time.Duration) *VerificationService {
	return &VerificationService{
		repo:          repo,
		quests:        quests,
		oracle:        oracle,
		cooldown:      cooldown,
		verifyTimeout: verifyTimeout,
		now:           time.Now,
	}
}

// Attempt runs one verification attempt. VERIFIED is terminal and an
// unexpired cooldown makes the call a no-op returning current state.
// The oracle is invoked without holding any claim or escrow state.
func (s *VerificationService) Attempt(ctx context.Context, userAddress string, stepID uuid.UUID) (*model.StepVerification, error) {
	step, err := s.quests.GetStep(ctx, stepID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("failed to get step: %w", err)
	}

	quest, err := s.quests.GetQuest(ctx, step.QuestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	now := s.now().UTC()
	if quest.EffectiveState(now) != model.QuestStateActive {
		return nil, ErrQuestNotActive
	}

	stored, err := s.repo.GetStepVerification(ctx, userAddress, stepID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get verification state: %w", err)
	}

	switch stored.EffectiveStatus(now, s.verifyTimeout, s.cooldown) {
	case model.VerificationVerified, model.VerificationCooldown, model.VerificationVerifying:
		return s.view(stored, now), nil
	}

	verifying := &model.StepVerification{
		UserAddress: userAddress,
		StepID:      stepID,
		Status:      model.VerificationVerifying,
		StartedAt:   &now,
	}
	if err := s.repo.UpsertStepVerification(ctx, verifying); err != nil {
		return nil, fmt.Errorf("failed to mark verifying: %w", err)
	}

	octx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	ok, oracleErr := s.oracle.Verify(octx, userAddress, step)
	resolved := s.now().UTC()

	if oracleErr != nil {
		// Transport failure, not a verdict. Reset to IDLE so the user
		// can retry immediately without burning a cooldown.
		idle := &model.StepVerification{
			UserAddress: userAddress,
			StepID:      stepID,
			Status:      model.VerificationIdle,
		}
		if upErr := s.repo.UpsertStepVerification(ctx, idle); upErr != nil {
			logger.Logger().Error("failed to reset verification state",
				zap.String("user", userAddress), zap.Error(upErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, oracleErr)
	}

	var next *model.StepVerification
	if ok {
		next = &model.StepVerification{
			UserAddress: userAddress,
			StepID:      stepID,
			Status:      model.VerificationVerified,
			VerifiedAt:  &resolved,
		}
	} else {
		until := resolved.Add(s.cooldown)
		next = &model.StepVerification{
			UserAddress:   userAddress,
			StepID:        stepID,
			Status:        model.VerificationCooldown,
			CooldownUntil: &until,
		}
	}

	if err := s.repo.UpsertStepVerification(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to store verification result: %w", err)
	}

	return s.view(next, resolved), nil
}

// Complete reports whether every required step of the quest is
// VERIFIED for the user. Optional steps never block.
func (s *VerificationService) Complete(ctx context.Context, userAddress string, quest *model.Quest) (bool, error) {
	verifications, err := s.repo.GetQuestVerifications(ctx, userAddress, quest.QuestID)
	if err != nil {
		return false, fmt.Errorf("failed to get quest verifications: %w", err)
	}

	now := s.now().UTC()
	for _, step := range quest.RequiredSteps() {
		v := verifications[step.StepID]
		if v.EffectiveStatus(now, s.verifyTimeout, s.cooldown) != model.VerificationVerified {
			return false, nil
		}
	}
	return true, nil
}

// IsComplete is the quest-ID convenience form of Complete.
func (s *VerificationService) IsComplete(ctx context.Context, userAddress string, questID uuid.UUID) (bool, error) {
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrQuestNotFound
		}
		return false, fmt.Errorf("failed to get quest: %w", err)
	}
	return s.Complete(ctx, userAddress, quest)
}

// StepStates builds the read-only per-step projection plus the derived
// completion flag.
func (s *VerificationService) StepStates(ctx context.Context, userAddress string, quest *model.Quest) ([]model.StepProgressView, bool, error) {
	verifications, err := s.repo.GetQuestVerifications(ctx, userAddress, quest.QuestID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get quest verifications: %w", err)
	}

	now := s.now().UTC()
	complete := true
	views := make([]model.StepProgressView, len(quest.Steps))
	for i, step := range quest.Steps {
		v := verifications[step.StepID]
		status := v.EffectiveStatus(now, s.verifyTimeout, s.cooldown)
		views[i] = model.StepProgressView{
			StepID:        step.StepID,
			OrderIndex:    step.OrderIndex,
			Optional:      step.Optional,
			Title:         step.Title,
			Status:        status,
			CooldownUntil: v.EffectiveCooldownUntil(now, s.verifyTimeout, s.cooldown),
		}
		if !step.Optional && status != model.VerificationVerified {
			complete = false
		}
	}
	return views, complete, nil
}

// view returns the stored row with its lazily computed status, so
// callers always observe the clock-resolved state.
func (s *VerificationService) view(stored *model.StepVerification, now time.Time) *model.StepVerification {
	if stored == nil {
		return nil
	}
	out := *stored
	out.Status = stored.EffectiveStatus(now, s.verifyTimeout, s.cooldown)
	out.CooldownUntil = stored.EffectiveCooldownUntil(now, s.verifyTimeout, s.cooldown)
	return &out
}
