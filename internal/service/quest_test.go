package service

import (
	"context"
	"testing"
	"time"

	"questhub/internal/model"
	"questhub/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func draftQuest() *model.Quest {
	return &model.Quest{
		CreatorAddress:  "0xcreator",
		Title:           "Launch week",
		Mode:            model.DistributionFCFS,
		WinnerSlots:     2,
		PrizeSchedule:   []int64{60, 40},
		DepositedAmount: 100,
		RewardPoints:    10,
		ExpiryTime:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		GracePeriod:     48 * time.Hour,
		Steps: []model.Step{
			{Title: "Follow", Action: "follow"},
			{Title: "Share", Action: "share", Optional: true},
		},
	}
}

func newQuestService(repo *mocks.MockQuestRepository) *QuestService {
	svc := NewQuestService(repo, new(mocks.MockEscrowRepository), new(mocks.MockClaimRepository), nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestQuestServiceCreateQuestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *model.Quest)
	}{
		{"zero winner slots", func(q *model.Quest) { q.WinnerSlots = 0 }},
		{"schedule shorter than slots", func(q *model.Quest) { q.PrizeSchedule = []int64{100} }},
		{"non-positive prize amount", func(q *model.Quest) { q.PrizeSchedule = []int64{100, 0} }},
		{"unknown mode", func(q *model.Quest) { q.Mode = "LOTTERY" }},
		{"expiry in the past", func(q *model.Quest) { q.ExpiryTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockQuestRepository)
			svc := newQuestService(repo)

			quest := draftQuest()
			tt.mutate(quest)

			_, err := svc.CreateQuest(context.Background(), quest)
			assert.Error(t, err)
			repo.AssertNotCalled(t, "CreateQuest")
		})
	}
}

func TestQuestServiceCreateQuestAssignsIdentity(t *testing.T) {
	repo := new(mocks.MockQuestRepository)
	repo.On("CreateQuest", mock.Anything, mock.Anything).Return(nil)
	svc := newQuestService(repo)

	quest := draftQuest()
	id, err := svc.CreateQuest(context.Background(), quest)

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, model.QuestStateDraft, quest.State)
	for i, step := range quest.Steps {
		assert.NotEqual(t, uuid.Nil, step.StepID)
		assert.Equal(t, id, step.QuestID)
		assert.Equal(t, i, step.OrderIndex)
	}
}

func TestQuestServicePublishGuards(t *testing.T) {
	tests := []struct {
		name     string
		caller   string
		mutate   func(q *model.Quest)
		expected error
	}{
		{
			name:     "only the creator can publish",
			caller:   "0xstranger",
			mutate:   func(q *model.Quest) {},
			expected: ErrNotQuestOwner,
		},
		{
			name:     "already active",
			caller:   "0xcreator",
			mutate:   func(q *model.Quest) { q.State = model.QuestStateActive },
			expected: ErrQuestNotDraft,
		},
		{
			name:     "schedule does not add up to the deposit",
			caller:   "0xcreator",
			mutate:   func(q *model.Quest) { q.DepositedAmount = 90 },
			expected: ErrPrizeScheduleMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quest := draftQuest()
			quest.QuestID = uuid.New()
			quest.State = model.QuestStateDraft
			tt.mutate(quest)

			repo := new(mocks.MockQuestRepository)
			repo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)
			svc := newQuestService(repo)

			err := svc.Publish(context.Background(), quest.QuestID, tt.caller)
			assert.ErrorIs(t, err, tt.expected)
			repo.AssertNotCalled(t, "ActivateQuest")
		})
	}
}

func TestQuestServicePublishActivatesDraft(t *testing.T) {
	quest := draftQuest()
	quest.QuestID = uuid.New()
	quest.State = model.QuestStateDraft

	repo := new(mocks.MockQuestRepository)
	repo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)
	repo.On("ActivateQuest", mock.Anything, quest, mock.Anything).Return(nil)
	svc := newQuestService(repo)

	err := svc.Publish(context.Background(), quest.QuestID, "0xcreator")
	assert.NoError(t, err)
	assert.Empty(t, quest.RaffleCommitment)
	repo.AssertExpectations(t)
}

func TestQuestServicePublishSealsRaffleCommitment(t *testing.T) {
	quest := draftQuest()
	quest.QuestID = uuid.New()
	quest.State = model.QuestStateDraft
	quest.Mode = model.DistributionRaffle

	repo := new(mocks.MockQuestRepository)
	repo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)
	repo.On("ActivateQuest", mock.Anything, quest, mock.Anything).Return(nil)
	svc := newQuestService(repo)

	err := svc.Publish(context.Background(), quest.QuestID, "0xcreator")
	assert.NoError(t, err)
	assert.Len(t, quest.RaffleCommitment, 32)
}

func TestQuestServiceProgress(t *testing.T) {
	quest := fcfsQuest(2, []int64{60, 40}, 100, 10)
	quest.Steps = []model.Step{
		{StepID: uuid.New(), QuestID: quest.QuestID, OrderIndex: 0, Title: "Follow"},
	}
	world := newQuestWorld(quest)

	verifications := newMemVerificationRepo()
	verification := NewVerificationService(verifications, world, new(mocks.MockVerificationOracle), testCooldown, testVerifyTimeout)
	verification.now = func() time.Time { return testBaseTime }
	svc := NewQuestService(world, world, world, verification)
	svc.now = func() time.Time { return testBaseTime }

	view, err := svc.Progress(context.Background(), "0xuser", quest.QuestID)
	assert.NoError(t, err)
	assert.Equal(t, model.QuestStateActive, view.State)
	assert.False(t, view.Complete)
	assert.Nil(t, view.Claim)
	assert.Equal(t, 2, view.RemainingSlots)
	if assert.Len(t, view.Steps, 1) {
		assert.Equal(t, model.VerificationIdle, view.Steps[0].Status)
	}

	verifiedAt := time.Now().UTC()
	err = verifications.UpsertStepVerification(context.Background(), &model.StepVerification{
		UserAddress: "0xuser",
		StepID:      quest.Steps[0].StepID,
		Status:      model.VerificationVerified,
		VerifiedAt:  &verifiedAt,
	})
	assert.NoError(t, err)

	view, err = svc.Progress(context.Background(), "0xuser", quest.QuestID)
	assert.NoError(t, err)
	assert.True(t, view.Complete)
	assert.Equal(t, model.VerificationVerified, view.Steps[0].Status)
}
