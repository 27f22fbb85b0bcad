package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"questhub/internal/model"
	"questhub/internal/repository"
	"questhub/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// memVerificationRepo is an in-memory VerificationRepository for
// exercising the retry state machine across several attempts.
type memVerificationRepo struct {
	mu   sync.Mutex
	rows map[string]map[uuid.UUID]*model.StepVerification
}

func newMemVerificationRepo() *memVerificationRepo {
	return &memVerificationRepo{rows: make(map[string]map[uuid.UUID]*model.StepVerification)}
}

func (r *memVerificationRepo) GetStepVerification(_ context.Context, userAddress string, stepID uuid.UUID) (*model.StepVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.rows[userAddress][stepID]; ok {
		out := *v
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memVerificationRepo) UpsertStepVerification(_ context.Context, v *model.StepVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[v.UserAddress] == nil {
		r.rows[v.UserAddress] = make(map[uuid.UUID]*model.StepVerification)
	}
	stored := *v
	r.rows[v.UserAddress][v.StepID] = &stored
	return nil
}

func (r *memVerificationRepo) GetQuestVerifications(_ context.Context, userAddress string, _ uuid.UUID) (map[uuid.UUID]*model.StepVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*model.StepVerification, len(r.rows[userAddress]))
	for stepID, v := range r.rows[userAddress] {
		copied := *v
		out[stepID] = &copied
	}
	return out, nil
}

const (
	testCooldown      = time.Hour
	testVerifyTimeout = 15 * time.Second
)

func activeQuestWithStep() (*model.Quest, *model.Step) {
	questID := uuid.New()
	step := model.Step{
		StepID:  uuid.New(),
		QuestID: questID,
		Title:   "Follow the project",
		Action:  "follow",
	}
	quest := &model.Quest{
		QuestID:        questID,
		CreatorAddress: "0xcreator",
		Mode:           model.DistributionFCFS,
		State:          model.QuestStateActive,
		ExpiryTime:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Steps:          []model.Step{step},
	}
	return quest, &quest.Steps[0]
}

func newVerificationFixture(t *testing.T) (*VerificationService, *memVerificationRepo, *mocks.MockVerificationOracle, *model.Step) {
	t.Helper()

	quest, step := activeQuestWithStep()

	questRepo := new(mocks.MockQuestRepository)
	questRepo.On("GetStep", mock.Anything, step.StepID).Return(step, nil)
	questRepo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)

	repo := newMemVerificationRepo()
	oracle := new(mocks.MockVerificationOracle)

	svc := NewVerificationService(repo, questRepo, oracle, testCooldown, testVerifyTimeout)
	svc.now = func() time.Time { return testBaseTime }
	return svc, repo, oracle, step
}

func TestVerificationServiceAttemptVerifies(t *testing.T) {
	svc, _, oracle, step := newVerificationFixture(t)
	oracle.On("Verify", mock.Anything, "0xuser", step).Return(true, nil)

	state, err := svc.Attempt(context.Background(), "0xuser", step.StepID)

	assert.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, state.Status)
	assert.NotNil(t, state.VerifiedAt)
}

func TestVerificationServiceCooldownBlocksRetry(t *testing.T) {
	svc, _, oracle, step := newVerificationFixture(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	svc.now = func() time.Time { return now }

	oracle.On("Verify", mock.Anything, "0xuser", step).Return(false, nil).Once()

	state, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerificationCooldown, state.Status)
	if assert.NotNil(t, state.CooldownUntil) {
		assert.Equal(t, start.Add(testCooldown), *state.CooldownUntil)
	}

	// One second before the cooldown ends the attempt is a no-op: the
	// oracle is not consulted and the state does not change.
	now = start.Add(testCooldown - time.Second)
	state, err = svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerificationCooldown, state.Status)
	oracle.AssertNumberOfCalls(t, "Verify", 1)

	// At the deadline the pair is retryable again.
	now = start.Add(testCooldown)
	oracle.On("Verify", mock.Anything, "0xuser", step).Return(true, nil).Once()

	state, err = svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, state.Status)
	oracle.AssertNumberOfCalls(t, "Verify", 2)
}

func TestVerificationServiceOracleFailureIsNotAVerdict(t *testing.T) {
	svc, repo, oracle, step := newVerificationFixture(t)

	oracle.On("Verify", mock.Anything, "0xuser", step).Return(false, assert.AnError).Once()

	_, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	// No cooldown was burned: the stored row reads IDLE and the very
	// next attempt reaches the oracle again.
	stored, err := repo.GetStepVerification(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerificationIdle, stored.EffectiveStatus(testBaseTime, testVerifyTimeout, testCooldown))

	oracle.On("Verify", mock.Anything, "0xuser", step).Return(true, nil).Once()

	state, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, state.Status)
}

func TestVerificationServiceVerifiedIsTerminal(t *testing.T) {
	svc, _, oracle, step := newVerificationFixture(t)
	oracle.On("Verify", mock.Anything, "0xuser", step).Return(true, nil).Once()

	_, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)

	state, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, state.Status)
	oracle.AssertNumberOfCalls(t, "Verify", 1)
}

func TestVerificationServiceRejectsInactiveQuest(t *testing.T) {
	quest, step := activeQuestWithStep()
	quest.State = model.QuestStateClosed

	questRepo := new(mocks.MockQuestRepository)
	questRepo.On("GetStep", mock.Anything, step.StepID).Return(step, nil)
	questRepo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)

	oracle := new(mocks.MockVerificationOracle)
	svc := NewVerificationService(newMemVerificationRepo(), questRepo, oracle, testCooldown, testVerifyTimeout)

	_, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.ErrorIs(t, err, ErrQuestNotActive)
	oracle.AssertNotCalled(t, "Verify")
}

func TestVerificationServiceRejectsExpiredQuest(t *testing.T) {
	quest, step := activeQuestWithStep()

	questRepo := new(mocks.MockQuestRepository)
	questRepo.On("GetStep", mock.Anything, step.StepID).Return(step, nil)
	questRepo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)

	svc := NewVerificationService(newMemVerificationRepo(), questRepo, new(mocks.MockVerificationOracle), testCooldown, testVerifyTimeout)
	svc.now = func() time.Time { return quest.ExpiryTime }

	_, err := svc.Attempt(context.Background(), "0xuser", step.StepID)
	assert.ErrorIs(t, err, ErrQuestNotActive)
}

func TestVerificationServiceCompleteIgnoresOptionalSteps(t *testing.T) {
	questID := uuid.New()
	quest := &model.Quest{
		QuestID: questID,
		State:   model.QuestStateActive,
		Steps: []model.Step{
			{StepID: uuid.New(), QuestID: questID, OrderIndex: 0},
			{StepID: uuid.New(), QuestID: questID, OrderIndex: 1, Optional: true},
		},
	}

	repo := newMemVerificationRepo()
	svc := NewVerificationService(repo, new(mocks.MockQuestRepository), new(mocks.MockVerificationOracle), testCooldown, testVerifyTimeout)

	complete, err := svc.Complete(context.Background(), "0xuser", quest)
	assert.NoError(t, err)
	assert.False(t, complete)

	verifiedAt := time.Now().UTC()
	err = repo.UpsertStepVerification(context.Background(), &model.StepVerification{
		UserAddress: "0xuser",
		StepID:      quest.Steps[0].StepID,
		Status:      model.VerificationVerified,
		VerifiedAt:  &verifiedAt,
	})
	assert.NoError(t, err)

	// The optional step stays IDLE and still does not block completion.
	complete, err = svc.Complete(context.Background(), "0xuser", quest)
	assert.NoError(t, err)
	assert.True(t, complete)
}

func TestVerificationServiceStepStates(t *testing.T) {
	questID := uuid.New()
	quest := &model.Quest{
		QuestID: questID,
		State:   model.QuestStateActive,
		Steps: []model.Step{
			{StepID: uuid.New(), QuestID: questID, OrderIndex: 0, Title: "Join"},
			{StepID: uuid.New(), QuestID: questID, OrderIndex: 1, Title: "Share"},
		},
	}

	repo := newMemVerificationRepo()
	svc := NewVerificationService(repo, new(mocks.MockQuestRepository), new(mocks.MockVerificationOracle), testCooldown, testVerifyTimeout)

	verifiedAt := time.Now().UTC()
	err := repo.UpsertStepVerification(context.Background(), &model.StepVerification{
		UserAddress: "0xuser",
		StepID:      quest.Steps[0].StepID,
		Status:      model.VerificationVerified,
		VerifiedAt:  &verifiedAt,
	})
	assert.NoError(t, err)

	views, complete, err := svc.StepStates(context.Background(), "0xuser", quest)
	assert.NoError(t, err)
	assert.False(t, complete)
	assert.Len(t, views, 2)
	assert.Equal(t, model.VerificationVerified, views[0].Status)
	assert.Equal(t, model.VerificationIdle, views[1].Status)
}
