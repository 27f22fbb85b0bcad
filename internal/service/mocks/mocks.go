// Package mocks holds testify mocks for the service-layer interfaces.
package mocks

import (
	"context"
	"time"

	"questhub/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockQuestRepository struct {
	mock.Mock
}

func (m *MockQuestRepository) CreateQuest(ctx context.Context, quest *model.Quest) error {
	return m.Called(ctx, quest).Error(0)
}

func (m *MockQuestRepository) GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	args := m.Called(ctx, questID)
	if q := args.Get(0); q != nil {
		return q.(*model.Quest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuestRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*model.Step, error) {
	args := m.Called(ctx, stepID)
	if s := args.Get(0); s != nil {
		return s.(*model.Step), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuestRepository) ListQuests(ctx context.Context) ([]*model.Quest, error) {
	args := m.Called(ctx)
	if q := args.Get(0); q != nil {
		return q.([]*model.Quest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuestRepository) ActivateQuest(ctx context.Context, quest *model.Quest, activatedAt time.Time) error {
	return m.Called(ctx, quest, activatedAt).Error(0)
}

func (m *MockQuestRepository) CloseQuest(ctx context.Context, questID uuid.UUID) error {
	return m.Called(ctx, questID).Error(0)
}

func (m *MockQuestRepository) ListQuestsDueForDraw(ctx context.Context, now time.Time) ([]*model.Quest, error) {
	args := m.Called(ctx, now)
	if q := args.Get(0); q != nil {
		return q.([]*model.Quest), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockVerificationRepository struct {
	mock.Mock
}

func (m *MockVerificationRepository) GetStepVerification(ctx context.Context, userAddress string, stepID uuid.UUID) (*model.StepVerification, error) {
	args := m.Called(ctx, userAddress, stepID)
	if v := args.Get(0); v != nil {
		return v.(*model.StepVerification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVerificationRepository) UpsertStepVerification(ctx context.Context, v *model.StepVerification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockVerificationRepository) GetQuestVerifications(ctx context.Context, userAddress string, questID uuid.UUID) (map[uuid.UUID]*model.StepVerification, error) {
	args := m.Called(ctx, userAddress, questID)
	if v := args.Get(0); v != nil {
		return v.(map[uuid.UUID]*model.StepVerification), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockClaimRepository struct {
	mock.Mock
}

func (m *MockClaimRepository) GetClaim(ctx context.Context, userAddress string, questID uuid.UUID) (*model.ClaimRecord, error) {
	args := m.Called(ctx, userAddress, questID)
	if c := args.Get(0); c != nil {
		return c.(*model.ClaimRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClaimRepository) ClaimNextSlot(ctx context.Context, userAddress string, questID uuid.UUID, points int) (*model.ClaimRecord, error) {
	args := m.Called(ctx, userAddress, questID, points)
	if c := args.Get(0); c != nil {
		return c.(*model.ClaimRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClaimRepository) ClaimRaffleSlot(ctx context.Context, userAddress string, questID uuid.UUID, slotIndex, points int) (*model.ClaimRecord, error) {
	args := m.Called(ctx, userAddress, questID, slotIndex, points)
	if c := args.Get(0); c != nil {
		return c.(*model.ClaimRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClaimRepository) CreatePointsOnlyClaim(ctx context.Context, userAddress string, questID uuid.UUID, points int) (*model.ClaimRecord, error) {
	args := m.Called(ctx, userAddress, questID, points)
	if c := args.Get(0); c != nil {
		return c.(*model.ClaimRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) GetEscrowAccount(ctx context.Context, questID uuid.UUID) (*model.EscrowAccount, error) {
	args := m.Called(ctx, questID)
	if a := args.Get(0); a != nil {
		return a.(*model.EscrowAccount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEscrowRepository) CountRemainingSlots(ctx context.Context, questID uuid.UUID) (int, error) {
	args := m.Called(ctx, questID)
	return args.Int(0), args.Error(1)
}

func (m *MockEscrowRepository) ListUnreleasedSlots(ctx context.Context, before time.Time) ([]model.PrizeSlot, error) {
	args := m.Called(ctx, before)
	if s := args.Get(0); s != nil {
		return s.([]model.PrizeSlot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEscrowRepository) MarkSlotReleased(ctx context.Context, questID uuid.UUID, slotIndex int, paymentRef string) error {
	return m.Called(ctx, questID, slotIndex, paymentRef).Error(0)
}

func (m *MockEscrowRepository) ReclaimResidual(ctx context.Context, questID uuid.UUID) (int64, error) {
	args := m.Called(ctx, questID)
	return args.Get(0).(int64), args.Error(1)
}

type MockRaffleRepository struct {
	mock.Mock
}

func (m *MockRaffleRepository) AddRaffleEntry(ctx context.Context, questID uuid.UUID, userAddress string) error {
	return m.Called(ctx, questID, userAddress).Error(0)
}

func (m *MockRaffleRepository) GetRaffleEntries(ctx context.Context, questID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, questID)
	if e := args.Get(0); e != nil {
		return e.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRaffleRepository) GetRaffleDraw(ctx context.Context, questID uuid.UUID) (*model.RaffleDraw, error) {
	args := m.Called(ctx, questID)
	if d := args.Get(0); d != nil {
		return d.(*model.RaffleDraw), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRaffleRepository) RecordRaffleDraw(ctx context.Context, draw *model.RaffleDraw) error {
	return m.Called(ctx, draw).Error(0)
}

type MockVerificationOracle struct {
	mock.Mock
}

func (m *MockVerificationOracle) Verify(ctx context.Context, userAddress string, step *model.Step) (bool, error) {
	args := m.Called(ctx, userAddress, step)
	return args.Bool(0), args.Error(1)
}

type MockPaymentSink struct {
	mock.Mock
}

func (m *MockPaymentSink) Pay(ctx context.Context, userAddress string, amount int64) (string, error) {
	args := m.Called(ctx, userAddress, amount)
	return args.String(0), args.Error(1)
}

type MockAttestationLedger struct {
	mock.Mock
}

func (m *MockAttestationLedger) Record(ctx context.Context, userAddress string, questID uuid.UUID) (string, error) {
	args := m.Called(ctx, userAddress, questID)
	return args.String(0), args.Error(1)
}
