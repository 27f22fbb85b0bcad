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

func TestEscrowServiceReclaimGuards(t *testing.T) {
	quest := fcfsQuest(1, []int64{100}, 100, 0)
	quest.GracePeriod = 48 * time.Hour

	tests := []struct {
		name     string
		caller   string
		now      time.Time
		expected error
	}{
		{
			name:     "only the creator can reclaim",
			caller:   "0xstranger",
			now:      quest.ReclaimableAt(),
			expected: ErrNotQuestOwner,
		},
		{
			name:     "grace period still running",
			caller:   "0xcreator",
			now:      quest.ReclaimableAt().Add(-time.Second),
			expected: ErrGracePeriodActive,
		},
		{
			name:     "expired but grace untouched",
			caller:   "0xcreator",
			now:      quest.ExpiryTime.Add(time.Hour),
			expected: ErrGracePeriodActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questRepo := new(mocks.MockQuestRepository)
			questRepo.On("GetQuest", mock.Anything, quest.QuestID).Return(quest, nil)

			payments := new(mocks.MockPaymentSink)
			svc := NewEscrowService(new(mocks.MockEscrowRepository), questRepo, payments)
			svc.now = func() time.Time { return tt.now }

			_, err := svc.Reclaim(context.Background(), quest.QuestID, tt.caller)
			assert.ErrorIs(t, err, tt.expected)
			payments.AssertNotCalled(t, "Pay")
		})
	}
}

func TestEscrowServiceReclaimPaysResidualOnce(t *testing.T) {
	quest := fcfsQuest(2, []int64{60, 40}, 100, 0)
	quest.GracePeriod = 48 * time.Hour

	world := newQuestWorld(quest)
	payments := newPaymentLog()
	svc := NewEscrowService(world, world, payments)
	svc.now = func() time.Time { return quest.ReclaimableAt() }

	// One slot was granted before expiry; only the other slot's amount
	// is residual.
	_, err := world.ClaimNextSlot(context.Background(), "0xwinner", quest.QuestID, 0)
	assert.NoError(t, err)

	amount, err := svc.Reclaim(context.Background(), quest.QuestID, "0xcreator")
	assert.NoError(t, err)
	assert.Equal(t, int64(40), amount)
	assert.Equal(t, int64(40), payments.paid["0xcreator"])
	assert.Equal(t, model.QuestStateClosed, world.quest.State)

	amount, err = svc.Reclaim(context.Background(), quest.QuestID, "0xcreator")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), amount)
	assert.Equal(t, int64(40), payments.paid["0xcreator"])
}

func TestEscrowServiceReleasePaysAndMarks(t *testing.T) {
	questID := uuid.New()

	payments := new(mocks.MockPaymentSink)
	payments.On("Pay", mock.Anything, "0xwinner", int64(60)).Return("ref-1", nil)

	escrowRepo := new(mocks.MockEscrowRepository)
	escrowRepo.On("MarkSlotReleased", mock.Anything, questID, 0, "ref-1").Return(nil)

	svc := NewEscrowService(escrowRepo, new(mocks.MockQuestRepository), payments)

	err := svc.ReleaseToUser(context.Background(), "0xwinner", questID, 0, 60)
	assert.NoError(t, err)
	payments.AssertExpectations(t)
	escrowRepo.AssertExpectations(t)
}

func TestEscrowServiceReleaseSkipsPointsOnly(t *testing.T) {
	payments := new(mocks.MockPaymentSink)
	svc := NewEscrowService(new(mocks.MockEscrowRepository), new(mocks.MockQuestRepository), payments)

	err := svc.ReleaseToUser(context.Background(), "0xuser", uuid.New(), model.PointsOnlySlot, 0)
	assert.NoError(t, err)
	payments.AssertNotCalled(t, "Pay")
}

func TestEscrowServiceReleaseOutstandingRedrivesFailedPayout(t *testing.T) {
	quest := fcfsQuest(1, []int64{100}, 100, 0)
	world := newQuestWorld(quest)

	_, err := world.ClaimNextSlot(context.Background(), "0xwinner", quest.QuestID, 0)
	assert.NoError(t, err)

	payments := newPaymentLog()
	svc := NewEscrowService(world, world, payments)

	cutoff := time.Now().UTC().Add(time.Hour)
	assert.NoError(t, svc.ReleaseOutstanding(context.Background(), cutoff))
	assert.Equal(t, int64(100), payments.paid["0xwinner"])
	assert.NotNil(t, world.slots[0].ReleasedAt)

	// Once released the slot drops out of the batch.
	assert.NoError(t, svc.ReleaseOutstanding(context.Background(), cutoff))
	assert.Equal(t, int64(100), payments.paid["0xwinner"])
}

func TestEscrowServiceReleasePaymentFailureKeepsSlot(t *testing.T) {
	payments := new(mocks.MockPaymentSink)
	payments.On("Pay", mock.Anything, "0xwinner", int64(60)).Return("", assert.AnError)

	escrowRepo := new(mocks.MockEscrowRepository)
	svc := NewEscrowService(escrowRepo, new(mocks.MockQuestRepository), payments)

	err := svc.ReleaseToUser(context.Background(), "0xwinner", uuid.New(), 0, 60)
	assert.Error(t, err)
	escrowRepo.AssertNotCalled(t, "MarkSlotReleased")
}
