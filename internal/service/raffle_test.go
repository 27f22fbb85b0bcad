package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"questhub/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func raffleQuest(slots int, schedule []int64) *model.Quest {
	return &model.Quest{
		QuestID:          uuid.New(),
		CreatorAddress:   "0xcreator",
		Mode:             model.DistributionRaffle,
		WinnerSlots:      slots,
		PrizeSchedule:    schedule,
		DepositedAmount:  sumSchedule(schedule),
		State:            model.QuestStateActive,
		RaffleCommitment: []byte("commitment-fedcba9876543210aabbcc"),
		ExpiryTime:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sumSchedule(schedule []int64) int64 {
	var sum int64
	for _, a := range schedule {
		sum += a
	}
	return sum
}

func newRaffleFixture(quest *model.Quest, entries []string) (*RaffleService, *questWorld) {
	world := newQuestWorld(quest)
	for _, user := range entries {
		_ = world.AddRaffleEntry(context.Background(), quest.QuestID, user)
	}
	svc := NewRaffleService(world, world, nil)
	svc.now = func() time.Time { return quest.ExpiryTime.Add(time.Minute) }
	return svc, world
}

func poolOf(n int) []string {
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("0xentrant%02d", i)
	}
	return users
}

func TestDrawWinnersDeterministic(t *testing.T) {
	quest := raffleQuest(3, []int64{50, 30, 20})
	entries := poolOf(10)

	first := drawWinners(quest, entries)
	second := drawWinners(quest, entries)
	assert.Equal(t, first, second)

	// The outcome depends on the pool's contents, not on the order the
	// storage layer happened to return it in.
	reversed := make([]string, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}
	assert.Equal(t, first, drawWinners(quest, reversed))
}

func TestDrawWinnersDistinctAndPositioned(t *testing.T) {
	quest := raffleQuest(3, []int64{50, 30, 20})
	winners := drawWinners(quest, poolOf(10))

	assert.Len(t, winners, 3)
	seen := make(map[string]bool)
	for i, w := range winners {
		assert.Equal(t, i, w.Position)
		assert.False(t, seen[w.UserAddress], "winner %s drawn twice", w.UserAddress)
		seen[w.UserAddress] = true
	}
}

func TestDrawWinnersSmallPool(t *testing.T) {
	quest := raffleQuest(5, []int64{50, 20, 15, 10, 5})
	winners := drawWinners(quest, poolOf(2))

	assert.Len(t, winners, 2)
	assert.Equal(t, 0, winners[0].Position)
	assert.Equal(t, 1, winners[1].Position)
}

func TestRaffleServiceSelectWinnersRecordsDrawOnce(t *testing.T) {
	quest := raffleQuest(2, []int64{60, 40})
	svc, world := newRaffleFixture(quest, poolOf(6))

	first, err := svc.SelectWinners(context.Background(), quest.QuestID)
	assert.NoError(t, err)
	assert.Len(t, first.Winners, 2)
	assert.Equal(t, 6, first.PoolSize)
	assert.NotNil(t, world.draw)

	second, err := svc.SelectWinners(context.Background(), quest.QuestID)
	assert.NoError(t, err)
	assert.Equal(t, first.Winners, second.Winners)
}

func TestRaffleServiceSelectWinnersEmptyPool(t *testing.T) {
	quest := raffleQuest(2, []int64{60, 40})
	svc, _ := newRaffleFixture(quest, nil)

	draw, err := svc.SelectWinners(context.Background(), quest.QuestID)
	assert.NoError(t, err)
	assert.Empty(t, draw.Winners)
	assert.Equal(t, 0, draw.PoolSize)
}

func TestRaffleServiceRefusesBeforeExpiry(t *testing.T) {
	quest := raffleQuest(2, []int64{60, 40})
	svc, world := newRaffleFixture(quest, poolOf(4))
	svc.now = func() time.Time { return quest.ExpiryTime.Add(-time.Minute) }

	_, err := svc.SelectWinners(context.Background(), quest.QuestID)
	assert.ErrorIs(t, err, ErrQuestStillActive)
	assert.Nil(t, world.draw)
}

func TestRaffleServiceRefusesFCFSQuest(t *testing.T) {
	quest := fcfsQuest(2, []int64{60, 40}, 100, 0)
	svc, _ := newRaffleFixture(quest, poolOf(4))

	_, err := svc.SelectWinners(context.Background(), quest.QuestID)
	assert.ErrorIs(t, err, ErrNotRaffleQuest)
}
