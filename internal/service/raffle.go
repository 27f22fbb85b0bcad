package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"questhub/internal/model"
	"questhub/internal/repository"

	"github.com/google/uuid"
)

// RaffleService draws winners for raffle-mode quests after expiry.
// The draw is deterministic given the quest's stored commitment, which
// is generated at publish time and never served before the pool
// closes, so the outcome is replayable but not predictable.
type RaffleService struct {
	raffle RaffleRepository
	quests QuestRepository
	events EventPublisher

	now func() time.Time
}

func NewRaffleService(raffle RaffleRepository, quests QuestRepository, events EventPublisher) *RaffleService {
	return &RaffleService{
		raffle: raffle,
		quests: quests,
		events: events,
		now:    time.Now,
	}
}

// SelectWinners draws min(winnerSlots, |pool|) distinct users
// uniformly without replacement. Once a draw is recorded every later
// call returns the stored result.
func (s *RaffleService) SelectWinners(ctx context.Context, questID uuid.UUID) (*model.RaffleDraw, error) {
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	if quest.Mode != model.DistributionRaffle {
		return nil, ErrNotRaffleQuest
	}

	now := s.now().UTC()
	switch quest.EffectiveState(now) {
	case model.QuestStateExpired, model.QuestStateClosed:
	default:
		return nil, ErrQuestStillActive
	}

	existing, err := s.raffle.GetRaffleDraw(ctx, questID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get raffle draw: %w", err)
	}

	entries, err := s.raffle.GetRaffleEntries(ctx, questID)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle entries: %w", err)
	}

	winners := drawWinners(quest, entries)
	draw := &model.RaffleDraw{
		QuestID:  questID,
		DrawnAt:  now,
		PoolSize: len(entries),
		Winners:  winners,
	}

	if err := s.raffle.RecordRaffleDraw(ctx, draw); err != nil {
		if errors.Is(err, repository.ErrAlreadyDrawn) {
			// Concurrent draw won; the stored outcome is canonical.
			return s.raffle.GetRaffleDraw(ctx, questID)
		}
		return nil, fmt.Errorf("failed to record raffle draw: %w", err)
	}

	if s.events != nil {
		addresses := make([]string, len(winners))
		for i, w := range winners {
			addresses[i] = w.UserAddress
		}
		s.events.Publish("winners_drawn", map[string]any{
			"quest_id": questID.String(),
			"winners":  addresses,
		})
	}

	return draw, nil
}

// drawWinners shuffles a sorted copy of the pool with a seed derived
// from the commitment, so the result does not depend on storage
// iteration order.
func drawWinners(quest *model.Quest, entries []string) []model.RaffleWinner {
	pool := make([]string, len(entries))
	copy(pool, entries)
	sort.Strings(pool)

	rng := rand.New(rand.NewSource(drawSeed(quest)))
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	n := quest.WinnerSlots
	if len(pool) < n {
		n = len(pool)
	}

	winners := make([]model.RaffleWinner, n)
	for i := 0; i < n; i++ {
		winners[i] = model.RaffleWinner{
			QuestID:     quest.QuestID,
			UserAddress: pool[i],
			Position:    i,
		}
	}
	return winners
}

func drawSeed(quest *model.Quest) int64 {
	h := sha256.New()
	h.Write(quest.RaffleCommitment)
	h.Write(quest.QuestID[:])
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
