package service

import (
	"context"
	"time"

	"questhub/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Slots reserved this recently may still have their grant's payout in
// flight; the retry sweep leaves them alone.
const payoutRetryAge = 5 * time.Minute

// Sweeper periodically finalizes raffle quests whose expiry has passed
// and re-drives payouts that failed at grant time. Lifecycle state is
// always derived lazily from timestamps, so the sweeper only makes
// outcomes visible sooner; nothing depends on it firing on time.
type Sweeper struct {
	quests QuestRepository
	raffle *RaffleService
	escrow *EscrowService

	interval  time.Duration
	scheduler gocron.Scheduler
}

func NewSweeper(quests QuestRepository, raffle *RaffleService, escrow *EscrowService, interval time.Duration) *Sweeper {
	return &Sweeper{
		quests:   quests,
		raffle:   raffle,
		escrow:   escrow,
		interval: interval,
	}
}

func (s *Sweeper) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	s.scheduler = scheduler
	return nil
}

func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

func (s *Sweeper) run() {
	ctx := context.Background()
	log := logger.Logger()

	if err := s.escrow.ReleaseOutstanding(ctx, time.Now().UTC().Add(-payoutRetryAge)); err != nil {
		log.Error("sweeper failed to retry payouts", zap.Error(err))
	}

	due, err := s.quests.ListQuestsDueForDraw(ctx, time.Now().UTC())
	if err != nil {
		log.Error("sweeper failed to list quests due for draw", zap.Error(err))
		return
	}

	for _, quest := range due {
		draw, err := s.raffle.SelectWinners(ctx, quest.QuestID)
		if err != nil {
			log.Error("sweeper failed to draw winners",
				zap.String("quest_id", quest.QuestID.String()), zap.Error(err))
			continue
		}
		log.Info("raffle winners drawn",
			zap.String("quest_id", quest.QuestID.String()),
			zap.Int("winners", len(draw.Winners)),
			zap.Int("pool", draw.PoolSize))
	}
}
