package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questhub/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type questRow struct {
	QuestID          uuid.UUID     `db:"quest_id"`
	CreatorAddress   string        `db:"creator_address"`
	Title            string        `db:"title"`
	Description      string        `db:"description"`
	Mode             string        `db:"distribution_mode"`
	WinnerSlots      int           `db:"winner_slots"`
	PrizeSchedule    pq.Int64Array `db:"prize_schedule"`
	DepositedAmount  int64         `db:"deposited_amount"`
	RewardPoints     int           `db:"reward_points"`
	ActivationTime   *time.Time    `db:"activation_time"`
	ExpiryTime       time.Time     `db:"expiry_time"`
	GracePeriodSecs  int64         `db:"grace_period_seconds"`
	State            string        `db:"state"`
	RaffleCommitment []byte        `db:"raffle_commitment"`
	CreatedAt        time.Time     `db:"created_at"`
}

type stepRow struct {
	StepID     uuid.UUID `db:"step_id"`
	QuestID    uuid.UUID `db:"quest_id"`
	OrderIndex int       `db:"order_index"`
	Optional   bool      `db:"optional"`
	Title      string    `db:"title"`
	Action     string    `db:"action"`
}

var questColumns = []string{
	"quest_id",
	"creator_address",
	"title",
	"description",
	"distribution_mode",
	"winner_slots",
	"prize_schedule",
	"deposited_amount",
	"reward_points",
	"activation_time",
	"expiry_time",
	"grace_period_seconds",
	"state",
	"raffle_commitment",
	"created_at",
}

func questFromRow(row *questRow, steps []stepRow) *model.Quest {
	quest := &model.Quest{
		QuestID:          row.QuestID,
		CreatorAddress:   row.CreatorAddress,
		Title:            row.Title,
		Description:      row.Description,
		Mode:             model.DistributionMode(row.Mode),
		WinnerSlots:      row.WinnerSlots,
		PrizeSchedule:    []int64(row.PrizeSchedule),
		DepositedAmount:  row.DepositedAmount,
		RewardPoints:     row.RewardPoints,
		ActivationTime:   row.ActivationTime,
		ExpiryTime:       row.ExpiryTime,
		GracePeriod:      time.Duration(row.GracePeriodSecs) * time.Second,
		State:            model.QuestState(row.State),
		RaffleCommitment: row.RaffleCommitment,
		CreatedAt:        row.CreatedAt,
	}

	quest.Steps = make([]model.Step, len(steps))
	for i, s := range steps {
		quest.Steps[i] = model.Step{
			StepID:     s.StepID,
			QuestID:    s.QuestID,
			OrderIndex: s.OrderIndex,
			Optional:   s.Optional,
			Title:      s.Title,
			Action:     s.Action,
		}
	}

	return quest
}

func (r *Repository) CreateQuest(ctx context.Context, quest *model.Quest) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		questQuery, args, err := squirrel.
			Insert("quests").
			SetMap(map[string]interface{}{
				"quest_id":             quest.QuestID,
				"creator_address":      quest.CreatorAddress,
				"title":                quest.Title,
				"description":          quest.Description,
				"distribution_mode":    string(quest.Mode),
				"winner_slots":         quest.WinnerSlots,
				"prize_schedule":       pq.Int64Array(quest.PrizeSchedule),
				"deposited_amount":     quest.DepositedAmount,
				"reward_points":        quest.RewardPoints,
				"expiry_time":          quest.ExpiryTime,
				"grace_period_seconds": int64(quest.GracePeriod / time.Second),
				"state":                string(model.QuestStateDraft),
				"created_at":           time.Now().UTC(),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build quest insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, questQuery, args...); err != nil {
			return fmt.Errorf("failed to insert quest: %w", err)
		}

		if len(quest.Steps) > 0 {
			stepBuilder := squirrel.
				Insert("quest_steps").
				Columns("step_id", "quest_id", "order_index", "optional", "title", "action").
				PlaceholderFormat(squirrel.Dollar)

			for _, step := range quest.Steps {
				stepBuilder = stepBuilder.Values(
					step.StepID, quest.QuestID, step.OrderIndex, step.Optional, step.Title, step.Action)
			}

			stepQuery, stepArgs, err := stepBuilder.ToSql()
			if err != nil {
				return fmt.Errorf("failed to build steps insert query: %w", err)
			}

			if _, err := tx.ExecContext(ctx, stepQuery, stepArgs...); err != nil {
				return fmt.Errorf("failed to insert quest steps: %w", err)
			}
		}

		return nil
	})
}

func (r *Repository) GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	query, args, err := squirrel.
		Select(questColumns...).
		From("quests").
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build quest query: %w", err)
	}

	var row questRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	steps, err := r.getSteps(ctx, questID)
	if err != nil {
		return nil, err
	}

	return questFromRow(&row, steps), nil
}

func (r *Repository) getSteps(ctx context.Context, questID uuid.UUID) ([]stepRow, error) {
	query, args, err := squirrel.
		Select("step_id", "quest_id", "order_index", "optional", "title", "action").
		From("quest_steps").
		Where(squirrel.Eq{"quest_id": questID}).
		OrderBy("order_index").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build steps query: %w", err)
	}

	var steps []stepRow
	if err := r.db.SelectContext(ctx, &steps, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get quest steps: %w", err)
	}
	return steps, nil
}

func (r *Repository) GetStep(ctx context.Context, stepID uuid.UUID) (*model.Step, error) {
	query, args, err := squirrel.
		Select("step_id", "quest_id", "order_index", "optional", "title", "action").
		From("quest_steps").
		Where(squirrel.Eq{"step_id": stepID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build step query: %w", err)
	}

	var row stepRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get step: %w", err)
	}

	return &model.Step{
		StepID:     row.StepID,
		QuestID:    row.QuestID,
		OrderIndex: row.OrderIndex,
		Optional:   row.Optional,
		Title:      row.Title,
		Action:     row.Action,
	}, nil
}

func (r *Repository) ListQuests(ctx context.Context) ([]*model.Quest, error) {
	query, args, err := squirrel.
		Select(questColumns...).
		From("quests").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build quests query: %w", err)
	}

	var rows []questRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}

	quests := make([]*model.Quest, len(rows))
	for i := range rows {
		steps, err := r.getSteps(ctx, rows[i].QuestID)
		if err != nil {
			return nil, err
		}
		quests[i] = questFromRow(&rows[i], steps)
	}
	return quests, nil
}

// ActivateQuest flips a draft quest to ACTIVE and seeds its escrow
// account and prize slots in one transaction. The state guard on the
// update makes a double publish a no-op error rather than a re-seed.
func (r *Repository) ActivateQuest(ctx context.Context, quest *model.Quest, activatedAt time.Time) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		updateQuery, args, err := squirrel.
			Update("quests").
			Set("state", string(model.QuestStateActive)).
			Set("activation_time", activatedAt).
			Set("raffle_commitment", quest.RaffleCommitment).
			Where(squirrel.Eq{
				"quest_id": quest.QuestID,
				"state":    string(model.QuestStateDraft),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build activation query: %w", err)
		}

		result, err := tx.ExecContext(ctx, updateQuery, args...)
		if err != nil {
			return fmt.Errorf("failed to activate quest: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return ErrQuestNotDraft
		}

		accountQuery, accountArgs, err := squirrel.
			Insert("escrow_accounts").
			SetMap(map[string]interface{}{
				"quest_id":         quest.QuestID,
				"deposited_amount": quest.DepositedAmount,
				"reserved_amount":  0,
				"reclaimed_amount": 0,
				"halted":           false,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build escrow account query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, accountQuery, accountArgs...); err != nil {
			return fmt.Errorf("failed to create escrow account: %w", err)
		}

		slotBuilder := squirrel.
			Insert("prize_slots").
			Columns("quest_id", "slot_index", "amount").
			PlaceholderFormat(squirrel.Dollar)

		for i, amount := range quest.PrizeSchedule {
			slotBuilder = slotBuilder.Values(quest.QuestID, i, amount)
		}

		slotQuery, slotArgs, err := slotBuilder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build prize slots query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, slotQuery, slotArgs...); err != nil {
			return fmt.Errorf("failed to create prize slots: %w", err)
		}

		return nil
	})
}

func (r *Repository) CloseQuest(ctx context.Context, questID uuid.UUID) error {
	query, args, err := squirrel.
		Update("quests").
		Set("state", string(model.QuestStateClosed)).
		Where(squirrel.Eq{"quest_id": questID}).
		Where(squirrel.NotEq{"state": string(model.QuestStateClosed)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build close query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to close quest: %w", err)
	}
	return nil
}

// ListQuestsDueForDraw returns active raffle quests past expiry that
// have no recorded draw yet.
func (r *Repository) ListQuestsDueForDraw(ctx context.Context, now time.Time) ([]*model.Quest, error) {
	cols := make([]string, len(questColumns))
	for i, c := range questColumns {
		cols[i] = "q." + c
	}

	query, args, err := squirrel.
		Select(cols...).
		From("quests q").
		LeftJoin("raffle_draws d ON d.quest_id = q.quest_id").
		Where(squirrel.Eq{
			"q.distribution_mode": string(model.DistributionRaffle),
			"q.state":             string(model.QuestStateActive),
		}).
		Where(squirrel.LtOrEq{"q.expiry_time": now}).
		Where("d.quest_id IS NULL").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build due-for-draw query: %w", err)
	}

	var rows []questRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list quests due for draw: %w", err)
	}

	quests := make([]*model.Quest, len(rows))
	for i := range rows {
		quests[i] = questFromRow(&rows[i], nil)
	}
	return quests, nil
}
