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
)

type raffleDrawRow struct {
	QuestID  uuid.UUID `db:"quest_id"`
	DrawnAt  time.Time `db:"drawn_at"`
	PoolSize int       `db:"pool_size"`
}

type raffleWinnerRow struct {
	QuestID     uuid.UUID `db:"quest_id"`
	UserAddress string    `db:"user_address"`
	Position    int       `db:"position"`
}

// AddRaffleEntry registers eligibility. Re-entering is a no-op so a
// repeated pre-expiry claim call stays idempotent.
func (r *Repository) AddRaffleEntry(ctx context.Context, questID uuid.UUID, userAddress string) error {
	query, args, err := squirrel.
		Insert("raffle_entries").
		SetMap(map[string]interface{}{
			"quest_id":     questID,
			"user_address": userAddress,
			"entered_at":   time.Now().UTC(),
		}).
		Suffix("ON CONFLICT (quest_id, user_address) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build raffle entry insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert raffle entry: %w", err)
	}
	return nil
}

func (r *Repository) GetRaffleEntries(ctx context.Context, questID uuid.UUID) ([]string, error) {
	query, args, err := squirrel.
		Select("user_address").
		From("raffle_entries").
		Where(squirrel.Eq{"quest_id": questID}).
		OrderBy("entered_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build raffle entries query: %w", err)
	}

	var entries []string
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get raffle entries: %w", err)
	}
	return entries, nil
}

func (r *Repository) GetRaffleDraw(ctx context.Context, questID uuid.UUID) (*model.RaffleDraw, error) {
	query, args, err := squirrel.
		Select("quest_id", "drawn_at", "pool_size").
		From("raffle_draws").
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build raffle draw query: %w", err)
	}

	var row raffleDrawRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get raffle draw: %w", err)
	}

	winnersQuery, winnersArgs, err := squirrel.
		Select("quest_id", "user_address", "position").
		From("raffle_winners").
		Where(squirrel.Eq{"quest_id": questID}).
		OrderBy("position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build raffle winners query: %w", err)
	}

	var winnerRows []raffleWinnerRow
	if err := r.db.SelectContext(ctx, &winnerRows, winnersQuery, winnersArgs...); err != nil {
		return nil, fmt.Errorf("failed to get raffle winners: %w", err)
	}

	draw := &model.RaffleDraw{
		QuestID:  row.QuestID,
		DrawnAt:  row.DrawnAt,
		PoolSize: row.PoolSize,
		Winners:  make([]model.RaffleWinner, len(winnerRows)),
	}
	for i, w := range winnerRows {
		draw.Winners[i] = model.RaffleWinner{
			QuestID:     w.QuestID,
			UserAddress: w.UserAddress,
			Position:    w.Position,
		}
	}
	return draw, nil
}

// RecordRaffleDraw persists the draw outcome exactly once. A second
// writer hits the quest_id primary key and gets ErrAlreadyDrawn; the
// caller should re-read the stored draw.
func (r *Repository) RecordRaffleDraw(ctx context.Context, draw *model.RaffleDraw) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		drawQuery, drawArgs, err := squirrel.
			Insert("raffle_draws").
			SetMap(map[string]interface{}{
				"quest_id":  draw.QuestID,
				"drawn_at":  draw.DrawnAt,
				"pool_size": draw.PoolSize,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build raffle draw insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, drawQuery, drawArgs...); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyDrawn
			}
			return fmt.Errorf("failed to insert raffle draw: %w", err)
		}

		if len(draw.Winners) == 0 {
			return nil
		}

		winnerBuilder := squirrel.
			Insert("raffle_winners").
			Columns("quest_id", "user_address", "position").
			PlaceholderFormat(squirrel.Dollar)

		for _, w := range draw.Winners {
			winnerBuilder = winnerBuilder.Values(draw.QuestID, w.UserAddress, w.Position)
		}

		winnersQuery, winnersArgs, err := winnerBuilder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build raffle winners insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, winnersQuery, winnersArgs...); err != nil {
			return fmt.Errorf("failed to insert raffle winners: %w", err)
		}

		return nil
	})
}
