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
)

type escrowAccountRow struct {
	QuestID         uuid.UUID  `db:"quest_id"`
	DepositedAmount int64      `db:"deposited_amount"`
	ReservedAmount  int64      `db:"reserved_amount"`
	ReclaimedAmount int64      `db:"reclaimed_amount"`
	Halted          bool       `db:"halted"`
	ReclaimedAt     *time.Time `db:"reclaimed_at"`
}

func (r *Repository) GetEscrowAccount(ctx context.Context, questID uuid.UUID) (*model.EscrowAccount, error) {
	query, args, err := squirrel.
		Select("quest_id", "deposited_amount", "reserved_amount", "reclaimed_amount", "halted", "reclaimed_at").
		From("escrow_accounts").
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build escrow account query: %w", err)
	}

	var row escrowAccountRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get escrow account: %w", err)
	}

	return &model.EscrowAccount{
		QuestID:         row.QuestID,
		DepositedAmount: row.DepositedAmount,
		ReservedAmount:  row.ReservedAmount,
		ReclaimedAmount: row.ReclaimedAmount,
		Halted:          row.Halted,
		ReclaimedAt:     row.ReclaimedAt,
	}, nil
}

func (r *Repository) CountRemainingSlots(ctx context.Context, questID uuid.UUID) (int, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("prize_slots").
		Where(squirrel.Eq{"quest_id": questID}).
		Where("reserved_by IS NULL").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build remaining slots query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count remaining slots: %w", err)
	}
	return count, nil
}

type unreleasedSlotRow struct {
	QuestID    uuid.UUID  `db:"quest_id"`
	SlotIndex  int        `db:"slot_index"`
	Amount     int64      `db:"amount"`
	ReservedBy *string    `db:"reserved_by"`
	ReservedAt *time.Time `db:"reserved_at"`
}

// ListUnreleasedSlots returns reserved slots whose payment hand-off was
// never recorded. The cutoff keeps grants still in flight out of the
// batch.
func (r *Repository) ListUnreleasedSlots(ctx context.Context, before time.Time) ([]model.PrizeSlot, error) {
	query, args, err := squirrel.
		Select("quest_id", "slot_index", "amount", "reserved_by", "reserved_at").
		From("prize_slots").
		Where("reserved_by IS NOT NULL").
		Where("released_at IS NULL").
		Where(squirrel.Lt{"reserved_at": before}).
		OrderBy("reserved_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unreleased slots query: %w", err)
	}

	var rows []unreleasedSlotRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list unreleased slots: %w", err)
	}

	slots := make([]model.PrizeSlot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, model.PrizeSlot{
			QuestID:    row.QuestID,
			SlotIndex:  row.SlotIndex,
			Amount:     row.Amount,
			ReservedBy: row.ReservedBy,
			ReservedAt: row.ReservedAt,
		})
	}
	return slots, nil
}

// MarkSlotReleased records the hand-off of a reserved slot to the
// payment rail.
func (r *Repository) MarkSlotReleased(ctx context.Context, questID uuid.UUID, slotIndex int, paymentRef string) error {
	query, args, err := squirrel.
		Update("prize_slots").
		Set("released_at", time.Now().UTC()).
		Set("payment_ref", paymentRef).
		Where(squirrel.Eq{
			"quest_id":   questID,
			"slot_index": slotIndex,
		}).
		Where("reserved_by IS NOT NULL").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build release query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark slot released: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ReclaimResidual moves the never-reserved balance to the owner in one
// guarded update. The reclaimed_at IS NULL predicate makes the second
// call a no-op returning zero.
func (r *Repository) ReclaimResidual(ctx context.Context, questID uuid.UUID) (int64, error) {
	query, args, err := squirrel.
		Update("escrow_accounts").
		Set("reclaimed_amount", squirrel.Expr("deposited_amount - reserved_amount")).
		Set("reclaimed_at", time.Now().UTC()).
		Where(squirrel.Eq{"quest_id": questID}).
		Where("reclaimed_at IS NULL").
		Suffix("RETURNING reclaimed_amount").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build reclaim query: %w", err)
	}

	var amount int64
	if err := r.db.GetContext(ctx, &amount, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already reclaimed.
			return 0, nil
		}
		return 0, fmt.Errorf("failed to reclaim residual: %w", err)
	}
	return amount, nil
}
