package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questhub/internal/model"
	"questhub/pkg/logger"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const uniqueViolationCode = "23505"

type claimRow struct {
	UserAddress  string    `db:"user_address"`
	QuestID      uuid.UUID `db:"quest_id"`
	SlotIndex    int       `db:"slot_index"`
	PrizeAmount  int64     `db:"prize_amount"`
	PointsAmount int       `db:"points_amount"`
	GrantedAt    time.Time `db:"granted_at"`
}

func (c *claimRow) toModel() *model.ClaimRecord {
	return &model.ClaimRecord{
		UserAddress:  c.UserAddress,
		QuestID:      c.QuestID,
		SlotIndex:    c.SlotIndex,
		PrizeAmount:  c.PrizeAmount,
		PointsAmount: c.PointsAmount,
		GrantedAt:    c.GrantedAt,
	}
}

type accountLockRow struct {
	DepositedAmount int64      `db:"deposited_amount"`
	ReservedAmount  int64      `db:"reserved_amount"`
	ReclaimedAmount int64      `db:"reclaimed_amount"`
	Halted          bool       `db:"halted"`
	ReclaimedAt     *time.Time `db:"reclaimed_at"`
}

type slotPickRow struct {
	SlotIndex int   `db:"slot_index"`
	Amount    int64 `db:"amount"`
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (r *Repository) GetClaim(ctx context.Context, userAddress string, questID uuid.UUID) (*model.ClaimRecord, error) {
	query, args, err := squirrel.
		Select("user_address", "quest_id", "slot_index", "prize_amount", "points_amount", "granted_at").
		From("claim_records").
		Where(squirrel.Eq{
			"user_address": userAddress,
			"quest_id":     questID,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	var row claimRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return row.toModel(), nil
}

// ClaimNextSlot is the FCFS serialization point: one transaction locks
// the quest's escrow account row, picks the lowest unreserved slot,
// reserves it and creates the claim record. The account row lock means
// concurrent claims for the same quest queue here and nowhere else;
// claims for different quests never contend.
func (r *Repository) ClaimNextSlot(ctx context.Context, userAddress string, questID uuid.UUID, points int) (*model.ClaimRecord, error) {
	var record *model.ClaimRecord

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		account, err := lockAccount(ctx, tx, questID)
		if err != nil {
			return err
		}

		slot, err := pickNextSlot(ctx, tx, questID)
		if err != nil {
			return err
		}

		if account.ReservedAmount+account.ReclaimedAmount+slot.Amount > account.DepositedAmount {
			return ErrInvariantViolated
		}

		record, err = reserveAndRecord(ctx, tx, userAddress, questID, slot, points)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvariantViolated) {
			r.haltAccount(ctx, questID)
		}
		return nil, err
	}

	return record, nil
}

// ClaimRaffleSlot reserves the specific slot a drawn winner is
// entitled to. Same locking discipline as ClaimNextSlot.
func (r *Repository) ClaimRaffleSlot(ctx context.Context, userAddress string, questID uuid.UUID, slotIndex, points int) (*model.ClaimRecord, error) {
	var record *model.ClaimRecord

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		account, err := lockAccount(ctx, tx, questID)
		if err != nil {
			return err
		}

		slot, err := pickSlot(ctx, tx, questID, slotIndex)
		if err != nil {
			return err
		}

		if account.ReservedAmount+account.ReclaimedAmount+slot.Amount > account.DepositedAmount {
			return ErrInvariantViolated
		}

		record, err = reserveAndRecord(ctx, tx, userAddress, questID, slot, points)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvariantViolated) {
			r.haltAccount(ctx, questID)
		}
		return nil, err
	}

	return record, nil
}

// CreatePointsOnlyClaim records a points credit with no prize slot
// behind it. Create-if-absent, so a retry cannot double-credit.
func (r *Repository) CreatePointsOnlyClaim(ctx context.Context, userAddress string, questID uuid.UUID, points int) (*model.ClaimRecord, error) {
	query, args, err := squirrel.
		Insert("claim_records").
		SetMap(map[string]interface{}{
			"user_address":  userAddress,
			"quest_id":      questID,
			"slot_index":    model.PointsOnlySlot,
			"prize_amount":  0,
			"points_amount": points,
			"granted_at":    time.Now().UTC(),
		}).
		Suffix("ON CONFLICT (user_address, quest_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build points claim insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert points claim: %w", err)
	}

	return r.GetClaim(ctx, userAddress, questID)
}

func lockAccount(ctx context.Context, tx *sqlx.Tx, questID uuid.UUID) (*accountLockRow, error) {
	query, args, err := squirrel.
		Select("deposited_amount", "reserved_amount", "reclaimed_amount", "halted", "reclaimed_at").
		From("escrow_accounts").
		Where(squirrel.Eq{"quest_id": questID}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build account lock query: %w", err)
	}

	var account accountLockRow
	if err := tx.GetContext(ctx, &account, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock escrow account: %w", err)
	}

	if account.Halted {
		return nil, ErrEscrowHalted
	}
	// Once the residual is reclaimed there is nothing left to back a new
	// reservation, even if the quest row still reads as open.
	if account.ReclaimedAt != nil {
		return nil, ErrEscrowReclaimed
	}
	return &account, nil
}

func pickNextSlot(ctx context.Context, tx *sqlx.Tx, questID uuid.UUID) (*slotPickRow, error) {
	query, args, err := squirrel.
		Select("slot_index", "amount").
		From("prize_slots").
		Where(squirrel.Eq{"quest_id": questID}).
		Where("reserved_by IS NULL").
		OrderBy("slot_index").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slot pick query: %w", err)
	}

	var slot slotPickRow
	if err := tx.GetContext(ctx, &slot, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotsExhausted
		}
		return nil, fmt.Errorf("failed to pick prize slot: %w", err)
	}
	return &slot, nil
}

func pickSlot(ctx context.Context, tx *sqlx.Tx, questID uuid.UUID, slotIndex int) (*slotPickRow, error) {
	query, args, err := squirrel.
		Select("slot_index", "amount").
		From("prize_slots").
		Where(squirrel.Eq{
			"quest_id":   questID,
			"slot_index": slotIndex,
		}).
		Where("reserved_by IS NULL").
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slot query: %w", err)
	}

	var slot slotPickRow
	if err := tx.GetContext(ctx, &slot, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotsExhausted
		}
		return nil, fmt.Errorf("failed to get prize slot: %w", err)
	}
	return &slot, nil
}

func reserveAndRecord(ctx context.Context, tx *sqlx.Tx, userAddress string, questID uuid.UUID, slot *slotPickRow, points int) (*model.ClaimRecord, error) {
	now := time.Now().UTC()

	slotQuery, slotArgs, err := squirrel.
		Update("prize_slots").
		Set("reserved_by", userAddress).
		Set("reserved_at", now).
		Where(squirrel.Eq{
			"quest_id":   questID,
			"slot_index": slot.SlotIndex,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slot reserve query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, slotQuery, slotArgs...); err != nil {
		return nil, fmt.Errorf("failed to reserve prize slot: %w", err)
	}

	accountQuery, accountArgs, err := squirrel.
		Update("escrow_accounts").
		Set("reserved_amount", squirrel.Expr("reserved_amount + ?", slot.Amount)).
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reserved amount query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, accountQuery, accountArgs...); err != nil {
		return nil, fmt.Errorf("failed to update reserved amount: %w", err)
	}

	claimQuery, claimArgs, err := squirrel.
		Insert("claim_records").
		SetMap(map[string]interface{}{
			"user_address":  userAddress,
			"quest_id":      questID,
			"slot_index":    slot.SlotIndex,
			"prize_amount":  slot.Amount,
			"points_amount": points,
			"granted_at":    now,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, claimQuery, claimArgs...); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to insert claim record: %w", err)
	}

	return &model.ClaimRecord{
		UserAddress:  userAddress,
		QuestID:      questID,
		SlotIndex:    slot.SlotIndex,
		PrizeAmount:  slot.Amount,
		PointsAmount: points,
		GrantedAt:    now,
	}, nil
}

// haltAccount runs outside the claiming transaction so the halt
// survives the rollback. Over-reservation means the prize schedule and
// deposit disagree; no further reservations may proceed on the quest.
func (r *Repository) haltAccount(ctx context.Context, questID uuid.UUID) {
	query, args, err := squirrel.
		Update("escrow_accounts").
		Set("halted", true).
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		logger.Logger().Error("failed to build halt query", zap.Error(err))
		return
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		logger.Logger().Error("failed to halt escrow account",
			zap.String("quest_id", questID.String()), zap.Error(err))
	}
}
