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

type verificationRow struct {
	UserAddress   string     `db:"user_address"`
	StepID        uuid.UUID  `db:"step_id"`
	Status        string     `db:"status"`
	StartedAt     *time.Time `db:"started_at"`
	CooldownUntil *time.Time `db:"cooldown_until"`
	VerifiedAt    *time.Time `db:"verified_at"`
}

func (v *verificationRow) toModel() *model.StepVerification {
	return &model.StepVerification{
		UserAddress:   v.UserAddress,
		StepID:        v.StepID,
		Status:        model.VerificationStatus(v.Status),
		StartedAt:     v.StartedAt,
		CooldownUntil: v.CooldownUntil,
		VerifiedAt:    v.VerifiedAt,
	}
}

func (r *Repository) GetStepVerification(ctx context.Context, userAddress string, stepID uuid.UUID) (*model.StepVerification, error) {
	query, args, err := squirrel.
		Select("user_address", "step_id", "status", "started_at", "cooldown_until", "verified_at").
		From("step_verifications").
		Where(squirrel.Eq{
			"user_address": userAddress,
			"step_id":      stepID,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build verification query: %w", err)
	}

	var row verificationRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get step verification: %w", err)
	}

	return row.toModel(), nil
}

// UpsertStepVerification writes the state machine row for a (user,
// step) pair. A VERIFIED row is never downgraded; the conflict guard
// enforces terminality even if two attempts race.
func (r *Repository) UpsertStepVerification(ctx context.Context, v *model.StepVerification) error {
	query, args, err := squirrel.
		Insert("step_verifications").
		SetMap(map[string]interface{}{
			"user_address":   v.UserAddress,
			"step_id":        v.StepID,
			"status":         string(v.Status),
			"started_at":     v.StartedAt,
			"cooldown_until": v.CooldownUntil,
			"verified_at":    v.VerifiedAt,
		}).
		Suffix(`ON CONFLICT (user_address, step_id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			cooldown_until = EXCLUDED.cooldown_until,
			verified_at = EXCLUDED.verified_at
			WHERE step_verifications.status <> 'VERIFIED'`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build verification upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert step verification: %w", err)
	}
	return nil
}

// GetQuestVerifications loads every stored verification the user has
// for the quest's steps, keyed by step ID.
func (r *Repository) GetQuestVerifications(ctx context.Context, userAddress string, questID uuid.UUID) (map[uuid.UUID]*model.StepVerification, error) {
	query, args, err := squirrel.
		Select("sv.user_address", "sv.step_id", "sv.status", "sv.started_at", "sv.cooldown_until", "sv.verified_at").
		From("step_verifications sv").
		Join("quest_steps qs ON qs.step_id = sv.step_id").
		Where(squirrel.Eq{
			"sv.user_address": userAddress,
			"qs.quest_id":     questID,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build quest verifications query: %w", err)
	}

	var rows []verificationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get quest verifications: %w", err)
	}

	verifications := make(map[uuid.UUID]*model.StepVerification, len(rows))
	for i := range rows {
		verifications[rows[i].StepID] = rows[i].toModel()
	}
	return verifications, nil
}
