package repository

import (
	"context"
	"fmt"

	"questhub/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")

	ErrAlreadyClaimed    = errors.New("claim already granted")
	ErrSlotsExhausted    = errors.New("no prize slots remaining")
	ErrEscrowHalted      = errors.New("escrow account halted")
	ErrEscrowReclaimed   = errors.New("escrow residual already reclaimed")
	ErrInvariantViolated = errors.New("escrow reservation exceeds deposit")
	ErrAlreadyDrawn      = errors.New("winners already drawn")
	ErrQuestNotDraft     = errors.New("quest is not in draft state")
)

type Repository struct {
	db *sqlx.DB
}

type Config struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

func New(cfg Config) (*Repository, error) {
	db, err := sqlx.Connect("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger().Info("Connected to database successfully")

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return tx.Commit()
}
