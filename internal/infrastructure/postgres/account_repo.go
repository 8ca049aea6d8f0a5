package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) GetByUID(ctx context.Context, uid string) (*domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, `
		SELECT uid, email, name, tier, created_at, updated_at
		FROM accounts WHERE uid = $1`,
		uid).Scan(&a.UID, &a.Email, &a.Name, &a.Tier, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	var created domain.Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (uid, email, name, tier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE
			SET email = COALESCE(NULLIF(EXCLUDED.email, ''), accounts.email), updated_at = NOW()
		RETURNING uid, email, name, tier, created_at, updated_at`,
		a.UID, a.Email, a.Name, a.Tier,
	).Scan(&created.UID, &created.Email, &created.Name, &created.Tier, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &created, nil
}
