package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

var _ repository.CreditRepository = (*pgCreditRepo)(nil)

type pgCreditRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresCreditRepository creates a credit ledger backed by the org_credits table.
func NewPostgresCreditRepository(pool *pgxpool.Pool) repository.CreditRepository {
	return &pgCreditRepo{pool: pool}
}

func (r *pgCreditRepo) CheckQuota(ctx context.Context, orgID string, amount int) (*domain.Quota, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT balance FROM org_credits WHERE org_id = $1`, orgID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		balance = 0
	} else if err != nil {
		return nil, fmt.Errorf("postgres: check quota: %w", err)
	}

	return &domain.Quota{
		Allowed:   balance >= amount,
		Remaining: balance,
		Required:  amount,
	}, nil
}

// Deduct lowers the balance, flooring at zero since the work has already been done.
func (r *pgCreditRepo) Deduct(ctx context.Context, orgID string, amount int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE org_credits
		SET balance = GREATEST(balance - $1, 0), updated_at = now()
		WHERE org_id = $2`, amount, orgID)
	if err != nil {
		return fmt.Errorf("postgres: deduct credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: deduct credits: no ledger for org %s", orgID)
	}
	return nil
}
