package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store backed by a user_credits table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `
SELECT user_id, COALESCE(email, ''), daily_credits_used, daily_reset_at, purchased_credits, updated_at
FROM user_credits
WHERE user_id = $1;
`, userID)

	var acc Account
	if err := row.Scan(&acc.UserID, &acc.Email, &acc.DailyUsed, &acc.ResetAt, &acc.Purchased, &acc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("credit: get account: %w", err)
	}
	return &acc, nil
}

func (s *PostgresStore) Insert(ctx context.Context, acc Account) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO user_credits (user_id, email, daily_credits_used, daily_reset_at, purchased_credits, updated_at)
VALUES ($1, $2, $3, $4, $5, $6);
`, acc.UserID, acc.Email, acc.DailyUsed, acc.ResetAt, acc.Purchased, acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("credit: insert account: %w", err)
	}
	return nil
}

// Update applies the new balances only when updated_at still matches the row
// read at the start of the deduction cycle.
func (s *PostgresStore) Update(ctx context.Context, acc Account, prev Account) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE user_credits
SET email = $2,
    daily_credits_used = $3,
    daily_reset_at = $4,
    purchased_credits = $5,
    updated_at = $6
WHERE user_id = $1
  AND updated_at = $7;
`, acc.UserID, acc.Email, acc.DailyUsed, acc.ResetAt, acc.Purchased, acc.UpdatedAt, prev.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("credit: update account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
