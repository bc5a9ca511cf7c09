package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

type LedgerRepository struct {
	db
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db{pool: pool}}
}

func (r *LedgerRepository) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	query := `SELECT amount FROM balances WHERE account = $1` + lockClause(ctx, "FOR UPDATE")
	var amount domain.Amount
	if err := r.queryRow(ctx, query, account).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return amount, nil
}

func (r *LedgerRepository) Credit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	const stmt = `
INSERT INTO balances (account, amount) VALUES ($1, $2)
ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`

	if _, err := r.exec(ctx, stmt, account, amount); err != nil {
		if isNumericOverflow(err) {
			return domain.ErrInvalidAmount
		}
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}

// Debit never lets a balance go negative; a short balance fails with
// ErrInsufficientFunds and changes nothing.
func (r *LedgerRepository) Debit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	const stmt = `UPDATE balances SET amount = amount - $2 WHERE account = $1 AND amount >= $2`

	tag, err := r.exec(ctx, stmt, account, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}
