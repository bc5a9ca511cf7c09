package memory

import (
	"context"
	"math"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

func (s *Store) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	var balance domain.Amount
	err := s.do(ctx, func(st *state) error {
		balance = st.balances[account]
		return nil
	})
	return balance, err
}

func (s *Store) Credit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	return s.do(ctx, func(st *state) error {
		if st.balances[account] > math.MaxInt64-amount {
			return domain.ErrInvalidAmount
		}
		st.balances[account] += amount
		return nil
	})
}

func (s *Store) Debit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	return s.do(ctx, func(st *state) error {
		if st.balances[account] < amount {
			return domain.ErrInsufficientFunds
		}
		st.balances[account] -= amount
		return nil
	})
}
