package app

import (
	"context"

	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

// LedgerRepository stores account balances. Debit must fail with
// ErrInsufficientFunds rather than leave a balance negative.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Balance(ctx context.Context, account domain.Account) (domain.Amount, error)
	Credit(ctx context.Context, account domain.Account, amount domain.Amount) error
	Debit(ctx context.Context, account domain.Account, amount domain.Amount) error
}

// WalletService exposes balances and the funding rail that credits them.
type WalletService struct {
	ledger LedgerRepository
	access *AccessControl
	exec   *executor
}

func NewWalletService(source domain.Account, ledger LedgerRepository, access *AccessControl, clk clock.Clock, opts ...Option) *WalletService {
	return &WalletService{
		ledger: ledger,
		access: access,
		exec:   newExecutor(source, ledger, ledger, clk, buildOptions(opts)),
	}
}

func (s *WalletService) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	if account == "" {
		return 0, domain.ErrInvalidAccount
	}
	return s.ledger.Balance(ctx, account)
}

type DepositInput struct {
	Caller  domain.Account
	Account domain.Account
	Amount  domain.Amount
}

// Deposit credits an account from outside the system. Admin only.
func (s *WalletService) Deposit(ctx context.Context, in DepositInput) error {
	return s.exec.run(ctx, "wallet.Deposit", func(ctx context.Context) (*transition, error) {
		if err := s.access.Require(ctx, in.Caller, domain.RoleAdmin); err != nil {
			return nil, err
		}
		if in.Account == "" {
			return nil, domain.ErrInvalidAccount
		}
		if in.Amount <= 0 {
			return nil, domain.ErrInvalidAmount
		}

		t := &transition{apply: func(ctx context.Context) error {
			return s.ledger.Credit(ctx, in.Account, in.Amount)
		}}
		t.notify(domain.Notification{Kind: domain.KindFundsDeposited, Account: in.Account, Counterparty: in.Caller, Amount: in.Amount})
		return t, nil
	})
}
