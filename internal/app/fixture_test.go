package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/domain"
	"github.com/gurmukh6912/token-entry/internal/storage/memory"
)

const (
	deployer     domain.Account = "deployer"
	registryAddr domain.Account = "registry"
	marketAddr   domain.Account = "market"
	alice        domain.Account = "alice"
	bob          domain.Account = "bob"
	mallory      domain.Account = "mallory"

	ether  domain.Amount = 1_000_000_000_000_000_000
	finney domain.Amount = ether / 1000
)

var testNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (r *recordingNotifier) Publish(_ context.Context, notes ...domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notes...)
	return nil
}

func (r *recordingNotifier) kinds() []domain.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.Kind)
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	r.notes = nil
	r.mu.Unlock()
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	clock    *clock.Manual
	notes    *recordingNotifier
	registry *RegistryService
	market   *MarketService
	wallet   *WalletService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLedger(t, nil)
}

// newFixtureWithLedger wires every service over one memory store. A non-nil
// ledger replaces the store's own ledger.
func newFixtureWithLedger(t *testing.T, ledger LedgerRepository) *fixture {
	t.Helper()

	store := memory.NewStore()
	if ledger == nil {
		ledger = store
	}
	clk := clock.NewManual(testNow)
	notes := &recordingNotifier{}
	opts := []Option{WithNotifier(notes)}

	registryAccess := NewAccessControl(domain.ScopeRegistry, store, clk, opts...)
	marketAccess := NewAccessControl(domain.ScopeMarket, store, clk, opts...)
	registry := NewRegistryService(registryAddr, store, ledger, registryAccess, clk, opts...)
	market, err := NewMarketService(MarketConfig{Address: marketAddr, RoyaltyBeneficiary: deployer}, registry, store, ledger, marketAccess, clk, opts...)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	wallet := NewWalletService(registryAddr, ledger, registryAccess, clk, opts...)

	ctx := context.Background()
	if err := registryAccess.Bootstrap(ctx, deployer, domain.RoleEventManager, domain.RoleValidator); err != nil {
		t.Fatalf("bootstrap registry: %v", err)
	}
	if err := marketAccess.Bootstrap(ctx, deployer); err != nil {
		t.Fatalf("bootstrap market: %v", err)
	}
	notes.reset()

	return &fixture{
		ctx:      ctx,
		store:    store,
		clock:    clk,
		notes:    notes,
		registry: registry,
		market:   market,
		wallet:   wallet,
	}
}

func (f *fixture) createEvent(t *testing.T, supply, maxPerBuyer int64, price domain.Amount) domain.Event {
	t.Helper()
	event, err := f.registry.CreateEvent(f.ctx, CreateEventInput{
		Caller:      deployer,
		Name:        "Concert",
		UnitPrice:   price,
		TotalSupply: supply,
		MaxPerBuyer: maxPerBuyer,
		StartTime:   testNow.Add(-time.Hour),
		EndTime:     testNow.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func (f *fixture) fund(t *testing.T, account domain.Account, amount domain.Amount) {
	t.Helper()
	if err := f.wallet.Deposit(f.ctx, DepositInput{Caller: deployer, Account: account, Amount: amount}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (f *fixture) buy(t *testing.T, buyer domain.Account, eventID int64, payment domain.Amount) domain.Ticket {
	t.Helper()
	ticket, err := f.registry.PurchaseTicket(f.ctx, PurchaseTicketInput{Buyer: buyer, EventID: eventID, Payment: payment})
	if err != nil {
		t.Fatalf("purchase ticket: %v", err)
	}
	return ticket
}

func (f *fixture) approveMarket(t *testing.T, owner domain.Account) {
	t.Helper()
	if err := f.registry.SetApprovalForAll(f.ctx, owner, marketAddr, true); err != nil {
		t.Fatalf("approve market: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, account domain.Account) domain.Amount {
	t.Helper()
	b, err := f.wallet.Balance(f.ctx, account)
	if err != nil {
		t.Fatalf("balance %s: %v", account, err)
	}
	return b
}
