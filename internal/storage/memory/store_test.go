package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

func TestStoreWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Credit(ctx, "alice", 100))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Debit(ctx, "alice", 40))
		require.NoError(t, s.Credit(ctx, "bob", 40))
		_, err := s.NextID(ctx, "tickets")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.Amount(100), balance)

	balance, err = s.Balance(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, balance)

	id, err := s.NextID(ctx, "tickets")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
}

func TestStoreWithTxNested(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.WithTx(ctx, func(ctx context.Context) error {
			return s.Credit(ctx, "alice", 5)
		})
	})
	require.NoError(t, err)

	balance, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.Amount(5), balance)
}

func TestStoreWithTxSerializes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(ctx, func(ctx context.Context) error {
				balance, err := s.Balance(ctx, "alice")
				if err != nil {
					return err
				}
				if balance > 0 {
					return nil
				}
				return s.Credit(ctx, "alice", 1)
			})
		}()
	}
	wg.Wait()

	balance, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.Amount(1), balance)
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.ErrorIs(t, s.Debit(ctx, "alice", 1), domain.ErrInsufficientFunds)
	require.ErrorIs(t, s.Credit(ctx, "alice", -1), domain.ErrInvalidAmount)
	require.NoError(t, s.Credit(ctx, "alice", 10))
	require.NoError(t, s.Debit(ctx, "alice", 10))
	require.ErrorIs(t, s.Debit(ctx, "alice", 1), domain.ErrInsufficientFunds)
}

func TestEventsAndTickets(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetEvent(ctx, 1)
	require.ErrorIs(t, err, domain.ErrUnknownEvent)
	require.ErrorIs(t, s.CreateTicket(ctx, domain.Ticket{ID: 1, EventID: 1}), domain.ErrUnknownEvent)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := domain.Event{ID: 1, Name: "show", UnitPrice: 10, TotalSupply: 2, MaxPerBuyer: 1, StartTime: start, EndTime: start.Add(time.Hour), Active: true}
	require.NoError(t, s.CreateEvent(ctx, event))
	require.NoError(t, s.IncrementTicketsSold(ctx, 1))
	require.NoError(t, s.SetEventActive(ctx, 1, false))

	got, err := s.GetEvent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.TicketsSold)
	require.False(t, got.Active)

	require.NoError(t, s.CreateTicket(ctx, domain.Ticket{ID: 7, EventID: 1, Owner: "alice", PurchasePrice: 10}))
	require.NoError(t, s.SetTicketApproval(ctx, 7, "market"))
	require.NoError(t, s.SetTicketOwner(ctx, 7, "bob"))
	require.NoError(t, s.MarkTicketUsed(ctx, 7))

	ticket, err := s.GetTicket(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, domain.Account("bob"), ticket.Owner)
	require.Empty(t, ticket.Approved)
	require.True(t, ticket.Used)

	_, err = s.GetTicket(ctx, 8)
	require.ErrorIs(t, err, domain.ErrUnknownTicket)

	require.NoError(t, s.IncrementPurchaseCount(ctx, 1, "bob"))
	n, err := s.PurchaseCount(ctx, 1, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, s.SetOperatorApproval(ctx, "bob", "market", true))
	ok, err := s.IsOperatorApproved(ctx, "bob", "market")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.SetOperatorApproval(ctx, "bob", "market", false))
	ok, err = s.IsOperatorApproved(ctx, "bob", "market")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCloseListing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetListing(ctx, 1)
	require.ErrorIs(t, err, domain.ErrUnknownListing)

	listing := domain.Listing{TicketID: 1, Seller: "alice", Price: 15, Active: true}
	require.NoError(t, s.SaveListing(ctx, listing))

	stale := listing
	stale.Price = 12
	require.ErrorIs(t, s.CloseListing(ctx, stale), domain.ErrNoActiveListing)

	require.NoError(t, s.CloseListing(ctx, listing))
	require.ErrorIs(t, s.CloseListing(ctx, listing), domain.ErrNoActiveListing)

	got, err := s.GetListing(ctx, 1)
	require.NoError(t, err)
	require.False(t, got.Active)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.AddRoleMember(ctx, domain.ScopeRegistry, domain.RoleAdmin, "alice"))
	require.NoError(t, s.AddRoleMember(ctx, domain.ScopeRegistry, domain.RoleAdmin, "bob"))
	require.NoError(t, s.AddRoleMember(ctx, domain.ScopeMarket, domain.RoleAdmin, "carol"))

	n, err := s.CountRoleMembers(ctx, domain.ScopeRegistry, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ok, err := s.HasRole(ctx, domain.ScopeMarket, domain.RoleAdmin, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RemoveRoleMember(ctx, domain.ScopeRegistry, domain.RoleAdmin, "bob"))
	ok, err = s.HasRole(ctx, domain.ScopeRegistry, domain.RoleAdmin, "bob")
	require.NoError(t, err)
	require.False(t, ok)
}
