package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gurmukh6912/token-entry/internal/domain"
	"github.com/gurmukh6912/token-entry/internal/testutil"
)

func TestRegistryRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewRegistryRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	t.Run("NextID is gapless across rollbacks", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		boom := errors.New("boom")
		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := repo.NextID(txCtx, "tickets"); err != nil {
				t.Fatalf("next id: %v", err)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		for want := int64(1); want <= 2; want++ {
			id, err := repo.NextID(ctx, "tickets")
			if err != nil {
				t.Fatalf("next id: %v", err)
			}
			if id != want {
				t.Fatalf("expected id %d, got %d", want, id)
			}
		}
		id, err := repo.NextID(ctx, "events")
		if err != nil || id != 1 {
			t.Fatalf("expected independent counter at 1, got %d %v", id, err)
		}
	})

	t.Run("events round trip", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		event := domain.Event{ID: 1, Name: "Concert", UnitPrice: 100, TotalSupply: 2, MaxPerBuyer: 1, StartTime: start, EndTime: end, Active: true}
		if err := repo.CreateEvent(ctx, event); err != nil {
			t.Fatalf("create event: %v", err)
		}
		got, err := repo.GetEvent(ctx, 1)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if !got.StartTime.Equal(start) || !got.EndTime.Equal(end) || got.Name != event.Name || got.TotalSupply != 2 {
			t.Fatalf("unexpected event: %+v", got)
		}

		if _, err := repo.GetEvent(ctx, 2); !errors.Is(err, domain.ErrUnknownEvent) {
			t.Fatalf("expected ErrUnknownEvent, got %v", err)
		}
		if err := repo.SetEventActive(ctx, 2, false); !errors.Is(err, domain.ErrUnknownEvent) {
			t.Fatalf("expected ErrUnknownEvent, got %v", err)
		}

		invalid := event
		invalid.ID = 3
		invalid.EndTime = invalid.StartTime
		if err := repo.CreateEvent(ctx, invalid); !errors.Is(err, domain.ErrInvalidEvent) {
			t.Fatalf("expected ErrInvalidEvent, got %v", err)
		}

		events, err := repo.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list events: %v", err)
		}
		if len(events) != 1 || events[0].ID != 1 {
			t.Fatalf("unexpected events: %+v", events)
		}
	})

	t.Run("tickets sold never exceed supply", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, 1, 1, start, end)

		if err := repo.IncrementTicketsSold(ctx, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
		if err := repo.IncrementTicketsSold(ctx, 1); !errors.Is(err, domain.ErrSoldOut) {
			t.Fatalf("expected ErrSoldOut, got %v", err)
		}
	})

	t.Run("purchase counts", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, 1, 10, start, end)

		for range 2 {
			if err := repo.IncrementPurchaseCount(ctx, 1, "alice"); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}
		n, err := repo.PurchaseCount(ctx, 1, "alice")
		if err != nil || n != 2 {
			t.Fatalf("expected 2, got %d %v", n, err)
		}
		n, err = repo.PurchaseCount(ctx, 1, "bob")
		if err != nil || n != 0 {
			t.Fatalf("expected 0, got %d %v", n, err)
		}
		if err := repo.IncrementPurchaseCount(ctx, 9, "alice"); !errors.Is(err, domain.ErrUnknownEvent) {
			t.Fatalf("expected ErrUnknownEvent, got %v", err)
		}
	})

	t.Run("ticket ownership and approvals", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, 1, 10, start, end)

		if err := repo.CreateTicket(ctx, domain.Ticket{ID: 1, EventID: 9, Owner: "alice"}); !errors.Is(err, domain.ErrUnknownEvent) {
			t.Fatalf("expected ErrUnknownEvent, got %v", err)
		}
		if err := repo.CreateTicket(ctx, domain.Ticket{ID: 1, EventID: 1, Owner: "alice", PurchasePrice: 100}); err != nil {
			t.Fatalf("create ticket: %v", err)
		}

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			ticket, err := repo.GetTicketForUpdate(txCtx, 1)
			if err != nil {
				return err
			}
			if err := repo.SetTicketApproval(txCtx, ticket.ID, "market"); err != nil {
				return err
			}
			return repo.SetTicketOwner(txCtx, ticket.ID, "bob")
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
		if err := repo.MarkTicketUsed(ctx, 1); err != nil {
			t.Fatalf("mark used: %v", err)
		}

		ticket, err := repo.GetTicket(ctx, 1)
		if err != nil {
			t.Fatalf("get ticket: %v", err)
		}
		if ticket.Owner != "bob" || ticket.Approved != "" || !ticket.Used || ticket.PurchasePrice != 100 {
			t.Fatalf("unexpected ticket: %+v", ticket)
		}
		if _, err := repo.GetTicket(ctx, 2); !errors.Is(err, domain.ErrUnknownTicket) {
			t.Fatalf("expected ErrUnknownTicket, got %v", err)
		}
		if err := repo.MarkTicketUsed(ctx, 2); !errors.Is(err, domain.ErrUnknownTicket) {
			t.Fatalf("expected ErrUnknownTicket, got %v", err)
		}

		if err := repo.SetOperatorApproval(ctx, "bob", "market", true); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if err := repo.SetOperatorApproval(ctx, "bob", "market", true); err != nil {
			t.Fatalf("approve twice: %v", err)
		}
		ok, err := repo.IsOperatorApproved(ctx, "bob", "market")
		if err != nil || !ok {
			t.Fatalf("expected approved, got %v %v", ok, err)
		}
		if err := repo.SetOperatorApproval(ctx, "bob", "market", false); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		ok, err = repo.IsOperatorApproved(ctx, "bob", "market")
		if err != nil || ok {
			t.Fatalf("expected revoked, got %v %v", ok, err)
		}
	})
}
