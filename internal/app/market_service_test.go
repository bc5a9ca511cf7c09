package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gurmukh6912/token-entry/internal/domain"
	"github.com/gurmukh6912/token-entry/internal/storage/memory"
)

// listed returns a fixture where alice owns ticket 1 bought at price and has
// listed it at listPrice.
func listed(t *testing.T, price, listPrice domain.Amount) (*fixture, domain.Ticket) {
	t.Helper()
	f := newFixture(t)
	event := f.createEvent(t, 100, 2, price)
	f.fund(t, alice, ether)
	f.fund(t, bob, ether)
	ticket := f.buy(t, alice, event.ID, price)
	f.approveMarket(t, alice)
	if _, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: listPrice}); err != nil {
		t.Fatalf("list ticket: %v", err)
	}
	f.notes.reset()
	return f, ticket
}

func TestMarketService_ListTicket(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, price domain.Amount) (*fixture, domain.Ticket) {
		f := newFixture(t)
		event := f.createEvent(t, 100, 2, price)
		f.fund(t, alice, ether)
		return f, f.buy(t, alice, event.ID, price)
	}

	t.Run("cap is floor of one and a half times the purchase price", func(t *testing.T) {
		f, ticket := setup(t, 3)
		f.approveMarket(t, alice)

		_, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: 5})
		if !errors.Is(err, domain.ErrPriceTooHigh) {
			t.Fatalf("expected ErrPriceTooHigh, got %v", err)
		}
		listing, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: 4})
		if err != nil {
			t.Fatalf("expected listing at cap, got %v", err)
		}
		if !listing.Active || listing.Seller != alice || listing.Price != 4 {
			t.Fatalf("unexpected listing %+v", listing)
		}
	})

	t.Run("relisting replaces the price", func(t *testing.T) {
		f, ticket := setup(t, 100)
		f.approveMarket(t, alice)

		for _, price := range []domain.Amount{150, 120} {
			if _, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: price}); err != nil {
				t.Fatalf("list at %d: %v", price, err)
			}
		}
		got, err := f.market.GetListing(f.ctx, ticket.ID)
		if err != nil {
			t.Fatalf("get listing: %v", err)
		}
		if got.Price != 120 || !got.Active {
			t.Fatalf("expected active listing at 120, got %+v", got)
		}
	})

	t.Run("unknown ticket", func(t *testing.T) {
		f, _ := setup(t, 100)
		_, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: 99, Price: 100})
		if !errors.Is(err, domain.ErrUnknownTicket) {
			t.Fatalf("expected ErrUnknownTicket, got %v", err)
		}
	})

	t.Run("seller must own the ticket", func(t *testing.T) {
		f, ticket := setup(t, 100)
		_, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: mallory, TicketID: ticket.ID, Price: 100})
		if !errors.Is(err, domain.ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("used ticket cannot be listed", func(t *testing.T) {
		f, ticket := setup(t, 100)
		f.approveMarket(t, alice)
		if err := f.registry.UseTicket(f.ctx, deployer, ticket.ID); err != nil {
			t.Fatalf("use: %v", err)
		}
		_, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: 100})
		if !errors.Is(err, domain.ErrTicketNotValid) {
			t.Fatalf("expected ErrTicketNotValid, got %v", err)
		}
	})

	t.Run("market must be approved", func(t *testing.T) {
		f, ticket := setup(t, 100)
		_, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: 100})
		if !errors.Is(err, domain.ErrMarketNotApproved) {
			t.Fatalf("expected ErrMarketNotApproved, got %v", err)
		}

		if err := f.registry.Approve(f.ctx, alice, ticket.ID, marketAddr); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if _, err := f.market.ListTicket(f.ctx, ListTicketInput{Seller: alice, TicketID: ticket.ID, Price: 100}); err != nil {
			t.Fatalf("expected per-ticket approval to suffice, got %v", err)
		}
	})
}

func TestMarketService_PurchaseListing(t *testing.T) {
	t.Parallel()

	t.Run("splits royalty and refunds overpayment", func(t *testing.T) {
		price := 100 * finney
		listPrice := 150 * finney
		f, ticket := listed(t, price, listPrice)

		result, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 200 * finney})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Royalty != 15*finney {
			t.Fatalf("expected royalty 0.015 ether, got %d", result.Royalty)
		}
		if result.SellerProceeds != 135*finney {
			t.Fatalf("expected seller proceeds 0.135 ether, got %d", result.SellerProceeds)
		}
		if result.Refund != 50*finney {
			t.Fatalf("expected refund 0.05 ether, got %d", result.Refund)
		}

		if got := f.balance(t, alice); got != ether-price+135*finney {
			t.Fatalf("unexpected seller balance %d", got)
		}
		if got := f.balance(t, bob); got != ether-listPrice {
			t.Fatalf("unexpected buyer balance %d", got)
		}
		if got := f.balance(t, deployer); got != 15*finney {
			t.Fatalf("unexpected beneficiary balance %d", got)
		}
		if got := f.balance(t, marketAddr); got != 0 {
			t.Fatalf("expected market to hold nothing, got %d", got)
		}

		owner, _ := f.registry.OwnerOf(f.ctx, ticket.ID)
		if owner != bob {
			t.Fatalf("expected owner bob, got %s", owner)
		}
		listing, _ := f.market.GetListing(f.ctx, ticket.ID)
		if listing.Active {
			t.Fatalf("expected listing closed")
		}

		kinds := f.notes.kinds()
		want := []domain.NotificationKind{domain.KindTicketTransferred, domain.KindTicketSold}
		if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
		if f.notes.notes[0].Source != registryAddr || f.notes.notes[1].Source != marketAddr {
			t.Fatalf("unexpected notification sources %+v", f.notes.notes)
		}
		if sold := f.notes.notes[1]; sold.EventID != ticket.EventID || sold.TicketID != ticket.ID {
			t.Fatalf("expected sale notification keyed by event %d, got %+v", ticket.EventID, sold)
		}
	})

	t.Run("zero royalty on tiny price", func(t *testing.T) {
		f, ticket := listed(t, 9, 9)
		result, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 9})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Royalty != 0 || result.SellerProceeds != 9 {
			t.Fatalf("unexpected split %+v", result)
		}
	})

	t.Run("no active listing", func(t *testing.T) {
		f, ticket := listed(t, 100, 100)
		if _, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: 42, Payment: 100}); !errors.Is(err, domain.ErrNoActiveListing) {
			t.Fatalf("expected ErrNoActiveListing for unknown listing, got %v", err)
		}
		if _, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 100}); err != nil {
			t.Fatalf("first purchase: %v", err)
		}
		if _, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 100}); !errors.Is(err, domain.ErrNoActiveListing) {
			t.Fatalf("expected ErrNoActiveListing after sale, got %v", err)
		}
	})

	t.Run("insufficient payment", func(t *testing.T) {
		f, ticket := listed(t, 100, 120)
		_, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 119})
		if !errors.Is(err, domain.ErrInsufficientPayment) {
			t.Fatalf("expected ErrInsufficientPayment, got %v", err)
		}
	})

	invalidations := map[string]func(f *fixture, ticket domain.Ticket) error{
		"event deactivated": func(f *fixture, ticket domain.Ticket) error {
			return f.registry.SetEventStatus(f.ctx, deployer, ticket.EventID, false)
		},
		"window closed": func(f *fixture, ticket domain.Ticket) error {
			f.clock.Advance(48 * time.Hour)
			return nil
		},
		"ticket used": func(f *fixture, ticket domain.Ticket) error {
			return f.registry.UseTicket(f.ctx, deployer, ticket.ID)
		},
	}
	for name, invalidate := range invalidations {
		t.Run("revalidates at purchase when "+name, func(t *testing.T) {
			f, ticket := listed(t, 100, 100)
			if err := invalidate(f, ticket); err != nil {
				t.Fatalf("invalidate: %v", err)
			}
			_, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 100})
			if !errors.Is(err, domain.ErrTicketNoLongerValid) {
				t.Fatalf("expected ErrTicketNoLongerValid, got %v", err)
			}
		})
	}

	t.Run("revoked approval fails the whole purchase", func(t *testing.T) {
		f, ticket := listed(t, 100, 150)
		if err := f.registry.SetApprovalForAll(f.ctx, alice, marketAddr, false); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		f.notes.reset()

		_, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: bob, TicketID: ticket.ID, Payment: 150})
		if !errors.Is(err, domain.ErrNotOwnerOrApproved) {
			t.Fatalf("expected ErrNotOwnerOrApproved, got %v", err)
		}
		if got := f.balance(t, bob); got != ether {
			t.Fatalf("expected buyer untouched, got %d", got)
		}
		if got := f.balance(t, alice); got != ether-100 {
			t.Fatalf("expected seller untouched, got %d", got)
		}
		if got := f.balance(t, deployer); got != 0 {
			t.Fatalf("expected no royalty, got %d", got)
		}
		owner, _ := f.registry.OwnerOf(f.ctx, ticket.ID)
		if owner != alice {
			t.Fatalf("expected owner alice, got %s", owner)
		}
		listing, _ := f.market.GetListing(f.ctx, ticket.ID)
		if !listing.Active {
			t.Fatalf("expected listing to stay active")
		}
		if len(f.notes.kinds()) != 0 {
			t.Fatalf("expected no notifications, got %v", f.notes.kinds())
		}
	})

	t.Run("buyer without funds", func(t *testing.T) {
		f, ticket := listed(t, 100, 100)
		_, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: mallory, TicketID: ticket.ID, Payment: 100})
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		owner, _ := f.registry.OwnerOf(f.ctx, ticket.ID)
		if owner != alice {
			t.Fatalf("expected ownership rolled back, got %s", owner)
		}
	})

	t.Run("unfunded buyer never reaches the registry", func(t *testing.T) {
		f, ticket := listed(t, 100, 150)
		counting := &countingRegistry{RegistryService: f.registry}
		market, err := NewMarketService(MarketConfig{Address: marketAddr, RoyaltyBeneficiary: deployer}, counting, f.store, f.store, f.market.Access(), f.clock)
		if err != nil {
			t.Fatalf("new market: %v", err)
		}

		_, err = market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: mallory, TicketID: ticket.ID, Payment: 150})
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		if counting.transfers != 0 {
			t.Fatalf("expected no transfer attempt, got %d", counting.transfers)
		}
		listing, _ := f.market.GetListing(f.ctx, ticket.ID)
		if !listing.Active {
			t.Fatalf("expected listing to stay active")
		}
	})
}

func TestMarketService_CancelListing(t *testing.T) {
	t.Parallel()

	t.Run("seller cancels", func(t *testing.T) {
		f, ticket := listed(t, 100, 100)
		if err := f.market.CancelListing(f.ctx, alice, ticket.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		listing, err := f.market.GetListing(f.ctx, ticket.ID)
		if err != nil {
			t.Fatalf("listing is kept as history: %v", err)
		}
		if listing.Active || listing.Seller != alice {
			t.Fatalf("unexpected listing %+v", listing)
		}
		if err := f.market.CancelListing(f.ctx, alice, ticket.ID); !errors.Is(err, domain.ErrNoActiveListing) {
			t.Fatalf("expected ErrNoActiveListing, got %v", err)
		}
	})

	t.Run("admin cancels", func(t *testing.T) {
		f, ticket := listed(t, 100, 100)
		if err := f.market.CancelListing(f.ctx, deployer, ticket.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		f, ticket := listed(t, 100, 100)
		if err := f.market.CancelListing(f.ctx, mallory, ticket.ID); !errors.Is(err, domain.ErrNotSellerOrAdmin) {
			t.Fatalf("expected ErrNotSellerOrAdmin, got %v", err)
		}
	})

	t.Run("unknown listing", func(t *testing.T) {
		f := newFixture(t)
		if err := f.market.CancelListing(f.ctx, alice, 5); !errors.Is(err, domain.ErrNoActiveListing) {
			t.Fatalf("expected ErrNoActiveListing, got %v", err)
		}
		if _, err := f.market.GetListing(f.ctx, 5); !errors.Is(err, domain.ErrUnknownListing) {
			t.Fatalf("expected ErrUnknownListing, got %v", err)
		}
	})
}

func TestMarketService_UpdateRegistry(t *testing.T) {
	t.Parallel()

	t.Run("admin swaps to a registry on the same store", func(t *testing.T) {
		f := newFixture(t)
		next := NewRegistryService("registry-v2", f.store, f.store, f.registry.Access(), f.clock)

		if err := f.market.UpdateRegistry(f.ctx, mallory, next); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if f.market.RegistryAddress() != registryAddr {
			t.Fatalf("registry must not change on failure")
		}
		if err := f.market.UpdateRegistry(f.ctx, deployer, next); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.market.RegistryAddress() != "registry-v2" {
			t.Fatalf("expected registry-v2, got %s", f.market.RegistryAddress())
		}
		if f.market.RoyaltyBeneficiary() != deployer {
			t.Fatalf("expected beneficiary deployer, got %s", f.market.RoyaltyBeneficiary())
		}
	})

	t.Run("registry on another store is rejected", func(t *testing.T) {
		f, ticket := listed(t, 100, 150)
		other := memory.NewStore()
		foreign := NewRegistryService("registry-v2", other, other, NewAccessControl(domain.ScopeRegistry, other, f.clock), f.clock)

		if err := f.market.UpdateRegistry(f.ctx, deployer, foreign); !errors.Is(err, domain.ErrForeignRegistry) {
			t.Fatalf("expected ErrForeignRegistry, got %v", err)
		}
		if f.market.RegistryAddress() != registryAddr {
			t.Fatalf("registry must not change, got %s", f.market.RegistryAddress())
		}
		if len(f.notes.kinds()) != 0 {
			t.Fatalf("expected no notifications, got %v", f.notes.kinds())
		}

		_, err := f.market.PurchaseListing(f.ctx, PurchaseListingInput{Buyer: mallory, TicketID: ticket.ID, Payment: 150})
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		owner, _ := f.registry.OwnerOf(f.ctx, ticket.ID)
		if owner != alice {
			t.Fatalf("expected alice to keep the ticket, got %s", owner)
		}
	})

	t.Run("notification follows the swap", func(t *testing.T) {
		f := newFixture(t)
		observer := &registryObserver{}
		market, err := NewMarketService(MarketConfig{Address: marketAddr, RoyaltyBeneficiary: deployer}, f.registry, f.store, f.store, f.market.Access(), f.clock, WithNotifier(observer))
		if err != nil {
			t.Fatalf("new market: %v", err)
		}
		observer.market = market

		next := NewRegistryService("registry-v2", f.store, f.store, f.registry.Access(), f.clock)
		if err := market.UpdateRegistry(f.ctx, deployer, next); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if observer.seen != "registry-v2" {
			t.Fatalf("expected listeners to see registry-v2, got %q", observer.seen)
		}
	})
}

func TestNewMarketService_RejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	access := f.market.Access()

	cases := map[string]MarketConfig{
		"missing address":       {RoyaltyBeneficiary: deployer},
		"missing beneficiary":   {Address: marketAddr},
		"beneficiary is market": {Address: marketAddr, RoyaltyBeneficiary: marketAddr},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewMarketService(cfg, f.registry, f.store, f.store, access, f.clock); !errors.Is(err, domain.ErrInvalidAccount) {
				t.Fatalf("expected ErrInvalidAccount, got %v", err)
			}
		})
	}

	t.Run("registry on another store", func(t *testing.T) {
		other := memory.NewStore()
		foreign := NewRegistryService(registryAddr, other, other, NewAccessControl(domain.ScopeRegistry, other, f.clock), f.clock)
		cfg := MarketConfig{Address: marketAddr, RoyaltyBeneficiary: deployer}
		if _, err := NewMarketService(cfg, foreign, f.store, f.store, access, f.clock); !errors.Is(err, domain.ErrForeignRegistry) {
			t.Fatalf("expected ErrForeignRegistry, got %v", err)
		}
	})
}

// countingRegistry records transfer attempts made through it.
type countingRegistry struct {
	*RegistryService
	transfers int
}

func (r *countingRegistry) TransferTicket(ctx context.Context, in TransferTicketInput) error {
	r.transfers++
	return r.RegistryService.TransferTicket(ctx, in)
}

// registryObserver captures which registry the market trades against when
// registry_updated is delivered.
type registryObserver struct {
	market *MarketService
	seen   domain.Account
}

func (o *registryObserver) Publish(_ context.Context, notes ...domain.Notification) error {
	for _, n := range notes {
		if n.Kind == domain.KindRegistryUpdated {
			o.seen = o.market.RegistryAddress()
		}
	}
	return nil
}
