package app

import (
	"context"
	"errors"
	"sync"

	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

// TicketRegistry is the part of the registry the market depends on. Its
// TxScope must match the market repository's so that a sale commits as one
// transaction.
type TicketRegistry interface {
	TxScoper
	Address() domain.Account
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
	IsTicketValid(ctx context.Context, ticketID int64) (bool, error)
	IsApproved(ctx context.Context, ticketID int64, operator domain.Account) (bool, error)
	TransferTicket(ctx context.Context, in TransferTicketInput) error
}

type MarketRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetListing(ctx context.Context, ticketID int64) (domain.Listing, error)
	// SaveListing inserts or replaces the listing for its ticket.
	SaveListing(ctx context.Context, listing domain.Listing) error
	// CloseListing deactivates the listing if it is still active with the
	// same seller and price, otherwise it returns ErrNoActiveListing.
	CloseListing(ctx context.Context, listing domain.Listing) error
}

type MarketConfig struct {
	Address domain.Account
	// RoyaltyBeneficiary receives the royalty of every sale. It must be an
	// account other than Address.
	RoyaltyBeneficiary domain.Account
}

// MarketService runs the resale market. Buyers pay the market address, which
// settles seller proceeds, royalty and refund in the same transaction as the
// ticket transfer.
type MarketService struct {
	address     domain.Account
	beneficiary domain.Account
	repo        MarketRepository
	ledger      LedgerRepository
	access      *AccessControl
	exec        *executor

	mu       sync.RWMutex
	registry TicketRegistry
}

// NewMarketService fails with ErrInvalidAccount for a missing address or
// beneficiary, and with ErrForeignRegistry when registry and repo do not
// share transactions.
func NewMarketService(
	cfg MarketConfig,
	registry TicketRegistry,
	repo MarketRepository,
	ledger LedgerRepository,
	access *AccessControl,
	clk clock.Clock,
	opts ...Option,
) (*MarketService, error) {
	if cfg.Address == "" || cfg.RoyaltyBeneficiary == "" || cfg.RoyaltyBeneficiary == cfg.Address {
		return nil, domain.ErrInvalidAccount
	}
	if registry == nil || txScope(registry) != txScope(repo) {
		return nil, domain.ErrForeignRegistry
	}
	return &MarketService{
		address:     cfg.Address,
		beneficiary: cfg.RoyaltyBeneficiary,
		repo:        repo,
		ledger:      ledger,
		access:      access,
		exec:        newExecutor(cfg.Address, repo, ledger, clk, buildOptions(opts)),
		registry:    registry,
	}, nil
}

func (s *MarketService) Address() domain.Account {
	return s.address
}

func (s *MarketService) Access() *AccessControl {
	return s.access
}

func (s *MarketService) currentRegistry() TicketRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// RegistryAddress is the address of the registry the market currently trades.
func (s *MarketService) RegistryAddress() domain.Account {
	return s.currentRegistry().Address()
}

func (s *MarketService) RoyaltyBeneficiary() domain.Account {
	return s.beneficiary
}

type ListTicketInput struct {
	Seller   domain.Account
	TicketID int64
	Price    domain.Amount
}

// ListTicket offers the seller's ticket for resale. Listing again replaces
// the previous listing for the ticket.
func (s *MarketService) ListTicket(ctx context.Context, in ListTicketInput) (domain.Listing, error) {
	var listing domain.Listing
	err := s.exec.run(ctx, "market.ListTicket", func(ctx context.Context) (*transition, error) {
		registry := s.currentRegistry()
		ticket, err := registry.GetTicket(ctx, in.TicketID)
		if err != nil {
			return nil, err
		}
		if in.Seller == "" || ticket.Owner != in.Seller {
			return nil, domain.ErrNotOwner
		}
		valid, err := registry.IsTicketValid(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, domain.ErrTicketNotValid
		}
		if in.Price < 0 {
			return nil, domain.ErrInvalidAmount
		}
		if in.Price > ResalePriceCap(ticket.PurchasePrice) {
			return nil, domain.ErrPriceTooHigh
		}
		approved, err := registry.IsApproved(ctx, ticket.ID, s.address)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, domain.ErrMarketNotApproved
		}

		listing = domain.Listing{
			TicketID: ticket.ID,
			Seller:   in.Seller,
			Price:    in.Price,
			Active:   true,
		}
		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.SaveListing(ctx, listing)
		}}
		t.notify(domain.Notification{Kind: domain.KindTicketListed, TicketID: ticket.ID, EventID: ticket.EventID, Account: in.Seller, Amount: in.Price})
		return t, nil
	})
	if err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}

type PurchaseListingInput struct {
	Buyer    domain.Account
	TicketID int64
	Payment  domain.Amount
}

type SaleResult struct {
	Listing        domain.Listing
	Royalty        domain.Amount
	SellerProceeds domain.Amount
	Refund         domain.Amount
}

// PurchaseListing buys an active listing. The ticket is moved and the
// listing closed before any funds leave the market.
func (s *MarketService) PurchaseListing(ctx context.Context, in PurchaseListingInput) (SaleResult, error) {
	var result SaleResult
	err := s.exec.run(ctx, "market.PurchaseListing", func(ctx context.Context) (*transition, error) {
		if in.Buyer == "" {
			return nil, domain.ErrInvalidAccount
		}
		if in.Payment < 0 {
			return nil, domain.ErrInvalidAmount
		}
		registry := s.currentRegistry()
		listing, err := s.repo.GetListing(ctx, in.TicketID)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownListing) {
				return nil, domain.ErrNoActiveListing
			}
			return nil, err
		}
		if !listing.Active {
			return nil, domain.ErrNoActiveListing
		}
		valid, err := registry.IsTicketValid(ctx, listing.TicketID)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, domain.ErrTicketNoLongerValid
		}
		ticket, err := registry.GetTicket(ctx, listing.TicketID)
		if err != nil {
			return nil, err
		}
		if in.Payment < listing.Price {
			return nil, domain.ErrInsufficientPayment
		}
		funds, err := s.ledger.Balance(ctx, in.Buyer)
		if err != nil {
			return nil, err
		}
		if funds < in.Payment {
			return nil, domain.ErrInsufficientFunds
		}

		royalty := Royalty(listing.Price)
		closed := listing
		closed.Active = false
		result = SaleResult{
			Listing:        closed,
			Royalty:        royalty,
			SellerProceeds: listing.Price - royalty,
			Refund:         in.Payment - listing.Price,
		}

		// The ticket row is locked before the listing row.
		t := &transition{apply: func(ctx context.Context) error {
			err := registry.TransferTicket(ctx, TransferTicketInput{
				Caller:   s.address,
				TicketID: listing.TicketID,
				From:     listing.Seller,
				To:       in.Buyer,
			})
			if err != nil {
				return err
			}
			return s.repo.CloseListing(ctx, listing)
		}}
		t.pay(in.Buyer, s.address, in.Payment)
		t.pay(s.address, listing.Seller, result.SellerProceeds)
		t.pay(s.address, s.RoyaltyBeneficiary(), royalty)
		t.pay(s.address, in.Buyer, result.Refund)
		t.notify(domain.Notification{Kind: domain.KindTicketSold, TicketID: listing.TicketID, EventID: ticket.EventID, Account: listing.Seller, Counterparty: in.Buyer, Amount: listing.Price})
		return t, nil
	})
	if err != nil {
		return SaleResult{}, err
	}
	return result, nil
}

// CancelListing deactivates an active listing. Seller or market admin only.
func (s *MarketService) CancelListing(ctx context.Context, caller domain.Account, ticketID int64) error {
	return s.exec.run(ctx, "market.CancelListing", func(ctx context.Context) (*transition, error) {
		listing, err := s.repo.GetListing(ctx, ticketID)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownListing) {
				return nil, domain.ErrNoActiveListing
			}
			return nil, err
		}
		if !listing.Active {
			return nil, domain.ErrNoActiveListing
		}
		if caller == "" {
			return nil, domain.ErrNotSellerOrAdmin
		}
		if caller != listing.Seller {
			admin, err := s.access.HasRole(ctx, domain.RoleAdmin, caller)
			if err != nil {
				return nil, err
			}
			if !admin {
				return nil, domain.ErrNotSellerOrAdmin
			}
		}

		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.CloseListing(ctx, listing)
		}}
		t.notify(domain.Notification{Kind: domain.KindListingCanceled, TicketID: listing.TicketID, Account: listing.Seller, Counterparty: caller})
		return t, nil
	})
}

func (s *MarketService) GetListing(ctx context.Context, ticketID int64) (domain.Listing, error) {
	return s.repo.GetListing(ctx, ticketID)
}

// UpdateRegistry points the market at another registry. Market admin only.
// The registry must share the market's storage. Existing listings are
// revalidated against the new registry when bought.
func (s *MarketService) UpdateRegistry(ctx context.Context, caller domain.Account, registry TicketRegistry) error {
	return s.exec.run(ctx, "market.UpdateRegistry", func(ctx context.Context) (*transition, error) {
		if err := s.access.Require(ctx, caller, domain.RoleAdmin); err != nil {
			return nil, err
		}
		if registry == nil || registry.Address() == "" {
			return nil, domain.ErrInvalidAccount
		}
		if txScope(registry) != txScope(s.repo) {
			return nil, domain.ErrForeignRegistry
		}

		t := &transition{}
		t.onCommit(func() {
			s.mu.Lock()
			s.registry = registry
			s.mu.Unlock()
		})
		t.notify(domain.Notification{Kind: domain.KindRegistryUpdated, Account: caller, Counterparty: registry.Address()})
		return t, nil
	})
}
