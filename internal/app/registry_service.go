package app

import (
	"context"
	"errors"
	"time"

	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

const (
	eventCounter  = "events"
	ticketCounter = "tickets"
)

type RegistryRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	NextID(ctx context.Context, counter string) (int64, error)

	CreateEvent(ctx context.Context, event domain.Event) error
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	GetEventForUpdate(ctx context.Context, id int64) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	SetEventActive(ctx context.Context, id int64, active bool) error
	IncrementTicketsSold(ctx context.Context, id int64) error
	PurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) (int64, error)
	IncrementPurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) error

	CreateTicket(ctx context.Context, ticket domain.Ticket) error
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
	GetTicketForUpdate(ctx context.Context, id int64) (domain.Ticket, error)
	MarkTicketUsed(ctx context.Context, id int64) error
	// SetTicketOwner moves the ticket to owner and clears its approval.
	SetTicketOwner(ctx context.Context, id int64, owner domain.Account) error
	SetTicketApproval(ctx context.Context, id int64, operator domain.Account) error
	SetOperatorApproval(ctx context.Context, owner, operator domain.Account, approved bool) error
	IsOperatorApproved(ctx context.Context, owner, operator domain.Account) (bool, error)
}

// RegistryService owns events and tickets and custodies primary-sale proceeds
// under its own address.
type RegistryService struct {
	address domain.Account
	repo    RegistryRepository
	ledger  LedgerRepository
	access  *AccessControl
	clock   clock.Clock
	exec    *executor
}

func NewRegistryService(
	address domain.Account,
	repo RegistryRepository,
	ledger LedgerRepository,
	access *AccessControl,
	clk clock.Clock,
	opts ...Option,
) *RegistryService {
	return &RegistryService{
		address: address,
		repo:    repo,
		ledger:  ledger,
		access:  access,
		clock:   clk,
		exec:    newExecutor(address, repo, ledger, clk, buildOptions(opts)),
	}
}

func (s *RegistryService) Address() domain.Account {
	return s.address
}

func (s *RegistryService) Access() *AccessControl {
	return s.access
}

// TxScope identifies the storage transactions the registry runs in.
func (s *RegistryService) TxScope() any {
	return txScope(s.repo)
}

type CreateEventInput struct {
	Caller      domain.Account
	Name        string
	UnitPrice   domain.Amount
	TotalSupply int64
	MaxPerBuyer int64
	StartTime   time.Time
	EndTime     time.Time
}

func (s *RegistryService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	var event domain.Event
	err := s.exec.run(ctx, "registry.CreateEvent", func(ctx context.Context) (*transition, error) {
		if err := s.access.Require(ctx, in.Caller, domain.RoleEventManager); err != nil {
			return nil, err
		}
		if in.Name == "" || in.UnitPrice < 0 || in.TotalSupply <= 0 || in.MaxPerBuyer <= 0 {
			return nil, domain.ErrInvalidEvent
		}
		if !in.EndTime.After(in.StartTime) {
			return nil, domain.ErrInvalidSchedule
		}

		t := &transition{}
		t.apply = func(ctx context.Context) error {
			id, err := s.repo.NextID(ctx, eventCounter)
			if err != nil {
				return err
			}
			event = domain.Event{
				ID:          id,
				Name:        in.Name,
				UnitPrice:   in.UnitPrice,
				TotalSupply: in.TotalSupply,
				MaxPerBuyer: in.MaxPerBuyer,
				StartTime:   in.StartTime.UTC(),
				EndTime:     in.EndTime.UTC(),
				Active:      true,
			}
			if err := s.repo.CreateEvent(ctx, event); err != nil {
				return err
			}
			t.notify(domain.Notification{Kind: domain.KindEventCreated, EventID: id, Account: in.Caller, Amount: in.UnitPrice})
			return nil
		}
		return t, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

type PurchaseTicketInput struct {
	Buyer   domain.Account
	EventID int64
	Payment domain.Amount
}

// PurchaseTicket mints a ticket for the buyer. The full payment enters
// custody and the excess over the unit price is refunded in the same
// transaction.
func (s *RegistryService) PurchaseTicket(ctx context.Context, in PurchaseTicketInput) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.exec.run(ctx, "registry.PurchaseTicket", func(ctx context.Context) (*transition, error) {
		if in.Buyer == "" {
			return nil, domain.ErrInvalidAccount
		}
		if in.Payment < 0 {
			return nil, domain.ErrInvalidAmount
		}

		event, err := s.repo.GetEventForUpdate(ctx, in.EventID)
		if err != nil {
			return nil, err
		}
		if !event.Active {
			return nil, domain.ErrEventInactive
		}
		if !event.InWindow(s.clock.Now()) {
			return nil, domain.ErrOutsideWindow
		}
		if event.SoldOut() {
			return nil, domain.ErrSoldOut
		}
		bought, err := s.repo.PurchaseCount(ctx, event.ID, in.Buyer)
		if err != nil {
			return nil, err
		}
		if bought >= event.MaxPerBuyer {
			return nil, domain.ErrBuyerLimitExceeded
		}
		if in.Payment < event.UnitPrice {
			return nil, domain.ErrInsufficientPayment
		}

		t := &transition{}
		t.apply = func(ctx context.Context) error {
			id, err := s.repo.NextID(ctx, ticketCounter)
			if err != nil {
				return err
			}
			ticket = domain.Ticket{
				ID:            id,
				EventID:       event.ID,
				Owner:         in.Buyer,
				PurchasePrice: event.UnitPrice,
			}
			if err := s.repo.CreateTicket(ctx, ticket); err != nil {
				return err
			}
			if err := s.repo.IncrementTicketsSold(ctx, event.ID); err != nil {
				return err
			}
			if err := s.repo.IncrementPurchaseCount(ctx, event.ID, in.Buyer); err != nil {
				return err
			}
			t.notify(domain.Notification{Kind: domain.KindTicketMinted, TicketID: id, EventID: event.ID, Account: in.Buyer, Amount: event.UnitPrice})
			return nil
		}
		t.pay(in.Buyer, s.address, in.Payment)
		t.pay(s.address, in.Buyer, in.Payment-event.UnitPrice)
		return t, nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

// UseTicket marks a ticket as used. Validator only; irreversible.
func (s *RegistryService) UseTicket(ctx context.Context, caller domain.Account, ticketID int64) error {
	return s.exec.run(ctx, "registry.UseTicket", func(ctx context.Context) (*transition, error) {
		if err := s.access.Require(ctx, caller, domain.RoleValidator); err != nil {
			return nil, err
		}
		ticket, err := s.repo.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if ticket.Used {
			return nil, domain.ErrAlreadyUsed
		}

		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.MarkTicketUsed(ctx, ticket.ID)
		}}
		t.notify(domain.Notification{Kind: domain.KindTicketUsed, TicketID: ticket.ID, EventID: ticket.EventID, Account: caller})
		return t, nil
	})
}

// SetEventStatus toggles the active flag. Event manager only.
func (s *RegistryService) SetEventStatus(ctx context.Context, caller domain.Account, eventID int64, active bool) error {
	return s.exec.run(ctx, "registry.SetEventStatus", func(ctx context.Context) (*transition, error) {
		if err := s.access.Require(ctx, caller, domain.RoleEventManager); err != nil {
			return nil, err
		}
		event, err := s.repo.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return nil, err
		}

		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.SetEventActive(ctx, event.ID, active)
		}}
		t.notify(domain.Notification{Kind: domain.KindEventStatusChanged, EventID: event.ID, Account: caller, Flag: active})
		return t, nil
	})
}

// IsTicketValid reports whether the ticket exists, is unused, and its event is
// active and inside its window right now.
func (s *RegistryService) IsTicketValid(ctx context.Context, ticketID int64) (bool, error) {
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTicket) {
			return false, nil
		}
		return false, err
	}
	if ticket.Used {
		return false, nil
	}
	event, err := s.repo.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return false, err
	}
	return event.Active && event.InWindow(s.clock.Now()), nil
}

type TransferTicketInput struct {
	Caller   domain.Account
	TicketID int64
	From     domain.Account
	To       domain.Account
}

// TransferTicket moves a ticket from its owner. The caller must be the owner,
// the ticket's approved account, or an operator approved by the owner.
func (s *RegistryService) TransferTicket(ctx context.Context, in TransferTicketInput) error {
	return s.exec.run(ctx, "registry.TransferTicket", func(ctx context.Context) (*transition, error) {
		if in.To == "" {
			return nil, domain.ErrInvalidAccount
		}
		ticket, err := s.repo.GetTicketForUpdate(ctx, in.TicketID)
		if err != nil {
			return nil, err
		}
		if ticket.Owner != in.From {
			return nil, domain.ErrNotOwnerOrApproved
		}
		ok, err := s.canManage(ctx, ticket, in.Caller, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrNotOwnerOrApproved
		}

		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.SetTicketOwner(ctx, ticket.ID, in.To)
		}}
		t.notify(domain.Notification{Kind: domain.KindTicketTransferred, TicketID: ticket.ID, EventID: ticket.EventID, Account: in.From, Counterparty: in.To})
		return t, nil
	})
}

// Approve lets operator transfer one ticket until its next transfer. An
// empty operator clears the approval.
func (s *RegistryService) Approve(ctx context.Context, caller domain.Account, ticketID int64, operator domain.Account) error {
	return s.exec.run(ctx, "registry.Approve", func(ctx context.Context) (*transition, error) {
		ticket, err := s.repo.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		ok, err := s.canManage(ctx, ticket, caller, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrNotOwnerOrApproved
		}
		if operator == ticket.Owner {
			return nil, domain.ErrInvalidAccount
		}

		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.SetTicketApproval(ctx, ticket.ID, operator)
		}}
		t.notify(domain.Notification{Kind: domain.KindApproval, TicketID: ticket.ID, EventID: ticket.EventID, Account: ticket.Owner, Counterparty: operator})
		return t, nil
	})
}

// SetApprovalForAll lets operator transfer every ticket caller owns.
func (s *RegistryService) SetApprovalForAll(ctx context.Context, caller, operator domain.Account, approved bool) error {
	return s.exec.run(ctx, "registry.SetApprovalForAll", func(ctx context.Context) (*transition, error) {
		if caller == "" || operator == "" || operator == caller {
			return nil, domain.ErrInvalidAccount
		}
		t := &transition{apply: func(ctx context.Context) error {
			return s.repo.SetOperatorApproval(ctx, caller, operator, approved)
		}}
		t.notify(domain.Notification{Kind: domain.KindApprovalForAll, Account: caller, Counterparty: operator, Flag: approved})
		return t, nil
	})
}

// IsApproved reports whether operator may transfer the ticket without being
// its owner.
func (s *RegistryService) IsApproved(ctx context.Context, ticketID int64, operator domain.Account) (bool, error) {
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if operator == "" {
		return false, nil
	}
	if ticket.Approved == operator {
		return true, nil
	}
	return s.repo.IsOperatorApproved(ctx, ticket.Owner, operator)
}

// Withdraw sweeps the whole custody balance to the calling admin.
func (s *RegistryService) Withdraw(ctx context.Context, caller domain.Account) (domain.Amount, error) {
	var swept domain.Amount
	err := s.exec.run(ctx, "registry.Withdraw", func(ctx context.Context) (*transition, error) {
		if err := s.access.Require(ctx, caller, domain.RoleAdmin); err != nil {
			return nil, err
		}
		balance, err := s.ledger.Balance(ctx, s.address)
		if err != nil {
			return nil, err
		}

		t := &transition{}
		t.pay(s.address, caller, balance)
		t.notify(domain.Notification{Kind: domain.KindFundsWithdrawn, Account: caller, Amount: balance})
		swept = balance
		return t, nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

func (s *RegistryService) canManage(ctx context.Context, ticket domain.Ticket, caller domain.Account, allowApproved bool) (bool, error) {
	if caller == "" {
		return false, nil
	}
	if caller == ticket.Owner {
		return true, nil
	}
	if allowApproved && ticket.Approved != "" && ticket.Approved == caller {
		return true, nil
	}
	return s.repo.IsOperatorApproved(ctx, ticket.Owner, caller)
}

func (s *RegistryService) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	return s.repo.GetEvent(ctx, id)
}

func (s *RegistryService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

type EventBasics struct {
	Name        string
	UnitPrice   domain.Amount
	TotalSupply int64
	Active      bool
}

func (s *RegistryService) GetEventBasics(ctx context.Context, id int64) (EventBasics, error) {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return EventBasics{}, err
	}
	return EventBasics{
		Name:        event.Name,
		UnitPrice:   event.UnitPrice,
		TotalSupply: event.TotalSupply,
		Active:      event.Active,
	}, nil
}

type EventTiming struct {
	MaxPerBuyer int64
	StartTime   time.Time
	EndTime     time.Time
	TicketsSold int64
}

func (s *RegistryService) GetEventTiming(ctx context.Context, id int64) (EventTiming, error) {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return EventTiming{}, err
	}
	return EventTiming{
		MaxPerBuyer: event.MaxPerBuyer,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		TicketsSold: event.TicketsSold,
	}, nil
}

func (s *RegistryService) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

func (s *RegistryService) OwnerOf(ctx context.Context, ticketID int64) (domain.Account, error) {
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	return ticket.Owner, nil
}

// PurchaseCount is the number of primary purchases buyer made for the event.
func (s *RegistryService) PurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) (int64, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return 0, err
	}
	return s.repo.PurchaseCount(ctx, eventID, buyer)
}

// CustodyBalance is the amount of primary-sale proceeds awaiting withdrawal.
func (s *RegistryService) CustodyBalance(ctx context.Context) (domain.Amount, error) {
	return s.ledger.Balance(ctx, s.address)
}
