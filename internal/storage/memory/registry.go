package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	return s.do(ctx, func(st *state) error {
		st.events[event.ID] = event
		return nil
	})
}

func (s *Store) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	var event domain.Event
	err := s.do(ctx, func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return domain.ErrUnknownEvent
		}
		event = e
		return nil
	})
	return event, err
}

// GetEventForUpdate is GetEvent; the transaction already holds the store.
func (s *Store) GetEventForUpdate(ctx context.Context, id int64) (domain.Event, error) {
	return s.GetEvent(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := s.do(ctx, func(st *state) error {
		for _, e := range st.events {
			events = append(events, e)
		}
		return nil
	})
	slices.SortFunc(events, func(a, b domain.Event) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return events, err
}

func (s *Store) SetEventActive(ctx context.Context, id int64, active bool) error {
	return s.updateEvent(ctx, id, func(e *domain.Event) {
		e.Active = active
	})
}

func (s *Store) IncrementTicketsSold(ctx context.Context, id int64) error {
	return s.updateEvent(ctx, id, func(e *domain.Event) {
		e.TicketsSold++
	})
}

func (s *Store) updateEvent(ctx context.Context, id int64, fn func(e *domain.Event)) error {
	return s.do(ctx, func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return domain.ErrUnknownEvent
		}
		fn(&e)
		st.events[id] = e
		return nil
	})
}

func (s *Store) PurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) (int64, error) {
	var n int64
	err := s.do(ctx, func(st *state) error {
		n = st.purchases[purchaseKey{eventID: eventID, buyer: buyer}]
		return nil
	})
	return n, err
}

func (s *Store) IncrementPurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) error {
	return s.do(ctx, func(st *state) error {
		st.purchases[purchaseKey{eventID: eventID, buyer: buyer}]++
		return nil
	})
}

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.events[ticket.EventID]; !ok {
			return domain.ErrUnknownEvent
		}
		st.tickets[ticket.ID] = ticket
		return nil
	})
}

func (s *Store) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.do(ctx, func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return domain.ErrUnknownTicket
		}
		ticket = t
		return nil
	})
	return ticket, err
}

func (s *Store) GetTicketForUpdate(ctx context.Context, id int64) (domain.Ticket, error) {
	return s.GetTicket(ctx, id)
}

func (s *Store) MarkTicketUsed(ctx context.Context, id int64) error {
	return s.updateTicket(ctx, id, func(t *domain.Ticket) {
		t.Used = true
	})
}

func (s *Store) SetTicketOwner(ctx context.Context, id int64, owner domain.Account) error {
	return s.updateTicket(ctx, id, func(t *domain.Ticket) {
		t.Owner = owner
		t.Approved = ""
	})
}

func (s *Store) SetTicketApproval(ctx context.Context, id int64, operator domain.Account) error {
	return s.updateTicket(ctx, id, func(t *domain.Ticket) {
		t.Approved = operator
	})
}

func (s *Store) updateTicket(ctx context.Context, id int64, fn func(t *domain.Ticket)) error {
	return s.do(ctx, func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return domain.ErrUnknownTicket
		}
		fn(&t)
		st.tickets[id] = t
		return nil
	})
}

func (s *Store) SetOperatorApproval(ctx context.Context, owner, operator domain.Account, approved bool) error {
	return s.do(ctx, func(st *state) error {
		key := operatorKey{owner: owner, operator: operator}
		if approved {
			st.operators[key] = true
		} else {
			delete(st.operators, key)
		}
		return nil
	})
}

func (s *Store) IsOperatorApproved(ctx context.Context, owner, operator domain.Account) (bool, error) {
	var ok bool
	err := s.do(ctx, func(st *state) error {
		ok = st.operators[operatorKey{owner: owner, operator: operator}]
		return nil
	})
	return ok, err
}
