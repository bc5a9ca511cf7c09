// Package memory is the in-process backend used when no database is
// configured. Every transaction holds the store mutex and rolls back to a
// snapshot on error.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

type txKey struct{}

type purchaseKey struct {
	eventID int64
	buyer   domain.Account
}

type operatorKey struct {
	owner    domain.Account
	operator domain.Account
}

type roleKey struct {
	scope   domain.Scope
	role    domain.Role
	account domain.Account
}

type state struct {
	counters  map[string]int64
	events    map[int64]domain.Event
	tickets   map[int64]domain.Ticket
	purchases map[purchaseKey]int64
	operators map[operatorKey]bool
	listings  map[int64]domain.Listing
	balances  map[domain.Account]domain.Amount
	roles     map[roleKey]struct{}
}

func newState() *state {
	return &state{
		counters:  make(map[string]int64),
		events:    make(map[int64]domain.Event),
		tickets:   make(map[int64]domain.Ticket),
		purchases: make(map[purchaseKey]int64),
		operators: make(map[operatorKey]bool),
		listings:  make(map[int64]domain.Listing),
		balances:  make(map[domain.Account]domain.Amount),
		roles:     make(map[roleKey]struct{}),
	}
}

func (st *state) clone() *state {
	return &state{
		counters:  maps.Clone(st.counters),
		events:    maps.Clone(st.events),
		tickets:   maps.Clone(st.tickets),
		purchases: maps.Clone(st.purchases),
		operators: maps.Clone(st.operators),
		listings:  maps.Clone(st.listings),
		balances:  maps.Clone(st.balances),
		roles:     maps.Clone(st.roles),
	}
}

// Store implements every repository interface of the app package over one
// shared state, so a market purchase and the registry transfer it triggers
// commit or roll back together.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// WithTx serializes fn against every other transaction. A context that
// already carries a transaction of this store joins it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// TxScope is the store itself; only its own repositories join its transactions.
func (s *Store) TxScope() any {
	return s
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// do runs fn against the live state, taking the mutex unless ctx is
// already inside a transaction of this store.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) NextID(ctx context.Context, counter string) (int64, error) {
	var id int64
	err := s.do(ctx, func(st *state) error {
		st.counters[counter]++
		id = st.counters[counter]
		return nil
	})
	return id, err
}
