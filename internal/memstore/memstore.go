// Package memstore is an in-memory core.Store.
//
// Transactions are serialised by a single mutex. Each one works on a shallow
// copy of the state maps; stored documents are never mutated in place, only
// replaced, so discarding the copy on error rolls everything back.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"crm-workflow/internal/core"
)

type seqKey struct {
	tenantID int64
	prefix   string
	year     int
}

type state struct {
	nextID      int64
	companies   map[int64]core.Company
	quotes      map[int64]core.Quote
	orders      map[int64]core.Order
	invoices    map[int64]core.Invoice
	allocations []core.InvoiceOrderAllocation
	sequences   map[seqKey]int64
	users       map[int64]core.User
}

func (s *state) clone() *state {
	c := &state{
		nextID:      s.nextID,
		companies:   make(map[int64]core.Company, len(s.companies)),
		quotes:      make(map[int64]core.Quote, len(s.quotes)),
		orders:      make(map[int64]core.Order, len(s.orders)),
		invoices:    make(map[int64]core.Invoice, len(s.invoices)),
		allocations: append([]core.InvoiceOrderAllocation(nil), s.allocations...),
		sequences:   make(map[seqKey]int64, len(s.sequences)),
		users:       make(map[int64]core.User, len(s.users)),
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.quotes {
		c.quotes[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store implements core.Store and core.UserStore.
type Store struct {
	mu    sync.Mutex
	state *state
}

var (
	_ core.Store     = (*Store)(nil)
	_ core.UserStore = (*Store)(nil)
)

func New() *Store {
	return &Store{state: (&state{}).clone()}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) WithReadTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &tx{st: s.state.clone(), readOnly: true})
}

// AddCompany seeds a customer and returns it with its id.
func (s *Store) AddCompany(c core.Company) core.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.state.id()
	s.state.companies[c.ID] = c
	return c
}

// AddUser seeds a user and returns it with its id.
func (s *Store) AddUser(u core.User) core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.state.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.state.users[u.ID] = u
	return u
}

// Allocations returns a copy of every allocation row, for assertions.
func (s *Store) Allocations() []core.InvoiceOrderAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.InvoiceOrderAllocation(nil), s.state.allocations...)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.state.users {
		if u.Username == username && u.IsActive {
			user := u
			return &user, nil
		}
	}
	return nil, core.NewNotFound("user", username)
}

func (s *Store) GetByID(ctx context.Context, userID int64) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[userID]
	if !ok {
		return nil, core.NewNotFound("user", userID)
	}
	return &u, nil
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
