// Package memstore keeps every lending aggregate in process memory. It backs
// STORAGE=memory deployments and the service tests.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// txKey marks a context that runs inside a Store transaction.
type txKey struct{}

// Store holds in-memory data for users, accounts, loans and cards.
// A transaction holds the store mutex for its whole duration, so
// transactions are fully serialized.
type Store struct {
	mu   sync.Mutex
	data tables
}

type tables struct {
	users      map[uuid.UUID]domain.User
	accounts   map[uuid.UUID]domain.SavingsAccountState
	accountTxs []domain.SavingsAccountTransaction // insertion order
	loans      map[uuid.UUID]domain.LoanState
	cards      map[uuid.UUID]domain.CreditCardState
	cardTxs    []domain.CreditCardTransaction // insertion order
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: tables{
		users:      make(map[uuid.UUID]domain.User),
		accounts:   make(map[uuid.UUID]domain.SavingsAccountState),
		loans:      make(map[uuid.UUID]domain.LoanState),
		cards:      make(map[uuid.UUID]domain.CreditCardState),
	}}
}

func (t tables) clone() tables {
	c := tables{
		users:      make(map[uuid.UUID]domain.User, len(t.users)),
		accounts:   make(map[uuid.UUID]domain.SavingsAccountState, len(t.accounts)),
		accountTxs: append([]domain.SavingsAccountTransaction(nil), t.accountTxs...),
		loans:      make(map[uuid.UUID]domain.LoanState, len(t.loans)),
		cards:      make(map[uuid.UUID]domain.CreditCardState, len(t.cards)),
		cardTxs:    append([]domain.CreditCardTransaction(nil), t.cardTxs...),
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.loans {
		v.Installments = append([]domain.LoanInstallment(nil), v.Installments...)
		c.loans[k] = v
	}
	for k, v := range t.cards {
		c.cards[k] = v
	}
	return c
}

// WithTransaction runs fn with exclusive access to the store. When fn fails
// every change it made is discarded. Nested calls join the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// view runs fn against the tables, taking the mutex unless ctx already holds it.
func (s *Store) view(ctx context.Context, fn func(t *tables) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.data)
}

// AddUser registers a user. Users are owned elsewhere; this is how they get here.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

// Users returns the user directory backed by this store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Accounts returns the savings account repository backed by this store.
func (s *Store) Accounts() *AccountRepository { return &AccountRepository{s: s} }

// Loans returns the loan repository backed by this store.
func (s *Store) Loans() *LoanRepository { return &LoanRepository{s: s} }

// Cards returns the credit card repository backed by this store.
func (s *Store) Cards() *CardRepository { return &CardRepository{s: s} }

// appendNew appends the records whose id is not stored yet; entries are
// immutable, so a record seen twice is the same record.
func appendNew[T any](stored, records []T, id func(T) uuid.UUID) []T {
	for _, r := range records {
		if !slices.ContainsFunc(stored, func(s T) bool { return id(s) == id(r) }) {
			stored = append(stored, r)
		}
	}
	return stored
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
