package domain_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/memstore"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeClock returns a settable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// seqNumbers hands out 1, 2, 3... zero-padded to the requested width.
type seqNumbers struct {
	mu   sync.Mutex
	next int
}

func (s *seqNumbers) Digits(n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%0*d", n, s.next), nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(plain string) string { return "hashed:" + plain }

type capturePublisher struct {
	events    chan domain.LoanSummary
	deadlines chan bool
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{events: make(chan domain.LoanSummary, 10), deadlines: make(chan bool, 10)}
}

func (p *capturePublisher) PublishLoanAssigned(ctx context.Context, loan domain.LoanSummary) error {
	_, hasDeadline := ctx.Deadline()
	p.deadlines <- hasDeadline
	p.events <- loan
	return nil
}

type limitNotification struct {
	email, last4 string
	limit        decimal.Decimal
	hasDeadline  bool
}

type captureNotifier struct {
	sent chan limitNotification
	err  error
}

func newCaptureNotifier(err error) *captureNotifier {
	return &captureNotifier{sent: make(chan limitNotification, 10), err: err}
}

func (n *captureNotifier) NotifyCreditLimitChanged(ctx context.Context, email, last4 string, limit decimal.Decimal) error {
	_, hasDeadline := ctx.Deadline()
	n.sent <- limitNotification{email: email, last4: last4, limit: limit, hasDeadline: hasDeadline}
	return n.err
}

// env wires the three services against one in-memory store.
type env struct {
	store     *memstore.Store
	clock     *fakeClock
	publisher *capturePublisher
	notifier  *captureNotifier
	loans     *domain.LoanService
	cards     *domain.CardService
	savings   *domain.SavingsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	clock := &fakeClock{now: time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)}
	numbers := &seqNumbers{}
	e := &env{
		store:     store,
		clock:     clock,
		publisher: newCapturePublisher(),
		notifier:  newCaptureNotifier(nil),
	}
	e.loans = domain.NewLoanService(domain.LoanServiceDeps{
		Users:     store.Users(),
		Accounts:  store.Accounts(),
		Loans:     store.Loans(),
		TxManager: store,
		Clock:     clock,
		Numbers:   numbers,
		Events:    e.publisher,
	})
	e.cards = domain.NewCardService(domain.CardServiceDeps{
		Users:     store.Users(),
		Cards:     store.Cards(),
		TxManager: store,
		Clock:     clock,
		Numbers:   numbers,
		Hasher:    fakeHasher{},
		Notifier:  e.notifier,
	})
	e.savings = domain.NewSavingsService(domain.SavingsServiceDeps{
		Users:     store.Users(),
		Accounts:  store.Accounts(),
		TxManager: store,
		Clock:     clock,
		Numbers:   numbers,
	})
	return e
}

// client registers an active client.
func (e *env) client(name, nationalID string) domain.User {
	u := domain.User{
		ID:         uuid.New(),
		FullName:   name,
		Email:      name + "@example.com",
		NationalID: nationalID,
		Role:       domain.RoleClient,
		Active:     true,
	}
	e.store.AddUser(u)
	return u
}

// funded registers a client with a principal account holding balance.
func (e *env) funded(t *testing.T, name, nationalID, balance string) (domain.User, *domain.SavingsAccountState) {
	t.Helper()
	u := e.client(name, nationalID)
	account, err := e.savings.OpenAccount(context.Background(), u.ID, domain.AccountTypePrincipal, dec(balance))
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	return u, account
}

func (e *env) balance(t *testing.T, accountID uuid.UUID) decimal.Decimal {
	t.Helper()
	details, err := e.savings.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return details.Account.Balance
}
