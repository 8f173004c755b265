package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserDirectory resolves bank users. Users are owned by another service.
type UserDirectory interface {
	// GetUser returns the user with the given id or ErrUserNotFound.
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// FindClients returns users with the CLIENT role whose national id
	// contains fragment, active or not. An empty fragment matches every client.
	FindClients(ctx context.Context, nationalIDFragment string) ([]User, error)
}

// SavingsAccountRepository defines data access for savings accounts and their ledger.
type SavingsAccountRepository interface {
	// Create persists a new account.
	// Returns ErrDuplicatePrincipalAccount when the user already has a principal account.
	Create(ctx context.Context, account *SavingsAccount) error

	// GetByID retrieves an account or ErrAccountNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*SavingsAccount, error)

	// Lock retrieves an account and locks it for the rest of the transaction.
	// Must be called within a transaction context.
	Lock(ctx context.Context, id uuid.UUID) (*SavingsAccount, error)

	// LockPrincipal locks the user's principal account.
	// Returns ErrAccountNotFound when the user has none.
	LockPrincipal(ctx context.Context, userID uuid.UUID) (*SavingsAccount, error)

	// Update persists the balance and appends the account's new ledger entries.
	Update(ctx context.Context, account *SavingsAccount) error

	// ListTransactions returns the account's ledger, newest first.
	ListTransactions(ctx context.Context, accountID uuid.UUID) ([]SavingsAccountTransaction, error)

	// NumberExists reports whether an account number is taken.
	NumberExists(ctx context.Context, number string) (bool, error)
}

// LoanFilter narrows loan listings. Empty fields match everything.
type LoanFilter struct {
	UserIDs  []uuid.UUID
	Statuses []LoanStatus
}

// CapitalStats feeds the high-risk decision of a new loan.
type CapitalStats struct {
	AverageActiveCapital decimal.Decimal // Average capital of all ACTIVE loans, zero when there are none
	ClientOutstanding    decimal.Decimal // Capital of the client's ACTIVE and DELINQUENT loans
}

// LoanRepository defines data access for loans and their schedules.
type LoanRepository interface {
	// Create persists a new loan with its installments.
	// Returns ErrDuplicateActiveLoan when the user already has an active loan.
	Create(ctx context.Context, loan *Loan) error

	// GetByID retrieves a loan with its installments or ErrLoanNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)

	// Lock retrieves a loan and locks it for the rest of the transaction.
	// Must be called within a transaction context.
	Lock(ctx context.Context, id uuid.UUID) (*Loan, error)

	// Update persists status and rate and replaces the schedule. Installments
	// are written before the loan row.
	Update(ctx context.Context, loan *Loan) error

	// HasActiveLoan reports whether the user has an open (ACTIVE or
	// DELINQUENT) loan.
	HasActiveLoan(ctx context.Context, userID uuid.UUID) (bool, error)

	// CapitalStats returns the system average and the user's outstanding capital.
	CapitalStats(ctx context.Context, userID uuid.UUID) (CapitalStats, error)

	// LockOverdueCandidates locks every ACTIVE or DELINQUENT loan owning a
	// PENDING installment due before today.
	LockOverdueCandidates(ctx context.Context, today time.Time) ([]*Loan, error)

	// List returns loans matching filter, newest first.
	List(ctx context.Context, filter LoanFilter) ([]*Loan, error)

	// NumberExists reports whether a loan number is taken.
	NumberExists(ctx context.Context, number string) (bool, error)
}

// CardFilter narrows card listings. Empty fields match everything.
type CardFilter struct {
	UserIDs  []uuid.UUID
	Statuses []CardStatus
}

// CreditCardRepository defines data access for credit cards and their postings.
type CreditCardRepository interface {
	// Create persists a new card.
	// Returns ErrDuplicateActiveCard when the user already has an active card.
	Create(ctx context.Context, card *CreditCard) error

	// GetByID retrieves a card or ErrCardNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*CreditCard, error)

	// Lock retrieves a card and locks it for the rest of the transaction.
	// Must be called within a transaction context.
	Lock(ctx context.Context, id uuid.UUID) (*CreditCard, error)

	// Update persists limit, debt and status and appends the card's new posting attempts.
	Update(ctx context.Context, card *CreditCard) error

	// ListTransactions returns every posting attempt of a card, newest first.
	ListTransactions(ctx context.Context, cardID uuid.UUID) ([]CreditCardTransaction, error)

	// HasActiveCard reports whether the user holds an ACTIVE card.
	HasActiveCard(ctx context.Context, userID uuid.UUID) (bool, error)

	// AverageDebt returns the average debt of ACTIVE cards, zero when there are none.
	AverageDebt(ctx context.Context) (decimal.Decimal, error)

	// List returns cards matching filter, newest first.
	List(ctx context.Context, filter CardFilter) ([]*CreditCard, error)

	// NumberExists reports whether a card number is taken.
	NumberExists(ctx context.Context, number string) (bool, error)
}

// TransactionManager defines the interface for managing database transactions.
// This abstraction allows the service layer to work with transactions
// without being coupled to a specific database implementation.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

// NumberSource produces random decimal digit strings for card, account and loan numbers.
type NumberSource interface {
	Digits(n int) (string, error)
}

// Hasher produces a one-way fixed-length hex digest.
type Hasher interface {
	Hash(plain string) string
}

// Notifier delivers client notifications. Delivery is fire-and-forget.
type Notifier interface {
	NotifyCreditLimitChanged(ctx context.Context, email, cardLast4 string, newLimit decimal.Decimal) error
}

// EventPublisher publishes domain events to external systems (e.g. RabbitMQ).
type EventPublisher interface {
	PublishLoanAssigned(ctx context.Context, loan LoanSummary) error
}
