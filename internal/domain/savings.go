package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavingsAccount is a client's savings balance and its ledger.
// The balance only changes through Credit and Debit, each of which appends
// exactly one ledger entry.
type SavingsAccount struct {
	id          uuid.UUID
	userID      uuid.UUID
	number      string
	accountType AccountType
	balance     decimal.Decimal
	status      AccountStatus
	createdAt   time.Time

	// entries appended since the account was loaded
	entries []SavingsAccountTransaction
}

// SavingsAccountState is the persisted shape of a savings account.
type SavingsAccountState struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Number    string
	Type      AccountType
	Balance   decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
}

// NewSavingsAccount opens an empty active account.
func NewSavingsAccount(userID uuid.UUID, number string, accountType AccountType, now time.Time) (*SavingsAccount, error) {
	if !accountType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountType, accountType)
	}
	return &SavingsAccount{
		id:          uuid.New(),
		userID:      userID,
		number:      number,
		accountType: accountType,
		balance:     decimal.Zero,
		status:      AccountStatusActive,
		createdAt:   now,
	}, nil
}

// RestoreSavingsAccount rebuilds an account from persisted state.
func RestoreSavingsAccount(s SavingsAccountState) *SavingsAccount {
	return &SavingsAccount{
		id:          s.ID,
		userID:      s.UserID,
		number:      s.Number,
		accountType: s.Type,
		balance:     s.Balance,
		status:      s.Status,
		createdAt:   s.CreatedAt,
	}
}

// ID returns the unique identifier of the account.
func (a *SavingsAccount) ID() uuid.UUID { return a.id }

// UserID returns the owning client.
func (a *SavingsAccount) UserID() uuid.UUID { return a.userID }

// Number returns the 9-digit account number.
func (a *SavingsAccount) Number() string { return a.number }

// Type returns PRINCIPAL or SECONDARY.
func (a *SavingsAccount) Type() AccountType { return a.accountType }

// Balance returns the current balance.
func (a *SavingsAccount) Balance() decimal.Decimal { return a.balance }

// State returns the persisted shape of the account.
func (a *SavingsAccount) State() SavingsAccountState {
	return SavingsAccountState{
		ID:        a.id,
		UserID:    a.userID,
		Number:    a.number,
		Type:      a.accountType,
		Balance:   a.balance,
		Status:    a.status,
		CreatedAt: a.createdAt,
	}
}

// NewEntries returns the ledger entries appended since the account was loaded.
func (a *SavingsAccount) NewEntries() []SavingsAccountTransaction {
	out := make([]SavingsAccountTransaction, len(a.entries))
	copy(out, a.entries)
	return out
}

// Credit adds amount to the balance and records a CREDIT entry.
func (a *SavingsAccount) Credit(amount decimal.Decimal, description string, origin TransactionOrigin, at time.Time) (SavingsAccountTransaction, error) {
	if err := a.checkMutable(amount); err != nil {
		return SavingsAccountTransaction{}, err
	}

	a.balance = a.balance.Add(amount)
	return a.append(amount, TransactionTypeCredit, description, origin, at), nil
}

// Debit subtracts amount from the balance and records a DEBIT entry.
// The balance is left untouched when it cannot cover amount.
func (a *SavingsAccount) Debit(amount decimal.Decimal, description string, origin TransactionOrigin, at time.Time) (SavingsAccountTransaction, error) {
	if err := a.checkMutable(amount); err != nil {
		return SavingsAccountTransaction{}, err
	}
	if amount.GreaterThan(a.balance) {
		return SavingsAccountTransaction{}, ErrInsufficientFunds
	}

	a.balance = a.balance.Sub(amount)
	return a.append(amount.Neg(), TransactionTypeDebit, description, origin, at), nil
}

func (a *SavingsAccount) checkMutable(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if a.status != AccountStatusActive {
		return ErrAccountNotActive
	}
	return nil
}

func (a *SavingsAccount) append(signed decimal.Decimal, txType TransactionType, description string, origin TransactionOrigin, at time.Time) SavingsAccountTransaction {
	entry := SavingsAccountTransaction{
		ID:           uuid.New(),
		AccountID:    a.id,
		Amount:       signed,
		Type:         txType,
		Origin:       origin,
		Description:  description,
		BalanceAfter: a.balance,
		Status:       LedgerEntryCompleted,
		CreatedAt:    at,
	}
	a.entries = append(a.entries, entry)
	return entry
}
