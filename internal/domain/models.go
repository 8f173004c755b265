package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the role a user holds in the bank.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// User is the subset of a bank user the lending core needs.
// Users are managed elsewhere; this service only reads them.
type User struct {
	ID         uuid.UUID // Unique identifier of the user
	FullName   string    // Display name
	Email      string    // Contact address for notifications
	NationalID string    // Government-issued identifier used for search
	Role       Role      // CLIENT or ADMIN
	Active     bool      // Inactive users cannot receive products
}

// IsEligibleClient reports whether the user may be assigned a loan or a card.
func (u *User) IsEligibleClient() bool {
	return u != nil && u.Role == RoleClient && u.Active
}

// AccountType distinguishes a client's principal account from secondary ones.
type AccountType string

const (
	AccountTypePrincipal AccountType = "PRINCIPAL"
	AccountTypeSecondary AccountType = "SECONDARY"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTypePrincipal || t == AccountTypeSecondary
}

// AccountStatus is the lifecycle state of a savings account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// TransactionType is the direction of a savings ledger entry.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// TransactionOrigin tags what caused a savings ledger entry.
type TransactionOrigin string

const (
	OriginTeller           TransactionOrigin = "TELLER"
	OriginTransfer         TransactionOrigin = "TRANSFER"
	OriginLoan             TransactionOrigin = "LOAN"
	OriginCreditCard       TransactionOrigin = "CREDIT_CARD"
	OriginExternalPay      TransactionOrigin = "EXTERNAL_PAY"
	OriginManualAdjustment TransactionOrigin = "MANUAL_ADJUSTMENT"
	OriginSystem           TransactionOrigin = "SYSTEM"
)

// LedgerEntryStatus is the status of a savings ledger entry.
type LedgerEntryStatus string

const (
	LedgerEntryCompleted LedgerEntryStatus = "COMPLETED"
)

// SavingsAccountTransaction is an immutable savings ledger entry.
type SavingsAccountTransaction struct {
	ID           uuid.UUID         // Unique identifier of the entry
	AccountID    uuid.UUID         // Owning account
	Amount       decimal.Decimal   // Signed amount: positive for credits, negative for debits
	Type         TransactionType   // CREDIT or DEBIT
	Origin       TransactionOrigin // What caused the entry
	Description  string            // Free-form description
	BalanceAfter decimal.Decimal   // Account balance right after the entry
	Status       LedgerEntryStatus // Always COMPLETED for persisted entries
	CreatedAt    time.Time         // When the entry was recorded
}

// CardStatus is the lifecycle state of a credit card.
type CardStatus string

const (
	CardStatusActive    CardStatus = "ACTIVE"
	CardStatusCancelled CardStatus = "CANCELLED"
)

// CardTransactionType is the kind of a card posting.
type CardTransactionType string

const (
	CardTransactionPurchase    CardTransactionType = "PURCHASE"
	CardTransactionCashAdvance CardTransactionType = "CASH_ADVANCE"
	CardTransactionPayment     CardTransactionType = "PAYMENT"
)

// Valid reports whether t is a known card transaction type.
func (t CardTransactionType) Valid() bool {
	switch t {
	case CardTransactionPurchase, CardTransactionCashAdvance, CardTransactionPayment:
		return true
	}
	return false
}

// CardTransactionStatus is the outcome of a card posting attempt.
type CardTransactionStatus string

const (
	CardTransactionApproved CardTransactionStatus = "APPROVED"
	CardTransactionRejected CardTransactionStatus = "REJECTED"
)

// CreditCardTransaction records one posting attempt against a card.
type CreditCardTransaction struct {
	ID          uuid.UUID             // Unique identifier of the attempt
	CardID      uuid.UUID             // Owning card
	Amount      decimal.Decimal       // Positive amount of the attempt
	Description string                // Merchant or teller description
	Type        CardTransactionType   // PURCHASE, CASH_ADVANCE or PAYMENT
	Status      CardTransactionStatus // APPROVED or REJECTED, fixed at creation
	CreatedAt   time.Time             // When the attempt was made
}

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "ACTIVE"
	LoanStatusCompleted  LoanStatus = "COMPLETED"
	LoanStatusDelinquent LoanStatus = "DELINQUENT"
	LoanStatusCancelled  LoanStatus = "CANCELLED"
)

// IsOpen reports whether the loan still occupies the client's single loan
// slot. A delinquent loan is open: it can be cured back to ACTIVE.
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusActive || s == LoanStatusDelinquent
}

// InstallmentStatus is the payment state of a loan installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

// LoanInstallment is one row of a loan's amortization schedule.
type LoanInstallment struct {
	ID        uuid.UUID         // Unique identifier of the installment
	LoanID    uuid.UUID         // Owning loan
	Number    int               // 1-based position in the schedule
	DueDate   time.Time         // Calendar date the installment is due
	Payment   decimal.Decimal   // Total amount due
	Capital   decimal.Decimal   // Capital portion of the payment
	Interest  decimal.Decimal   // Interest portion of the payment
	Remaining decimal.Decimal   // Outstanding capital after this installment
	Status    InstallmentStatus // PENDING, PAID or OVERDUE
	PaidAt    *time.Time        // When the installment was paid (nullable)
}

// IsOverdueOn reports whether a pending installment is past due on the given day.
func (i LoanInstallment) IsOverdueOn(today time.Time) bool {
	return i.Status == InstallmentPending && i.DueDate.Before(today)
}
