package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardNumberLength is the number of digits of a card number.
const CardNumberLength = 16

// CreditCard is a revolving credit line with a debt ledger.
// Debt stays within [0, limit] for every approved posting.
type CreditCard struct {
	id        uuid.UUID
	userID    uuid.UUID
	issuedBy  uuid.UUID
	number    string
	cvcHash   string
	expMonth  int
	expYear   int
	limit     decimal.Decimal
	debt      decimal.Decimal
	status    CardStatus
	createdAt time.Time

	// posting attempts made since the card was loaded, rejected ones included
	attempts []CreditCardTransaction
}

// CreditCardState is the persisted shape of a credit card.
type CreditCardState struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	IssuedBy        uuid.UUID
	Number          string
	CVCHash         string
	ExpirationMonth int
	ExpirationYear  int
	Limit           decimal.Decimal
	Debt            decimal.Decimal
	Status          CardStatus
	CreatedAt       time.Time
}

// NewCreditCardParams carries what is needed to issue a card.
type NewCreditCardParams struct {
	UserID   uuid.UUID
	IssuedBy uuid.UUID
	Number   string
	CVCHash  string
	Limit    decimal.Decimal
	IssuedAt time.Time
}

// NewCreditCard issues an active card with zero debt, valid for three years.
func NewCreditCard(p NewCreditCardParams) (*CreditCard, error) {
	if !ValidAmount(p.Limit) {
		return nil, ErrInvalidLimit
	}
	if len(p.Number) != CardNumberLength {
		return nil, fmt.Errorf("card number must have %d digits, got %d", CardNumberLength, len(p.Number))
	}
	if p.CVCHash == "" {
		return nil, fmt.Errorf("cvc hash is required")
	}

	expires := p.IssuedAt.AddDate(3, 0, 0)
	return &CreditCard{
		id:        uuid.New(),
		userID:    p.UserID,
		issuedBy:  p.IssuedBy,
		number:    p.Number,
		cvcHash:   p.CVCHash,
		expMonth:  int(expires.Month()),
		expYear:   expires.Year(),
		limit:     p.Limit,
		debt:      decimal.Zero,
		status:    CardStatusActive,
		createdAt: p.IssuedAt,
	}, nil
}

// RestoreCreditCard rebuilds a card from persisted state.
func RestoreCreditCard(s CreditCardState) *CreditCard {
	return &CreditCard{
		id:        s.ID,
		userID:    s.UserID,
		issuedBy:  s.IssuedBy,
		number:    s.Number,
		cvcHash:   s.CVCHash,
		expMonth:  s.ExpirationMonth,
		expYear:   s.ExpirationYear,
		limit:     s.Limit,
		debt:      s.Debt,
		status:    s.Status,
		createdAt: s.CreatedAt,
	}
}

// ID returns the unique identifier of the card.
func (c *CreditCard) ID() uuid.UUID { return c.id }

// UserID returns the card holder.
func (c *CreditCard) UserID() uuid.UUID { return c.userID }

// Limit returns the credit limit.
func (c *CreditCard) Limit() decimal.Decimal { return c.limit }

// Debt returns the outstanding debt.
func (c *CreditCard) Debt() decimal.Decimal { return c.debt }

// Status returns ACTIVE or CANCELLED.
func (c *CreditCard) Status() CardStatus { return c.status }

// Available returns the unused part of the credit line.
func (c *CreditCard) Available() decimal.Decimal {
	return c.limit.Sub(c.debt)
}

// Last4 returns the last four digits of the card number.
func (c *CreditCard) Last4() string {
	if len(c.number) < 4 {
		return c.number
	}
	return c.number[len(c.number)-4:]
}

// MaskedNumber hides everything but the last four digits.
func (c *CreditCard) MaskedNumber() string {
	return "**** **** **** " + c.Last4()
}

// State returns the persisted shape of the card.
func (c *CreditCard) State() CreditCardState {
	return CreditCardState{
		ID:              c.id,
		UserID:          c.userID,
		IssuedBy:        c.issuedBy,
		Number:          c.number,
		CVCHash:         c.cvcHash,
		ExpirationMonth: c.expMonth,
		ExpirationYear:  c.expYear,
		Limit:           c.limit,
		Debt:            c.debt,
		Status:          c.status,
		CreatedAt:       c.createdAt,
	}
}

// NewAttempts returns the posting attempts made since the card was loaded.
func (c *CreditCard) NewAttempts() []CreditCardTransaction {
	out := make([]CreditCardTransaction, len(c.attempts))
	copy(out, c.attempts)
	return out
}

// RegisterTransaction posts an attempt against the card.
//
// Payments reduce debt, never below zero. Purchases and cash advances that
// would push debt over the limit come back REJECTED and leave debt as it was;
// the returned error is nil in that case since the rejection is an outcome,
// not a failure.
func (c *CreditCard) RegisterTransaction(txType CardTransactionType, amount decimal.Decimal, description string, at time.Time) (CreditCardTransaction, error) {
	if !txType.Valid() {
		return CreditCardTransaction{}, fmt.Errorf("%w: %q", ErrInvalidTransactionType, txType)
	}
	if !ValidAmount(amount) {
		return CreditCardTransaction{}, ErrInvalidAmount
	}
	if c.status != CardStatusActive {
		return CreditCardTransaction{}, ErrCardNotActive
	}

	tx := CreditCardTransaction{
		ID:          uuid.New(),
		CardID:      c.id,
		Amount:      amount,
		Description: description,
		Type:        txType,
		Status:      CardTransactionApproved,
		CreatedAt:   at,
	}

	switch txType {
	case CardTransactionPayment:
		c.debt = decimal.Max(decimal.Zero, c.debt.Sub(amount))
	default:
		next := c.debt.Add(amount)
		if next.GreaterThan(c.limit) {
			tx.Status = CardTransactionRejected
		} else {
			c.debt = next
		}
	}

	c.attempts = append(c.attempts, tx)
	return tx, nil
}

// ChangeLimit replaces the credit limit. The new limit must cover the current debt.
func (c *CreditCard) ChangeLimit(newLimit decimal.Decimal) error {
	if !ValidAmount(newLimit) {
		return ErrInvalidLimit
	}
	if newLimit.LessThan(c.debt) {
		return ErrLimitBelowDebt
	}
	c.limit = newLimit
	return nil
}

// Cancel closes the card for good. Cards with outstanding debt cannot be cancelled.
func (c *CreditCard) Cancel() error {
	if c.debt.IsPositive() {
		return ErrOutstandingDebt
	}
	c.status = CardStatusCancelled
	return nil
}
