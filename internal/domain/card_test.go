package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newCard(t *testing.T, limit, debt string) *CreditCard {
	t.Helper()
	card, err := NewCreditCard(NewCreditCardParams{
		UserID:   uuid.New(),
		IssuedBy: uuid.New(),
		Number:   "4000123412341234",
		CVCHash:  "hash",
		Limit:    dec(limit),
		IssuedAt: testNow,
	})
	if err != nil {
		t.Fatalf("NewCreditCard: %v", err)
	}
	if d := dec(debt); d.IsPositive() {
		st := card.State()
		st.Debt = d
		card = RestoreCreditCard(st)
	}
	return card
}

func TestCreditCard_LimitEnforcement(t *testing.T) {
	card := newCard(t, "1000", "900")

	rejected, err := card.RegisterTransaction(CardTransactionPurchase, dec("150"), "tv", testNow)
	if err != nil {
		t.Fatalf("RegisterTransaction: %v", err)
	}
	if rejected.Status != CardTransactionRejected {
		t.Errorf("expected REJECTED, got %s", rejected.Status)
	}
	if !card.Debt().Equal(dec("900")) {
		t.Errorf("rejected purchase changed debt to %s", card.Debt())
	}

	approved, err := card.RegisterTransaction(CardTransactionPurchase, dec("50"), "book", testNow)
	if err != nil {
		t.Fatalf("RegisterTransaction: %v", err)
	}
	if approved.Status != CardTransactionApproved {
		t.Errorf("expected APPROVED, got %s", approved.Status)
	}
	if !card.Debt().Equal(dec("950")) {
		t.Errorf("expected debt 950, got %s", card.Debt())
	}

	if n := len(card.NewAttempts()); n != 2 {
		t.Errorf("expected both attempts recorded, got %d", n)
	}
}

func TestCreditCard_LimitGrid(t *testing.T) {
	tests := []struct {
		limit, debt, amount string
		txType              CardTransactionType
		wantStatus          CardTransactionStatus
		wantDebt            string
	}{
		{"1000", "0", "1000", CardTransactionPurchase, CardTransactionApproved, "1000"},
		{"1000", "0", "1000.01", CardTransactionPurchase, CardTransactionRejected, "0"},
		{"500", "499.99", "0.01", CardTransactionCashAdvance, CardTransactionApproved, "500"},
		{"500", "499.99", "0.02", CardTransactionCashAdvance, CardTransactionRejected, "499.99"},
		{"500", "300", "100", CardTransactionPayment, CardTransactionApproved, "200"},
		{"500", "300", "300", CardTransactionPayment, CardTransactionApproved, "0"},
		{"500", "300", "450", CardTransactionPayment, CardTransactionApproved, "0"},
		{"500", "0", "10", CardTransactionPayment, CardTransactionApproved, "0"},
	}

	for _, tt := range tests {
		card := newCard(t, tt.limit, tt.debt)
		tx, err := card.RegisterTransaction(tt.txType, dec(tt.amount), "", testNow)
		if err != nil {
			t.Fatalf("%s %s on %s/%s: %v", tt.txType, tt.amount, tt.debt, tt.limit, err)
		}
		if tx.Status != tt.wantStatus {
			t.Errorf("%s %s on %s/%s: status %s, want %s", tt.txType, tt.amount, tt.debt, tt.limit, tx.Status, tt.wantStatus)
		}
		if !card.Debt().Equal(dec(tt.wantDebt)) {
			t.Errorf("%s %s on %s/%s: debt %s, want %s", tt.txType, tt.amount, tt.debt, tt.limit, card.Debt(), tt.wantDebt)
		}
	}
}

func TestCreditCard_CancelledCardRejectsPostings(t *testing.T) {
	card := newCard(t, "1000", "0")
	if err := card.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, err := card.RegisterTransaction(CardTransactionPayment, dec("10"), "", testNow)
	if !errors.Is(err, ErrCardNotActive) {
		t.Errorf("expected ErrCardNotActive, got %v", err)
	}
	if len(card.NewAttempts()) != 0 {
		t.Error("postings on a cancelled card must not be recorded")
	}
}

func TestCreditCard_RegisterTransactionValidation(t *testing.T) {
	card := newCard(t, "1000", "0")

	if _, err := card.RegisterTransaction(CardTransactionPurchase, decimal.Zero, "", testNow); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := card.RegisterTransaction(CardTransactionType("REFUND"), dec("1"), "", testNow); !errors.Is(err, ErrInvalidTransactionType) {
		t.Errorf("expected ErrInvalidTransactionType, got %v", err)
	}
	if _, err := card.RegisterTransaction(CardTransactionPurchase, dec("0.004"), "", testNow); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for a fraction of a cent, got %v", err)
	}
	if !card.Debt().IsZero() || len(card.NewAttempts()) != 0 {
		t.Errorf("invalid postings must leave no trace, debt %s attempts %d", card.Debt(), len(card.NewAttempts()))
	}
}

func TestCreditCard_ChangeLimit(t *testing.T) {
	card := newCard(t, "1000", "600")

	if err := card.ChangeLimit(dec("599.99")); !errors.Is(err, ErrLimitBelowDebt) {
		t.Errorf("expected ErrLimitBelowDebt, got %v", err)
	}
	if !card.Limit().Equal(dec("1000")) {
		t.Errorf("failed change altered limit to %s", card.Limit())
	}

	if err := card.ChangeLimit(dec("600")); err != nil {
		t.Fatalf("ChangeLimit to debt: %v", err)
	}
	if !card.Limit().Equal(dec("600")) {
		t.Errorf("expected limit 600, got %s", card.Limit())
	}
	if err := card.ChangeLimit(dec("0")); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if err := card.ChangeLimit(dec("700.001")); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestCreditCard_Cancel(t *testing.T) {
	card := newCard(t, "1000", "0.01")
	if err := card.Cancel(); !errors.Is(err, ErrOutstandingDebt) {
		t.Fatalf("expected ErrOutstandingDebt, got %v", err)
	}
	if card.Status() != CardStatusActive {
		t.Errorf("failed cancel changed status to %s", card.Status())
	}

	if _, err := card.RegisterTransaction(CardTransactionPayment, dec("0.01"), "", testNow); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := card.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if card.Status() != CardStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", card.Status())
	}
}

func TestNewCreditCard(t *testing.T) {
	card := newCard(t, "2500", "0")
	st := card.State()

	if st.ExpirationYear != 2028 || st.ExpirationMonth != int(time.March) {
		t.Errorf("expected expiration 03/2028, got %02d/%d", st.ExpirationMonth, st.ExpirationYear)
	}
	if card.MaskedNumber() != "**** **** **** 1234" {
		t.Errorf("unexpected mask %q", card.MaskedNumber())
	}
	if card.Last4() != "1234" {
		t.Errorf("unexpected last4 %q", card.Last4())
	}
	if !card.Debt().IsZero() || card.Status() != CardStatusActive {
		t.Errorf("new card should be active with zero debt, got %s/%s", card.Status(), card.Debt())
	}

	_, err := NewCreditCard(NewCreditCardParams{Number: "4000123412341234", CVCHash: "h", Limit: decimal.Zero, IssuedAt: testNow})
	if !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := NewCreditCard(NewCreditCardParams{Number: "1234", CVCHash: "h", Limit: dec("1"), IssuedAt: testNow}); err == nil {
		t.Error("expected error for short card number")
	}
}
