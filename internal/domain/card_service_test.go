package domain_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

func TestAssignCard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := e.client("ana", "1-2345")
	admin := uuid.New()

	view, err := e.cards.AssignCard(ctx, client.ID, dec("1000"), admin)
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}
	if view.Status != domain.CardStatusActive || !view.Debt.IsZero() || !view.Available.Equal(dec("1000")) {
		t.Errorf("unexpected new card: %+v", view)
	}
	if !strings.HasPrefix(view.MaskedNumber, "**** **** **** ") || len(view.Last4) != 4 {
		t.Errorf("card number must come back masked, got %q", view.MaskedNumber)
	}
	if view.ExpirationYear != 2028 || view.ExpirationMonth != 1 {
		t.Errorf("expected expiry 01/2028, got %02d/%d", view.ExpirationMonth, view.ExpirationYear)
	}
	if view.ClientName != "ana" {
		t.Errorf("expected client name, got %q", view.ClientName)
	}

	if _, err := e.cards.AssignCard(ctx, client.ID, dec("500"), admin); !errors.Is(err, domain.ErrDuplicateActiveCard) {
		t.Errorf("expected ErrDuplicateActiveCard, got %v", err)
	}
	if _, err := e.cards.AssignCard(ctx, e.client("bea", "2").ID, dec("0"), admin); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := e.cards.AssignCard(ctx, uuid.New(), dec("100"), admin); !errors.Is(err, domain.ErrClientIneligible) {
		t.Errorf("expected ErrClientIneligible, got %v", err)
	}
}

func TestPostTransaction_RejectionIsRecorded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := e.client("ana", "1")

	card, err := e.cards.AssignCard(ctx, client.ID, dec("1000"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}

	steps := []struct {
		txType     domain.CardTransactionType
		amount     string
		wantStatus domain.CardTransactionStatus
	}{
		{domain.CardTransactionPurchase, "900", domain.CardTransactionApproved},
		{domain.CardTransactionPurchase, "150", domain.CardTransactionRejected},
		{domain.CardTransactionCashAdvance, "50", domain.CardTransactionApproved},
		{domain.CardTransactionPayment, "2000", domain.CardTransactionApproved},
	}
	for i, step := range steps {
		e.clock.Set(time.Date(2025, time.January, 15, 10, i, 0, 0, time.UTC))
		tx, err := e.cards.PostTransaction(ctx, card.ID, step.txType, dec(step.amount), "step")
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		if tx.Status != step.wantStatus {
			t.Errorf("step %d: status %s, want %s", i+1, tx.Status, step.wantStatus)
		}
	}

	details, err := e.cards.GetCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if !details.Card.Debt.IsZero() {
		t.Errorf("overpayment should floor debt at zero, got %s", details.Card.Debt)
	}
	if len(details.Transactions) != len(steps) {
		t.Fatalf("expected %d recorded attempts, got %d", len(steps), len(details.Transactions))
	}
	if details.Transactions[0].Type != domain.CardTransactionPayment || details.Transactions[2].Status != domain.CardTransactionRejected {
		t.Errorf("attempts should be newest first with the rejection kept: %+v", details.Transactions)
	}
}

func TestPostTransaction_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := e.client("ana", "1")
	card, err := e.cards.AssignCard(ctx, client.ID, dec("1000"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}

	if _, err := e.cards.PostTransaction(ctx, uuid.New(), domain.CardTransactionPurchase, dec("1"), ""); !errors.Is(err, domain.ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound, got %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, domain.CardTransactionPurchase, dec("-1"), ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, "REFUND", dec("1"), ""); !errors.Is(err, domain.ErrInvalidTransactionType) {
		t.Errorf("expected ErrInvalidTransactionType, got %v", err)
	}

	if _, err := e.cards.CancelCard(ctx, card.ID); err != nil {
		t.Fatalf("CancelCard: %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, domain.CardTransactionPurchase, dec("1"), ""); !errors.Is(err, domain.ErrCardNotActive) {
		t.Errorf("expected ErrCardNotActive, got %v", err)
	}
}

func TestUpdateLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := e.client("ana", "1")
	card, err := e.cards.AssignCard(ctx, client.ID, dec("1000"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, domain.CardTransactionPurchase, dec("700"), ""); err != nil {
		t.Fatalf("PostTransaction: %v", err)
	}

	if _, err := e.cards.UpdateLimit(ctx, card.ID, dec("600")); !errors.Is(err, domain.ErrLimitBelowDebt) {
		t.Errorf("expected ErrLimitBelowDebt, got %v", err)
	}

	view, err := e.cards.UpdateLimit(ctx, card.ID, dec("1500"))
	if err != nil {
		t.Fatalf("UpdateLimit: %v", err)
	}
	if !view.Limit.Equal(dec("1500")) || !view.Available.Equal(dec("800")) {
		t.Errorf("unexpected limit/available %s/%s", view.Limit, view.Available)
	}

	select {
	case n := <-e.notifier.sent:
		if n.email != client.Email || n.last4 != view.Last4 || !n.limit.Equal(dec("1500")) {
			t.Errorf("unexpected notification %+v", n)
		}
		if !n.hasDeadline {
			t.Error("notification must run under a deadline")
		}
	case <-time.After(2 * time.Second):
		t.Error("limit change notification was not sent")
	}
}

func TestUpdateLimit_NotificationFailureKeepsChange(t *testing.T) {
	e := newEnv(t)
	e.notifier.err = errors.New("smtp down")
	ctx := context.Background()
	client := e.client("ana", "1")
	card, err := e.cards.AssignCard(ctx, client.ID, dec("1000"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}

	if _, err := e.cards.UpdateLimit(ctx, card.ID, dec("300")); err != nil {
		t.Fatalf("UpdateLimit: %v", err)
	}
	<-e.notifier.sent

	details, err := e.cards.GetCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if !details.Card.Limit.Equal(dec("300")) {
		t.Errorf("expected limit 300, got %s", details.Card.Limit)
	}
}

func TestCancelCard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := e.client("ana", "1")
	card, err := e.cards.AssignCard(ctx, client.ID, dec("1000"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, domain.CardTransactionPurchase, dec("10"), ""); err != nil {
		t.Fatalf("PostTransaction: %v", err)
	}

	if _, err := e.cards.CancelCard(ctx, card.ID); !errors.Is(err, domain.ErrOutstandingDebt) {
		t.Fatalf("expected ErrOutstandingDebt, got %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, domain.CardTransactionPayment, dec("10"), ""); err != nil {
		t.Fatalf("PostTransaction: %v", err)
	}
	cancelled, err := e.cards.CancelCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("CancelCard: %v", err)
	}
	if cancelled.Status != domain.CardStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}

	// a cancelled card frees the client for a new one
	if _, err := e.cards.AssignCard(ctx, client.ID, dec("200"), uuid.New()); err != nil {
		t.Errorf("AssignCard after cancel: %v", err)
	}
}

func TestSearchCards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := e.client("ana", "1-2345")
	e.client("bea", "1-23456")

	old, err := e.cards.AssignCard(ctx, client.ID, dec("100"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}
	if _, err := e.cards.CancelCard(ctx, old.ID); err != nil {
		t.Fatalf("CancelCard: %v", err)
	}
	e.clock.Set(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	current, err := e.cards.AssignCard(ctx, client.ID, dec("100"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}

	got, err := e.cards.SearchCards(ctx, "1-2345", nil)
	if err != nil {
		t.Fatalf("SearchCards: %v", err)
	}
	if len(got) != 2 || got[0].ID != current.ID || got[1].ID != old.ID {
		t.Fatalf("expected active card first then cancelled, got %+v", got)
	}

	status := domain.CardStatusCancelled
	cancelled, err := e.cards.SearchCards(ctx, "1-2345", &status)
	if err != nil {
		t.Fatalf("SearchCards: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != old.ID {
		t.Errorf("expected only the cancelled card, got %+v", cancelled)
	}

	partial, err := e.cards.SearchCards(ctx, "1-23", nil)
	if err != nil {
		t.Fatalf("SearchCards: %v", err)
	}
	if len(partial) != 0 {
		t.Errorf("card search matches national ids exactly, got %d cards", len(partial))
	}
}

func TestAssignableCardClients(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	holder := e.client("ana", "1")
	free := e.client("bea", "2")

	card, err := e.cards.AssignCard(ctx, holder.ID, dec("1000"), uuid.New())
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}
	if _, err := e.cards.PostTransaction(ctx, card.ID, domain.CardTransactionPurchase, dec("250.50"), ""); err != nil {
		t.Fatalf("PostTransaction: %v", err)
	}

	got, err := e.cards.AssignableCardClients(ctx, "")
	if err != nil {
		t.Fatalf("AssignableCardClients: %v", err)
	}
	if !got.AverageDebt.Equal(dec("250.50")) {
		t.Errorf("expected average debt 250.50, got %s", got.AverageDebt)
	}
	if len(got.Clients) != 1 || got.Clients[0].ID != free.ID {
		t.Errorf("expected only bea, got %+v", got.Clients)
	}

	active, err := e.cards.ListActiveCards(ctx)
	if err != nil {
		t.Fatalf("ListActiveCards: %v", err)
	}
	if len(active) != 1 || active[0].ID != card.ID {
		t.Errorf("expected the one active card, got %+v", active)
	}
}
