// Package events publishes lending events to RabbitMQ.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// Routing keys on the lending topic exchange.
const (
	RoutingKeyLoanAssigned     = "lending.loan.assigned"
	RoutingKeyCardLimitChanged = "lending.card.limit_changed"
)

// LoanAssignedEvent is published once a loan has been disbursed.
type LoanAssignedEvent struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	EventTimestamp string `json:"eventTimestamp"`
	LoanID         string `json:"loanId"`
	LoanNumber     string `json:"loanNumber"`
	ClientID       string `json:"clientId"`
	Capital        string `json:"capital"`
	AnnualRate     string `json:"annualRate"`
	TermMonths     int    `json:"termMonths"`
	HighRisk       bool   `json:"highRisk"`
}

// CardLimitChangedEvent asks the notification channel to tell a client
// about a new credit limit.
type CardLimitChangedEvent struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	EventTimestamp string `json:"eventTimestamp"`
	Email          string `json:"email"`
	CardLast4      string `json:"cardLast4"`
	NewLimit       string `json:"newLimit"`
}

// NewLoanAssignedEvent builds the payload for a loan summary.
func NewLoanAssignedEvent(loan domain.LoanSummary, at time.Time) LoanAssignedEvent {
	return LoanAssignedEvent{
		EventID:        uuid.NewString(),
		EventType:      "LOAN_ASSIGNED",
		EventTimestamp: at.UTC().Format(time.RFC3339),
		LoanID:         loan.ID.String(),
		LoanNumber:     loan.Number,
		ClientID:       loan.UserID.String(),
		Capital:        loan.Capital.StringFixed(2),
		AnnualRate:     loan.AnnualRate.StringFixed(2),
		TermMonths:     loan.TermMonths,
		HighRisk:       loan.HighRisk,
	}
}

// NewCardLimitChangedEvent builds the payload for a limit notification.
func NewCardLimitChangedEvent(email, last4 string, limit decimal.Decimal, at time.Time) CardLimitChangedEvent {
	return CardLimitChangedEvent{
		EventID:        uuid.NewString(),
		EventType:      "CARD_LIMIT_CHANGED",
		EventTimestamp: at.UTC().Format(time.RFC3339),
		Email:          email,
		CardLast4:      last4,
		NewLimit:       limit.StringFixed(2),
	}
}
