package events

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// LogNotifier writes events to the log instead of a broker. It is used when
// no RabbitMQ URL is configured.
type LogNotifier struct {
	log logrus.FieldLogger
}

var (
	_ domain.EventPublisher = LogNotifier{}
	_ domain.Notifier       = LogNotifier{}
)

func NewLogNotifier(log logrus.FieldLogger) LogNotifier {
	return LogNotifier{log: log}
}

func (n LogNotifier) PublishLoanAssigned(_ context.Context, loan domain.LoanSummary) error {
	n.log.WithFields(logrus.Fields{
		"loan_id":   loan.ID,
		"number":    loan.Number,
		"client_id": loan.UserID,
		"capital":   loan.Capital.StringFixed(2),
		"high_risk": loan.HighRisk,
	}).Info("loan assigned")
	return nil
}

func (n LogNotifier) NotifyCreditLimitChanged(_ context.Context, email, cardLast4 string, newLimit decimal.Decimal) error {
	n.log.WithFields(logrus.Fields{
		"email":      email,
		"card_last4": cardLast4,
		"new_limit":  newLimit.StringFixed(2),
	}).Info("credit limit changed")
	return nil
}
