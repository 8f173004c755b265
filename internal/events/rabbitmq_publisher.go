package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// RabbitMQPublisher publishes lending events to a topic exchange.
// It implements both domain.EventPublisher and domain.Notifier.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // guards channel; amqp channels are not safe for concurrent publishing
	channel  *amqp.Channel
	exchange string
	log      logrus.FieldLogger
}

var (
	_ domain.EventPublisher = (*RabbitMQPublisher)(nil)
	_ domain.Notifier       = (*RabbitMQPublisher)(nil)
)

// NewRabbitMQPublisher connects to RabbitMQ and declares the exchange.
func NewRabbitMQPublisher(url, exchange string, log logrus.FieldLogger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.WithField("exchange", exchange).Info("RabbitMQ publisher initialized")

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		log:      log,
	}, nil
}

// PublishLoanAssigned publishes a loan-assigned event.
func (p *RabbitMQPublisher) PublishLoanAssigned(ctx context.Context, loan domain.LoanSummary) error {
	event := NewLoanAssignedEvent(loan, time.Now())
	if err := p.publish(ctx, RoutingKeyLoanAssigned, event.EventID, event); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"loan_id": event.LoanID, "event_id": event.EventID}).Debug("loan assigned event published")
	return nil
}

// NotifyCreditLimitChanged publishes a limit-change notification request.
func (p *RabbitMQPublisher) NotifyCreditLimitChanged(ctx context.Context, email, cardLast4 string, newLimit decimal.Decimal) error {
	event := NewCardLimitChangedEvent(email, cardLast4, newLimit, time.Now())
	if err := p.publish(ctx, RoutingKeyCardLimitChanged, event.EventID, event); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"card_last4": cardLast4, "event_id": event.EventID}).Debug("card limit notification published")
	return nil
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.WithError(err).Warn("error closing channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
