package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRabbitMQPublisherIntegration publishes both event kinds against a
// real broker and checks they arrive under their routing keys.
func TestRabbitMQPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, rabbitURL := startRabbitMQContainer(t, ctx)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	}()

	const exchange = "bank.lending.test"
	logger, _ := test.NewNullLogger()
	publisher, err := NewRabbitMQPublisher(rabbitURL, exchange, logger)
	if err != nil {
		t.Fatalf("failed to create rabbitmq publisher: %v", err)
	}
	defer publisher.Close()

	loans := make(chan amqp.Delivery, 1)
	limits := make(chan amqp.Delivery, 1)
	stopLoans := startConsumer(t, rabbitURL, exchange, RoutingKeyLoanAssigned, loans)
	defer stopLoans()
	stopLimits := startConsumer(t, rabbitURL, exchange, RoutingKeyCardLimitChanged, limits)
	defer stopLimits()

	if err := publisher.PublishLoanAssigned(ctx, sampleLoan()); err != nil {
		t.Fatalf("PublishLoanAssigned: %v", err)
	}
	if err := publisher.NotifyCreditLimitChanged(ctx, "ana@example.com", "1234", decimal.RequireFromString("750")); err != nil {
		t.Fatalf("NotifyCreditLimitChanged: %v", err)
	}

	select {
	case msg := <-loans:
		var event LoanAssignedEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			t.Fatalf("failed to unmarshal loan event: %v", err)
		}
		if event.LoanNumber != "2025-004217" || msg.MessageId != event.EventID {
			t.Errorf("unexpected loan event %+v (message id %s)", event, msg.MessageId)
		}
		if msg.ContentType != "application/json" {
			t.Errorf("unexpected content type %q", msg.ContentType)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for loan assigned event")
	}

	select {
	case msg := <-limits:
		var event CardLimitChangedEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			t.Fatalf("failed to unmarshal limit event: %v", err)
		}
		if event.NewLimit != "750.00" || event.Email != "ana@example.com" {
			t.Errorf("unexpected limit event %+v", event)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for card limit event")
	}
}

// startRabbitMQContainer starts a RabbitMQ testcontainer and returns the AMQP URL.
func startRabbitMQContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start rabbitmq container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get rabbitmq host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatalf("failed to get rabbitmq port: %v", err)
	}

	return container, fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

// startConsumer binds an exclusive queue to routingKey and forwards deliveries to out.
func startConsumer(t *testing.T, rabbitURL, exchange, routingKey string, out chan<- amqp.Delivery) func() {
	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		t.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		t.Fatalf("failed to open channel: %v", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		t.Fatalf("failed to declare exchange: %v", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		conn.Close()
		t.Fatalf("failed to declare queue: %v", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		conn.Close()
		t.Fatalf("failed to bind queue: %v", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		conn.Close()
		t.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for msg := range msgs {
			out <- msg
		}
	}()

	return func() {
		ch.Close()
		conn.Close()
	}
}
