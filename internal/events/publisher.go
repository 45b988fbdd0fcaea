package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
)

// EventTypeOrderCreated is carried in the event_type header
const EventTypeOrderCreated = "order.created"

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderPublisher announces reconciled orders
type OrderPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	Close() error
}

// OrderCreated is the payload of an order.created message
type OrderCreated struct {
	OrderNumber       string             `json:"orderNumber"`
	PaymentIntentID   string             `json:"paymentIntentId,omitempty"`
	CheckoutSessionID string             `json:"checkoutSessionId,omitempty"`
	Currency          string             `json:"currency"`
	TotalPrice        decimal.Decimal    `json:"totalPrice"`
	Lines             []domain.OrderLine `json:"lines"`
	CreatedAt         time.Time          `json:"createdAt"`
}

type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

const (
	// one event per order; waiting for a fuller batch only delays the webhook
	writerBatchTimeout = 10 * time.Millisecond
	writerWriteTimeout = 5 * time.Second
)

// NewKafkaWriter builds the writer for the order topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           writerBatchTimeout,
		WriteTimeout:           writerWriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(OrderCreated{
		OrderNumber:       order.OrderNumber,
		PaymentIntentID:   order.PaymentIntentID,
		CheckoutSessionID: order.CheckoutSessionID,
		Currency:          order.Currency,
		TotalPrice:        order.TotalPrice,
		Lines:             order.Lines,
		CreatedAt:         order.OrderDate,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.OrderNumber),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderCreated)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %s: %w", order.OrderNumber, err)
	}

	p.logger.Debug("Published order event", zap.String("order_number", order.OrderNumber))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events; used when no brokers are configured
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(context.Context, *domain.Order) error { return nil }

func (NoopPublisher) Close() error { return nil }
