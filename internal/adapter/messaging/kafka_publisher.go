package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

const (
	EventMovementRecorded = "inventory.movement.recorded"
	EventStockAdjusted    = "inventory.stock.adjusted"

	publishTimeout = 5 * time.Second
)

type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ProductID  int64           `json:"product_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMovementPublisher emits stock change events keyed by product id, so
// every event of one product lands on the same partition.
type KafkaMovementPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaMovementPublisher(brokers []string, topic string) *KafkaMovementPublisher {
	return &KafkaMovementPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		now: time.Now,
	}
}

func (p *KafkaMovementPublisher) PublishMovementRecorded(ctx context.Context, rec domain.MovementRecord) error {
	return p.publish(ctx, EventMovementRecorded, rec.ProductID, rec)
}

func (p *KafkaMovementPublisher) PublishStockAdjusted(ctx context.Context, res domain.AdjustmentResult) error {
	return p.publish(ctx, EventStockAdjusted, res.ProductID, res)
}

func (p *KafkaMovementPublisher) publish(ctx context.Context, eventType string, productID int64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		OccurredAt: p.now(),
		Payload:    raw,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	headers := headerCarrier{{Key: "event-type", Value: []byte(eventType)}}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(strconv.FormatInt(productID, 10)),
		Value:   value,
		Time:    event.OccurredAt,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaMovementPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to a propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// NoopPublisher drops every event. It stands in when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishMovementRecorded(context.Context, domain.MovementRecord) error { return nil }
func (NoopPublisher) PublishStockAdjusted(context.Context, domain.AdjustmentResult) error { return nil }
func (NoopPublisher) Close() error { return nil }
