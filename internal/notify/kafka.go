package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"pharmatrack/internal/config"
	"pharmatrack/internal/core"
	"pharmatrack/internal/logging"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Producer writes a single message to Kafka.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

type writerProducer struct {
	w *kafka.Writer
}

// NewWriter returns a Producer for topic on broker.
func NewWriter(broker, topic string) Producer {
	return &writerProducer{w: &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: config.BatchTimeout,
		BatchSize:    config.BatchSize,
	}}
}

func (p *writerProducer) WriteMessage(ctx context.Context, msg kafka.Message) error {
	return p.w.WriteMessages(ctx, msg)
}

func (p *writerProducer) Close() error {
	return p.w.Close()
}

// Event is the JSON value published for each notification.
type Event struct {
	RecipientID int             `json:"recipient_id"`
	Verb        string          `json:"verb"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// KafkaNotifier publishes notifications keyed by recipient, carrying the
// caller's trace context in the message headers.
type KafkaNotifier struct {
	producer Producer
	logger   *zap.Logger
	now      func() time.Time
}

func NewKafkaNotifier(producer Producer, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, logger: logging.OrNop(logger), now: time.Now}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n core.Notification) error {
	payload, err := json.Marshal(Event{
		RecipientID: n.RecipientID,
		Verb:        n.Verb,
		Message:     n.Message,
		Data:        n.Data,
		OccurredAt:  k.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(n.RecipientID)),
		Value: payload,
	}
	for _, key := range carrier.Keys() {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(carrier.Get(key))})
	}

	if err := k.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	k.logger.Debug("notification published", zap.String("verb", n.Verb), zap.Int("recipient_id", n.RecipientID))
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
