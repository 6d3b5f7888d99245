// Package events publishes order lifecycle events to Kafka for downstream
// consumers such as the kitchen display.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/order"
)

// KafkaPublisher writes order events to a Kafka topic. Delivery is
// best-effort: failures are logged and never propagate to the workflow that
// produced the event, which has already committed.
type KafkaPublisher struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

var _ order.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string, lg *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		lg: lg,
	}
}

// Publish sends the event keyed by order ID so per-order ordering holds.
func (p *KafkaPublisher) Publish(ctx context.Context, e order.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.lg.Error("marshal order event", zap.Error(err), zap.String("order_id", e.OrderID))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
	})
	if err != nil {
		p.lg.Error("publish order event",
			zap.Error(err),
			zap.String("type", e.Type),
			zap.String("order_id", e.OrderID),
		)
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
