package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/model"
)

// KafkaPublisher writes resolved ticks to a Kafka topic, keyed by
// instrument id so each instrument's ticks land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the configured brokers and topic.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one message per tick.
func (p *KafkaPublisher) Publish(ctx context.Context, ticks []model.MarketTick) error {
	msgs := make([]kafka.Message, 0, len(ticks))
	for _, tick := range ticks {
		data, err := json.Marshal(tick)
		if err != nil {
			return fmt.Errorf("marshal tick: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(tick.InstrumentID),
			Value: data,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	return nil
}

// Close flushes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
