// Package marketdata mirrors synchronization traffic onto a Kafka topic
// so downstream consumers (tickers, analytics) can follow book state
// without joining the node mesh.
package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"hydra/api/protocol"
)

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish keys messages by symbol so per-symbol ordering is preserved
// across partitions.
func (p *Publisher) Publish(ctx context.Context, env protocol.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var key []byte
	switch {
	case env.Book != nil:
		key = []byte(env.Book.Symbol)
	case env.Best != nil:
		key = []byte(env.Best.Symbol)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
