// Package broadcaster drains the durable fill outbox onto Kafka. Fills
// are written to the outbox inside the submit path; this job replays
// them until the broker acknowledges, so no fill is lost across crashes
// or broker outages.
package broadcaster

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"hydra/infra/outbox"
)

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *slog.Logger
}

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log *slog.Logger,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("fill broadcaster started", "topic", b.topic)

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.replayOnce()
			}
		}
	}()
}

// replayOnce walks every unacked record. A record is marked SENT before
// the publish attempt, so the worst case after a crash is a duplicate
// delivery, never a loss. Consumers dedupe on fill id.
func (b *Broadcaster) replayOnce() {
	err := b.outbox.ScanPending(func(fillID uint64, rec outbox.Record) error {
		if err := b.outbox.MarkSent(fillID); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(fillID, 10)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("fill publish failed, will retry", "fill_id", fillID, "err", err)
			return nil
		}

		return b.outbox.MarkAcked(fillID)
	})
	if err != nil {
		b.log.Error("outbox scan failed", "err", err)
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
