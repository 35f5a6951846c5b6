// Package events publishes partition notifications to Kafka so that readers
// of the index (the lookup service) can drop stale cache entries.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/resilience"
)

// Publisher implements indexer.Notifier on top of a Kafka producer. Messages
// are keyed by letter, so all events for one partition land in order on the
// same Kafka partition.
type Publisher struct {
	producer *kafka.Producer
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

var _ indexer.Notifier = (*Publisher)(nil)

// New creates a Publisher writing through producer.
func New(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   50 * time.Millisecond,
			MaxDelay:       time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
		logger: slog.Default().With("component", "partition-publisher"),
	}
}

// PartitionWritten publishes event, retrying transient broker failures.
func (p *Publisher) PartitionWritten(ctx context.Context, event indexer.PartitionEvent) error {
	msg := kafka.Event{Key: event.Letter, Value: event}
	err := resilience.Retry(ctx, "publish-partition-"+event.Letter, p.retry, func() error {
		return p.producer.Publish(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publishing partition %s event: %w", event.Letter, err)
	}
	p.logger.Debug("partition event published",
		"run_id", event.RunID,
		"letter", event.Letter,
		"words", event.Words,
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
