// Package consumer keeps the lookup service in step with new index runs. It
// reads partition events from Kafka and, for each rewritten letter, drops the
// in-memory partition and the cached words starting with that letter.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/kafka"
)

// Forgetter drops a loaded partition.
type Forgetter interface {
	Forget(letter byte)
}

// Invalidator drops cached words for a letter.
type Invalidator interface {
	InvalidateLetter(ctx context.Context, letter byte) (int64, error)
}

// InvalidationConsumer wraps a Kafka consumer of partition events.
type InvalidationConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *InvalidationConsumer {
	return &InvalidationConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "invalidation-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (ic *InvalidationConsumer) Start(ctx context.Context) error {
	ic.logger.Info("invalidation consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns the Kafka handler for partition events. cache may be
// nil. Undecodable messages are logged and skipped; a failed cache
// invalidation is returned so the message is not committed.
func HandleMessage(partitions Forgetter, cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "invalidation-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.PartitionEvent](value)
		if err != nil {
			logger.Error("failed to decode partition event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if len(event.Letter) != 1 {
			logger.Error("partition event without a valid letter", "letter", event.Letter, "run_id", event.RunID)
			return nil
		}
		letter := event.Letter[0]
		if _, ok := index.LetterIndex(letter); !ok {
			logger.Error("partition event without a valid letter", "letter", event.Letter, "run_id", event.RunID)
			return nil
		}

		partitions.Forget(letter)
		var deleted int64
		if cache != nil {
			deleted, err = cache.InvalidateLetter(ctx, letter)
			if err != nil {
				return fmt.Errorf("invalidating letter %s: %w", event.Letter, err)
			}
		}
		logger.Info("partition refreshed",
			"run_id", event.RunID,
			"letter", event.Letter,
			"words", event.Words,
			"keys_deleted", deleted,
		)
		return nil
	}
}
