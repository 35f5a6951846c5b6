package indexer

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
)

// reducer merges whole letters across every partial index. It never writes to
// a partial index.
type reducer struct {
	id     int
	engine *Engine
	run    *run
}

func (r *reducer) work(ctx context.Context) error {
	met := r.engine.metrics
	if met != nil {
		met.WorkersActive.WithLabelValues("reducer").Inc()
		defer met.WorkersActive.WithLabelValues("reducer").Dec()
	}

	waitStart := time.Now()
	if err := r.run.barrier.Wait(ctx); err != nil {
		return err
	}
	r.run.mapFinished()
	if met != nil {
		met.BarrierWaitSeconds.Observe(time.Since(waitStart).Seconds())
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		letter, ok := r.run.letterQ.Claim(r.id)
		if !ok {
			return nil
		}
		if err := r.reduceLetter(ctx, letter); err != nil {
			return err
		}
	}
}

func (r *reducer) reduceLetter(ctx context.Context, letter byte) error {
	merger := index.NewMerger()
	for _, p := range r.run.partials {
		merger.MergeBucket(p.Bucket(letter))
	}
	if merger.Len() == 0 {
		return r.clearLetter(ctx, letter)
	}

	entries := merger.Sorted()
	path, err := r.engine.writer.Write(letter, entries)
	if err != nil {
		return err
	}

	r.run.addPartition(PartitionResult{Letter: string(letter), Path: path, Words: len(entries)})
	if met := r.engine.metrics; met != nil {
		met.PartitionsWrittenTotal.Inc()
		met.PartitionWords.Observe(float64(len(entries)))
	}
	r.run.logger.Debug("partition written",
		"reducer", r.id,
		"letter", string(letter),
		"words", len(entries),
		"path", path,
	)

	r.notify(ctx, letter, path, len(entries))
	return nil
}

// clearLetter removes a partition an earlier run left for a letter that has
// no words now. Readers are told with a zero-word event.
func (r *reducer) clearLetter(ctx context.Context, letter byte) error {
	path, removed, err := r.engine.writer.Remove(letter)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	r.run.logger.Info("stale partition removed",
		"reducer", r.id,
		"letter", string(letter),
		"path", path,
	)
	r.notify(ctx, letter, path, 0)
	return nil
}

func (r *reducer) notify(ctx context.Context, letter byte, path string, words int) {
	n := r.engine.notifier
	if n == nil {
		return
	}
	event := PartitionEvent{
		RunID:     r.run.id,
		Letter:    string(letter),
		Path:      path,
		Words:     words,
		WrittenAt: time.Now().UTC(),
	}
	if err := n.PartitionWritten(ctx, event); err != nil {
		r.run.logger.Warn("partition notification failed",
			"letter", string(letter),
			"error", err,
		)
	}
}
