package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
)

// mapper owns one PartialIndex and fills it from the files it claims.
type mapper struct {
	id     int
	engine *Engine
	run    *run
	index  *index.PartialIndex
}

func (m *mapper) work(ctx context.Context) error {
	if met := m.engine.metrics; met != nil {
		met.WorkersActive.WithLabelValues("mapper").Inc()
		defer met.WorkersActive.WithLabelValues("mapper").Dec()
	}
	log := m.run.logger.With("mapper", m.id)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx, ok := m.run.fileQ.Claim(m.id)
		if !ok {
			log.Debug("mapper finished", "words", m.index.Len(), "tokens", m.index.Adds())
			return nil
		}
		path := m.run.files[idx]
		fileID := idx + 1

		tokens, err := m.mapFile(path, fileID)
		if err != nil {
			if m.engine.cfg.OnFileError != config.OnFileErrorSkip {
				m.countFile("failed")
				return err
			}
			dropped := 0
			if tokens > 0 {
				dropped = m.index.DropFile(fileID)
			}
			log.Warn("skipping unreadable input file",
				"file_id", fileID,
				"path", path,
				"error", err,
				"entries_rolled_back", dropped,
			)
			m.run.addSkipped(path)
			m.countFile("skipped")
			m.run.barrier.Done()
			continue
		}

		if met := m.engine.metrics; met != nil {
			met.TokensTotal.Add(float64(tokens))
		}
		m.countFile("ok")
		m.run.barrier.Done()
	}
}

// mapFile adds the words of one file to the mapper's index and returns how
// many were accepted.
func (m *mapper) mapFile(path string, fileID int) (int, error) {
	rc, err := m.engine.opener.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %w", apperrors.ErrInputFile, path, err)
	}
	defer rc.Close()

	accepted := 0
	err = tokenizer.Scan(rc, m.engine.cfg.MaxTokenBytes, func(token string) {
		if word := tokenizer.Normalize(token); word != "" {
			if m.index.Add(word, fileID) {
				accepted++
			}
		}
	})
	if err != nil {
		return accepted, fmt.Errorf("%w: reading %s: %w", apperrors.ErrInputFile, path, err)
	}
	return accepted, nil
}

func (m *mapper) countFile(outcome string) {
	if met := m.engine.metrics; met != nil {
		met.FilesMappedTotal.WithLabelValues(outcome).Inc()
	}
}
