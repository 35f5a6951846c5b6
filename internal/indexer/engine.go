// Package indexer drives one inverted-index run: M mappers build partial
// indexes from a shared file queue, a phase barrier holds the reducers until
// every file is consumed, and R reducers merge one letter at a time into
// sorted <letter>.txt partitions.
package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/barrier"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/queue"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/tracing"
)

// Opener opens an input file for reading.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (io.ReadCloser, error)

func (f OpenerFunc) Open(path string) (io.ReadCloser, error) {
	return f(path)
}

// FileOpener opens paths on the local filesystem.
var FileOpener Opener = OpenerFunc(func(path string) (io.ReadCloser, error) {
	return os.Open(path)
})

// PartitionEvent describes one partition a reducer has written. Words is 0
// when the run had no words for the letter and removed an older partition.
type PartitionEvent struct {
	RunID     string    `json:"run_id"`
	Letter    string    `json:"letter"`
	Path      string    `json:"path"`
	Words     int       `json:"words"`
	WrittenAt time.Time `json:"written_at"`
}

// Notifier is told about every partition once it is on disk. Errors are
// logged and never fail the run.
type Notifier interface {
	PartitionWritten(ctx context.Context, event PartitionEvent) error
}

// PartitionResult is one emitted partition.
type PartitionResult struct {
	Letter string `json:"letter"`
	Path   string `json:"path"`
	Words  int    `json:"words"`
}

// RunResult summarises a completed run.
type RunResult struct {
	RunID          string            `json:"run_id"`
	Files          int               `json:"files"`
	Skipped        []string          `json:"skipped,omitempty"`
	Tokens         int64             `json:"tokens"`
	Words          int               `json:"words"`
	Partitions     []PartitionResult `json:"partitions"`
	Mappers        int               `json:"mappers"`
	Reducers       int               `json:"reducers"`
	StartedAt      time.Time         `json:"started_at"`
	MapDuration    time.Duration     `json:"map_duration"`
	ReduceDuration time.Duration     `json:"reduce_duration"`
	TotalDuration  time.Duration     `json:"total_duration"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithOpener replaces the filesystem opener, mainly for tests.
func WithOpener(o Opener) Option {
	return func(e *Engine) { e.opener = o }
}

// WithMetrics records run metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithNotifier registers n to hear about written partitions.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithSpanLogging logs the run's span tree when the run ends.
func WithSpanLogging() Option {
	return func(e *Engine) { e.logSpans = true }
}

// WithFileObserver installs a hook called on every file claim.
func WithFileObserver(obs queue.ClaimObserver[int]) Option {
	return func(e *Engine) { e.fileObserver = obs }
}

// WithLetterObserver installs a hook called on every letter claim.
func WithLetterObserver(obs queue.ClaimObserver[byte]) Option {
	return func(e *Engine) { e.letterObserver = obs }
}

// Engine runs the two-phase pipeline. An Engine may be reused for several
// sequential runs; each Run builds its own queues, barrier and indexes.
type Engine struct {
	cfg            config.PipelineConfig
	opener         Opener
	writer         *partition.Writer
	metrics        *metrics.Metrics
	notifier       Notifier
	fileObserver   queue.ClaimObserver[int]
	letterObserver queue.ClaimObserver[byte]
	logSpans       bool
	logger         *slog.Logger
}

// NewEngine validates cfg and creates the output directory.
func NewEngine(cfg config.PipelineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %w", apperrors.ErrOutputPartition, err)
	}
	e := &Engine{
		cfg:    cfg,
		opener: FileOpener,
		writer: partition.NewWriter(cfg.OutputDir),
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// run is the state shared by the workers of a single Run.
type run struct {
	id       string
	files    []string
	partials []*index.PartialIndex
	fileQ    *queue.ClaimQueue[int]
	letterQ  *queue.ClaimQueue[byte]
	barrier  *barrier.PhaseBarrier
	logger   *slog.Logger

	mapOnce sync.Once
	mapEnd  time.Time
	mapSpan *tracing.Span
	mu      sync.Mutex
	skipped []string
	results []PartitionResult
	startAt time.Time
}

func (r *run) mapFinished() {
	r.mapOnce.Do(func() {
		r.mapEnd = time.Now()
		r.mapSpan.End()
	})
}

func (r *run) addSkipped(path string) {
	r.mu.Lock()
	r.skipped = append(r.skipped, path)
	r.mu.Unlock()
}

func (r *run) addPartition(p PartitionResult) {
	r.mu.Lock()
	r.results = append(r.results, p)
	r.mu.Unlock()
}

// Run indexes files, where files[i] gets file id i+1. It starts the fixed set
// of M mappers and R reducers, waits for all of them and returns the first
// fatal error, which also cancels every other worker.
func (e *Engine) Run(ctx context.Context, files []string) (*RunResult, error) {
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = tracing.NewTraceID()
		ctx = logger.WithRunID(ctx, runID)
	}
	log := e.logger.With("run_id", runID)

	ctx, root := tracing.StartSpan(ctx, "index_run", runID)
	root.SetAttr("files", len(files))
	root.SetAttr("mappers", e.cfg.Mappers)
	root.SetAttr("reducers", e.cfg.Reducers)

	r := &run{
		id:       runID,
		files:    files,
		partials: make([]*index.PartialIndex, e.cfg.Mappers),
		fileQ:    queue.NewFileQueue(len(files), e.observeFile),
		letterQ:  queue.NewLetterQueue(e.observeLetter),
		barrier:  barrier.New(len(files)),
		logger:   log,
		startAt:  time.Now(),
	}
	for i := range r.partials {
		r.partials[i] = index.NewPartialIndex()
	}

	log.Info("index run starting",
		"files", len(files),
		"mappers", e.cfg.Mappers,
		"reducers", e.cfg.Reducers,
		"output_dir", e.cfg.OutputDir,
	)

	g, gctx := errgroup.WithContext(ctx)
	mapCtx, mapSpan := tracing.StartChildSpan(gctx, "map")
	r.mapSpan = mapSpan
	for i := 0; i < e.cfg.Mappers; i++ {
		m := &mapper{id: i, engine: e, run: r, index: r.partials[i]}
		g.Go(func() error { return m.work(mapCtx) })
	}
	reduceCtx, reduceSpan := tracing.StartChildSpan(gctx, "reduce")
	for i := 0; i < e.cfg.Reducers; i++ {
		rd := &reducer{id: i, engine: e, run: r}
		g.Go(func() error { return rd.work(reduceCtx) })
	}

	err := g.Wait()
	end := time.Now()
	r.mapFinished()
	reduceSpan.End()
	root.End()

	result := e.summarize(r, end)
	root.SetAttr("partitions", len(result.Partitions))
	root.SetAttr("words", result.Words)
	if e.logSpans {
		root.Log(log)
	}

	if err != nil {
		log.Error("index run failed", "error", err, "partitions_written", len(result.Partitions))
		return result, err
	}
	if e.metrics != nil {
		e.metrics.PhaseDuration.WithLabelValues("map").Observe(result.MapDuration.Seconds())
		e.metrics.PhaseDuration.WithLabelValues("reduce").Observe(result.ReduceDuration.Seconds())
	}
	log.Info("index run complete",
		"files", result.Files,
		"skipped", len(result.Skipped),
		"words", result.Words,
		"partitions", len(result.Partitions),
		"duration_ms", result.TotalDuration.Milliseconds(),
	)
	return result, nil
}

func (e *Engine) summarize(r *run, end time.Time) *RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	partitions := append([]PartitionResult(nil), r.results...)
	sort.Slice(partitions, func(i, j int) bool { return partitions[i].Letter < partitions[j].Letter })
	words := 0
	for _, p := range partitions {
		words += p.Words
	}
	var tokens int64
	for _, p := range r.partials {
		tokens += p.Adds()
	}
	mapEnd := r.mapEnd
	if mapEnd.After(end) {
		mapEnd = end
	}
	return &RunResult{
		RunID:          r.id,
		Files:          len(r.files),
		Skipped:        append([]string(nil), r.skipped...),
		Tokens:         tokens,
		Words:          words,
		Partitions:     partitions,
		Mappers:        e.cfg.Mappers,
		Reducers:       e.cfg.Reducers,
		StartedAt:      r.startAt,
		MapDuration:    mapEnd.Sub(r.startAt),
		ReduceDuration: end.Sub(mapEnd),
		TotalDuration:  end.Sub(r.startAt),
	}
}

func (e *Engine) observeFile(worker int, idx int) {
	if e.metrics != nil {
		e.metrics.ClaimsTotal.WithLabelValues("file").Inc()
	}
	if e.fileObserver != nil {
		e.fileObserver(worker, idx)
	}
}

func (e *Engine) observeLetter(worker int, letter byte) {
	if e.metrics != nil {
		e.metrics.ClaimsTotal.WithLabelValues("letter").Inc()
	}
	if e.letterObserver != nil {
		e.letterObserver(worker, letter)
	}
}
