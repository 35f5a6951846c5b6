package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/tracing"
)

const usage = "usage: indexer [-config path] <num_mappers> <num_reducers> <manifest_path>"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

type invocation struct {
	configPath string
	mappers    int
	reducers   int
	manifest   string
}

func parseArgs(args []string, stderr io.Writer) (invocation, error) {
	var inv invocation
	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inv.configPath, "config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return inv, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	if fs.NArg() != 3 {
		return inv, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "expected 3 arguments, got %d", fs.NArg())
	}
	var err error
	if inv.mappers, err = positive(fs.Arg(0), "num_mappers"); err != nil {
		return inv, err
	}
	if inv.reducers, err = positive(fs.Arg(1), "num_reducers"); err != nil {
		return inv, err
	}
	inv.manifest = fs.Arg(2)
	return inv, nil
}

func positive(raw, name string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

// run executes one index run and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
		return apperrors.ExitCode(err)
	}

	cfg, err := config.Load(inv.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return apperrors.ExitFailure
	}
	logger.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	cfg.Pipeline.Mappers = inv.mappers
	cfg.Pipeline.Reducers = inv.reducers

	files, err := manifest.Load(inv.manifest)
	if err != nil {
		slog.Error("failed to read manifest", "path", inv.manifest, "error", err)
		return apperrors.ExitCode(err)
	}

	runID := tracing.NewTraceID()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	var opts []indexer.Option
	if cfg.Tracing.Enabled {
		opts = append(opts, indexer.WithSpanLogging())
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled || cfg.Metrics.PushgatewayURL != "" {
		m = metrics.New()
		opts = append(opts, indexer.WithMetrics(m))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port > 0 {
		shutdown := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	if cfg.Kafka.Enabled {
		publisher := events.New(kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Partitions))
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("closing partition publisher", "error", err)
			}
		}()
		opts = append(opts, indexer.WithNotifier(publisher))
		log.Info("partition events enabled", "topic", cfg.Kafka.Topics.Partitions)
	}

	engine, err := indexer.NewEngine(cfg.Pipeline, opts...)
	if err != nil {
		log.Error("failed to create engine", "error", err)
		return apperrors.ExitCode(err)
	}

	result, runErr := engine.Run(ctx, files)

	if cfg.Postgres.Enabled {
		recordRun(ctx, cfg.Postgres, inv.manifest, result, runErr, log)
	}
	if m != nil && cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, runID); err != nil {
			log.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Error("index run interrupted")
		}
		fmt.Fprintf(stderr, "indexer: %v\n", runErr)
		return apperrors.ExitCode(runErr)
	}
	return apperrors.ExitOK
}

// recordRun stores the run in the catalog. Catalog failures never change the
// exit status: the partitions are already on disk.
func recordRun(ctx context.Context, cfg config.PostgresConfig, manifestPath string, result *indexer.RunResult, runErr error, log *slog.Logger) {
	if result == nil {
		return
	}
	db, err := postgres.New(cfg)
	if err != nil {
		log.Warn("run catalog unavailable", "error", err)
		return
	}
	defer db.Close()

	store := catalog.NewStore(db)
	err = resilience.WithTimeout(context.WithoutCancel(ctx), 10*time.Second, "catalog", func(ctx context.Context) error {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		return store.RecordRun(ctx, catalog.FromResult(manifestPath, result, runErr))
	})
	if err != nil {
		log.Warn("recording run failed", "error", err)
	}
}
