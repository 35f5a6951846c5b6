package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup/cache"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup/consumer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup/handler"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting lookup service", "port", cfg.Lookup.Port, "data_dir", cfg.Lookup.DataDir)

	m := metrics.New()
	idx := lookup.NewIndex(cfg.Lookup.DataDir)

	var wordCache *cache.Cache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, lookup caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			wordCache = cache.New(redisClient, cfg.Redis.CacheTTL, cache.WithMetrics(m))
			slog.Info("lookup cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Kafka.Enabled {
		var invalidator consumer.Invalidator
		if wordCache != nil {
			invalidator = wordCache
		}
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Partitions, consumer.HandleMessage(idx, invalidator))
		ic := consumer.New(kafkaConsumer)
		go func() {
			if err := ic.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("invalidation consumer started",
			"topic", cfg.Kafka.Topics.Partitions,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}

	checker := health.NewChecker()
	checker.Register("partitions", health.DirCheck(idx.Dir(), "[a-z].txt"))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping))
	} else {
		checker.Register("redis", health.PingCheck(nil))
	}

	h := handler.New(idx, wordCache)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Lookup.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Lookup.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Lookup.ReadTimeout,
		WriteTimeout: cfg.Lookup.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Lookup.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("lookup service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lookup service stopped")
}
