package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"example.com/schedule/internal/config"
	"example.com/schedule/internal/logging"
	"example.com/schedule/internal/outbox"
	httptransport "example.com/schedule/internal/transport/http"
)

const (
	defaultDLQBatchSize   = 50
	defaultMetricsAddress = ":9102"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)
	log := logging.WithField("service", "schedule-dlq-manager")

	if cfg.PostgresURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsAddress := cfg.MetricsAddress
	if metricsAddress == "" {
		metricsAddress = defaultMetricsAddress
	}
	metricsSrv := httptransport.NewMetricsServer("dlq-metrics", metricsAddress)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsSrv.Run(ctx); err != nil {
			log.WithError(err).Error("metrics server error")
		}
	}()

	log.WithFields(logrus.Fields{
		"interval":    cfg.DLQPollInterval.String(),
		"max_retries": cfg.DLQMaxRetries,
	}).Info("dlq manager started")

	manager.Run(ctx, cfg.DLQPollInterval, defaultDLQBatchSize)

	log.Info("dlq manager shutdown requested")
	wg.Wait()
}
