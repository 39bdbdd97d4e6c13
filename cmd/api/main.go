package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"example.com/schedule/internal/api"
	"example.com/schedule/internal/auth"
	"example.com/schedule/internal/config"
	"example.com/schedule/internal/domain"
	"example.com/schedule/internal/logging"
	"example.com/schedule/internal/outbox"
	"example.com/schedule/internal/persistence/memory"
	persistence "example.com/schedule/internal/persistence/postgres"
	httptransport "example.com/schedule/internal/transport/http"
	"example.com/schedule/internal/worker"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)
	log := logging.WithField("service", "schedule-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		schedules     domain.ScheduleRepository
		notifications domain.NotificationRepository
		dispatcher    *outbox.Dispatcher
	)

	if cfg.PostgresURL == "" {
		log.Warn("POSTGRES_URL not set, using in-memory repositories")
		schedules = memory.NewScheduleRepository()
		notifications = memory.NewNotificationRepository()
	} else {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()

		opt := persistence.WithOutbox(cfg.OutboxEnabled)
		schedules = persistence.NewScheduleRepository(pool, opt)
		notifications = persistence.NewNotificationRepository(pool, opt)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()

			dispatcher = outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			go dispatcher.Start(ctx)
		}
	}

	service := domain.NewService(schedules, notifications)

	reminders := worker.NewNotificationWorker(schedules, notifications, worker.WithInterval(cfg.NotificationInterval))
	if err := reminders.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start notification worker")
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	router := api.NewRouter(api.NewHandler(service), authMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	servers := []*httptransport.Server{
		httptransport.NewServer("api", httptransport.DefaultServerConfig(cfg.HTTPAddress), corsHandler.Handler(router)),
	}
	if cfg.MetricsAddress != "" {
		servers = append(servers, httptransport.NewMetricsServer("metrics", cfg.MetricsAddress))
	}

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *httptransport.Server) {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("server error")
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	log.Info("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := reminders.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("notification worker did not stop cleanly")
	}

	wg.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	log.Info("shutdown complete")
}
