package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/dental-api/internal/config"
	"github.com/jwalitptl/dental-api/internal/handler/health"
	materialHandler "github.com/jwalitptl/dental-api/internal/handler/material"
	patientHandler "github.com/jwalitptl/dental-api/internal/handler/patient"
	procedureHandler "github.com/jwalitptl/dental-api/internal/handler/procedure"
	"github.com/jwalitptl/dental-api/internal/middleware"
	"github.com/jwalitptl/dental-api/internal/pricing"
	"github.com/jwalitptl/dental-api/internal/repository/postgres"
	"github.com/jwalitptl/dental-api/internal/router"
	materialService "github.com/jwalitptl/dental-api/internal/service/material"
	patientService "github.com/jwalitptl/dental-api/internal/service/patient"
	procedureService "github.com/jwalitptl/dental-api/internal/service/procedure"
	"github.com/jwalitptl/dental-api/pkg/messaging/redis"
	"github.com/jwalitptl/dental-api/pkg/metrics"
	"github.com/jwalitptl/dental-api/pkg/validator"
	"github.com/jwalitptl/dental-api/pkg/worker"
)

func newServeCmd() *cobra.Command {
	var (
		migrate    bool
		withOutbox bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(cmd.Context(), cfg, migrate, withOutbox)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&withOutbox, "outbox", false, "run the outbox processor in-process")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, migrate, withOutbox bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg.Log)

	if migrate {
		if err := migrateUp(ctx, cfg.Database); err != nil {
			return err
		}
		log.Info("Migrations applied")
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m := metrics.NewMetrics(cfg.Monitoring.Namespace, prometheus.DefaultRegisterer)
	v := validator.New()
	tx := postgres.NewTxManager(db)

	materialRepo := postgres.NewMaterialRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	procedureRepo := postgres.NewProcedureRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	materialSvc := materialService.NewService(materialRepo, outboxRepo, tx, v, log, m)
	patientSvc := patientService.NewService(patientRepo, tx, v, log, m)
	procedureSvc := procedureService.NewService(procedureService.Repositories{
		Procedures: procedureRepo,
		Patients:   patientRepo,
		Materials:  materialRepo,
		Outbox:     outboxRepo,
		Tx:         tx,
	}, pricing.NewEngine(), log, m)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins

	r := router.NewRouter(router.Handlers{
		Health:     health.NewHandler(db),
		Materials:  materialHandler.NewHandler(materialSvc),
		Patients:   patientHandler.NewHandler(patientSvc),
		Procedures: procedureHandler.NewHandler(procedureSvc),
	}, log.Zerolog(), router.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RPS),
		RateBurst:      cfg.RateLimit.Burst,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSConfig:     corsConfig,
		MetricsPath:    cfg.Monitoring.MetricsPath,
		Namespace:      cfg.Monitoring.Namespace,
	})
	r.Setup()

	if withOutbox && cfg.Outbox.Enabled {
		broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), log.Zerolog())
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer broker.Close()

		processor, err := worker.NewOutboxProcessor(outboxRepo, tx, broker, cfg.Outbox.ToWorkerConfig(), log, m)
		if err != nil {
			return err
		}
		go processor.Start(ctx)
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RateLimiter().Cleanup()
			}
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

func migrateUp(ctx context.Context, cfg config.DatabaseConfig) error {
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return postgres.MigrateUp(db.DB)
}
