package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distribuidora/internal/config"
	"distribuidora/internal/infra"
	"distribuidora/internal/metrics"
	"distribuidora/internal/router"
	"distribuidora/internal/telemetry"
	"distribuidora/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.TracingEnabled,
		CollectorEndpoint: cfg.OTELCollectorEndpoint,
		SamplingRatio:     cfg.OTELSamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.OTELInsecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := telemetry.InstrumentarDB(db, tp.Enabled()); err != nil {
		log.Fatal().Err(err).Msg("failed to instrument database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb == nil {
		log.Warn().Msg("REDIS_URL empty: process-local route lock, guard alerts only logged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	svcs := router.NewServicios(cfg, db, rdb, m)

	// Alert consumers only make sense with a queue behind them.
	if rdb != nil {
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize)
	}
	worker.StartConciliacionCron(ctx, worker.ConciliacionCronConfig{
		Intervalo: cfg.ConciliacionInterval(),
		Conciliar: func(ctx context.Context) (int, error) {
			resp, err := svcs.Conciliador.Conciliar(ctx)
			if err != nil {
				return 0, err
			}
			return len(resp.Correcciones), nil
		},
	})

	r := router.New(cfg, db, rdb, m, svcs)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("distribuidora backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer flush failed")
	}
	log.Info().Msg("server exited")
}
