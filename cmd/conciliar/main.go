// cmd/conciliar/main.go runs the reconciliation guard once and exits.
// Exit status 2 when any StockGlobal row had to be corrected.
// Uso: go run ./cmd/conciliar [-reencolar-dlq N]
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"distribuidora/internal/config"
	"distribuidora/internal/infra"
	"distribuidora/internal/metrics"
	"distribuidora/internal/router"
	"distribuidora/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	reencolar := flag.Int("reencolar-dlq", 0, "mover hasta N alertas de la DLQ de vuelta a su cola antes de conciliar")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *reencolar > 0 {
		if rdb == nil {
			log.Fatal().Msg("-reencolar-dlq requiere REDIS_URL")
		}
		if _, err := worker.ReencolarDLQ(ctx, rdb, worker.QueueAlertasConciliacion, *reencolar); err != nil {
			log.Fatal().Err(err).Msg("no se pudo reencolar la DLQ")
		}
	}

	svcs := router.NewServicios(cfg, db, rdb, metrics.New())
	resp, err := svcs.Conciliador.Conciliar(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("conciliación fallida")
	}
	for _, c := range resp.Correcciones {
		log.Warn().
			Str("tipo", c.Tipo).
			Int("lleno_registrado", c.LlenoRegistrado).
			Int("lleno_real", c.LlenoReal).
			Int("total_registrado", c.TotalRegistrado).
			Int("total_real", c.TotalReal).
			Msg("StockGlobal corregido")
	}
	if len(resp.Correcciones) > 0 {
		os.Exit(2)
	}
	log.Info().Msg("StockGlobal conciliado, sin correcciones")
}
