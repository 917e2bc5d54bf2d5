package worker

// conciliacion_cron.go
// Background goroutine that periodically runs the reconciliation guard outside
// any business transaction, so drift on idle container types is still caught.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ConciliacionCronConfig holds the dependencies of the sweep goroutine.
// Conciliar returns how many StockGlobal rows it had to correct.
type ConciliacionCronConfig struct {
	Intervalo time.Duration
	Conciliar func(ctx context.Context) (int, error)
}

// StartConciliacionCron ticks every cfg.Intervalo until ctx is cancelled.
func StartConciliacionCron(ctx context.Context, cfg ConciliacionCronConfig) {
	if cfg.Intervalo <= 0 || cfg.Conciliar == nil {
		log.Info().Msg("conciliacion_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Intervalo)
		defer ticker.Stop()

		log.Info().Dur("intervalo", cfg.Intervalo).Msg("conciliacion_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("conciliacion_cron: shutting down")
				return
			case <-ticker.C:
				n, err := cfg.Conciliar(ctx)
				if err != nil {
					log.Error().Err(err).Msg("conciliacion_cron: sweep failed")
					continue
				}
				if n > 0 {
					log.Warn().Int("correcciones", n).Msg("conciliacion_cron: drift corrected")
				}
			}
		}
	}()
}
