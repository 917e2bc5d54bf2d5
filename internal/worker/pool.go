package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAlertasConciliacion = "alertas:conciliacion"

	JobAlertaConciliacion = "alerta_conciliacion"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AlertaConciliacion reports one StockGlobal row the reconciliation guard had
// to overwrite. Any such correction points to a bookkeeping defect.
type AlertaConciliacion struct {
	Tipo            string `json:"tipo"`
	LlenoRegistrado int    `json:"lleno_registrado"`
	LlenoReal       int    `json:"lleno_real"`
	TotalRegistrado int    `json:"total_registrado"`
	TotalReal       int    `json:"total_real"`
	DetectadaAt     string `json:"detectada_at"` // ISO 8601
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP. A Dispatcher without a client
// (Redis disabled) drops jobs silently.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAlertaConciliacion pushes a drift alert to Redis.
func (d *Dispatcher) EnqueueAlertaConciliacion(ctx context.Context, alerta AlertaConciliacion) error {
	return d.enqueue(ctx, QueueAlertasConciliacion, JobAlertaConciliacion, alerta)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	if d == nil || d.rdb == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the alert queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s, then re-checks ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueAlertasConciliacion).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		EnviarADLQ(ctx, rdb, queue, "desconocido", json.RawMessage(raw), err.Error())
		return
	}
	switch job.Type {
	case JobAlertaConciliacion:
		var a AlertaConciliacion
		if err := json.Unmarshal(job.Payload, &a); err != nil {
			EnviarADLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error())
			return
		}
		log.Warn().
			Str("tipo", a.Tipo).
			Int("lleno_registrado", a.LlenoRegistrado).
			Int("lleno_real", a.LlenoReal).
			Int("total_registrado", a.TotalRegistrado).
			Int("total_real", a.TotalReal).
			Str("detectada_at", a.DetectadaAt).
			Msg("alerta de conciliación: StockGlobal corregido")
	default:
		EnviarADLQ(ctx, rdb, queue, job.Type, job.Payload, "tipo de job desconocido")
	}
}
