package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Alerts the pool cannot decode or route land in dlq:{cola} for an operator.
const DLQPrefix = "dlq:"

// AlertaMuerta is a rejected job plus why it was rejected.
type AlertaMuerta struct {
	Cola      string          `json:"cola"`
	Tipo      string          `json:"tipo"`
	Payload   json.RawMessage `json:"payload"`
	Motivo    string          `json:"motivo"`
	FallidaAt time.Time       `json:"fallida_at"`
}

// EnviarADLQ parks a rejected job. Payloads that are not JSON are stored as
// a JSON string so the entry itself always decodes.
func EnviarADLQ(ctx context.Context, rdb *redis.Client, cola, tipo string, payload json.RawMessage, motivo string) {
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(payload))
	}
	data, err := json.Marshal(AlertaMuerta{
		Cola:      cola,
		Tipo:      tipo,
		Payload:   payload,
		Motivo:    motivo,
		FallidaAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("cola", cola).Msg("dlq: no se pudo serializar")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+cola, data).Err(); err != nil {
		log.Error().Err(err).Str("cola", cola).Msg("dlq: LPUSH falló")
		return
	}
	log.Warn().Str("cola", cola).Str("tipo", tipo).Str("motivo", motivo).Msg("dlq: job descartado")
}

func LongitudDLQ(ctx context.Context, rdb *redis.Client, cola string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+cola).Result()
}

// ReencolarDLQ moves up to max parked drift alerts back onto their queue,
// oldest first. Entries whose tipo is not a known job stay parked.
// Returns how many were requeued.
func ReencolarDLQ(ctx context.Context, rdb *redis.Client, cola string, max int) (int, error) {
	key := DLQPrefix + cola
	var reencoladas, revisadas int
	for revisadas < max {
		raw, err := rdb.RPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return reencoladas, err
		}
		revisadas++

		var m AlertaMuerta
		if err := json.Unmarshal([]byte(raw), &m); err != nil || m.Tipo != JobAlertaConciliacion {
			// back to the head so the next RPOP moves on
			if err := rdb.LPush(ctx, key, raw).Err(); err != nil {
				return reencoladas, err
			}
			continue
		}
		job, err := json.Marshal(Job{Type: m.Tipo, Payload: m.Payload})
		if err != nil {
			return reencoladas, err
		}
		if err := rdb.LPush(ctx, cola, job).Err(); err != nil {
			return reencoladas, err
		}
		reencoladas++
	}
	if reencoladas > 0 {
		log.Info().Str("cola", cola).Int("reencoladas", reencoladas).Msg("dlq: alertas reencoladas")
	}
	return reencoladas, nil
}
