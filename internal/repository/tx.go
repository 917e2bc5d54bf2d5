package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// maxIntentosSerializacion bounds retries of a unit of work aborted by a
// PostgreSQL serialization failure (SQLSTATE 40001).
const maxIntentosSerializacion = 3

// TxManager opens the unit of work every ledger mutation runs in. fn may run
// more than once when the store aborts it with a serialization failure, so it
// must build all of its state from scratch on each call.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxManager struct {
	db   *gorm.DB
	opts []*sql.TxOptions
}

// NewTxManager returns a TxManager over db. serializable requests
// sql.LevelSerializable, which PostgreSQL honours; leave it off for SQLite.
func NewTxManager(db *gorm.DB, serializable bool) TxManager {
	m := &gormTxManager{db: db}
	if serializable {
		m.opts = []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return m
}

func (m *gormTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for intento := 1; intento <= maxIntentosSerializacion; intento++ {
		err = m.db.WithContext(ctx).Transaction(fn, m.opts...)
		if !esFalloSerializacion(err) {
			return err
		}
		log.Warn().Int("intento", intento).Err(err).Msg("transacción abortada por conflicto de serialización; reintentando")
	}
	return err
}

func esFalloSerializacion(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
