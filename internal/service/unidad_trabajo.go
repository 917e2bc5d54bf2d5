package service

import (
	"context"

	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RouteLocker serializes every mutation of one route (or one runner, when
// opening a route) across concurrent requests.
type RouteLocker interface {
	Lock(ctx context.Context, id uuid.UUID) (unlock func(), err error)
}

// UnidadTrabajo runs a ledger mutation: optional route lock, one transaction,
// the accumulated StockGlobal changes flushed at the end, then the
// reconciliation guard. Guard corrections are surfaced after commit.
type UnidadTrabajo struct {
	txm         repository.TxManager
	locker      RouteLocker
	aplicador   *aplicadorStock
	conciliador Conciliador
}

func NewUnidadTrabajo(
	txm repository.TxManager,
	locker RouteLocker,
	stockRepo repository.StockGlobalRepository,
	historialRepo repository.HistorialStockRepository,
	conciliador Conciliador,
) *UnidadTrabajo {
	return &UnidadTrabajo{
		txm:         txm,
		locker:      locker,
		aplicador:   &aplicadorStock{stockRepo: stockRepo, historialRepo: historialRepo},
		conciliador: conciliador,
	}
}

// runTx executes fn inside one transaction. lockID, when non-nil, is held for
// the whole call. fn may be retried on serialization failures and gets a fresh
// LibroStock each time.
func (u *UnidadTrabajo) runTx(ctx context.Context, lockID *uuid.UUID, usuarioID uuid.UUID, fn func(tx *gorm.DB, libro *LibroStock) error) error {
	if lockID != nil {
		unlock, err := u.locker.Lock(ctx, *lockID)
		if err != nil {
			return err
		}
		defer unlock()
	}

	var actor *uuid.UUID
	if usuarioID != uuid.Nil {
		actor = &usuarioID
	}

	var correcciones []Correccion
	err := u.txm.WithTransaction(ctx, func(tx *gorm.DB) error {
		libro := NuevoLibroStock(actor, nil)
		if err := fn(tx, libro); err != nil {
			return err
		}
		if err := u.aplicador.aplicar(tx, libro); err != nil {
			return err
		}
		var err error
		correcciones, err = u.conciliador.ConciliarTx(tx)
		return err
	})
	if err != nil {
		return err
	}
	u.conciliador.Notificar(ctx, correcciones)
	return nil
}
