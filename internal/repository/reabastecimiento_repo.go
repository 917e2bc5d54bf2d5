package repository

import (
	"context"

	"distribuidora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReabastecimientoRepository interface {
	// CreateTx persists the record together with its Detalles.
	CreateTx(tx *gorm.DB, r *model.Reabastecimiento) error
	ListBySalida(ctx context.Context, salidaID uuid.UUID) ([]model.Reabastecimiento, error)
	// SumVaciosDevueltosTx is the "physically returned" quantity the empty
	// attribution algorithm compares sales against.
	SumVaciosDevueltosTx(tx *gorm.DB, salidaID uuid.UUID, tipo string) (int, error)
}

type reabastecimientoRepo struct{ db *gorm.DB }

func NewReabastecimientoRepository(db *gorm.DB) ReabastecimientoRepository {
	return &reabastecimientoRepo{db: db}
}

func (r *reabastecimientoRepo) CreateTx(tx *gorm.DB, reab *model.Reabastecimiento) error {
	return tx.Create(reab).Error
}

func (r *reabastecimientoRepo) ListBySalida(ctx context.Context, salidaID uuid.UUID) ([]model.Reabastecimiento, error) {
	var filas []model.Reabastecimiento
	err := r.db.WithContext(ctx).Preload("Detalles").
		Where("salida_id = ?", salidaID).Order("created_at ASC").Find(&filas).Error
	return filas, err
}

func (r *reabastecimientoRepo) SumVaciosDevueltosTx(tx *gorm.DB, salidaID uuid.UUID, tipo string) (int, error) {
	var total int64
	err := tx.Model(&model.DetalleReabastecimiento{}).
		Where("salida_id = ? AND tipo_producto = ?", salidaID, tipo).
		Select("COALESCE(SUM(vacios_devueltos), 0)").
		Scan(&total).Error
	return int(total), err
}
