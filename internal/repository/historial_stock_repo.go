package repository

import (
	"context"
	"time"

	"distribuidora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistorialStockFilter defines filters for listing stock history.
type HistorialStockFilter struct {
	Tipo     string
	Motivo   model.MotivoStock
	SalidaID *uuid.UUID
	VentaID  *uuid.UUID
	Desde    *time.Time
	Hasta    *time.Time
	Page     int
	Limit    int
}

// HistorialStockRepository is append-only: there is no update or delete.
type HistorialStockRepository interface {
	CreateTx(tx *gorm.DB, h *model.HistorialStock) error
	List(ctx context.Context, filter HistorialStockFilter) ([]model.HistorialStock, int64, error)
}

type historialStockRepo struct{ db *gorm.DB }

func NewHistorialStockRepository(db *gorm.DB) HistorialStockRepository {
	return &historialStockRepo{db: db}
}

func (r *historialStockRepo) CreateTx(tx *gorm.DB, h *model.HistorialStock) error {
	return tx.Create(h).Error
}

func (r *historialStockRepo) List(ctx context.Context, filter HistorialStockFilter) ([]model.HistorialStock, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.HistorialStock{})
	if filter.Tipo != "" {
		q = q.Where("tipo = ?", filter.Tipo)
	}
	if filter.Motivo != "" {
		q = q.Where("motivo = ?", filter.Motivo)
	}
	if filter.SalidaID != nil {
		q = q.Where("salida_id = ?", *filter.SalidaID)
	}
	if filter.VentaID != nil {
		q = q.Where("venta_id = ?", *filter.VentaID)
	}
	if filter.Desde != nil {
		q = q.Where("fecha >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("fecha < ?", *filter.Hasta)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var filas []model.HistorialStock
	err := q.Order("fecha ASC").Offset(offset).Limit(limit).Find(&filas).Error
	return filas, total, err
}
