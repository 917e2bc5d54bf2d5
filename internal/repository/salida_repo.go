package repository

import (
	"context"

	"distribuidora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SalidaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Salida, error)
	List(ctx context.Context, filter SalidaFilter) ([]model.Salida, int64, error)

	CreateTx(tx *gorm.DB, s *model.Salida) error
	// FindForUpdateTx loads the route holding its row lock, so concurrent
	// mutations of the same route serialize on it.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Salida, error)
	FindAbiertaPorCorredorTx(tx *gorm.DB, corredorID uuid.UUID) (*model.Salida, error)
	UpdateTx(tx *gorm.DB, s *model.Salida) error
	CreateGastoTx(tx *gorm.DB, g *model.Gasto) error
	ListGastosTx(tx *gorm.DB, salidaID uuid.UUID) ([]model.Gasto, error)
}

// SalidaFilter narrows route listings.
type SalidaFilter struct {
	CorredorID *uuid.UUID
	Estado     string
	Page       int
	Limit      int
}

type salidaRepo struct{ db *gorm.DB }

func NewSalidaRepository(db *gorm.DB) SalidaRepository { return &salidaRepo{db: db} }

func (r *salidaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Salida, error) {
	var s model.Salida
	err := r.db.WithContext(ctx).Preload("Cargas").Preload("Gastos").First(&s, "id = ?", id).Error
	return &s, err
}

func (r *salidaRepo) List(ctx context.Context, filter SalidaFilter) ([]model.Salida, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Salida{})
	if filter.CorredorID != nil {
		q = q.Where("corredor_id = ?", *filter.CorredorID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	var salidas []model.Salida
	err := q.Order("abierta_at DESC").
		Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit).
		Find(&salidas).Error
	return salidas, total, err
}

func (r *salidaRepo) CreateTx(tx *gorm.DB, s *model.Salida) error {
	return tx.Create(s).Error
}

func (r *salidaRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Salida, error) {
	var s model.Salida
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *salidaRepo) FindAbiertaPorCorredorTx(tx *gorm.DB, corredorID uuid.UUID) (*model.Salida, error) {
	var s model.Salida
	err := tx.Where("corredor_id = ? AND estado = ?", corredorID, model.EstadoSalidaAbierta).First(&s).Error
	return &s, err
}

func (r *salidaRepo) UpdateTx(tx *gorm.DB, s *model.Salida) error {
	return tx.Omit(clause.Associations).Save(s).Error
}

func (r *salidaRepo) CreateGastoTx(tx *gorm.DB, g *model.Gasto) error {
	return tx.Create(g).Error
}

func (r *salidaRepo) ListGastosTx(tx *gorm.DB, salidaID uuid.UUID) ([]model.Gasto, error) {
	var gastos []model.Gasto
	err := tx.Where("salida_id = ?", salidaID).Order("created_at ASC").Find(&gastos).Error
	return gastos, err
}
