package repository

import (
	"context"
	"time"

	"distribuidora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VentaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	ListBySalida(ctx context.Context, salidaID uuid.UUID) ([]model.Venta, error)
	FindDevolucion(ctx context.Context, id uuid.UUID) (*model.DevolucionPendiente, error)

	// Used inside transactions: callers must pass the tx instance
	CreateTx(tx *gorm.DB, v *model.Venta) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	ListBySalidaTx(tx *gorm.DB, salidaID uuid.UUID) ([]model.Venta, error)
	// UpdateTx saves the header columns only; items are replaced separately.
	UpdateTx(tx *gorm.DB, v *model.Venta) error
	ReplaceItemsTx(tx *gorm.DB, ventaID uuid.UUID, items []model.VentaItem) error
	// DeleteTx removes the sale and every row hanging from it.
	DeleteTx(tx *gorm.DB, ventaID uuid.UUID) error

	FindDeudaTx(tx *gorm.DB, id uuid.UUID) (*model.Deuda, error)
	FindDeudaPorVentaTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Deuda, error)
	SaveDeudaTx(tx *gorm.DB, d *model.Deuda) error
	DeleteDeudaPorVentaTx(tx *gorm.DB, ventaID uuid.UUID) error
	MarcarDeudaPagadaTx(tx *gorm.DB, id uuid.UUID, at time.Time) error

	FindDevolucionTx(tx *gorm.DB, id uuid.UUID) (*model.DevolucionPendiente, error)
	ReplaceDevolucionesTx(tx *gorm.DB, ventaID uuid.UUID, devs []model.DevolucionPendiente) error
	MarcarDevolucionEntregadaTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *ventaRepo) ListBySalida(ctx context.Context, salidaID uuid.UUID) ([]model.Venta, error) {
	return r.ListBySalidaTx(r.db.WithContext(ctx), salidaID)
}

func (r *ventaRepo) FindDevolucion(ctx context.Context, id uuid.UUID) (*model.DevolucionPendiente, error) {
	var d model.DevolucionPendiente
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	return &d, err
}

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Create(v).Error
}

func (r *ventaRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := tx.Preload("Items.Producto").Preload("Devoluciones").Preload("Deuda").
		First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) ListBySalidaTx(tx *gorm.DB, salidaID uuid.UUID) ([]model.Venta, error) {
	var ventas []model.Venta
	err := tx.Preload("Items.Producto").Preload("Devoluciones").Preload("Deuda").
		Where("salida_id = ?", salidaID).
		Order("created_at ASC").
		Find(&ventas).Error
	return ventas, err
}

func (r *ventaRepo) UpdateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Omit(clause.Associations).Save(v).Error
}

func (r *ventaRepo) ReplaceItemsTx(tx *gorm.DB, ventaID uuid.UUID, items []model.VentaItem) error {
	if err := tx.Where("venta_id = ?", ventaID).Delete(&model.VentaItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].VentaID = ventaID
		items[i].ID = uuid.Nil
	}
	return tx.Omit(clause.Associations).Create(&items).Error
}

func (r *ventaRepo) DeleteTx(tx *gorm.DB, ventaID uuid.UUID) error {
	if err := tx.Where("venta_id = ?", ventaID).Delete(&model.VentaItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("venta_id = ?", ventaID).Delete(&model.DevolucionPendiente{}).Error; err != nil {
		return err
	}
	if err := r.DeleteDeudaPorVentaTx(tx, ventaID); err != nil {
		return err
	}
	return tx.Delete(&model.Venta{}, "id = ?", ventaID).Error
}

func (r *ventaRepo) FindDeudaTx(tx *gorm.DB, id uuid.UUID) (*model.Deuda, error) {
	var d model.Deuda
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, "id = ?", id).Error
	return &d, err
}

func (r *ventaRepo) FindDeudaPorVentaTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Deuda, error) {
	var d model.Deuda
	err := tx.First(&d, "venta_id = ?", ventaID).Error
	return &d, err
}

func (r *ventaRepo) SaveDeudaTx(tx *gorm.DB, d *model.Deuda) error {
	return tx.Save(d).Error
}

func (r *ventaRepo) DeleteDeudaPorVentaTx(tx *gorm.DB, ventaID uuid.UUID) error {
	return tx.Where("venta_id = ?", ventaID).Delete(&model.Deuda{}).Error
}

func (r *ventaRepo) MarcarDeudaPagadaTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&model.Deuda{}).Where("id = ?", id).
		Updates(map[string]interface{}{"pagada": true, "pagada_at": at}).Error
}

func (r *ventaRepo) FindDevolucionTx(tx *gorm.DB, id uuid.UUID) (*model.DevolucionPendiente, error) {
	var d model.DevolucionPendiente
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, "id = ?", id).Error
	return &d, err
}

func (r *ventaRepo) ReplaceDevolucionesTx(tx *gorm.DB, ventaID uuid.UUID, devs []model.DevolucionPendiente) error {
	if err := tx.Where("venta_id = ?", ventaID).Delete(&model.DevolucionPendiente{}).Error; err != nil {
		return err
	}
	if len(devs) == 0 {
		return nil
	}
	for i := range devs {
		devs[i].VentaID = ventaID
		devs[i].ID = uuid.Nil
	}
	return tx.Create(&devs).Error
}

func (r *ventaRepo) MarcarDevolucionEntregadaTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&model.DevolucionPendiente{}).Where("id = ?", id).
		Updates(map[string]interface{}{"entregada": true, "entregada_at": at}).Error
}
