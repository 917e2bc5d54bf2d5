package repository

import (
	"context"

	"distribuidora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	ListBajoMinimo(ctx context.Context) ([]model.Producto, error)

	// Used inside transactions: callers must pass the tx instance
	CreateTx(tx *gorm.DB, p *model.Producto) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Producto, error)
	// UpdateStockTx adds delta to stock_lleno unconditionally.
	UpdateStockTx(tx *gorm.DB, id uuid.UUID, delta int) error
	// DescontarStockTx subtracts cantidad only if stock_lleno >= cantidad.
	// It reports false (and changes nothing) when there is not enough stock.
	DescontarStockTx(tx *gorm.DB, id uuid.UUID, cantidad int) (bool, error)
	// SumStockPorTipoTx returns Σ stock_lleno over every product of tipo.
	SumStockPorTipoTx(tx *gorm.DB, tipo string) (int, error)
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productoRepo) ListBajoMinimo(ctx context.Context) ([]model.Producto, error) {
	var productos []model.Producto
	err := r.db.WithContext(ctx).
		Where("activo = ? AND stock_lleno <= stock_minimo", true).
		Order("tipo ASC, nombre ASC").
		Find(&productos).Error
	return productos, err
}

func (r *productoRepo) CreateTx(tx *gorm.DB, p *model.Producto) error {
	return tx.Create(p).Error
}

func (r *productoRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := tx.First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productoRepo) UpdateStockTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	return tx.Model(&model.Producto{}).Where("id = ?", id).
		Update("stock_lleno", gorm.Expr("stock_lleno + ?", delta)).Error
}

func (r *productoRepo) DescontarStockTx(tx *gorm.DB, id uuid.UUID, cantidad int) (bool, error) {
	res := tx.Model(&model.Producto{}).
		Where("id = ? AND stock_lleno >= ?", id, cantidad).
		Update("stock_lleno", gorm.Expr("stock_lleno - ?", cantidad))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productoRepo) SumStockPorTipoTx(tx *gorm.DB, tipo string) (int, error) {
	var total int64
	err := tx.Model(&model.Producto{}).
		Where("tipo = ?", tipo).
		Select("COALESCE(SUM(stock_lleno), 0)").
		Scan(&total).Error
	return int(total), err
}
