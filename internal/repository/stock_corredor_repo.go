package repository

import (
	"context"
	"errors"

	"distribuidora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockCorredorRepository holds the per (salida, producto) runner counters.
// Decrements are single conditional UPDATEs so a counter can never go negative.
type StockCorredorRepository interface {
	ListBySalida(ctx context.Context, salidaID uuid.UUID) ([]model.StockCorredor, error)

	FindTx(tx *gorm.DB, salidaID, productoID uuid.UUID) (*model.StockCorredor, error)
	ListBySalidaTx(tx *gorm.DB, salidaID uuid.UUID) ([]model.StockCorredor, error)
	// IncrementarTx adds non-negative amounts, creating the row on first use.
	IncrementarTx(tx *gorm.DB, salidaID, productoID uuid.UUID, lleno, vacio int) error
	DescontarLlenoTx(tx *gorm.DB, salidaID, productoID uuid.UUID, cantidad int) (bool, error)
	DescontarVacioTx(tx *gorm.DB, salidaID, productoID uuid.UUID, cantidad int) (bool, error)
	DeleteBySalidaTx(tx *gorm.DB, salidaID uuid.UUID) error
}

type stockCorredorRepo struct{ db *gorm.DB }

func NewStockCorredorRepository(db *gorm.DB) StockCorredorRepository {
	return &stockCorredorRepo{db: db}
}

func (r *stockCorredorRepo) ListBySalida(ctx context.Context, salidaID uuid.UUID) ([]model.StockCorredor, error) {
	var filas []model.StockCorredor
	err := r.db.WithContext(ctx).Preload("Producto").
		Where("salida_id = ?", salidaID).Find(&filas).Error
	return filas, err
}

func (r *stockCorredorRepo) FindTx(tx *gorm.DB, salidaID, productoID uuid.UUID) (*model.StockCorredor, error) {
	var s model.StockCorredor
	err := tx.Where("salida_id = ? AND producto_id = ?", salidaID, productoID).First(&s).Error
	return &s, err
}

func (r *stockCorredorRepo) ListBySalidaTx(tx *gorm.DB, salidaID uuid.UUID) ([]model.StockCorredor, error) {
	var filas []model.StockCorredor
	err := tx.Preload("Producto").Where("salida_id = ?", salidaID).Find(&filas).Error
	return filas, err
}

func (r *stockCorredorRepo) IncrementarTx(tx *gorm.DB, salidaID, productoID uuid.UUID, lleno, vacio int) error {
	if lleno < 0 || vacio < 0 {
		return errors.New("stock_corredor: IncrementarTx solo acepta cantidades no negativas")
	}
	res := tx.Model(&model.StockCorredor{}).
		Where("salida_id = ? AND producto_id = ?", salidaID, productoID).
		Updates(map[string]interface{}{
			"lleno": gorm.Expr("lleno + ?", lleno),
			"vacio": gorm.Expr("vacio + ?", vacio),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Create(&model.StockCorredor{
		SalidaID:   salidaID,
		ProductoID: productoID,
		Lleno:      lleno,
		Vacio:      vacio,
	}).Error
}

func (r *stockCorredorRepo) DescontarLlenoTx(tx *gorm.DB, salidaID, productoID uuid.UUID, cantidad int) (bool, error) {
	return r.descontar(tx, "lleno", salidaID, productoID, cantidad)
}

func (r *stockCorredorRepo) DescontarVacioTx(tx *gorm.DB, salidaID, productoID uuid.UUID, cantidad int) (bool, error) {
	return r.descontar(tx, "vacio", salidaID, productoID, cantidad)
}

// descontar runs the compare-and-decrement; columna is one of the two
// counter names above, never user input.
func (r *stockCorredorRepo) descontar(tx *gorm.DB, columna string, salidaID, productoID uuid.UUID, cantidad int) (bool, error) {
	res := tx.Model(&model.StockCorredor{}).
		Where("salida_id = ? AND producto_id = ? AND "+columna+" >= ?", salidaID, productoID, cantidad).
		Update(columna, gorm.Expr(columna+" - ?", cantidad))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockCorredorRepo) DeleteBySalidaTx(tx *gorm.DB, salidaID uuid.UUID) error {
	return tx.Where("salida_id = ?", salidaID).Delete(&model.StockCorredor{}).Error
}
