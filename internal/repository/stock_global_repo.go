package repository

import (
	"context"

	"distribuidora/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockGlobalRepository is the warehouse ledger. Every write is an atomic
// in-database increment; callers that need check-then-mutate must first take
// the row lock with FindForUpdateTx inside the same transaction.
type StockGlobalRepository interface {
	List(ctx context.Context) ([]model.StockGlobal, error)
	FindByTipo(ctx context.Context, tipo string) (*model.StockGlobal, error)

	ListTx(tx *gorm.DB) ([]model.StockGlobal, error)
	// EnsureTx creates an all-zero row for tipo unless one exists.
	EnsureTx(tx *gorm.DB, tipo string) error
	// FindForUpdateTx reads the row holding SELECT ... FOR UPDATE.
	FindForUpdateTx(tx *gorm.DB, tipo string) (*model.StockGlobal, error)
	// AplicarDeltaTx adds dLleno/dVacio and keeps total = lleno + vacio.
	AplicarDeltaTx(tx *gorm.DB, tipo string, dLleno, dVacio int) error
	// SobrescribirTx overwrites lleno and total; reserved for the reconciliation guard.
	SobrescribirTx(tx *gorm.DB, tipo string, lleno, total int) error
}

type stockGlobalRepo struct{ db *gorm.DB }

func NewStockGlobalRepository(db *gorm.DB) StockGlobalRepository { return &stockGlobalRepo{db: db} }

func (r *stockGlobalRepo) List(ctx context.Context) ([]model.StockGlobal, error) {
	return r.ListTx(r.db.WithContext(ctx))
}

func (r *stockGlobalRepo) FindByTipo(ctx context.Context, tipo string) (*model.StockGlobal, error) {
	var s model.StockGlobal
	err := r.db.WithContext(ctx).First(&s, "tipo = ?", tipo).Error
	return &s, err
}

func (r *stockGlobalRepo) ListTx(tx *gorm.DB) ([]model.StockGlobal, error) {
	var filas []model.StockGlobal
	err := tx.Order("tipo ASC").Find(&filas).Error
	return filas, err
}

func (r *stockGlobalRepo) EnsureTx(tx *gorm.DB, tipo string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.StockGlobal{Tipo: tipo}).Error
}

func (r *stockGlobalRepo) FindForUpdateTx(tx *gorm.DB, tipo string) (*model.StockGlobal, error) {
	var s model.StockGlobal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "tipo = ?", tipo).Error
	return &s, err
}

func (r *stockGlobalRepo) AplicarDeltaTx(tx *gorm.DB, tipo string, dLleno, dVacio int) error {
	return tx.Model(&model.StockGlobal{}).Where("tipo = ?", tipo).Updates(map[string]interface{}{
		"lleno": gorm.Expr("lleno + ?", dLleno),
		"vacio": gorm.Expr("vacio + ?", dVacio),
		"total": gorm.Expr("total + ?", dLleno+dVacio),
	}).Error
}

func (r *stockGlobalRepo) SobrescribirTx(tx *gorm.DB, tipo string, lleno, total int) error {
	return tx.Model(&model.StockGlobal{}).Where("tipo = ?", tipo).Updates(map[string]interface{}{
		"lleno": lleno,
		"total": total,
	}).Error
}
