package service

import (
	"errors"
	"strings"

	"distribuidora/internal/apierror"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Catalogo is the slice of the product catalog the ledger consumes.
type Catalogo interface {
	// EsGestionado reports whether tipo belongs to a container-managed family.
	EsGestionado(tipo string) bool
	ProductoTx(tx *gorm.DB, id uuid.UUID) (*model.Producto, error)
	// AjustarStockLlenoTx adds delta to the warehouse filled-count. A negative
	// delta is a conditional decrement and fails with InsufficientStock.
	AjustarStockLlenoTx(tx *gorm.DB, id uuid.UUID, delta int) error
}

type catalogo struct {
	repo     repository.ProductoRepository
	prefijos []string
}

func NewCatalogo(repo repository.ProductoRepository, prefijos []string) Catalogo {
	return &catalogo{repo: repo, prefijos: prefijos}
}

func (c *catalogo) EsGestionado(tipo string) bool {
	tipo = strings.ToUpper(tipo)
	for _, p := range c.prefijos {
		if strings.HasPrefix(tipo, p) {
			return true
		}
	}
	return false
}

func (c *catalogo) ProductoTx(tx *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	p, err := c.repo.FindByIDTx(tx, id)
	if err != nil {
		return nil, noEncontrado(err, "producto", id)
	}
	return p, nil
}

func (c *catalogo) AjustarStockLlenoTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	if delta >= 0 {
		return c.repo.UpdateStockTx(tx, id, delta)
	}
	ok, err := c.repo.DescontarStockTx(tx, id, -delta)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	p, err := c.ProductoTx(tx, id)
	if err != nil {
		return err
	}
	return apierror.StockInsuficienteAlmacen(p.Nombre, -delta, p.StockLleno)
}

// noEncontrado maps gorm.ErrRecordNotFound to a NotFound failure and passes
// every other error through.
func noEncontrado(err error, recurso string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NoEncontrado(recurso, id)
	}
	return err
}
