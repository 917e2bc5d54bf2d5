package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Producto is a catalog entry. Tipo names the container family
// (e.g. "GAS_10K", "AGUA_20L", "VALVULA"); StockLleno is the warehouse
// filled-count, the authoritative source for StockGlobal.Lleno.
type Producto struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Nombre         string          `gorm:"index;not null"`
	Tipo           string          `gorm:"type:varchar(40);index;not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	StockLleno     int             `gorm:"not null;default:0"`
	StockMinimo    int             `gorm:"not null;default:0"`
	Activo         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Producto) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
