package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Venta is a sale recorded against an open Salida.
// Total == Efectivo + Billetera + Vale + MontoPendiente (within the payment epsilon).
type Venta struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SalidaID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	VendedorID       uuid.UUID       `gorm:"type:uuid;not null"`
	ClienteNombre    string          `gorm:"not null"`
	ClienteDireccion *string
	Efectivo         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Billetera        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Vale             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontoPendiente   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items        []VentaItem           `gorm:"foreignKey:VentaID"`
	Devoluciones []DevolucionPendiente `gorm:"foreignKey:VentaID"`
	Deuda        *Deuda                `gorm:"foreignKey:VentaID"`
}

func (v *Venta) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VentaItem is one sold line.
//   - ConIntercambio: the customer swapped their own empty on the spot.
//   - EsVale: the line was paid with a voucher.
//   - CantidadPendiente: empties the customer still owes (DevolucionPendiente).
//
// A line that is none of the above is "normal": its empties count toward the
// warehouse credit computed by the attribution algorithm.
type VentaItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	CantidadLlenos    int             `gorm:"not null"`
	CantidadVacios    int             `gorm:"not null;default:0"`
	CantidadPendiente int             `gorm:"not null;default:0"`
	PrecioUnitario    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ConIntercambio    bool            `gorm:"not null;default:false"`
	EsVale            bool            `gorm:"not null;default:false"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (i *VentaItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// EsNormal reports whether the line's empties are attributable to the warehouse.
func (i VentaItem) EsNormal() bool {
	return !i.ConIntercambio && !i.EsVale && i.CantidadPendiente == 0
}

// DevolucionPendiente is an empty container a customer still owes.
// It is not a physical return until Entregada.
type DevolucionPendiente struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	VentaID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductoID  uuid.UUID `gorm:"type:uuid;not null"`
	Cantidad    int       `gorm:"not null"`
	Entregada   bool      `gorm:"not null;default:false"`
	EntregadaAt *time.Time
	CreatedAt   time.Time
}

func (DevolucionPendiente) TableName() string { return "devoluciones_pendientes" }

func (d *DevolucionPendiente) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Deuda is the unpaid part of a sale.
type Deuda struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SalidaID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	VentaID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	ClienteNombre string          `gorm:"not null"`
	Monto         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Pagada        bool            `gorm:"not null;default:false"`
	PagadaAt      *time.Time
	CreatedAt     time.Time
}

func (d *Deuda) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
