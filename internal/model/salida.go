package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Estados de una Salida. Finalizada and cancelada are terminal.
const (
	EstadoSalidaAbierta    = "abierta"
	EstadoSalidaFinalizada = "finalizada"
	EstadoSalidaCancelada  = "cancelada"
)

// Salida is one runner's route: an open period during which sales and
// resupplies happen, ending finalizada (cash settled) or cancelada
// (stock reverted).
type Salida struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CorredorID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreadoPorID    uuid.UUID  `gorm:"type:uuid;not null"`
	LiquidadoPorID *uuid.UUID `gorm:"type:uuid"`
	Estado         string     `gorm:"type:varchar(20);not null;default:'abierta';index"`

	// Running totals, refreshed on every sale/resupply and frozen on finalize.
	TotalLlenos    int             `gorm:"not null;default:0"`
	TotalVentas    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalEfectivo  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalBilletera decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalVales     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDeudas    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalGastos    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	// Computed on finalize: Diferencia = EfectivoEntregado - EfectivoEsperado
	EfectivoEsperado    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	EfectivoEntregado   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Diferencia          *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiferenciaSaldada   bool             `gorm:"not null;default:false"`
	DiferenciaSaldadaAt *time.Time
	Observaciones       *string

	AbiertaAt    time.Time
	FinalizadaAt *time.Time
	CanceladaAt  *time.Time
	UpdatedAt    time.Time

	Cargas []SalidaCarga `gorm:"foreignKey:SalidaID"`
	Gastos []Gasto       `gorm:"foreignKey:SalidaID"`
}

func (s *Salida) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.AbiertaAt.IsZero() {
		s.AbiertaAt = time.Now().UTC()
	}
	return nil
}

func (s *Salida) Abierta() bool { return s.Estado == EstadoSalidaAbierta }

// SalidaCarga is one line of the initial load taken out when the route opened.
type SalidaCarga struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SalidaID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductoID uuid.UUID `gorm:"type:uuid;not null"`
	Cantidad   int       `gorm:"not null"`
}

func (c *SalidaCarga) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// StockCorredor counts what a runner carries during one route.
// Both counters are never negative; rows disappear when the route is cancelled.
type StockCorredor struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SalidaID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_corredor_salida_producto"`
	ProductoID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_corredor_salida_producto"`
	Lleno      int       `gorm:"not null;default:0"`
	Vacio      int       `gorm:"not null;default:0"`
	UpdatedAt  time.Time

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (StockCorredor) TableName() string { return "stock_corredor" }

func (s *StockCorredor) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Gasto is a route expense paid out of the runner's cash.
type Gasto struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SalidaID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Concepto  string          `gorm:"not null"`
	Monto     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time
}

func (g *Gasto) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
