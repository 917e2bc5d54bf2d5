package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tipos de Reabastecimiento. Each call to the resupply engine creates exactly
// one record.
const (
	ReabastecimientoRecarga          = "recarga"
	ReabastecimientoDevolucionLlenos = "devolucion_llenos"
)

// Reabastecimiento is a mid-route warehouse interaction.
type Reabastecimiento struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SalidaID    uuid.UUID `gorm:"type:uuid;not null;index"`
	CreadoPorID uuid.UUID `gorm:"type:uuid;not null"`
	Tipo        string    `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time

	Detalles []DetalleReabastecimiento `gorm:"foreignKey:ReabastecimientoID"`
}

func (r *Reabastecimiento) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// DetalleReabastecimiento is one line of a Reabastecimiento. Filled lines name
// a product; empty returns are per container type and leave ProductoID nil.
type DetalleReabastecimiento struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ReabastecimientoID uuid.UUID  `gorm:"type:uuid;not null;index"`
	SalidaID           uuid.UUID  `gorm:"type:uuid;not null;index:idx_detalle_reab_salida_tipo,priority:1"`
	ProductoID         *uuid.UUID `gorm:"type:uuid"`
	TipoProducto       string     `gorm:"type:varchar(40);not null;index:idx_detalle_reab_salida_tipo,priority:2"`
	LlenosTomados      int        `gorm:"not null;default:0"`
	LlenosDevueltos    int        `gorm:"not null;default:0"`
	VaciosDevueltos    int        `gorm:"not null;default:0"`
}

func (DetalleReabastecimiento) TableName() string { return "detalle_reabastecimientos" }

func (d *DetalleReabastecimiento) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
