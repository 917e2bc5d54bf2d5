package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MotivoStock is the closed set of reasons a StockGlobal row may change.
type MotivoStock string

const (
	MotivoAperturaSalida     MotivoStock = "ROUTE_OPEN"
	MotivoCancelacionSalida  MotivoStock = "ROUTE_CANCEL"
	MotivoRecarga            MotivoStock = "RESUPPLY_TAKE"
	MotivoDevolucionVacios   MotivoStock = "RESUPPLY_RETURN"
	MotivoDevolucionLlenos   MotivoStock = "RESUPPLY_FILLED_RETURN"
	MotivoVentaNormal        MotivoStock = "SALE_NORMAL"
	MotivoVentaConEnvase     MotivoStock = "SALE_WITH_CONTAINER"
	MotivoVentaPendiente     MotivoStock = "SALE_PENDING"
	MotivoVentaVale          MotivoStock = "SALE_VOUCHER"
	MotivoPendienteSaldado   MotivoStock = "SALE_PENDING_SETTLED_POST_CLOSE"
	MotivoReversionNormal    MotivoStock = "REVERSION_VENTA_NORMAL"
	MotivoReversionConEnvase MotivoStock = "REVERSION_VENTA_CON_ENVASE"
	MotivoReversionPendiente MotivoStock = "REVERSION_VENTA_PENDIENTE"
	MotivoReversionVale      MotivoStock = "REVERSION_VENTA_VALE"
	MotivoAjusteManual       MotivoStock = "MANUAL_ADJUSTMENT"
)

// MotivosStock lists every reason, in declaration order.
var MotivosStock = []MotivoStock{
	MotivoAperturaSalida, MotivoCancelacionSalida,
	MotivoRecarga, MotivoDevolucionVacios, MotivoDevolucionLlenos,
	MotivoVentaNormal, MotivoVentaConEnvase, MotivoVentaPendiente, MotivoVentaVale,
	MotivoPendienteSaldado,
	MotivoReversionNormal, MotivoReversionConEnvase, MotivoReversionPendiente, MotivoReversionVale,
	MotivoAjusteManual,
}

// Valido reports whether m belongs to the enumeration.
func (m MotivoStock) Valido() bool {
	for _, v := range MotivosStock {
		if v == m {
			return true
		}
	}
	return false
}

// Informativo reports whether m is an audit-only reason: it is logged even
// when it moves no stock.
func (m MotivoStock) Informativo() bool {
	switch m {
	case MotivoVentaConEnvase, MotivoVentaPendiente, MotivoVentaVale,
		MotivoReversionConEnvase, MotivoReversionPendiente, MotivoReversionVale:
		return true
	}
	return false
}

// HistorialStock records one StockGlobal mutation.
// Rows are immutable: never updated or deleted.
type HistorialStock struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Tipo          string      `gorm:"type:varchar(40);not null;index:idx_historial_tipo_fecha,priority:1"`
	Lleno         int         `gorm:"not null"` // after
	Vacio         int         `gorm:"not null"` // after
	Total         int         `gorm:"not null"` // after
	TotalAnterior int         `gorm:"not null"`
	Delta         int         `gorm:"not null"` // Total - TotalAnterior
	DeltaLleno    int         `gorm:"not null"`
	DeltaVacio    int         `gorm:"not null"`
	Motivo        MotivoStock `gorm:"type:varchar(40);not null;index"`
	Detalle       string
	VentaID       *uuid.UUID `gorm:"type:uuid;index"`
	SalidaID      *uuid.UUID `gorm:"type:uuid;index"`
	UsuarioID     *uuid.UUID `gorm:"type:uuid"`
	Fecha         time.Time  `gorm:"not null;index:idx_historial_tipo_fecha,priority:2"`
}

// TableName overrides GORM's default pluralization.
func (HistorialStock) TableName() string { return "historial_stock" }

func (h *HistorialStock) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Fecha.IsZero() {
		h.Fecha = time.Now().UTC()
	}
	return nil
}

// ErrHistorialInmutable is returned by the hooks guarding HistorialStock rows.
var ErrHistorialInmutable = errors.New("historial_stock es de solo inserción")

func (HistorialStock) BeforeUpdate(*gorm.DB) error { return ErrHistorialInmutable }
func (HistorialStock) BeforeDelete(*gorm.DB) error { return ErrHistorialInmutable }
