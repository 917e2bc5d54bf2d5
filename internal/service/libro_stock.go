package service

import (
	"sort"
	"strings"

	"distribuidora/internal/apierror"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delta is a pending change to one StockGlobal row.
type Delta struct {
	Lleno int
	Vacio int
}

func (d Delta) Cero() bool { return d.Lleno == 0 && d.Vacio == 0 }

type claveMovimiento struct {
	tipo    string
	motivo  model.MotivoStock
	ventaID uuid.UUID
}

type movimiento struct {
	clave    claveMovimiento
	delta    Delta
	detalles []string
}

// LibroStock accumulates the StockGlobal changes of one unit of work so they
// are computed first and applied once, at the end of the transaction.
// Changes sharing (tipo, motivo, venta) collapse into a single history row.
type LibroStock struct {
	usuarioID *uuid.UUID
	salidaID  *uuid.UUID
	orden     []claveMovimiento
	movs      map[claveMovimiento]*movimiento
}

func NuevoLibroStock(usuarioID, salidaID *uuid.UUID) *LibroStock {
	return &LibroStock{
		usuarioID: usuarioID,
		salidaID:  salidaID,
		movs:      make(map[claveMovimiento]*movimiento),
	}
}

// EnSalida sets the route every history row of this unit of work points to.
func (l *LibroStock) EnSalida(id uuid.UUID) { l.salidaID = &id }

// Registrar adds d under (tipo, motivo, venta). ventaID may be nil.
func (l *LibroStock) Registrar(tipo string, motivo model.MotivoStock, ventaID *uuid.UUID, d Delta, detalle string) {
	k := claveMovimiento{tipo: tipo, motivo: motivo}
	if ventaID != nil {
		k.ventaID = *ventaID
	}
	m, ok := l.movs[k]
	if !ok {
		m = &movimiento{clave: k}
		l.movs[k] = m
		l.orden = append(l.orden, k)
	}
	m.delta.Lleno += d.Lleno
	m.delta.Vacio += d.Vacio
	if detalle != "" {
		m.detalles = append(m.detalles, detalle)
	}
}

// Pendiente returns the net change accumulated so far for tipo.
func (l *LibroStock) Pendiente(tipo string) Delta {
	var total Delta
	for _, m := range l.movs {
		if m.clave.tipo == tipo {
			total.Lleno += m.delta.Lleno
			total.Vacio += m.delta.Vacio
		}
	}
	return total
}

// aplicadorStock flushes a LibroStock into stock_global and historial_stock.
type aplicadorStock struct {
	stockRepo     repository.StockGlobalRepository
	historialRepo repository.HistorialStockRepository
}

// aplicar locks each touched StockGlobal row (types in sorted order so two
// transactions never wait on each other in opposite order), then writes one
// atomic increment and one history row per entry. Zero entries are skipped
// unless their motivo is informational.
func (a *aplicadorStock) aplicar(tx *gorm.DB, libro *LibroStock) error {
	porTipo := make(map[string][]*movimiento)
	var tipos []string
	for _, k := range libro.orden {
		if _, ok := porTipo[k.tipo]; !ok {
			tipos = append(tipos, k.tipo)
		}
		porTipo[k.tipo] = append(porTipo[k.tipo], libro.movs[k])
	}
	sort.Strings(tipos)

	for _, tipo := range tipos {
		if err := a.aplicarTipo(tx, libro, tipo, porTipo[tipo]); err != nil {
			return err
		}
	}
	return nil
}

func (a *aplicadorStock) aplicarTipo(tx *gorm.DB, libro *LibroStock, tipo string, movs []*movimiento) error {
	if err := a.stockRepo.EnsureTx(tx, tipo); err != nil {
		return err
	}
	fila, err := a.stockRepo.FindForUpdateTx(tx, tipo)
	if err != nil {
		return err
	}

	neto := libro.Pendiente(tipo).Vacio
	if fila.Vacio+neto < 0 {
		return apierror.VaciosInsuficientesAlmacen(tipo, -neto, fila.Vacio)
	}

	// Increments before decrements, so the empty count never dips below zero
	// between two entries of the same transaction.
	sort.SliceStable(movs, func(i, j int) bool {
		return movs[i].delta.Vacio >= 0 && movs[j].delta.Vacio < 0
	})

	lleno, vacio, total := fila.Lleno, fila.Vacio, fila.Total
	for _, m := range movs {
		if m.delta.Cero() && !m.clave.motivo.Informativo() {
			continue
		}
		if !m.delta.Cero() {
			if err := a.stockRepo.AplicarDeltaTx(tx, tipo, m.delta.Lleno, m.delta.Vacio); err != nil {
				return err
			}
		}
		antes := total
		lleno += m.delta.Lleno
		vacio += m.delta.Vacio
		total += m.delta.Lleno + m.delta.Vacio

		h := &model.HistorialStock{
			Tipo:          tipo,
			Lleno:         lleno,
			Vacio:         vacio,
			Total:         total,
			TotalAnterior: antes,
			Delta:         total - antes,
			DeltaLleno:    m.delta.Lleno,
			DeltaVacio:    m.delta.Vacio,
			Motivo:        m.clave.motivo,
			Detalle:       strings.Join(m.detalles, "; "),
			SalidaID:      libro.salidaID,
			UsuarioID:     libro.usuarioID,
		}
		if m.clave.ventaID != uuid.Nil {
			id := m.clave.ventaID
			h.VentaID = &id
		}
		if err := a.historialRepo.CreateTx(tx, h); err != nil {
			return err
		}
	}
	return nil
}
