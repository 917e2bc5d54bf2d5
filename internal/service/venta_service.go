package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"distribuidora/internal/apierror"
	"distribuidora/internal/dto"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VentaService interface {
	Registrar(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	Actualizar(ctx context.Context, usuarioID, ventaID uuid.UUID, req dto.ActualizarVentaRequest) (*dto.VentaResponse, error)
	Eliminar(ctx context.Context, usuarioID, ventaID uuid.UUID) error
	Obtener(ctx context.Context, ventaID uuid.UUID) (*dto.VentaResponse, error)
	ListarPorSalida(ctx context.Context, salidaID uuid.UUID) ([]dto.VentaResponse, error)
	PagarDeuda(ctx context.Context, usuarioID, deudaID uuid.UUID) (*dto.DeudaResponse, error)
	EntregarDevolucion(ctx context.Context, usuarioID, devolucionID uuid.UUID) (*dto.DevolucionPendienteResponse, error)
}

type ventaService struct {
	uow               *UnidadTrabajo
	catalogo          Catalogo
	repo              repository.VentaRepository
	salidaRepo        repository.SalidaRepository
	stockCorredorRepo repository.StockCorredorRepository
	reabRepo          repository.ReabastecimientoRepository
	epsilon           decimal.Decimal
}

func NewVentaService(
	uow *UnidadTrabajo,
	catalogo Catalogo,
	repo repository.VentaRepository,
	salidaRepo repository.SalidaRepository,
	stockCorredorRepo repository.StockCorredorRepository,
	reabRepo repository.ReabastecimientoRepository,
	epsilon decimal.Decimal,
) VentaService {
	return &ventaService{
		uow:               uow,
		catalogo:          catalogo,
		repo:              repo,
		salidaRepo:        salidaRepo,
		stockCorredorRepo: stockCorredorRepo,
		reabRepo:          reabRepo,
		epsilon:           epsilon,
	}
}

// lineaVenta is a resolved sale line: the row to persist plus its product.
type lineaVenta struct {
	item     model.VentaItem
	producto *model.Producto
}

// ── Registrar ─────────────────────────────────────────────────────────────────
//   1. Route must be OPEN
//   2. Compare-and-decrement runner filled stock per line
//   3. Σ subtotal must match the payment split within epsilon
//   4. Persist venta + items + pending returns + debt
//   5. Runner collects the empties; normal lines earn warehouse credit
//   6. Guard (in runTx)

func (s *ventaService) Registrar(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	salidaID, err := uuid.Parse(req.SalidaID)
	if err != nil {
		return nil, apierror.Validacion("salida_id inválido", map[string]string{"salida_id": "uuid"})
	}

	var venta model.Venta
	err = s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.salidaTx(tx, salidaID)
		if err != nil {
			return err
		}
		if !salida.Abierta() {
			return apierror.SalidaNoActiva(salida.ID, salida.Estado)
		}
		libro.EnSalida(salida.ID)

		lineas, err := s.resolverLineasTx(tx, req.Items)
		if err != nil {
			return err
		}
		if err := s.descontarLlenosTx(tx, salida.ID, lineas); err != nil {
			return err
		}

		vendedor := usuarioID
		if vendedor == uuid.Nil {
			vendedor = salida.CorredorID
		}
		venta = model.Venta{
			SalidaID:         salida.ID,
			VendedorID:       vendedor,
			ClienteNombre:    req.ClienteNombre,
			ClienteDireccion: req.ClienteDireccion,
		}
		if err := s.asignarPago(&venta, totalLineas(lineas), req.Pago); err != nil {
			return err
		}
		venta.Items = itemsDe(lineas)
		venta.Devoluciones = devolucionesDe(lineas, nil)
		if venta.MontoPendiente.IsPositive() {
			venta.Deuda = &model.Deuda{SalidaID: salida.ID, ClienteNombre: venta.ClienteNombre, Monto: venta.MontoPendiente}
		}
		if err := s.repo.CreateTx(tx, &venta); err != nil {
			return err
		}

		if err := s.acreditarVaciosTx(tx, libro, salida.ID, venta.ID, lineas); err != nil {
			return err
		}
		if err := recalcularTotalesTx(tx, s.salidaRepo, s.repo, salida); err != nil {
			return err
		}
		return s.salidaRepo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return s.Obtener(ctx, venta.ID)
}

// ── Actualizar ────────────────────────────────────────────────────────────────
// OPEN route: full reversal, then the create path with the new lines.
// FINALIZED route: quantities are frozen; only the payment split, the customer
// and the pending-return quantities may change.

func (s *ventaService) Actualizar(ctx context.Context, usuarioID, ventaID uuid.UUID, req dto.ActualizarVentaRequest) (*dto.VentaResponse, error) {
	actual, err := s.repo.FindByID(ctx, ventaID)
	if err != nil {
		return nil, noEncontrado(err, "venta", ventaID)
	}
	salidaID := actual.SalidaID

	err = s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.salidaTx(tx, salidaID)
		if err != nil {
			return err
		}
		venta, err := s.repo.FindByIDTx(tx, ventaID)
		if err != nil {
			return noEncontrado(err, "venta", ventaID)
		}
		libro.EnSalida(salida.ID)

		if req.ClienteNombre != nil {
			venta.ClienteNombre = *req.ClienteNombre
		}
		if req.ClienteDireccion != nil {
			venta.ClienteDireccion = req.ClienteDireccion
		}

		switch salida.Estado {
		case model.EstadoSalidaAbierta:
			err = s.reemplazarTx(tx, libro, salida, venta, req)
		case model.EstadoSalidaFinalizada:
			err = s.ajustarCerradaTx(tx, libro, venta, req)
		default:
			return apierror.SalidaNoActiva(salida.ID, salida.Estado)
		}
		if err != nil {
			return err
		}
		if err := recalcularTotalesTx(tx, s.salidaRepo, s.repo, salida); err != nil {
			return err
		}
		return s.salidaRepo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return s.Obtener(ctx, ventaID)
}

func (s *ventaService) reemplazarTx(tx *gorm.DB, libro *LibroStock, salida *model.Salida, venta *model.Venta, req dto.ActualizarVentaRequest) error {
	lineas, err := s.resolverLineasTx(tx, req.Items)
	if err != nil {
		return err
	}
	// Empties the customer already handed back stay delivered, up to what the
	// new lines still owe; only the surplus leaves the runner.
	pendientes, _ := pendientesPorProducto(lineas)
	conservar := make(map[uuid.UUID]entregaPrevia)
	for pid, e := range entregasPorProducto(venta.Devoluciones) {
		if n := min(e.cantidad, pendientes[pid]); n > 0 {
			conservar[pid] = entregaPrevia{cantidad: n, at: e.at}
		}
	}
	if err := s.revertirTx(tx, libro, salida.ID, venta, conservar); err != nil {
		return err
	}
	if err := s.descontarLlenosTx(tx, salida.ID, lineas); err != nil {
		return err
	}
	if err := s.asignarPago(venta, totalLineas(lineas), req.Pago); err != nil {
		return err
	}

	if err := s.repo.UpdateTx(tx, venta); err != nil {
		return err
	}
	if err := s.repo.ReplaceItemsTx(tx, venta.ID, itemsDe(lineas)); err != nil {
		return err
	}
	if err := s.repo.ReplaceDevolucionesTx(tx, venta.ID, devolucionesDe(lineas, conservar)); err != nil {
		return err
	}
	if err := s.repo.DeleteDeudaPorVentaTx(tx, venta.ID); err != nil {
		return err
	}
	if venta.MontoPendiente.IsPositive() {
		deuda := &model.Deuda{SalidaID: salida.ID, VentaID: venta.ID, ClienteNombre: venta.ClienteNombre, Monto: venta.MontoPendiente}
		if err := s.repo.SaveDeudaTx(tx, deuda); err != nil {
			return err
		}
	}
	return s.acreditarVaciosTx(tx, libro, salida.ID, venta.ID, lineas)
}

func (s *ventaService) ajustarCerradaTx(tx *gorm.DB, libro *LibroStock, venta *model.Venta, req dto.ActualizarVentaRequest) error {
	usados := make([]bool, len(venta.Items))
	viejo := make(map[uuid.UUID]int)
	nuevoPend := make(map[uuid.UUID]int)
	productos := make(map[uuid.UUID]*model.Producto)
	cambiados := make(map[uuid.UUID]bool)

	for _, nuevo := range req.Items {
		pid, err := uuid.Parse(nuevo.ProductoID)
		if err != nil {
			return apierror.Validacion("producto_id inválido", map[string]string{"items.producto_id": "uuid"})
		}
		if nuevo.CantidadPendiente < 0 {
			return apierror.Validacion("la cantidad pendiente no puede ser negativa",
				map[string]string{"items.cantidad_pendiente": "min"})
		}
		idx := -1
		for i, it := range venta.Items {
			if !usados[i] && it.ProductoID == pid && it.CantidadLlenos == nuevo.CantidadLlenos {
				idx = i
				break
			}
		}
		if idx < 0 {
			nombre, guardada := pid.String(), 0
			for _, it := range venta.Items {
				if it.ProductoID == pid {
					guardada += it.CantidadLlenos
					if it.Producto != nil {
						nombre = it.Producto.Nombre
					}
				}
			}
			return apierror.CantidadInmutable(nombre, guardada, nuevo.CantidadLlenos)
		}
		usados[idx] = true

		it := &venta.Items[idx]
		viejo[pid] += it.CantidadPendiente
		nuevoPend[pid] += nuevo.CantidadPendiente
		productos[pid] = it.Producto
		if it.CantidadPendiente != nuevo.CantidadPendiente {
			it.CantidadPendiente = nuevo.CantidadPendiente
			cambiados[pid] = true
		}
	}
	for i, it := range venta.Items {
		if !usados[i] {
			nombre := it.ProductoID.String()
			if it.Producto != nil {
				nombre = it.Producto.Nombre
			}
			return apierror.CantidadInmutable(nombre, it.CantidadLlenos, 0)
		}
	}

	if err := s.asignarPago(venta, venta.Total, req.Pago); err != nil {
		return err
	}
	if err := s.repo.UpdateTx(tx, venta); err != nil {
		return err
	}
	if len(cambiados) == 0 {
		return s.guardarDeudaCerradaTx(tx, venta)
	}

	items := make([]model.VentaItem, len(venta.Items))
	for i, it := range venta.Items {
		it.Producto = nil
		items[i] = it
	}
	if err := s.repo.ReplaceItemsTx(tx, venta.ID, items); err != nil {
		return err
	}

	// Returns already delivered after the close reached the warehouse through
	// EntregarDevolucion; only the still-owed part moves it here.
	entregadas := entregasPorProducto(venta.Devoluciones)
	abiertas := make(map[uuid.UUID]int)
	for _, pid := range clavesOrdenadas(cambiados) {
		antes := max(0, viejo[pid]-entregadas[pid].cantidad)
		despues := max(0, nuevoPend[pid]-entregadas[pid].cantidad)
		abiertas[pid] = despues
		p := productos[pid]
		if d := antes - despues; d != 0 && p != nil && s.catalogo.EsGestionado(p.Tipo) {
			libro.Registrar(p.Tipo, model.MotivoPendienteSaldado, &venta.ID, Delta{Vacio: d},
				fmt.Sprintf("pendiente de %s: %d → %d con la salida cerrada (%d ya entregados)",
					p.Nombre, viejo[pid], nuevoPend[pid], entregadas[pid].cantidad))
		}
	}

	var devs []model.DevolucionPendiente
	for _, d := range venta.Devoluciones {
		if cambiados[d.ProductoID] && !d.Entregada {
			continue
		}
		devs = append(devs, d)
	}
	for _, pid := range clavesOrdenadas(abiertas) {
		if n := abiertas[pid]; n > 0 {
			devs = append(devs, model.DevolucionPendiente{ProductoID: pid, Cantidad: n})
		}
	}
	if err := s.repo.ReplaceDevolucionesTx(tx, venta.ID, devs); err != nil {
		return err
	}
	return s.guardarDeudaCerradaTx(tx, venta)
}

func (s *ventaService) guardarDeudaCerradaTx(tx *gorm.DB, venta *model.Venta) error {
	switch {
	case venta.MontoPendiente.IsPositive() && venta.Deuda != nil:
		venta.Deuda.Monto = venta.MontoPendiente
		venta.Deuda.ClienteNombre = venta.ClienteNombre
		return s.repo.SaveDeudaTx(tx, venta.Deuda)
	case venta.MontoPendiente.IsPositive():
		return s.repo.SaveDeudaTx(tx, &model.Deuda{
			SalidaID: venta.SalidaID, VentaID: venta.ID, ClienteNombre: venta.ClienteNombre, Monto: venta.MontoPendiente,
		})
	default:
		return s.repo.DeleteDeudaPorVentaTx(tx, venta.ID)
	}
}

// ── Eliminar ──────────────────────────────────────────────────────────────────

func (s *ventaService) Eliminar(ctx context.Context, usuarioID, ventaID uuid.UUID) error {
	actual, err := s.repo.FindByID(ctx, ventaID)
	if err != nil {
		return noEncontrado(err, "venta", ventaID)
	}
	salidaID := actual.SalidaID

	return s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.salidaTx(tx, salidaID)
		if err != nil {
			return err
		}
		if !salida.Abierta() {
			return apierror.SalidaYaFinalizada(salida.ID, salida.Estado)
		}
		venta, err := s.repo.FindByIDTx(tx, ventaID)
		if err != nil {
			return noEncontrado(err, "venta", ventaID)
		}
		libro.EnSalida(salida.ID)

		if err := s.revertirTx(tx, libro, salida.ID, venta, nil); err != nil {
			return err
		}
		if err := s.repo.DeleteTx(tx, venta.ID); err != nil {
			return err
		}
		if err := recalcularTotalesTx(tx, s.salidaRepo, s.repo, salida); err != nil {
			return err
		}
		return s.salidaRepo.UpdateTx(tx, salida)
	})
}

// ── PagarDeuda / EntregarDevolucion ──────────────────────────────────────────

func (s *ventaService) PagarDeuda(ctx context.Context, usuarioID, deudaID uuid.UUID) (*dto.DeudaResponse, error) {
	var deuda *model.Deuda
	err := s.uow.runTx(ctx, nil, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		var err error
		deuda, err = s.repo.FindDeudaTx(tx, deudaID)
		if err != nil {
			return noEncontrado(err, "deuda", deudaID)
		}
		if deuda.Pagada {
			return apierror.EstadoInvalido("la deuda %s ya fue pagada", deuda.ID)
		}
		ahora := time.Now().UTC()
		if err := s.repo.MarcarDeudaPagadaTx(tx, deuda.ID, ahora); err != nil {
			return err
		}
		deuda.Pagada = true
		deuda.PagadaAt = &ahora
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deudaToResponse(deuda), nil
}

// EntregarDevolucion records that the customer handed back an owed empty.
// While the route is OPEN the runner holds it; once FINALIZED it goes straight
// to the warehouse.
func (s *ventaService) EntregarDevolucion(ctx context.Context, usuarioID, devolucionID uuid.UUID) (*dto.DevolucionPendienteResponse, error) {
	dev, err := s.repo.FindDevolucion(ctx, devolucionID)
	if err != nil {
		return nil, noEncontrado(err, "devolución pendiente", devolucionID)
	}
	actual, err := s.repo.FindByID(ctx, dev.VentaID)
	if err != nil {
		return nil, noEncontrado(err, "venta", dev.VentaID)
	}
	salidaID := actual.SalidaID

	err = s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		var err error
		dev, err = s.repo.FindDevolucionTx(tx, devolucionID)
		if err != nil {
			return noEncontrado(err, "devolución pendiente", devolucionID)
		}
		if dev.Entregada {
			return apierror.EstadoInvalido("la devolución %s ya fue entregada", dev.ID)
		}
		salida, err := s.salidaTx(tx, salidaID)
		if err != nil {
			return err
		}
		libro.EnSalida(salida.ID)
		p, err := s.catalogo.ProductoTx(tx, dev.ProductoID)
		if err != nil {
			return err
		}

		switch salida.Estado {
		case model.EstadoSalidaAbierta:
			if err := s.stockCorredorRepo.IncrementarTx(tx, salida.ID, p.ID, 0, dev.Cantidad); err != nil {
				return err
			}
		case model.EstadoSalidaFinalizada:
			if s.catalogo.EsGestionado(p.Tipo) {
				ventaID := dev.VentaID
				libro.Registrar(p.Tipo, model.MotivoPendienteSaldado, &ventaID, Delta{Vacio: dev.Cantidad},
					fmt.Sprintf("devolución entregada tras el cierre: %d x %s", dev.Cantidad, p.Nombre))
			}
		default:
			return apierror.SalidaNoActiva(salida.ID, salida.Estado)
		}

		ahora := time.Now().UTC()
		if err := s.repo.MarcarDevolucionEntregadaTx(tx, dev.ID, ahora); err != nil {
			return err
		}
		dev.Entregada = true
		dev.EntregadaAt = &ahora
		return nil
	})
	if err != nil {
		return nil, err
	}
	return devolucionToResponse(*dev), nil
}

// ── Read side ─────────────────────────────────────────────────────────────────

func (s *ventaService) Obtener(ctx context.Context, ventaID uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repo.FindByID(ctx, ventaID)
	if err != nil {
		return nil, noEncontrado(err, "venta", ventaID)
	}
	return ventaToResponse(v), nil
}

func (s *ventaService) ListarPorSalida(ctx context.Context, salidaID uuid.UUID) ([]dto.VentaResponse, error) {
	if _, err := s.salidaRepo.FindByID(ctx, salidaID); err != nil {
		return nil, noEncontrado(err, "salida", salidaID)
	}
	ventas, err := s.repo.ListBySalida(ctx, salidaID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		out = append(out, *ventaToResponse(&ventas[i]))
	}
	return out, nil
}

// ── Stock movements ───────────────────────────────────────────────────────────

func (s *ventaService) salidaTx(tx *gorm.DB, salidaID uuid.UUID) (*model.Salida, error) {
	salida, err := s.salidaRepo.FindForUpdateTx(tx, salidaID)
	if err != nil {
		return nil, noEncontrado(err, "salida", salidaID)
	}
	return salida, nil
}

func (s *ventaService) resolverLineasTx(tx *gorm.DB, items []dto.ItemVentaRequest) ([]lineaVenta, error) {
	if len(items) == 0 {
		return nil, apierror.Validacion("la venta no tiene líneas", map[string]string{"items": "required"})
	}
	lineas := make([]lineaVenta, 0, len(items))
	for i, it := range items {
		campo := func(f string) string { return fmt.Sprintf("items[%d].%s", i, f) }
		pid, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, apierror.Validacion("producto_id inválido", map[string]string{campo("producto_id"): "uuid"})
		}
		switch {
		case it.CantidadLlenos <= 0:
			return nil, apierror.Validacion("la cantidad de llenos debe ser positiva", map[string]string{campo("cantidad_llenos"): "min"})
		case it.CantidadVacios < 0:
			return nil, apierror.Validacion("la cantidad de vacíos no puede ser negativa", map[string]string{campo("cantidad_vacios"): "min"})
		case it.CantidadPendiente < 0:
			return nil, apierror.Validacion("la cantidad pendiente no puede ser negativa", map[string]string{campo("cantidad_pendiente"): "min"})
		case it.Subtotal.IsNegative():
			return nil, apierror.Validacion("el subtotal no puede ser negativo", map[string]string{campo("subtotal"): "min"})
		}
		p, err := s.catalogo.ProductoTx(tx, pid)
		if err != nil {
			return nil, err
		}
		precio := it.PrecioUnitario
		if precio.IsZero() {
			precio = p.PrecioUnitario
		}
		lineas = append(lineas, lineaVenta{
			item: model.VentaItem{
				ProductoID:        pid,
				CantidadLlenos:    it.CantidadLlenos,
				CantidadVacios:    it.CantidadVacios,
				CantidadPendiente: it.CantidadPendiente,
				PrecioUnitario:    precio,
				ConIntercambio:    it.ConIntercambio,
				EsVale:            it.EsVale,
				Subtotal:          it.Subtotal,
			},
			producto: p,
		})
	}
	return lineas, nil
}

// descontarLlenosTx is a single compare-and-decrement per line.
func (s *ventaService) descontarLlenosTx(tx *gorm.DB, salidaID uuid.UUID, lineas []lineaVenta) error {
	for _, l := range lineas {
		ok, err := s.stockCorredorRepo.DescontarLlenoTx(tx, salidaID, l.producto.ID, l.item.CantidadLlenos)
		if err != nil {
			return err
		}
		if !ok {
			return faltanteCorredorTx(tx, s.stockCorredorRepo, salidaID, l.producto, "lleno", l.item.CantidadLlenos)
		}
	}
	return nil
}

// acreditarVaciosTx hands the sale's empties to the runner, credits the
// warehouse with what the attribution algorithm allows for normal lines, and
// logs audit rows for the other kinds of line. The sale must already be
// persisted with these lines.
func (s *ventaService) acreditarVaciosTx(tx *gorm.DB, libro *LibroStock, salidaID, ventaID uuid.UUID, lineas []lineaVenta) error {
	ganados := make(map[string]int)
	for _, l := range lineas {
		if l.item.CantidadVacios > 0 {
			if err := s.stockCorredorRepo.IncrementarTx(tx, salidaID, l.producto.ID, 0, l.item.CantidadVacios); err != nil {
				return err
			}
		}
		if !s.catalogo.EsGestionado(l.producto.Tipo) {
			continue
		}
		if l.item.EsNormal() {
			ganados[l.producto.Tipo] += l.item.CantidadVacios
			continue
		}
		motivo, detalle := motivoInformativo(l.item, l.producto, false)
		libro.Registrar(l.producto.Tipo, motivo, &ventaID, Delta{}, detalle)
	}

	creditos, err := s.creditoVaciosTx(tx, salidaID, ventaID, ganados)
	if err != nil {
		return err
	}
	for _, tipo := range tiposOrdenados(creditos) {
		libro.Registrar(tipo, model.MotivoVentaNormal, &ventaID, Delta{Vacio: creditos[tipo]},
			fmt.Sprintf("%d vacíos ganados, %d acreditados", ganados[tipo], creditos[tipo]))
	}
	return nil
}

// revertirTx undoes every stock effect of a persisted sale: the warehouse
// credit (recomputed with the sale excluded, yielding exactly what was
// credited), the runner's empties, and the runner's filled units.
// Delivered returns listed in conservar stay with the runner.
func (s *ventaService) revertirTx(tx *gorm.DB, libro *LibroStock, salidaID uuid.UUID, venta *model.Venta, conservar map[uuid.UUID]entregaPrevia) error {
	ganados := make(map[string]int)
	for _, it := range venta.Items {
		p := it.Producto
		if p == nil {
			var err error
			if p, err = s.catalogo.ProductoTx(tx, it.ProductoID); err != nil {
				return err
			}
		}
		if s.catalogo.EsGestionado(p.Tipo) {
			if it.EsNormal() {
				ganados[p.Tipo] += it.CantidadVacios
			} else {
				motivo, detalle := motivoInformativo(it, p, true)
				libro.Registrar(p.Tipo, motivo, &venta.ID, Delta{}, detalle)
			}
		}
		if it.CantidadVacios > 0 {
			ok, err := s.stockCorredorRepo.DescontarVacioTx(tx, salidaID, p.ID, it.CantidadVacios)
			if err != nil {
				return err
			}
			if !ok {
				return faltanteCorredorTx(tx, s.stockCorredorRepo, salidaID, p, "vacio", it.CantidadVacios)
			}
		}
		if err := s.stockCorredorRepo.IncrementarTx(tx, salidaID, p.ID, it.CantidadLlenos, 0); err != nil {
			return err
		}
	}

	entregadas := entregasPorProducto(venta.Devoluciones)
	for _, pid := range clavesOrdenadas(entregadas) {
		n := entregadas[pid].cantidad - conservar[pid].cantidad
		if n <= 0 {
			continue
		}
		ok, err := s.stockCorredorRepo.DescontarVacioTx(tx, salidaID, pid, n)
		if err != nil {
			return err
		}
		if !ok {
			p, err := s.catalogo.ProductoTx(tx, pid)
			if err != nil {
				return err
			}
			return faltanteCorredorTx(tx, s.stockCorredorRepo, salidaID, p, "vacio", n)
		}
	}

	creditos, err := s.creditoVaciosTx(tx, salidaID, venta.ID, ganados)
	if err != nil {
		return err
	}
	for _, tipo := range tiposOrdenados(creditos) {
		libro.Registrar(tipo, model.MotivoReversionNormal, &venta.ID, Delta{Vacio: -creditos[tipo]},
			fmt.Sprintf("reversión de %d vacíos acreditados", creditos[tipo]))
	}
	return nil
}

// creditoVaciosTx is the empty-attribution algorithm. Per container type:
//
//	devueltos = Σ empties physically returned through resupplies on the route
//	previos   = Σ filled units sold on normal lines of the route's other sales
//	antes     = max(0, previos − devueltos)
//	despues   = max(0, previos + ganados − devueltos)
//	credit    = despues − antes
//
// excluir is left out of previos, which makes a reversal yield exactly the
// credit the original sale received.
func (s *ventaService) creditoVaciosTx(tx *gorm.DB, salidaID, excluir uuid.UUID, ganados map[string]int) (map[string]int, error) {
	creditos := make(map[string]int)
	if len(ganados) == 0 {
		return creditos, nil
	}
	ventas, err := s.repo.ListBySalidaTx(tx, salidaID)
	if err != nil {
		return nil, err
	}
	previos := make(map[string]int)
	for _, v := range ventas {
		if v.ID == excluir {
			continue
		}
		for _, it := range v.Items {
			if it.Producto != nil && it.EsNormal() {
				previos[it.Producto.Tipo] += it.CantidadLlenos
			}
		}
	}
	for tipo, n := range ganados {
		if n == 0 {
			continue
		}
		devueltos, err := s.reabRepo.SumVaciosDevueltosTx(tx, salidaID, tipo)
		if err != nil {
			return nil, err
		}
		antes := max(0, previos[tipo]-devueltos)
		despues := max(0, previos[tipo]+n-devueltos)
		if c := despues - antes; c != 0 {
			creditos[tipo] = c
		}
	}
	return creditos, nil
}

func (s *ventaService) asignarPago(v *model.Venta, total decimal.Decimal, pago dto.PagoRequest) error {
	if pago.Efectivo.IsNegative() || pago.Billetera.IsNegative() || pago.Vale.IsNegative() || pago.Pendiente.IsNegative() {
		return apierror.Validacion("los importes de pago no pueden ser negativos", map[string]string{"pago": "min"})
	}
	pagos := pago.Efectivo.Add(pago.Billetera).Add(pago.Vale).Add(pago.Pendiente)
	if total.Sub(pagos).Abs().GreaterThan(s.epsilon) {
		return apierror.PagoNoCoincide(total, pagos)
	}
	v.Total = total
	v.Efectivo = pago.Efectivo
	v.Billetera = pago.Billetera
	v.Vale = pago.Vale
	v.MontoPendiente = pago.Pendiente
	return nil
}

func motivoInformativo(it model.VentaItem, p *model.Producto, reversion bool) (model.MotivoStock, string) {
	var motivo model.MotivoStock
	var detalle string
	switch {
	case it.EsVale:
		motivo, detalle = model.MotivoVentaVale, fmt.Sprintf("%d x %s pagados con vale", it.CantidadLlenos, p.Nombre)
		if reversion {
			motivo = model.MotivoReversionVale
		}
	case it.ConIntercambio:
		motivo, detalle = model.MotivoVentaConEnvase, fmt.Sprintf("%d x %s con intercambio de envase", it.CantidadLlenos, p.Nombre)
		if reversion {
			motivo = model.MotivoReversionConEnvase
		}
	default:
		motivo, detalle = model.MotivoVentaPendiente, fmt.Sprintf("%d x %s con %d vacíos pendientes", it.CantidadLlenos, p.Nombre, it.CantidadPendiente)
		if reversion {
			motivo = model.MotivoReversionPendiente
		}
	}
	return motivo, detalle
}

func totalLineas(lineas []lineaVenta) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lineas {
		total = total.Add(l.item.Subtotal)
	}
	return total
}

func itemsDe(lineas []lineaVenta) []model.VentaItem {
	items := make([]model.VentaItem, len(lineas))
	for i, l := range lineas {
		items[i] = l.item
	}
	return items
}

// devolucionesDe builds one owed-return row per product with pending empties.
// The part covered by conservar is written back as already delivered.
func devolucionesDe(lineas []lineaVenta, conservar map[uuid.UUID]entregaPrevia) []model.DevolucionPendiente {
	pendientes, orden := pendientesPorProducto(lineas)
	var devs []model.DevolucionPendiente
	for _, pid := range orden {
		n := pendientes[pid]
		if c := conservar[pid]; c.cantidad > 0 {
			devs = append(devs, model.DevolucionPendiente{ProductoID: pid, Cantidad: c.cantidad, Entregada: true, EntregadaAt: c.at})
			n -= c.cantidad
		}
		if n > 0 {
			devs = append(devs, model.DevolucionPendiente{ProductoID: pid, Cantidad: n})
		}
	}
	return devs
}

func pendientesPorProducto(lineas []lineaVenta) (map[uuid.UUID]int, []uuid.UUID) {
	pendientes := make(map[uuid.UUID]int)
	var orden []uuid.UUID
	for _, l := range lineas {
		if l.item.CantidadPendiente <= 0 {
			continue
		}
		if _, ok := pendientes[l.producto.ID]; !ok {
			orden = append(orden, l.producto.ID)
		}
		pendientes[l.producto.ID] += l.item.CantidadPendiente
	}
	return pendientes, orden
}

type entregaPrevia struct {
	cantidad int
	at       *time.Time
}

// entregasPorProducto sums the returns a sale already received, per product,
// keeping the latest delivery time.
func entregasPorProducto(devs []model.DevolucionPendiente) map[uuid.UUID]entregaPrevia {
	out := make(map[uuid.UUID]entregaPrevia)
	for _, d := range devs {
		if !d.Entregada {
			continue
		}
		e := out[d.ProductoID]
		e.cantidad += d.Cantidad
		if d.EntregadaAt != nil && (e.at == nil || d.EntregadaAt.After(*e.at)) {
			e.at = d.EntregadaAt
		}
		out[d.ProductoID] = e
	}
	return out
}

func clavesOrdenadas[V any](m map[uuid.UUID]V) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func tiposOrdenados(m map[string]int) []string {
	tipos := make([]string, 0, len(m))
	for t := range m {
		tipos = append(tipos, t)
	}
	sort.Strings(tipos)
	return tipos
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	resp := &dto.VentaResponse{
		ID:               v.ID.String(),
		SalidaID:         v.SalidaID.String(),
		VendedorID:       v.VendedorID.String(),
		ClienteNombre:    v.ClienteNombre,
		ClienteDireccion: v.ClienteDireccion,
		Efectivo:         v.Efectivo,
		Billetera:        v.Billetera,
		Vale:             v.Vale,
		MontoPendiente:   v.MontoPendiente,
		Total:            v.Total,
		Items:            make([]dto.ItemVentaResponse, 0, len(v.Items)),
		Devoluciones:     make([]dto.DevolucionPendienteResponse, 0, len(v.Devoluciones)),
		CreatedAt:        v.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range v.Items {
		item := dto.ItemVentaResponse{
			ProductoID:        it.ProductoID.String(),
			CantidadLlenos:    it.CantidadLlenos,
			CantidadVacios:    it.CantidadVacios,
			CantidadPendiente: it.CantidadPendiente,
			PrecioUnitario:    it.PrecioUnitario,
			Subtotal:          it.Subtotal,
			ConIntercambio:    it.ConIntercambio,
			EsVale:            it.EsVale,
		}
		if it.Producto != nil {
			item.Producto = it.Producto.Nombre
		}
		resp.Items = append(resp.Items, item)
	}
	for _, d := range v.Devoluciones {
		resp.Devoluciones = append(resp.Devoluciones, *devolucionToResponse(d))
	}
	if v.Deuda != nil {
		resp.Deuda = deudaToResponse(v.Deuda)
	}
	return resp
}

func deudaToResponse(d *model.Deuda) *dto.DeudaResponse {
	return &dto.DeudaResponse{
		ID:            d.ID.String(),
		SalidaID:      d.SalidaID.String(),
		VentaID:       d.VentaID.String(),
		ClienteNombre: d.ClienteNombre,
		Monto:         d.Monto,
		Pagada:        d.Pagada,
		PagadaAt:      timePtrString(d.PagadaAt),
	}
}

func devolucionToResponse(d model.DevolucionPendiente) *dto.DevolucionPendienteResponse {
	return &dto.DevolucionPendienteResponse{
		ID:          d.ID.String(),
		VentaID:     d.VentaID.String(),
		ProductoID:  d.ProductoID.String(),
		Cantidad:    d.Cantidad,
		Entregada:   d.Entregada,
		EntregadaAt: timePtrString(d.EntregadaAt),
	}
}
