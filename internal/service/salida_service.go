package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"distribuidora/internal/apierror"
	"distribuidora/internal/dto"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalidaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirSalidaRequest) (*dto.SalidaResponse, error)
	Cancelar(ctx context.Context, usuarioID, salidaID uuid.UUID) (*dto.SalidaResponse, error)
	Finalizar(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.FinalizarSalidaRequest) (*dto.SalidaResponse, error)
	SaldarDiferencia(ctx context.Context, usuarioID, salidaID uuid.UUID) (*dto.SalidaResponse, error)
	RegistrarGasto(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.GastoRequest) (*dto.GastoResponse, error)
	Obtener(ctx context.Context, salidaID uuid.UUID) (*dto.SalidaResponse, error)
	Listar(ctx context.Context, filter dto.SalidaFilter) (*dto.SalidaListResponse, error)
}

type salidaService struct {
	uow               *UnidadTrabajo
	catalogo          Catalogo
	repo              repository.SalidaRepository
	stockCorredorRepo repository.StockCorredorRepository
	ventaRepo         repository.VentaRepository
}

func NewSalidaService(
	uow *UnidadTrabajo,
	catalogo Catalogo,
	repo repository.SalidaRepository,
	stockCorredorRepo repository.StockCorredorRepository,
	ventaRepo repository.VentaRepository,
) SalidaService {
	return &salidaService{
		uow:               uow,
		catalogo:          catalogo,
		repo:              repo,
		stockCorredorRepo: stockCorredorRepo,
		ventaRepo:         ventaRepo,
	}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// Moves the initial load from the warehouse to the runner. The runner id is
// locked so two concurrent opens cannot both pass the one-open-route check.

func (s *salidaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirSalidaRequest) (*dto.SalidaResponse, error) {
	corredorID, err := uuid.Parse(req.CorredorID)
	if err != nil {
		return nil, apierror.Validacion("corredor_id inválido", map[string]string{"corredor_id": "uuid"})
	}
	cargas, err := agruparLineas(req.Cargas)
	if err != nil {
		return nil, err
	}

	var salida model.Salida
	err = s.uow.runTx(ctx, &corredorID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		abierta, err := s.repo.FindAbiertaPorCorredorTx(tx, corredorID)
		if err == nil {
			return apierror.EstadoInvalido("el corredor %s ya tiene la salida %s abierta", corredorID, abierta.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		salida = model.Salida{
			CorredorID:    corredorID,
			CreadoPorID:   usuarioID,
			Estado:        model.EstadoSalidaAbierta,
			Observaciones: req.Observaciones,
		}
		for _, c := range cargas {
			salida.Cargas = append(salida.Cargas, model.SalidaCarga{ProductoID: c.productoID, Cantidad: c.cantidad})
			salida.TotalLlenos += c.cantidad
		}
		if err := s.repo.CreateTx(tx, &salida); err != nil {
			return err
		}
		libro.EnSalida(salida.ID)

		for _, c := range cargas {
			p, err := s.catalogo.ProductoTx(tx, c.productoID)
			if err != nil {
				return err
			}
			if !p.Activo {
				return apierror.EstadoInvalido("el producto %s está inactivo", p.Nombre)
			}
			if err := s.catalogo.AjustarStockLlenoTx(tx, p.ID, -c.cantidad); err != nil {
				return err
			}
			if err := s.stockCorredorRepo.IncrementarTx(tx, salida.ID, p.ID, c.cantidad, 0); err != nil {
				return err
			}
			if s.catalogo.EsGestionado(p.Tipo) {
				libro.Registrar(p.Tipo, model.MotivoAperturaSalida, nil, Delta{Lleno: -c.cantidad},
					fmt.Sprintf("carga inicial: %d x %s", c.cantidad, p.Nombre))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Obtener(ctx, salida.ID)
}

// ── Cancelar ──────────────────────────────────────────────────────────────────
// Everything the runner carries goes back to the warehouse: filled units to
// the products, filled and empty units to StockGlobal.

func (s *salidaService) Cancelar(ctx context.Context, usuarioID, salidaID uuid.UUID) (*dto.SalidaResponse, error) {
	err := s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.cargarTx(tx, salidaID)
		if err != nil {
			return err
		}
		if !salida.Abierta() {
			return apierror.EstadoInvalido("la salida %s no puede cancelarse en estado %s", salida.ID, salida.Estado)
		}
		libro.EnSalida(salida.ID)

		filas, err := s.stockCorredorRepo.ListBySalidaTx(tx, salida.ID)
		if err != nil {
			return err
		}
		for _, f := range filas {
			p := f.Producto
			if p == nil {
				if p, err = s.catalogo.ProductoTx(tx, f.ProductoID); err != nil {
					return err
				}
			}
			if f.Lleno > 0 {
				if err := s.catalogo.AjustarStockLlenoTx(tx, p.ID, f.Lleno); err != nil {
					return err
				}
			}
			if s.catalogo.EsGestionado(p.Tipo) {
				libro.Registrar(p.Tipo, model.MotivoCancelacionSalida, nil, Delta{Lleno: f.Lleno, Vacio: f.Vacio},
					fmt.Sprintf("devuelto al cancelar: %s %d llenos, %d vacíos", p.Nombre, f.Lleno, f.Vacio))
			}
		}
		if err := s.stockCorredorRepo.DeleteBySalidaTx(tx, salida.ID); err != nil {
			return err
		}

		ahora := time.Now().UTC()
		salida.Estado = model.EstadoSalidaCancelada
		salida.CanceladaAt = &ahora
		return s.repo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return s.Obtener(ctx, salidaID)
}

// ── Finalizar ─────────────────────────────────────────────────────────────────
// esperado = Σtotal − Σgastos − Σpendiente − Σbilletera − Σvale
// diferencia = entregado − esperado. Runner stock is left as is.

func (s *salidaService) Finalizar(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.FinalizarSalidaRequest) (*dto.SalidaResponse, error) {
	if req.EfectivoEntregado.IsNegative() {
		return nil, apierror.Validacion("el efectivo entregado no puede ser negativo",
			map[string]string{"efectivo_entregado": "min"})
	}
	err := s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.cargarTx(tx, salidaID)
		if err != nil {
			return err
		}
		if !salida.Abierta() {
			return apierror.EstadoInvalido("la salida %s no puede finalizarse en estado %s", salida.ID, salida.Estado)
		}
		for _, g := range req.Gastos {
			gasto := &model.Gasto{SalidaID: salida.ID, Concepto: g.Concepto, Monto: g.Monto}
			if err := s.repo.CreateGastoTx(tx, gasto); err != nil {
				return err
			}
		}

		ahora := time.Now().UTC()
		entregado := req.EfectivoEntregado
		salida.EfectivoEntregado = &entregado
		salida.Estado = model.EstadoSalidaFinalizada
		salida.FinalizadaAt = &ahora
		salida.LiquidadoPorID = &usuarioID
		if err := recalcularTotalesTx(tx, s.repo, s.ventaRepo, salida); err != nil {
			return err
		}
		return s.repo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return s.Obtener(ctx, salidaID)
}

// ── SaldarDiferencia ──────────────────────────────────────────────────────────
// Records that the runner paid back a cash shortfall.

func (s *salidaService) SaldarDiferencia(ctx context.Context, usuarioID, salidaID uuid.UUID) (*dto.SalidaResponse, error) {
	err := s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.cargarTx(tx, salidaID)
		if err != nil {
			return err
		}
		switch {
		case salida.Estado != model.EstadoSalidaFinalizada:
			return apierror.EstadoInvalido("la salida %s no está finalizada (estado %s)", salida.ID, salida.Estado)
		case salida.Diferencia == nil || !salida.Diferencia.IsNegative():
			dif := decimal.Zero
			if salida.Diferencia != nil {
				dif = *salida.Diferencia
			}
			return apierror.EstadoInvalido("la salida %s no tiene faltante que saldar (diferencia %s)", salida.ID, dif)
		case salida.DiferenciaSaldada:
			return apierror.EstadoInvalido("la diferencia de la salida %s ya fue saldada", salida.ID)
		}
		ahora := time.Now().UTC()
		salida.DiferenciaSaldada = true
		salida.DiferenciaSaldadaAt = &ahora
		salida.LiquidadoPorID = &usuarioID
		return s.repo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return s.Obtener(ctx, salidaID)
}

// ── RegistrarGasto ────────────────────────────────────────────────────────────

func (s *salidaService) RegistrarGasto(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.GastoRequest) (*dto.GastoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, apierror.Validacion("el monto del gasto debe ser positivo", map[string]string{"monto": "gt"})
	}
	gasto := &model.Gasto{SalidaID: salidaID, Concepto: req.Concepto, Monto: req.Monto}
	err := s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.cargarTx(tx, salidaID)
		if err != nil {
			return err
		}
		if !salida.Abierta() {
			return apierror.SalidaNoActiva(salida.ID, salida.Estado)
		}
		gasto.ID = uuid.Nil
		if err := s.repo.CreateGastoTx(tx, gasto); err != nil {
			return err
		}
		if err := recalcularTotalesTx(tx, s.repo, s.ventaRepo, salida); err != nil {
			return err
		}
		return s.repo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return gastoToResponse(*gasto), nil
}

// ── Read side ─────────────────────────────────────────────────────────────────

func (s *salidaService) Obtener(ctx context.Context, salidaID uuid.UUID) (*dto.SalidaResponse, error) {
	salida, err := s.repo.FindByID(ctx, salidaID)
	if err != nil {
		return nil, noEncontrado(err, "salida", salidaID)
	}
	stock, err := s.stockCorredorRepo.ListBySalida(ctx, salidaID)
	if err != nil {
		return nil, err
	}
	return salidaToResponse(salida, stock), nil
}

func (s *salidaService) Listar(ctx context.Context, filter dto.SalidaFilter) (*dto.SalidaListResponse, error) {
	f := repository.SalidaFilter{Estado: filter.Estado, Page: filter.Page, Limit: filter.Limit}
	if filter.CorredorID != "" {
		id, err := uuid.Parse(filter.CorredorID)
		if err != nil {
			return nil, apierror.Validacion("corredor_id inválido", map[string]string{"corredor_id": "uuid"})
		}
		f.CorredorID = &id
	}
	salidas, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := &dto.SalidaListResponse{
		Data:  make([]dto.SalidaResponse, 0, len(salidas)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range salidas {
		resp.Data = append(resp.Data, *salidaToResponse(&salidas[i], nil))
	}
	return resp, nil
}

func (s *salidaService) cargarTx(tx *gorm.DB, salidaID uuid.UUID) (*model.Salida, error) {
	salida, err := s.repo.FindForUpdateTx(tx, salidaID)
	if err != nil {
		return nil, noEncontrado(err, "salida", salidaID)
	}
	return salida, nil
}

// recalcularTotalesTx refreshes the running totals of salida from its sales
// and expenses. Once the runner has delivered cash it also recomputes the
// expected cash and the variance.
func recalcularTotalesTx(tx *gorm.DB, salidaRepo repository.SalidaRepository, ventaRepo repository.VentaRepository, salida *model.Salida) error {
	ventas, err := ventaRepo.ListBySalidaTx(tx, salida.ID)
	if err != nil {
		return err
	}
	gastos, err := salidaRepo.ListGastosTx(tx, salida.ID)
	if err != nil {
		return err
	}

	total, efectivo, billetera, vales, deudas := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, v := range ventas {
		total = total.Add(v.Total)
		efectivo = efectivo.Add(v.Efectivo)
		billetera = billetera.Add(v.Billetera)
		vales = vales.Add(v.Vale)
		deudas = deudas.Add(v.MontoPendiente)
	}
	totalGastos := decimal.Zero
	for _, g := range gastos {
		totalGastos = totalGastos.Add(g.Monto)
	}

	salida.TotalVentas = total
	salida.TotalEfectivo = efectivo
	salida.TotalBilletera = billetera
	salida.TotalVales = vales
	salida.TotalDeudas = deudas
	salida.TotalGastos = totalGastos

	if salida.EfectivoEntregado != nil {
		esperado := total.Sub(totalGastos).Sub(deudas).Sub(billetera).Sub(vales)
		diferencia := salida.EfectivoEntregado.Sub(esperado)
		salida.EfectivoEsperado = &esperado
		salida.Diferencia = &diferencia
	}
	return nil
}

type lineaAgrupada struct {
	productoID uuid.UUID
	cantidad   int
}

// agruparLineas parses and merges repeated products, keeping first-seen order.
func agruparLineas(cargas []dto.CargaRequest) ([]lineaAgrupada, error) {
	if len(cargas) == 0 {
		return nil, apierror.Validacion("se requiere al menos una línea", map[string]string{"cargas": "required"})
	}
	idx := make(map[uuid.UUID]int)
	var out []lineaAgrupada
	for i, c := range cargas {
		id, err := uuid.Parse(c.ProductoID)
		if err != nil {
			return nil, apierror.Validacion("producto_id inválido",
				map[string]string{fmt.Sprintf("cargas[%d].producto_id", i): "uuid"})
		}
		if c.Cantidad <= 0 {
			return nil, apierror.Validacion("la cantidad debe ser positiva",
				map[string]string{fmt.Sprintf("cargas[%d].cantidad", i): "min"})
		}
		if j, ok := idx[id]; ok {
			out[j].cantidad += c.Cantidad
			continue
		}
		idx[id] = len(out)
		out = append(out, lineaAgrupada{productoID: id, cantidad: c.Cantidad})
	}
	return out, nil
}

func salidaToResponse(s *model.Salida, stock []model.StockCorredor) *dto.SalidaResponse {
	resp := &dto.SalidaResponse{
		ID:                  s.ID.String(),
		CorredorID:          s.CorredorID.String(),
		CreadoPorID:         s.CreadoPorID.String(),
		LiquidadoPorID:      uuidPtrString(s.LiquidadoPorID),
		Estado:              s.Estado,
		TotalLlenos:         s.TotalLlenos,
		TotalVentas:         s.TotalVentas,
		TotalEfectivo:       s.TotalEfectivo,
		TotalBilletera:      s.TotalBilletera,
		TotalVales:          s.TotalVales,
		TotalDeudas:         s.TotalDeudas,
		TotalGastos:         s.TotalGastos,
		EfectivoEsperado:    s.EfectivoEsperado,
		EfectivoEntregado:   s.EfectivoEntregado,
		Diferencia:          s.Diferencia,
		DiferenciaSaldada:   s.DiferenciaSaldada,
		DiferenciaSaldadaAt: timePtrString(s.DiferenciaSaldadaAt),
		Observaciones:       s.Observaciones,
		AbiertaAt:           s.AbiertaAt.Format(time.RFC3339),
		FinalizadaAt:        timePtrString(s.FinalizadaAt),
		CanceladaAt:         timePtrString(s.CanceladaAt),
		Cargas:              make([]dto.CargaResponse, 0, len(s.Cargas)),
		Stock:               make([]dto.StockCorredorResponse, 0, len(stock)),
		Gastos:              make([]dto.GastoResponse, 0, len(s.Gastos)),
	}
	for _, c := range s.Cargas {
		resp.Cargas = append(resp.Cargas, dto.CargaResponse{ProductoID: c.ProductoID.String(), Cantidad: c.Cantidad})
	}
	for _, sc := range stock {
		linea := dto.StockCorredorResponse{ProductoID: sc.ProductoID.String(), Lleno: sc.Lleno, Vacio: sc.Vacio}
		if sc.Producto != nil {
			linea.Producto = sc.Producto.Nombre
			linea.Tipo = sc.Producto.Tipo
		}
		resp.Stock = append(resp.Stock, linea)
	}
	for _, g := range s.Gastos {
		resp.Gastos = append(resp.Gastos, *gastoToResponse(g))
	}
	return resp
}

func gastoToResponse(g model.Gasto) *dto.GastoResponse {
	return &dto.GastoResponse{
		ID:        g.ID.String(),
		Concepto:  g.Concepto,
		Monto:     g.Monto,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
}
