package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"distribuidora/internal/apierror"
	"distribuidora/internal/dto"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockService covers the catalog entry point and the read side of the
// warehouse ledger.
type StockService interface {
	CrearProducto(ctx context.Context, usuarioID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	AjusteManual(ctx context.Context, usuarioID uuid.UUID, req dto.AjusteManualRequest) (*dto.StockGlobalResponse, error)
	ListarStock(ctx context.Context) ([]dto.StockGlobalResponse, error)
	Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error)
	ProductosBajoMinimo(ctx context.Context) ([]dto.ProductoResponse, error)
}

type stockService struct {
	uow           *UnidadTrabajo
	catalogo      Catalogo
	productoRepo  repository.ProductoRepository
	stockRepo     repository.StockGlobalRepository
	historialRepo repository.HistorialStockRepository
}

func NewStockService(
	uow *UnidadTrabajo,
	catalogo Catalogo,
	productoRepo repository.ProductoRepository,
	stockRepo repository.StockGlobalRepository,
	historialRepo repository.HistorialStockRepository,
) StockService {
	return &stockService{
		uow:           uow,
		catalogo:      catalogo,
		productoRepo:  productoRepo,
		stockRepo:     stockRepo,
		historialRepo: historialRepo,
	}
}

// ── CrearProducto ────────────────────────────────────────────────────────────
// A managed product brings its StockGlobal row into existence and its initial
// filled units into the ledger.

func (s *stockService) CrearProducto(ctx context.Context, usuarioID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	p := &model.Producto{
		Nombre:         strings.TrimSpace(req.Nombre),
		Tipo:           strings.ToUpper(strings.TrimSpace(req.Tipo)),
		PrecioUnitario: req.PrecioUnitario,
		StockLleno:     req.StockLleno,
		StockMinimo:    req.StockMinimo,
		Activo:         true,
	}
	err := s.uow.runTx(ctx, nil, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		if err := s.productoRepo.CreateTx(tx, p); err != nil {
			return err
		}
		if !s.catalogo.EsGestionado(p.Tipo) {
			return nil
		}
		if err := s.stockRepo.EnsureTx(tx, p.Tipo); err != nil {
			return err
		}
		libro.Registrar(p.Tipo, model.MotivoAjusteManual, nil, Delta{Lleno: p.StockLleno},
			fmt.Sprintf("alta de producto %s con %d llenos", p.Nombre, p.StockLleno))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.productoToResponse(p), nil
}

// ── AjusteManual ─────────────────────────────────────────────────────────────

func (s *stockService) AjusteManual(ctx context.Context, usuarioID uuid.UUID, req dto.AjusteManualRequest) (*dto.StockGlobalResponse, error) {
	tipo := strings.ToUpper(strings.TrimSpace(req.Tipo))
	if !s.catalogo.EsGestionado(tipo) {
		return nil, apierror.Validacion(
			fmt.Sprintf("el tipo %s no es un envase gestionado", tipo),
			map[string]string{"tipo": "gestionado"})
	}
	if req.DeltaVacio == 0 {
		return nil, apierror.Validacion("el ajuste no puede ser cero", map[string]string{"delta_vacio": "required"})
	}
	err := s.uow.runTx(ctx, nil, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		libro.Registrar(tipo, model.MotivoAjusteManual, nil, Delta{Vacio: req.DeltaVacio}, req.Detalle)
		return nil
	})
	if err != nil {
		return nil, err
	}
	fila, err := s.stockRepo.FindByTipo(ctx, tipo)
	if err != nil {
		return nil, err
	}
	return &dto.StockGlobalResponse{Tipo: fila.Tipo, Lleno: fila.Lleno, Vacio: fila.Vacio, Total: fila.Total}, nil
}

// ── Read side ────────────────────────────────────────────────────────────────

func (s *stockService) ListarStock(ctx context.Context) ([]dto.StockGlobalResponse, error) {
	filas, err := s.stockRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockGlobalResponse, 0, len(filas))
	for _, f := range filas {
		out = append(out, dto.StockGlobalResponse{Tipo: f.Tipo, Lleno: f.Lleno, Vacio: f.Vacio, Total: f.Total})
	}
	return out, nil
}

func (s *stockService) Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error) {
	f := repository.HistorialStockFilter{
		Tipo:  strings.ToUpper(filter.Tipo),
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	if filter.Motivo != "" {
		m := model.MotivoStock(filter.Motivo)
		if !m.Valido() {
			return nil, apierror.Validacion("motivo desconocido: "+filter.Motivo, map[string]string{"motivo": "oneof"})
		}
		f.Motivo = m
	}
	if filter.SalidaID != "" {
		id, err := uuid.Parse(filter.SalidaID)
		if err != nil {
			return nil, apierror.Validacion("salida_id inválido", map[string]string{"salida_id": "uuid"})
		}
		f.SalidaID = &id
	}
	if filter.VentaID != "" {
		id, err := uuid.Parse(filter.VentaID)
		if err != nil {
			return nil, apierror.Validacion("venta_id inválido", map[string]string{"venta_id": "uuid"})
		}
		f.VentaID = &id
	}
	if filter.Desde != "" {
		d, err := time.Parse("2006-01-02", filter.Desde)
		if err != nil {
			return nil, apierror.Validacion("desde debe tener formato YYYY-MM-DD", map[string]string{"desde": "date"})
		}
		f.Desde = &d
	}
	if filter.Hasta != "" {
		h, err := time.Parse("2006-01-02", filter.Hasta)
		if err != nil {
			return nil, apierror.Validacion("hasta debe tener formato YYYY-MM-DD", map[string]string{"hasta": "date"})
		}
		h = h.AddDate(0, 0, 1)
		f.Hasta = &h
	}

	filas, total, err := s.historialRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := &dto.HistorialListResponse{
		Data:  make([]dto.HistorialStockResponse, 0, len(filas)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for _, h := range filas {
		resp.Data = append(resp.Data, dto.HistorialStockResponse{
			ID:            h.ID.String(),
			Tipo:          h.Tipo,
			Lleno:         h.Lleno,
			Vacio:         h.Vacio,
			Total:         h.Total,
			TotalAnterior: h.TotalAnterior,
			Delta:         h.Delta,
			DeltaLleno:    h.DeltaLleno,
			DeltaVacio:    h.DeltaVacio,
			Motivo:        string(h.Motivo),
			Detalle:       h.Detalle,
			VentaID:       uuidPtrString(h.VentaID),
			SalidaID:      uuidPtrString(h.SalidaID),
			UsuarioID:     uuidPtrString(h.UsuarioID),
			Fecha:         h.Fecha.Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (s *stockService) ProductosBajoMinimo(ctx context.Context) ([]dto.ProductoResponse, error) {
	productos, err := s.productoRepo.ListBajoMinimo(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductoResponse, 0, len(productos))
	for i := range productos {
		out = append(out, *s.productoToResponse(&productos[i]))
	}
	return out, nil
}

func (s *stockService) productoToResponse(p *model.Producto) *dto.ProductoResponse {
	return &dto.ProductoResponse{
		ID:             p.ID.String(),
		Nombre:         p.Nombre,
		Tipo:           p.Tipo,
		Gestionado:     s.catalogo.EsGestionado(p.Tipo),
		PrecioUnitario: p.PrecioUnitario,
		StockLleno:     p.StockLleno,
		StockMinimo:    p.StockMinimo,
		Activo:         p.Activo,
	}
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
