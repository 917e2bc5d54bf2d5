package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"distribuidora/internal/apierror"
	"distribuidora/internal/dto"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReabastecimientoService handles mid-route warehouse interactions. Every call
// produces exactly one Reabastecimiento record.
type ReabastecimientoService interface {
	Reabastecer(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.ReabastecerRequest) (*dto.ReabastecimientoResponse, error)
	DevolverLlenos(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.DevolverLlenosRequest) (*dto.ReabastecimientoResponse, error)
	ListarPorSalida(ctx context.Context, salidaID uuid.UUID) ([]dto.ReabastecimientoResponse, error)
}

type reabastecimientoService struct {
	uow               *UnidadTrabajo
	catalogo          Catalogo
	repo              repository.ReabastecimientoRepository
	salidaRepo        repository.SalidaRepository
	stockCorredorRepo repository.StockCorredorRepository
}

func NewReabastecimientoService(
	uow *UnidadTrabajo,
	catalogo Catalogo,
	repo repository.ReabastecimientoRepository,
	salidaRepo repository.SalidaRepository,
	stockCorredorRepo repository.StockCorredorRepository,
) ReabastecimientoService {
	return &reabastecimientoService{
		uow:               uow,
		catalogo:          catalogo,
		repo:              repo,
		salidaRepo:        salidaRepo,
		stockCorredorRepo: stockCorredorRepo,
	}
}

// ── Reabastecer ───────────────────────────────────────────────────────────────
// Filled units go warehouse → runner. Empties handed back are credited to
// StockGlobal per container type and become the "physically returned"
// quantity sale attribution compares against; runner stock is not touched.

func (s *reabastecimientoService) Reabastecer(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.ReabastecerRequest) (*dto.ReabastecimientoResponse, error) {
	var llenos []lineaAgrupada
	if len(req.Llenos) > 0 {
		var err error
		if llenos, err = agruparLineas(lineasToCargas(req.Llenos)); err != nil {
			return nil, err
		}
	}
	vacios := make(map[string]int)
	for tipo, n := range req.VaciosPorTipo {
		tipo = strings.ToUpper(strings.TrimSpace(tipo))
		if n <= 0 {
			return nil, apierror.Validacion("los vacíos devueltos deben ser positivos",
				map[string]string{"vacios_por_tipo." + tipo: "min"})
		}
		if !s.catalogo.EsGestionado(tipo) {
			return nil, apierror.Validacion(fmt.Sprintf("el tipo %s no es un envase gestionado", tipo),
				map[string]string{"vacios_por_tipo." + tipo: "gestionado"})
		}
		vacios[tipo] += n
	}
	if len(llenos) == 0 && len(vacios) == 0 {
		return nil, apierror.Validacion("el reabastecimiento está vacío",
			map[string]string{"llenos": "required", "vacios_por_tipo": "required"})
	}

	var reab model.Reabastecimiento
	err := s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.salidaAbiertaTx(tx, salidaID)
		if err != nil {
			return err
		}
		libro.EnSalida(salida.ID)
		reab = model.Reabastecimiento{SalidaID: salida.ID, CreadoPorID: usuarioID, Tipo: model.ReabastecimientoRecarga}

		for _, l := range llenos {
			p, err := s.catalogo.ProductoTx(tx, l.productoID)
			if err != nil {
				return err
			}
			if err := s.catalogo.AjustarStockLlenoTx(tx, p.ID, -l.cantidad); err != nil {
				return err
			}
			if err := s.stockCorredorRepo.IncrementarTx(tx, salida.ID, p.ID, l.cantidad, 0); err != nil {
				return err
			}
			if s.catalogo.EsGestionado(p.Tipo) {
				libro.Registrar(p.Tipo, model.MotivoRecarga, nil, Delta{Lleno: -l.cantidad},
					fmt.Sprintf("recarga: %d x %s", l.cantidad, p.Nombre))
			}
			pid := p.ID
			reab.Detalles = append(reab.Detalles, model.DetalleReabastecimiento{
				SalidaID:      salida.ID,
				ProductoID:    &pid,
				TipoProducto:  p.Tipo,
				LlenosTomados: l.cantidad,
			})
			salida.TotalLlenos += l.cantidad
		}

		tipos := make([]string, 0, len(vacios))
		for tipo := range vacios {
			tipos = append(tipos, tipo)
		}
		sort.Strings(tipos)
		for _, tipo := range tipos {
			n := vacios[tipo]
			libro.Registrar(tipo, model.MotivoDevolucionVacios, nil, Delta{Vacio: n},
				fmt.Sprintf("vacíos devueltos por el corredor: %d", n))
			reab.Detalles = append(reab.Detalles, model.DetalleReabastecimiento{
				SalidaID:        salida.ID,
				TipoProducto:    tipo,
				VaciosDevueltos: n,
			})
		}

		if err := s.repo.CreateTx(tx, &reab); err != nil {
			return err
		}
		return s.salidaRepo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return reabastecimientoToResponse(&reab), nil
}

// ── DevolverLlenos ────────────────────────────────────────────────────────────
// Unsold filled units go runner → warehouse.

func (s *reabastecimientoService) DevolverLlenos(ctx context.Context, usuarioID, salidaID uuid.UUID, req dto.DevolverLlenosRequest) (*dto.ReabastecimientoResponse, error) {
	lineas, err := agruparLineas(lineasToCargas(req.Lineas))
	if err != nil {
		return nil, err
	}

	var reab model.Reabastecimiento
	err = s.uow.runTx(ctx, &salidaID, usuarioID, func(tx *gorm.DB, libro *LibroStock) error {
		salida, err := s.salidaAbiertaTx(tx, salidaID)
		if err != nil {
			return err
		}
		libro.EnSalida(salida.ID)
		reab = model.Reabastecimiento{SalidaID: salida.ID, CreadoPorID: usuarioID, Tipo: model.ReabastecimientoDevolucionLlenos}

		for _, l := range lineas {
			p, err := s.catalogo.ProductoTx(tx, l.productoID)
			if err != nil {
				return err
			}
			ok, err := s.stockCorredorRepo.DescontarLlenoTx(tx, salida.ID, p.ID, l.cantidad)
			if err != nil {
				return err
			}
			if !ok {
				return faltanteCorredorTx(tx, s.stockCorredorRepo, salida.ID, p, "lleno", l.cantidad)
			}
			if err := s.catalogo.AjustarStockLlenoTx(tx, p.ID, l.cantidad); err != nil {
				return err
			}
			if s.catalogo.EsGestionado(p.Tipo) {
				libro.Registrar(p.Tipo, model.MotivoDevolucionLlenos, nil, Delta{Lleno: l.cantidad},
					fmt.Sprintf("llenos devueltos sin vender: %d x %s", l.cantidad, p.Nombre))
			}
			pid := p.ID
			reab.Detalles = append(reab.Detalles, model.DetalleReabastecimiento{
				SalidaID:        salida.ID,
				ProductoID:      &pid,
				TipoProducto:    p.Tipo,
				LlenosDevueltos: l.cantidad,
			})
			salida.TotalLlenos -= l.cantidad
		}

		if err := s.repo.CreateTx(tx, &reab); err != nil {
			return err
		}
		return s.salidaRepo.UpdateTx(tx, salida)
	})
	if err != nil {
		return nil, err
	}
	return reabastecimientoToResponse(&reab), nil
}

func (s *reabastecimientoService) ListarPorSalida(ctx context.Context, salidaID uuid.UUID) ([]dto.ReabastecimientoResponse, error) {
	if _, err := s.salidaRepo.FindByID(ctx, salidaID); err != nil {
		return nil, noEncontrado(err, "salida", salidaID)
	}
	filas, err := s.repo.ListBySalida(ctx, salidaID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ReabastecimientoResponse, 0, len(filas))
	for i := range filas {
		out = append(out, *reabastecimientoToResponse(&filas[i]))
	}
	return out, nil
}

func (s *reabastecimientoService) salidaAbiertaTx(tx *gorm.DB, salidaID uuid.UUID) (*model.Salida, error) {
	salida, err := s.salidaRepo.FindForUpdateTx(tx, salidaID)
	if err != nil {
		return nil, noEncontrado(err, "salida", salidaID)
	}
	if !salida.Abierta() {
		return nil, apierror.SalidaNoActiva(salida.ID, salida.Estado)
	}
	return salida, nil
}

// faltanteCorredorTx builds the InsufficientStock failure for a runner
// counter, reading what is actually available.
func faltanteCorredorTx(tx *gorm.DB, repo repository.StockCorredorRepository, salidaID uuid.UUID, p *model.Producto, campo string, solicitado int) error {
	disponible := 0
	fila, err := repo.FindTx(tx, salidaID, p.ID)
	switch {
	case err == nil:
		if campo == "vacio" {
			disponible = fila.Vacio
		} else {
			disponible = fila.Lleno
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return apierror.StockInsuficienteCorredor(p.Nombre, salidaID, campo, solicitado, disponible)
}

func lineasToCargas(lineas []dto.LineaLlenosRequest) []dto.CargaRequest {
	out := make([]dto.CargaRequest, len(lineas))
	for i, l := range lineas {
		out[i] = dto.CargaRequest{ProductoID: l.ProductoID, Cantidad: l.Cantidad}
	}
	return out
}

func reabastecimientoToResponse(r *model.Reabastecimiento) *dto.ReabastecimientoResponse {
	resp := &dto.ReabastecimientoResponse{
		ID:          r.ID.String(),
		SalidaID:    r.SalidaID.String(),
		CreadoPorID: r.CreadoPorID.String(),
		Tipo:        r.Tipo,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		Detalles:    make([]dto.DetalleReabastecimientoResponse, 0, len(r.Detalles)),
	}
	for _, d := range r.Detalles {
		resp.Detalles = append(resp.Detalles, dto.DetalleReabastecimientoResponse{
			ProductoID:      uuidPtrString(d.ProductoID),
			TipoProducto:    d.TipoProducto,
			LlenosTomados:   d.LlenosTomados,
			LlenosDevueltos: d.LlenosDevueltos,
			VaciosDevueltos: d.VaciosDevueltos,
		})
	}
	return resp
}
