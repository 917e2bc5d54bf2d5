package service

import (
	"context"
	"time"

	"distribuidora/internal/dto"
	"distribuidora/internal/repository"
	"distribuidora/internal/worker"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Correccion is one StockGlobal row the guard overwrote.
type Correccion struct {
	Tipo            string
	LlenoRegistrado int
	LlenoReal       int
	TotalRegistrado int
	TotalReal       int
}

// RegistroCorrecciones counts guard corrections (Prometheus in production).
type RegistroCorrecciones interface {
	CorreccionConciliacion(tipo string)
}

// Conciliador is the reconciliation guard. It recomputes StockGlobal.Lleno and
// Total of every container-managed type from the per-product filled counts and
// overwrites drifted rows without writing history. A correction means some
// bookkeeping path is wrong, so each one is also surfaced once the
// transaction commits.
type Conciliador interface {
	ConciliarTx(tx *gorm.DB) ([]Correccion, error)
	// Notificar logs, counts and enqueues an alert for every correction.
	// Call it only after the transaction that produced them committed.
	Notificar(ctx context.Context, correcciones []Correccion)
	// Conciliar runs the guard in its own transaction.
	Conciliar(ctx context.Context) (*dto.ConciliacionResponse, error)
}

type conciliador struct {
	txm          repository.TxManager
	catalogo     Catalogo
	stockRepo    repository.StockGlobalRepository
	productoRepo repository.ProductoRepository
	registro     RegistroCorrecciones
	dispatcher   *worker.Dispatcher
}

func NewConciliador(
	txm repository.TxManager,
	catalogo Catalogo,
	stockRepo repository.StockGlobalRepository,
	productoRepo repository.ProductoRepository,
	registro RegistroCorrecciones,
	dispatcher *worker.Dispatcher,
) Conciliador {
	return &conciliador{
		txm:          txm,
		catalogo:     catalogo,
		stockRepo:    stockRepo,
		productoRepo: productoRepo,
		registro:     registro,
		dispatcher:   dispatcher,
	}
}

func (c *conciliador) ConciliarTx(tx *gorm.DB) ([]Correccion, error) {
	filas, err := c.stockRepo.ListTx(tx)
	if err != nil {
		return nil, err
	}
	var correcciones []Correccion
	for _, f := range filas {
		if !c.catalogo.EsGestionado(f.Tipo) {
			continue
		}
		realLleno, err := c.productoRepo.SumStockPorTipoTx(tx, f.Tipo)
		if err != nil {
			return nil, err
		}
		realTotal := realLleno + f.Vacio
		if f.Lleno == realLleno && f.Total == realTotal {
			continue
		}
		if err := c.stockRepo.SobrescribirTx(tx, f.Tipo, realLleno, realTotal); err != nil {
			return nil, err
		}
		correcciones = append(correcciones, Correccion{
			Tipo:            f.Tipo,
			LlenoRegistrado: f.Lleno,
			LlenoReal:       realLleno,
			TotalRegistrado: f.Total,
			TotalReal:       realTotal,
		})
	}
	return correcciones, nil
}

func (c *conciliador) Notificar(ctx context.Context, correcciones []Correccion) {
	ahora := time.Now().UTC().Format(time.RFC3339)
	for _, corr := range correcciones {
		log.Warn().
			Str("tipo", corr.Tipo).
			Int("lleno_registrado", corr.LlenoRegistrado).
			Int("lleno_real", corr.LlenoReal).
			Int("total_registrado", corr.TotalRegistrado).
			Int("total_real", corr.TotalReal).
			Msg("conciliación: StockGlobal corregido")
		if c.registro != nil {
			c.registro.CorreccionConciliacion(corr.Tipo)
		}
		err := c.dispatcher.EnqueueAlertaConciliacion(ctx, worker.AlertaConciliacion{
			Tipo:            corr.Tipo,
			LlenoRegistrado: corr.LlenoRegistrado,
			LlenoReal:       corr.LlenoReal,
			TotalRegistrado: corr.TotalRegistrado,
			TotalReal:       corr.TotalReal,
			DetectadaAt:     ahora,
		})
		if err != nil {
			log.Error().Err(err).Str("tipo", corr.Tipo).Msg("conciliación: no se pudo encolar la alerta")
		}
	}
}

func (c *conciliador) Conciliar(ctx context.Context) (*dto.ConciliacionResponse, error) {
	var correcciones []Correccion
	err := c.txm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		correcciones, err = c.ConciliarTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.Notificar(ctx, correcciones)

	resp := &dto.ConciliacionResponse{Correcciones: []dto.CorreccionResponse{}}
	for _, corr := range correcciones {
		resp.Correcciones = append(resp.Correcciones, dto.CorreccionResponse{
			Tipo:            corr.Tipo,
			LlenoRegistrado: corr.LlenoRegistrado,
			LlenoReal:       corr.LlenoReal,
			TotalRegistrado: corr.TotalRegistrado,
			TotalReal:       corr.TotalReal,
		})
	}
	return resp, nil
}
