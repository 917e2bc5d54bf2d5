package service

import (
	"context"
	"fmt"
	"testing"

	"distribuidora/internal/dto"
	"distribuidora/internal/infra"
	"distribuidora/internal/metrics"
	"distribuidora/internal/model"
	"distribuidora/internal/repository"
	"distribuidora/internal/worker"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── Test environment ──────────────────────────────────────────────────────────
// Every test gets its own in-memory SQLite database with the full schema and
// the real service graph on top of it.

type entorno struct {
	ctx     context.Context
	db      *gorm.DB
	m       *metrics.Metricas
	usuario uuid.UUID

	stock       StockService
	salidas     SalidaService
	reab        ReabastecimientoService
	ventas      VentaService
	conciliador Conciliador
}

func nuevoEntorno(t *testing.T) *entorno {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.Migrate(db))

	txm := repository.NewTxManager(db, false)
	productoRepo := repository.NewProductoRepository(db)
	stockRepo := repository.NewStockGlobalRepository(db)
	historialRepo := repository.NewHistorialStockRepository(db)
	salidaRepo := repository.NewSalidaRepository(db)
	stockCorredorRepo := repository.NewStockCorredorRepository(db)
	reabRepo := repository.NewReabastecimientoRepository(db)
	ventaRepo := repository.NewVentaRepository(db)

	m := metrics.New()
	catalogo := NewCatalogo(productoRepo, []string{"GAS_", "AGUA_"})
	conciliador := NewConciliador(txm, catalogo, stockRepo, productoRepo, m, worker.NewDispatcher(nil))
	uow := NewUnidadTrabajo(txm, infra.NewLocalRouteLocker(), stockRepo, historialRepo, conciliador)

	return &entorno{
		ctx:         context.Background(),
		db:          db,
		m:           m,
		usuario:     uuid.New(),
		stock:       NewStockService(uow, catalogo, productoRepo, stockRepo, historialRepo),
		salidas:     NewSalidaService(uow, catalogo, salidaRepo, stockCorredorRepo, ventaRepo),
		reab:        NewReabastecimientoService(uow, catalogo, reabRepo, salidaRepo, stockCorredorRepo),
		ventas:      NewVentaService(uow, catalogo, ventaRepo, salidaRepo, stockCorredorRepo, reabRepo, decimal.NewFromFloat(0.02)),
		conciliador: conciliador,
	}
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

func (e *entorno) crearProducto(t *testing.T, nombre, tipo string, llenos int) uuid.UUID {
	t.Helper()
	p, err := e.stock.CrearProducto(e.ctx, e.usuario, dto.CrearProductoRequest{
		Nombre:         nombre,
		Tipo:           tipo,
		PrecioUnitario: decimal.NewFromInt(100),
		StockLleno:     llenos,
		StockMinimo:    5,
	})
	require.NoError(t, err)
	return uuid.MustParse(p.ID)
}

func (e *entorno) ajustarVacios(t *testing.T, tipo string, delta int) {
	t.Helper()
	_, err := e.stock.AjusteManual(e.ctx, e.usuario, dto.AjusteManualRequest{Tipo: tipo, DeltaVacio: delta, Detalle: "conteo físico"})
	require.NoError(t, err)
}

// escenarioBase is the warehouse every route scenario starts from:
// GAS_10K = {lleno 50, vacio 10, total 60}.
func (e *entorno) escenarioBase(t *testing.T) uuid.UUID {
	t.Helper()
	p := e.crearProducto(t, "Garrafa 10kg", "GAS_10K", 50)
	e.ajustarVacios(t, "GAS_10K", 10)
	return p
}

func (e *entorno) abrir(t *testing.T, productoID uuid.UUID, cantidad int) uuid.UUID {
	t.Helper()
	s, err := e.salidas.Abrir(e.ctx, e.usuario, dto.AbrirSalidaRequest{
		CorredorID: uuid.NewString(),
		Cargas:     []dto.CargaRequest{{ProductoID: productoID.String(), Cantidad: cantidad}},
	})
	require.NoError(t, err)
	return uuid.MustParse(s.ID)
}

func ventaNormal(salidaID, productoID uuid.UUID, llenos, vacios int) dto.RegistrarVentaRequest {
	total := decimal.NewFromInt(int64(100 * llenos))
	return dto.RegistrarVentaRequest{
		SalidaID:      salidaID.String(),
		ClienteNombre: "Cliente",
		Items: []dto.ItemVentaRequest{{
			ProductoID:     productoID.String(),
			CantidadLlenos: llenos,
			CantidadVacios: vacios,
			PrecioUnitario: decimal.NewFromInt(100),
			Subtotal:       total,
		}},
		Pago: dto.PagoRequest{Efectivo: total},
	}
}

// ventaPendiente sells llenos units whose empties the customer still owes.
func ventaPendiente(salidaID, productoID uuid.UUID, llenos, pendiente int) dto.RegistrarVentaRequest {
	total := decimal.NewFromInt(int64(100 * llenos))
	return dto.RegistrarVentaRequest{
		SalidaID:      salidaID.String(),
		ClienteNombre: "Cliente",
		Items: []dto.ItemVentaRequest{{
			ProductoID:        productoID.String(),
			CantidadLlenos:    llenos,
			CantidadPendiente: pendiente,
			Subtotal:          total,
		}},
		Pago: dto.PagoRequest{Efectivo: total},
	}
}

func (e *entorno) vender(t *testing.T, req dto.RegistrarVentaRequest) *dto.VentaResponse {
	t.Helper()
	v, err := e.ventas.Registrar(e.ctx, e.usuario, req)
	require.NoError(t, err)
	return v
}

func (e *entorno) global(t *testing.T, tipo string) model.StockGlobal {
	t.Helper()
	var s model.StockGlobal
	require.NoError(t, e.db.First(&s, "tipo = ?", tipo).Error)
	return s
}

func (e *entorno) producto(t *testing.T, id uuid.UUID) model.Producto {
	t.Helper()
	var p model.Producto
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return p
}

// corredor returns the runner's counters, zero when the row does not exist.
func (e *entorno) corredor(t *testing.T, salidaID, productoID uuid.UUID) (lleno, vacio int) {
	t.Helper()
	var filas []model.StockCorredor
	require.NoError(t, e.db.Where("salida_id = ? AND producto_id = ?", salidaID, productoID).Find(&filas).Error)
	for _, f := range filas {
		lleno += f.Lleno
		vacio += f.Vacio
	}
	return lleno, vacio
}

func (e *entorno) historial(t *testing.T, motivo model.MotivoStock) []model.HistorialStock {
	t.Helper()
	var filas []model.HistorialStock
	require.NoError(t, e.db.Where("motivo = ?", motivo).Order("fecha ASC").Find(&filas).Error)
	return filas
}

// requireInvariantes checks Total == Lleno + Vacio, non-negative empties and
// Lleno == Σ product filled counts for every managed type.
func (e *entorno) requireInvariantes(t *testing.T) {
	t.Helper()
	var filas []model.StockGlobal
	require.NoError(t, e.db.Find(&filas).Error)
	for _, f := range filas {
		require.Equal(t, f.Lleno+f.Vacio, f.Total, "total de %s", f.Tipo)
		require.GreaterOrEqual(t, f.Vacio, 0, "vacio de %s", f.Tipo)

		var suma int
		require.NoError(t, e.db.Model(&model.Producto{}).
			Select("COALESCE(SUM(stock_lleno), 0)").Where("tipo = ?", f.Tipo).Scan(&suma).Error)
		require.Equal(t, suma, f.Lleno, "lleno de %s", f.Tipo)
	}
}
