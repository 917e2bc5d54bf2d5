package router

import (
	"time"

	"distribuidora/internal/config"
	"distribuidora/internal/handler"
	"distribuidora/internal/infra"
	"distribuidora/internal/metrics"
	"distribuidora/internal/middleware"
	"distribuidora/internal/repository"
	"distribuidora/internal/service"
	"distribuidora/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Servicios is the wired service layer, shared by the HTTP router and the
// background reconciliation sweep.
type Servicios struct {
	Stock             service.StockService
	Salidas           service.SalidaService
	Reabastecimientos service.ReabastecimientoService
	Ventas            service.VentaService
	Conciliador       service.Conciliador
}

// NewServicios wires the service layer.
// Dependency graph: Service ← Repository ← DB/Redis
// Without Redis the route lock is process-local and guard alerts are only logged.
func NewServicios(cfg *config.Config, db *gorm.DB, rdb *redis.Client, m *metrics.Metricas) *Servicios {
	// ── Repositories ─────────────────────────────────────────────────────────
	txm := repository.NewTxManager(db, cfg.DBSerializable)
	productoRepo := repository.NewProductoRepository(db)
	stockRepo := repository.NewStockGlobalRepository(db)
	historialRepo := repository.NewHistorialStockRepository(db)
	salidaRepo := repository.NewSalidaRepository(db)
	stockCorredorRepo := repository.NewStockCorredorRepository(db)
	reabRepo := repository.NewReabastecimientoRepository(db)
	ventaRepo := repository.NewVentaRepository(db)

	// ── Infrastructure ───────────────────────────────────────────────────────
	var locker service.RouteLocker = infra.NewLocalRouteLocker()
	if rdb != nil {
		locker = infra.NewRedisRouteLocker(rdb, cfg.RouteLockTTL())
	}
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	catalogo := service.NewCatalogo(productoRepo, cfg.Prefijos())
	conciliador := service.NewConciliador(txm, catalogo, stockRepo, productoRepo, m, dispatcher)
	uow := service.NewUnidadTrabajo(txm, locker, stockRepo, historialRepo, conciliador)

	return &Servicios{
		Stock:             service.NewStockService(uow, catalogo, productoRepo, stockRepo, historialRepo),
		Salidas:           service.NewSalidaService(uow, catalogo, salidaRepo, stockCorredorRepo, ventaRepo),
		Reabastecimientos: service.NewReabastecimientoService(uow, catalogo, reabRepo, salidaRepo, stockCorredorRepo),
		Ventas:            service.NewVentaService(uow, catalogo, ventaRepo, salidaRepo, stockCorredorRepo, reabRepo, cfg.Epsilon()),
		Conciliador:       conciliador,
	}
}

// New returns a configured Gin engine over svcs.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, m *metrics.Metricas, svcs *Servicios) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.ProxiesConfiables()); err != nil {
		log.Error().Err(err).Msg("TRUSTED_PROXIES inválido, no se confía en ningún proxy")
		_ = r.SetTrustedProxies(nil)
	}

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Actor())
	if cfg.TracingEnabled {
		r.Use(middleware.Tracing(cfg.ServiceName)...)
	}
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.OrigenesCORS()))
	r.Use(middleware.ErrorHandler())

	// ── Handlers ─────────────────────────────────────────────────────────────
	stockH := handler.NewStockHandler(svcs.Stock, svcs.Conciliador)
	salidasH := handler.NewSalidasHandler(svcs.Salidas, svcs.Reabastecimientos)
	ventasH := handler.NewVentasHandler(svcs.Ventas)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, cfg.TracingEnabled))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := r.Group("/v1", middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per actor
	{
		v1.POST("/productos", stockH.CrearProducto)
		v1.GET("/productos/bajo-minimo", stockH.BajoMinimo)

		stock := v1.Group("/stock")
		{
			stock.GET("", stockH.ListarStock)
			stock.GET("/historial", stockH.Historial)
			stock.POST("/ajustes", stockH.AjusteManual)
			stock.POST("/conciliar", stockH.Conciliar)
		}

		salidas := v1.Group("/salidas")
		{
			salidas.POST("", salidasH.Abrir)
			salidas.GET("", salidasH.Listar)
			salidas.GET("/:id", salidasH.Obtener)
			salidas.POST("/:id/cancelar", salidasH.Cancelar)
			salidas.POST("/:id/finalizar", salidasH.Finalizar)
			salidas.POST("/:id/saldar-diferencia", salidasH.SaldarDiferencia)
			salidas.POST("/:id/gastos", salidasH.RegistrarGasto)
			salidas.POST("/:id/reabastecimientos", salidasH.Reabastecer)
			salidas.GET("/:id/reabastecimientos", salidasH.ListarReabastecimientos)
			salidas.POST("/:id/devoluciones-llenos", salidasH.DevolverLlenos)
			salidas.GET("/:id/ventas", ventasH.ListarPorSalida)
		}

		ventas := v1.Group("/ventas")
		{
			ventas.POST("", ventasH.Registrar)
			ventas.GET("/:id", ventasH.Obtener)
			ventas.PUT("/:id", ventasH.Actualizar)
			ventas.DELETE("/:id", ventasH.Eliminar)
		}

		v1.POST("/deudas/:id/pagar", ventasH.PagarDeuda)
		v1.POST("/devoluciones/:id/entregar", ventasH.EntregarDevolucion)
	}

	return r
}
