package handler

import (
	"net/http"

	"distribuidora/internal/dto"
	"distribuidora/internal/service"

	"github.com/gin-gonic/gin"
)

// StockHandler serves the catalog entry point and the warehouse ledger.
type StockHandler struct {
	svc         service.StockService
	conciliador service.Conciliador
}

func NewStockHandler(svc service.StockService, conciliador service.Conciliador) *StockHandler {
	return &StockHandler{svc: svc, conciliador: conciliador}
}

// CrearProducto godoc
// @Summary      Crear producto
// @Description  Alta de producto. Si el tipo es gestionado, su stock lleno inicial entra al libro de almacén.
// @Tags         productos
// @Accept       json
// @Produce      json
// @Param        body body dto.CrearProductoRequest true "Producto"
// @Success      201  {object} dto.ProductoResponse
// @Router       /v1/productos [post]
func (h *StockHandler) CrearProducto(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearProducto(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockHandler) BajoMinimo(c *gin.Context) {
	resp, err := h.svc.ProductosBajoMinimo(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) ListarStock(c *gin.Context) {
	resp, err := h.svc.ListarStock(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial godoc
// @Summary      Historial de stock
// @Description  Movimientos de StockGlobal en orden cronológico, filtrables por tipo, motivo, salida, venta y fechas.
// @Tags         stock
// @Produce      json
// @Param        tipo      query string false "Tipo de envase"
// @Param        motivo    query string false "Motivo del movimiento"
// @Param        salida_id query string false "UUID de la salida"
// @Param        venta_id  query string false "UUID de la venta"
// @Param        desde     query string false "YYYY-MM-DD"
// @Param        hasta     query string false "YYYY-MM-DD"
// @Success      200 {object} dto.HistorialListResponse
// @Router       /v1/stock/historial [get]
func (h *StockHandler) Historial(c *gin.Context) {
	var filter dto.HistorialFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) AjusteManual(c *gin.Context) {
	var req dto.AjusteManualRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjusteManual(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Conciliar runs the reconciliation guard on demand.
func (h *StockHandler) Conciliar(c *gin.Context) {
	resp, err := h.conciliador.Conciliar(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
