package handler

import (
	"net/http"

	"distribuidora/internal/dto"
	"distribuidora/internal/service"

	"github.com/gin-gonic/gin"
)

type SalidasHandler struct {
	svc  service.SalidaService
	reab service.ReabastecimientoService
}

func NewSalidasHandler(svc service.SalidaService, reab service.ReabastecimientoService) *SalidasHandler {
	return &SalidasHandler{svc: svc, reab: reab}
}

// Abrir godoc
// @Summary      Abrir salida
// @Description  Abre la ruta de un corredor: la carga inicial pasa del almacén al corredor.
// @Tags         salidas
// @Accept       json
// @Produce      json
// @Param        body body dto.AbrirSalidaRequest true "Corredor y carga"
// @Success      201  {object} dto.SalidaResponse
// @Failure      409  {object} apierror.Error
// @Router       /v1/salidas [post]
func (h *SalidasHandler) Abrir(c *gin.Context) {
	var req dto.AbrirSalidaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *SalidasHandler) Listar(c *gin.Context) {
	var filter dto.SalidaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalidasHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancelar godoc
// @Summary      Cancelar salida
// @Description  Devuelve al almacén todo lo que lleva el corredor y cierra la salida como cancelada.
// @Tags         salidas
// @Produce      json
// @Param        id path string true "UUID de la salida"
// @Success      200 {object} dto.SalidaResponse
// @Router       /v1/salidas/{id}/cancelar [post]
func (h *SalidasHandler) Cancelar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Cancelar(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Finalizar godoc
// @Summary      Finalizar salida
// @Description  Liquida la salida: registra gastos finales, efectivo entregado y calcula la diferencia.
// @Tags         salidas
// @Accept       json
// @Produce      json
// @Param        id   path string                     true "UUID de la salida"
// @Param        body body dto.FinalizarSalidaRequest true "Liquidación"
// @Success      200  {object} dto.SalidaResponse
// @Router       /v1/salidas/{id}/finalizar [post]
func (h *SalidasHandler) Finalizar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.FinalizarSalidaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Finalizar(c.Request.Context(), actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalidasHandler) SaldarDiferencia(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.SaldarDiferencia(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalidasHandler) RegistrarGasto(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.GastoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarGasto(c.Request.Context(), actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Reabastecimientos ─────────────────────────────────────────────────────────

// Reabastecer godoc
// @Summary      Reabastecer corredor
// @Description  Entrega llenos al corredor y recibe vacíos por tipo de envase.
// @Tags         reabastecimientos
// @Accept       json
// @Produce      json
// @Param        id   path string                 true "UUID de la salida"
// @Param        body body dto.ReabastecerRequest true "Llenos y vacíos"
// @Success      201  {object} dto.ReabastecimientoResponse
// @Router       /v1/salidas/{id}/reabastecimientos [post]
func (h *SalidasHandler) Reabastecer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ReabastecerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.reab.Reabastecer(c.Request.Context(), actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *SalidasHandler) DevolverLlenos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DevolverLlenosRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.reab.DevolverLlenos(c.Request.Context(), actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *SalidasHandler) ListarReabastecimientos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.reab.ListarPorSalida(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
