package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AjusteManualRequest corrects the warehouse empty count of a container type,
// e.g. after a physical count. Filled counts follow the products and cannot be
// adjusted here.
type AjusteManualRequest struct {
	Tipo       string `json:"tipo"        validate:"required,max=40"`
	DeltaVacio int    `json:"delta_vacio" validate:"required"`
	Detalle    string `json:"detalle"     validate:"required,min=3,max=255"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

// HistorialFilter is bound from the query string of GET /v1/stock/historial.
type HistorialFilter struct {
	Tipo     string `form:"tipo"`
	Motivo   string `form:"motivo"`
	SalidaID string `form:"salida_id" validate:"omitempty,uuid"`
	VentaID  string `form:"venta_id"  validate:"omitempty,uuid"`
	Desde    string `form:"desde"` // YYYY-MM-DD, inclusive
	Hasta    string `form:"hasta"` // YYYY-MM-DD, inclusive
	Page     int    `form:"page,default=1"    validate:"min=1"`
	Limit    int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockGlobalResponse struct {
	Tipo  string `json:"tipo"`
	Lleno int    `json:"lleno"`
	Vacio int    `json:"vacio"`
	Total int    `json:"total"`
}

type HistorialStockResponse struct {
	ID            string  `json:"id"`
	Tipo          string  `json:"tipo"`
	Lleno         int     `json:"lleno"`
	Vacio         int     `json:"vacio"`
	Total         int     `json:"total"`
	TotalAnterior int     `json:"total_anterior"`
	Delta         int     `json:"delta"`
	DeltaLleno    int     `json:"delta_lleno"`
	DeltaVacio    int     `json:"delta_vacio"`
	Motivo        string  `json:"motivo"`
	Detalle       string  `json:"detalle"`
	VentaID       *string `json:"venta_id"`
	SalidaID      *string `json:"salida_id"`
	UsuarioID     *string `json:"usuario_id"`
	Fecha         string  `json:"fecha"`
}

type HistorialListResponse struct {
	Data  []HistorialStockResponse `json:"data"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

// CorreccionResponse describes one StockGlobal row the reconciliation guard
// overwrote.
type CorreccionResponse struct {
	Tipo            string `json:"tipo"`
	LlenoRegistrado int    `json:"lleno_registrado"`
	LlenoReal       int    `json:"lleno_real"`
	TotalRegistrado int    `json:"total_registrado"`
	TotalReal       int    `json:"total_real"`
}

type ConciliacionResponse struct {
	Correcciones []CorreccionResponse `json:"correcciones"`
}
