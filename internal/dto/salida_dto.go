package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CargaRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

type AbrirSalidaRequest struct {
	CorredorID    string         `json:"corredor_id"   validate:"required,uuid"`
	Cargas        []CargaRequest `json:"cargas"        validate:"required,min=1,dive"`
	Observaciones *string        `json:"observaciones" validate:"omitempty,max=500"`
}

type GastoRequest struct {
	Concepto string          `json:"concepto" validate:"required,min=2,max=120"`
	Monto    decimal.Decimal `json:"monto"    validate:"required,gt=0"`
}

type FinalizarSalidaRequest struct {
	EfectivoEntregado decimal.Decimal `json:"efectivo_entregado" validate:"min=0"`
	// Gastos declared at close time, appended before computing the variance.
	Gastos []GastoRequest `json:"gastos" validate:"omitempty,dive"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type SalidaFilter struct {
	CorredorID string `form:"corredor_id" validate:"omitempty,uuid"`
	Estado     string `form:"estado"      validate:"omitempty,oneof=abierta finalizada cancelada"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CargaResponse struct {
	ProductoID string `json:"producto_id"`
	Cantidad   int    `json:"cantidad"`
}

type StockCorredorResponse struct {
	ProductoID string `json:"producto_id"`
	Producto   string `json:"producto"`
	Tipo       string `json:"tipo"`
	Lleno      int    `json:"lleno"`
	Vacio      int    `json:"vacio"`
}

type GastoResponse struct {
	ID        string          `json:"id"`
	Concepto  string          `json:"concepto"`
	Monto     decimal.Decimal `json:"monto"`
	CreatedAt string          `json:"created_at"`
}

type SalidaResponse struct {
	ID                  string                  `json:"id"`
	CorredorID          string                  `json:"corredor_id"`
	CreadoPorID         string                  `json:"creado_por_id"`
	LiquidadoPorID      *string                 `json:"liquidado_por_id"`
	Estado              string                  `json:"estado"`
	TotalLlenos         int                     `json:"total_llenos"`
	TotalVentas         decimal.Decimal         `json:"total_ventas"`
	TotalEfectivo       decimal.Decimal         `json:"total_efectivo"`
	TotalBilletera      decimal.Decimal         `json:"total_billetera"`
	TotalVales          decimal.Decimal         `json:"total_vales"`
	TotalDeudas         decimal.Decimal         `json:"total_deudas"`
	TotalGastos         decimal.Decimal         `json:"total_gastos"`
	EfectivoEsperado    *decimal.Decimal        `json:"efectivo_esperado"`
	EfectivoEntregado   *decimal.Decimal        `json:"efectivo_entregado"`
	Diferencia          *decimal.Decimal        `json:"diferencia"`
	DiferenciaSaldada   bool                    `json:"diferencia_saldada"`
	DiferenciaSaldadaAt *string                 `json:"diferencia_saldada_at"`
	Observaciones       *string                 `json:"observaciones"`
	AbiertaAt           string                  `json:"abierta_at"`
	FinalizadaAt        *string                 `json:"finalizada_at"`
	CanceladaAt         *string                 `json:"cancelada_at"`
	Cargas              []CargaResponse         `json:"cargas"`
	Stock               []StockCorredorResponse `json:"stock"`
	Gastos              []GastoResponse         `json:"gastos"`
}

type SalidaListResponse struct {
	Data  []SalidaResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
