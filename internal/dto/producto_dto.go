package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	Nombre         string          `json:"nombre"          validate:"required,min=2,max=120"`
	Tipo           string          `json:"tipo"            validate:"required,max=40"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"required,gt=0"`
	StockLleno     int             `json:"stock_lleno"     validate:"min=0"`
	StockMinimo    int             `json:"stock_minimo"    validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID             string          `json:"id"`
	Nombre         string          `json:"nombre"`
	Tipo           string          `json:"tipo"`
	Gestionado     bool            `json:"gestionado"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	StockLleno     int             `json:"stock_lleno"`
	StockMinimo    int             `json:"stock_minimo"`
	Activo         bool            `json:"activo"`
}
