package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ItemVentaRequest is one sold line. Subtotal is supplied by the caller and
// not recomputed from PrecioUnitario, since vouchers and discounts apply.
type ItemVentaRequest struct {
	ProductoID        string          `json:"producto_id"        validate:"required,uuid"`
	CantidadLlenos    int             `json:"cantidad_llenos"    validate:"required,min=1"`
	CantidadVacios    int             `json:"cantidad_vacios"    validate:"min=0"`
	CantidadPendiente int             `json:"cantidad_pendiente" validate:"min=0"`
	PrecioUnitario    decimal.Decimal `json:"precio_unitario"    validate:"min=0"`
	Subtotal          decimal.Decimal `json:"subtotal"           validate:"min=0"`
	ConIntercambio    bool            `json:"con_intercambio"`
	EsVale            bool            `json:"es_vale"`
}

// PagoRequest splits the sale total across payment channels. Pendiente is
// the amount left as customer debt.
type PagoRequest struct {
	Efectivo  decimal.Decimal `json:"efectivo"  validate:"min=0"`
	Billetera decimal.Decimal `json:"billetera" validate:"min=0"`
	Vale      decimal.Decimal `json:"vale"      validate:"min=0"`
	Pendiente decimal.Decimal `json:"pendiente" validate:"min=0"`
}

type RegistrarVentaRequest struct {
	SalidaID         string             `json:"salida_id"         validate:"required,uuid"`
	ClienteNombre    string             `json:"cliente_nombre"    validate:"required,min=1,max=120"`
	ClienteDireccion *string            `json:"cliente_direccion" validate:"omitempty,max=255"`
	Items            []ItemVentaRequest `json:"items"             validate:"required,min=1,dive"`
	Pago             PagoRequest        `json:"pago"`
}

type ActualizarVentaRequest struct {
	ClienteNombre    *string            `json:"cliente_nombre"    validate:"omitempty,min=1,max=120"`
	ClienteDireccion *string            `json:"cliente_direccion" validate:"omitempty,max=255"`
	Items            []ItemVentaRequest `json:"items"             validate:"required,min=1,dive"`
	Pago             PagoRequest        `json:"pago"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID        string          `json:"producto_id"`
	Producto          string          `json:"producto"`
	CantidadLlenos    int             `json:"cantidad_llenos"`
	CantidadVacios    int             `json:"cantidad_vacios"`
	CantidadPendiente int             `json:"cantidad_pendiente"`
	PrecioUnitario    decimal.Decimal `json:"precio_unitario"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ConIntercambio    bool            `json:"con_intercambio"`
	EsVale            bool            `json:"es_vale"`
}

type DeudaResponse struct {
	ID            string          `json:"id"`
	SalidaID      string          `json:"salida_id"`
	VentaID       string          `json:"venta_id"`
	ClienteNombre string          `json:"cliente_nombre"`
	Monto         decimal.Decimal `json:"monto"`
	Pagada        bool            `json:"pagada"`
	PagadaAt      *string         `json:"pagada_at"`
}

type DevolucionPendienteResponse struct {
	ID          string  `json:"id"`
	VentaID     string  `json:"venta_id"`
	ProductoID  string  `json:"producto_id"`
	Cantidad    int     `json:"cantidad"`
	Entregada   bool    `json:"entregada"`
	EntregadaAt *string `json:"entregada_at"`
}

type VentaResponse struct {
	ID               string                        `json:"id"`
	SalidaID         string                        `json:"salida_id"`
	VendedorID       string                        `json:"vendedor_id"`
	ClienteNombre    string                        `json:"cliente_nombre"`
	ClienteDireccion *string                       `json:"cliente_direccion"`
	Efectivo         decimal.Decimal               `json:"efectivo"`
	Billetera        decimal.Decimal               `json:"billetera"`
	Vale             decimal.Decimal               `json:"vale"`
	MontoPendiente   decimal.Decimal               `json:"monto_pendiente"`
	Total            decimal.Decimal               `json:"total"`
	Items            []ItemVentaResponse           `json:"items"`
	Devoluciones     []DevolucionPendienteResponse `json:"devoluciones"`
	Deuda            *DeudaResponse                `json:"deuda"`
	CreatedAt        string                        `json:"created_at"`
}
