package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LineaLlenosRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

// ReabastecerRequest: the runner takes Llenos from the warehouse and/or hands
// back VaciosPorTipo (container type → empties returned).
type ReabastecerRequest struct {
	Llenos        []LineaLlenosRequest `json:"llenos"          validate:"omitempty,dive"`
	VaciosPorTipo map[string]int       `json:"vacios_por_tipo" validate:"omitempty,dive,keys,required,endkeys,min=1"`
}

// DevolverLlenosRequest: the runner brings unsold filled units back.
type DevolverLlenosRequest struct {
	Lineas []LineaLlenosRequest `json:"lineas" validate:"required,min=1,dive"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DetalleReabastecimientoResponse struct {
	ProductoID      *string `json:"producto_id"`
	TipoProducto    string  `json:"tipo_producto"`
	LlenosTomados   int     `json:"llenos_tomados"`
	LlenosDevueltos int     `json:"llenos_devueltos"`
	VaciosDevueltos int     `json:"vacios_devueltos"`
}

type ReabastecimientoResponse struct {
	ID          string                            `json:"id"`
	SalidaID    string                            `json:"salida_id"`
	CreadoPorID string                            `json:"creado_por_id"`
	Tipo        string                            `json:"tipo"`
	CreatedAt   string                            `json:"created_at"`
	Detalles    []DetalleReabastecimientoResponse `json:"detalles"`
}
