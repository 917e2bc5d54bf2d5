// Package apierror provides the typed failures returned by the ledger services
// and the envelopes the HTTP layer renders them into.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without parsing messages.
type Kind string

const (
	KindInsufficientStock     Kind = "InsufficientStock"
	KindInvalidState          Kind = "InvalidState"
	KindPaymentMismatch       Kind = "PaymentMismatch"
	KindImmutableSaleQuantity Kind = "ImmutableSaleQuantity"
	KindRouteAlreadyFinalized Kind = "RouteAlreadyFinalized"
	KindRouteNotActive        Kind = "RouteNotActive"
	KindNotFound              Kind = "NotFound"
	KindValidation            Kind = "ValidationError"
)

// Counters distinguishing the two InsufficientStock flavours.
const (
	ContadorAlmacen  = "almacen"
	ContadorCorredor = "corredor"
)

// Error is a domain failure: a kind plus a message an operator can act on.
type Error struct {
	Kind     Kind              `json:"kind"`
	Detail   string            `json:"detail"`
	Contador string            `json:"contador,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string { return e.Detail }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Contador == "" || t.Contador == e.Contador)
}

// KindOf returns the kind of err, or "" when err is not a domain failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is a domain failure of kind k.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

// StockInsuficienteAlmacen: the warehouse filled-count cannot cover the request.
func StockInsuficienteAlmacen(producto string, solicitado, disponible int) *Error {
	e := newf(KindInsufficientStock,
		"stock insuficiente en almacén para %s: solicitado %d, disponible %d", producto, solicitado, disponible)
	e.Contador = ContadorAlmacen
	return e
}

// VaciosInsuficientesAlmacen: the warehouse empty count would go negative.
func VaciosInsuficientesAlmacen(tipo string, solicitado, disponible int) *Error {
	e := newf(KindInsufficientStock,
		"vacíos insuficientes en almacén para %s: se requieren %d, disponibles %d", tipo, solicitado, disponible)
	e.Contador = ContadorAlmacen
	return e
}

// StockInsuficienteCorredor: the runner does not carry enough of a product.
func StockInsuficienteCorredor(producto string, salidaID fmt.Stringer, campo string, solicitado, disponible int) *Error {
	e := newf(KindInsufficientStock,
		"stock %s insuficiente del corredor en salida %s para %s: solicitado %d, disponible %d",
		campo, salidaID, producto, solicitado, disponible)
	e.Contador = ContadorCorredor
	return e
}

func EstadoInvalido(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}

func PagoNoCoincide(total, pagos fmt.Stringer) *Error {
	return newf(KindPaymentMismatch,
		"el total de la venta (%s) no coincide con la suma de pagos (%s)", total, pagos)
}

func CantidadInmutable(producto string, guardada, nueva int) *Error {
	return newf(KindImmutableSaleQuantity,
		"la salida está finalizada: no se puede cambiar la cantidad de %s de %d a %d", producto, guardada, nueva)
}

func SalidaYaFinalizada(salidaID fmt.Stringer, estado string) *Error {
	return newf(KindRouteAlreadyFinalized, "la salida %s ya no está abierta (estado %s)", salidaID, estado)
}

func SalidaNoActiva(salidaID fmt.Stringer, estado string) *Error {
	return newf(KindRouteNotActive, "la salida %s no está activa (estado %s)", salidaID, estado)
}

func NoEncontrado(recurso string, id any) *Error {
	return newf(KindNotFound, "%s %v no encontrado", recurso, id)
}

func Validacion(detail string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Detail: detail, Fields: fields}
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Kind   Kind   `json:"kind,omitempty"`
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
