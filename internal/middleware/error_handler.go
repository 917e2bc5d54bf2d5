package middleware

import (
	"errors"
	"net/http"
	"time"

	"distribuidora/internal/apierror"
	"distribuidora/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StatusFor maps a domain failure kind to its HTTP status.
func StatusFor(k apierror.Kind) int {
	switch k {
	case apierror.KindNotFound:
		return http.StatusNotFound
	case apierror.KindValidation, apierror.KindPaymentMismatch:
		return http.StatusUnprocessableEntity
	case apierror.KindInsufficientStock, apierror.KindInvalidState,
		apierror.KindRouteAlreadyFinalized, apierror.KindRouteNotActive,
		apierror.KindImmutableSaleQuantity:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Domain failures keep their message; anything else is logged and turned
// into a generic 500 so stack traces and DB errors never reach clients.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var domErr *apierror.Error
		switch {
		case errors.As(err, &domErr):
			c.AbortWithStatusJSON(StatusFor(domErr.Kind), domErr)
		case errors.Is(err, infra.ErrRouteLockTimeout):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
		default:
			log.Error().
				Str("request_id", c.GetString(RequestIDKey)).
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Err(err).
				Msg("unhandled error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
		}
	}
}

// Recovery handles panics and converts them into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// Logger logs each request with method, path, status, latency, and request_id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.
			Str("request_id", c.GetString(RequestIDKey)).
			Str("actor", GetActor(c).String()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
