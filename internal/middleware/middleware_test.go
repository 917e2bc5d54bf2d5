package middleware_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"distribuidora/internal/apierror"
	"distribuidora/internal/infra"
	"distribuidora/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testRouter(h gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Actor(), middleware.ErrorHandler())
	r.Use(extra...)
	r.GET("/x", h)
	return r
}

func get(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	cases := map[apierror.Kind]int{
		apierror.KindNotFound:              http.StatusNotFound,
		apierror.KindValidation:            http.StatusUnprocessableEntity,
		apierror.KindPaymentMismatch:       http.StatusUnprocessableEntity,
		apierror.KindInsufficientStock:     http.StatusConflict,
		apierror.KindInvalidState:          http.StatusConflict,
		apierror.KindRouteAlreadyFinalized: http.StatusConflict,
		apierror.KindRouteNotActive:        http.StatusConflict,
		apierror.KindImmutableSaleQuantity: http.StatusConflict,
		"":                                 http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, middleware.StatusFor(kind), "kind %q", kind)
	}
}

func TestErrorHandler_RendersDomainFailure(t *testing.T) {
	r := testRouter(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("venta: %w", apierror.StockInsuficienteAlmacen("Garrafa 10kg", 5, 2)))
	})

	w := get(r, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"InsufficientStock"`)
	assert.Contains(t, w.Body.String(), `"contador":"almacen"`)
}

func TestErrorHandler_LockTimeoutIs503(t *testing.T) {
	r := testRouter(func(c *gin.Context) { _ = c.Error(infra.ErrRouteLockTimeout) })
	assert.Equal(t, http.StatusServiceUnavailable, get(r, nil).Code)
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	r := testRouter(func(c *gin.Context) { _ = c.Error(errors.New("pq: relation does not exist")) })

	w := get(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
}

func TestActor(t *testing.T) {
	r := testRouter(func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetActor(c).String())
	})

	w := get(r, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uuid.Nil.String(), w.Body.String())

	id := uuid.New()
	w = get(r, map[string]string{middleware.ActorHeader: id.String()})
	assert.Equal(t, id.String(), w.Body.String())

	w = get(r, map[string]string{middleware.ActorHeader: "no-es-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestID(t *testing.T) {
	r := testRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, map[string]string{middleware.RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))

	w = get(r, nil)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery())
	r.GET("/x", func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, get(r, nil).Code)
}

func TestRateLimiter_PorIP(t *testing.T) {
	r := testRouter(func(c *gin.Context) { c.Status(http.StatusOK) }, middleware.RateLimiter(2, time.Minute))
	desde := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":40000"
		req.Header.Set(middleware.ActorHeader, uuid.NewString())
		r.ServeHTTP(w, req)
		return w
	}

	// a fresh actor id on every request does not reset the quota
	assert.Equal(t, http.StatusOK, desde("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, desde("10.0.0.1").Code)
	w := desde("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, desde("10.0.0.2").Code)
}

func TestCORS(t *testing.T) {
	r := testRouter(func(c *gin.Context) { c.Status(http.StatusOK) },
		middleware.CORS([]string{"https://oficina.example"}))

	w := get(r, map[string]string{"Origin": "https://oficina.example"})
	assert.Equal(t, "https://oficina.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.ActorHeader)

	w = get(r, map[string]string{"Origin": "https://otro.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	abierto := testRouter(func(c *gin.Context) { c.Status(http.StatusOK) }, middleware.CORS([]string{"*"}))
	w = get(abierto, map[string]string{"Origin": "https://otro.example"})
	assert.Equal(t, "https://otro.example", w.Header().Get("Access-Control-Allow-Origin"))
}
