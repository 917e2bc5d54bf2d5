//go:build integration

package router_test

// End-to-end tests over real PostgreSQL and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"distribuidora/internal/config"
	"distribuidora/internal/dto"
	"distribuidora/internal/infra"
	"distribuidora/internal/metrics"
	"distribuidora/internal/middleware"
	"distribuidora/internal/router"
	"distribuidora/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, actor uuid.UUID) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, actor.String())
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	db     *gorm.DB
	rdb    *redis.Client
	actor  uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("distribuidora_test"),
		tcPostgres.WithUsername("distribuidora"),
		tcPostgres.WithPassword("distribuidora"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                8000,
		Env:                 "test",
		DatabaseURL:         pgURL,
		DBSerializable:      true,
		RedisURL:            rdURL,
		ContainerPrefixes:   "GAS_,AGUA_",
		PaymentEpsilon:      "0.02",
		RouteLockTTLSeconds: 10,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	m := metrics.New()
	engine := router.New(cfg, db, rdb, m, router.NewServicios(cfg, db, rdb, m))
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, db: db, rdb: rdb, actor: uuid.New()}
}

// seed creates GAS_10K with 50 filled units and 10 warehouse empties.
func (e *testEnv) seed(t *testing.T) string {
	t.Helper()
	resp := do(t, e.server, http.MethodPost, "/v1/productos", jsonBody(t, dto.CrearProductoRequest{
		Nombre: "Garrafa 10kg", Tipo: "GAS_10K", PrecioUnitario: decimal.NewFromInt(100), StockLleno: 50, StockMinimo: 5,
	}), e.actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p dto.ProductoResponse
	decodeJSON(t, resp, &p)

	resp = do(t, e.server, http.MethodPost, "/v1/stock/ajustes", jsonBody(t, dto.AjusteManualRequest{
		Tipo: "GAS_10K", DeltaVacio: 10, Detalle: "conteo inicial",
	}), e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	return p.ID
}

func (e *testEnv) stockGlobal(t *testing.T, tipo string) dto.StockGlobalResponse {
	t.Helper()
	resp := do(t, e.server, http.MethodGet, "/v1/stock", nil, e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var filas []dto.StockGlobalResponse
	decodeJSON(t, resp, &filas)
	for _, f := range filas {
		if f.Tipo == tipo {
			return f
		}
	}
	t.Fatalf("no StockGlobal row for %s", tipo)
	return dto.StockGlobalResponse{}
}

func venta(salidaID, productoID string, llenos int) dto.RegistrarVentaRequest {
	total := decimal.NewFromInt(int64(100 * llenos))
	return dto.RegistrarVentaRequest{
		SalidaID:      salidaID,
		ClienteNombre: "Cliente E2E",
		Items: []dto.ItemVentaRequest{{
			ProductoID: productoID, CantidadLlenos: llenos, CantidadVacios: llenos,
			PrecioUnitario: decimal.NewFromInt(100), Subtotal: total,
		}},
		Pago: dto.PagoRequest{Efectivo: total},
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_CicloCompletoDeSalida(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	e := setupTestEnv(t)
	productoID := e.seed(t)

	resp := do(t, e.server, http.MethodPost, "/v1/salidas", jsonBody(t, dto.AbrirSalidaRequest{
		CorredorID: uuid.NewString(),
		Cargas:     []dto.CargaRequest{{ProductoID: productoID, Cantidad: 10}},
	}), e.actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var salida dto.SalidaResponse
	decodeJSON(t, resp, &salida)
	assert.Equal(t, 40, e.stockGlobal(t, "GAS_10K").Lleno)

	resp = do(t, e.server, http.MethodPost, "/v1/ventas", jsonBody(t, venta(salida.ID, productoID, 3)), e.actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	g := e.stockGlobal(t, "GAS_10K")
	assert.Equal(t, 13, g.Vacio)
	assert.Equal(t, 53, g.Total)

	resp = do(t, e.server, http.MethodPost, "/v1/salidas/"+salida.ID+"/reabastecimientos", jsonBody(t, dto.ReabastecerRequest{
		VaciosPorTipo: map[string]int{"GAS_10K": 3},
	}), e.actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, e.server, http.MethodPost, "/v1/ventas", jsonBody(t, venta(salida.ID, productoID, 2)), e.actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 18, e.stockGlobal(t, "GAS_10K").Vacio)

	// wrong payment split
	bad := venta(salida.ID, productoID, 1)
	bad.Pago.Efectivo = decimal.NewFromInt(50)
	resp = do(t, e.server, http.MethodPost, "/v1/ventas", jsonBody(t, bad), e.actor)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, e.server, http.MethodPost, "/v1/salidas/"+salida.ID+"/finalizar", jsonBody(t, dto.FinalizarSalidaRequest{
		EfectivoEntregado: decimal.NewFromInt(520),
	}), e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &salida)
	require.NotNil(t, salida.Diferencia)
	assert.True(t, salida.Diferencia.Equal(decimal.NewFromInt(20)), salida.Diferencia.String())

	resp = do(t, e.server, http.MethodPost, "/v1/salidas/"+salida.ID+"/saldar-diferencia", nil, e.actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, e.server, http.MethodPost, "/v1/ventas", jsonBody(t, venta(salida.ID, productoID, 1)), e.actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, e.server, http.MethodGet, "/v1/stock/historial?salida_id="+salida.ID, nil, e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist dto.HistorialListResponse
	decodeJSON(t, resp, &hist)
	assert.EqualValues(t, 4, hist.Total) // apertura, 2 ventas, devolución de vacíos

	resp = do(t, e.server, http.MethodPost, "/v1/stock/conciliar", nil, e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conc dto.ConciliacionResponse
	decodeJSON(t, resp, &conc)
	assert.Empty(t, conc.Correcciones)
}

func TestE2E_VentasConcurrentesEnLaMismaSalida(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	e := setupTestEnv(t)
	productoID := e.seed(t)

	resp := do(t, e.server, http.MethodPost, "/v1/salidas", jsonBody(t, dto.AbrirSalidaRequest{
		CorredorID: uuid.NewString(),
		Cargas:     []dto.CargaRequest{{ProductoID: productoID, Cantidad: 5}},
	}), e.actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var salida dto.SalidaResponse
	decodeJSON(t, resp, &salida)

	// 8 one-unit sales against 5 units: exactly 5 succeed
	var wg sync.WaitGroup
	codes := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(venta(salida.ID, productoID, 1))
			req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/v1/ventas", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			r, err := e.server.Client().Do(req)
			if err != nil {
				codes <- 0
				return
			}
			r.Body.Close()
			codes <- r.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	ok, conflict := 0, 0
	for c := range codes {
		switch c {
		case http.StatusCreated:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 3, conflict)

	g := e.stockGlobal(t, "GAS_10K")
	assert.Equal(t, 15, g.Vacio)
	assert.Equal(t, g.Lleno+g.Vacio, g.Total)
}

func TestE2E_RedisRouteLockerTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	e := setupTestEnv(t)
	l := infra.NewRedisRouteLocker(e.rdb, 200*time.Millisecond)
	id := uuid.New()

	unlock, err := l.Lock(context.Background(), id)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), id)
	assert.ErrorIs(t, err, infra.ErrRouteLockTimeout)

	unlock()
	unlock2, err := l.Lock(context.Background(), id)
	require.NoError(t, err)
	unlock2()
}

func TestE2E_DLQ(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	e := setupTestEnv(t)
	ctx := context.Background()
	cola := worker.QueueAlertasConciliacion

	worker.EnviarADLQ(ctx, e.rdb, cola, "desconocido", json.RawMessage("no-json"), "payload inválido")
	alerta, _ := json.Marshal(worker.AlertaConciliacion{Tipo: "GAS_10K", LlenoRegistrado: 12, LlenoReal: 10})
	worker.EnviarADLQ(ctx, e.rdb, cola, worker.JobAlertaConciliacion, alerta, "consumidor caído")

	n, err := worker.LongitudDLQ(ctx, e.rdb, cola)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	reencoladas, err := worker.ReencolarDLQ(ctx, e.rdb, cola, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, reencoladas)

	n, err = worker.LongitudDLQ(ctx, e.rdb, cola)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "the undecodable entry stays parked")

	raw, err := e.rdb.RPop(ctx, cola).Result()
	require.NoError(t, err)
	var job worker.Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, worker.JobAlertaConciliacion, job.Type)
	assert.JSONEq(t, string(alerta), string(job.Payload))

	raw, err = e.rdb.RPop(ctx, worker.DLQPrefix+cola).Result()
	require.NoError(t, err)
	var muerta worker.AlertaMuerta
	require.NoError(t, json.Unmarshal([]byte(raw), &muerta))
	assert.Equal(t, "payload inválido", muerta.Motivo)
	assert.Equal(t, fmt.Sprintf("%q", "no-json"), string(muerta.Payload))
}

func TestE2E_AlertaDeConciliacionEncolada(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	e := setupTestEnv(t)
	e.seed(t)

	require.NoError(t, e.db.Exec("UPDATE stock_global SET lleno = lleno + 2, total = total + 2 WHERE tipo = 'GAS_10K'").Error)

	resp := do(t, e.server, http.MethodPost, "/v1/stock/conciliar", nil, e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conc dto.ConciliacionResponse
	decodeJSON(t, resp, &conc)
	require.Len(t, conc.Correcciones, 1)

	n, err := e.rdb.LLen(context.Background(), worker.QueueAlertasConciliacion).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	resp = do(t, e.server, http.MethodGet, "/metrics", nil, e.actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), metrics.MetricCorreccionesConciliacion+`{tipo="GAS_10K"} 1`)
}
