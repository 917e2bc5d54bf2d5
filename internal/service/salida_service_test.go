package service

import (
	"testing"

	"distribuidora/internal/apierror"
	"distribuidora/internal/dto"
	"distribuidora/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbrir_MueveCargaAlCorredor(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)

	g := e.global(t, "GAS_10K")
	require.Equal(t, model.StockGlobal{Tipo: "GAS_10K", Lleno: 50, Vacio: 10, Total: 60}, model.StockGlobal{Tipo: g.Tipo, Lleno: g.Lleno, Vacio: g.Vacio, Total: g.Total})

	salidaID := e.abrir(t, p, 10)

	assert.Equal(t, 40, e.producto(t, p).StockLleno)
	g = e.global(t, "GAS_10K")
	assert.Equal(t, 40, g.Lleno)
	assert.Equal(t, 10, g.Vacio)
	assert.Equal(t, 50, g.Total)
	lleno, vacio := e.corredor(t, salidaID, p)
	assert.Equal(t, 10, lleno)
	assert.Equal(t, 0, vacio)

	filas := e.historial(t, model.MotivoAperturaSalida)
	require.Len(t, filas, 1)
	assert.Equal(t, -10, filas[0].DeltaLleno)
	assert.Equal(t, 60, filas[0].TotalAnterior)
	assert.Equal(t, 50, filas[0].Total)
	require.NotNil(t, filas[0].SalidaID)
	assert.Equal(t, salidaID, *filas[0].SalidaID)
	require.NotNil(t, filas[0].UsuarioID)
	assert.Equal(t, e.usuario, *filas[0].UsuarioID)

	e.requireInvariantes(t)
}

func TestAbrir_AgrupaLineasDelMismoProducto(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)

	s, err := e.salidas.Abrir(e.ctx, e.usuario, dto.AbrirSalidaRequest{
		CorredorID: uuid.NewString(),
		Cargas: []dto.CargaRequest{
			{ProductoID: p.String(), Cantidad: 4},
			{ProductoID: p.String(), Cantidad: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, s.TotalLlenos)
	assert.Equal(t, 43, e.producto(t, p).StockLleno)
	assert.Len(t, e.historial(t, model.MotivoAperturaSalida), 1)
}

func TestAbrir_StockAlmacenInsuficiente(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)

	_, err := e.salidas.Abrir(e.ctx, e.usuario, dto.AbrirSalidaRequest{
		CorredorID: uuid.NewString(),
		Cargas:     []dto.CargaRequest{{ProductoID: p.String(), Cantidad: 51}},
	})
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindInsufficientStock))
	var domErr *apierror.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, apierror.ContadorAlmacen, domErr.Contador)

	// rolled back
	var n int64
	require.NoError(t, e.db.Model(&model.Salida{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, 50, e.producto(t, p).StockLleno)
}

func TestAbrir_UnaSalidaAbiertaPorCorredor(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	corredor := uuid.NewString()
	req := dto.AbrirSalidaRequest{CorredorID: corredor, Cargas: []dto.CargaRequest{{ProductoID: p.String(), Cantidad: 2}}}

	_, err := e.salidas.Abrir(e.ctx, e.usuario, req)
	require.NoError(t, err)
	_, err = e.salidas.Abrir(e.ctx, e.usuario, req)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestAbrir_ProductoNoGestionadoNoTocaStockGlobal(t *testing.T) {
	e := nuevoEntorno(t)
	valvula := e.crearProducto(t, "Válvula", "VALVULA", 20)

	salidaID := e.abrir(t, valvula, 5)

	var n int64
	require.NoError(t, e.db.Model(&model.StockGlobal{}).Where("tipo = ?", "VALVULA").Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, 15, e.producto(t, valvula).StockLleno)
	lleno, _ := e.corredor(t, salidaID, valvula)
	assert.Equal(t, 5, lleno)
}

func TestAbrirCancelar_RestauraValoresPrevios(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	antesProd := e.producto(t, p).StockLleno
	antes := e.global(t, "GAS_10K")

	salidaID := e.abrir(t, p, 10)
	_, err := e.salidas.Cancelar(e.ctx, e.usuario, salidaID)
	require.NoError(t, err)

	despues := e.global(t, "GAS_10K")
	assert.Equal(t, antesProd, e.producto(t, p).StockLleno)
	assert.Equal(t, antes.Lleno, despues.Lleno)
	assert.Equal(t, antes.Vacio, despues.Vacio)
	assert.Equal(t, antes.Total, despues.Total)
	lleno, vacio := e.corredor(t, salidaID, p)
	assert.Zero(t, lleno)
	assert.Zero(t, vacio)

	e.requireInvariantes(t)
}

// Runner holds {lleno 5, vacio 2}: everything returns to the warehouse.
func TestCancelar_DevuelveTodoAlAlmacen(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	salidaID := e.abrir(t, p, 10)
	e.vender(t, ventaNormal(salidaID, p, 5, 2))

	lleno, vacio := e.corredor(t, salidaID, p)
	require.Equal(t, 5, lleno)
	require.Equal(t, 2, vacio)
	antesProd := e.producto(t, p).StockLleno
	antes := e.global(t, "GAS_10K")

	s, err := e.salidas.Cancelar(e.ctx, e.usuario, salidaID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoSalidaCancelada, s.Estado)
	assert.NotNil(t, s.CanceladaAt)
	assert.Empty(t, s.Stock)

	despues := e.global(t, "GAS_10K")
	assert.Equal(t, antesProd+5, e.producto(t, p).StockLleno)
	assert.Equal(t, antes.Lleno+5, despues.Lleno)
	assert.Equal(t, antes.Vacio+2, despues.Vacio)
	assert.Equal(t, antes.Total+7, despues.Total)

	filas := e.historial(t, model.MotivoCancelacionSalida)
	require.Len(t, filas, 1)
	assert.Equal(t, 7, filas[0].Delta)

	_, err = e.salidas.Cancelar(e.ctx, e.usuario, salidaID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))

	e.requireInvariantes(t)
}

func TestFinalizar_CalculaDiferencia(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	salidaID := e.abrir(t, p, 10)
	e.vender(t, ventaNormal(salidaID, p, 1, 1)) // efectivo 100

	s, err := e.salidas.Finalizar(e.ctx, e.usuario, salidaID, dto.FinalizarSalidaRequest{
		EfectivoEntregado: decimal.NewFromInt(120),
	})
	require.NoError(t, err)
	assert.Equal(t, model.EstadoSalidaFinalizada, s.Estado)
	require.NotNil(t, s.EfectivoEsperado)
	require.NotNil(t, s.Diferencia)
	assert.True(t, s.EfectivoEsperado.Equal(decimal.NewFromInt(100)), s.EfectivoEsperado.String())
	assert.True(t, s.Diferencia.Equal(decimal.NewFromInt(20)), s.Diferencia.String())
	require.NotNil(t, s.LiquidadoPorID)
	assert.Equal(t, e.usuario.String(), *s.LiquidadoPorID)

	// positive variance: nothing to settle
	_, err = e.salidas.SaldarDiferencia(e.ctx, e.usuario, salidaID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))

	_, err = e.salidas.Finalizar(e.ctx, e.usuario, salidaID, dto.FinalizarSalidaRequest{})
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestFinalizar_GastosYFaltante(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	salidaID := e.abrir(t, p, 10)

	req := ventaNormal(salidaID, p, 3, 3) // 300
	req.Pago = dto.PagoRequest{
		Efectivo:  decimal.NewFromInt(150),
		Billetera: decimal.NewFromInt(50),
		Vale:      decimal.NewFromInt(40),
		Pendiente: decimal.NewFromInt(60),
	}
	e.vender(t, req)

	_, err := e.salidas.RegistrarGasto(e.ctx, e.usuario, salidaID, dto.GastoRequest{Concepto: "Combustible", Monto: decimal.NewFromInt(20)})
	require.NoError(t, err)

	// esperado = 300 − (20 + 10) − 60 − 50 − 40 = 120
	s, err := e.salidas.Finalizar(e.ctx, e.usuario, salidaID, dto.FinalizarSalidaRequest{
		EfectivoEntregado: decimal.NewFromInt(100),
		Gastos:            []dto.GastoRequest{{Concepto: "Peaje", Monto: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)
	assert.True(t, s.TotalGastos.Equal(decimal.NewFromInt(30)), s.TotalGastos.String())
	assert.True(t, s.EfectivoEsperado.Equal(decimal.NewFromInt(120)), s.EfectivoEsperado.String())
	assert.True(t, s.Diferencia.Equal(decimal.NewFromInt(-20)), s.Diferencia.String())
	assert.Len(t, s.Gastos, 2)

	s, err = e.salidas.SaldarDiferencia(e.ctx, e.usuario, salidaID)
	require.NoError(t, err)
	assert.True(t, s.DiferenciaSaldada)

	_, err = e.salidas.SaldarDiferencia(e.ctx, e.usuario, salidaID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))

	_, err = e.salidas.RegistrarGasto(e.ctx, e.usuario, salidaID, dto.GastoRequest{Concepto: "Tarde", Monto: decimal.NewFromInt(1)})
	assert.True(t, apierror.IsKind(err, apierror.KindRouteNotActive))
}

func TestSaldarDiferencia_SalidaAbierta(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	salidaID := e.abrir(t, p, 1)

	_, err := e.salidas.SaldarDiferencia(e.ctx, e.usuario, salidaID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestObtenerYListar(t *testing.T) {
	e := nuevoEntorno(t)
	p := e.escenarioBase(t)
	salidaID := e.abrir(t, p, 3)
	e.abrir(t, p, 2)

	s, err := e.salidas.Obtener(e.ctx, salidaID)
	require.NoError(t, err)
	require.Len(t, s.Cargas, 1)
	assert.Equal(t, 3, s.Cargas[0].Cantidad)
	require.Len(t, s.Stock, 1)
	assert.Equal(t, "GAS_10K", s.Stock[0].Tipo)

	_, err = e.salidas.Obtener(e.ctx, uuid.New())
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))

	lista, err := e.salidas.Listar(e.ctx, dto.SalidaFilter{Estado: model.EstadoSalidaAbierta, Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 2, lista.Total)
	assert.Len(t, lista.Data, 2)
}
