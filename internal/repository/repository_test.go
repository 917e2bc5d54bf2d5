package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB opens GORM over sqlmock with the PostgreSQL dialect.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock, mockDB
}

func TestProductoRepo_DescontarStockTx(t *testing.T) {
	t.Run("descuenta cuando alcanza", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		id := uuid.New()

		mock.ExpectExec(`UPDATE "productos" SET "stock_lleno"=stock_lleno - \$1,"updated_at"=\$2 WHERE \(?id = \$3 AND stock_lleno >= \$4`).
			WithArgs(3, sqlmock.AnyArg(), id, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := NewProductoRepository(db).DescontarStockTx(db, id, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no toca nada cuando no alcanza", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "productos" SET "stock_lleno"=stock_lleno - \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := NewProductoRepository(db).DescontarStockTx(db, uuid.New(), 99)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStockCorredorRepo_DescontarVacioTx(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	salidaID, productoID := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE "stock_corredor" SET "vacio"=vacio - \$1,"updated_at"=\$2 WHERE \(?salida_id = \$3 AND producto_id = \$4 AND vacio >= \$5`).
		WithArgs(2, sqlmock.AnyArg(), salidaID, productoID, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewStockCorredorRepository(db).DescontarVacioTx(db, salidaID, productoID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockGlobalRepo_FindForUpdateTx(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"tipo", "lleno", "vacio", "total"}).AddRow("GAS_10K", 40, 13, 53)
	mock.ExpectQuery(`SELECT \* FROM "stock_global" WHERE tipo = \$1 ORDER BY "stock_global"."tipo" LIMIT \$2 FOR UPDATE`).
		WithArgs("GAS_10K", 1).
		WillReturnRows(rows)

	fila, err := NewStockGlobalRepository(db).FindForUpdateTx(db, "GAS_10K")
	require.NoError(t, err)
	assert.Equal(t, 53, fila.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockGlobalRepo_AplicarDeltaTx(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectExec(`UPDATE "stock_global" SET .*"total"=total \+ \$\d.* WHERE tipo = \$\d`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewStockGlobalRepository(db).AplicarDeltaTx(db, "GAS_10K", -3, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_ReintentaFallosDeSerializacion(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	intentos := 0
	err := NewTxManager(db, false).WithTransaction(context.Background(), func(tx *gorm.DB) error {
		intentos++
		if intentos == 1 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, intentos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_NoReintentaOtrosErrores(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	intentos := 0
	err := NewTxManager(db, false).WithTransaction(context.Background(), func(tx *gorm.DB) error {
		intentos++
		return &pgconn.PgError{Code: "23505"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, intentos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_AgotaReintentos(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	for i := 0; i < maxIntentosSerializacion; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
	err := NewTxManager(db, false).WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return &pgconn.PgError{Code: "40001"}
	})
	assert.True(t, esFalloSerializacion(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
