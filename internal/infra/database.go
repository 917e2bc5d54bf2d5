package infra

import (
	"fmt"

	"distribuidora/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the schema
// up to date with Migrate.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every ledger table, then the PostgreSQL-only
// patches GORM cannot express. On other dialects (SQLite in tests) only the
// AutoMigrate step runs.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Producto{},
		&model.StockGlobal{},
		&model.HistorialStock{},
		&model.Salida{},
		&model.SalidaCarga{},
		&model.StockCorredor{},
		&model.Gasto{},
		&model.Reabastecimiento{},
		&model.DetalleReabastecimiento{},
		&model.Venta{},
		&model.VentaItem{},
		&model.DevolucionPendiente{},
		&model.Deuda{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches adds the CHECK constraints and the append-only trigger
// backing the ledger invariants. Every statement is guarded so re-running on an
// already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"productos stock_lleno >= 0", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_productos_stock_lleno') THEN
    ALTER TABLE productos ADD CONSTRAINT chk_productos_stock_lleno CHECK (stock_lleno >= 0);
  END IF;
END $$`},
		{"stock_global total = lleno + vacio", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_stock_global_total') THEN
    ALTER TABLE stock_global ADD CONSTRAINT chk_stock_global_total CHECK (total = lleno + vacio);
  END IF;
END $$`},
		{"stock_global vacio >= 0", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_stock_global_vacio') THEN
    ALTER TABLE stock_global ADD CONSTRAINT chk_stock_global_vacio CHECK (vacio >= 0);
  END IF;
END $$`},
		{"stock_corredor counters >= 0", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_stock_corredor_no_negativo') THEN
    ALTER TABLE stock_corredor ADD CONSTRAINT chk_stock_corredor_no_negativo CHECK (lleno >= 0 AND vacio >= 0);
  END IF;
END $$`},
		{"historial_stock append-only function", `
CREATE OR REPLACE FUNCTION historial_stock_inmutable() RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION 'historial_stock es de solo inserción';
END $$ LANGUAGE plpgsql`},
		{"historial_stock append-only trigger", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_historial_stock_inmutable') THEN
    CREATE TRIGGER trg_historial_stock_inmutable
      BEFORE UPDATE OR DELETE ON historial_stock
      FOR EACH ROW EXECUTE FUNCTION historial_stock_inmutable();
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
