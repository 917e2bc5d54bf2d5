package telemetry

import (
	"github.com/rs/zerolog/log"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
)

// InstrumentarDB registers the otelgorm plugin so every ledger query becomes a
// child span of the request that issued it. Query variables are never attached.
func InstrumentarDB(db *gorm.DB, enabled bool) error {
	if !enabled {
		return nil
	}
	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(db.Dialector.Name()),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return err
	}
	log.Info().Str("dialector", db.Dialector.Name()).Msg("database tracing enabled")
	return nil
}
