package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterDBTracing installs the otelgorm plugin so every statement issued by
// the repositories becomes a span. Query variables are stripped unless
// includeVariables is set.
func RegisterDBTracing(db *gorm.DB, dbName string, includeVariables bool, logger *zap.Logger) error {
	opts := []otelgorm.Option{otelgorm.WithDBName(dbName)}
	if !includeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}
	logger.Info("Database tracing enabled", zap.String("db_name", dbName))
	return nil
}
