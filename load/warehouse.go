package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

var (
	// ErrProvisioning is returned when a dataset or table existence check fails
	// for a reason other than the target being absent, or creation fails.
	ErrProvisioning = errors.New("provisioning error")
	// ErrLoad is returned when the append job fails.
	ErrLoad = errors.New("load error")
)

// Warehouse is the destination for normalized rows. Implementations are bound
// to a single dataset and table.
type Warehouse interface {
	// DatasetExists reports whether the dataset is present. A false result
	// with a nil error means the dataset is absent; any other failure is
	// returned as an error.
	DatasetExists(ctx context.Context) (bool, error)
	CreateDataset(ctx context.Context) error
	TableExists(ctx context.Context) (bool, error)
	CreateTable(ctx context.Context, schema []Column) error
	// Append adds rows to the table in one atomic operation and returns the
	// number of rows written. Existing rows are never touched.
	Append(ctx context.Context, rows []transform.NormalizedRecord) (int64, error)
	ListDatasets(ctx context.Context) ([]string, error)
	// TableID is the fully-qualified {project}.{dataset}.{table} identifier.
	TableID() string
	Close() error
}

// NewWarehouse opens the backend selected by warehouse.backend.
func NewWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Warehouse, error) {
	switch cfg.Warehouse.Backend {
	case config.BackendBigQuery:
		bq, err := NewBigQuery(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return bq, nil
	case config.BackendDuckDB:
		db, err := NewDuckDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: unknown warehouse backend %q", config.ErrConfiguration, cfg.Warehouse.Backend)
	}
}
