package load

import (
	"context"
	"fmt"
	"log/slog"
)

// Provisioner makes sure the destination dataset and table exist. Both calls
// are idempotent.
type Provisioner struct {
	Warehouse Warehouse
	Logger    *slog.Logger
}

func NewProvisioner(w Warehouse, logger *slog.Logger) *Provisioner {
	return &Provisioner{Warehouse: w, Logger: logger}
}

// EnsureDataset creates the dataset when it is absent and reports whether it
// did so.
func (p *Provisioner) EnsureDataset(ctx context.Context) (bool, error) {
	ok, err := p.Warehouse.DatasetExists(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: checking dataset for %s: %w", ErrProvisioning, p.Warehouse.TableID(), err)
	}
	if ok {
		p.Logger.Debug("Dataset already exists", "table", p.Warehouse.TableID())
		return false, nil
	}

	if err := p.Warehouse.CreateDataset(ctx); err != nil {
		return false, fmt.Errorf("%w: creating dataset for %s: %w", ErrProvisioning, p.Warehouse.TableID(), err)
	}
	p.Logger.Info("Created dataset", "table", p.Warehouse.TableID(), "location", DatasetLocation)
	return true, nil
}

// EnsureTable creates the table from Schema when it is absent and reports
// whether it did so. An existing table is left as is.
func (p *Provisioner) EnsureTable(ctx context.Context) (bool, error) {
	ok, err := p.Warehouse.TableExists(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: checking table %s: %w", ErrProvisioning, p.Warehouse.TableID(), err)
	}
	if ok {
		p.Logger.Debug("Table already exists", "table", p.Warehouse.TableID())
		return false, nil
	}

	if err := p.Warehouse.CreateTable(ctx, Schema); err != nil {
		return false, fmt.Errorf("%w: creating table %s: %w", ErrProvisioning, p.Warehouse.TableID(), err)
	}
	p.Logger.Info("Created table", "table", p.Warehouse.TableID(), "columns", len(Schema))
	return true, nil
}
