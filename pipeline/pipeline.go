package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/load"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/snapshot"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/utils"
)

// Fetcher reads raw records from the source API.
type Fetcher interface {
	Fetch(ctx context.Context, limit, offset int) ([]transform.RawRecord, error)
	FetchAll(ctx context.Context, limit int) ([]transform.RawRecord, error)
}

// Result holds the row counts of one run. Dropped is the number of fetched
// rows rejected for missing a business key field.
type Result struct {
	Fetched     int
	Transformed int
	Dropped     int
	Loaded      int
	TableID     string
}

type Pipeline struct {
	Source       Fetcher
	Warehouse    load.Warehouse
	Provisioner  *load.Provisioner
	Loader       *load.Loader
	Logger       *slog.Logger
	timeProvider utils.TimeProvider

	pageSize               int
	paginate               bool
	concurrentProvisioning bool
	snapshotPath           string
	snapshotFormat         string
}

func NewPipeline(cfg *config.Config, source Fetcher, warehouse load.Warehouse, logger *slog.Logger, timeProvider utils.TimeProvider) *Pipeline {
	return &Pipeline{
		Source:                 source,
		Warehouse:              warehouse,
		Provisioner:            load.NewProvisioner(warehouse, logger),
		Loader:                 load.NewLoader(warehouse, cfg.Warehouse.LoadTimeout, logger),
		Logger:                 logger,
		timeProvider:           timeProvider,
		pageSize:               cfg.EIA.PageSize,
		paginate:               cfg.EIA.Paginate,
		concurrentProvisioning: cfg.Pipeline.ConcurrentProvisioning,
		snapshotPath:           cfg.Snapshot.Path,
		snapshotFormat:         cfg.Snapshot.Format,
	}
}

// Run provisions the destination, fetches and normalizes the source records
// and appends them. The first failing step aborts the run; anything already
// committed to the warehouse stays.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{TableID: p.Warehouse.TableID()}
	var rows []transform.NormalizedRecord

	if p.concurrentProvisioning {
		// Provisioning and fetching touch disjoint resources. Load waits for
		// both.
		pl := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
		pl.Go(p.provision)
		pl.Go(func(ctx context.Context) error {
			var err error
			rows, err = p.extractAndTransform(ctx, &res)
			return err
		})
		if err := pl.Wait(); err != nil {
			return res, err
		}
	} else {
		if err := p.provision(ctx); err != nil {
			return res, err
		}
		var err error
		rows, err = p.extractAndTransform(ctx, &res)
		if err != nil {
			return res, err
		}
	}

	loaded, err := p.Loader.Load(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("error loading rows into %s: %w", res.TableID, err)
	}
	res.Loaded = loaded

	p.Logger.Info("Pipeline finished",
		"table", res.TableID,
		"fetched", res.Fetched,
		"transformed", res.Transformed,
		"dropped", res.Dropped,
		"loaded", res.Loaded,
	)
	return res, nil
}

func (p *Pipeline) provision(ctx context.Context) error {
	if _, err := p.Provisioner.EnsureDataset(ctx); err != nil {
		return fmt.Errorf("error provisioning dataset: %w", err)
	}
	if _, err := p.Provisioner.EnsureTable(ctx); err != nil {
		return fmt.Errorf("error provisioning table: %w", err)
	}
	return nil
}

func (p *Pipeline) extractAndTransform(ctx context.Context, res *Result) ([]transform.NormalizedRecord, error) {
	raw, err := p.Extract(ctx)
	if err != nil {
		return nil, err
	}
	res.Fetched = len(raw)

	rows := transform.Transform(raw, p.timeProvider.Now())
	res.Transformed = len(rows)
	res.Dropped = res.Fetched - res.Transformed
	if res.Dropped > 0 {
		p.Logger.Warn("Dropped rows missing a business key field", "dropped", res.Dropped)
	}
	p.Logger.Info("Transformed records", "rows", res.Transformed)

	p.writeSnapshot(rows)
	return rows, nil
}

// Extract fetches the raw source records: one page, or every page when
// pagination is enabled.
func (p *Pipeline) Extract(ctx context.Context) ([]transform.RawRecord, error) {
	var (
		records []transform.RawRecord
		err     error
	)
	if p.paginate {
		records, err = p.Source.FetchAll(ctx, p.pageSize)
	} else {
		records, err = p.Source.Fetch(ctx, p.pageSize, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching net metering records: %w", err)
	}

	p.Logger.Info("Fetched records", "rows", len(records))
	return records, nil
}

func (p *Pipeline) writeSnapshot(rows []transform.NormalizedRecord) {
	if p.snapshotPath == "" {
		return
	}
	if err := snapshot.Write(p.snapshotPath, p.snapshotFormat, rows); err != nil {
		p.Logger.Warn("Failed to write snapshot", "path", p.snapshotPath, "error", err)
		return
	}
	p.Logger.Info("Wrote snapshot", "path", p.snapshotPath, "format", p.snapshotFormat, "rows", len(rows))
}
