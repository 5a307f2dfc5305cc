package load

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// BigQueryAPI is the subset of the GCP BigQuery client used by the BigQuery
// warehouse.
type BigQueryAPI interface {
	DatasetMetadata(ctx context.Context, datasetID string) error
	CreateDataset(ctx context.Context, datasetID, location string) error
	TableMetadata(ctx context.Context, datasetID, tableID string) error
	CreateTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error
	// LoadNDJSON runs one append load job and blocks until it completes.
	LoadNDJSON(ctx context.Context, datasetID, tableID string, data []byte, schema bigquery.Schema) (int64, error)
	DatasetIDs(ctx context.Context) ([]string, error)
	Close() error
}

// bigqueryClientWrapper wraps the real BigQuery client.
type bigqueryClientWrapper struct {
	client *bigquery.Client
}

func (w *bigqueryClientWrapper) DatasetMetadata(ctx context.Context, datasetID string) error {
	_, err := w.client.Dataset(datasetID).Metadata(ctx)
	return err
}

func (w *bigqueryClientWrapper) CreateDataset(ctx context.Context, datasetID, location string) error {
	return w.client.Dataset(datasetID).Create(ctx, &bigquery.DatasetMetadata{Location: location})
}

func (w *bigqueryClientWrapper) TableMetadata(ctx context.Context, datasetID, tableID string) error {
	_, err := w.client.Dataset(datasetID).Table(tableID).Metadata(ctx)
	return err
}

func (w *bigqueryClientWrapper) CreateTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error {
	return w.client.Dataset(datasetID).Table(tableID).Create(ctx, &bigquery.TableMetadata{Schema: schema})
}

func (w *bigqueryClientWrapper) LoadNDJSON(ctx context.Context, datasetID, tableID string, data []byte, schema bigquery.Schema) (int64, error) {
	src := bigquery.NewReaderSource(bytes.NewReader(data))
	src.SourceFormat = bigquery.JSON
	src.Schema = schema

	loader := w.client.Dataset(datasetID).Table(tableID).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed waiting for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("load job %s failed: %w", job.ID(), err)
	}

	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			return stats.OutputRows, nil
		}
	}
	return -1, nil
}

func (w *bigqueryClientWrapper) DatasetIDs(ctx context.Context) ([]string, error) {
	var ids []string
	it := w.client.Datasets(ctx)
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, ds.DatasetID)
	}
	return ids, nil
}

func (w *bigqueryClientWrapper) Close() error {
	return w.client.Close()
}

type BigQuery struct {
	Logger    *slog.Logger
	API       BigQueryAPI
	ProjectID string
	Dataset   string
	Table     string
	tableID   string
}

func NewBigQuery(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, cfg.Warehouse.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("error creating BigQuery client: %w", err)
	}

	logger.Info(fmt.Sprintf("Connected to BigQuery project %s", cfg.Warehouse.ProjectID))

	return NewBigQueryWithAPI(&bigqueryClientWrapper{client: client}, cfg, logger), nil
}

// NewBigQueryWithAPI builds the warehouse on top of an existing API
// implementation.
func NewBigQueryWithAPI(api BigQueryAPI, cfg *config.Config, logger *slog.Logger) *BigQuery {
	return &BigQuery{
		Logger:    logger,
		API:       api,
		ProjectID: cfg.Warehouse.ProjectID,
		Dataset:   cfg.Warehouse.Dataset,
		Table:     cfg.Warehouse.Table,
		tableID:   cfg.TableID(),
	}
}

func (b *BigQuery) TableID() string {
	return b.tableID
}

func (b *BigQuery) DatasetExists(ctx context.Context) (bool, error) {
	return exists(b.API.DatasetMetadata(ctx, b.Dataset))
}

func (b *BigQuery) CreateDataset(ctx context.Context) error {
	return ignoreAlreadyExists(b.API.CreateDataset(ctx, b.Dataset, DatasetLocation))
}

func (b *BigQuery) TableExists(ctx context.Context) (bool, error) {
	return exists(b.API.TableMetadata(ctx, b.Dataset, b.Table))
}

func (b *BigQuery) CreateTable(ctx context.Context, schema []Column) error {
	bqSchema, err := bigQuerySchema(schema)
	if err != nil {
		return err
	}
	return ignoreAlreadyExists(b.API.CreateTable(ctx, b.Dataset, b.Table, bqSchema))
}

// Append submits the rows as a single newline-delimited JSON load job.
func (b *BigQuery) Append(ctx context.Context, rows []transform.NormalizedRecord) (int64, error) {
	data, err := encodeNDJSON(rows)
	if err != nil {
		return 0, err
	}

	bqSchema, err := bigQuerySchema(Schema)
	if err != nil {
		return 0, err
	}

	b.Logger.Debug("Submitting BigQuery load job", "table", b.TableID(), "rows", len(rows), "bytes", len(data))

	written, err := b.API.LoadNDJSON(ctx, b.Dataset, b.Table, data, bqSchema)
	if err != nil {
		return 0, err
	}
	if written < 0 {
		written = int64(len(rows))
	}
	return written, nil
}

func (b *BigQuery) ListDatasets(ctx context.Context) ([]string, error) {
	return b.API.DatasetIDs(ctx)
}

func (b *BigQuery) Close() error {
	return b.API.Close()
}

func encodeNDJSON(rows []transform.NormalizedRecord) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	for i, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return nil, fmt.Errorf("failed to encode row %d: %w", i, err)
		}
	}
	return buffer.Bytes(), nil
}

// exists maps a metadata lookup result onto present/absent. Only a 404 means
// absent; every other error is returned unchanged.
func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if hasStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return false, err
}

// ignoreAlreadyExists treats a 409 from a create call as success, which
// happens when a concurrent run created the resource first.
func ignoreAlreadyExists(err error) error {
	if err != nil && hasStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
