package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/parquet-go/parquet-go"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// ParquetRow is the on-disk schema of a Parquet snapshot. Nullable columns
// are optional.
type ParquetRow struct {
	Period         int64     `parquet:"period"`
	State          string    `parquet:"state"`
	StateName      *string   `parquet:"stateName"`
	Technology     string    `parquet:"technology"`
	Sector         string    `parquet:"sector"`
	SectorName     *string   `parquet:"sectorName"`
	Capacity       *float64  `parquet:"capacity"`
	Customers      *int64    `parquet:"customers"`
	CapacityUnits  *string   `parquet:"capacity_units"`
	CustomersUnits *string   `parquet:"customers_units"`
	IngestedAt     time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

func toParquetRow(r transform.NormalizedRecord) ParquetRow {
	return ParquetRow{
		Period:         r.Period,
		State:          r.State,
		StateName:      stringPtr(r.StateName),
		Technology:     r.Technology,
		Sector:         r.Sector,
		SectorName:     stringPtr(r.SectorName),
		Capacity:       ptr(r.Capacity.Valid, r.Capacity.Float64),
		Customers:      ptr(r.Customers.Valid, r.Customers.Int64),
		CapacityUnits:  stringPtr(r.CapacityUnits),
		CustomersUnits: stringPtr(r.CustomersUnits),
		IngestedAt:     r.IngestedAt.UTC(),
	}
}

func stringPtr(s bigquery.NullString) *string {
	return ptr(s.Valid, s.StringVal)
}

func ptr[T any](valid bool, v T) *T {
	if !valid {
		return nil
	}
	return &v
}

// WriteParquet writes normalized rows to a single Parquet file.
func WriteParquet(path string, rows []transform.NormalizedRecord) error {
	records := make([]ParquetRow, len(rows))
	for i, r := range rows {
		records[i] = toParquetRow(r)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("failed to write parquet file %s: %w", path, err)
	}
	return nil
}

// ReadParquet reads a snapshot written by WriteParquet.
func ReadParquet(path string) ([]ParquetRow, error) {
	rows, err := parquet.ReadFile[ParquetRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	return rows, nil
}
