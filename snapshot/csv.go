package snapshot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/load"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// WriteRawCSV writes records as returned by the source. The header is the
// sorted union of all record keys; missing cells are empty.
func WriteRawCSV(path string, records []transform.RawRecord) error {
	header := RawColumns(records)

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, record := range records {
		line := make([]string, len(header))
		for j, col := range header {
			cell, err := rawCell(record[col])
			if err != nil {
				return fmt.Errorf("record %d column %s: %w", i, col, err)
			}
			line[j] = cell
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return writeFile(path, buffer.Bytes())
}

// RawColumns returns the sorted union of the keys of records.
func RawColumns(records []transform.RawRecord) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for k := range record {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func rawCell(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case json.Number:
		return v.String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return cast.ToStringE(v)
	}
}

// WriteCSV writes normalized rows with the destination columns as header.
// Nulls are written as empty cells.
func WriteCSV(path string, rows []transform.NormalizedRecord) error {
	header := load.ColumnNames(load.Schema)

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, row := range rows {
		raw := row.Raw()
		line := make([]string, len(header))
		for j, col := range header {
			cell, err := normalizedCell(raw[col])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, col, err)
			}
			line[j] = cell
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return writeFile(path, buffer.Bytes())
}

func normalizedCell(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	default:
		return cast.ToStringE(v)
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
