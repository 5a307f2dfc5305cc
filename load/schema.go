package load

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// DatasetLocation is where new datasets are created.
const DatasetLocation = "US"

type FieldType string

const (
	Integer   FieldType = "INTEGER"
	String    FieldType = "STRING"
	Float     FieldType = "FLOAT"
	Timestamp FieldType = "TIMESTAMP"
)

type Column struct {
	Name string
	Type FieldType
}

// Schema is the destination table layout, in column order. Tables are always
// created from it, never from the data.
var Schema = []Column{
	{transform.FieldPeriod, Integer},
	{transform.FieldState, String},
	{transform.FieldStateName, String},
	{transform.FieldTechnology, String},
	{transform.FieldSector, String},
	{transform.FieldSectorName, String},
	{transform.FieldCapacity, Float},
	{transform.FieldCustomers, Integer},
	{transform.FieldCapacityUnits, String},
	{transform.FieldCustomersUnits, String},
	{transform.FieldIngestedAt, Timestamp},
}

// ColumnNames returns the column names of schema in order.
func ColumnNames(schema []Column) []string {
	names := make([]string, len(schema))
	for i, col := range schema {
		names[i] = col.Name
	}
	return names
}

func bigQuerySchema(schema []Column) (bigquery.Schema, error) {
	out := make(bigquery.Schema, 0, len(schema))
	for _, col := range schema {
		var ft bigquery.FieldType
		switch col.Type {
		case Integer:
			ft = bigquery.IntegerFieldType
		case String:
			ft = bigquery.StringFieldType
		case Float:
			ft = bigquery.FloatFieldType
		case Timestamp:
			ft = bigquery.TimestampFieldType
		default:
			return nil, fmt.Errorf("unsupported field type %q for column %s", col.Type, col.Name)
		}
		out = append(out, &bigquery.FieldSchema{Name: col.Name, Type: ft})
	}
	return out, nil
}

func duckDBType(ft FieldType) (string, error) {
	switch ft {
	case Integer:
		return "BIGINT", nil
	case String:
		return "VARCHAR", nil
	case Float:
		return "DOUBLE", nil
	case Timestamp:
		// Values are always UTC.
		return "TIMESTAMP", nil
	default:
		return "", fmt.Errorf("unsupported field type %q", ft)
	}
}

// quoteIdent quotes a SQL identifier for DuckDB.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// rowValues returns the row's cells in Schema order, with nulls as nil.
func rowValues(r transform.NormalizedRecord) []any {
	return []any{
		r.Period,
		r.State,
		nullable(r.StateName.Valid, r.StateName.StringVal),
		r.Technology,
		r.Sector,
		nullable(r.SectorName.Valid, r.SectorName.StringVal),
		nullable(r.Capacity.Valid, r.Capacity.Float64),
		nullable(r.Customers.Valid, r.Customers.Int64),
		nullable(r.CapacityUnits.Valid, r.CapacityUnits.StringVal),
		nullable(r.CustomersUnits.Valid, r.CustomersUnits.StringVal),
		r.IngestedAt.UTC(),
	}
}

func nullable[T any](valid bool, v T) any {
	if !valid {
		return nil
	}
	return v
}
