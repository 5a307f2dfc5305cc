package transform

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// RawRecord is one element of the EIA response.data array, as decoded.
type RawRecord map[string]any

// Source field names. The two unit fields are hyphenated upstream and renamed
// to their underscore form during normalization.
const (
	FieldPeriod         = "period"
	FieldState          = "state"
	FieldStateName      = "stateName"
	FieldTechnology     = "technology"
	FieldSector         = "sector"
	FieldSectorName     = "sectorName"
	FieldCapacity       = "capacity"
	FieldCustomers      = "customers"
	FieldCapacityUnits  = "capacity_units"
	FieldCustomersUnits = "customers_units"
	FieldIngestedAt     = "ingested_at"
)

// renames maps upstream names onto destination names.
var renames = map[string]string{
	"capacity-units":  FieldCapacityUnits,
	"customers-units": FieldCustomersUnits,
}

// NormalizedRecord is a row of the destination table. The business key
// (Period, State, Technology, Sector) is always set on records returned by
// Transform.
type NormalizedRecord struct {
	Period         int64                `bigquery:"period" json:"period"`
	State          string               `bigquery:"state" json:"state"`
	StateName      bigquery.NullString  `bigquery:"stateName" json:"stateName"`
	Technology     string               `bigquery:"technology" json:"technology"`
	Sector         string               `bigquery:"sector" json:"sector"`
	SectorName     bigquery.NullString  `bigquery:"sectorName" json:"sectorName"`
	Capacity       bigquery.NullFloat64 `bigquery:"capacity" json:"capacity"`
	Customers      bigquery.NullInt64   `bigquery:"customers" json:"customers"`
	CapacityUnits  bigquery.NullString  `bigquery:"capacity_units" json:"capacity_units"`
	CustomersUnits bigquery.NullString  `bigquery:"customers_units" json:"customers_units"`
	IngestedAt     time.Time            `bigquery:"ingested_at" json:"ingested_at"`
}

// Raw converts the record back into the key layout Transform accepts, using
// the already-normalized field names. Null optionals become nil.
func (r NormalizedRecord) Raw() RawRecord {
	return RawRecord{
		FieldPeriod:         r.Period,
		FieldState:          r.State,
		FieldStateName:      nullStringValue(r.StateName),
		FieldTechnology:     r.Technology,
		FieldSector:         r.Sector,
		FieldSectorName:     nullStringValue(r.SectorName),
		FieldCapacity:       nullFloatValue(r.Capacity),
		FieldCustomers:      nullIntValue(r.Customers),
		FieldCapacityUnits:  nullStringValue(r.CapacityUnits),
		FieldCustomersUnits: nullStringValue(r.CustomersUnits),
		FieldIngestedAt:     r.IngestedAt,
	}
}

func nullStringValue(v bigquery.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.StringVal
}

func nullFloatValue(v bigquery.NullFloat64) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func nullIntValue(v bigquery.NullInt64) any {
	if !v.Valid {
		return nil
	}
	return v.Int64
}
