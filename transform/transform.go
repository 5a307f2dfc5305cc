package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cast"
)

// candidate is a record after rename and coercion but before the
// required-field filter; nil pointers are null cells.
type candidate struct {
	period     *int64
	state      *string
	technology *string
	sector     *string
	record     NormalizedRecord
}

// Transform normalizes raw EIA records into destination rows.
//
// Every record is renamed, coerced and stamped with the same ingestion time
// (now, in UTC, at microsecond precision). Records whose period, state,
// technology or sector is null after coercion are dropped. Survivors keep
// their input order.
func Transform(records []RawRecord, now time.Time) []NormalizedRecord {
	ingestedAt := now.UTC().Truncate(time.Microsecond)

	rows := make([]NormalizedRecord, 0, len(records))
	for _, raw := range records {
		c := coerce(rename(raw))
		c.record.IngestedAt = ingestedAt
		if !c.valid() {
			continue
		}
		rows = append(rows, c.record)
	}
	return rows
}

// rename returns a copy of raw with upstream field names replaced by their
// destination names. If both spellings are present the upstream one wins.
func rename(raw RawRecord) RawRecord {
	out := make(RawRecord, len(raw))
	for k, v := range raw {
		if _, ok := renames[k]; !ok {
			out[k] = v
		}
	}
	for from, to := range renames {
		if v, ok := raw[from]; ok {
			out[to] = v
		}
	}
	return out
}

func coerce(raw RawRecord) candidate {
	var c candidate

	if v, ok := toInt(raw[FieldPeriod]); ok {
		c.period = &v
		c.record.Period = v
	}
	if v, ok := toString(raw[FieldState]); ok {
		c.state = &v
		c.record.State = v
	}
	if v, ok := toString(raw[FieldTechnology]); ok {
		c.technology = &v
		c.record.Technology = v
	}
	if v, ok := toString(raw[FieldSector]); ok {
		c.sector = &v
		c.record.Sector = v
	}

	c.record.StateName = nullString(raw[FieldStateName])
	c.record.SectorName = nullString(raw[FieldSectorName])
	c.record.CapacityUnits = nullString(raw[FieldCapacityUnits])
	c.record.CustomersUnits = nullString(raw[FieldCustomersUnits])

	if v, ok := toFloat(raw[FieldCapacity]); ok {
		c.record.Capacity = bigquery.NullFloat64{Float64: v, Valid: true}
	}
	if v, ok := toInt(raw[FieldCustomers]); ok {
		c.record.Customers = bigquery.NullInt64{Int64: v, Valid: true}
	}

	return c
}

func (c candidate) valid() bool {
	return c.period != nil && c.state != nil && c.technology != nil && c.sector != nil
}

func nullString(v any) bigquery.NullString {
	s, ok := toString(v)
	return bigquery.NullString{StringVal: s, Valid: ok}
}

// toString accepts strings as-is and stringifies scalar values.
func toString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case map[string]any, []any:
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// toFloat coerces numerals and numeric text. Empty, non-numeric and
// non-finite values are null.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt coerces whole-valued numerals. Fractional values are null.
func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
	}

	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
