package load

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// Loader appends normalized rows to the destination table.
type Loader struct {
	Warehouse Warehouse
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewLoader(w Warehouse, timeout time.Duration, logger *slog.Logger) *Loader {
	return &Loader{Warehouse: w, Timeout: timeout, Logger: logger}
}

// Load runs one append and blocks until the warehouse reports completion or
// the timeout expires. Existing rows are never modified, so loading the same
// rows twice stores them twice.
func (l *Loader) Load(ctx context.Context, rows []transform.NormalizedRecord) (int, error) {
	if len(rows) == 0 {
		l.Logger.Info("No rows to load", "table", l.Warehouse.TableID())
		return 0, nil
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	start := time.Now()
	written, err := l.Warehouse.Append(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("%w: appending %d rows to %s: %w", ErrLoad, len(rows), l.Warehouse.TableID(), err)
	}

	l.Logger.Info("Loaded rows",
		"table", l.Warehouse.TableID(),
		"rows", written,
		"duration", time.Since(start).String(),
	)
	return int(written), nil
}
