// Package snapshot writes local copies of fetched and normalized rows for
// operator inspection. Snapshots are never read back by the pipeline.
package snapshot

import (
	"fmt"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// Write writes rows to path in the given format.
func Write(path, format string, rows []transform.NormalizedRecord) error {
	switch format {
	case config.SnapshotCSV:
		return WriteCSV(path, rows)
	case config.SnapshotParquet:
		return WriteParquet(path, rows)
	default:
		return fmt.Errorf("unknown snapshot format %q", format)
	}
}
