package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/extract"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/pipeline"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/snapshot"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/utils"
)

const defaultSamplePath = "net_metering_sample.csv"

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetches one page of raw records and writes it to a local CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			path := cfg.Snapshot.Path
			if path == "" {
				path = defaultSamplePath
			}

			n, err := fetchSample(cmd.Context(), cfg, log, path)
			if err != nil {
				log.Error(fmt.Sprintf("Error fetching sample: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Saved %d rows to %s", n, path))
			return nil
		},
	}
}

// fetchSample writes the raw records of a single fetch to path as CSV.
func fetchSample(ctx context.Context, cfg *config.Config, log *slog.Logger, path string) (int, error) {
	if err := cfg.ValidateSource(); err != nil {
		return 0, err
	}

	client, err := extract.NewEIAClient(cfg, log)
	if err != nil {
		return 0, fmt.Errorf("error creating EIA HTTP client: %w", err)
	}

	p := pipeline.NewPipeline(cfg, client, nil, log, utils.RealTimeProvider{})
	records, err := p.Extract(ctx)
	if err != nil {
		return 0, err
	}

	log.Info("Fetched sample", "rows", len(records), "columns", snapshot.RawColumns(records))

	if err := snapshot.WriteRawCSV(path, records); err != nil {
		return 0, fmt.Errorf("error writing sample CSV: %w", err)
	}
	return len(records), nil
}
