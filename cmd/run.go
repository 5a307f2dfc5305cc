package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/extract"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/load"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/pipeline"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/utils"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetches, normalizes and appends net metering records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			res, err := runPipeline(cmd.Context(), cfg, log)
			if err != nil {
				log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Batch job completed without errors. Loaded %d rows into %s", res.Loaded, res.TableID))
			return nil
		},
	}
}

func runPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger) (pipeline.Result, error) {
	if err := cfg.Validate(); err != nil {
		return pipeline.Result{}, err
	}

	client, err := extract.NewEIAClient(cfg, log)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("error creating EIA HTTP client: %w", err)
	}

	warehouse, err := load.NewWarehouse(ctx, cfg, log)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("error opening warehouse: %w", err)
	}
	defer warehouse.Close()

	p := pipeline.NewPipeline(cfg, client, warehouse, log, utils.RealTimeProvider{})
	return p.Run(ctx)
}
