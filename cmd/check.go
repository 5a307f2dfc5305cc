package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/load"
)

const listedDatasets = 5

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Checks warehouse connectivity by listing datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			if err := cfg.ValidateWarehouse(); err != nil {
				return err
			}

			warehouse, err := load.NewWarehouse(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("error opening warehouse: %w", err)
			}
			defer warehouse.Close()

			if _, err := checkWarehouse(cmd.Context(), warehouse, log); err != nil {
				log.Error(fmt.Sprintf("Warehouse check failed: %v", err))
				return err
			}
			return nil
		},
	}
}

// checkWarehouse logs the number of datasets and the first few names.
func checkWarehouse(ctx context.Context, w load.Warehouse, log *slog.Logger) ([]string, error) {
	datasets, err := w.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing datasets: %w", err)
	}

	shown := datasets
	if len(shown) > listedDatasets {
		shown = shown[:listedDatasets]
	}
	log.Info(fmt.Sprintf("Connected. Found %d datasets", len(datasets)), "datasets", shown)
	return shown, nil
}
