package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/logger"
)

const baseConfigFilename = "config.base.yaml"

var envFlag string

var rootCmd = &cobra.Command{
	Use:           "netmetering",
	Short:         "Loads EIA net metering statistics into the warehouse",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on any error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "config environment, overrides APP_ENV (default dev)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newCheckCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger("info")
	if !isRunningOnGitHubActions() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error(fmt.Sprintf("Error loading .env file: %v", err))
			return nil, nil, err
		}
	}

	env := envFlag
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "dev"
	}

	// 1. Open the base configuration file, if present
	var baseConfig *os.File
	if _, err := os.Stat(baseConfigFilename); err == nil {
		baseConfig, err = os.Open(baseConfigFilename)
		if err != nil {
			log.Error(fmt.Sprintf("Error opening base config file: %v", err))
			return nil, nil, err
		}
		defer baseConfig.Close()
	}

	// 2. Environment-specific overlay
	var envConfig *os.File
	envConfigFilename := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(envConfigFilename); err == nil {
		envConfig, err = os.Open(envConfigFilename)
		if err != nil {
			log.Error(fmt.Sprintf("Error opening environment config file: %v", err))
			return nil, nil, err
		}
		defer envConfig.Close()
	}

	// 3. Create the config
	cfg, err := config.NewConfig(fileReader(baseConfig), fileReader(envConfig), env)
	if err != nil {
		log.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, err
	}

	return cfg, logger.NewLogger(cfg.Logging.Level), nil
}

// fileReader avoids handing NewConfig a non-nil interface holding a nil file.
func fileReader(f *os.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
