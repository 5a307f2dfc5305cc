package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration is returned when a required setting is absent or invalid.
var ErrConfiguration = errors.New("configuration error")

const (
	BackendBigQuery = "bigquery"
	BackendDuckDB   = "duckdb"

	SnapshotCSV     = "csv"
	SnapshotParquet = "parquet"
)

type Config struct {
	EIA       EIAConfig
	Warehouse WarehouseConfig
	DuckDB    DuckDBConfig
	Pipeline  PipelineConfig
	Snapshot  SnapshotConfig
	Logging   LoggingConfig
	Env       string
}

type EIAConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Paginate bool          `mapstructure:"paginate"`
}

type WarehouseConfig struct {
	Backend     string        `mapstructure:"backend"`
	ProjectID   string        `mapstructure:"project_id"`
	Dataset     string        `mapstructure:"dataset"`
	Table       string        `mapstructure:"table"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

type DuckDBConfig struct {
	Path              string   `mapstructure:"path"`
	MotherDuckToken   string   `mapstructure:"motherduck_token"`
	ConnInitFnQueries []string `mapstructure:"conn_init_fn_queries"`
}

type PipelineConfig struct {
	ConcurrentProvisioning bool `mapstructure:"concurrent_provisioning"`
}

type SnapshotConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"eia.api_key":             "EIA_API_KEY",
	"warehouse.project_id":    "GCP_PROJECT_ID",
	"warehouse.dataset":       "BQ_DATASET",
	"warehouse.table":         "BQ_TABLE",
	"duckdb.path":             "DUCKDB_PATH",
	"duckdb.motherduck_token": "MOTHERDUCK_TOKEN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("eia.base_url", "https://api.eia.gov/v2/electricity/state-electricity-profiles/net-metering/data/")
	v.SetDefault("eia.page_size", 5000)
	v.SetDefault("eia.timeout", 30*time.Second)
	v.SetDefault("eia.paginate", false)
	v.SetDefault("warehouse.backend", BackendBigQuery)
	v.SetDefault("warehouse.dataset", "energy")
	v.SetDefault("warehouse.table", "net_metering_annual")
	v.SetDefault("warehouse.load_timeout", 5*time.Minute)
	v.SetDefault("duckdb.path", ":memory:")
	v.SetDefault("pipeline.concurrent_provisioning", false)
	v.SetDefault("snapshot.format", SnapshotCSV)
	v.SetDefault("logging.level", "info")
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
// Values bound in envBindings are taken from the process environment when set.
func NewConfig(baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" {
		env = "dev"
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if baseConfigReader != nil {
		if err := v.ReadConfig(baseConfigReader); err != nil {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	if envConfigReader != nil {
		if err := v.MergeConfig(envConfigReader); err != nil {
			return nil, fmt.Errorf("error merging %s config: %w", env, err)
		}
	}

	for key, envVar := range envBindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", envVar, key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.Env = env

	return &config, nil
}

// Validate checks that every setting a full run needs is present. All
// problems are reported at once, wrapped in ErrConfiguration.
func (c *Config) Validate() error {
	return problemsError(append(c.sourceProblems(), c.warehouseProblems()...))
}

// ValidateSource checks only the settings needed to query the source API.
func (c *Config) ValidateSource() error {
	return problemsError(c.sourceProblems())
}

// ValidateWarehouse checks only the settings needed to open the warehouse.
func (c *Config) ValidateWarehouse() error {
	return problemsError(c.warehouseProblems())
}

func problemsError(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) sourceProblems() []string {
	var problems []string

	if c.EIA.APIKey == "" {
		problems = append(problems, "missing EIA API key (EIA_API_KEY)")
	}
	if c.EIA.BaseURL == "" {
		problems = append(problems, "empty eia.base_url")
	}
	if c.EIA.PageSize <= 0 {
		problems = append(problems, fmt.Sprintf("eia.page_size must be positive, got %d", c.EIA.PageSize))
	}
	if c.EIA.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("eia.timeout must be positive, got %s", c.EIA.Timeout))
	}
	switch c.Snapshot.Format {
	case SnapshotCSV, SnapshotParquet:
	default:
		problems = append(problems, fmt.Sprintf("unknown snapshot.format %q", c.Snapshot.Format))
	}
	return problems
}

func (c *Config) warehouseProblems() []string {
	var problems []string

	if c.Warehouse.ProjectID == "" {
		problems = append(problems, "missing warehouse project id (GCP_PROJECT_ID)")
	}
	if c.Warehouse.Dataset == "" {
		problems = append(problems, "empty warehouse dataset name")
	}
	if c.Warehouse.Table == "" {
		problems = append(problems, "empty warehouse table name")
	}
	if c.Warehouse.LoadTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("warehouse.load_timeout must be positive, got %s", c.Warehouse.LoadTimeout))
	}
	switch c.Warehouse.Backend {
	case BackendBigQuery:
	case BackendDuckDB:
		if strings.HasPrefix(c.DuckDB.Path, "md:") && c.DuckDB.MotherDuckToken == "" {
			problems = append(problems, "missing MotherDuck token (MOTHERDUCK_TOKEN) for md: path")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown warehouse.backend %q", c.Warehouse.Backend))
	}
	return problems
}

// TableID returns the fully-qualified destination table identifier.
func (c *Config) TableID() string {
	return fmt.Sprintf("%s.%s.%s", c.Warehouse.ProjectID, c.Warehouse.Dataset, c.Warehouse.Table)
}
