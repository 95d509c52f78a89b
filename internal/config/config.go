package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Grid   GridConfig   `yaml:"grid" mapstructure:"grid"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// GridConfig holds neighbourhood defaults. CellKm is in kilometres and
// applies to extents in metres.
type GridConfig struct {
	CellKm     float64 `yaml:"cell_km" mapstructure:"cell_km"`
	Rank       int     `yaml:"rank" mapstructure:"rank"`
	Workers    int     `yaml:"workers" mapstructure:"workers"`
	MaxCells   int     `yaml:"max_cells" mapstructure:"max_cells"`
	MaxIndices int     `yaml:"max_indices" mapstructure:"max_indices"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	RateLimit           float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst               int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	CacheEntries        int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSecs        int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	MaxCells            int      `yaml:"max_cells" mapstructure:"max_cells"`
	MaxIndices          int      `yaml:"max_indices" mapstructure:"max_indices"`
}

// FetchConfig configures remote region downloads.
type FetchConfig struct {
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	TempDir          string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from cellneigh.yaml in the working directory
// and the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory; a named file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cellneigh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CELLNEIGH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("grid.cell_km", 10.0)
	v.SetDefault("grid.rank", 1)
	v.SetDefault("grid.workers", 0)
	v.SetDefault("grid.max_cells", 0)
	v.SetDefault("grid.max_indices", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cellneigh.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.cache_entries", 128)
	v.SetDefault("server.cache_ttl_secs", 600)
	v.SetDefault("server.max_cells", 4_000_000)
	v.SetDefault("server.max_indices", 50_000_000)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of
// "neighbors", "grids" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "neighbors":
		errs = append(errs, c.validateGrid()...)
		errs = append(errs, c.validateFetch()...)
	case "grids":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateGrid()...)
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateServer()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateGrid() []string {
	var errs []string
	if !(c.Grid.CellKm > 0) {
		errs = append(errs, "grid.cell_km must be > 0")
	}
	if c.Grid.Rank < 0 {
		errs = append(errs, "grid.rank must be >= 0")
	}
	if c.Grid.Workers < 0 {
		errs = append(errs, "grid.workers must be >= 0")
	}
	if c.Grid.MaxCells < 0 {
		errs = append(errs, "grid.max_cells must be >= 0")
	}
	if c.Grid.MaxIndices < 0 {
		errs = append(errs, "grid.max_indices must be >= 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		errs = append(errs, "store.min_conns must be <= store.max_conns")
	}
	return errs
}

func (c *Config) validateServer() []string {
	var errs []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be > 0 and <= 65535")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, "server.burst must be >= 1 when rate_limit is set")
	}
	if c.Server.CacheEntries < 0 {
		errs = append(errs, "server.cache_entries must be >= 0")
	}
	if c.Server.MaxCells < 1 {
		errs = append(errs, "server.max_cells must be >= 1")
	}
	if c.Server.MaxIndices < 1 {
		errs = append(errs, "server.max_indices must be >= 1")
	}
	return errs
}

func (c *Config) validateFetch() []string {
	var errs []string
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, "fetch.max_attempts must be >= 1")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
