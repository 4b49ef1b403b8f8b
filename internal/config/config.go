package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported graph backends.
const (
	BackendNeo4j    = "neo4j"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Traversal TraversalConfig `mapstructure:"traversal"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GraphConfig struct {
	Backend  string `mapstructure:"backend"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// DSN is used by the postgres and sqlite backends.
	DSN string `mapstructure:"dsn"`

	// Path and Watch are used by the file backend.
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type TraversalConfig struct {
	DefaultDepth int           `mapstructure:"default_depth"`
	MaxDepth     int           `mapstructure:"max_depth"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	// SnapshotTTL of zero loads the graph on every query.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("graph.backend", BackendNeo4j)
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.dsn", "")
	v.SetDefault("graph.path", "")
	v.SetDefault("graph.watch", false)

	v.SetDefault("traversal.default_depth", 5)
	v.SetDefault("traversal.max_depth", 25)
	v.SetDefault("traversal.query_timeout", 10*time.Second)
	v.SetDefault("traversal.snapshot_ttl", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Graph.Backend == BackendNeo4j && c.Graph.Password == "" {
		warnings = append(warnings, "graph backend 'neo4j' is configured but password is empty")
	}

	if c.Traversal.MaxDepth > 50 {
		warnings = append(warnings, fmt.Sprintf("traversal max_depth %d is unusually deep", c.Traversal.MaxDepth))
	}

	if c.Traversal.QueryTimeout <= 0 {
		warnings = append(warnings, "traversal query_timeout is disabled; slow data sources will block requests")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	for _, o := range c.Server.CORSOrigins {
		if o == "*" {
			warnings = append(warnings, "server cors_origins allows any origin")
			break
		}
	}

	return warnings
}

// Check returns an error for configuration the service cannot run with.
func (c *Config) Check() error {
	var errs []error

	switch c.Graph.Backend {
	case BackendNeo4j:
		if c.Graph.URI == "" {
			errs = append(errs, errors.New("graph.uri is required for the neo4j backend"))
		}
	case BackendPostgres, BackendSQLite:
		if c.Graph.DSN == "" {
			errs = append(errs, fmt.Errorf("graph.dsn is required for the %s backend", c.Graph.Backend))
		}
	case BackendFile:
		if c.Graph.Path == "" {
			errs = append(errs, errors.New("graph.path is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown graph backend %q", c.Graph.Backend))
	}

	if c.Traversal.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("traversal.max_depth must be at least 1, got %d", c.Traversal.MaxDepth))
	}
	if c.Traversal.DefaultDepth < 1 || c.Traversal.DefaultDepth > c.Traversal.MaxDepth {
		errs = append(errs, fmt.Errorf("traversal.default_depth %d must be within 1..%d",
			c.Traversal.DefaultDepth, c.Traversal.MaxDepth))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	return errors.Join(errs...)
}

// Load reads configuration from an optional file and the environment.
// A .env file in the working directory is applied first when present.
// An empty path skips the config file. Warnings from Validate are left to
// the caller, which logs them once its logger is configured.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("IMPACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// PORT is honoured for platforms that only inject a port number.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("IMPACT_SERVER_ADDR") == "" && !v.InConfig("server.addr") {
		cfg.Server.Addr = ":" + port
	}

	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
