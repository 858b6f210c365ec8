package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// Environment variables that override file settings.
const (
	EnvLogLevel = "LOG_LEVEL"
	EnvEndpoint = "TYPESYNTH_ENDPOINT"
	EnvStore    = "TYPESYNTH_STORE"
	EnvCatalog  = "TYPESYNTH_CATALOG"
)

// Config is the application configuration.
type Config struct {
	// Catalog is the default catalog file.
	Catalog string `yaml:"catalog"`

	// Search holds the default search budget.
	Search SearchConfig `yaml:"search"`

	// Execution holds the default execution options.
	Execution ExecutionConfig `yaml:"execution"`

	// Store configures run persistence.
	Store StoreConfig `yaml:"store"`

	// Policy configures the external-access guard.
	Policy PolicyConfig `yaml:"policy"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry telemetry.Config `yaml:"telemetry" validate:"-"`
}

// SearchConfig holds the search budget and result limit.
type SearchConfig struct {
	MaxCost  float64 `yaml:"max_cost" validate:"gt=0"`
	MaxSteps int     `yaml:"max_steps" validate:"gte=1"`

	// Limit caps the number of plans reported; 0 reports all of them.
	Limit int `yaml:"limit" validate:"gte=0"`
}

// ExecutionConfig holds execution defaults.
type ExecutionConfig struct {
	MockMode bool   `yaml:"mock_mode"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// Params override the built-in runtime parameters.
	Params map[string]float64 `yaml:"params"`

	// ParamsFile is a YAML, JSON or Starlark file of further overrides.
	ParamsFile string `yaml:"params_file"`

	// Concurrency bounds how many plans run at once.
	Concurrency int `yaml:"concurrency" validate:"gte=1"`

	// RateLimit is the outbound requests per second for queries and calls.
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`

	// Timeout bounds each outbound request.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// ScriptTimeout bounds evaluation of a Starlark params file.
	ScriptTimeout time.Duration `yaml:"script_timeout" validate:"gt=0"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// PolicyConfig configures the Rego policy guard.
type PolicyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Paths   []string `yaml:"paths"`
	Watch   bool     `yaml:"watch"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// WatchCatalog reloads the catalog when its file changes.
	WatchCatalog bool `yaml:"watch_catalog"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			MaxCost:  engine.DefaultMaxCost,
			MaxSteps: engine.DefaultMaxSteps,
		},
		Execution: ExecutionConfig{
			Concurrency:   4,
			RateLimit:     10,
			Timeout:       30 * time.Second,
			ScriptTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Path: "typesynth.db",
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads a YAML (or JSON) configuration file over the defaults, then
// applies environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()

		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads configuration from YAML text over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Telemetry.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		c.Execution.Endpoint = v
	}
	if v, ok := lookup(EnvStore); ok && v != "" {
		c.Store.Enabled = true
		c.Store.Path = v
	}
	if v, ok := lookup(EnvCatalog); ok && v != "" {
		c.Catalog = v
	}
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return engine.NewPermanentError("invalid configuration: "+strings.Join(fields, ", "), err).
				WithCode(engine.ErrCodeValidation)
		}
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return engine.NewPermanentError("invalid telemetry configuration", err).
			WithCode(engine.ErrCodeValidation)
	}
	return nil
}

// SearchOptions returns the configured search budget.
func (c *Config) SearchOptions() engine.SearchOptions {
	return engine.SearchOptions{MaxCost: c.Search.MaxCost, MaxSteps: c.Search.MaxSteps}
}
