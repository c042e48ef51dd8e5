package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/netservice"
	"github.com/starford/regnet/internal/network"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig  `yaml:"app"`
	SQLite    SQLiteConfig       `yaml:"sqlite"`
	Auth      AuthConfig         `yaml:"auth"`
	Artifacts ArtifactsConfig    `yaml:"artifacts"`
	Inputs    netservice.Inputs  `yaml:"inputs"`
	Pipeline  PipelineConfig     `yaml:"pipeline"`
	Modules   modules.Thresholds `yaml:"modules"`
	Watch     WatchConfig        `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Artifacts.Validate(); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Modules.Validate(); err != nil {
		return fmt.Errorf("modules: %w", err)
	}
	return c.Watch.Validate()
}

// ValidateInputs checks that every required input file is configured. Only
// the run command needs inputs; serve and modules work from the store.
func (c *Config) ValidateInputs() error {
	in := &c.Inputs
	return validation.ValidateStruct(in,
		validation.Field(&in.Expression, validation.Required),
		validation.Field(&in.Accessibility, validation.Required),
		validation.Field(&in.Genes, validation.Required),
		validation.Field(&in.Genome, validation.Required),
		validation.Field(&in.Motifs, validation.Required),
		validation.Field(&in.Padding, validation.Min(0)),
	)
}

// RunSpec converts the configuration into a pipeline run.
func (c *Config) RunSpec() netservice.RunSpec {
	return netservice.RunSpec{
		Name:        c.Pipeline.Name,
		Inputs:      c.Inputs,
		Association: c.Pipeline.Association,
		AssocParams: c.Pipeline.AssocParams,
		Regulators:  c.Pipeline.Regulators,
		Genes:       c.Pipeline.Genes,
		MinRelScore: c.Pipeline.MinRelScore,
		Workers:     c.Pipeline.Workers,
		AllowSelf:   c.Pipeline.AllowSelf,
		Thresholds:  c.Modules,
		Layout:      c.Pipeline.Layout,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ArtifactsConfig holds the directory rendered networks are written to.
type ArtifactsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the artifacts configuration.
func (c *ArtifactsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PipelineConfig holds the tunables of a pipeline run.
type PipelineConfig struct {
	Name        string       `yaml:"name"`
	Association string       `yaml:"association"`
	AssocParams assoc.Params `yaml:"assoc_params"`
	// Regulators restricts motif scanning; empty keeps every mapped regulator.
	Regulators []string `yaml:"regulators"`
	// Genes restricts fitting; empty fits every annotated gene in the assay.
	Genes       []string `yaml:"genes"`
	MinRelScore float64  `yaml:"min_rel_score"`
	Workers     int      `yaml:"workers"`
	AllowSelf   bool     `yaml:"allow_self"`
	Layout      string   `yaml:"layout"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Association, validation.In(assoc.NameWindow, assoc.NameNearest, assoc.NameDomain)),
		validation.Field(&c.MinRelScore, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.Layout, validation.In(network.LayoutForce, network.LayoutEmbedding, network.LayoutCircular)),
	)
}

// WatchConfig controls config hot reload in serve mode.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./regnet.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Artifacts: ArtifactsConfig{
			Path: "./artifacts",
		},
		Pipeline: PipelineConfig{
			Name:        "regnet",
			Association: assoc.NameWindow,
			AssocParams: assoc.DefaultParams(),
			MinRelScore: 0.8,
			Workers:     4,
			Layout:      network.LayoutForce,
		},
		Modules: modules.DefaultThresholds(),
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
	}
}
