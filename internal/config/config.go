// Package config loads planner server configuration from an optional YAML
// file layered under MESH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/mesh-architect/internal/logging"
	"github.com/signalsfoundry/mesh-architect/internal/observability"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultGRPCAddr    = ":50051"
	DefaultMetricsAddr = ":9090"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultExporter    = "stdout"
)

// ErrInvalidConfig wraps every validation failure returned by Load.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the server configuration.
type Config struct {
	GRPCAddr    string `yaml:"grpc_addr" validate:"required,hostname_port"`
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   string `yaml:"log_format" validate:"oneof=text json"`

	// ProjectPath is a planning file imported at startup. Preset is loaded
	// instead when ProjectPath is empty.
	ProjectPath string `yaml:"project_path"`
	Preset      string `yaml:"preset"`

	Tracing Tracing `yaml:"tracing"`
}

// Tracing mirrors observability.TracingConfig with file tags.
type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter" validate:"oneof=stdout otlp"`
	Endpoint    string  `yaml:"endpoint" validate:"omitempty,hostname_port"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`

	ratioSet bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path (when non-empty), applies environment overrides, fills
// defaults and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg without applying defaults.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}
	return nil
}

// UnmarshalYAML records whether sample_ratio was present so an explicit 0
// survives defaulting.
func (t *Tracing) UnmarshalYAML(node *yaml.Node) error {
	type plain Tracing
	if err := node.Decode((*plain)(t)); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "sample_ratio" {
			t.ratioSet = true
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.GRPCAddr, "MESH_GRPC_ADDR")
	setString(&cfg.MetricsAddr, "MESH_METRICS_ADDR")
	setString(&cfg.LogLevel, "MESH_LOG_LEVEL")
	setString(&cfg.LogFormat, "MESH_LOG_FORMAT")
	setString(&cfg.ProjectPath, "MESH_PROJECT_PATH")
	setString(&cfg.Preset, "MESH_PRESET")
	setString(&cfg.Tracing.Exporter, "MESH_TRACING_EXPORTER")
	setString(&cfg.Tracing.Endpoint, "MESH_OTLP_ENDPOINT")
	setString(&cfg.Tracing.ServiceName, "MESH_TRACING_SERVICE_NAME")

	if v := strings.TrimSpace(os.Getenv("MESH_TRACING_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: MESH_TRACING_ENABLED=%q is not a boolean", ErrInvalidConfig, v)
		}
		cfg.Tracing.Enabled = enabled
	}
	if v := strings.TrimSpace(os.Getenv("MESH_TRACING_SAMPLE_RATIO")); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: MESH_TRACING_SAMPLE_RATIO=%q is not a number", ErrInvalidConfig, v)
		}
		cfg.Tracing.SampleRatio = ratio
		cfg.Tracing.ratioSet = true
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.GRPCAddr == "" {
		c.GRPCAddr = DefaultGRPCAddr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	c.Tracing.Exporter = strings.ToLower(c.Tracing.Exporter)
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = DefaultExporter
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = observability.DefaultServiceName
	}
	if !c.Tracing.ratioSet {
		c.Tracing.SampleRatio = 1
		c.Tracing.ratioSet = true
	}
}

// Validate checks struct tags and returns the first failure in readable form.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, formatValidationError(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// LoggingConfig returns the logger settings.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat, AddSource: true}
}

// TracingConfig converts to the observability form.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
