// Package config loads and validates the PSX connector's runtime
// configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfig wraps every configuration load/validation failure so callers can
// distinguish a bad environment from a protocol-level error with errors.Is.
var ErrConfig = errors.New("config")

// Config is the PSX connector's fully resolved, validated configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FIX_*, CONNECT_TIMEOUT, RAW_DATA*,
//     ON_BEHALF_OF_COMP_ID, LOG_*, OTEL_*, METRICS_*)
//  2. Default values
//
// There is no configuration file: environment variables and defaults are
// the only sources. The telemetry service version and the profiling
// settings have no environment variable and always take their defaults.
type Config struct {
	Connection ConnectionConfig `mapstructure:",squash"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Metrics controls the internal Prometheus/health HTTP surface.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// SequenceStorePath is where the JSON sequence snapshot is persisted.
	SequenceStorePath string `mapstructure:"sequence_store_path" validate:"required"`
}

// ConnectionConfig is the FIX/FIXT session's connection parameters, per the
// PSX profile. Construction fails fast: an invalid ConnectionConfig never
// reaches the session machine.
type ConnectionConfig struct {
	// Host is the PSX gateway's TCP host.
	Host string `mapstructure:"host" validate:"required"`

	// Port is the PSX gateway's TCP port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// SenderCompID(49) identifies this connector to the gateway.
	SenderCompID string `mapstructure:"sender_comp_id" validate:"required"`

	// TargetCompID(56) identifies the gateway.
	TargetCompID string `mapstructure:"target_comp_id" validate:"required"`

	// Username(553) and Password(554) authenticate the Logon(A) message.
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	// HeartbeatIntervalSecs is HeartBtInt(108) sent in Logon.
	HeartbeatIntervalSecs int `mapstructure:"heartbeat_interval_secs" validate:"required,gt=0"`

	// ConnectTimeoutMs bounds the initial TCP dial.
	ConnectTimeoutMs int `mapstructure:"connect_timeout_ms" validate:"required,gt=0"`

	// ResetOnLogon(141) controls whether Logon requests a sequence reset.
	ResetOnLogon bool `mapstructure:"reset_on_logon"`

	// OnBehalfOfCompID(115) is optional, set only for sponsored access.
	OnBehalfOfCompID string `mapstructure:"on_behalf_of_comp_id"`

	// RawData(96)/RawDataLength(95) carry an optional binary credential
	// blob alongside Username/Password.
	RawData       string `mapstructure:"raw_data"`
	RawDataLength int    `mapstructure:"raw_data_length" validate:"omitempty,gte=0"`

	// DefaultApplVerID(1137) and DefaultCstmApplVerID(1408) are the FIXT 1.1
	// application version identifiers the PSX profile requires in Logon.
	DefaultApplVerID     string `mapstructure:"default_appl_ver_id" validate:"required"`
	DefaultCstmApplVerID string `mapstructure:"default_cstm_appl_ver_id"`
}

// ConnectTimeout returns ConnectTimeoutMs as a time.Duration.
func (c ConnectionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// HeartbeatInterval returns HeartbeatIntervalSecs as a time.Duration.
func (c ConnectionConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSecs) * time.Second
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Endpoint       string  `mapstructure:"endpoint"`
	Insecure       bool    `mapstructure:"insecure"`
	SampleRate     float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1"`
	ServiceVersion string  `mapstructure:"service_version"`

	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Endpoint     string   `mapstructure:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types"`
}

// MetricsConfig configures the internal ops HTTP server
// (/healthz, /metrics), bound to loopback only.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// Load reads configuration from the process environment, applies defaults,
// and validates the result. Construction fails fast: any error returned
// wraps ErrConfig and the caller should treat it as fatal at startup.
func Load() (*Config, error) {
	v := viper.New()
	setupViper(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrConfig, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return &cfg, nil
}

// setupViper binds every environment variable named in the PSX connector's
// configuration surface. There is no config file: env vars and defaults are
// the only two sources.
func setupViper(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bind(v, "host", "FIX_HOST")
	bind(v, "port", "FIX_PORT")
	bind(v, "sender_comp_id", "FIX_SENDER")
	bind(v, "target_comp_id", "FIX_TARGET")
	bind(v, "username", "FIX_USERNAME")
	bind(v, "password", "FIX_PASSWORD")
	bind(v, "heartbeat_interval_secs", "FIX_HEARTBEAT_INTERVAL")
	bind(v, "connect_timeout_ms", "CONNECT_TIMEOUT")
	bind(v, "reset_on_logon", "FIX_RESET_ON_LOGON")
	bind(v, "on_behalf_of_comp_id", "ON_BEHALF_OF_COMP_ID")
	bind(v, "raw_data", "RAW_DATA")
	bind(v, "raw_data_length", "RAW_DATA_LENGTH")
	bind(v, "default_appl_ver_id", "FIX_DEFAULT_APPL_VER_ID")
	bind(v, "default_cstm_appl_ver_id", "FIX_DEFAULT_CSTM_APPL_VER_ID")
	bind(v, "sequence_store_path", "FIX_SEQUENCE_STORE_PATH")

	bind(v, "logging.level", "LOG_LEVEL")
	bind(v, "logging.format", "LOG_FORMAT")
	bind(v, "logging.output", "LOG_OUTPUT")

	bind(v, "telemetry.enabled", "OTEL_ENABLED")
	bind(v, "telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	bind(v, "telemetry.insecure", "OTEL_INSECURE")
	bind(v, "telemetry.sample_rate", "OTEL_SAMPLE_RATE")

	bind(v, "metrics.enabled", "METRICS_ENABLED")
	bind(v, "metrics.port", "METRICS_PORT")
}

// bind binds a single mapstructure key to an explicit environment variable
// name, rather than relying on viper's prefix-derived automatic env lookup,
// since the PSX profile's env var names (FIX_HOST, CONNECT_TIMEOUT, ...)
// don't share a single common prefix.
func bind(v *viper.Viper, key, envVar string) {
	_ = v.BindEnv(key, envVar)
}

// Validate runs struct-tag validation over cfg using go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Redacted returns a copy of cfg with Password and RawData masked, safe to
// log or print via --dump-config.
func (c Config) Redacted() Config {
	redacted := c
	if redacted.Connection.Password != "" {
		redacted.Connection.Password = "********"
	}
	if redacted.Connection.RawData != "" {
		redacted.Connection.RawData = "********"
	}
	return redacted
}
