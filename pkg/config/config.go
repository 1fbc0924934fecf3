// Package config reads the process configuration once at startup.
//
// Sources, highest precedence first:
//  1. CLI flags bound with BindFlags (only when explicitly set)
//  2. Environment variables (MONGODB_URI, PORT, ...)
//  3. A dotenv file in the working directory (".env" by default)
//  4. Default values
//
// Load never fails on a missing storage URI. That check belongs to the
// lifecycle controller, which calls Validate before allocating anything.
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environment keys. Viper lowercases keys, so these double as env var names
// once upper-cased.
const (
	KeyMongoURI        = "mongodb_uri"
	KeyPort            = "port"
	KeyShutdownTimeout = "shutdown_timeout"
	KeyConnectTimeout  = "storage_connect_timeout"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyMetricsEnabled  = "metrics_enabled"
)

// Defaults
const (
	DefaultPort            = 5000
	DefaultShutdownTimeout = 10 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultLogLevel        = "INFO"
	DefaultLogFormat       = "text"
	DefaultEnvFile         = ".env"
)

// ErrMissingStorageURI is returned by Validate when MONGODB_URI is absent or blank.
var ErrMissingStorageURI = errors.New("missing required env var MONGODB_URI")

// Config is the immutable process configuration.
type Config struct {
	// StorageURI is the storage connection string (MONGODB_URI).
	StorageURI string `validate:"required"`

	// Port is the HTTP listener port.
	Port int `validate:"min=1,max=65535"`

	// ShutdownTimeout bounds the whole drain sequence.
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// ConnectTimeout bounds storage connect + ping at startup.
	ConnectTimeout time.Duration `validate:"gt=0"`

	Logging LoggingConfig

	// MetricsEnabled mounts /metrics on the API router.
	MetricsEnabled bool
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `validate:"required,oneof=DEBUG INFO WARN ERROR"`
	Format string `validate:"required,oneof=text json"`
}

// Loader wraps a viper instance so flags can be bound before Load.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader creates a Loader reading envFile (empty string uses ".env").
func NewLoader(envFile string) *Loader {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	v := viper.New()
	v.SetDefault(KeyMongoURI, "")
	v.SetDefault(KeyPort, strconv.Itoa(DefaultPort))
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout.String())
	v.SetDefault(KeyConnectTimeout, DefaultConnectTimeout.String())
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyMetricsEnabled, true)

	// An exported-but-empty variable must win over the dotenv file,
	// so that MONGODB_URI="" still fails validation.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	return &Loader{v: v, envFile: envFile}
}

// BindFlags binds --port and --shutdown-timeout. Flags only override the
// environment when they were set on the command line.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	bindings := map[string]string{
		KeyPort:            "port",
		KeyShutdownTimeout: "shutdown-timeout",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the dotenv file (if present) and the environment.
//
// A missing dotenv file is not an error; a malformed one is.
func (l *Loader) Load() (Config, error) {
	if err := l.readEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		StorageURI:      l.v.GetString(KeyMongoURI),
		Port:            parsePort(l.v.GetString(KeyPort)),
		ShutdownTimeout: parseDuration(l.v.GetString(KeyShutdownTimeout), DefaultShutdownTimeout),
		ConnectTimeout:  parseDuration(l.v.GetString(KeyConnectTimeout), DefaultConnectTimeout),
		Logging: LoggingConfig{
			Level:  strings.ToUpper(strings.TrimSpace(l.v.GetString(KeyLogLevel))),
			Format: strings.ToLower(strings.TrimSpace(l.v.GetString(KeyLogFormat))),
		},
		MetricsEnabled: l.v.GetBool(KeyMetricsEnabled),
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	return cfg, nil
}

// Load is shorthand for NewLoader(envFile).Load().
func Load(envFile string) (Config, error) {
	return NewLoader(envFile).Load()
}

func (l *Loader) readEnvFile() error {
	if _, err := os.Stat(l.envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file %q: %w", l.envFile, err)
	}

	l.v.SetConfigFile(l.envFile)
	l.v.SetConfigType("env")
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read env file %q: %w", l.envFile, err)
	}
	return nil
}

// Validate checks the configuration. A blank storage URI yields an error
// wrapping ErrMissingStorageURI.
func (c Config) Validate() error {
	trimmed := c
	trimmed.StorageURI = strings.TrimSpace(c.StorageURI)

	if err := validator.New().Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.StructField() == "StorageURI" {
					return ErrMissingStorageURI
				}
			}
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RedactedStorageURI returns the storage URI with any password replaced by "xxxxx".
func (c Config) RedactedStorageURI() string {
	u, err := url.Parse(strings.TrimSpace(c.StorageURI))
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// parsePort falls back to DefaultPort for absent, non-numeric or out of range values.
func parsePort(raw string) int {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < 1 || port > 65535 {
		return DefaultPort
	}
	return port
}

// parseDuration reads a Go duration ("15s", "1m30s") or a bare integer of
// seconds. Anything unparseable or not positive yields fallback.
func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs <= 0 || secs > int64(math.MaxInt64/int64(time.Second)) {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
