// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/meridian/internal/domain"
)

// EnvPrefix is the prefix of every environment variable, e.g.
// MERIDIAN_SERVER_PORT.
const EnvPrefix = "MERIDIAN"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Shapes   ShapesConfig   `mapstructure:"shapes"`
	Geodesy  GeodesyConfig  `mapstructure:"geodesy"`
	Emulator EmulatorConfig `mapstructure:"emulator"`
	Sync     SyncConfig     `mapstructure:"sync"`
	TLS      TLSConfig      `mapstructure:"tls"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	CORS            CORSConfig      `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"` // requests per second
	Burst   int     `mapstructure:"burst"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
	Retry     RetryConfig `mapstructure:"retry"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// RetryConfig controls retries of remote downloads.
type RetryConfig struct {
	Attempts        uint64        `mapstructure:"attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

// ShapesConfig holds the shape index configuration.
type ShapesConfig struct {
	IndexPath    string `mapstructure:"index_path"` // empty keeps the index in memory
	CacheEntries int    `mapstructure:"cache_entries"`
	Watch        bool   `mapstructure:"watch"`
	MaxFeatures  int    `mapstructure:"max_features"`
	MinLayers    int    `mapstructure:"min_layers"` // layers required for readiness
}

// GeodesyConfig holds the defaults of the geodesic endpoints.
type GeodesyConfig struct {
	Ellipsoid      string `mapstructure:"ellipsoid"`
	Method         string `mapstructure:"method"` // vincenty, karney, approximate
	Unit           string `mapstructure:"unit"`
	MatrixWorkers  int    `mapstructure:"matrix_workers"`
	MaxMatrixCells int    `mapstructure:"max_matrix_cells"`
}

// EmulatorConfig holds the simulated NMEA receiver configuration.
type EmulatorConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Start      string        `mapstructure:"start"` // e.g. "53.55,9.99" or "53.55 N 9.99 E"
	Bearing    float64       `mapstructure:"bearing"`
	SpeedKnots float64       `mapstructure:"speed_knots"`
	Interval   time.Duration `mapstructure:"interval"`
	Buffer     int           `mapstructure:"buffer"`
}

// StartPosition parses Start in the invariant locale.
func (c *EmulatorConfig) StartPosition() (domain.Position, error) {
	return domain.ParsePosition(c.Start, domain.InvariantLocale)
}

// SyncConfig holds the remote storage sync configuration.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables periodic sync
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds the Azure DNS zone used for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"` // 0 serves metrics on the API listener
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values on v.
func Defaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.rate", 100.0)
	v.SetDefault("server.rate_limit.burst", 200)
	v.SetDefault("server.cors.allowed_origins", []string{})

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.http.index_file", "index.txt")
	v.SetDefault("storage.http.timeout", 5*time.Minute)
	v.SetDefault("storage.retry.attempts", 4)
	v.SetDefault("storage.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("storage.retry.max_elapsed", 2*time.Minute)

	// Shape index defaults
	v.SetDefault("shapes.index_path", "")
	v.SetDefault("shapes.cache_entries", 4096)
	v.SetDefault("shapes.watch", true)
	v.SetDefault("shapes.max_features", 1000)
	v.SetDefault("shapes.min_layers", 0)

	// Geodesy defaults
	v.SetDefault("geodesy.ellipsoid", "WGS84")
	v.SetDefault("geodesy.method", "vincenty")
	v.SetDefault("geodesy.unit", "m")
	v.SetDefault("geodesy.matrix_workers", 0)
	v.SetDefault("geodesy.max_matrix_cells", 10000)

	// Emulator defaults
	v.SetDefault("emulator.enabled", false)
	v.SetDefault("emulator.start", "53.5461,9.9661")
	v.SetDefault("emulator.bearing", 270.0)
	v.SetDefault("emulator.speed_knots", 12.0)
	v.SetDefault("emulator.interval", time.Second)
	v.SetDefault("emulator.buffer", 16)

	// Sync defaults
	v.SetDefault("sync.interval", 0)

	// TLS defaults
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cache_dir", "./.certmagic")
	v.SetDefault("tls.staging", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 0)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads configuration from the environment and a config file into the
// global viper instance, which also carries the bound command line flags.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith loads configuration using v.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	Defaults(v)

	// Environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/meridian")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func invalid(field, format string, args ...any) error {
	return &domain.ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.Rate <= 0 || c.Server.RateLimit.Burst < 1) {
		return invalid("server.rate_limit", "rate and burst must be positive")
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return invalid("tls.domains", "TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return invalid("tls.email", "TLS enabled but no email specified")
		}
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if _, ok := domain.LookupEllipsoid(c.Geodesy.Ellipsoid); !ok {
		return invalid("geodesy.ellipsoid", "unknown ellipsoid %q", c.Geodesy.Ellipsoid)
	}
	switch strings.ToLower(c.Geodesy.Method) {
	case "vincenty", "karney", "approximate":
	default:
		return invalid("geodesy.method", "unknown method %q", c.Geodesy.Method)
	}
	if _, err := domain.ParseDistanceUnit(c.Geodesy.Unit); err != nil {
		return invalid("geodesy.unit", "%v", err)
	}

	if c.Emulator.Enabled {
		if _, err := c.Emulator.StartPosition(); err != nil {
			return invalid("emulator.start", "%v", err)
		}
		if c.Emulator.SpeedKnots <= 0 {
			return invalid("emulator.speed_knots", "speed must be positive")
		}
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalid("metrics.port", "invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Sync.Interval < 0 {
		return invalid("sync.interval", "interval must not be negative")
	}

	return nil
}

func (c *StorageConfig) validate() error {
	switch c.Type {
	case "local":
		if c.LocalPath == "" {
			return invalid("storage.local_path", "local storage path is required")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return invalid("storage.s3.bucket", "S3 bucket is required")
		}
		if c.S3.Region == "" {
			return invalid("storage.s3.region", "S3 region is required")
		}
	case "azure":
		if c.Azure.Container == "" {
			return invalid("storage.azure.container", "azure container is required")
		}
		if c.Azure.AccountName == "" && c.Azure.ConnectionString == "" {
			return invalid("storage.azure", "azure account name or connection string is required")
		}
	case "http":
		if c.HTTP.BaseURL == "" {
			return invalid("storage.http.base_url", "HTTP base URL is required")
		}
	default:
		return invalid("storage.type", "unknown storage type: %s", c.Type)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
