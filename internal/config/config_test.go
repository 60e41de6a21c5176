package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/meridian/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadWith(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Geodesy.Ellipsoid != "WGS84" || cfg.Geodesy.Method != "vincenty" {
		t.Errorf("Geodesy = %+v", cfg.Geodesy)
	}
	if cfg.Storage.Retry.Attempts != 4 || cfg.Storage.Retry.InitialInterval != 500*time.Millisecond {
		t.Errorf("Storage.Retry = %+v", cfg.Storage.Retry)
	}
	if cfg.Emulator.Interval != time.Second || cfg.Emulator.Enabled {
		t.Errorf("Emulator = %+v", cfg.Emulator)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Shapes.Watch || cfg.Shapes.CacheEntries != 4096 {
		t.Errorf("Shapes = %+v", cfg.Shapes)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meridian.yaml")
	content := `
server:
  port: 9090
storage:
  type: s3
  s3:
    bucket: charts
    region: eu-central-1
geodesy:
  ellipsoid: grs-80
  method: karney
emulator:
  enabled: true
  start: "54.3233 N 10.1228 E"
  speed_knots: 8
  interval: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MERIDIAN_SERVER_PORT", "9191")
	t.Setenv("MERIDIAN_LOG_FORMAT", "text")

	cfg, err := LoadWith(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191 from the environment", cfg.Server.Port)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if cfg.Storage.S3.Bucket != "charts" || cfg.Storage.S3.Region != "eu-central-1" {
		t.Errorf("Storage.S3 = %+v", cfg.Storage.S3)
	}
	if cfg.Geodesy.Method != "karney" {
		t.Errorf("Geodesy.Method = %q", cfg.Geodesy.Method)
	}
	if cfg.Emulator.Interval != 250*time.Millisecond {
		t.Errorf("Emulator.Interval = %v", cfg.Emulator.Interval)
	}

	start, err := cfg.Emulator.StartPosition()
	if err != nil {
		t.Fatalf("StartPosition() error = %v", err)
	}
	if !start.EqualDecimals(domain.NewPosition(54.3233, 10.1228), 4) {
		t.Errorf("StartPosition() = %s", start.DecimalString())
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := LoadWith(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"rate limit", func(c *Config) { c.Server.RateLimit = RateLimitConfig{Enabled: true, Rate: 0, Burst: 1} }, "server.rate_limit"},
		{"tls domains", func(c *Config) { c.TLS.Enabled = true; c.TLS.Email = "ops@example.com" }, "tls.domains"},
		{"tls email", func(c *Config) { c.TLS.Enabled = true; c.TLS.Domains = []string{"geo.example.com"} }, "tls.email"},
		{"storage type", func(c *Config) { c.Storage.Type = "ftp" }, "storage.type"},
		{"local path", func(c *Config) { c.Storage.LocalPath = "" }, "storage.local_path"},
		{"s3 bucket", func(c *Config) { c.Storage.Type = "s3" }, "storage.s3.bucket"},
		{"azure", func(c *Config) { c.Storage.Type = "azure"; c.Storage.Azure.Container = "charts" }, "storage.azure"},
		{"http", func(c *Config) { c.Storage.Type = "http" }, "storage.http.base_url"},
		{"ellipsoid", func(c *Config) { c.Geodesy.Ellipsoid = "mars" }, "geodesy.ellipsoid"},
		{"method", func(c *Config) { c.Geodesy.Method = "rhumb" }, "geodesy.method"},
		{"unit", func(c *Config) { c.Geodesy.Unit = "furlong" }, "geodesy.unit"},
		{"emulator start", func(c *Config) { c.Emulator.Enabled = true; c.Emulator.Start = "somewhere" }, "emulator.start"},
		{"emulator speed", func(c *Config) { c.Emulator.Enabled = true; c.Emulator.SpeedKnots = 0 }, "emulator.speed_knots"},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
		{"sync interval", func(c *Config) { c.Sync.Interval = -time.Second }, "sync.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)

			err := cfg.Validate()
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Error("ConfigError should unwrap to ErrInvalidInput")
			}
		})
	}
}

func TestAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8443}
	if got := s.Address(); got != "127.0.0.1:8443" {
		t.Errorf("Address() = %q", got)
	}
}
