package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPath overrides the default config location.
const EnvPath = "COURTBOOK_CONFIG_PATH"

const defaultPath = "configs/config.yaml"

type Config struct {
	HTTP struct {
		Addr      string  `yaml:"addr"`
		RateLimit float64 `yaml:"rate_limit_rps"`
		RateBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"http"`

	GRPC struct {
		Addr string `yaml:"addr"`
	} `yaml:"grpc"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		MinDurationMinutes        int    `yaml:"min_duration_minutes"`
		BillingGranularityMinutes int    `yaml:"billing_granularity_minutes"`
		SlotGranularityMinutes    int    `yaml:"slot_granularity_minutes"`
		LockWaitSeconds           int    `yaml:"lock_wait_seconds"`
		CompletionSweepMinutes    int    `yaml:"completion_sweep_minutes"`
		Timezone                  string `yaml:"timezone"`
	} `yaml:"booking"`

	Catalog struct {
		Path          string `yaml:"path"`
		ReloadSeconds int    `yaml:"reload_seconds"`
	} `yaml:"catalog"`

	Managers []string `yaml:"managers"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns how often backups run.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

// Load reads the YAML config at path. An empty path falls back to
// COURTBOOK_CONFIG_PATH and then configs/config.yaml.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit <= 0 {
		c.HTTP.RateLimit = 10
	}
	if c.HTTP.RateBurst <= 0 {
		c.HTTP.RateBurst = 20
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/courtbook.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 7
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "courtbook.bookings"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/resources.yaml"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}
}

// Location resolves booking.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, errors.Join(errors.New("invalid booking.timezone"), err)
	}
	return loc, nil
}

func (c *Config) MinDuration() time.Duration {
	if c.Booking.MinDurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Booking.MinDurationMinutes) * time.Minute
}

func (c *Config) BillingGranularity() time.Duration {
	if c.Booking.BillingGranularityMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.BillingGranularityMinutes) * time.Minute
}

func (c *Config) SlotGranularity() time.Duration {
	if c.Booking.SlotGranularityMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Booking.SlotGranularityMinutes) * time.Minute
}

func (c *Config) LockWait() time.Duration {
	if c.Booking.LockWaitSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Booking.LockWaitSeconds) * time.Second
}

// CompletionSweep is the period of the elapsed-booking sweep. Negative
// values disable it.
func (c *Config) CompletionSweep() time.Duration {
	switch {
	case c.Booking.CompletionSweepMinutes < 0:
		return 0
	case c.Booking.CompletionSweepMinutes == 0:
		return 15 * time.Minute
	}
	return time.Duration(c.Booking.CompletionSweepMinutes) * time.Minute
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) CatalogReload() time.Duration {
	if c.Catalog.ReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadSeconds) * time.Second
}
