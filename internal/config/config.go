package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Tenancy  TenancyConfig  `yaml:"tenancy"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents server identity configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TenancyConfig represents tenant routing configuration
type TenancyConfig struct {
	// BaseDomain is the suffix under which tenant domains are created,
	// e.g. id "acme" + base domain "invoicing.app" -> acme.invoicing.app
	BaseDomain string `yaml:"base_domain"`
	// CentralHost is the admin hostname; it bypasses tenant checks
	CentralHost string `yaml:"central_host"`
	// ExpiredPath is the route browsers are redirected to when the
	// subscription check fails
	ExpiredPath string `yaml:"expired_path"`
	// SubscriptionAllowlist lists paths the subscription check skips
	SubscriptionAllowlist []string `yaml:"subscription_allowlist"`
}

// SweepConfig represents expiration sweep configuration
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if baseDomain := os.Getenv("BASE_DOMAIN"); baseDomain != "" {
		c.Tenancy.BaseDomain = baseDomain
	}

	if centralHost := os.Getenv("CENTRAL_HOST"); centralHost != "" {
		c.Tenancy.CentralHost = centralHost
	}
}

// setDefaults validates required fields and fills defaults
func (c *Config) setDefaults() error {
	if c.Tenancy.BaseDomain == "" {
		return fmt.Errorf("tenancy.base_domain is required")
	}
	if c.Tenancy.CentralHost == "" {
		c.Tenancy.CentralHost = "admin." + c.Tenancy.BaseDomain
	}
	if c.Tenancy.ExpiredPath == "" {
		c.Tenancy.ExpiredPath = "/subscription/expired"
	}

	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = time.Hour
	}

	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return nil
}
