package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Profile   ProfileConfig   `yaml:"profile"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Sync      SyncConfig      `yaml:"sync"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the storage backend. The sqlite driver only uses Path;
// the postgres driver uses the connection fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// ProfileConfig describes the lifter; used for percentile ranking.
type ProfileConfig struct {
	Bodyweight float64 `yaml:"bodyweight"`
	Unit       string  `yaml:"unit"`
	Gender     string  `yaml:"gender"`
	Age        int     `yaml:"age"`
}

type AnalyticsConfig struct {
	Headroom       float64 `yaml:"headroom"`
	SmoothingAlpha float64 `yaml:"smoothing_alpha"`
	StandardsPath  string  `yaml:"standards_path"`
}

type SyncConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// BodyweightLbs returns the configured bodyweight in the canonical unit.
func (p ProfileConfig) BodyweightLbs() float64 {
	unit, err := models.ParseUnit(p.Unit)
	if err != nil {
		unit = models.CanonicalUnit
	}
	return models.ToCanonical(p.Bodyweight, unit)
}

// LifterGender returns the standards table to rank against. Anything but
// "female" ranks against the male table.
func (p ProfileConfig) LifterGender() models.Gender {
	if strings.EqualFold(p.Gender, string(models.GenderFemale)) {
		return models.GenderFemale
	}
	return models.GenderMale
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix IRONLOG_ and underscore-separated paths:
//
//	IRONLOG_SERVER_HOST, IRONLOG_SERVER_PORT,
//	IRONLOG_DB_DRIVER, IRONLOG_DB_PATH,
//	IRONLOG_DB_HOST, IRONLOG_DB_PORT, IRONLOG_DB_NAME,
//	IRONLOG_DB_USER, IRONLOG_DB_PASSWORD, IRONLOG_DB_SSLMODE,
//	IRONLOG_AUTH_API_KEY, IRONLOG_SYNC_SERVER_URL, IRONLOG_SYNC_API_KEY,
//	IRONLOG_PROFILE_BODYWEIGHT, IRONLOG_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IRONLOG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("IRONLOG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("IRONLOG_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("IRONLOG_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("IRONLOG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("IRONLOG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("IRONLOG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("IRONLOG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("IRONLOG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("IRONLOG_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("IRONLOG_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("IRONLOG_SYNC_SERVER_URL"); v != "" {
		cfg.Sync.ServerURL = v
	}
	if v := os.Getenv("IRONLOG_SYNC_API_KEY"); v != "" {
		cfg.Sync.APIKey = v
	}
	if v := os.Getenv("IRONLOG_PROFILE_BODYWEIGHT"); v != "" {
		if bw, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Profile.Bodyweight = bw
		}
	}
	if v := os.Getenv("IRONLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "ironlog.db"
	}
	if cfg.Analytics.Headroom == 0 {
		cfg.Analytics.Headroom = 1.15
	}
	if cfg.Analytics.SmoothingAlpha == 0 {
		cfg.Analytics.SmoothingAlpha = 0.3
	}
	if cfg.Profile.Unit == "" {
		cfg.Profile.Unit = "lbs"
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "ironlog"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Profile.Bodyweight < 0 {
		return fmt.Errorf("profile.bodyweight must not be negative")
	}
	if _, err := models.ParseUnit(c.Profile.Unit); err != nil {
		return fmt.Errorf("profile.unit: %w", err)
	}
	switch strings.ToLower(c.Profile.Gender) {
	case "", string(models.GenderMale), string(models.GenderFemale):
	default:
		return fmt.Errorf("profile.gender %q is not supported", c.Profile.Gender)
	}
	if c.Analytics.Headroom < 1 {
		return fmt.Errorf("analytics.headroom must be at least 1")
	}
	if c.Analytics.SmoothingAlpha <= 0 || c.Analytics.SmoothingAlpha > 1 {
		return fmt.Errorf("analytics.smoothing_alpha must be in (0, 1]")
	}
	if c.Sync.Enabled && c.Sync.ServerURL == "" {
		return fmt.Errorf("sync.server_url is required when sync is enabled")
	}
	return nil
}
