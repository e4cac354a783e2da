package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Notify     NotifyConfig     `yaml:"notify"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // empty disables the gRPC health listener
	Env      string `yaml:"env"`       // "dev" | "prod"
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	MaxConns   int    `yaml:"max_conns"`
	SeedDev    bool   `yaml:"seed_dev"`
}

// DSN renders the postgres connection URL with credentials escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

type LedgerConfig struct {
	// TimeZone is the IANA zone that defines a calendar day.
	TimeZone string `yaml:"time_zone"`
}

type NotifyConfig struct {
	QueueSize     int    `yaml:"queue_size"`
	Workers       int    `yaml:"workers"`
	NATSURL       string `yaml:"nats_url"` // empty logs notifications instead
	SubjectPrefix string `yaml:"subject_prefix"`
	LiveFeed      bool   `yaml:"live_feed"`
}

type ValidationConfig struct {
	PhonePattern string `yaml:"phone_pattern"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HealthConfig struct {
	ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`
}

func (h HealthConfig) ProbeInterval() time.Duration {
	return time.Duration(h.ProbeIntervalSeconds) * time.Second
}

// Load reads path (optional; "" skips the file), loads a .env file if one
// exists, applies BIOPASS_* environment overrides and defaults, then
// validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8080"
	}
	cfg.Server.Env = strings.ToLower(cfg.Server.Env)
	if cfg.Server.Env != "dev" && cfg.Server.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Server.Env = "dev"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "./data/biopass.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Ledger.TimeZone == "" {
		cfg.Ledger.TimeZone = "UTC"
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = 256
	}
	if cfg.Notify.Workers == 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.SubjectPrefix == "" {
		cfg.Notify.SubjectPrefix = "notifications"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Health.ProbeIntervalSeconds == 0 {
		cfg.Health.ProbeIntervalSeconds = 15
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q: want memory, sqlite or postgres", c.Database.Driver)
	}
	if c.Database.Driver == DriverPostgres && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("database.host and database.name are required for postgres")
	}
	if _, err := time.LoadLocation(c.Ledger.TimeZone); err != nil {
		return fmt.Errorf("ledger.time_zone %q: %w", c.Ledger.TimeZone, err)
	}
	if c.Validation.PhonePattern != "" {
		if _, err := regexp.Compile(c.Validation.PhonePattern); err != nil {
			return fmt.Errorf("validation.phone_pattern: %w", err)
		}
	}
	if c.Notify.QueueSize < 0 || c.Notify.Workers < 0 {
		return fmt.Errorf("notify.queue_size and notify.workers must not be negative")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.HTTPAddr, "BIOPASS_HTTP_ADDR")
	setString(&cfg.Server.GRPCAddr, "BIOPASS_GRPC_ADDR")
	setString(&cfg.Server.Env, "BIOPASS_ENV")

	setString(&cfg.Database.Driver, "BIOPASS_DB_DRIVER")
	setString(&cfg.Database.SQLitePath, "BIOPASS_DB_PATH")
	setString(&cfg.Database.Host, "BIOPASS_DB_HOST")
	setInt(&cfg.Database.Port, "BIOPASS_DB_PORT")
	setString(&cfg.Database.Name, "BIOPASS_DB_NAME")
	setString(&cfg.Database.User, "BIOPASS_DB_USER")
	setString(&cfg.Database.Password, "BIOPASS_DB_PASSWORD")
	setString(&cfg.Database.SSLMode, "BIOPASS_DB_SSLMODE")
	setInt(&cfg.Database.MaxConns, "BIOPASS_DB_MAX_CONNS")
	setBool(&cfg.Database.SeedDev, "BIOPASS_DB_SEED_DEV")

	setString(&cfg.Ledger.TimeZone, "BIOPASS_TIME_ZONE")

	setInt(&cfg.Notify.QueueSize, "BIOPASS_NOTIFY_QUEUE_SIZE")
	setInt(&cfg.Notify.Workers, "BIOPASS_NOTIFY_WORKERS")
	setString(&cfg.Notify.NATSURL, "BIOPASS_NATS_URL")
	setString(&cfg.Notify.SubjectPrefix, "BIOPASS_NATS_SUBJECT_PREFIX")
	setBool(&cfg.Notify.LiveFeed, "BIOPASS_LIVE_FEED")

	setString(&cfg.Validation.PhonePattern, "BIOPASS_PHONE_PATTERN")

	setString(&cfg.Logging.Level, "BIOPASS_LOG_LEVEL")
	setString(&cfg.Logging.Format, "BIOPASS_LOG_FORMAT")

	setInt(&cfg.Health.ProbeIntervalSeconds, "BIOPASS_HEALTH_PROBE_INTERVAL_SECONDS")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	*dst = strings.EqualFold(v, "true") || v == "1"
}
