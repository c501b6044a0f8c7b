package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SES       SESConfig       `yaml:"ses"`
	Storage   StorageConfig   `yaml:"storage"`
	Sender    SenderConfig    `yaml:"sender"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port               int      `yaml:"port"`
	Host               string   `yaml:"host"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Tracking modes.
const (
	TrackingSync  = "sync"
	TrackingAsync = "async"
)

// TrackingConfig controls the public tracking endpoints.
type TrackingConfig struct {
	// BaseURL is the public origin embedded in rewritten links.
	BaseURL string `yaml:"base_url"`
	// LocationHeader carries the geo label set by the edge proxy.
	LocationHeader string `yaml:"location_header"`
	// Mode is "sync" (write events inline) or "async" (publish to SQS).
	Mode     string `yaml:"mode"`
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// SESConfig holds AWS SES credentials. Without keys the default AWS chain
// is used; with Enabled false mail is only logged.
type SESConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageDynamoDB = "dynamodb"
)

// StorageConfig selects where data lives. Type applies to campaigns,
// recipients and events; SnapshotBackend may move snapshots to DynamoDB.
type StorageConfig struct {
	Type            string `yaml:"type"`
	SnapshotBackend string `yaml:"snapshot_backend"`
	DynamoDBTable   string `yaml:"dynamodb_table"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"`
}

// SenderConfig sizes the background send pool and the mail rate limit.
type SenderConfig struct {
	Workers       int     `yaml:"workers"`
	QueueSize     int     `yaml:"queue_size"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type AnalyticsConfig struct {
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
}

// RefreshInterval returns the snapshot refresh period as a duration.
func (c AnalyticsConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// ShouldRedact reports whether PII redaction is on. It defaults to true.
func (c LogConfig) ShouldRedact() bool { return c.RedactPII == nil || *c.RedactPII }

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Tracking.Mode == "" {
		cfg.Tracking.Mode = TrackingSync
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = cfg.SES.Region
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageMemory
	}
	if cfg.Storage.SnapshotBackend == "" {
		cfg.Storage.SnapshotBackend = cfg.Storage.Type
	}
	if cfg.Storage.DynamoDBTable == "" {
		cfg.Storage.DynamoDBTable = "engagement-snapshots"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = cfg.SES.Region
	}
	if cfg.Sender.Workers == 0 {
		cfg.Sender.Workers = 4
	}
	if cfg.Sender.QueueSize == 0 {
		cfg.Sender.QueueSize = 64
	}
	if cfg.Sender.RatePerSecond == 0 {
		cfg.Sender.RatePerSecond = 14
	}
	if cfg.Sender.Burst == 0 {
		cfg.Sender.Burst = 1
	}
	if cfg.Analytics.RefreshIntervalSeconds == 0 {
		cfg.Analytics.RefreshIntervalSeconds = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate rejects combinations the binaries cannot start with.
func (cfg *Config) Validate() error {
	switch cfg.Tracking.Mode {
	case TrackingSync:
	case TrackingAsync:
		if cfg.Tracking.QueueURL == "" {
			return fmt.Errorf("tracking.queue_url is required in async mode")
		}
	default:
		return fmt.Errorf("unknown tracking.mode %q", cfg.Tracking.Mode)
	}

	switch cfg.Storage.Type {
	case StorageMemory:
	case StoragePostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", cfg.Storage.Type)
	}

	switch cfg.Storage.SnapshotBackend {
	case StorageMemory, StoragePostgres, StorageDynamoDB:
	default:
		return fmt.Errorf("unknown storage.snapshot_backend %q", cfg.Storage.SnapshotBackend)
	}
	if cfg.Storage.SnapshotBackend == StoragePostgres && cfg.Storage.Type != StoragePostgres {
		return fmt.Errorf("postgres snapshots require postgres storage")
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_MODE"); v != "" {
		cfg.Tracking.Mode = v
	}
	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.QueueURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		if cfg.Storage.Type == StorageMemory {
			cfg.Storage.Type = StoragePostgres
			if cfg.Storage.SnapshotBackend == StorageMemory {
				cfg.Storage.SnapshotBackend = StoragePostgres
			}
		}
	}

	return cfg, nil
}
