// Package config loads spidersync settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader backends.
const (
	LoaderFile = "FILE"
	LoaderS3   = "S3"
	LoaderHTTP = "HTTP"
)

// ErrInvalid is returned by Validate for incomplete configuration.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration values.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Elasticsearch Elasticsearch `yaml:"elasticsearch"`

	// DocumentBaseURL prefixes attachment URLs when metadata has none.
	DocumentBaseURL string `yaml:"document_base_url"`

	Loader Loader `yaml:"loader"`

	// Concurrency is the number of groups assembled and applied per wave.
	Concurrency int `yaml:"concurrency"`

	SurrealDB SurrealDB `yaml:"surrealdb"`
}

// Elasticsearch configures the search engine connection.
type Elasticsearch struct {
	Host     string        `yaml:"host"`
	Index    string        `yaml:"index"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Loader selects and configures the spider file backend.
type Loader struct {
	Type     string `yaml:"type"`
	BasePath string `yaml:"base_path"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	BaseURL  string `yaml:"base_url"`
}

// SurrealDB configures the run ledger. An empty URL disables it.
type SurrealDB struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	AuthLevel string `yaml:"auth_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     "8000",
		LogLevel: "INFO",
		LogFile:  "/tmp/spidersync.log",
		Elasticsearch: Elasticsearch{
			Timeout: 5 * time.Minute,
		},
		Loader: Loader{
			Type: LoaderFile,
		},
		Concurrency: 16,
		SurrealDB: SurrealDB{
			Namespace: "spidersync",
			Database:  "runs",
			User:      "root",
			Pass:      "root",
			AuthLevel: "root",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or SPIDERSYNC_CONFIG when path is empty), then environment variables.
// Environment variables win over the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SPIDERSYNC_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("SPIDERSYNC_LOG_FILE", cfg.LogFile)

	es := &cfg.Elasticsearch
	es.Host = getEnv("ELASTICSEARCH_HOST", es.Host)
	es.Index = getEnv("ELASTICSEARCH_INDEX", es.Index)
	es.User = getEnv("ELASTICSEARCH_USER", es.User)
	es.Password = getEnv("ELASTICSEARCH_PASSWORD", es.Password)
	if v := os.Getenv("ELASTICSEARCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ELASTICSEARCH_TIMEOUT: %w", err)
		}
		es.Timeout = d
	}

	cfg.DocumentBaseURL = getEnv("DOCUMENT_BASE_URL", cfg.DocumentBaseURL)

	l := &cfg.Loader
	l.Type = strings.ToUpper(getEnv("LOADER_TYPE", l.Type))
	l.BasePath = getEnv("FILE_BASE_PATH", l.BasePath)
	l.Bucket = getEnv("S3_BUCKET", l.Bucket)
	l.Prefix = getEnv("S3_PREFIX", l.Prefix)
	l.Region = getEnv("S3_REGION", l.Region)
	l.Endpoint = getEnv("S3_ENDPOINT", l.Endpoint)
	l.BaseURL = getEnv("HTTP_BASE_URL", l.BaseURL)

	if v := os.Getenv("SYNC_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SYNC_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}

	s := &cfg.SurrealDB
	s.URL = getEnv("SURREALDB_URL", s.URL)
	s.Namespace = getEnv("SURREALDB_NAMESPACE", s.Namespace)
	s.Database = getEnv("SURREALDB_DATABASE", s.Database)
	s.User = getEnv("SURREALDB_USER", s.User)
	s.Pass = getEnv("SURREALDB_PASS", s.Pass)
	s.AuthLevel = getEnv("SURREALDB_AUTH_LEVEL", s.AuthLevel)
	return nil
}

// Validate reports every missing required value at once.
func (c Config) Validate() error {
	var problems []string
	if c.Elasticsearch.Host == "" {
		problems = append(problems, "ELASTICSEARCH_HOST is required")
	}
	if c.Elasticsearch.Index == "" {
		problems = append(problems, "ELASTICSEARCH_INDEX is required")
	}
	if c.Concurrency <= 0 {
		problems = append(problems, "SYNC_CONCURRENCY must be positive")
	}

	switch c.Loader.Type {
	case LoaderFile:
		if c.Loader.BasePath == "" {
			problems = append(problems, "FILE_BASE_PATH is required for the FILE loader")
		}
	case LoaderS3:
		if c.Loader.Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for the S3 loader")
		}
	case LoaderHTTP:
		if c.Loader.BaseURL == "" {
			problems = append(problems, "HTTP_BASE_URL is required for the HTTP loader")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown LOADER_TYPE %q", c.Loader.Type))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// LedgerEnabled reports whether runs are persisted to SurrealDB.
func (c Config) LedgerEnabled() bool {
	return c.SurrealDB.URL != ""
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
