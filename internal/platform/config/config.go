package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config aggregates the service configuration loaded from environment variables.
type Config struct {
	Env  string
	Port string

	Storage     string
	RecordsFile string

	DatabaseURL      string
	RecordsStoreName string

	S3 S3Config

	IdempotencyTTL    time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// S3Config locates the register object. Empty credentials fall back to the default AWS chain.
type S3Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads the configuration from the current environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Env:              get("APP_ENV", "dev"),
		Port:             get("PORT", "8000"),
		Storage:          strings.ToLower(get("STORAGE_BACKEND", BackendFile)),
		RecordsFile:      get("RECORDS_FILE", "beneficiaries.csv"),
		DatabaseURL:      getenv("DATABASE_URL"),
		RecordsStoreName: get("RECORDS_STORE_NAME", "default"),
		S3: S3Config{
			Bucket:          getenv("S3_BUCKET"),
			Key:             get("S3_KEY", "beneficiaries.csv"),
			Region:          get("S3_REGION", "us-east-1"),
			Endpoint:        getenv("S3_ENDPOINT"),
			AccessKeyID:     getenv("S3_ACCESS_KEY"),
			SecretAccessKey: getenv("S3_SECRET_KEY"),
		},
	}

	var err error
	if cfg.S3.PathStyle, err = parseBool(getenv, "S3_PATH_STYLE", false); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDuration(getenv, "IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReadHeaderTimeout, err = parseDuration(getenv, "READ_HEADER_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration(getenv, "SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements. cmd/api calls it again after flag overrides.
func (c Config) Validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("PORT must be a TCP port number, got %q", c.Port)
	}
	switch c.Storage {
	case BackendFile:
		if c.RecordsFile == "" {
			return fmt.Errorf("RECORDS_FILE is required for the file backend")
		}
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of file, memory, s3, postgres; got %q", c.Storage)
	}
	return nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 5s): %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func parseBool(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
