// Package config loads server settings. Sources are applied in order, each
// overriding the last:
//
//  1. built-in defaults (Default)
//  2. a YAML file, if one is found (CONFIG_PATH, then DefaultConfigPaths)
//  3. environment variables listed in envMappings
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recipebook/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Storage  StorageConfig  `koanf:"storage"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`
}

// StorageConfig selects where uploaded images go. Driver is "local" or "s3".
type StorageConfig struct {
	Driver   string   `koanf:"driver"`
	LocalDir string   `koanf:"local_dir"`
	S3       S3Config `koanf:"s3"`
}

type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PublicURL string `koanf:"public_url"`
}

type SecurityConfig struct {
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimitReqs requests per RateLimitWindow per client IP on /api/users.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Default returns the built-in settings. It has no JWT secret, so it does
// not pass Validate on its own.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20, // 10MB
		},
		Database: DatabaseConfig{
			Path: "data/recipes.db",
		},
		Auth: AuthConfig{
			TokenTTL:   6 * time.Hour,
			BcryptCost: 12,
		},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: "uploads",
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   20,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the config file and the environment,
// then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names to config keys. Variables not
// listed here are ignored.
var envMappings = map[string]string{
	"port":                    "server.port",
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",
	"max_upload_bytes":        "server.max_upload_bytes",
	"db_path":                 "database.path",
	"jwt_secret":              "auth.jwt_secret",
	"token_ttl":               "auth.token_ttl",
	"bcrypt_cost":             "auth.bcrypt_cost",
	"storage_driver":          "storage.driver",
	"upload_dir":              "storage.local_dir",
	"s3_bucket":               "storage.s3.bucket",
	"aws_region":              "storage.s3.region",
	"s3_endpoint":             "storage.s3.endpoint",
	"s3_access_key":           "storage.s3.access_key",
	"s3_secret_key":           "storage.s3.secret_key",
	"s3_public_url":           "storage.s3.public_url",
	"cors_origins":            "security.cors_origins",
	"rate_limit_reqs":         "security.rate_limit_reqs",
	"rate_limit_window":       "security.rate_limit_window",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
}

// listKeys hold comma-separated values when they come from the environment.
var listKeys = map[string]bool{
	"security.cors_origins": true,
}

// envTransform maps a variable to its config key. An empty key tells koanf
// to skip the variable.
func envTransform(name, value string) (string, any) {
	key := envMappings[strings.ToLower(name)]
	if key == "" || !listKeys[key] {
		return key, value
	}

	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return key, items
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters (set JWT_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d out of range 4-31", c.Auth.BcryptCost))
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required for the local driver"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be local or s3", c.Storage.Driver))
	}

	if c.Security.RateLimitReqs < 0 {
		errs = append(errs, errors.New("security.rate_limit_reqs must not be negative"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}
