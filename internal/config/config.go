// Package config loads Kestrel configuration and builds the process logger.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Load returns the default configuration overlaid with the YAML file at path
// (if any) and then with KESTREL_* environment variables.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment overrides. getenv is injected for tests.
func applyEnv(cfg *domain.Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str("KESTREL_LOG_LEVEL", &cfg.Logging.Level)
	str("KESTREL_LOG_FORMAT", &cfg.Logging.Format)
	if getenv("KESTREL_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	if err := num("KESTREL_HTTP_PORT", &cfg.Server.Port); err != nil {
		return err
	}

	if v := getenv("KESTREL_CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = cfg.Server.AllowedOrigins[:0]
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
			}
		}
	}

	str("KESTREL_DB_DRIVER", &cfg.Repository.Driver)
	str("KESTREL_SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("KESTREL_POSTGRES_HOST", &cfg.Repository.PostgresHost)
	if err := num("KESTREL_POSTGRES_PORT", &cfg.Repository.PostgresPort); err != nil {
		return err
	}
	str("KESTREL_POSTGRES_USER", &cfg.Repository.PostgresUser)
	str("KESTREL_POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	str("KESTREL_POSTGRES_DB", &cfg.Repository.PostgresDB)
	str("KESTREL_POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)

	str("KESTREL_BUS", &cfg.EventBus.Type)
	str("KESTREL_NATS_URL", &cfg.EventBus.NATSUrl)
	str("KESTREL_NATS_TOKEN", &cfg.EventBus.NATSToken)

	str("KESTREL_RULES_FILE", &cfg.Engine.RulesFile)

	if v := getenv("KESTREL_WORKERS"); v != "" {
		if err := num("KESTREL_WORKERS", &cfg.Worker.WorkerCount); err != nil {
			return err
		}
		cfg.Worker.Enabled = cfg.Worker.WorkerCount > 0
	}

	return nil
}

// Validate rejects settings the service cannot start with.
func Validate(cfg *domain.Config) error {
	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("repository.driver: unsupported driver %q", cfg.Repository.Driver)
	}
	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("eventBus.type: unsupported bus %q", cfg.EventBus.Type)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", cfg.Server.Port)
	}
	if cfg.Engine.MaxBatchSize < 0 || cfg.Engine.BatchConcurrency < 0 {
		return fmt.Errorf("engine: batch limits must not be negative")
	}
	return nil
}
