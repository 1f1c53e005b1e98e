// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository persists the evaluation audit log and stored rule definitions.
type Repository interface {
	// Evaluation audit log
	SaveEvaluation(ctx context.Context, rec *EvaluationRecord) error
	GetEvaluation(ctx context.Context, id string) (*EvaluationRecord, error)
	ListEvaluationsBySupplier(ctx context.Context, supplierID string, limit int) ([]*EvaluationRecord, error)

	// Rule definition operations
	SaveRuleDefinition(ctx context.Context, def *RuleDefinition) error
	GetRuleDefinition(ctx context.Context, id string) (*RuleDefinition, error)
	ListRuleDefinitions(ctx context.Context) ([]*RuleDefinition, error)
	DeleteRuleDefinition(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"-" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
