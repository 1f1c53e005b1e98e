// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveEvaluation appends an evaluation to the audit log.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, rec *domain.EvaluationRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: evaluation id is required", ErrInvalidInput)
	}

	indicators, err := json.Marshal(rec.Indicators)
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := `
		INSERT INTO evaluations (
			id, supplier_id, supplier_name, final_tier, score, recommendation,
			decided_by, catalog_version, trace_id, indicators, result, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.SupplierID, rec.SupplierName,
		string(rec.Result.FinalTier), rec.Result.Score, rec.Result.Recommendation,
		rec.Result.DecidedBy, rec.Result.CatalogVersion, rec.TraceID,
		string(indicators), string(result), rec.DurationMs, created,
	)
	return err
}

const evaluationColumns = `
	id, supplier_id, supplier_name, trace_id, indicators, result, duration_ms, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*domain.EvaluationRecord, error) {
	var rec domain.EvaluationRecord
	var name, traceID sql.NullString
	var indicators, result string

	if err := row.Scan(
		&rec.ID, &rec.SupplierID, &name, &traceID,
		&indicators, &result, &rec.DurationMs, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	rec.SupplierName = name.String
	rec.TraceID = traceID.String
	if err := json.Unmarshal([]byte(indicators), &rec.Indicators); err != nil {
		return nil, fmt.Errorf("decode indicators of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// GetEvaluation retrieves an audited evaluation by ID.
func (r *SQLRepository) GetEvaluation(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: evaluation id is required", ErrInvalidInput)
	}

	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = ?`

	rec, err := scanEvaluation(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListEvaluationsBySupplier returns a supplier's evaluations, newest first.
func (r *SQLRepository) ListEvaluationsBySupplier(ctx context.Context, supplierID string, limit int) ([]*domain.EvaluationRecord, error) {
	if supplierID == "" {
		return nil, fmt.Errorf("%w: supplier id is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `SELECT ` + evaluationColumns + `
		FROM evaluations
		WHERE supplier_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.EvaluationRecord
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SaveRuleDefinition creates or replaces a rule definition.
func (r *SQLRepository) SaveRuleDefinition(ctx context.Context, def *domain.RuleDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if def.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_definitions (
			id, name, description, category, severity, impact, factor,
			expression, justification, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			severity = excluded.severity,
			impact = excluded.impact,
			factor = excluded.factor,
			expression = excluded.expression,
			justification = excluded.justification,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		def.ID, def.Name, def.Description, string(def.Category), string(def.Severity),
		def.Impact, def.Factor, def.Expression, def.Justification, enabled,
		now, now,
	)
	return err
}

const definitionColumns = `
	id, name, description, category, severity, impact, factor,
	expression, justification, enabled, created_at, updated_at
`

func scanDefinition(row rowScanner) (*domain.RuleDefinition, error) {
	var def domain.RuleDefinition
	var description, factor, justification sql.NullString
	var category, severity string
	var enabled int

	if err := row.Scan(
		&def.ID, &def.Name, &description, &category, &severity, &def.Impact, &factor,
		&def.Expression, &justification, &enabled, &def.CreatedAt, &def.UpdatedAt,
	); err != nil {
		return nil, err
	}

	def.Description = description.String
	def.Factor = factor.String
	def.Justification = justification.String
	def.Category = domain.Category(category)
	def.Severity = domain.Severity(severity)
	def.Enabled = enabled == 1
	return &def, nil
}

// GetRuleDefinition retrieves an enabled rule definition.
func (r *SQLRepository) GetRuleDefinition(ctx context.Context, id string) (*domain.RuleDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM rule_definitions WHERE id = ? AND enabled = 1`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

// ListRuleDefinitions retrieves all enabled rule definitions in id order.
func (r *SQLRepository) ListRuleDefinitions(ctx context.Context) ([]*domain.RuleDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM rule_definitions WHERE enabled = 1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*domain.RuleDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	return defs, rows.Err()
}

// DeleteRuleDefinition soft-deletes a rule definition by setting enabled = 0.
func (r *SQLRepository) DeleteRuleDefinition(ctx context.Context, id string) error {
	query := `
		UPDATE rule_definitions
		SET enabled = 0, updated_at = ?
		WHERE id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
