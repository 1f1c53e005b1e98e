package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    supplier_id TEXT NOT NULL,
    supplier_name TEXT,
    final_tier TEXT NOT NULL,
    score INTEGER NOT NULL,
    recommendation TEXT NOT NULL,
    decided_by TEXT NOT NULL,
    catalog_version TEXT NOT NULL,
    trace_id TEXT,
    indicators TEXT NOT NULL,
    result TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_supplier ON evaluations(supplier_id, created_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_tier ON evaluations(final_tier);
`

// schemaRuleDefinitions stores CEL rule definitions that extend the
// built-in catalog. Deleted definitions are kept with enabled = 0.
const schemaRuleDefinitions = `
CREATE TABLE IF NOT EXISTS rule_definitions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    category TEXT NOT NULL,
    severity TEXT NOT NULL,
    impact INTEGER NOT NULL,
    factor TEXT,
    expression TEXT NOT NULL,
    justification TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_definitions_enabled ON rule_definitions(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaEvaluations,
		schemaRuleDefinitions,
	}
}
