// Package store persists candidates, their evidence, and LLM results in the
// serving database. It speaks both Postgres and SQLite through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested candidate or evidence row does not
// exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the serving database.
type Store struct {
	db      *sql.DB
	dialect string
}

// New wraps an already-open database handle. The dialect is inferred from the
// driver when opened via Open; callers constructing a Store directly get the
// sqlite schema.
func New(db *sql.DB) *Store {
	return &Store{db: db, dialect: "sqlite"}
}

// Open connects to the serving database. Postgres URLs select the pq driver;
// anything else is treated as a SQLite path or DSN.
func Open(dsn string) (*Store, error) {
	dialect := "sqlite"
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = "postgres"
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; a single connection avoids
		// SQLITE_BUSY under concurrent use.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

const schemaCommon = `
CREATE TABLE IF NOT EXISTS candidates (
	candidate_id TEXT PRIMARY KEY,
	run_id TEXT,
	type TEXT NOT NULL,
	anchor_object_id TEXT NOT NULL,
	anchor_object_type TEXT NOT NULL,
	base_conf REAL NOT NULL DEFAULT 0,
	final_conf REAL NOT NULL DEFAULT 0,
	severity REAL,
	priority_score REAL,
	status TEXT NOT NULL DEFAULT 'open',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_candidates_run_id ON candidates (run_id);
CREATE INDEX IF NOT EXISTS ix_candidates_type ON candidates (type);
CREATE INDEX IF NOT EXISTS ix_candidates_status ON candidates (status);

CREATE TABLE IF NOT EXISTS candidate_evidence (
	candidate_id TEXT PRIMARY KEY REFERENCES candidates(candidate_id),
	evidence_event_ids TEXT,
	evidence_object_ids TEXT,
	timeline TEXT,
	features TEXT,
	subgraph TEXT
);
`

const schemaLLMSQLite = `
CREATE TABLE IF NOT EXISTS llm_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id TEXT NOT NULL REFERENCES candidates(candidate_id),
	model TEXT,
	provider TEXT,
	schema_version TEXT,
	prompt_hash TEXT,
	input_hash TEXT,
	verdict TEXT,
	v_conf REAL,
	explanation TEXT,
	possible_false_positive TEXT,
	next_questions TEXT,
	raw_json TEXT,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	total_tokens INTEGER,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_llm_results_candidate ON llm_results (candidate_id);
`

const schemaLLMPostgres = `
CREATE TABLE IF NOT EXISTS llm_results (
	id BIGSERIAL PRIMARY KEY,
	candidate_id TEXT NOT NULL REFERENCES candidates(candidate_id),
	model TEXT,
	provider TEXT,
	schema_version TEXT,
	prompt_hash TEXT,
	input_hash TEXT,
	verdict TEXT,
	v_conf DOUBLE PRECISION,
	explanation TEXT,
	possible_false_positive TEXT,
	next_questions TEXT,
	raw_json TEXT,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	total_tokens INTEGER,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_llm_results_candidate ON llm_results (candidate_id);
`

// Init creates the serving schema when missing.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaCommon); err != nil {
		return err
	}
	llm := schemaLLMSQLite
	if s.dialect == "postgres" {
		llm = schemaLLMPostgres
	}
	_, err := s.db.ExecContext(ctx, llm)
	return err
}
