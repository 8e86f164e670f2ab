package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS violations (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	payload     TEXT NOT NULL,
	status      TEXT NOT NULL,
	resolution  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_violations_status ON violations(status);

CREATE TABLE IF NOT EXISTS rules (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	logic   TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	active  INTEGER NOT NULL DEFAULT 1
);
`

// SQLiteQueue is a ViolationQueue and RuleStore backed by SQLite.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue opens (creating if needed) the database at path and
// applies the schema. WAL mode keeps concurrent readers off the write lock.
func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteQueue{db: db}, nil
}

// Enqueue records a violation for review.
func (q *SQLiteQueue) Enqueue(ctx context.Context, runID, agentID string, v domain.Violation) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode violation: %w", err)
	}

	id := uuid.New().String()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO violations (id, run_id, agent_id, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, runID, agentID, string(payload), string(StatusPending), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert violation: %w", err)
	}
	return id, nil
}

// List returns queued violations with the given status, newest first.
func (q *SQLiteQueue) List(ctx context.Context, status ViolationStatus) ([]PendingViolation, error) {
	query := `SELECT id, run_id, agent_id, payload, status, resolution, created_at, resolved_at
	          FROM violations`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []PendingViolation
	for rows.Next() {
		var pv PendingViolation
		var payload string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&pv.ID, &pv.RunID, &pv.AgentID, &payload, &pv.Status, &pv.Resolution, &pv.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &pv.Violation); err != nil {
			return nil, fmt.Errorf("decode violation %s: %w", pv.ID, err)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			pv.ResolvedAt = &t
		}
		out = append(out, pv)
	}
	return out, rows.Err()
}

// Resolve marks a queued violation as reviewed.
func (q *SQLiteQueue) Resolve(ctx context.Context, id, resolution string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE violations SET status = ?, resolution = ?, resolved_at = ?
		 WHERE id = ? AND status = ?`,
		string(StatusResolved), resolution, time.Now().UTC(), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("resolve violation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve violation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("violation not found or already resolved: %s", id)
	}
	return nil
}

// SeedRules inserts rules that are not already present.
func (q *SQLiteQueue) SeedRules(ctx context.Context, rules []domain.Rule) error {
	for _, r := range rules {
		_, err := q.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO rules (id, name, logic, summary, active) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Logic, r.Summary, r.Active)
		if err != nil {
			return fmt.Errorf("seed rule %s: %w", r.ID, err)
		}
	}
	return nil
}

// ListActiveRules returns the active entries of the rule catalog.
func (q *SQLiteQueue) ListActiveRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, logic, summary, active FROM rules WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		var r domain.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Logic, &r.Summary, &r.Active); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}
