// Package sqlite implements the IssueStore interface on an embedded SQLite
// database. Issue records are stored as JSON bodies so the schema does not
// track the issue model field by field.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"tasklanes/internal/issuestorage"
)

// primaryShard labels rows of the primary collection.
const primaryShard = ""

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	shard TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS changes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_id TEXT NOT NULL,
	body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_shard ON issues(shard, seq);
CREATE INDEX IF NOT EXISTS idx_changes_issue ON changes(issue_id, seq);
`

// Store implements issuestorage.ShardedStore and issuestorage.ChangeLog.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema if needed.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: create schema: %w", err)
	}
	return nil
}

// LoadAll returns primary rows first, then each secondary shard in name
// order, each in insertion order.
func (s *Store) LoadAll(ctx context.Context) ([]*issuestorage.Issue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT body FROM issues ORDER BY shard <> '', shard, seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load issues: %w", err)
	}
	defer rows.Close()

	var issues []*issuestorage.Issue
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var issue issuestorage.Issue
		if err := json.Unmarshal([]byte(body), &issue); err != nil {
			return nil, fmt.Errorf("sqlite: decode issue: %w", err)
		}
		issues = append(issues, &issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	return issues, tx.Commit()
}

// SaveAll replaces every row, secondary shards included, in one transaction.
func (s *Store) SaveAll(ctx context.Context, issues []*issuestorage.Issue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues`); err != nil {
		return fmt.Errorf("sqlite: clear issues: %w", err)
	}
	if err := insertIssues(ctx, tx, primaryShard, issues); err != nil {
		return err
	}
	return tx.Commit()
}

// Append inserts one row into the primary collection.
func (s *Store) Append(ctx context.Context, issue *issuestorage.Issue) error {
	body, err := json.Marshal(issue)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO issues (id, shard, body) VALUES (?, ?, ?)`,
		issuestorage.NormalizeID(issue.ID), primaryShard, string(body))
	if err != nil {
		return fmt.Errorf("sqlite: append issue: %w", err)
	}
	return nil
}

// Shards lists secondary shard names in order.
func (s *Store) Shards(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT shard FROM issues WHERE shard <> '' ORDER BY shard`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list shards: %w", err)
	}
	defer rows.Close()

	var shards []string
	for rows.Next() {
		var shard string
		if err := rows.Scan(&shard); err != nil {
			return nil, err
		}
		shards = append(shards, shard)
	}
	return shards, rows.Err()
}

// WriteShard replaces the rows of one secondary shard. A shard with no
// issues simply has no rows.
func (s *Store) WriteShard(ctx context.Context, shard string, issues []*issuestorage.Issue) error {
	if err := issuestorage.ValidateShardName(shard); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE shard = ?`, shard); err != nil {
		return fmt.Errorf("sqlite: clear shard %s: %w", shard, err)
	}
	if err := insertIssues(ctx, tx, shard, issues); err != nil {
		return err
	}
	return tx.Commit()
}

func insertIssues(ctx context.Context, tx *sql.Tx, shard string, issues []*issuestorage.Issue) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO issues (id, shard, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		body, err := json.Marshal(issue)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, issuestorage.NormalizeID(issue.ID), shard, string(body)); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", issue.ID, err)
		}
	}
	return nil
}

// RecordChanges appends changes for issueID to the audit trail.
func (s *Store) RecordChanges(ctx context.Context, issueID string, changes []issuestorage.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := issuestorage.NormalizeID(issueID)
	for _, change := range changes {
		body, err := json.Marshal(change)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO changes (issue_id, body) VALUES (?, ?)`, id, string(body)); err != nil {
			return fmt.Errorf("sqlite: record change: %w", err)
		}
	}
	return tx.Commit()
}

// Changes returns the recorded changes for issueID, oldest first.
func (s *Store) Changes(ctx context.Context, issueID string) ([]issuestorage.PropertyChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM changes WHERE issue_id = ? ORDER BY seq`,
		issuestorage.NormalizeID(issueID))
	if err != nil {
		return nil, fmt.Errorf("sqlite: load changes: %w", err)
	}
	defer rows.Close()

	var changes []issuestorage.PropertyChange
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var change issuestorage.PropertyChange
		if err := json.Unmarshal([]byte(body), &change); err != nil {
			return nil, fmt.Errorf("sqlite: decode change: %w", err)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

// IntegrityCheck runs SQLite's own consistency check and returns any
// problems it reports.
func (s *Store) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	return problems, rows.Err()
}
