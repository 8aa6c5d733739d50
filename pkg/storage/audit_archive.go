package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/argus-mc/argus/pkg/audit"
)

// AuditArchive wraps an embedded SQLite database holding the durable
// moderation audit trail. The JSON cache keeps the working state; the archive
// keeps everything, forever. It uses modernc.org/sqlite for CGO-less builds.
type AuditArchive struct {
	dbPath string
	db     *sql.DB
}

// NewAuditArchive creates an archive pointing to dbPath. Call Init() before
// using it.
func NewAuditArchive(dbPath string) *AuditArchive {
	return &AuditArchive{dbPath: dbPath}
}

// Init opens the database, configures pragmas, and ensures the schema exists.
func (a *AuditArchive) Init() error {
	if a.db != nil {
		return nil
	}
	if a.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(a.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", a.dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas for durability and concurrency
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA synchronous=NORMAL;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS audit_entries (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            action      TEXT NOT NULL,
            subject     TEXT,
            actor       TEXT,
            description TEXT,
            metadata    TEXT,
            at          TIMESTAMP NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_audit_entries_at ON audit_entries(at);
        CREATE INDEX IF NOT EXISTS idx_audit_entries_action ON audit_entries(action);
    `); err != nil {
		_ = db.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}

	a.db = db
	return nil
}

// Close closes the underlying database.
func (a *AuditArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Append stores one audit entry.
func (a *AuditArchive) Append(e audit.Entry) error {
	if a.db == nil {
		return fmt.Errorf("archive not initialized")
	}

	var metadata any
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := a.db.Exec(
		`INSERT INTO audit_entries (action, subject, actor, description, metadata, at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		e.Action, nullable(e.Subject), nullable(e.Actor), nullable(e.Description), metadata, at.UTC(),
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (a *AuditArchive) Recent(limit int) ([]audit.Entry, error) {
	if a.db == nil {
		return nil, fmt.Errorf("archive not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.Query(
		`SELECT action, subject, actor, description, metadata, at
         FROM audit_entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var subject, actor, description, metadata sql.NullString
		if err := rows.Scan(&e.Action, &subject, &actor, &description, &metadata, &e.At); err != nil {
			return nil, err
		}
		e.Subject = subject.String
		e.Actor = actor.String
		e.Description = description.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("parse metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
