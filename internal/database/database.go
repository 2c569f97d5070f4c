package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"receipt-schema-api/internal/models"
)

// checkedAtLayout is fixed width so stored timestamps sort lexically.
const checkedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the audit log database connection.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS validation_audit (
			id TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			receipt_id TEXT,
			valid INTEGER NOT NULL,
			error_field TEXT,
			error_kind TEXT,
			checked_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_checked_at ON validation_audit(checked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_digest ON validation_audit(digest)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// InsertAudit records one validation outcome.
func (db *DB) InsertAudit(ctx context.Context, entry models.AuditEntry) error {
	query := `INSERT INTO validation_audit (
		id, digest, receipt_id, valid, error_field, error_kind, checked_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.Digest,
		nullString(entry.ReceiptID),
		entry.Valid,
		nullString(entry.ErrorField),
		nullString(entry.ErrorKind),
		entry.CheckedAt.UTC().Format(checkedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %s: %w", entry.ID, err)
	}

	return nil
}

// ListAudits returns the most recent entries, newest first.
func (db *DB) ListAudits(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	query := `SELECT id, digest, receipt_id, valid, error_field, error_kind, checked_at
		FROM validation_audit
		ORDER BY checked_at DESC, rowid DESC
		LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var entry models.AuditEntry
		var receiptID, errorField, errorKind sql.NullString
		var checkedAt string

		err := rows.Scan(
			&entry.ID,
			&entry.Digest,
			&receiptID,
			&entry.Valid,
			&errorField,
			&errorKind,
			&checkedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.ReceiptID = receiptID.String
		entry.ErrorField = errorField.String
		entry.ErrorKind = errorKind.String

		entry.CheckedAt, err = time.Parse(checkedAtLayout, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse checked_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// SummarizeAudits counts accepted and rejected outcomes.
func (db *DB) SummarizeAudits(ctx context.Context) (models.AuditSummary, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN valid = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN valid = 0 THEN 1 ELSE 0 END), 0)
		FROM validation_audit`

	var summary models.AuditSummary
	if err := db.conn.QueryRowContext(ctx, query).Scan(&summary.Accepted, &summary.Rejected); err != nil {
		return models.AuditSummary{}, fmt.Errorf("failed to summarize audit entries: %w", err)
	}

	return summary, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
