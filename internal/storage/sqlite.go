package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warunglabs/tanya/internal/models"
)

const metaKeyLastUpdated = "last_updated"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		position INTEGER PRIMARY KEY,
		faq_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_records_faq_id ON records(faq_id);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reconciliation_report (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		status TEXT NOT NULL,
		total INTEGER NOT NULL,
		missing_ids TEXT NOT NULL,
		orphaned_ids TEXT NOT NULL,
		error TEXT,
		timestamp TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveSnapshot replaces all persisted records in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, recs []*models.FAQ, lastUpdated time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO records (position, faq_id, question, answer) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for pos, rec := range recs {
		if _, err := stmt.ExecContext(ctx, pos, rec.ID, rec.Question, rec.Answer); err != nil {
			return fmt.Errorf("insert record at position %d: %w", pos, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaKeyLastUpdated, lastUpdated.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("update last_updated: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshot returns the persisted records in position order.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) ([]*models.FAQ, time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT faq_id, question, answer FROM records ORDER BY position ASC")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	recs := make([]*models.FAQ, 0)
	for rows.Next() {
		var rec models.FAQ
		var answer sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Question, &answer); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan record: %w", err)
		}
		rec.Answer = answer.String
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	var lastUpdated time.Time
	var raw string
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaKeyLastUpdated).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// never snapshotted
	case err != nil:
		return nil, time.Time{}, fmt.Errorf("query last_updated: %w", err)
	default:
		if t, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			lastUpdated = t
		}
	}
	return recs, lastUpdated, nil
}

// SaveReport overwrites the single stored reconciliation report.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *models.ReconciliationReport) error {
	missing, err := json.Marshal(report.MissingIDs)
	if err != nil {
		return fmt.Errorf("marshal missing ids: %w", err)
	}
	orphaned, err := json.Marshal(report.OrphanedIDs)
	if err != nil {
		return fmt.Errorf("marshal orphaned ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_report (id, status, total, missing_ids, orphaned_ids, error, timestamp)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total = excluded.total,
			missing_ids = excluded.missing_ids,
			orphaned_ids = excluded.orphaned_ids,
			error = excluded.error,
			timestamp = excluded.timestamp`,
		report.Status, report.Total, string(missing), string(orphaned), report.Error, report.Timestamp,
	)
	return err
}

// LoadReport returns the stored report, or nil when none exists.
func (s *SQLiteStore) LoadReport(ctx context.Context) (*models.ReconciliationReport, error) {
	var report models.ReconciliationReport
	var missing, orphaned string
	var errText sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT status, total, missing_ids, orphaned_ids, error, timestamp
		FROM reconciliation_report WHERE id = 1`,
	).Scan(&report.Status, &report.Total, &missing, &orphaned, &errText, &report.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &report.MissingIDs); err != nil {
		return nil, fmt.Errorf("unmarshal missing ids: %w", err)
	}
	if err := json.Unmarshal([]byte(orphaned), &report.OrphanedIDs); err != nil {
		return nil, fmt.Errorf("unmarshal orphaned ids: %w", err)
	}
	report.Error = errText.String
	return &report, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteRecordsJSON writes recs as indented JSON to path, creating parent
// directories. Used by export and backup.
func WriteRecordsJSON(path string, recs []*models.FAQ) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}
