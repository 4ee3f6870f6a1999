// Package sqlite provides SQLite-based persistent storage for research
// history. Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/insightai/insight/internal/domain"
)

// DefaultHistoryLimit caps RecentResults when the caller passes <= 0.
const DefaultHistoryLimit = 20

// MaxHistoryLimit is the largest page RecentResults returns.
const MaxHistoryLimit = 500

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/history.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS research_results (
			dispatch_id      TEXT PRIMARY KEY,
			query            TEXT NOT NULL,
			summary          TEXT NOT NULL,
			bullet_points    TEXT NOT NULL DEFAULT '[]',
			sources          TEXT NOT NULL DEFAULT '[]',
			session_id       TEXT NOT NULL,
			task_id          TEXT NOT NULL DEFAULT '0',
			tx_hash          TEXT NOT NULL DEFAULT '',
			verified         BOOLEAN NOT NULL DEFAULT 0,
			is_demo          BOOLEAN NOT NULL DEFAULT 0,
			method           TEXT NOT NULL,
			requested_mode   TEXT NOT NULL,
			model            TEXT NOT NULL DEFAULT '',
			fallback_reason  TEXT NOT NULL DEFAULT '',
			verification_url TEXT NOT NULL DEFAULT '',
			cached           BOOLEAN NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_research_created ON research_results(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_research_method ON research_results(method)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Research History ───────────────────────────────────────────────────────

// RecordResult stores a dispatched result. Re-recording the same dispatch
// id replaces the earlier row.
func (d *DB) RecordResult(ctx context.Context, res domain.ResearchResult) error {
	bullets, err := json.Marshal(nonNil(res.BulletPoints))
	if err != nil {
		return fmt.Errorf("encode bullet points: %w", err)
	}
	sources, err := json.Marshal(nonNil(res.Sources))
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	ts := res.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO research_results (dispatch_id, query, summary, bullet_points, sources,
			session_id, task_id, tx_hash, verified, is_demo, method, requested_mode, model,
			fallback_reason, verification_url, cached, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dispatch_id) DO UPDATE SET
			summary=excluded.summary,
			bullet_points=excluded.bullet_points,
			sources=excluded.sources,
			task_id=excluded.task_id,
			tx_hash=excluded.tx_hash,
			verified=excluded.verified,
			is_demo=excluded.is_demo,
			method=excluded.method,
			fallback_reason=excluded.fallback_reason,
			verification_url=excluded.verification_url,
			cached=excluded.cached,
			created_at=excluded.created_at`,
		res.DispatchID, res.Query, res.Summary, string(bullets), string(sources),
		res.SessionID, res.TaskID, res.TxHash, res.Verified, res.IsDemo,
		string(res.Method), string(res.RequestedMode), res.Model,
		res.FallbackReason, res.VerificationURL, res.Cached, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record result %s: %w", res.DispatchID, err)
	}
	return nil
}

// RecentResults returns up to limit results, newest first.
func (d *DB) RecentResults(ctx context.Context, limit int) ([]domain.ResearchResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT dispatch_id, query, summary, bullet_points, sources, session_id, task_id,
			tx_hash, verified, is_demo, method, requested_mode, model, fallback_reason,
			verification_url, cached, created_at
		 FROM research_results ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.ResearchResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResult retrieves a single result by dispatch id. Returns
// domain.ErrResultNotFound when absent.
func (d *DB) GetResult(ctx context.Context, dispatchID string) (domain.ResearchResult, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT dispatch_id, query, summary, bullet_points, sources, session_id, task_id,
			tx_hash, verified, is_demo, method, requested_mode, model, fallback_reason,
			verification_url, cached, created_at
		 FROM research_results WHERE dispatch_id = ?`, dispatchID,
	)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return domain.ResearchResult{}, domain.ErrResultNotFound
	}
	return r, err
}

// CountResults returns the number of stored results per method.
func (d *DB) CountResults(ctx context.Context) (map[domain.Mode]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT method, COUNT(*) FROM research_results GROUP BY method`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Mode]int)
	for rows.Next() {
		var method string
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			return nil, err
		}
		counts[domain.Mode(method)] = n
	}
	return counts, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (domain.ResearchResult, error) {
	var r domain.ResearchResult
	var bullets, sources, method, requested string
	var createdAt int64

	err := s.Scan(&r.DispatchID, &r.Query, &r.Summary, &bullets, &sources,
		&r.SessionID, &r.TaskID, &r.TxHash, &r.Verified, &r.IsDemo,
		&method, &requested, &r.Model, &r.FallbackReason,
		&r.VerificationURL, &r.Cached, &createdAt)
	if err != nil {
		return domain.ResearchResult{}, err
	}

	if err := json.Unmarshal([]byte(bullets), &r.BulletPoints); err != nil {
		return domain.ResearchResult{}, fmt.Errorf("decode bullet points: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return domain.ResearchResult{}, fmt.Errorf("decode sources: %w", err)
	}
	r.Method = domain.Mode(method)
	r.RequestedMode = domain.Mode(requested)
	r.Timestamp = time.UnixMilli(createdAt)
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
