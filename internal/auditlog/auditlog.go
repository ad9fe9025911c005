// Package auditlog implements ports.RejectionRecorder: an append-only
// trail of markets the Market Fetcher (C2) rejected during tradability
// filtering. It is deliberately a separate store from C1's transactional
// gorm.io/driver/sqlite handle — a fire-and-forget side channel, not part
// of any domain transaction — so it talks to SQLite directly over
// database/sql using modernc.org/sqlite, the pure-Go (no cgo) driver
// AlejandroRuiz99-polybot carries for its own lightweight scanner cache.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/predimarket/tradingcore/internal/ports"
)

// Log is a single-table append-only rejection history.
type Log struct {
	db *sql.DB
}

var _ ports.RejectionRecorder = (*Log)(nil)

// Open creates (if absent) the rejected_markets table at dsn and returns a
// Log ready to record against it.
func Open(dsn string) (*Log, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", dsn, err)
	}
	// SQLite allows only one writer at a time; matches the teacher's own
	// modernc.org/sqlite handle.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS rejected_markets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		rejected_at DATETIME NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: create table: %w", err)
	}
	return &Log{db: db}, nil
}

// RecordRejection appends one (market, reason) row. Callers treat a
// failure here as non-fatal: the audit log is best-effort, never a
// blocker for the cycle it is observing.
func (l *Log) RecordRejection(ctx context.Context, marketID, reason string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO rejected_markets (market_id, reason, rejected_at) VALUES (?, ?, ?)`,
		marketID, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("auditlog: record rejection for %s: %w", marketID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
