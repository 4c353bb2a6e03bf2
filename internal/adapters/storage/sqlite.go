package storage

// sqlite.go: local persistence.
//
// Tables:
//   wagers                  mirror of the battles table (upsert by id, never deleted)
//   decisions               append-only decision log
//   daily_performance       per UTC day aggregates, the streak carries across days
//   confidence_performance  four fixed rows, one per confidence bucket
//   price_points            oracle price history (append-only)

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS wagers (
    id               INTEGER PRIMARY KEY,
    creator          TEXT    NOT NULL,
    opponent         TEXT    NOT NULL DEFAULT '',
    stake            INTEGER NOT NULL,
    direction        TEXT    NOT NULL,
    oracle_feed      INTEGER NOT NULL,
    duration         INTEGER NOT NULL,
    start_price      INTEGER NOT NULL DEFAULT 0,
    end_price        INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL,
    started_at       INTEGER NOT NULL DEFAULT 0,
    expires_at       INTEGER NOT NULL DEFAULT 0,
    status           INTEGER NOT NULL,
    winner           TEXT    NOT NULL DEFAULT '',
    our_role         TEXT    NOT NULL DEFAULT '',
    outcome_recorded INTEGER NOT NULL DEFAULT 0,
    synced_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wagers_status ON wagers(status);
CREATE INDEX IF NOT EXISTS idx_wagers_role   ON wagers(our_role, outcome_recorded);

CREATE TABLE IF NOT EXISTS decisions (
    id                TEXT PRIMARY KEY,
    challenge_id      INTEGER,
    action            TEXT NOT NULL,
    direction         TEXT NOT NULL DEFAULT '',
    confidence        REAL,
    confidence_bucket TEXT,
    reasoning         TEXT NOT NULL DEFAULT '',
    price_at_decision REAL NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created   ON decisions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_challenge ON decisions(challenge_id);

CREATE TABLE IF NOT EXISTS daily_performance (
    date              TEXT PRIMARY KEY,
    wins              INTEGER NOT NULL DEFAULT 0,
    losses            INTEGER NOT NULL DEFAULT 0,
    ties              INTEGER NOT NULL DEFAULT 0,
    total_won         REAL    NOT NULL DEFAULT 0,
    total_lost        REAL    NOT NULL DEFAULT 0,
    resolver_earnings REAL    NOT NULL DEFAULT 0,
    current_streak    INTEGER NOT NULL DEFAULT 0,
    best_win_streak   INTEGER NOT NULL DEFAULT 0,
    worst_loss_streak INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS confidence_performance (
    bucket     TEXT PRIMARY KEY,
    wins       INTEGER NOT NULL DEFAULT 0,
    losses     INTEGER NOT NULL DEFAULT 0,
    ties       INTEGER NOT NULL DEFAULT 0,
    total_won  REAL    NOT NULL DEFAULT 0,
    total_lost REAL    NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO confidence_performance (bucket) VALUES ('low'), ('medium'), ('high'), ('very_high');

CREATE TABLE IF NOT EXISTS price_points (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    price REAL    NOT NULL,
    ts    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_ts ON price_points(ts DESC);
`

const dateLayout = "2006-01-02"

// SQLiteStorage implements ports.Store on SQLite (pure Go, no cgo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage opens (or creates) the database at path and applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	// SQLite is single-writer. One connection serializes the read-modify-write
	// transactions of overlapping ticks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullBucket(d domain.Decision) any {
	b := d.Bucket()
	if b == "" {
		return nil
	}
	return string(b)
}
