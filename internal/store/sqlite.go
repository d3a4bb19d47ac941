package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dialoq/hotline/internal/domain"
)

// SQLiteStore persists the roster and call history in a single SQLite file.
// Timestamps are stored as unix seconds to stay driver-agnostic.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
// A fresh database gets the demo roster.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for better concurrency between REST reads and router writes.
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS parties (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			avatar      TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'offline',
			operator    INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS calls (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			caller_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			status      TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			ended_at    INTEGER,
			duration    INTEGER
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed roster: %w", err)
	}
	log.Info().Str("module", "store.sqlite").Str("path", path).Msg("sqlite store ready")
	return s, nil
}

func (s *SQLiteStore) seed() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM parties`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	now := time.Now().Unix()
	for _, sp := range seedRoster {
		if _, err := s.db.Exec(
			`INSERT INTO parties (customer_id, name, avatar, status, operator, created_at)
			 VALUES (?, ?, ?, 'offline', ?, ?)`,
			string(sp.customerID), sp.name, sp.avatar, sp.operator, now,
		); err != nil {
			return err
		}
	}
	return nil
}

const partyCols = `id, customer_id, name, avatar, status, operator, created_at`

func scanParty(row interface{ Scan(...any) error }) (*domain.Party, error) {
	var p domain.Party
	var operator int
	var created int64
	if err := row.Scan(&p.ID, &p.CustomerID, &p.Name, &p.Avatar, &p.Status, &operator, &created); err != nil {
		return nil, err
	}
	p.Operator = operator != 0
	p.CreatedAt = time.Unix(created, 0)
	return &p, nil
}

func (s *SQLiteStore) FindParty(ctx context.Context, id domain.CustomerID) (*domain.Party, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+partyCols+` FROM parties WHERE customer_id = ?`, string(id))
	p, err := scanParty(row)
	if err == sql.ErrNoRows {
		return nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find party: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) CreateParty(ctx context.Context, p *domain.Party) (*domain.Party, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO parties (customer_id, name, avatar, status, operator, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(p.CustomerID), p.Name, p.Avatar, string(p.Status), p.Operator, p.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("create party: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create party id: %w", err)
	}
	cp := *p
	cp.ID = int(id)
	return &cp, nil
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id domain.CustomerID, status domain.Status) (*domain.Party, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE parties SET status = ? WHERE customer_id = ?`, string(status), string(id))
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrPartyNotFound
	}
	return s.FindParty(ctx, id)
}

func (s *SQLiteStore) list(ctx context.Context, where string, args ...any) ([]*domain.Party, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+partyCols+` FROM parties `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()
	out := make([]*domain.Party, 0)
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListParties(ctx context.Context) ([]*domain.Party, error) {
	return s.list(ctx, ``)
}

func (s *SQLiteStore) ListOperators(ctx context.Context) ([]*domain.Party, error) {
	return s.list(ctx, `WHERE operator = 1`)
}

func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]*domain.Party, error) {
	return s.list(ctx, `WHERE operator = 0`)
}

const callCols = `id, caller_id, receiver_id, status, started_at, ended_at, duration`

func scanCall(row interface{ Scan(...any) error }) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	var started int64
	var endedAt, duration sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.CallerID, &rec.ReceiverID, &rec.Status, &started, &endedAt, &duration); err != nil {
		return nil, err
	}
	rec.StartedAt = time.Unix(started, 0)
	if endedAt.Valid {
		t := time.Unix(endedAt.Int64, 0)
		rec.EndedAt = &t
	}
	if duration.Valid {
		rec.Duration = int(duration.Int64)
	}
	return &rec, nil
}

func (s *SQLiteStore) CreateCall(ctx context.Context, caller, receiver domain.CustomerID, status domain.CallStatus) (*domain.CallRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (caller_id, receiver_id, status, started_at) VALUES (?, ?, ?, ?)`,
		string(caller), string(receiver), string(status), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create call id: %w", err)
	}
	return s.GetCall(ctx, int(id))
}

func (s *SQLiteStore) GetCall(ctx context.Context, id int) (*domain.CallRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+callCols+` FROM calls WHERE id = ?`, id)
	rec, err := scanCall(row)
	if err == sql.ErrNoRows {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) UpdateCall(ctx context.Context, id int, status domain.CallStatus, endedAt *time.Time, duration int) (*domain.CallRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	var ended any
	if endedAt != nil {
		ended = endedAt.Unix()
	}
	var dur any
	if duration > 0 {
		dur = duration
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE calls SET status = ?,
			ended_at = COALESCE(?, ended_at),
			duration = COALESCE(?, duration)
		 WHERE id = ?`, string(status), ended, dur, id)
	if err != nil {
		return nil, fmt.Errorf("update call: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCallNotFound
	}
	return s.GetCall(ctx, id)
}

func (s *SQLiteStore) ListCallsForParty(ctx context.Context, id domain.CustomerID) ([]*domain.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+callCols+` FROM calls WHERE caller_id = ? OR receiver_id = ? ORDER BY id`,
		string(id), string(id))
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()
	out := make([]*domain.CallRecord, 0)
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ActiveCallForParty(ctx context.Context, id domain.CustomerID) (*domain.CallRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+callCols+` FROM calls
		 WHERE (caller_id = ? OR receiver_id = ?)
		   AND status IN ('initiated', 'ringing', 'connected')
		 ORDER BY id DESC LIMIT 1`, string(id), string(id))
	rec, err := scanCall(row)
	if err == sql.ErrNoRows {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active call: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
