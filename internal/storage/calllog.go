// Package storage keeps the client's call history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Entry is one finished call.
type Entry struct {
	SessionID   string
	Role        string
	Peer        string
	MediaKind   string
	EndReason   string
	StartedAt   time.Time
	ConnectedAt time.Time
	EndedAt     time.Time
}

// Answered reports whether media ever flowed.
func (e Entry) Answered() bool { return !e.ConnectedAt.IsZero() }

// Duration is the connected time, zero for unanswered calls.
func (e Entry) Duration() time.Duration {
	if !e.Answered() || e.EndedAt.Before(e.ConnectedAt) {
		return 0
	}
	return e.EndedAt.Sub(e.ConnectedAt)
}

func EntryFromSnapshot(s call.Snapshot) Entry {
	return Entry{
		SessionID:   s.SessionID,
		Role:        s.Role.String(),
		Peer:        string(s.Peer),
		MediaKind:   string(s.MediaKind),
		EndReason:   string(s.EndReason),
		StartedAt:   s.StartedAt,
		ConnectedAt: s.ConnectedAt,
		EndedAt:     s.EndedAt,
	}
}

type CallLog struct {
	db *sql.DB
}

// Open opens or creates the call log at path. ":memory:" works for tests.
func Open(path string) (*CallLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS calls (
			session_id   TEXT PRIMARY KEY,
			role         TEXT NOT NULL,
			peer         TEXT NOT NULL DEFAULT '',
			media_kind   TEXT NOT NULL DEFAULT '',
			end_reason   TEXT NOT NULL DEFAULT '',
			started_at   INTEGER NOT NULL DEFAULT 0,
			connected_at INTEGER NOT NULL DEFAULT 0,
			ended_at     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS calls_ended_at ON calls (ended_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &CallLog{db: db}, nil
}

func (l *CallLog) Close() error { return l.db.Close() }

// Record stores e, replacing an earlier row for the same session.
func (l *CallLog) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO calls
		(session_id, role, peer, media_kind, end_reason, started_at, connected_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			role=excluded.role,
			peer=excluded.peer,
			media_kind=excluded.media_kind,
			end_reason=excluded.end_reason,
			started_at=excluded.started_at,
			connected_at=excluded.connected_at,
			ended_at=excluded.ended_at`,
		e.SessionID, e.Role, e.Peer, e.MediaKind, e.EndReason,
		toMillis(e.StartedAt), toMillis(e.ConnectedAt), toMillis(e.EndedAt))
	return err
}

// Recent returns up to limit calls, newest first.
func (l *CallLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `SELECT session_id, role, peer, media_kind, end_reason,
		started_at, connected_at, ended_at
		FROM calls ORDER BY ended_at DESC, started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, connected, ended int64
		if err := rows.Scan(&e.SessionID, &e.Role, &e.Peer, &e.MediaKind, &e.EndReason,
			&started, &connected, &ended); err != nil {
			return nil, err
		}
		e.StartedAt = fromMillis(started)
		e.ConnectedAt = fromMillis(connected)
		e.EndedAt = fromMillis(ended)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recorder returns a call.Manager listener that stores ended sessions.
func (l *CallLog) Recorder() func(call.Snapshot) {
	return func(s call.Snapshot) {
		if s.State != call.StateEnded {
			return
		}
		if err := l.Record(context.Background(), EntryFromSnapshot(s)); err != nil {
			log.Error().Err(err).Str("module", "storage").Str("session", s.SessionID).Msg("record call")
		}
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
