// Package history keeps a SQLite log of dialogue sessions and the outcome of
// every turn.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	events "github.com/koscakluka/ema-dialogue/core/events"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	_ "modernc.org/sqlite"
)

const scopeName = "github.com/koscakluka/ema-dialogue/core/history"

var logger = otelslog.NewLogger(scopeName)

var ErrUnknownSession = errors.New("unknown session")

type Store struct {
	db *sql.DB
}

// Turn is a resolved turn as stored.
type Turn struct {
	ID         string
	PromptID   string
	Outcome    string
	Answer     string
	Attempts   int
	Duration   time.Duration
	ResolvedAt time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (id TEXT PRIMARY KEY, mode TEXT, started_at INTEGER, ended_at INTEGER, end_reason TEXT);`,
		`CREATE TABLE IF NOT EXISTS turns (id TEXT PRIMARY KEY, session_id TEXT REFERENCES sessions(id), prompt_id TEXT, outcome TEXT, answer TEXT, attempts INTEGER, duration_ms INTEGER, resolved_at INTEGER);`,
		`CREATE INDEX IF NOT EXISTS turns_session ON turns(session_id, resolved_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// StartSession records a new session and returns its id.
func (s *Store) StartSession(ctx context.Context, mode string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, mode, started_at) VALUES(?,?,?)`,
		id, mode, time.Now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}
	return id, nil
}

// EndSession stores why the session ended. Only the first reason is kept.
func (s *Store) EndSession(ctx context.Context, sessionID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now().UnixMilli(), reason, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
		}
	}
	return nil
}

// EndReason reports why the session ended, empty while it is still running.
func (s *Store) EndReason(ctx context.Context, sessionID string) (string, error) {
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT end_reason FROM sessions WHERE id = ?`, sessionID).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err != nil {
		return "", err
	}
	return reason.String, nil
}

func (s *Store) RecordTurn(ctx context.Context, sessionID string, turn Turn) error {
	if turn.ResolvedAt.IsZero() {
		turn.ResolvedAt = time.Now()
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(id, session_id, prompt_id, outcome, answer, attempts, duration_ms, resolved_at) VALUES(?,?,?,?,?,?,?,?)`,
		turn.ID, sessionID, turn.PromptID, turn.Outcome, turn.Answer, turn.Attempts,
		turn.Duration.Milliseconds(), turn.ResolvedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to record turn %s: %w", turn.ID, err)
	}
	return nil
}

// Turns returns the turns of a session in resolution order.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt_id, outcome, answer, attempts, duration_ms, resolved_at FROM turns WHERE session_id = ? ORDER BY resolved_at, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn       Turn
			durationMs int64
			resolvedAt int64
		)
		if err := rows.Scan(&turn.ID, &turn.PromptID, &turn.Outcome, &turn.Answer, &turn.Attempts, &durationMs, &resolvedAt); err != nil {
			return nil, err
		}
		turn.Duration = time.Duration(durationMs) * time.Millisecond
		turn.ResolvedAt = time.UnixMilli(resolvedAt)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Recorder returns an event callback that stores resolved turns and the end
// of the session. Failures are logged, never returned.
func (s *Store) Recorder(ctx context.Context, sessionID string) func(events.Event) {
	return func(event events.Event) {
		var err error
		switch e := event.(type) {
		case events.TurnResolved:
			err = s.RecordTurn(ctx, sessionID, Turn{
				ID:         e.TurnID,
				PromptID:   e.PromptID,
				Outcome:    e.Outcome,
				Answer:     e.Answer,
				Attempts:   e.Attempts,
				Duration:   e.Duration,
				ResolvedAt: e.Timestamp(),
			})
		case events.SessionCompleted:
			err = s.EndSession(ctx, sessionID, "completed")
		case events.SessionEnded:
			err = s.EndSession(ctx, sessionID, e.Reason)
		}

		if err != nil {
			logger.Warn("failed to record session history", "session", sessionID, "error", err)
		}
	}
}
