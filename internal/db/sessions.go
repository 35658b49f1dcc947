package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/stepcount/internal/stepcount"
)

// ErrSessionNotFound is returned by SessionStore.Get for unknown IDs.
var ErrSessionNotFound = errors.New("db: session not found")

// StepSession is a persisted counting session.
type StepSession struct {
	SessionID  string          `json:"session_id"`
	Mode       string          `json:"mode"`
	Source     string          `json:"source"`
	StartedAt  int64           `json:"started_at"`
	EndedAt    *int64          `json:"ended_at,omitempty"`
	StepCount  float64         `json:"step_count"`
	ConfigJSON json.RawMessage `json:"config,omitempty"`
}

// SessionStore provides persistence for counting sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Start records a new session with its configuration.
func (s *SessionStore) Start(sess *stepcount.Session) error {
	cfg, err := json.Marshal(sess.Config())
	if err != nil {
		return fmt.Errorf("marshal session config: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO step_sessions (session_id, mode, source, started_at, step_count, config_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID(), string(sess.Mode()), sess.Source(), sess.StartedAt().UnixNano(), sess.Steps(), string(cfg),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID(), err)
	}
	return nil
}

// Finish stamps the end time and final count.
func (s *SessionStore) Finish(sessionID string, steps float64, endedAt time.Time) error {
	res, err := s.db.Exec(`UPDATE step_sessions SET ended_at = ?, step_count = ? WHERE session_id = ?`,
		endedAt.UnixNano(), steps, sessionID)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// Get returns a single session by ID.
func (s *SessionStore) Get(sessionID string) (*StepSession, error) {
	row := s.db.QueryRow(`
		SELECT session_id, mode, source, started_at, ended_at, step_count, config_json
		FROM step_sessions
		WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// List returns the most recent sessions first. A non-positive limit
// returns every session.
func (s *SessionStore) List(limit int) ([]*StepSession, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT session_id, mode, source, started_at, ended_at, step_count, config_json
		FROM step_sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*StepSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*StepSession, error) {
	var (
		sess    StepSession
		endedAt sql.NullInt64
		cfg     sql.NullString
	)
	if err := row.Scan(&sess.SessionID, &sess.Mode, &sess.Source, &sess.StartedAt, &endedAt, &sess.StepCount, &cfg); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Int64
	}
	if cfg.Valid && cfg.String != "" {
		sess.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &sess, nil
}
