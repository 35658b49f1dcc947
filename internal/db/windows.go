package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/stepcount"
)

// WindowStore persists per-window results. It is also a stepcount.Sink.
type WindowStore struct {
	db *sql.DB
}

// NewWindowStore creates a new WindowStore.
func NewWindowStore(db *sql.DB) *WindowStore {
	return &WindowStore{db: db}
}

// Insert stores one window result. The session must already exist.
func (s *WindowStore) Insert(r stepcount.WindowResult) error {
	processed := r.ProcessedAt
	if processed.IsZero() {
		processed = time.Now()
	}
	var errText interface{}
	if r.Error != "" {
		errText = r.Error
	}
	_, err := s.db.Exec(`
		INSERT INTO step_windows (
			session_id, window_index, start_index, axis, w0, wc, gate_passed, outcome,
			peak_abscissa, frequency_hz, increment, cumulative, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Index, r.StartIndex, r.Axis.String(), r.W0, r.Wc, r.GatePassed, string(r.Outcome),
		r.PeakAbscissa, r.FrequencyHz, r.Increment, r.Cumulative, errText, processed.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert window %d of %s: %w", r.Index, r.SessionID, err)
	}
	return nil
}

// HandleWindow implements stepcount.Sink. Storage errors are logged.
func (s *WindowStore) HandleWindow(r stepcount.WindowResult) {
	if err := s.Insert(r); err != nil {
		monitoring.Logf("[db] %v", err)
	}
}

// ListBySession returns a session's windows in processing order.
func (s *WindowStore) ListBySession(sessionID string) ([]stepcount.WindowResult, error) {
	rows, err := s.db.Query(`
		SELECT session_id, window_index, start_index, axis, w0, wc, gate_passed, outcome,
		       peak_abscissa, frequency_hz, increment, cumulative, error, created_at
		FROM step_windows
		WHERE session_id = ?
		ORDER BY window_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	var out []stepcount.WindowResult
	for rows.Next() {
		var (
			r       stepcount.WindowResult
			axis    string
			outcome string
			errText sql.NullString
			created int64
		)
		if err := rows.Scan(&r.SessionID, &r.Index, &r.StartIndex, &axis, &r.W0, &r.Wc, &r.GatePassed, &outcome,
			&r.PeakAbscissa, &r.FrequencyHz, &r.Increment, &r.Cumulative, &errText, &created); err != nil {
			return nil, err
		}
		if r.Axis, err = motion.ParseAxis(axis); err != nil {
			return nil, fmt.Errorf("window %d of %s: %w", r.Index, sessionID, err)
		}
		r.Outcome = stepcount.Outcome(outcome)
		r.Error = errText.String
		r.ProcessedAt = time.Unix(0, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ stepcount.Sink = (*WindowStore)(nil)
