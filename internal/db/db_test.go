package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/stepcount"
	"github.com/banshee-data/stepcount/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSession(t *testing.T, start time.Time) *stepcount.Session {
	t.Helper()
	s, err := stepcount.NewSession(stepcount.DefaultConfig(), stepcount.ModeBatch, "walk.csv", timeutil.NewMockClock(start))
	require.NoError(t, err)
	return s
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(Migrations()))

	require.NoError(t, db.MigrateDown(Migrations()))
	version, _, err = db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='step_windows'`).Scan(&n))
	assert.Zero(t, n)
}

func TestMigrateVersion_Fresh(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	src := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE t1;")},
	}
	version, dirty, err := db.MigrateVersion(src)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestSessionStore(t *testing.T) {
	db := newTestDB(t)
	store := NewSessionStore(db.DB)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := newTestSession(t, t0)
	second := newTestSession(t, t0.Add(time.Hour))
	require.NoError(t, store.Start(first))
	require.NoError(t, store.Start(second))
	assert.Error(t, store.Start(first), "duplicate session id")

	got, err := store.Get(first.ID())
	require.NoError(t, err)
	assert.Equal(t, "batch", got.Mode)
	assert.Equal(t, "walk.csv", got.Source)
	assert.Equal(t, t0.UnixNano(), got.StartedAt)
	assert.Nil(t, got.EndedAt)
	assert.Contains(t, string(got.ConfigJSON), `"WindowSize":320`)

	end := t0.Add(10 * time.Minute)
	require.NoError(t, store.Finish(first.ID(), 42.5, end))
	got, err = store.Get(first.ID())
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, end.UnixNano(), *got.EndedAt)
	assert.Equal(t, 42.5, got.StepCount)

	list, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID(), list[0].SessionID)

	list, err = store.List(1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Finish("missing", 1, end), ErrSessionNotFound)
}

func TestWindowStore(t *testing.T) {
	db := newTestDB(t)
	sess := newTestSession(t, time.Unix(100, 0))
	require.NoError(t, NewSessionStore(db.DB).Start(sess))
	store := NewWindowStore(db.DB)

	at := time.Unix(200, 0)
	counted := stepcount.WindowResult{
		SessionID: sess.ID(), Index: 0, StartIndex: 0, Axis: motion.AxisY,
		W0: 0.1, Wc: 32, GatePassed: true, Outcome: stepcount.OutcomeCounted,
		PeakAbscissa: 3, FrequencyHz: 1.25, Increment: 1.5625, Cumulative: 1.5625,
		ProcessedAt: at,
	}
	failed := stepcount.WindowResult{
		SessionID: sess.ID(), Index: 1, StartIndex: 125, Axis: motion.AxisZ,
		Outcome: stepcount.OutcomeFailed, Error: "singular", Cumulative: 1.5625,
		ProcessedAt: at,
	}
	require.NoError(t, store.Insert(failed))
	store.HandleWindow(counted)

	got, err := store.ListBySession(sess.ID())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, counted, got[0])
	assert.Equal(t, failed, got[1])

	// Unknown sessions are rejected by the foreign key.
	orphan := counted
	orphan.SessionID = "nope"
	assert.Error(t, store.Insert(orphan))

	none, err := store.ListBySession("nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}
