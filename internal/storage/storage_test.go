package storage

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "mediatrack/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.Error(t, err)
}

func TestFileStoreHistoryAndDedup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "mediatrack.db")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, st.AppendToast(ctx, ToastRecord{ID: 1, Severity: "info", Text: "width: 480px"}))
	require.NoError(t, st.AppendToast(ctx, ToastRecord{ID: 2, Severity: "info", Text: "width: 640px"}))

	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, st.PutDedup(ctx, "k", until))
	got, ok, err := st.GetDedup(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, until.Equal(got))

	require.NoError(t, st.PutDedup(ctx, "expired", time.Now().Add(-time.Hour)))
	require.NoError(t, st.Close())

	f, err := os.Open(filepath.Join(filepath.Dir(path), "mediatrack.toasts.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var texts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r ToastRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		texts = append(texts, r.Text)
	}
	assert.Equal(t, []string{"width: 480px", "width: 640px"}, texts)

	// Dedup survives a reopen; expired entries do not.
	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, ok, err = st.GetDedup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = st.GetDedup(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRequiresPath(t *testing.T) {
	_, err := Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mediatrack.sqlite")

	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.AppendToast(ctx, ToastRecord{Session: "s1", ID: 7, Severity: "warning", Text: "a"}))
	require.NoError(t, st.AppendToast(ctx, ToastRecord{ID: 8, Severity: "info", Text: "b"}))

	recent, err := st.(*sqliteStore).RecentToasts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Text)
	assert.Equal(t, uint64(7), recent[1].ID)
	assert.Equal(t, "warning", recent[1].Severity)
	assert.Equal(t, "s1", recent[1].Session)
	assert.Empty(t, recent[0].Session)

	until := time.Now().Add(time.Minute)
	require.NoError(t, st.PutDedup(ctx, "k", until))
	require.NoError(t, st.PutDedup(ctx, "k", until.Add(time.Minute)))
	got, ok, err := st.GetDedup(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, until.Add(time.Minute).UnixMilli(), got.UnixMilli())

	_, ok, err = st.GetDedup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteUpgradesToastsWithoutSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE toasts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		toast_id INTEGER NOT NULL,
		severity TEXT NOT NULL,
		text TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO toasts(at, toast_id, severity, text) VALUES('2026-01-01T00:00:00Z', 1, 'info', 'old')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.AppendToast(ctx, ToastRecord{Session: "new", ID: 1, Severity: "info", Text: "fresh"}))
	recent, err := st.(*sqliteStore).RecentToasts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].Session)
	assert.Equal(t, "old", recent[1].Text)
	assert.Empty(t, recent[1].Session)
}
