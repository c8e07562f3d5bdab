package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
	"github.com/AgnieszkaZaba/devops-tests/pkg/store/migrations"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.RunMigrations(ctx, migrations.All()))
	return s
}

func TestCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fileHash, configHash, err := s.CacheGet(ctx, "badges", "examples/demo.ipynb")
	require.NoError(t, err)
	assert.Empty(t, fileHash)
	assert.Empty(t, configHash)

	err = s.CachePut(ctx, "badges", "examples/demo.ipynb", "abc123", "cfg456")
	require.NoError(t, err)

	fileHash, configHash, err = s.CacheGet(ctx, "badges", "examples/demo.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "abc123", fileHash)
	assert.Equal(t, "cfg456", configHash)
}

func TestCachePut_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CachePut(ctx, "badges", "demo.ipynb", "old", "cfg"))
	require.NoError(t, s.CachePut(ctx, "badges", "demo.ipynb", "new", "cfg2"))

	fileHash, configHash, err := s.CacheGet(ctx, "badges", "demo.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "new", fileHash)
	assert.Equal(t, "cfg2", configHash)
}

func TestCacheKeyedByHookAndFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CachePut(ctx, "badges", "a.ipynb", "ha", "cfg"))
	require.NoError(t, s.CachePut(ctx, "outputs", "a.ipynb", "hb", "cfg"))
	require.NoError(t, s.CachePut(ctx, "badges", "b.ipynb", "hc", "cfg"))

	fileHash, _, err := s.CacheGet(ctx, "badges", "a.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "ha", fileHash)

	fileHash, _, err = s.CacheGet(ctx, "outputs", "a.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "hb", fileHash)
}

func TestCacheInvalidate_SingleHook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CachePut(ctx, "badges", "a.ipynb", "ha", "cfg"))
	require.NoError(t, s.CachePut(ctx, "outputs", "a.ipynb", "hb", "cfg"))

	require.NoError(t, s.CacheInvalidate(ctx, "badges"))

	fileHash, _, err := s.CacheGet(ctx, "badges", "a.ipynb")
	require.NoError(t, err)
	assert.Empty(t, fileHash)

	fileHash, _, err = s.CacheGet(ctx, "outputs", "a.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "hb", fileHash)
}

func TestCacheInvalidate_All(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CachePut(ctx, "badges", "a.ipynb", "ha", "cfg"))
	require.NoError(t, s.CachePut(ctx, "outputs", "b.ipynb", "hb", "cfg"))

	require.NoError(t, s.CacheInvalidate(ctx, ""))

	fileHash, _, err := s.CacheGet(ctx, "badges", "a.ipynb")
	require.NoError(t, err)
	assert.Empty(t, fileHash)

	fileHash, _, err = s.CacheGet(ctx, "outputs", "b.ipynb")
	require.NoError(t, err)
	assert.Empty(t, fileHash)
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	run := store.WorkflowRun{
		ID:         "run-1",
		Event:      "push",
		Status:     "success",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Report:     `{"id":"run-1","status":"success"}`,
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "push", got.Event)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, run.Report, got.Report)
	assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Second)
	assert.WithinDuration(t, run.FinishedAt, got.FinishedAt, time.Second)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow run not found: nope")
}

func TestSaveRun_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	run := store.WorkflowRun{
		ID: "run-1", Event: "push", Status: "running",
		StartedAt: now, FinishedAt: now, Report: "{}",
	}
	require.NoError(t, s.SaveRun(ctx, run))

	run.Status = "failure"
	require.NoError(t, s.SaveRun(ctx, run))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failure", runs[0].Status)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := store.WorkflowRun{
			ID:         id,
			Event:      "schedule",
			Status:     "success",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Report:     "{}",
		}
		require.NoError(t, s.SaveRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-a", runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}
