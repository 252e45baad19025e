package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famarks/logscope/pkg/process"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	r := &Report{
		ID:        "job-1",
		Target:    "target.log",
		Baseline:  "baseline.log",
		LineCount: 42,
		ByteCount: 1024,
		Anomalies: []process.AnomalyContext{
			{
				Before: []string{"a"},
				Anomaly: process.Anomaly{
					Distance: 0.9,
					Pos:      3,
					Line:     "boom",
				},
				After: []string{"b"},
			},
		},
	}

	require.NoError(t, store.Put(r))

	got, ok, err := store.Get("job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.Target, got.Target)
	require.Len(t, got.Anomalies, 1)
	assert.Equal(t, "boom", got.Anomalies[0].Anomaly.Line)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get("nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListReturnsAllIDs(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(&Report{ID: id}))
	}

	ids, err := store.List()
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}
