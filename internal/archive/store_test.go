package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session := &Session{
		SourcePath:       "/data/Delta4_results_1.csv",
		Template:         "Delta4",
		ChartingVariable: "Gamma-Index",
		Observations:     42,
		Variables:        3,
		Fingerprint:      "abc123",
	}
	require.NoError(t, store.Record(ctx, session))

	// ID and timestamp are filled in on insert
	assert.NotEmpty(t, session.ID.String())
	assert.False(t, session.ImportedAt.IsZero())

	sessions, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Delta4", sessions[0].Template)
	assert.Equal(t, 42, sessions[0].Observations)
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		require.NoError(t, store.Record(ctx, &Session{
			SourcePath:       name,
			Template:         "Delta4",
			ChartingVariable: "Gamma-Index",
			Fingerprint:      name,
			ImportedAt:       base.Add(time.Duration(i) * time.Hour),
		}))
	}

	sessions, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].SourcePath)
	assert.Equal(t, "mid", sessions[1].SourcePath)
}

func TestListEmpty(t *testing.T) {
	store := openTestStore(t)
	sessions, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), &Session{
		SourcePath: "a", Template: "Delta4", ChartingVariable: "Dev", Fingerprint: "f",
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	sessions, err := reopened.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
