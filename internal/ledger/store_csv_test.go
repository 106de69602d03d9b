package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []Record {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{IsGroup: false, Timestamp: base, Prompt: "a red bicycle", Size: 256, Identity: HashUser(1)},
		{IsGroup: true, Timestamp: base.Add(2 * time.Minute), Prompt: "comma, \"quoted\" prompt", Size: 256, Identity: HashUser(2)},
		{IsGroup: false, Timestamp: base.Add(5 * time.Minute), Prompt: "multi word prompt", Size: 512, Identity: HashUser(1)},
	}
}

func TestCSVStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.csv")
	store, err := NewCSVStore(path)
	require.NoError(t, err)

	records := testRecords()
	for i := range records {
		err := store.Append(context.Background(), records[i], records[:i+1])
		require.NoError(t, err)
	}

	// Reload through a fresh store, as a restart would
	reopened, err := NewCSVStore(path)
	require.NoError(t, err)
	loaded, err := reopened.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, loaded, len(records))
	for i, rec := range records {
		assert.Equal(t, rec, loaded[i], "record %d", i)
	}
}

func TestCSVStore_HeaderWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.csv")
	store, err := NewCSVStore(path)
	require.NoError(t, err)

	records := testRecords()[:1]
	require.NoError(t, store.Append(context.Background(), records[0], records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "is_group,timestamp,prompt,size,identity\n"))
}

func TestCSVStore_MissingFileStartsEmpty(t *testing.T) {
	store, err := NewCSVStore(filepath.Join(t.TempDir(), "nope", "usage.csv"))
	require.NoError(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCSVStore_CorruptFileStartsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "this is not\na csv \"file"},
		{"bad timestamp", "is_group,timestamp,prompt,size,identity\nfalse,yesterday,p,256,1\n"},
		{"wrong column count", "is_group,timestamp,prompt,size,identity\nfalse,2024-06-01T12:00:00Z,p\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "usage.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			store, err := NewCSVStore(path)
			require.NoError(t, err)

			loaded, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestCSVStore_FullRewritePreservesAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.csv")
	store, err := NewCSVStore(path)
	require.NoError(t, err)

	records := testRecords()
	// Only the final Append matters: the file is rewritten in full each time
	require.NoError(t, store.Append(context.Background(), records[len(records)-1], records))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, len(records))
}

func TestCSVStore_LedgerIntegration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.csv")
	store, err := NewCSVStore(path)
	require.NoError(t, err)

	l, err := New(context.Background(), store)
	require.NoError(t, err)

	identity := HashUser(42)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Append(context.Background(), Record{
		Identity: identity, Timestamp: now, Prompt: "a red bicycle", Size: 256,
	}))
	require.NoError(t, l.Close())

	// Restart survives: the gap is measured against the persisted record
	reopened, err := NewCSVStore(path)
	require.NoError(t, err)
	l2, err := New(context.Background(), reopened)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, l2.TimeSinceLast(identity, now.Add(30*time.Second)))
	assert.Equal(t, 1, l2.CountSince(identity, now.Add(-time.Hour)))
}
