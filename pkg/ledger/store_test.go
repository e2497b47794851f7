package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const walletA = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), ".data"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".data")

	store, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dir, DBFileName))
	assert.NoError(t, err)
}

func TestOpenTwiceKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(ctx, dir, nil)
	require.NoError(t, err)
	require.True(t, first.Upsert(ctx, walletA, true).OK())
	require.NoError(t, first.Close())

	second, err := Open(ctx, dir, nil)
	require.NoError(t, err)
	defer second.Close()

	rec, err := second.Get(ctx, walletA)
	require.NoError(t, err)
	assert.True(t, rec.HasNFT)
}

func TestUpsertIdempotent(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.True(t, store.Upsert(ctx, walletA, true).OK())
	require.True(t, store.Upsert(ctx, walletA, true).OK())

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, walletA, all[0].Address)
	assert.True(t, all[0].HasNFT)
}

func TestUpsertLastWriteWins(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.True(t, store.Upsert(ctx, walletA, true).OK())
	first, err := store.Get(ctx, walletA)
	require.NoError(t, err)

	require.True(t, store.Upsert(ctx, walletA, false).OK())
	second, err := store.Get(ctx, walletA)
	require.NoError(t, err)

	assert.False(t, second.HasNFT)
	assert.Equal(t, first.ID, second.ID, "update must keep the surrogate id")

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertAssignsIncreasingIDs(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, store.Upsert(ctx, fmt.Sprintf("wallet-%02d-xxxxxxxxxxxxxxxxxxxxxxxxxx", i), i%2 == 0).OK())
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].ID, all[i-1].ID)
	}
	assert.True(t, all[0].HasNFT)
	assert.False(t, all[1].HasNFT)
}

func TestUpsertConcurrentSameAddress(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]UpsertResult, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Upsert(ctx, walletA, i%2 == 0)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.True(t, r.OK(), "upsert %d: %v", i, r.Err)
	}
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetNotFound(t *testing.T) {
	store := openTempStore(t)

	_, err := store.Get(context.Background(), walletA)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertAfterCloseFailsSoft(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store, err := Open(context.Background(), t.TempDir(), zap.New(core))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	result := store.Upsert(context.Background(), walletA, true)
	assert.False(t, result.OK())
	assert.Equal(t, ReasonUnavailable, result.Reason)
	assert.Error(t, result.Err)

	entries := logs.FilterMessage("failed to save wallet").All()
	require.Len(t, entries, 1)
	assert.Equal(t, walletA, entries[0].ContextMap()["address"])
}

func TestUpsertNilStore(t *testing.T) {
	var store *Store
	result := store.Upsert(context.Background(), walletA, true)
	assert.Equal(t, ReasonUnavailable, result.Reason)
}

func TestUpsertCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := store.Upsert(ctx, walletA, true)
	assert.Equal(t, ReasonCanceled, result.Reason)

	_, err := store.Get(context.Background(), walletA)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE x (id INTEGER);\n-- +migrate Down\nDROP TABLE x;\n"
	assert.Equal(t, "\nCREATE TABLE x (id INTEGER);\n", upSection(content))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}

func TestFailureReasonString(t *testing.T) {
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "unavailable", ReasonUnavailable.String())
	assert.Equal(t, "canceled", ReasonCanceled.String())
	assert.Equal(t, "write-failed", ReasonWriteFailed.String())
}
