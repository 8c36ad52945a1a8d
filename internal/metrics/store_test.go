package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-order-assistant/internal/database"
	"meal-order-assistant/internal/llm"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestRecordAndDailyUsage(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, ExecutionMetric{
		Model: "gemini-1.5-flash", PromptTokens: 100, CompletionTokens: 40, LatencyMS: 850,
	}))
	require.NoError(t, store.Record(ctx, ExecutionMetric{
		Model: "gemini-1.5-flash", PromptTokens: 50, CompletionTokens: 10, LatencyMS: 400,
	}))

	usage, err := store.GetDailyUsage(ctx, 7)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 150, usage[0].TotalPrompt)
	assert.Equal(t, 50, usage[0].TotalCompletion)
	assert.Equal(t, 2, usage[0].TotalExecution)
}

func TestRecordMetaSkipsEmptyUsage(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordMeta(ctx, llm.CallMeta{Latency: time.Second}))

	usage, err := store.GetDailyUsage(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestCleanup(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, ExecutionMetric{
		Model: "m", PromptTokens: 1, CompletionTokens: 1,
		Timestamp: time.Now().AddDate(0, 0, -60).UTC(),
	}))
	require.NoError(t, store.Record(ctx, ExecutionMetric{
		Model: "m", PromptTokens: 1, CompletionTokens: 1,
	}))

	removed, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
