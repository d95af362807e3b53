package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

func TestCoverageTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("read zero-fills missing cells", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		tracker := NewCoverageTracker(store)
		userID := uuid.New()

		require.NoError(t, store.PutCoverageCell(ctx, &models.CoverageCell{
			UserID: userID, TimeBucket: "20s", TopicBucket: "friendships", Score: 40,
		}))

		grid, err := tracker.Read(ctx, userID, []string{"20s", "30s"}, []string{"friendships", "work_career"})
		require.NoError(t, err)
		assert.Equal(t, 40, grid["20s"]["friendships"])
		assert.Equal(t, 0, grid["20s"]["work_career"])
		assert.Equal(t, 0, grid["30s"]["friendships"])
		assert.Equal(t, 0, grid["30s"]["work_career"])
	})

	t.Run("read drops cells outside the requested slice", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		tracker := NewCoverageTracker(store)
		userID := uuid.New()

		require.NoError(t, store.PutCoverageCell(ctx, &models.CoverageCell{
			UserID: userID, TimeBucket: "50plus", TopicBucket: "friendships", Score: 90,
		}))

		grid, err := tracker.Read(ctx, userID, []string{"20s"}, []string{"friendships"})
		require.NoError(t, err)
		assert.NotContains(t, grid, "50plus")
	})

	t.Run("record entry applies the default increment", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		tracker := NewCoverageTracker(store)
		userID := uuid.New()

		require.NoError(t, tracker.RecordEntry(ctx, userID, "20s", []string{"friendships", "work_career"}))
		require.NoError(t, tracker.RecordEntry(ctx, userID, "20s", []string{"friendships"}))

		cell, err := store.GetCoverageCell(ctx, userID, "20s", "friendships")
		require.NoError(t, err)
		assert.Equal(t, 20, cell.Score)

		cell, err = store.GetCoverageCell(ctx, userID, "20s", "work_career")
		require.NoError(t, err)
		assert.Equal(t, 10, cell.Score)
	})

	t.Run("score clamps at 100", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		tracker := NewCoverageTracker(store)
		userID := uuid.New()

		require.NoError(t, store.PutCoverageCell(ctx, &models.CoverageCell{
			UserID: userID, TimeBucket: "30s", TopicBucket: "health_body", Score: 90,
		}))
		require.NoError(t, tracker.Record(ctx, userID, "30s", []string{"health_body"}, 50))

		cell, err := store.GetCoverageCell(ctx, userID, "30s", "health_body")
		require.NoError(t, err)
		assert.Equal(t, 100, cell.Score)
	})
}
