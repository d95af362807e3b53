package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

// DefaultCoverageIncrement is added to a coverage cell for every life entry
// that lands in it.
const DefaultCoverageIncrement = 10

const maxCoverageScore = 100

// CoverageTracker maintains the per-user (time, topic) score grid. Cells
// are created lazily; anything never written reads as zero.
type CoverageTracker struct {
	store storage.Storage
}

func NewCoverageTracker(store storage.Storage) *CoverageTracker {
	return &CoverageTracker{store: store}
}

// Read returns a dense matrix for exactly the requested bucket
// combinations, zero-filled where no cell exists.
func (t *CoverageTracker) Read(ctx context.Context, userID uuid.UUID, timeBuckets, topicBuckets []string) (map[string]map[string]int, error) {
	cells, err := t.store.ListCoverage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage: %w", err)
	}

	result := make(map[string]map[string]int, len(timeBuckets))
	for _, timeBucket := range timeBuckets {
		row := make(map[string]int, len(topicBuckets))
		for _, topicBucket := range topicBuckets {
			row[topicBucket] = 0
		}
		result[timeBucket] = row
	}

	for _, cell := range cells {
		if row, ok := result[cell.TimeBucket]; ok {
			if _, ok := row[cell.TopicBucket]; ok {
				row[cell.TopicBucket] = cell.Score
			}
		}
	}

	return result, nil
}

// RecordEntry applies the default increment for one new life entry.
func (t *CoverageTracker) RecordEntry(ctx context.Context, userID uuid.UUID, timeBucket string, topicBuckets []string) error {
	return t.Record(ctx, userID, timeBucket, topicBuckets, DefaultCoverageIncrement)
}

// Record bumps the score of (timeBucket, topic) for every given topic,
// clamping at 100. Read-then-write with no locking; concurrent steps for
// one user can lose an increment, which is acceptable at interview cadence.
func (t *CoverageTracker) Record(ctx context.Context, userID uuid.UUID, timeBucket string, topicBuckets []string, increment int) error {
	for _, topicBucket := range topicBuckets {
		score := 0
		cell, err := t.store.GetCoverageCell(ctx, userID, timeBucket, topicBucket)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to read coverage cell: %w", err)
		}
		if cell != nil {
			score = cell.Score
		}

		score += increment
		if score > maxCoverageScore {
			score = maxCoverageScore
		}

		err = t.store.PutCoverageCell(ctx, &models.CoverageCell{
			UserID:      userID,
			TimeBucket:  timeBucket,
			TopicBucket: topicBucket,
			Score:       score,
		})
		if err != nil {
			return fmt.Errorf("failed to write coverage cell: %w", err)
		}
	}
	return nil
}
