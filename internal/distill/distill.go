package distill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifeharness/internal/llm"
	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

// SignificanceThreshold is the number of trimmed characters a free-text
// answer must exceed before it is worth distilling into a life entry.
const SignificanceThreshold = 20

// CoverageRecorder is how the pipeline reports a new entry's buckets to the
// coverage grid.
type CoverageRecorder interface {
	RecordEntry(ctx context.Context, userID uuid.UUID, timeBucket string, topicBuckets []string) error
}

// Distiller converts raw free text into a structured LifeEntry via the
// model, then feeds the coverage grid. A model failure yields (nil, nil) so
// the caller can degrade gracefully; storage failures are returned as
// errors and must not be absorbed.
type Distiller struct {
	store    storage.Storage
	client   llm.Client
	coverage CoverageRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func New(store storage.Storage, client llm.Client, coverage CoverageRecorder, logger *zap.Logger) *Distiller {
	return &Distiller{
		store:    store,
		client:   client,
		coverage: coverage,
		logger:   logger,
		now:      time.Now,
	}
}

type Request struct {
	UserID     uuid.UUID
	RawText    string
	ThreadID   *uuid.UUID
	QuestionID *uuid.UUID
	Visibility string
	SealType   string
}

func (d *Distiller) FromFreeform(ctx context.Context, req Request) (*models.LifeEntry, error) {
	age := 0
	profile, err := d.store.GetProfile(ctx, req.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil {
		if known, ok := profile.KnownAge(d.now()); ok {
			age = known
		}
	}

	distilled, err := d.client.DistillFreeform(ctx, req.RawText, age)
	if err != nil {
		d.logger.Warn("Distillation failed, skipping life entry",
			zap.Error(err),
			zap.String("user_id", req.UserID.String()))
		return nil, nil
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilitySelf
	}
	sealType := req.SealType
	if sealType == "" {
		sealType = models.SealNone
	}

	entry := &models.LifeEntry{
		UserID:           req.UserID,
		ThreadID:         req.ThreadID,
		SourceQuestionID: req.QuestionID,
		TimeBucket:       distilled.TimeBucket,
		ApproxYearStart:  distilled.ApproxYearStart,
		ApproxYearEnd:    distilled.ApproxYearEnd,
		TimeframeLabel:   TimeframeLabel(distilled.TimeBucket, distilled.ApproxYearStart, distilled.ApproxYearEnd),
		Headline:         distilled.Headline,
		RawText:          req.RawText,
		Distilled:        distilled.Distilled,
		Tags:             distilled.Tags,
		TopicBuckets:     distilled.TopicBuckets,
		Visibility:       visibility,
		SealType:         sealType,
		EmotionalTone:    distilled.EmotionalTone,
		People:           distilled.People,
		Locations:        distilled.Locations,
	}

	if err := d.store.CreateLifeEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create life entry: %w", err)
	}

	if len(entry.TopicBuckets) > 0 {
		if err := d.coverage.RecordEntry(ctx, req.UserID, entry.TimeBucket, entry.TopicBuckets); err != nil {
			return nil, fmt.Errorf("failed to record coverage: %w", err)
		}
	}

	return entry, nil
}

// TimeframeLabel derives the human-readable timeframe: a year range when
// both ends differ, a single year when only the start (or an equal end) is
// known, the bucket name otherwise.
func TimeframeLabel(timeBucket string, yearStart, yearEnd int) string {
	if yearStart == 0 {
		return timeBucket
	}
	if yearEnd != 0 && yearEnd != yearStart {
		return fmt.Sprintf("%d-%d", yearStart, yearEnd)
	}
	return fmt.Sprintf("%d", yearStart)
}
