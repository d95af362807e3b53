package models

import (
	"time"

	"github.com/google/uuid"
)

// LifeEntry is the durable memory record produced by distillation. Only the
// seal/visibility fields change after creation; the distilled content never
// does. Zero ApproxYearStart/End mean the year is unknown.
type LifeEntry struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	ThreadID         *uuid.UUID `json:"thread_id,omitempty"`
	SourceQuestionID *uuid.UUID `json:"source_question_id,omitempty"`

	TimeBucket      string `json:"time_bucket"`
	ApproxYearStart int    `json:"approx_year_start,omitempty"`
	ApproxYearEnd   int    `json:"approx_year_end,omitempty"`
	TimeframeLabel  string `json:"timeframe_label"`

	Headline  string `json:"headline"`
	RawText   string `json:"raw_text"`
	Distilled string `json:"distilled"`

	Tags         []string `json:"tags,omitempty"`
	TopicBuckets []string `json:"topic_buckets,omitempty"`

	Visibility string `json:"visibility"`

	SealType             string    `json:"seal_type"`
	SealReleaseAt        time.Time `json:"seal_release_at,omitempty"`
	SealEventKey         string    `json:"seal_event_key,omitempty"`
	SealAudiencesBlocked []string  `json:"seal_audiences_blocked,omitempty"`

	EmotionalTone string   `json:"emotional_tone,omitempty"`
	People        []string `json:"people,omitempty"`
	Locations     []string `json:"locations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CoverageCell is one cell of the sparse coverage grid. Cells that were
// never written count as score zero.
type CoverageCell struct {
	UserID      uuid.UUID `json:"user_id"`
	TimeBucket  string    `json:"time_bucket"`
	TopicBucket string    `json:"topic_bucket"`
	Score       int       `json:"score"`
}
