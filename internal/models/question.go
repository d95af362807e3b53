package models

import (
	"time"

	"github.com/google/uuid"
)

type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is immutable once created. TimeFocus/TopicFocus record which
// buckets the question targets; they feed coverage scoring and the
// recently-asked window of the target selector.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ThreadID      uuid.UUID    `json:"thread_id"`
	IndexInThread int          `json:"index_in_thread"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`

	Options    []QuestionOption `json:"options,omitempty"`
	TimeFocus  []string         `json:"time_focus,omitempty"`
	TopicFocus []string         `json:"topic_focus,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Answer holds either a selected choice or free text, and a back-reference
// to the life entry it produced, if distillation happened.
type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	UserID     uuid.UUID `json:"user_id"`
	ChoiceID   string    `json:"choice_id,omitempty"`
	FreeText   string    `json:"free_text,omitempty"`

	LinkedEntryID *uuid.UUID `json:"linked_entry_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
