package models

import (
	"time"

	"github.com/google/uuid"
)

// Thread is one named interview line. It is never closed; a stop control
// just ends the client session. The two counters only move forward, except
// that QuestionsSinceLastFreeform resets to zero on every freeform
// injection.
type Thread struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Title      string    `json:"title"`
	RootPrompt string    `json:"root_prompt"`
	Persona    string    `json:"persona"`

	TimeFocus  []string `json:"time_focus,omitempty"`
	TopicFocus []string `json:"topic_focus,omitempty"`

	QuestionsAsked             int `json:"questions_asked"`
	QuestionsSinceLastFreeform int `json:"questions_since_last_freeform"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ThreadFreeform is a free-text note captured inside a thread, kept as
// continuity context for later questions.
type ThreadFreeform struct {
	ID            uuid.UUID `json:"id"`
	ThreadID      uuid.UUID `json:"thread_id"`
	IndexInThread int       `json:"index_in_thread"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}
