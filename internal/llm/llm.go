package llm

import (
	"context"
	"encoding/json"

	"lifeharness/internal/models"
)

// Client is the external text-generation collaborator. Every call either
// returns a well-formed result or an error; malformed model output is
// reported as an error, never as a partial result.
type Client interface {
	GenerateQuestion(ctx context.Context, req QuestionRequest) (*GeneratedQuestion, error)
	DistillFreeform(ctx context.Context, rawText string, userAge int) (*DistilledEntry, error)
	GenerateAutobiography(ctx context.Context, req AutobiographyRequest) (*AutobiographyDraft, error)
}

// ProfileSummary is the slice of the user's profile shared with the model.
// Age zero means unknown.
type ProfileSummary struct {
	Age         int      `json:"age,omitempty"`
	HasChildren bool     `json:"has_children"`
	AvoidTopics []string `json:"avoid_topics"`
	Intensity   string   `json:"intensity"`
}

type QA struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

type FreeformNote struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Persona is a named stylistic profile flavoring generated questions.
type Persona struct {
	Name                 string   `json:"name"`
	Voice                string   `json:"voice"`
	ProbingStyle         string   `json:"probing_style"`
	PreferredTopicAngles []string `json:"preferred_topic_angles"`
	PreferredTimeAngles  []string `json:"preferred_time_angles"`
}

type TargetFocus struct {
	TimeBucket  string `json:"time_bucket"`
	TopicBucket string `json:"topic_bucket"`
	Score       int    `json:"score"`
}

// ContextDigest is the bounded continuity summary built from recent life
// entries and thread freeforms.
type ContextDigest struct {
	TimeTopicSummaries []TimeTopicSummary `json:"time_topic_summaries"`
	RecentFreeforms    []DigestFreeform   `json:"recent_freeforms"`
}

type TimeTopicSummary struct {
	TimeBucket string      `json:"time_bucket"`
	Topic      string      `json:"topic"`
	Highlights []Highlight `json:"highlights"`
}

type Highlight struct {
	Headline  string   `json:"headline"`
	Timeframe string   `json:"timeframe"`
	Summary   string   `json:"summary"`
	Tone      string   `json:"tone,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type DigestFreeform struct {
	Index         int      `json:"index"`
	Text          string   `json:"text"`
	AssumedTime   []string `json:"assumed_time"`
	AssumedTopics []string `json:"assumed_topics"`
}

type QuestionRequest struct {
	ThreadRoot          string                    `json:"thread_root"`
	Profile             ProfileSummary            `json:"profile"`
	ThreadFreeforms     []FreeformNote            `json:"thread_freeforms"`
	RecentQA            []QA                      `json:"recent_qa"`
	CoverageSlice       map[string]map[string]int `json:"coverage_slice"`
	ContextDigest       *ContextDigest            `json:"context_digest,omitempty"`
	AllowedTimeBuckets  []string                  `json:"allowed_time_buckets"`
	AllowedTopicBuckets []string                  `json:"allowed_topic_buckets"`
	Persona             *Persona                  `json:"persona,omitempty"`
	TargetFocus         *TargetFocus              `json:"target_focus,omitempty"`
}

// GeneratedQuestion is the model's proposal for the next question. Focus
// fields tolerate both a single string and a list in the raw JSON.
type GeneratedQuestion struct {
	Type       string                  `json:"type"`
	Text       string                  `json:"text"`
	Options    []models.QuestionOption `json:"options,omitempty"`
	TimeFocus  StringList              `json:"time_focus"`
	TopicFocus StringList              `json:"topic_focus"`
}

type DistilledEntry struct {
	Headline        string     `json:"headline"`
	Distilled       string     `json:"distilled"`
	TimeBucket      string     `json:"time_bucket"`
	ApproxYearStart int        `json:"approx_year_start"`
	ApproxYearEnd   int        `json:"approx_year_end"`
	TopicBuckets    StringList `json:"topic_buckets"`
	Tags            StringList `json:"tags"`
	EmotionalTone   string     `json:"emotional_tone"`
	People          StringList `json:"people"`
	Locations       StringList `json:"locations"`
}

type AutobiographyProfile struct {
	Age          int    `json:"age,omitempty"`
	Country      string `json:"country,omitempty"`
	LifeSnapshot string `json:"life_snapshot,omitempty"`
}

type AutobiographyEntry struct {
	Headline      string   `json:"headline"`
	Distilled     string   `json:"distilled"`
	RawText       string   `json:"raw_text"`
	Timeframe     string   `json:"timeframe"`
	Topics        []string `json:"topics,omitempty"`
	EmotionalTone string   `json:"emotional_tone,omitempty"`
}

type AutobiographyRequest struct {
	Profile  AutobiographyProfile            `json:"profile"`
	Entries  map[string][]AutobiographyEntry `json:"entries"`
	Tone     string                          `json:"tone"`
	Audience string                          `json:"audience"`
}

type Chapter struct {
	Chapter  int      `json:"chapter"`
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

type AutobiographyDraft struct {
	Outline  []Chapter `json:"outline"`
	Markdown string    `json:"markdown"`
}

// StringList accepts either "x" or ["x","y"] from the model.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = StringList(list)
	return nil
}
