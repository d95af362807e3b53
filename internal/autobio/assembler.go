package autobio

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
	"lifeharness/internal/visibility"
)

const (
	ScopeFull      = "full"
	ScopeTimeRange = "time_range"
)

// Scope restricts which entries feed the autobiography. FromYear/ToYear
// only apply to the time_range type; zero means that end is open.
type Scope struct {
	Type     string `json:"type"`
	FromYear int    `json:"from,omitempty"`
	ToYear   int    `json:"to,omitempty"`
}

type Request struct {
	UserID   uuid.UUID
	Audience string
	AsOf     time.Time
	Scope    Scope
	Tone     string
}

// Assembler filters a user's entries through the visibility evaluator,
// groups the survivors by life stage and asks the model for an outline and
// narrative. A model failure yields a placeholder draft, never an error.
type Assembler struct {
	store  storage.Storage
	client llm.Client
	logger *zap.Logger
	now    func() time.Time
}

func New(store storage.Storage, client llm.Client, logger *zap.Logger) *Assembler {
	return &Assembler{
		store:  store,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (a *Assembler) Generate(ctx context.Context, req Request) (*llm.AutobiographyDraft, error) {
	profile, err := a.store.GetProfile(ctx, req.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	entries, err := a.store.ListLifeEntriesByYear(ctx, req.UserID, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load life entries: %w", err)
	}

	grouped := make(map[string][]llm.AutobiographyEntry)
	for _, entry := range entries {
		if !inScope(entry, req.Scope) {
			continue
		}
		if !visibility.Visible(entry, req.Audience, req.AsOf) {
			continue
		}
		grouped[entry.TimeBucket] = append(grouped[entry.TimeBucket], llm.AutobiographyEntry{
			Headline:      entry.Headline,
			Distilled:     entry.Distilled,
			RawText:       entry.RawText,
			Timeframe:     entry.TimeframeLabel,
			Topics:        entry.TopicBuckets,
			EmotionalTone: entry.EmotionalTone,
		})
	}

	summary := llm.AutobiographyProfile{}
	if profile != nil {
		summary.Country = profile.Country
		summary.LifeSnapshot = profile.LifeSnapshot
		if age, known := profile.KnownAge(a.now()); known {
			summary.Age = age
		}
	}

	draft, err := a.client.GenerateAutobiography(ctx, llm.AutobiographyRequest{
		Profile:  summary,
		Entries:  grouped,
		Tone:     req.Tone,
		Audience: req.Audience,
	})
	if err != nil {
		a.logger.Warn("Autobiography synthesis failed, returning placeholder",
			zap.Error(err),
			zap.String("user_id", req.UserID.String()))
		return placeholderDraft(), nil
	}

	return draft, nil
}

// inScope keeps an entry when either end of its year range satisfies each
// requested bound. Unknown years (zero) never satisfy a bound, so undated
// entries only survive a full scope.
func inScope(entry *models.LifeEntry, scope Scope) bool {
	if scope.Type != ScopeTimeRange {
		return true
	}
	start, end := entry.ApproxYearStart, entry.ApproxYearEnd
	if scope.FromYear != 0 {
		if !(start != 0 && start >= scope.FromYear) && !(end != 0 && end >= scope.FromYear) {
			return false
		}
	}
	if scope.ToYear != 0 {
		if !(start != 0 && start <= scope.ToYear) && !(end != 0 && end <= scope.ToYear) {
			return false
		}
	}
	return true
}

func placeholderDraft() *llm.AutobiographyDraft {
	return &llm.AutobiographyDraft{
		Outline: []llm.Chapter{
			{Chapter: 1, Title: "My Life", Sections: []string{}},
		},
		Markdown: "# My Life\n\nAutobiography generation failed.",
	}
}
