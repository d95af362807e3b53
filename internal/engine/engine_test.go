package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifeharness/internal/distill"
	"lifeharness/internal/llm"
	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

type stubClient struct {
	generate      func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error)
	distillFn     func(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error)
	autobiography func(ctx context.Context, req llm.AutobiographyRequest) (*llm.AutobiographyDraft, error)
}

func (c *stubClient) GenerateQuestion(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
	if c.generate == nil {
		return nil, errors.New("no generate stub")
	}
	return c.generate(ctx, req)
}

func (c *stubClient) DistillFreeform(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error) {
	if c.distillFn == nil {
		return nil, errors.New("no distill stub")
	}
	return c.distillFn(ctx, rawText, userAge)
}

func (c *stubClient) GenerateAutobiography(ctx context.Context, req llm.AutobiographyRequest) (*llm.AutobiographyDraft, error) {
	if c.autobiography == nil {
		return nil, errors.New("no autobiography stub")
	}
	return c.autobiography(ctx, req)
}

// scriptedRand always returns the same value, capped at n-1.
type scriptedRand struct{ value int }

func (r scriptedRand) Intn(n int) int {
	if r.value >= n {
		return n - 1
	}
	return r.value
}

type harness struct {
	store  *storage.MemoryStorage
	client *stubClient
	engine *Engine
	thread *models.Thread
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStorage()
	client := &stubClient{}
	coverage := NewCoverageTracker(store)
	distiller := distill.New(store, client, coverage, zap.NewNop())
	eng := New(store, client, distiller, coverage, zap.NewNop())
	eng.WithClock(func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	user := &models.User{Email: "test@example.com"}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.UpsertProfile(ctx, &models.Profile{UserID: user.ID, YearOfBirth: 1996}))

	thread := &models.Thread{
		UserID:     user.ID,
		Title:      "My twenties",
		RootPrompt: "What happened in my twenties",
		Persona:    DefaultPersonaKey,
	}
	require.NoError(t, store.CreateThread(ctx, thread))

	return &harness{store: store, client: client, engine: eng, thread: thread}
}

func validGenerated() *llm.GeneratedQuestion {
	return &llm.GeneratedQuestion{
		Type: "multiple_choice",
		Text: "Which of these mattered most?",
		Options: []models.QuestionOption{
			{ID: "a", Text: "Friends"},
			{ID: "b", Text: "Work"},
		},
		TimeFocus:  llm.StringList{"20s"},
		TopicFocus: llm.StringList{"friendships"},
	}
}

func TestShouldInjectFreeform(t *testing.T) {
	t.Run("never before five questions", func(t *testing.T) {
		eng := &Engine{rng: scriptedRand{0}}
		thread := &models.Thread{QuestionsSinceLastFreeform: 4}
		assert.False(t, eng.shouldInjectFreeform(thread))
	})

	t.Run("can fire at exactly five", func(t *testing.T) {
		eng := &Engine{rng: scriptedRand{0}}
		thread := &models.Thread{QuestionsSinceLastFreeform: 5}
		assert.True(t, eng.shouldInjectFreeform(thread))
	})

	t.Run("high draw delays past five", func(t *testing.T) {
		eng := &Engine{rng: scriptedRand{5}} // threshold 10
		thread := &models.Thread{QuestionsSinceLastFreeform: 5}
		assert.False(t, eng.shouldInjectFreeform(thread))
	})

	t.Run("always fires by ten", func(t *testing.T) {
		eng := &Engine{rng: scriptedRand{5}} // worst case threshold
		thread := &models.Thread{QuestionsSinceLastFreeform: 10}
		assert.True(t, eng.shouldInjectFreeform(thread))
	})
}

// The default randomness source must tolerate concurrent steps; one engine
// serves every request. Run with -race.
func TestDefaultRandConcurrentSteps(t *testing.T) {
	store := storage.NewMemoryStorage()
	client := &stubClient{}
	coverage := NewCoverageTracker(store)
	distiller := distill.New(store, client, coverage, zap.NewNop())
	eng := New(store, client, distiller, coverage, zap.NewNop())

	thread := &models.Thread{QuestionsSinceLastFreeform: 7}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				eng.shouldInjectFreeform(thread)
			}
		}()
	}
	wg.Wait()
}

func TestStepStop(t *testing.T) {
	h := newHarness(t)
	result, err := h.engine.Step(context.Background(), h.thread.UserID, h.thread.ID, StepRequest{Control: ControlStop})
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Nil(t, result.Question)
}

func TestStepUnknownThread(t *testing.T) {
	h := newHarness(t)
	otherThread := &models.Thread{UserID: h.thread.UserID}
	// Not persisted, so lookup must fail.
	_, err := h.engine.Step(context.Background(), h.thread.UserID, otherThread.ID, StepRequest{Control: ControlContinue})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStepGeneratesQuestion(t *testing.T) {
	h := newHarness(t)
	var captured llm.QuestionRequest
	h.client.generate = func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
		captured = req
		return validGenerated(), nil
	}

	result, err := h.engine.Step(context.Background(), h.thread.UserID, h.thread.ID, StepRequest{Control: ControlContinue})
	require.NoError(t, err)
	assert.False(t, result.Done)
	require.NotNil(t, result.Question)
	assert.Equal(t, models.MultipleChoice, result.Question.Type)
	assert.Equal(t, 0, result.Question.IndexInThread)
	assert.Contains(t, result.Question.TimeFocus, "20s")

	// Age 30 at the test clock, so 40s/50plus stay locked.
	assert.Equal(t, []string{"pre10", "10s", "20s", "30s"}, captured.AllowedTimeBuckets)
	assert.NotContains(t, captured.AllowedTopicBuckets, models.TopicChildren)
	require.NotNil(t, captured.Persona)
	require.NotNil(t, captured.TargetFocus)
	assert.Equal(t, 0, captured.TargetFocus.Score)

	stored, err := h.store.GetQuestion(context.Background(), result.Question.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Question.Text, stored.Text)
}

func TestStepTargetFocusAlwaysPersisted(t *testing.T) {
	h := newHarness(t)
	h.client.generate = func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
		generated := validGenerated()
		generated.TimeFocus = nil
		generated.TopicFocus = nil
		return generated, nil
	}

	result, err := h.engine.Step(context.Background(), h.thread.UserID, h.thread.ID, StepRequest{Control: ControlContinue})
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.NotEmpty(t, result.Question.TimeFocus)
	assert.NotEmpty(t, result.Question.TopicFocus)
}

func TestStepFallsBackToFreeformOnModelFailure(t *testing.T) {
	h := newHarness(t)
	h.client.generate = func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
		return nil, errors.New("model unavailable")
	}
	h.engine.WithRand(scriptedRand{0})

	result, err := h.engine.Step(context.Background(), h.thread.UserID, h.thread.ID, StepRequest{Control: ControlContinue})
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.Equal(t, models.ShortAnswer, result.Question.Type)
	assert.Contains(t, freeformPrompts, result.Question.Text)
}

func TestStepFreeformInjection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.WithRand(scriptedRand{0})

	h.thread.QuestionsSinceLastFreeform = 5
	require.NoError(t, h.store.UpdateThread(ctx, h.thread))

	result, err := h.engine.Step(ctx, h.thread.UserID, h.thread.ID, StepRequest{Control: ControlContinue})
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	assert.Equal(t, models.ShortAnswer, result.Question.Type)

	thread, err := h.store.GetThread(ctx, h.thread.ID, h.thread.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.QuestionsSinceLastFreeform)
}

func TestProcessAnswerDistillBoundary(t *testing.T) {
	distilled := &llm.DistilledEntry{
		Headline:     "A summer with friends",
		Distilled:    "Spent the summer traveling with close friends.",
		TimeBucket:   "20s",
		TopicBuckets: llm.StringList{"friendships"},
	}

	askAndAnswer := func(t *testing.T, h *harness, freeText string) *models.Answer {
		t.Helper()
		ctx := context.Background()

		question := &models.Question{
			ThreadID:      h.thread.ID,
			IndexInThread: 0,
			Type:          models.ShortAnswer,
			Text:          "Tell me more",
		}
		require.NoError(t, h.store.CreateQuestion(ctx, question))

		h.client.generate = func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
			return validGenerated(), nil
		}

		_, err := h.engine.Step(ctx, h.thread.UserID, h.thread.ID, StepRequest{
			Control:    ControlContinue,
			LastAnswer: &AnswerSubmission{QuestionID: question.ID, FreeText: freeText},
		})
		require.NoError(t, err)

		answer, err := h.store.GetAnswerForQuestion(ctx, question.ID)
		require.NoError(t, err)
		return answer
	}

	t.Run("twenty characters is not enough", func(t *testing.T) {
		h := newHarness(t)
		called := false
		h.client.distillFn = func(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error) {
			called = true
			return distilled, nil
		}

		answer := askAndAnswer(t, h, strings.Repeat("a", 20))
		assert.False(t, called)
		assert.Nil(t, answer.LinkedEntryID)
	})

	t.Run("twenty-one characters triggers distillation", func(t *testing.T) {
		h := newHarness(t)
		h.client.distillFn = func(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error) {
			return distilled, nil
		}

		answer := askAndAnswer(t, h, strings.Repeat("a", 21))
		require.NotNil(t, answer.LinkedEntryID)

		entry, err := h.store.GetLifeEntry(context.Background(), *answer.LinkedEntryID, h.thread.UserID)
		require.NoError(t, err)
		assert.Equal(t, "20s", entry.TimeBucket)
	})

	t.Run("threshold counts runes, not bytes", func(t *testing.T) {
		h := newHarness(t)
		called := false
		h.client.distillFn = func(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error) {
			called = true
			return distilled, nil
		}

		// 20 runes, 40 bytes.
		answer := askAndAnswer(t, h, strings.Repeat("ü", 20))
		assert.False(t, called)
		assert.Nil(t, answer.LinkedEntryID)
	})

	t.Run("distillation failure still records the answer", func(t *testing.T) {
		h := newHarness(t)
		h.client.distillFn = func(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error) {
			return nil, errors.New("model unavailable")
		}

		answer := askAndAnswer(t, h, strings.Repeat("a", 40))
		assert.Nil(t, answer.LinkedEntryID)
	})
}

type entryFailStore struct {
	*storage.MemoryStorage
}

func (s *entryFailStore) CreateLifeEntry(ctx context.Context, entry *models.LifeEntry) error {
	return errors.New("disk full")
}

// Storage failures during distillation are terminal, unlike model failures.
func TestStepFailsWhenEntryPersistFails(t *testing.T) {
	ctx := context.Background()
	store := &entryFailStore{MemoryStorage: storage.NewMemoryStorage()}
	client := &stubClient{
		generate: func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
			return validGenerated(), nil
		},
		distillFn: func(ctx context.Context, rawText string, userAge int) (*llm.DistilledEntry, error) {
			return &llm.DistilledEntry{Headline: "h", Distilled: "d", TimeBucket: "20s"}, nil
		},
	}
	coverage := NewCoverageTracker(store)
	distiller := distill.New(store, client, coverage, zap.NewNop())
	eng := New(store, client, distiller, coverage, zap.NewNop())

	user := &models.User{Email: "test@example.com"}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.UpsertProfile(ctx, &models.Profile{UserID: user.ID}))
	thread := &models.Thread{UserID: user.ID, Title: "t", RootPrompt: "r"}
	require.NoError(t, store.CreateThread(ctx, thread))
	question := &models.Question{ThreadID: thread.ID, Type: models.ShortAnswer, Text: "q"}
	require.NoError(t, store.CreateQuestion(ctx, question))

	_, err := eng.Step(ctx, user.ID, thread.ID, StepRequest{
		Control:    ControlContinue,
		LastAnswer: &AnswerSubmission{QuestionID: question.ID, FreeText: strings.Repeat("a", 40)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to distill answer")
}

func TestProcessAnswerSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	question := &models.Question{
		ThreadID: h.thread.ID,
		Type:     models.ShortAnswer,
		Text:     "Anything else?",
	}
	require.NoError(t, h.store.CreateQuestion(ctx, question))

	h.client.generate = func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
		return validGenerated(), nil
	}

	_, err := h.engine.Step(ctx, h.thread.UserID, h.thread.ID, StepRequest{
		Control:    ControlContinue,
		LastAnswer: &AnswerSubmission{QuestionID: question.ID, FreeText: "short note"},
	})
	require.NoError(t, err)

	thread, err := h.store.GetThread(ctx, h.thread.ID, h.thread.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, thread.QuestionsAsked)
	assert.Equal(t, 1, thread.QuestionsSinceLastFreeform)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), thread.LastActivityAt)

	// Short-answer free text doubles as a thread freeform note.
	freeforms, err := h.store.ListThreadFreeforms(ctx, h.thread.ID)
	require.NoError(t, err)
	require.Len(t, freeforms, 1)
	assert.Equal(t, "short note", freeforms[0].Text)
}
