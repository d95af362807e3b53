package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifeharness/internal/autobio"
	"lifeharness/internal/distill"
	"lifeharness/internal/engine"
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

type testApp struct {
	router *gin.Engine
	store  *storage.MemoryStorage
	client *stubClient
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStorage()
	client := &stubClient{}
	logger := zap.NewNop()

	coverage := engine.NewCoverageTracker(store)
	distiller := distill.New(store, client, coverage, logger)
	eng := engine.New(store, client, distiller, coverage, logger)
	assembler := autobio.New(store, client, logger)

	srv := New(store, eng, assembler, Config{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}, logger)

	return &testApp{
		router: srv.Router([]string{"http://localhost:5173"}),
		store:  store,
		client: client,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	a.router.ServeHTTP(recorder, req)
	return recorder
}

func (a *testApp) register(t *testing.T) string {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "test@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var token tokenResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &token))
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

func TestAuth(t *testing.T) {
	t.Run("register then login", func(t *testing.T) {
		app := newTestApp(t)
		app.register(t)

		resp := app.do(t, http.MethodPost, "/auth/login", "", gin.H{
			"email":    "test@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		app := newTestApp(t)
		app.register(t)

		resp := app.do(t, http.MethodPost, "/auth/register", "", gin.H{
			"email":    "test@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		app := newTestApp(t)
		app.register(t)

		resp := app.do(t, http.MethodPost, "/auth/login", "", gin.H{
			"email":    "test@example.com",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("protected routes require a token", func(t *testing.T) {
		app := newTestApp(t)
		resp := app.do(t, http.MethodGet, "/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)

		resp = app.do(t, http.MethodGet, "/profile", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("me returns the current user", func(t *testing.T) {
		app := newTestApp(t)
		token := app.register(t)

		resp := app.do(t, http.MethodGet, "/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var user models.User
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &user))
		assert.Equal(t, "test@example.com", user.Email)
	})
}

func TestProfileEndpoints(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t)

	t.Run("registration seeds an empty profile", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/profile", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var profile models.Profile
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &profile))
		assert.Equal(t, models.IntensityBalanced, profile.Intensity)
	})

	t.Run("unknown avoid topic is rejected", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/profile", token, gin.H{
			"avoid_topics": []string{"astrology"},
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("profile round-trips", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/profile", token, gin.H{
			"year_of_birth": 1990,
			"has_children":  true,
			"avoid_topics":  []string{models.TopicMoneyStatus},
			"intensity":     models.IntensityDeep,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		resp = app.do(t, http.MethodGet, "/profile", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var profile models.Profile
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &profile))
		assert.Equal(t, 1990, profile.YearOfBirth)
		assert.True(t, profile.HasChildren)
	})
}

func TestThreadEndpoints(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t)

	t.Run("create requires a title and root prompt", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads", token, gin.H{"title": "only a title"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	var threadID string
	t.Run("create defaults the persona", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads", token, gin.H{
			"title":       "My twenties",
			"root_prompt": "Walk me through my twenties",
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var thread models.Thread
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &thread))
		assert.Equal(t, engine.DefaultPersonaKey, thread.Persona)
		threadID = thread.ID.String()
	})

	t.Run("list and get", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/threads", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var threads []models.Thread
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &threads))
		require.Len(t, threads, 1)

		resp = app.do(t, http.MethodGet, "/threads/"+threadID, token, nil)
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("bad and missing ids", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/threads/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)

		resp = app.do(t, http.MethodGet, "/threads/00000000-0000-0000-0000-000000000001", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestThreadStep(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t)

	resp := app.do(t, http.MethodPost, "/threads", token, gin.H{
		"title":       "My twenties",
		"root_prompt": "Walk me through my twenties",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var thread models.Thread
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &thread))

	app.client.generate = func(ctx context.Context, req llm.QuestionRequest) (*llm.GeneratedQuestion, error) {
		return &llm.GeneratedQuestion{
			Type: "multiple_choice",
			Text: "Which of these mattered most?",
			Options: []models.QuestionOption{
				{ID: "A", Text: "Friends"},
				{ID: "B", Text: "Work"},
			},
			TimeFocus:  llm.StringList{"20s"},
			TopicFocus: llm.StringList{"friendships"},
		}, nil
	}

	t.Run("invalid control is rejected", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads/"+thread.ID.String()+"/step", token, gin.H{
			"control": "pause",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	var questionID string
	t.Run("first step yields a question", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads/"+thread.ID.String()+"/step", token, gin.H{})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var step stepResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &step))
		assert.False(t, step.Done)
		require.NotNil(t, step.Question)
		assert.Equal(t, models.MultipleChoice, step.Question.Type)
		assert.Len(t, step.Question.Options, 2)
		questionID = step.Question.ID.String()
	})

	t.Run("empty body is a plain continue step", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads/"+thread.ID.String()+"/step", token, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var step stepResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &step))
		assert.False(t, step.Done)
		assert.NotNil(t, step.Question)
	})

	t.Run("answering advances the loop", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads/"+thread.ID.String()+"/step", token, gin.H{
			"last_answer": gin.H{"question_id": questionID, "choice_id": "A"},
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		resp = app.do(t, http.MethodGet, "/threads/"+thread.ID.String()+"/history", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var answers []models.Answer
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &answers))
		require.Len(t, answers, 1)
		assert.Equal(t, "A", answers[0].ChoiceID)
	})

	t.Run("stop ends the session", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads/"+thread.ID.String()+"/step", token, gin.H{
			"control": "stop",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var step stepResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &step))
		assert.True(t, step.Done)
		assert.Nil(t, step.Question)
	})

	t.Run("unknown thread is a 404", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/threads/00000000-0000-0000-0000-000000000001/step", token, gin.H{})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestEntryEndpoints(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t)

	user, err := app.store.GetUserByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)

	entry := &models.LifeEntry{
		UserID:       user.ID,
		TimeBucket:   "20s",
		TopicBuckets: []string{"friendships"},
		Headline:     "A summer trip",
		Visibility:   models.VisibilitySelf,
		SealType:     models.SealNone,
	}
	require.NoError(t, app.store.CreateLifeEntry(context.Background(), entry))

	t.Run("list with filters", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/entries?time_bucket=20s&topic_bucket=friendships", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var entries []models.LifeEntry
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
	})

	t.Run("bad bucket filters are rejected", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/entries?time_bucket=90s", token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/entries/"+entry.ID.String(), token, nil)
		assert.Equal(t, http.StatusOK, resp.Code)

		resp = app.do(t, http.MethodGet, "/entries/00000000-0000-0000-0000-000000000001", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("seal update", func(t *testing.T) {
		resp := app.do(t, http.MethodPatch, "/entries/"+entry.ID.String()+"/seal", token, gin.H{
			"visibility":             models.VisibilityHeirs,
			"seal_type":              models.SealUntilDate,
			"seal_release_at":        "2040-01-01T00:00:00Z",
			"seal_audiences_blocked": []string{models.VisibilityPublic},
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var updated models.LifeEntry
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
		assert.Equal(t, models.VisibilityHeirs, updated.Visibility)
		assert.Equal(t, models.SealUntilDate, updated.SealType)
		assert.Equal(t, 2040, updated.SealReleaseAt.Year())
	})

	t.Run("invalid seal type is rejected", func(t *testing.T) {
		resp := app.do(t, http.MethodPatch, "/entries/"+entry.ID.String()+"/seal", token, gin.H{
			"seal_type": "forever",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("coverage grid", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/entries/coverage/grid", token, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var cells []models.CoverageCell
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cells))
		assert.NotNil(t, cells)
	})
}

func TestAutobiographyEndpoint(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t)

	app.client.autobiography = func(ctx context.Context, req llm.AutobiographyRequest) (*llm.AutobiographyDraft, error) {
		return &llm.AutobiographyDraft{
			Outline:  []llm.Chapter{{Chapter: 1, Title: "Early Years", Sections: []string{"Childhood"}}},
			Markdown: "# Early Years",
		}, nil
	}

	t.Run("generates a draft", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/autobiography/generate", token, gin.H{
			"audience": models.VisibilityPublic,
			"date":     "2026-06-01T00:00:00Z",
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var draft llm.AutobiographyDraft
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &draft))
		assert.Equal(t, "# Early Years", draft.Markdown)
	})

	t.Run("unknown audience is rejected", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/autobiography/generate", token, gin.H{
			"audience": "everyone",
			"date":     "2026-06-01T00:00:00Z",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("date is required", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/autobiography/generate", token, gin.H{
			"audience": models.VisibilityPublic,
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
