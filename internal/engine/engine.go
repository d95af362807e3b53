package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifeharness/internal/distill"
	"lifeharness/internal/llm"
	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

const (
	ControlContinue = "continue"
	ControlStop     = "stop"
)

const recentQuestionWindow = 5

// Rand supplies the randomness for freeform cadence and prompt choice.
// Tests swap in a deterministic sequence.
type Rand interface {
	Intn(n int) int
}

// lockedRand guards a *rand.Rand with a mutex. One engine serves every
// request, and math/rand.Rand is not safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

type AnswerSubmission struct {
	QuestionID uuid.UUID
	ChoiceID   string
	FreeText   string
}

type StepRequest struct {
	LastAnswer *AnswerSubmission
	Control    string
}

type StepResult struct {
	Done     bool
	Question *models.Question
}

// Engine drives one interview step at a time: record the prior answer,
// maybe distill it into a life entry, then decide between a scripted
// freeform prompt and a model-generated question. Model failures always
// degrade to the freeform path so the loop never stalls.
type Engine struct {
	store     storage.Storage
	client    llm.Client
	distiller *distill.Distiller
	coverage  *CoverageTracker
	digest    *DigestBuilder
	logger    *zap.Logger
	rng       Rand
	now       func() time.Time
}

func New(store storage.Storage, client llm.Client, distiller *distill.Distiller, coverage *CoverageTracker, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		client:    client,
		distiller: distiller,
		coverage:  coverage,
		digest:    NewDigestBuilder(store),
		logger:    logger,
		rng:       &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))},
		now:       time.Now,
	}
}

// WithRand replaces the randomness source. Returns the engine for chaining
// in test setup.
func (e *Engine) WithRand(rng Rand) *Engine {
	e.rng = rng
	return e
}

// WithClock replaces the wall clock used for counters and age derivation.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Step executes one turn of the interview loop for a thread.
func (e *Engine) Step(ctx context.Context, userID, threadID uuid.UUID, req StepRequest) (*StepResult, error) {
	thread, err := e.store.GetThread(ctx, threadID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	profile, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if req.Control == ControlStop {
		return &StepResult{Done: true}, nil
	}

	if req.LastAnswer != nil {
		if err := e.processAnswer(ctx, thread, req.LastAnswer); err != nil {
			return nil, err
		}
	}

	if e.shouldInjectFreeform(thread) {
		question, err := e.createFreeformQuestion(ctx, thread)
		if err != nil {
			return nil, err
		}
		return &StepResult{Question: question}, nil
	}

	question, err := e.generateQuestion(ctx, thread, profile)
	if err != nil {
		return nil, err
	}
	if question == nil {
		// The model came back with nothing usable; the scripted prompt
		// keeps the loop moving.
		question, err = e.createFreeformQuestion(ctx, thread)
		if err != nil {
			return nil, err
		}
	}

	return &StepResult{Question: question}, nil
}

func (e *Engine) processAnswer(ctx context.Context, thread *models.Thread, submission *AnswerSubmission) error {
	question, err := e.store.GetQuestion(ctx, submission.QuestionID)
	if err != nil {
		return fmt.Errorf("failed to load answered question: %w", err)
	}

	var linkedEntryID *uuid.UUID
	trimmed := strings.TrimSpace(submission.FreeText)
	if len([]rune(trimmed)) > distill.SignificanceThreshold {
		// The distiller absorbs model failures itself; an error here means
		// the entry or its coverage could not be persisted.
		entry, err := e.distiller.FromFreeform(ctx, distill.Request{
			UserID:     thread.UserID,
			RawText:    submission.FreeText,
			ThreadID:   &thread.ID,
			QuestionID: &question.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to distill answer: %w", err)
		}
		if entry != nil {
			linkedEntryID = &entry.ID
		}
	}

	answer := &models.Answer{
		QuestionID:    question.ID,
		UserID:        thread.UserID,
		ChoiceID:      submission.ChoiceID,
		FreeText:      submission.FreeText,
		LinkedEntryID: linkedEntryID,
	}
	if err := e.store.CreateAnswer(ctx, answer); err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	// Free text given to an open question doubles as a thread freeform
	// note, so later digests can quote it back for continuity.
	if question.Type == models.ShortAnswer && trimmed != "" {
		freeform := &models.ThreadFreeform{
			ThreadID:      thread.ID,
			IndexInThread: question.IndexInThread,
			Text:          submission.FreeText,
		}
		if err := e.store.AddThreadFreeform(ctx, freeform); err != nil {
			return fmt.Errorf("failed to record thread freeform: %w", err)
		}
	}

	thread.QuestionsAsked++
	thread.QuestionsSinceLastFreeform++
	thread.LastActivityAt = e.now()
	if err := e.store.UpdateThread(ctx, thread); err != nil {
		return fmt.Errorf("failed to update thread counters: %w", err)
	}

	return nil
}

// generateQuestion asks the model for the next structured question. A
// model-side failure returns (nil, nil) so the caller can fall back to a
// freeform prompt; storage failures are real errors.
func (e *Engine) generateQuestion(ctx context.Context, thread *models.Thread, profile *models.Profile) (*models.Question, error) {
	recent, err := e.store.ListRecentQuestions(ctx, thread.ID, recentQuestionWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent questions: %w", err)
	}

	var recentQA []llm.QA
	for i := len(recent) - 1; i >= 0; i-- {
		question := recent[i]
		answer, err := e.store.GetAnswerForQuestion(ctx, question.ID)
		if err != nil {
			continue
		}
		answerText := answer.FreeText
		if answerText == "" {
			answerText = "Choice: " + answer.ChoiceID
		}
		recentQA = append(recentQA, llm.QA{Question: question.Text, Answer: answerText})
	}

	freeforms, err := e.store.ListThreadFreeforms(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread freeforms: %w", err)
	}
	notes := make([]llm.FreeformNote, 0, len(freeforms))
	for _, freeform := range freeforms {
		notes = append(notes, llm.FreeformNote{Index: freeform.IndexInThread, Text: freeform.Text})
	}

	now := e.now()
	allowedTime, allowedTopics := EligibleBuckets(profile, thread, now)

	coverageSlice, err := e.coverage.Read(ctx, thread.UserID, allowedTime, allowedTopics)
	if err != nil {
		return nil, err
	}
	target := SelectNextTarget(coverageSlice, recent)

	digest, err := e.digest.Build(ctx, thread, allowedTime, allowedTopics)
	if err != nil {
		return nil, err
	}

	persona := GetPersona(thread.Persona)

	summary := llm.ProfileSummary{
		HasChildren: profile.HasChildren,
		AvoidTopics: profile.AvoidTopics,
		Intensity:   profile.Intensity,
	}
	if summary.AvoidTopics == nil {
		summary.AvoidTopics = []string{}
	}
	if summary.Intensity == "" {
		summary.Intensity = models.IntensityBalanced
	}
	if age, known := profile.KnownAge(now); known {
		summary.Age = age
	}

	generated, err := e.client.GenerateQuestion(ctx, llm.QuestionRequest{
		ThreadRoot:          thread.Title + ": " + thread.RootPrompt,
		Profile:             summary,
		ThreadFreeforms:     notes,
		RecentQA:            recentQA,
		CoverageSlice:       coverageSlice,
		ContextDigest:       digest,
		AllowedTimeBuckets:  allowedTime,
		AllowedTopicBuckets: allowedTopics,
		Persona:             &persona,
		TargetFocus:         target,
	})
	if err != nil {
		e.logger.Warn("Question generation failed, falling back to freeform",
			zap.Error(err),
			zap.String("thread_id", thread.ID.String()))
		return nil, nil
	}

	// The targeted slice is always represented on the persisted question,
	// even when the model omits it, so recency tracking stays honest.
	timeFocus := []string(generated.TimeFocus)
	topicFocus := []string(generated.TopicFocus)
	if target != nil {
		if !containsString(timeFocus, target.TimeBucket) {
			timeFocus = append(timeFocus, target.TimeBucket)
		}
		if !containsString(topicFocus, target.TopicBucket) {
			topicFocus = append(topicFocus, target.TopicBucket)
		}
	}

	questionType := models.QuestionType(generated.Type)
	if questionType != models.ShortAnswer {
		questionType = models.MultipleChoice
	}

	question := &models.Question{
		ThreadID:      thread.ID,
		IndexInThread: thread.QuestionsAsked,
		Type:          questionType,
		Text:          generated.Text,
		Options:       generated.Options,
		TimeFocus:     timeFocus,
		TopicFocus:    topicFocus,
	}
	if err := e.store.CreateQuestion(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	return question, nil
}
