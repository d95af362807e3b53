package engine

import (
	"context"
	"fmt"

	"lifeharness/internal/models"
)

// Scripted reflection prompts used for periodic variety and as the fallback
// whenever the model cannot produce a question.
var freeformPrompts = []string{
	"Take a moment to write about a memory that stands out from this period of your life.",
	"Describe a turning point or significant moment you haven't mentioned yet.",
	"What's something from this time that you want to remember forever?",
	"Write about someone who mattered to you during this period.",
	"Describe a place that was important to you then.",
	"What were you hoping for or dreaming about at this time?",
	"Tell me about a challenge or struggle from this era.",
	"What brought you joy during this period?",
}

const (
	freeformMinInterval = 5
	freeformMaxInterval = 10
)

// shouldInjectFreeform decides whether the next question is a scripted
// freeform prompt. Never before 5 consecutive model questions, always by
// the 10th: the threshold is drawn uniformly from [5,10] each step.
func (e *Engine) shouldInjectFreeform(thread *models.Thread) bool {
	n := thread.QuestionsSinceLastFreeform
	if n < freeformMinInterval {
		return false
	}
	threshold := freeformMinInterval + e.rng.Intn(freeformMaxInterval-freeformMinInterval+1)
	return n >= threshold
}

// createFreeformQuestion persists a scripted short-answer prompt whose
// focus is inherited from the thread, and resets the freeform counter.
func (e *Engine) createFreeformQuestion(ctx context.Context, thread *models.Thread) (*models.Question, error) {
	question := &models.Question{
		ThreadID:      thread.ID,
		IndexInThread: thread.QuestionsAsked,
		Type:          models.ShortAnswer,
		Text:          freeformPrompts[e.rng.Intn(len(freeformPrompts))],
		TimeFocus:     thread.TimeFocus,
		TopicFocus:    thread.TopicFocus,
	}

	if err := e.store.CreateQuestion(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create freeform question: %w", err)
	}

	thread.QuestionsSinceLastFreeform = 0
	if err := e.store.UpdateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("failed to reset freeform counter: %w", err)
	}

	return question, nil
}
