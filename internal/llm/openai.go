package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"lifeharness/internal/models"
)

const questionSystemPrompt = `You are an ongoing autobiographical interviewer.
Your job is to propose exactly one next question for this thread.

Constraints:
- Stay within this thread's theme, unless gently bridging to a closely related under-explored area.
- Respect the user's age, life stage, and avoid list.
- Do NOT ask about children if they have none and did not create a children-focused thread.
- Prefer concrete, specific questions tied to periods, people, or places.
- Default to multiple-choice with an "Other (I'll explain)" option when possible.
- Focus on areas with low coverage scores to ensure comprehensive life documentation.

Return your response as valid JSON with this structure:
{
  "question": {
    "type": "multiple_choice" or "short_answer",
    "time_focus": ["20s"],
    "topic_focus": ["friendships"],
    "text": "Your question here",
    "options": [
      {"id": "A", "text": "Option A"},
      {"id": "B", "text": "Option B"},
      {"id": "C", "text": "Option C"},
      {"id": "D", "text": "Option D"},
      {"id": "OTHER", "text": "None of these fit (I'll explain)."}
    ]
  }
}

For short_answer questions, omit the "options" field.`

const distillSystemPrompt = `Summarize this memory, infer its approximate time in life and main topics.

Return JSON with this structure:
{
  "headline": "Brief headline of this memory",
  "distilled": "Concise summary in 2-3 sentences",
  "time_bucket": "20s" (one of: pre10, 10s, 20s, 30s, 40s, 50plus),
  "approx_year_start": 2007,
  "approx_year_end": 2009,
  "topic_buckets": ["work_career", "crises_turning_points"],
  "tags": ["NYC", "startup", "burnout"],
  "emotional_tone": "anxious but hopeful",
  "people": ["boss", "partner"],
  "locations": ["New York"]
}

Topic buckets must be from: family_of_origin, friendships, romantic_love, children,
work_career, money_status, health_body, creativity_play, beliefs_values, crises_turning_points`

const autobiographySystemPrompt = `You are a skilled autobiographer. Generate a comprehensive autobiography
based on the provided life entries.

Audience: %s
Tone: %s

Return JSON with this structure:
{
  "outline": [
    {"chapter": 1, "title": "Early Years", "sections": ["Childhood", "School days"]},
    {"chapter": 2, "title": "Coming of Age", "sections": ["..."]}
  ],
  "markdown": "# Chapter 1: Early Years\n\n## Childhood\n\n..."
}

Make the narrative compelling, coherent, and true to the person's voice.
Use markdown formatting for structure.`

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIClient(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON pulls the JSON object out of a response that may be wrapped in
// prose or code fences, taking everything between the first '{' and the
// last '}'.
func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return response[start : end+1], nil
}

func (c *OpenAIClient) GenerateQuestion(ctx context.Context, req QuestionRequest) (*GeneratedQuestion, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode question request: %w", err)
	}

	response, err := c.complete(ctx, questionSystemPrompt, string(payload), 0.8, 1000)
	if err != nil {
		c.logger.Error("Failed to get question response", zap.Error(err))
		return nil, err
	}

	jsonStr, err := extractJSON(response)
	if err != nil {
		c.logger.Error("Failed to locate question JSON", zap.String("response", response))
		return nil, err
	}

	var wrapper struct {
		Question *GeneratedQuestion `json:"question"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &wrapper); err != nil {
		c.logger.Error("Failed to parse question response",
			zap.Error(err),
			zap.String("response", response))
		return nil, fmt.Errorf("failed to parse question response: %w", err)
	}
	if wrapper.Question == nil || strings.TrimSpace(wrapper.Question.Text) == "" {
		return nil, fmt.Errorf("question response missing text")
	}

	return wrapper.Question, nil
}

func (c *OpenAIClient) DistillFreeform(ctx context.Context, rawText string, userAge int) (*DistilledEntry, error) {
	user := "User's memory:\n\n" + rawText
	if userAge > 0 {
		user += fmt.Sprintf("\n\nUser's current age: %d", userAge)
	}

	response, err := c.complete(ctx, distillSystemPrompt, user, 0.5, 800)
	if err != nil {
		c.logger.Error("Failed to get distillation response", zap.Error(err))
		return nil, err
	}

	jsonStr, err := extractJSON(response)
	if err != nil {
		c.logger.Error("Failed to locate distillation JSON", zap.String("response", response))
		return nil, err
	}

	var entry DistilledEntry
	if err := json.Unmarshal([]byte(jsonStr), &entry); err != nil {
		c.logger.Error("Failed to parse distillation response",
			zap.Error(err),
			zap.String("response", response))
		return nil, fmt.Errorf("failed to parse distillation response: %w", err)
	}
	if strings.TrimSpace(entry.Headline) == "" || strings.TrimSpace(entry.Distilled) == "" {
		return nil, fmt.Errorf("distillation response missing headline or summary")
	}
	if !models.IsTimeBucket(entry.TimeBucket) {
		return nil, fmt.Errorf("distillation response has unknown time bucket %q", entry.TimeBucket)
	}

	return &entry, nil
}

func (c *OpenAIClient) GenerateAutobiography(ctx context.Context, req AutobiographyRequest) (*AutobiographyDraft, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode autobiography request: %w", err)
	}

	system := fmt.Sprintf(autobiographySystemPrompt, req.Audience, req.Tone)
	response, err := c.complete(ctx, system, string(payload), 0.7, 4000)
	if err != nil {
		c.logger.Error("Failed to get autobiography response", zap.Error(err))
		return nil, err
	}

	jsonStr, err := extractJSON(response)
	if err != nil {
		c.logger.Error("Failed to locate autobiography JSON", zap.String("response", response))
		return nil, err
	}

	var draft AutobiographyDraft
	if err := json.Unmarshal([]byte(jsonStr), &draft); err != nil {
		c.logger.Error("Failed to parse autobiography response",
			zap.Error(err),
			zap.String("response", response))
		return nil, fmt.Errorf("failed to parse autobiography response: %w", err)
	}
	if strings.TrimSpace(draft.Markdown) == "" {
		return nil, fmt.Errorf("autobiography response missing markdown")
	}

	return &draft, nil
}
