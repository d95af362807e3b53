package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifeharness/internal/autobio"
	"lifeharness/internal/engine"
	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type profileRequest struct {
	YearOfBirth        int      `json:"year_of_birth"`
	Country            string   `json:"country"`
	PrimaryLanguage    string   `json:"primary_language"`
	RelationshipStatus string   `json:"relationship_status"`
	HasChildren        bool     `json:"has_children"`
	ChildrenCount      int      `json:"children_count"`
	ChildrenAgeGroups  []string `json:"children_age_brackets"`
	MainRole           string   `json:"main_role"`
	FieldOrIndustry    string   `json:"field_or_industry"`
	AvoidTopics        []string `json:"avoid_topics"`
	Intensity          string   `json:"intensity"`
	LifeSnapshot       string   `json:"life_snapshot"`
}

func (s *Server) GetProfile(c *gin.Context) {
	profile, err := s.store.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		s.logger.Error("Failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) UpsertProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, topic := range req.AvoidTopics {
		if !models.IsTopicBucket(topic) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown topic bucket: " + topic})
			return
		}
	}

	profile := &models.Profile{
		UserID:             currentUserID(c),
		YearOfBirth:        req.YearOfBirth,
		Country:            req.Country,
		PrimaryLanguage:    req.PrimaryLanguage,
		RelationshipStatus: req.RelationshipStatus,
		HasChildren:        req.HasChildren,
		ChildrenCount:      req.ChildrenCount,
		ChildrenAgeGroups:  req.ChildrenAgeGroups,
		MainRole:           req.MainRole,
		FieldOrIndustry:    req.FieldOrIndustry,
		AvoidTopics:        req.AvoidTopics,
		Intensity:          req.Intensity,
		LifeSnapshot:       req.LifeSnapshot,
	}
	if err := s.store.UpsertProfile(c.Request.Context(), profile); err != nil {
		s.logger.Error("Failed to upsert profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type createThreadRequest struct {
	Title      string   `json:"title" binding:"required"`
	RootPrompt string   `json:"root_prompt" binding:"required"`
	Persona    string   `json:"persona"`
	TimeFocus  []string `json:"time_focus"`
	TopicFocus []string `json:"topic_focus"`
}

func (s *Server) CreateThread(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	persona := req.Persona
	if persona == "" {
		persona = engine.DefaultPersonaKey
	}

	thread := &models.Thread{
		UserID:     currentUserID(c),
		Title:      req.Title,
		RootPrompt: req.RootPrompt,
		Persona:    persona,
		TimeFocus:  req.TimeFocus,
		TopicFocus: req.TopicFocus,
	}
	if err := s.store.CreateThread(c.Request.Context(), thread); err != nil {
		s.logger.Error("Failed to create thread", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create thread"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (s *Server) ListThreads(c *gin.Context) {
	threads, err := s.store.ListThreads(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to list threads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list threads"})
		return
	}
	c.JSON(http.StatusOK, threads)
}

func (s *Server) GetThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	thread, err := s.store.GetThread(c.Request.Context(), threadID, currentUserID(c))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
			return
		}
		s.logger.Error("Failed to load thread", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (s *Server) ThreadHistory(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	if _, err := s.store.GetThread(c.Request.Context(), threadID, currentUserID(c)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
			return
		}
		s.logger.Error("Failed to load thread", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread"})
		return
	}

	answers, err := s.store.ListThreadAnswers(c.Request.Context(), threadID)
	if err != nil {
		s.logger.Error("Failed to list answers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list answers"})
		return
	}
	c.JSON(http.StatusOK, answers)
}

type stepAnswer struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	ChoiceID   string    `json:"choice_id"`
	FreeText   string    `json:"free_text"`
}

type stepRequest struct {
	LastAnswer *stepAnswer `json:"last_answer"`
	Control    string      `json:"control"`
}

type questionPayload struct {
	ID      uuid.UUID               `json:"id"`
	Type    models.QuestionType     `json:"type"`
	Text    string                  `json:"text"`
	Options []models.QuestionOption `json:"options,omitempty"`
}

type stepResponse struct {
	Done     bool             `json:"done"`
	Question *questionPayload `json:"question,omitempty"`
}

// ThreadStep runs one turn of the interview loop. Model failures are
// absorbed inside the engine, so the only errors surfacing here are bad
// input or missing records.
func (s *Server) ThreadStep(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	// An empty body is a plain "continue with no prior answer" step.
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Control == "" {
		req.Control = engine.ControlContinue
	}
	if req.Control != engine.ControlContinue && req.Control != engine.ControlStop {
		c.JSON(http.StatusBadRequest, gin.H{"error": "control must be continue or stop"})
		return
	}

	stepReq := engine.StepRequest{Control: req.Control}
	if req.LastAnswer != nil {
		stepReq.LastAnswer = &engine.AnswerSubmission{
			QuestionID: req.LastAnswer.QuestionID,
			ChoiceID:   req.LastAnswer.ChoiceID,
			FreeText:   req.LastAnswer.FreeText,
		}
	}

	result, err := s.engine.Step(c.Request.Context(), currentUserID(c), threadID, stepReq)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "referenced record not found"})
			return
		}
		s.logger.Error("Interview step failed", zap.Error(err), zap.String("thread_id", threadID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "interview step failed"})
		return
	}

	resp := stepResponse{Done: result.Done}
	if result.Question != nil {
		resp.Question = &questionPayload{
			ID:      result.Question.ID,
			Type:    result.Question.Type,
			Text:    result.Question.Text,
			Options: result.Question.Options,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListEntries(c *gin.Context) {
	timeBucket := c.Query("time_bucket")
	topicBucket := c.Query("topic_bucket")
	if timeBucket != "" && !models.IsTimeBucket(timeBucket) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time bucket"})
		return
	}
	if topicBucket != "" && !models.IsTopicBucket(topicBucket) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown topic bucket"})
		return
	}

	entries, err := s.store.ListLifeEntriesByYear(c.Request.Context(), currentUserID(c), timeBucket, topicBucket)
	if err != nil {
		s.logger.Error("Failed to list entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) GetEntry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	entry, err := s.store.GetLifeEntry(c.Request.Context(), entryID, currentUserID(c))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		s.logger.Error("Failed to load entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entry"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

type sealUpdateRequest struct {
	Visibility           *string    `json:"visibility"`
	SealType             *string    `json:"seal_type"`
	SealReleaseAt        *time.Time `json:"seal_release_at"`
	SealEventKey         *string    `json:"seal_event_key"`
	SealAudiencesBlocked []string   `json:"seal_audiences_blocked"`
}

var validVisibilities = map[string]bool{
	models.VisibilitySelf:    true,
	models.VisibilityTrusted: true,
	models.VisibilityHeirs:   true,
	models.VisibilityPublic:  true,
}

var validSealTypes = map[string]bool{
	models.SealNone:        true,
	models.SealUntilDate:   true,
	models.SealUntilEvent:  true,
	models.SealUntilManual: true,
}

// UpdateSeal is the only mutation allowed on a life entry after creation.
func (s *Server) UpdateSeal(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	var req sealUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Visibility != nil && !validVisibilities[*req.Visibility] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown visibility"})
		return
	}
	if req.SealType != nil && !validSealTypes[*req.SealType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown seal type"})
		return
	}

	entry, err := s.store.GetLifeEntry(c.Request.Context(), entryID, currentUserID(c))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		s.logger.Error("Failed to load entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entry"})
		return
	}

	if req.Visibility != nil {
		entry.Visibility = *req.Visibility
	}
	if req.SealType != nil {
		entry.SealType = *req.SealType
	}
	if req.SealReleaseAt != nil {
		entry.SealReleaseAt = *req.SealReleaseAt
	}
	if req.SealEventKey != nil {
		entry.SealEventKey = *req.SealEventKey
	}
	if req.SealAudiencesBlocked != nil {
		entry.SealAudiencesBlocked = req.SealAudiencesBlocked
	}

	if err := s.store.UpdateLifeEntrySeal(c.Request.Context(), entry); err != nil {
		s.logger.Error("Failed to update seal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update seal"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) CoverageGrid(c *gin.Context) {
	cells, err := s.store.ListCoverage(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to load coverage grid", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load coverage grid"})
		return
	}
	if cells == nil {
		cells = []*models.CoverageCell{}
	}
	c.JSON(http.StatusOK, cells)
}

type autobiographyRequest struct {
	Audience string        `json:"audience" binding:"required"`
	Date     time.Time     `json:"date" binding:"required"`
	Scope    autobio.Scope `json:"scope"`
	Tone     string        `json:"tone"`
}

func (s *Server) GenerateAutobiography(c *gin.Context) {
	var req autobiographyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validVisibilities[req.Audience] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown audience"})
		return
	}
	if req.Tone == "" {
		req.Tone = models.IntensityBalanced
	}
	if req.Scope.Type == "" {
		req.Scope.Type = autobio.ScopeFull
	}

	draft, err := s.assembler.Generate(c.Request.Context(), autobio.Request{
		UserID:   currentUserID(c),
		Audience: req.Audience,
		AsOf:     req.Date,
		Scope:    req.Scope,
		Tone:     req.Tone,
	})
	if err != nil {
		s.logger.Error("Autobiography generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "autobiography generation failed"})
		return
	}
	c.JSON(http.StatusOK, draft)
}
