package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifeharness/internal/models"
)

// MemoryStorage keeps everything in maps guarded by one RWMutex. Used for
// tests and for running without PostgreSQL.
type MemoryStorage struct {
	mu sync.RWMutex

	users        map[uuid.UUID]*models.User
	usersByEmail map[string]uuid.UUID
	profiles     map[uuid.UUID]*models.Profile
	threads      map[uuid.UUID]*models.Thread

	// Per-thread and per-user slices preserve insertion order, which stands
	// in for created_at ordering.
	freeforms map[uuid.UUID][]*models.ThreadFreeform
	questions map[uuid.UUID]*models.Question
	byThread  map[uuid.UUID][]uuid.UUID
	answers   map[uuid.UUID][]*models.Answer
	entries   map[uuid.UUID][]*models.LifeEntry

	coverage map[coverageKey]*models.CoverageCell
}

type coverageKey struct {
	userID      uuid.UUID
	timeBucket  string
	topicBucket string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:        make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]uuid.UUID),
		profiles:     make(map[uuid.UUID]*models.Profile),
		threads:      make(map[uuid.UUID]*models.Thread),
		freeforms:    make(map[uuid.UUID][]*models.ThreadFreeform),
		questions:    make(map[uuid.UUID]*models.Question),
		byThread:     make(map[uuid.UUID][]uuid.UUID),
		answers:      make(map[uuid.UUID][]*models.Answer),
		entries:      make(map[uuid.UUID][]*models.LifeEntry),
		coverage:     make(map[coverageKey]*models.CoverageCell),
	}
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, exists := s.users[id]; exists {
		return user, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, exists := s.usersByEmail[email]; exists {
		return s.users[id], nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if profile, exists := s.profiles[userID]; exists {
		return profile, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.Intensity == "" {
		profile.Intensity = models.IntensityBalanced
	}
	if existing, exists := s.profiles[profile.UserID]; exists {
		profile.CreatedAt = existing.CreatedAt
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	profile.UpdatedAt = time.Now()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *MemoryStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}
	now := time.Now()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = now
	}
	if thread.LastActivityAt.IsZero() {
		thread.LastActivityAt = now
	}
	s.threads[thread.ID] = thread
	return nil
}

func (s *MemoryStorage) GetThread(ctx context.Context, threadID, userID uuid.UUID) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if thread, exists := s.threads[threadID]; exists && thread.UserID == userID {
		return thread, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) ListThreads(ctx context.Context, userID uuid.UUID) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var threads []*models.Thread
	for _, thread := range s.threads {
		if thread.UserID == userID {
			threads = append(threads, thread)
		}
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].LastActivityAt.After(threads[j].LastActivityAt)
	})
	return threads, nil
}

func (s *MemoryStorage) UpdateThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.threads[thread.ID]; !exists {
		return ErrNotFound
	}
	s.threads[thread.ID] = thread
	return nil
}

func (s *MemoryStorage) AddThreadFreeform(ctx context.Context, freeform *models.ThreadFreeform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if freeform.ID == uuid.Nil {
		freeform.ID = uuid.New()
	}
	if freeform.CreatedAt.IsZero() {
		freeform.CreatedAt = time.Now()
	}
	s.freeforms[freeform.ThreadID] = append(s.freeforms[freeform.ThreadID], freeform)
	return nil
}

func (s *MemoryStorage) ListThreadFreeforms(ctx context.Context, threadID uuid.UUID) ([]*models.ThreadFreeform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	freeforms := make([]*models.ThreadFreeform, len(s.freeforms[threadID]))
	copy(freeforms, s.freeforms[threadID])
	sort.SliceStable(freeforms, func(i, j int) bool {
		return freeforms[i].IndexInThread < freeforms[j].IndexInThread
	})
	return freeforms, nil
}

func (s *MemoryStorage) CreateQuestion(ctx context.Context, question *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if question.ID == uuid.Nil {
		question.ID = uuid.New()
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now()
	}
	s.questions[question.ID] = question
	s.byThread[question.ThreadID] = append(s.byThread[question.ThreadID], question.ID)
	return nil
}

func (s *MemoryStorage) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if question, exists := s.questions[id]; exists {
		return question, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) ListRecentQuestions(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byThread[threadID]
	var questions []*models.Question
	for i := len(ids) - 1; i >= 0 && len(questions) < limit; i-- {
		questions = append(questions, s.questions[ids[i]])
	}
	return questions, nil
}

func (s *MemoryStorage) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if answer.ID == uuid.Nil {
		answer.ID = uuid.New()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now()
	}
	s.answers[answer.QuestionID] = append(s.answers[answer.QuestionID], answer)
	return nil
}

func (s *MemoryStorage) GetAnswerForQuestion(ctx context.Context, questionID uuid.UUID) (*models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if answers := s.answers[questionID]; len(answers) > 0 {
		return answers[0], nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) ListThreadAnswers(ctx context.Context, threadID uuid.UUID) ([]*models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var answers []*models.Answer
	for _, questionID := range s.byThread[threadID] {
		answers = append(answers, s.answers[questionID]...)
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].CreatedAt.Before(answers[j].CreatedAt)
	})
	return answers, nil
}

func (s *MemoryStorage) CreateLifeEntry(ctx context.Context, entry *models.LifeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now
	}
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return nil
}

func (s *MemoryStorage) GetLifeEntry(ctx context.Context, id, userID uuid.UUID) (*models.LifeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries[userID] {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) ListRecentLifeEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LifeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[userID]
	var entries []*models.LifeEntry
	for i := len(stored) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, stored[i])
	}
	return entries, nil
}

func (s *MemoryStorage) ListLifeEntriesByYear(ctx context.Context, userID uuid.UUID, timeBucket, topicBucket string) ([]*models.LifeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*models.LifeEntry
	for _, entry := range s.entries[userID] {
		if timeBucket != "" && entry.TimeBucket != timeBucket {
			continue
		}
		if topicBucket != "" && !contains(entry.TopicBuckets, topicBucket) {
			continue
		}
		entries = append(entries, entry)
	}

	// Unknown years sort last, matching the SQL NULLS LAST ordering.
	sort.SliceStable(entries, func(i, j int) bool {
		yi, yj := entries[i].ApproxYearStart, entries[j].ApproxYearStart
		if yi == 0 {
			return false
		}
		if yj == 0 {
			return true
		}
		return yi < yj
	})
	return entries, nil
}

func (s *MemoryStorage) UpdateLifeEntrySeal(ctx context.Context, entry *models.LifeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.entries[entry.UserID] {
		if existing.ID == entry.ID {
			entry.UpdatedAt = time.Now()
			s.entries[entry.UserID][i] = entry
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStorage) ListCoverage(ctx context.Context, userID uuid.UUID) ([]*models.CoverageCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cells []*models.CoverageCell
	for key, cell := range s.coverage {
		if key.userID == userID {
			cells = append(cells, cell)
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].TimeBucket != cells[j].TimeBucket {
			return cells[i].TimeBucket < cells[j].TimeBucket
		}
		return cells[i].TopicBucket < cells[j].TopicBucket
	})
	return cells, nil
}

func (s *MemoryStorage) GetCoverageCell(ctx context.Context, userID uuid.UUID, timeBucket, topicBucket string) (*models.CoverageCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cell, exists := s.coverage[coverageKey{userID, timeBucket, topicBucket}]; exists {
		return cell, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) PutCoverageCell(ctx context.Context, cell *models.CoverageCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coverage[coverageKey{cell.UserID, cell.TimeBucket, cell.TopicBucket}] = cell
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
