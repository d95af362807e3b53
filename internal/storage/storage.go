package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"lifeharness/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist. Callers
// decide whether that is terminal (missing thread/question/profile) or just
// an empty default (missing coverage cell).
var ErrNotFound = errors.New("record not found")

type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error

	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, threadID, userID uuid.UUID) (*models.Thread, error)
	ListThreads(ctx context.Context, userID uuid.UUID) ([]*models.Thread, error)
	UpdateThread(ctx context.Context, thread *models.Thread) error

	AddThreadFreeform(ctx context.Context, freeform *models.ThreadFreeform) error
	ListThreadFreeforms(ctx context.Context, threadID uuid.UUID) ([]*models.ThreadFreeform, error)

	CreateQuestion(ctx context.Context, question *models.Question) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListRecentQuestions(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.Question, error)

	CreateAnswer(ctx context.Context, answer *models.Answer) error
	GetAnswerForQuestion(ctx context.Context, questionID uuid.UUID) (*models.Answer, error)
	ListThreadAnswers(ctx context.Context, threadID uuid.UUID) ([]*models.Answer, error)

	CreateLifeEntry(ctx context.Context, entry *models.LifeEntry) error
	GetLifeEntry(ctx context.Context, id, userID uuid.UUID) (*models.LifeEntry, error)
	ListRecentLifeEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LifeEntry, error)
	ListLifeEntriesByYear(ctx context.Context, userID uuid.UUID, timeBucket, topicBucket string) ([]*models.LifeEntry, error)
	UpdateLifeEntrySeal(ctx context.Context, entry *models.LifeEntry) error

	ListCoverage(ctx context.Context, userID uuid.UUID) ([]*models.CoverageCell, error)
	GetCoverageCell(ctx context.Context, userID uuid.UUID, timeBucket, topicBucket string) (*models.CoverageCell, error)
	PutCoverageCell(ctx context.Context, cell *models.CoverageCell) error

	Close() error
}
