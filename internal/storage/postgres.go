package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lifeharness/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if err := s.db.QueryRowContext(ctx, query, user.ID, user.Email, user.PasswordHash).Scan(&user.CreatedAt); err != nil {
		return fmt.Errorf("error creating user: %v", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}
	return user, nil
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user by email: %v", err)
	}
	return user, nil
}

func (s *PostgresStorage) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT user_id, year_of_birth, country, primary_language, relationship_status,
		       has_children, children_count, children_age_brackets, main_role,
		       field_or_industry, avoid_topics, intensity, life_snapshot, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1`

	profile := &models.Profile{}
	var (
		yearOfBirth   sql.NullInt64
		country       sql.NullString
		language      sql.NullString
		relationship  sql.NullString
		childrenCount sql.NullInt64
		mainRole      sql.NullString
		industry      sql.NullString
		lifeSnapshot  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&yearOfBirth,
		&country,
		&language,
		&relationship,
		&profile.HasChildren,
		&childrenCount,
		pq.Array(&profile.ChildrenAgeGroups),
		&mainRole,
		&industry,
		pq.Array(&profile.AvoidTopics),
		&profile.Intensity,
		&lifeSnapshot,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying profile: %v", err)
	}

	profile.YearOfBirth = int(yearOfBirth.Int64)
	profile.Country = country.String
	profile.PrimaryLanguage = language.String
	profile.RelationshipStatus = relationship.String
	profile.ChildrenCount = int(childrenCount.Int64)
	profile.MainRole = mainRole.String
	profile.FieldOrIndustry = industry.String
	profile.LifeSnapshot = lifeSnapshot.String

	return profile, nil
}

func (s *PostgresStorage) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO user_profiles (
			user_id, year_of_birth, country, primary_language, relationship_status,
			has_children, children_count, children_age_brackets, main_role,
			field_or_industry, avoid_topics, intensity, life_snapshot
		)
		VALUES ($1, NULLIF($2, 0), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
		        $6, NULLIF($7, 0), $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, NULLIF($13, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			year_of_birth = EXCLUDED.year_of_birth,
			country = EXCLUDED.country,
			primary_language = EXCLUDED.primary_language,
			relationship_status = EXCLUDED.relationship_status,
			has_children = EXCLUDED.has_children,
			children_count = EXCLUDED.children_count,
			children_age_brackets = EXCLUDED.children_age_brackets,
			main_role = EXCLUDED.main_role,
			field_or_industry = EXCLUDED.field_or_industry,
			avoid_topics = EXCLUDED.avoid_topics,
			intensity = EXCLUDED.intensity,
			life_snapshot = EXCLUDED.life_snapshot,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	if profile.Intensity == "" {
		profile.Intensity = models.IntensityBalanced
	}

	err := s.db.QueryRowContext(ctx, query,
		profile.UserID,
		profile.YearOfBirth,
		profile.Country,
		profile.PrimaryLanguage,
		profile.RelationshipStatus,
		profile.HasChildren,
		profile.ChildrenCount,
		pq.Array(profile.ChildrenAgeGroups),
		profile.MainRole,
		profile.FieldOrIndustry,
		pq.Array(profile.AvoidTopics),
		profile.Intensity,
		profile.LifeSnapshot,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting profile: %v", err)
	}
	return nil
}

func (s *PostgresStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}

	query := `
		INSERT INTO threads (id, user_id, title, root_prompt, persona, time_focus, topic_focus,
		                     questions_asked, questions_since_last_freeform)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, last_activity_at`

	err := s.db.QueryRowContext(ctx, query,
		thread.ID,
		thread.UserID,
		thread.Title,
		thread.RootPrompt,
		thread.Persona,
		pq.Array(thread.TimeFocus),
		pq.Array(thread.TopicFocus),
		thread.QuestionsAsked,
		thread.QuestionsSinceLastFreeform,
	).Scan(&thread.CreatedAt, &thread.LastActivityAt)
	if err != nil {
		return fmt.Errorf("error creating thread: %v", err)
	}
	return nil
}

const threadColumns = `id, user_id, title, root_prompt, persona, time_focus, topic_focus,
	questions_asked, questions_since_last_freeform, created_at, last_activity_at`

func scanThread(row interface{ Scan(...any) error }) (*models.Thread, error) {
	thread := &models.Thread{}
	err := row.Scan(
		&thread.ID,
		&thread.UserID,
		&thread.Title,
		&thread.RootPrompt,
		&thread.Persona,
		pq.Array(&thread.TimeFocus),
		pq.Array(&thread.TopicFocus),
		&thread.QuestionsAsked,
		&thread.QuestionsSinceLastFreeform,
		&thread.CreatedAt,
		&thread.LastActivityAt,
	)
	return thread, err
}

func (s *PostgresStorage) GetThread(ctx context.Context, threadID, userID uuid.UUID) (*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE id = $1 AND user_id = $2`

	thread, err := scanThread(s.db.QueryRowContext(ctx, query, threadID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying thread: %v", err)
	}
	return thread, nil
}

func (s *PostgresStorage) ListThreads(ctx context.Context, userID uuid.UUID) ([]*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE user_id = $1 ORDER BY last_activity_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying threads: %v", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning thread: %v", err)
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func (s *PostgresStorage) UpdateThread(ctx context.Context, thread *models.Thread) error {
	query := `
		UPDATE threads
		SET questions_asked = $1, questions_since_last_freeform = $2, last_activity_at = $3
		WHERE id = $4`

	result, err := s.db.ExecContext(ctx, query,
		thread.QuestionsAsked,
		thread.QuestionsSinceLastFreeform,
		thread.LastActivityAt,
		thread.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating thread: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) AddThreadFreeform(ctx context.Context, freeform *models.ThreadFreeform) error {
	if freeform.ID == uuid.Nil {
		freeform.ID = uuid.New()
	}

	query := `
		INSERT INTO thread_freeforms (id, thread_id, index_in_thread, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		freeform.ID,
		freeform.ThreadID,
		freeform.IndexInThread,
		freeform.Text,
	).Scan(&freeform.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating thread freeform: %v", err)
	}
	return nil
}

func (s *PostgresStorage) ListThreadFreeforms(ctx context.Context, threadID uuid.UUID) ([]*models.ThreadFreeform, error) {
	query := `
		SELECT id, thread_id, index_in_thread, text, created_at
		FROM thread_freeforms
		WHERE thread_id = $1
		ORDER BY index_in_thread`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying thread freeforms: %v", err)
	}
	defer rows.Close()

	var freeforms []*models.ThreadFreeform
	for rows.Next() {
		freeform := &models.ThreadFreeform{}
		err := rows.Scan(&freeform.ID, &freeform.ThreadID, &freeform.IndexInThread, &freeform.Text, &freeform.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning thread freeform: %v", err)
		}
		freeforms = append(freeforms, freeform)
	}
	return freeforms, rows.Err()
}

func (s *PostgresStorage) CreateQuestion(ctx context.Context, question *models.Question) error {
	if question.ID == uuid.Nil {
		question.ID = uuid.New()
	}

	var optionsJSON any
	if len(question.Options) > 0 {
		data, err := json.Marshal(question.Options)
		if err != nil {
			return fmt.Errorf("error encoding question options: %v", err)
		}
		optionsJSON = data
	}

	query := `
		INSERT INTO questions (id, thread_id, index_in_thread, type, text, options, time_focus, topic_focus)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		question.ID,
		question.ThreadID,
		question.IndexInThread,
		string(question.Type),
		question.Text,
		optionsJSON,
		pq.Array(question.TimeFocus),
		pq.Array(question.TopicFocus),
	).Scan(&question.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating question: %v", err)
	}
	return nil
}

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	question := &models.Question{}
	var optionsJSON []byte
	err := row.Scan(
		&question.ID,
		&question.ThreadID,
		&question.IndexInThread,
		&question.Type,
		&question.Text,
		&optionsJSON,
		pq.Array(&question.TimeFocus),
		pq.Array(&question.TopicFocus),
		&question.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &question.Options); err != nil {
			return nil, fmt.Errorf("error decoding question options: %v", err)
		}
	}
	return question, nil
}

const questionColumns = `id, thread_id, index_in_thread, type, text, options, time_focus, topic_focus, created_at`

func (s *PostgresStorage) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`

	question, err := scanQuestion(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying question: %v", err)
	}
	return question, nil
}

func (s *PostgresStorage) ListRecentQuestions(ctx context.Context, threadID uuid.UUID, limit int) ([]*models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE thread_id = $1
		ORDER BY index_in_thread DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying questions: %v", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning question: %v", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (s *PostgresStorage) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	if answer.ID == uuid.Nil {
		answer.ID = uuid.New()
	}

	var linkedEntry uuid.NullUUID
	if answer.LinkedEntryID != nil {
		linkedEntry = uuid.NullUUID{UUID: *answer.LinkedEntryID, Valid: true}
	}

	query := `
		INSERT INTO answers (id, question_id, user_id, choice_id, free_text, linked_entry_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		answer.ID,
		answer.QuestionID,
		answer.UserID,
		answer.ChoiceID,
		answer.FreeText,
		linkedEntry,
	).Scan(&answer.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating answer: %v", err)
	}
	return nil
}

func scanAnswer(row interface{ Scan(...any) error }) (*models.Answer, error) {
	answer := &models.Answer{}
	var (
		choiceID    sql.NullString
		freeText    sql.NullString
		linkedEntry uuid.NullUUID
	)
	err := row.Scan(
		&answer.ID,
		&answer.QuestionID,
		&answer.UserID,
		&choiceID,
		&freeText,
		&linkedEntry,
		&answer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	answer.ChoiceID = choiceID.String
	answer.FreeText = freeText.String
	if linkedEntry.Valid {
		id := linkedEntry.UUID
		answer.LinkedEntryID = &id
	}
	return answer, nil
}

func (s *PostgresStorage) GetAnswerForQuestion(ctx context.Context, questionID uuid.UUID) (*models.Answer, error) {
	query := `
		SELECT id, question_id, user_id, choice_id, free_text, linked_entry_id, created_at
		FROM answers
		WHERE question_id = $1
		ORDER BY created_at
		LIMIT 1`

	answer, err := scanAnswer(s.db.QueryRowContext(ctx, query, questionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying answer: %v", err)
	}
	return answer, nil
}

func (s *PostgresStorage) ListThreadAnswers(ctx context.Context, threadID uuid.UUID) ([]*models.Answer, error) {
	query := `
		SELECT a.id, a.question_id, a.user_id, a.choice_id, a.free_text, a.linked_entry_id, a.created_at
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE q.thread_id = $1
		ORDER BY a.created_at`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying answers: %v", err)
	}
	defer rows.Close()

	var answers []*models.Answer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning answer: %v", err)
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

func (s *PostgresStorage) CreateLifeEntry(ctx context.Context, entry *models.LifeEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var threadID, questionID uuid.NullUUID
	if entry.ThreadID != nil {
		threadID = uuid.NullUUID{UUID: *entry.ThreadID, Valid: true}
	}
	if entry.SourceQuestionID != nil {
		questionID = uuid.NullUUID{UUID: *entry.SourceQuestionID, Valid: true}
	}

	var releaseAt sql.NullTime
	if !entry.SealReleaseAt.IsZero() {
		releaseAt = sql.NullTime{Time: entry.SealReleaseAt, Valid: true}
	}

	query := `
		INSERT INTO life_entries (
			id, user_id, thread_id, source_question_id, time_bucket,
			approx_year_start, approx_year_end, timeframe_label, headline, raw_text,
			distilled, tags, topic_buckets, visibility, seal_type,
			seal_release_at, seal_event_key, seal_audiences_blocked, emotional_tone, people, locations
		)
		VALUES ($1, $2, $3, $4, $5,
		        NULLIF($6, 0), NULLIF($7, 0), $8, $9, $10,
		        $11, $12, $13, $14, $15,
		        $16, NULLIF($17, ''), $18, NULLIF($19, ''), $20, $21)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.UserID,
		threadID,
		questionID,
		entry.TimeBucket,
		entry.ApproxYearStart,
		entry.ApproxYearEnd,
		entry.TimeframeLabel,
		entry.Headline,
		entry.RawText,
		entry.Distilled,
		pq.Array(entry.Tags),
		pq.Array(entry.TopicBuckets),
		entry.Visibility,
		entry.SealType,
		releaseAt,
		entry.SealEventKey,
		pq.Array(entry.SealAudiencesBlocked),
		entry.EmotionalTone,
		pq.Array(entry.People),
		pq.Array(entry.Locations),
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating life entry: %v", err)
	}
	return nil
}

const entryColumns = `id, user_id, thread_id, source_question_id, time_bucket,
	approx_year_start, approx_year_end, timeframe_label, headline, raw_text,
	distilled, tags, topic_buckets, visibility, seal_type,
	seal_release_at, seal_event_key, seal_audiences_blocked, emotional_tone, people, locations,
	created_at, updated_at`

func scanLifeEntry(row interface{ Scan(...any) error }) (*models.LifeEntry, error) {
	entry := &models.LifeEntry{}
	var (
		threadID   uuid.NullUUID
		questionID uuid.NullUUID
		yearStart  sql.NullInt64
		yearEnd    sql.NullInt64
		releaseAt  sql.NullTime
		eventKey   sql.NullString
		tone       sql.NullString
	)
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&threadID,
		&questionID,
		&entry.TimeBucket,
		&yearStart,
		&yearEnd,
		&entry.TimeframeLabel,
		&entry.Headline,
		&entry.RawText,
		&entry.Distilled,
		pq.Array(&entry.Tags),
		pq.Array(&entry.TopicBuckets),
		&entry.Visibility,
		&entry.SealType,
		&releaseAt,
		&eventKey,
		pq.Array(&entry.SealAudiencesBlocked),
		&tone,
		pq.Array(&entry.People),
		pq.Array(&entry.Locations),
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if threadID.Valid {
		id := threadID.UUID
		entry.ThreadID = &id
	}
	if questionID.Valid {
		id := questionID.UUID
		entry.SourceQuestionID = &id
	}
	entry.ApproxYearStart = int(yearStart.Int64)
	entry.ApproxYearEnd = int(yearEnd.Int64)
	if releaseAt.Valid {
		entry.SealReleaseAt = releaseAt.Time
	}
	entry.SealEventKey = eventKey.String
	entry.EmotionalTone = tone.String
	return entry, nil
}

func (s *PostgresStorage) GetLifeEntry(ctx context.Context, id, userID uuid.UUID) (*models.LifeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM life_entries WHERE id = $1 AND user_id = $2`

	entry, err := scanLifeEntry(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying life entry: %v", err)
	}
	return entry, nil
}

func (s *PostgresStorage) ListRecentLifeEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LifeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM life_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying life entries: %v", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (s *PostgresStorage) ListLifeEntriesByYear(ctx context.Context, userID uuid.UUID, timeBucket, topicBucket string) ([]*models.LifeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM life_entries
		WHERE user_id = $1
		  AND ($2 = '' OR time_bucket = $2)
		  AND ($3 = '' OR $3 = ANY(topic_buckets))
		ORDER BY approx_year_start NULLS LAST, created_at`

	rows, err := s.db.QueryContext(ctx, query, userID, timeBucket, topicBucket)
	if err != nil {
		return nil, fmt.Errorf("error querying life entries: %v", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*models.LifeEntry, error) {
	var entries []*models.LifeEntry
	for rows.Next() {
		entry, err := scanLifeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning life entry: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStorage) UpdateLifeEntrySeal(ctx context.Context, entry *models.LifeEntry) error {
	var releaseAt sql.NullTime
	if !entry.SealReleaseAt.IsZero() {
		releaseAt = sql.NullTime{Time: entry.SealReleaseAt, Valid: true}
	}

	query := `
		UPDATE life_entries
		SET visibility = $1, seal_type = $2, seal_release_at = $3,
		    seal_event_key = NULLIF($4, ''), seal_audiences_blocked = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8`

	result, err := s.db.ExecContext(ctx, query,
		entry.Visibility,
		entry.SealType,
		releaseAt,
		entry.SealEventKey,
		pq.Array(entry.SealAudiencesBlocked),
		time.Now(),
		entry.ID,
		entry.UserID,
	)
	if err != nil {
		return fmt.Errorf("error updating life entry seal: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) ListCoverage(ctx context.Context, userID uuid.UUID) ([]*models.CoverageCell, error) {
	query := `
		SELECT user_id, time_bucket, topic_bucket, score
		FROM coverage_grid
		WHERE user_id = $1
		ORDER BY time_bucket, topic_bucket`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying coverage: %v", err)
	}
	defer rows.Close()

	var cells []*models.CoverageCell
	for rows.Next() {
		cell := &models.CoverageCell{}
		if err := rows.Scan(&cell.UserID, &cell.TimeBucket, &cell.TopicBucket, &cell.Score); err != nil {
			return nil, fmt.Errorf("error scanning coverage cell: %v", err)
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

func (s *PostgresStorage) GetCoverageCell(ctx context.Context, userID uuid.UUID, timeBucket, topicBucket string) (*models.CoverageCell, error) {
	query := `
		SELECT user_id, time_bucket, topic_bucket, score
		FROM coverage_grid
		WHERE user_id = $1 AND time_bucket = $2 AND topic_bucket = $3`

	cell := &models.CoverageCell{}
	err := s.db.QueryRowContext(ctx, query, userID, timeBucket, topicBucket).
		Scan(&cell.UserID, &cell.TimeBucket, &cell.TopicBucket, &cell.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying coverage cell: %v", err)
	}
	return cell, nil
}

func (s *PostgresStorage) PutCoverageCell(ctx context.Context, cell *models.CoverageCell) error {
	query := `
		INSERT INTO coverage_grid (user_id, time_bucket, topic_bucket, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, time_bucket, topic_bucket) DO UPDATE SET score = EXCLUDED.score`

	_, err := s.db.ExecContext(ctx, query, cell.UserID, cell.TimeBucket, cell.TopicBucket, cell.Score)
	if err != nil {
		return fmt.Errorf("error upserting coverage cell: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
