package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds the demographic context used by the eligibility policy and
// the LLM prompts. A zero YearOfBirth means the user never told us.
type Profile struct {
	UserID          uuid.UUID `json:"user_id"`
	YearOfBirth     int       `json:"year_of_birth,omitempty"`
	Country         string    `json:"country,omitempty"`
	PrimaryLanguage string    `json:"primary_language,omitempty"`

	RelationshipStatus string   `json:"relationship_status,omitempty"`
	HasChildren        bool     `json:"has_children"`
	ChildrenCount      int      `json:"children_count,omitempty"`
	ChildrenAgeGroups  []string `json:"children_age_brackets,omitempty"`

	MainRole        string `json:"main_role,omitempty"`
	FieldOrIndustry string `json:"field_or_industry,omitempty"`

	AvoidTopics []string `json:"avoid_topics,omitempty"`
	Intensity   string   `json:"intensity,omitempty"`

	LifeSnapshot string    `json:"life_snapshot,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Age derives the user's age in years, assuming age 30 when the birth year
// is unknown so the interview can still proceed.
func (p *Profile) Age(now time.Time) int {
	if p == nil || p.YearOfBirth == 0 {
		return 30
	}
	return now.Year() - p.YearOfBirth
}

// KnownAge returns the derived age and whether the birth year was actually set.
func (p *Profile) KnownAge(now time.Time) (int, bool) {
	if p == nil || p.YearOfBirth == 0 {
		return 0, false
	}
	return now.Year() - p.YearOfBirth, true
}
