package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/types"
)

// User represents an account
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never serialize to JSON
	Tier         string    `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile represents the onboarding profile, one per user
type Profile struct {
	ID                  uuid.UUID                   `json:"id"`
	UserID              uuid.UUID                   `json:"user_id"`
	FullName            string                      `json:"full_name"`
	Headline            string                      `json:"headline"`
	Summary             string                      `json:"summary"`
	Phone               string                      `json:"phone"`
	LinkedInURL         string                      `json:"linkedin_url"`
	Location            string                      `json:"location"`
	WorkHistory         []types.WorkHistoryEntry    `json:"work_history"`
	Education           []types.EducationEntry      `json:"education"`
	Certifications      []types.CertificationEntry  `json:"certifications"`
	SkillsExperiences   []types.SkillNarrativeEntry `json:"skills_experiences"`
	CoverLetterTemplate string                      `json:"cover_letter_template"`
	TargetIndustries    []string                    `json:"target_industries"`
	TargetRoles         []string                    `json:"target_roles"`
	CultureValues       []string                    `json:"culture_values"`
	CareerAspirations   string                      `json:"career_aspirations"`
	HobbiesInterests    string                      `json:"hobbies_interests"`
	PreferredTone       types.Tone                  `json:"preferred_tone"`
	EmailNotifications  bool                        `json:"email_notifications"`
	OnboardingComplete  bool                        `json:"onboarding_complete"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}
