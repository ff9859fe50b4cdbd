package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/applyai/internal/types"
)

// ErrProfileNotFound is returned by profile writes when the user has no profile row
var ErrProfileNotFound = errors.New("profile not found")

const profileColumns = `id, user_id, full_name, headline, summary, phone, linkedin_url, location,
	work_history, education, certifications, skills_experiences, cover_letter_template,
	target_industries, target_roles, culture_values, career_aspirations, hobbies_interests,
	preferred_tone, email_notifications, onboarding_complete, updated_at`

// GetProfile retrieves the profile owned by userID
func (db *DB) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`,
		userID,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// SaveIdentity stores onboarding step 1
func (db *DB) SaveIdentity(ctx context.Context, userID uuid.UUID, step *types.IdentityStep) error {
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET full_name = $2, headline = $3, summary = $4, phone = $5,
		     linkedin_url = $6, location = $7, updated_at = NOW()
		 WHERE user_id = $1`,
		nullIfEmpty(step.FullName), nullIfEmpty(step.Headline), nullIfEmpty(step.Summary),
		nullIfEmpty(step.Phone), nullIfEmpty(step.LinkedInURL), nullIfEmpty(step.Location),
	)
}

// SaveWorkHistory stores onboarding step 2
func (db *DB) SaveWorkHistory(ctx context.Context, userID uuid.UUID, entries []types.WorkHistoryEntry) error {
	data, err := marshalList(entries)
	if err != nil {
		return err
	}
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET work_history = $2, updated_at = NOW() WHERE user_id = $1`,
		data,
	)
}

// SaveEducation stores onboarding step 3
func (db *DB) SaveEducation(ctx context.Context, userID uuid.UUID, education []types.EducationEntry, certs []types.CertificationEntry) error {
	eduData, err := marshalList(education)
	if err != nil {
		return err
	}
	certData, err := marshalList(certs)
	if err != nil {
		return err
	}
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET education = $2, certifications = $3, updated_at = NOW() WHERE user_id = $1`,
		eduData, certData,
	)
}

// SaveSkills stores onboarding step 4
func (db *DB) SaveSkills(ctx context.Context, userID uuid.UUID, entries []types.SkillNarrativeEntry) error {
	data, err := marshalList(entries)
	if err != nil {
		return err
	}
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET skills_experiences = $2, updated_at = NOW() WHERE user_id = $1`,
		data,
	)
}

// SaveCoverLetterTemplate stores onboarding step 5
func (db *DB) SaveCoverLetterTemplate(ctx context.Context, userID uuid.UUID, template string) error {
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET cover_letter_template = $2, updated_at = NOW() WHERE user_id = $1`,
		nullIfEmpty(template),
	)
}

// CompleteOnboarding stores the final step and sets onboarding_complete.
// No statement in this package ever clears the flag.
func (db *DB) CompleteOnboarding(ctx context.Context, userID uuid.UUID, step *types.PreferencesStep) error {
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET target_industries = $2, target_roles = $3, culture_values = $4,
		     career_aspirations = $5, hobbies_interests = $6, preferred_tone = $7,
		     onboarding_complete = TRUE, updated_at = NOW()
		 WHERE user_id = $1`,
		nonNil(step.TargetIndustries), nonNil(step.TargetRoles), nonNil(step.CultureValues),
		nullIfEmpty(step.CareerAspirations), nullIfEmpty(step.HobbiesInterests), string(step.PreferredTone),
	)
}

// SetEmailNotifications updates the documents-ready email opt-in
func (db *DB) SetEmailNotifications(ctx context.Context, userID uuid.UUID, enabled bool) error {
	return db.updateProfile(ctx, userID,
		`UPDATE profiles SET email_notifications = $2, updated_at = NOW() WHERE user_id = $1`,
		enabled,
	)
}

func (db *DB) updateProfile(ctx context.Context, userID uuid.UUID, query string, args ...any) error {
	result, err := db.pool.Exec(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w for user: %s", ErrProfileNotFound, userID)
	}
	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var fullName, headline, summary, phone, linkedIn, location *string
	var coverLetter, aspirations, hobbies *string
	var workHistory, education, certs, skills []byte
	var tone string

	err := row.Scan(&p.ID, &p.UserID, &fullName, &headline, &summary, &phone, &linkedIn, &location,
		&workHistory, &education, &certs, &skills, &coverLetter,
		&p.TargetIndustries, &p.TargetRoles, &p.CultureValues, &aspirations, &hobbies,
		&tone, &p.EmailNotifications, &p.OnboardingComplete, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.FullName = derefString(fullName)
	p.Headline = derefString(headline)
	p.Summary = derefString(summary)
	p.Phone = derefString(phone)
	p.LinkedInURL = derefString(linkedIn)
	p.Location = derefString(location)
	p.CoverLetterTemplate = derefString(coverLetter)
	p.CareerAspirations = derefString(aspirations)
	p.HobbiesInterests = derefString(hobbies)
	p.PreferredTone = types.Tone(tone)

	if err := unmarshalList(workHistory, &p.WorkHistory); err != nil {
		return nil, fmt.Errorf("failed to decode work_history: %w", err)
	}
	if err := unmarshalList(education, &p.Education); err != nil {
		return nil, fmt.Errorf("failed to decode education: %w", err)
	}
	if err := unmarshalList(certs, &p.Certifications); err != nil {
		return nil, fmt.Errorf("failed to decode certifications: %w", err)
	}
	if err := unmarshalList(skills, &p.SkillsExperiences); err != nil {
		return nil, fmt.Errorf("failed to decode skills_experiences: %w", err)
	}
	return &p, nil
}

// marshalList encodes a slice for a JSONB column, writing [] for nil
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile list: %w", err)
	}
	return data, nil
}

func unmarshalList[T any](data []byte, dst *[]T) error {
	if len(data) == 0 {
		*dst = []T{}
		return nil
	}
	return json.Unmarshal(data, dst)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
