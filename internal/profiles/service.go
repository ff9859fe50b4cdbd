// Package profiles manages the per-user onboarding profile.
package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/types"
)

// ErrNotFound is returned when the user has no profile.
var ErrNotFound = errors.New("profile not found")

// Onboarding steps, in the order the client walks them.
const (
	StepIdentity    = 1
	StepWorkHistory = 2
	StepEducation   = 3
	StepSkills      = 4
	StepCoverLetter = 5
	StepPreferences = 6

	// FinalStep completes onboarding.
	FinalStep = StepPreferences
)

// Store is the profile persistence. *db.DB implements it.
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
	SaveIdentity(ctx context.Context, userID uuid.UUID, step *types.IdentityStep) error
	SaveWorkHistory(ctx context.Context, userID uuid.UUID, entries []types.WorkHistoryEntry) error
	SaveEducation(ctx context.Context, userID uuid.UUID, education []types.EducationEntry, certs []types.CertificationEntry) error
	SaveSkills(ctx context.Context, userID uuid.UUID, entries []types.SkillNarrativeEntry) error
	SaveCoverLetterTemplate(ctx context.Context, userID uuid.UUID, template string) error
	CompleteOnboarding(ctx context.Context, userID uuid.UUID, step *types.PreferencesStep) error
	SetEmailNotifications(ctx context.Context, userID uuid.UUID, enabled bool) error
}

// Service implements the profile operations.
type Service struct {
	store Store
}

// NewService creates a profile service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the user's profile.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*db.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	return profile, nil
}

// SaveStep decodes and stores one onboarding step, returning the updated profile.
// Only the final step marks onboarding complete; earlier steps leave the flag alone.
func (s *Service) SaveStep(ctx context.Context, userID uuid.UUID, step int, payload []byte) (*db.Profile, error) {
	var err error
	switch step {
	case StepIdentity:
		var in types.IdentityStep
		if err = decodeStep(payload, &in); err == nil {
			in.FullName = strings.TrimSpace(in.FullName)
			in.Headline = strings.TrimSpace(in.Headline)
			in.Summary = strings.TrimSpace(in.Summary)
			in.Phone = strings.TrimSpace(in.Phone)
			in.LinkedInURL = strings.TrimSpace(in.LinkedInURL)
			in.Location = strings.TrimSpace(in.Location)
			if err = types.ValidateStruct(&in); err == nil {
				err = s.store.SaveIdentity(ctx, userID, &in)
			}
		}

	case StepWorkHistory:
		var in types.WorkHistoryStep
		if err = decodeStep(payload, &in); err == nil {
			if err = types.ValidateStruct(&in); err == nil {
				err = s.store.SaveWorkHistory(ctx, userID, in.WorkHistory)
			}
		}

	case StepEducation:
		var in types.EducationStep
		if err = decodeStep(payload, &in); err == nil {
			if err = types.ValidateStruct(&in); err == nil {
				err = s.store.SaveEducation(ctx, userID, in.Education, in.Certifications)
			}
		}

	case StepSkills:
		var in types.SkillsStep
		if err = decodeStep(payload, &in); err == nil {
			if err = types.ValidateStruct(&in); err == nil {
				err = s.store.SaveSkills(ctx, userID, in.SkillsExperiences)
			}
		}

	case StepCoverLetter:
		var in types.CoverLetterStep
		if err = decodeStep(payload, &in); err == nil {
			err = s.store.SaveCoverLetterTemplate(ctx, userID, strings.TrimSpace(in.CoverLetterTemplate))
		}

	case StepPreferences:
		var in types.PreferencesStep
		if err = decodeStep(payload, &in); err == nil {
			if in.PreferredTone == "" {
				in.PreferredTone = types.ToneProfessional
			}
			in.TargetIndustries = normalizeTags(in.TargetIndustries)
			in.TargetRoles = normalizeTags(in.TargetRoles)
			in.CultureValues = normalizeTags(in.CultureValues)
			in.CareerAspirations = strings.TrimSpace(in.CareerAspirations)
			in.HobbiesInterests = strings.TrimSpace(in.HobbiesInterests)
			if !in.PreferredTone.Valid() {
				err = types.Invalid("preferred_tone", "unknown tone %q", in.PreferredTone)
			} else {
				err = s.store.CompleteOnboarding(ctx, userID, &in)
			}
		}

	default:
		return nil, types.Invalid("step", "must be between %d and %d", StepIdentity, FinalStep)
	}

	if err != nil {
		return nil, storeError(err)
	}
	return s.Get(ctx, userID)
}

// SetNotifications updates the documents-ready email opt-in.
func (s *Service) SetNotifications(ctx context.Context, userID uuid.UUID, prefs *types.NotificationPreferences) (*db.Profile, error) {
	if prefs == nil || prefs.EmailNotifications == nil {
		return nil, types.Invalid("email_notifications", "is required")
	}
	if err := s.store.SetEmailNotifications(ctx, userID, *prefs.EmailNotifications); err != nil {
		return nil, storeError(err)
	}
	return s.Get(ctx, userID)
}

// Completeness returns the profile sections that would improve generated documents.
func (s *Service) Completeness(ctx context.Context, userID uuid.UUID) ([]types.CompletenessIssue, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Issues(profile), nil
}

// Issues lists the missing sections of a profile. A nil profile is missing everything.
func Issues(p *db.Profile) []types.CompletenessIssue {
	if p == nil {
		p = &db.Profile{}
	}
	issues := []types.CompletenessIssue{}
	if p.Headline == "" {
		issues = append(issues, types.CompletenessIssue{Section: "identity", Label: "Add a professional headline"})
	}
	if len(p.WorkHistory) == 0 {
		issues = append(issues, types.CompletenessIssue{Section: "work_history", Label: "Add your work history"})
	}
	if len(p.SkillsExperiences) == 0 {
		issues = append(issues, types.CompletenessIssue{Section: "skills", Label: "Add your skills and experience narratives"})
	}
	if p.CoverLetterTemplate == "" {
		issues = append(issues, types.CompletenessIssue{Section: "cover_letter", Label: "Add your base cover letter"})
	}
	if len(p.TargetRoles) == 0 && len(p.TargetIndustries) == 0 {
		issues = append(issues, types.CompletenessIssue{Section: "preferences", Label: "Set your job preferences and tone"})
	}
	return issues
}

func decodeStep(payload []byte, dst any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return types.Invalid("body", "is required")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return types.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

// normalizeTags trims, drops empties, and dedupes case-insensitively, keeping first spelling.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

func storeError(err error) error {
	if errors.Is(err, db.ErrProfileNotFound) {
		return ErrNotFound
	}
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("failed to save profile: %w", err)
}
