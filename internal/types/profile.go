package types

// EmploymentType classifies a work history entry.
type EmploymentType string

const (
	EmploymentFullTime  EmploymentType = "full-time"
	EmploymentPartTime  EmploymentType = "part-time"
	EmploymentContract  EmploymentType = "contract"
	EmploymentFreelance EmploymentType = "freelance"
)

// WorkHistoryEntry is one employment record. A nil EndDate means current.
type WorkHistoryEntry struct {
	ID             string         `json:"id" validate:"required"`
	Company        string         `json:"company" validate:"required"`
	Title          string         `json:"title" validate:"required"`
	StartDate      string         `json:"start_date"`
	EndDate        *string        `json:"end_date"`
	EmploymentType EmploymentType `json:"employment_type" validate:"required,oneof=full-time part-time contract freelance"`
	Bullets        []string       `json:"bullets"`
}

// EducationEntry is one education record.
type EducationEntry struct {
	ID          string  `json:"id" validate:"required"`
	Institution string  `json:"institution" validate:"required"`
	Degree      string  `json:"degree"`
	Subject     string  `json:"subject"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// CertificationEntry is one certification.
type CertificationEntry struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Issuer string `json:"issuer"`
	Year   int    `json:"year" validate:"omitempty,min=1900,max=2100"`
}

// SkillNarrativeEntry pairs a skill with a story demonstrating it.
type SkillNarrativeEntry struct {
	ID        string `json:"id" validate:"required"`
	Skill     string `json:"skill" validate:"required"`
	Narrative string `json:"narrative"`
}

// IdentityStep is onboarding step 1.
type IdentityStep struct {
	FullName    string `json:"full_name" validate:"required,max=200"`
	Headline    string `json:"headline" validate:"max=300"`
	Summary     string `json:"summary"`
	Phone       string `json:"phone" validate:"max=50"`
	LinkedInURL string `json:"linkedin_url" validate:"omitempty,url"`
	Location    string `json:"location" validate:"max=200"`
}

// WorkHistoryStep is onboarding step 2.
type WorkHistoryStep struct {
	WorkHistory []WorkHistoryEntry `json:"work_history" validate:"dive"`
}

// EducationStep is onboarding step 3.
type EducationStep struct {
	Education      []EducationEntry     `json:"education" validate:"dive"`
	Certifications []CertificationEntry `json:"certifications" validate:"dive"`
}

// SkillsStep is onboarding step 4.
type SkillsStep struct {
	SkillsExperiences []SkillNarrativeEntry `json:"skills_experiences" validate:"dive"`
}

// CoverLetterStep is onboarding step 5.
type CoverLetterStep struct {
	CoverLetterTemplate string `json:"cover_letter_template"`
}

// PreferencesStep is onboarding step 6, the final step.
type PreferencesStep struct {
	TargetIndustries  []string `json:"target_industries"`
	TargetRoles       []string `json:"target_roles"`
	CultureValues     []string `json:"culture_values"`
	CareerAspirations string   `json:"career_aspirations"`
	HobbiesInterests  string   `json:"hobbies_interests"`
	PreferredTone     Tone     `json:"preferred_tone" validate:"required"`
}

// NotificationPreferences updates the documents-ready email opt-in.
type NotificationPreferences struct {
	EmailNotifications *bool `json:"email_notifications" validate:"required"`
}

// CompletenessIssue points the user at a missing profile section.
type CompletenessIssue struct {
	Section string `json:"section"`
	Label   string `json:"label"`
}
