package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/types"
)

// Application represents an application record
type Application struct {
	ID                  uuid.UUID               `json:"id"`
	UserID              uuid.UUID               `json:"user_id"`
	JobTitle            string                  `json:"job_title"`
	CompanyName         string                  `json:"company_name"`
	JobDescription      string                  `json:"job_description"`
	JobURL              string                  `json:"job_url,omitempty"`
	HiringManagerName   string                  `json:"hiring_manager_name,omitempty"`
	DocumentsRequested  []types.DocumentType    `json:"documents_requested"`
	CoverLetterLength   types.CoverLetterLength `json:"cover_letter_length"`
	CoverLetterMaxWords *int                    `json:"cover_letter_max_words,omitempty"`
	Tone                types.Tone              `json:"tone"`
	Status              types.GenerationStatus  `json:"status"`
	ApplicationStatus   types.ApplicationStatus `json:"application_status"`
	Notes               string                  `json:"notes,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// Requests reports whether the application asked for document type t.
func (a *Application) Requests(t types.DocumentType) bool {
	for _, requested := range a.DocumentsRequested {
		if requested == t {
			return true
		}
	}
	return false
}

// Document represents one version of a generated artifact
type Document struct {
	ID            uuid.UUID              `json:"id"`
	ApplicationID uuid.UUID              `json:"application_id"`
	UserID        uuid.UUID              `json:"user_id"`
	Type          types.DocumentType     `json:"type"`
	Content       *string                `json:"content"`
	EditedContent *string                `json:"edited_content"`
	Version       int                    `json:"version"`
	Status        types.GenerationStatus `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewApplication holds the fields for creating an application together with
// its pending documents and the usage counter value to record.
type NewApplication struct {
	UserID              uuid.UUID
	JobTitle            string
	CompanyName         string
	JobDescription      string
	JobURL              string
	HiringManagerName   string
	DocumentsRequested  []types.DocumentType
	CoverLetterLength   types.CoverLetterLength
	CoverLetterMaxWords *int
	Tone                types.Tone

	UsagePeriod time.Time
	UsageCount  int
}

// ApplicationFilters holds optional filters for listing applications
type ApplicationFilters struct {
	ApplicationStatus types.ApplicationStatus
	Status            types.GenerationStatus
	Limit             int
	Offset            int
}

// ApplicationUpdate holds the user-editable fields; nil means unchanged
type ApplicationUpdate struct {
	ApplicationStatus *types.ApplicationStatus
	Notes             *string
}

// DocumentWrite is one document change applied by a generation callback.
// When ID is set the row is updated in place, otherwise a new row is inserted at Version.
type DocumentWrite struct {
	ID      *uuid.UUID
	Type    types.DocumentType
	Version int
	Status  types.GenerationStatus
	Content *string
}

// GenerationWrite is the full set of changes from one generation callback
type GenerationWrite struct {
	UserID        uuid.UUID
	ApplicationID uuid.UUID
	Status        *types.GenerationStatus
	Documents     []DocumentWrite
}
