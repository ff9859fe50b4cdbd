package types

import (
	"github.com/google/uuid"
)

// CreateApplicationRequest is the body of POST /applications.
type CreateApplicationRequest struct {
	JobTitle            string            `json:"job_title" validate:"required,max=300"`
	CompanyName         string            `json:"company_name" validate:"required,max=300"`
	JobDescription      string            `json:"job_description" validate:"required"`
	JobURL              string            `json:"job_url,omitempty" validate:"omitempty,url"`
	HiringManagerName   string            `json:"hiring_manager_name,omitempty" validate:"max=200"`
	DocumentsRequested  []string          `json:"documents_requested" validate:"required,min=1,dive,required"`
	CoverLetterLength   CoverLetterLength `json:"cover_letter_length,omitempty"`
	CoverLetterMaxWords *int              `json:"cover_letter_max_words,omitempty" validate:"omitempty,min=50,max=2000"`
	Tone                Tone              `json:"tone" validate:"required"`
}

// UpdateApplicationRequest is the body of PATCH /applications/{id}.
// Absent fields are left unchanged.
type UpdateApplicationRequest struct {
	ApplicationStatus *ApplicationStatus `json:"application_status,omitempty"`
	Notes             *string            `json:"notes,omitempty" validate:"omitempty,max=10000"`
}

// EditDocumentRequest is the body of PATCH /applications/{id}/documents/{type}.
// An empty string clears the override.
type EditDocumentRequest struct {
	EditedContent *string `json:"edited_content" validate:"required"`
}

// CreateApplicationResponse is returned with 201 on creation.
type CreateApplicationResponse struct {
	ApplicationID uuid.UUID `json:"application_id"`
}

// GenerationCallback is posted by the generation engine to report progress.
type GenerationCallback struct {
	ApplicationID uuid.UUID          `json:"application_id"`
	UserID        uuid.UUID          `json:"user_id"`
	Status        GenerationStatus   `json:"status,omitempty"`
	Documents     []DocumentCallback `json:"documents,omitempty"`
}

// DocumentCallback reports the state of one generated document.
type DocumentCallback struct {
	Type    DocumentType     `json:"type"`
	Status  GenerationStatus `json:"status"`
	Content *string          `json:"content,omitempty"`
}

// DocumentsReadyRequest is posted by the generation engine when every requested document is done.
type DocumentsReadyRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	ApplicationID uuid.UUID `json:"application_id"`
}

// JobPostingPreviewRequest asks the server to fetch a posting and extract its text.
type JobPostingPreviewRequest struct {
	URL string `json:"url" validate:"required,url"`
}
