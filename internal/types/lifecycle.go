// Package types provides type definitions for structured data used throughout the ApplyAI backend.
package types

import (
	"fmt"
	"strings"
)

// GenerationStatus is the lifecycle of AI document production for an
// application or a single document.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationComplete   GenerationStatus = "complete"
	GenerationFailed     GenerationStatus = "failed"
)

// generationTransitions lists the permitted forward moves. Terminal states have no entry.
var generationTransitions = map[GenerationStatus][]GenerationStatus{
	GenerationPending:    {GenerationProcessing, GenerationFailed},
	GenerationProcessing: {GenerationComplete, GenerationFailed},
}

// Valid reports whether s is a known generation status.
func (s GenerationStatus) Valid() bool {
	switch s {
	case GenerationPending, GenerationProcessing, GenerationComplete, GenerationFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationComplete || s == GenerationFailed
}

// CanTransition reports whether moving from s to next is permitted.
// processing -> processing is accepted as a no-op progress report; every
// other self-transition is rejected.
func (s GenerationStatus) CanTransition(next GenerationStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return s == GenerationProcessing
	}
	for _, allowed := range generationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionError reports a rejected generation status change.
type TransitionError struct {
	Subject string
	From    GenerationStatus
	To      GenerationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition: %s -> %s", e.Subject, e.From, e.To)
}

// Transition validates a move from s to next for the named subject.
func (s GenerationStatus) Transition(subject string, next GenerationStatus) error {
	if !s.CanTransition(next) {
		return &TransitionError{Subject: subject, From: s, To: next}
	}
	return nil
}

// ApplicationStatus is the user-managed pipeline stage of an application.
// It has no ordering: any value may replace any other.
type ApplicationStatus string

const (
	ApplicationSaved     ApplicationStatus = "saved"
	ApplicationApplied   ApplicationStatus = "applied"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationOffer     ApplicationStatus = "offer"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// ApplicationStatuses returns every pipeline stage in board order.
func ApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		ApplicationSaved,
		ApplicationApplied,
		ApplicationInterview,
		ApplicationOffer,
		ApplicationRejected,
	}
}

// Valid reports whether s is one of the five pipeline stages.
func (s ApplicationStatus) Valid() bool {
	for _, known := range ApplicationStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// DocumentType identifies a generated artifact.
type DocumentType string

const (
	DocumentResearch    DocumentType = "research"
	DocumentCV          DocumentType = "cv"
	DocumentCoverLetter DocumentType = "cover_letter"
	DocumentIntroEmail  DocumentType = "intro_email"
)

// DocumentTypes returns every document type in display order.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocumentResearch, DocumentCV, DocumentCoverLetter, DocumentIntroEmail}
}

// ParseDocumentType normalizes raw input, accepting "email" for intro_email.
func ParseDocumentType(raw string) (DocumentType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "email" {
		return DocumentIntroEmail, nil
	}
	for _, t := range DocumentTypes() {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown document type: %q", raw)
}

// DocumentOrder returns the display position of t, or len(DocumentTypes()) if unknown.
func DocumentOrder(t DocumentType) int {
	for i, known := range DocumentTypes() {
		if known == t {
			return i
		}
	}
	return len(DocumentTypes())
}

// NormalizeDocumentTypes parses, dedupes, and orders the requested types.
// It fails on the first unknown value or when nothing was requested.
func NormalizeDocumentTypes(raw []string) ([]DocumentType, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one document type is required")
	}
	seen := make(map[DocumentType]bool, len(raw))
	for _, r := range raw {
		t, err := ParseDocumentType(r)
		if err != nil {
			return nil, err
		}
		seen[t] = true
	}
	out := make([]DocumentType, 0, len(seen))
	for _, t := range DocumentTypes() {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

// Tone is the writing voice used for generated documents.
type Tone string

const (
	ToneProfessional   Tone = "professional"
	ToneConversational Tone = "conversational"
	ToneAssertive      Tone = "assertive"
)

// Valid reports whether t is a known tone.
func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneConversational, ToneAssertive:
		return true
	}
	return false
}

// CoverLetterLength is the requested cover letter size.
type CoverLetterLength string

const (
	CoverLetterShort    CoverLetterLength = "short"
	CoverLetterStandard CoverLetterLength = "standard"
	CoverLetterDetailed CoverLetterLength = "detailed"
)

// Valid reports whether l is a known length.
func (l CoverLetterLength) Valid() bool {
	switch l {
	case CoverLetterShort, CoverLetterStandard, CoverLetterDetailed:
		return true
	}
	return false
}
