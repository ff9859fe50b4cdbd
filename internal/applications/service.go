// Package applications orchestrates the application lifecycle: quota-checked
// creation, dispatch to the generation engine, engine callbacks, and the
// latest-version projection served to the dashboard.
package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/dispatch"
	"github.com/jonathan/applyai/internal/types"
	"github.com/jonathan/applyai/internal/usage"
)

// ErrNotFound is returned for applications or documents that do not exist or
// belong to another user.
var ErrNotFound = errors.New("not found")

// ErrUnknownUser is returned when the authenticated user no longer exists.
var ErrUnknownUser = errors.New("user not found")

const (
	// DefaultPageSize is the list page size when none is given.
	DefaultPageSize = 25
	// MaxPageSize caps the list page size.
	MaxPageSize = 100
	// RecentCount is the number of applications shown on the dashboard.
	RecentCount = 5
)

// Store is the persistence the service depends on. *db.DB implements it.
type Store interface {
	usage.Counter
	GetUser(ctx context.Context, userID uuid.UUID) (*db.User, error)
	CreateApplication(ctx context.Context, in *db.NewApplication) (*db.Application, []db.Document, error)
	GetApplication(ctx context.Context, userID, applicationID uuid.UUID) (*db.Application, error)
	ListApplications(ctx context.Context, userID uuid.UUID, filters db.ApplicationFilters) ([]db.Application, int, error)
	UpdateApplication(ctx context.Context, userID, applicationID uuid.UUID, update db.ApplicationUpdate) (*db.Application, error)
	CountApplications(ctx context.Context, userID uuid.UUID) (int, error)
	ListDocuments(ctx context.Context, userID, applicationID uuid.UUID) ([]db.Document, error)
	SetEditedContent(ctx context.Context, userID, documentID uuid.UUID, content *string) (*db.Document, error)
	ApplyGeneration(ctx context.Context, w *db.GenerationWrite) error
}

// Projection is an application with the latest version of each of its documents.
type Projection struct {
	Application *db.Application `json:"application"`
	Documents   []db.Document   `json:"documents"`
}

// ListParams are the raw list query parameters.
type ListParams struct {
	ApplicationStatus string
	Status            string
	Limit             int
	Offset            int
}

// ListResult is one page of applications.
type ListResult struct {
	Applications []db.Application `json:"applications"`
	Total        int              `json:"total"`
	HasMore      bool             `json:"has_more"`
}

// Summary is the dashboard view of a user's activity.
type Summary struct {
	Usage             *usage.Reservation `json:"usage"`
	TotalApplications int                `json:"total_applications"`
	Recent            []db.Application   `json:"recent"`
}

// Service implements the application operations.
type Service struct {
	store      Store
	meter      *usage.Meter
	dispatcher dispatch.Dispatcher
	now        func() time.Time
}

// NewService creates a Service. A nil dispatcher disables dispatch.
func NewService(store Store, policies usage.Policies, dispatcher dispatch.Dispatcher) *Service {
	if dispatcher == nil {
		dispatcher = dispatch.Noop{}
	}
	return &Service{
		store:      store,
		meter:      usage.NewMeter(store, policies),
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Create validates the request, checks the caller's quota, creates the
// application with one pending document per requested type, records usage,
// and hands the application to the generation engine.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *types.CreateApplicationRequest) (*Projection, error) {
	in, err := normalizeCreate(req)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	reservation, err := s.meter.CheckAndReserve(ctx, userID, usage.Tier(user.Tier), s.now())
	if err != nil {
		return nil, err
	}

	in.UserID = userID
	in.UsagePeriod = reservation.Period
	in.UsageCount = reservation.Next()

	app, docs, err := s.store.CreateApplication(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s.dispatcher.Dispatch(app.ID, userID)

	return &Projection{Application: app, Documents: LatestPerType(docs)}, nil
}

func normalizeCreate(req *types.CreateApplicationRequest) (*db.NewApplication, error) {
	if req == nil {
		return nil, types.Invalid("body", "is required")
	}
	req.JobTitle = strings.TrimSpace(req.JobTitle)
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	req.JobURL = strings.TrimSpace(req.JobURL)
	req.HiringManagerName = strings.TrimSpace(req.HiringManagerName)

	if err := types.ValidateStruct(req); err != nil {
		return nil, err
	}

	docTypes, err := types.NormalizeDocumentTypes(req.DocumentsRequested)
	if err != nil {
		return nil, types.Invalid("documents_requested", "%s", err.Error())
	}
	if !req.Tone.Valid() {
		return nil, types.Invalid("tone", "unknown tone %q", req.Tone)
	}
	length := req.CoverLetterLength
	if length == "" {
		length = types.CoverLetterStandard
	}
	if !length.Valid() {
		return nil, types.Invalid("cover_letter_length", "unknown length %q", length)
	}

	return &db.NewApplication{
		JobTitle:            req.JobTitle,
		CompanyName:         req.CompanyName,
		JobDescription:      req.JobDescription,
		JobURL:              req.JobURL,
		HiringManagerName:   req.HiringManagerName,
		DocumentsRequested:  docTypes,
		CoverLetterLength:   length,
		CoverLetterMaxWords: req.CoverLetterMaxWords,
		Tone:                req.Tone,
	}, nil
}

// GetLatest returns the application with the latest version of each document type.
func (s *Service) GetLatest(ctx context.Context, userID, applicationID uuid.UUID) (*Projection, error) {
	app, err := s.store.GetApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}

	docs, err := s.store.ListDocuments(ctx, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return &Projection{Application: app, Documents: LatestPerType(docs)}, nil
}

// List returns a page of the user's applications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, params ListParams) (*ListResult, error) {
	filters := db.ApplicationFilters{Limit: params.Limit, Offset: params.Offset}

	switch {
	case params.Limit < 0:
		return nil, types.Invalid("limit", "must not be negative")
	case params.Limit == 0:
		filters.Limit = DefaultPageSize
	case params.Limit > MaxPageSize:
		filters.Limit = MaxPageSize
	}
	if params.Offset < 0 {
		return nil, types.Invalid("offset", "must not be negative")
	}
	if params.ApplicationStatus != "" {
		status := types.ApplicationStatus(params.ApplicationStatus)
		if !status.Valid() {
			return nil, types.Invalid("application_status", "unknown status %q", params.ApplicationStatus)
		}
		filters.ApplicationStatus = status
	}
	if params.Status != "" {
		status := types.GenerationStatus(params.Status)
		if !status.Valid() {
			return nil, types.Invalid("status", "unknown status %q", params.Status)
		}
		filters.Status = status
	}

	apps, total, err := s.store.ListApplications(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return &ListResult{
		Applications: apps,
		Total:        total,
		HasMore:      filters.Offset+len(apps) < total,
	}, nil
}

// Update sets the user-managed fields. Any pipeline stage may replace any other.
func (s *Service) Update(ctx context.Context, userID, applicationID uuid.UUID, req *types.UpdateApplicationRequest) (*db.Application, error) {
	if req == nil || (req.ApplicationStatus == nil && req.Notes == nil) {
		return nil, types.Invalid("body", "no fields to update")
	}
	if err := types.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.ApplicationStatus != nil && !req.ApplicationStatus.Valid() {
		return nil, types.Invalid("application_status", "unknown status %q", *req.ApplicationStatus)
	}

	app, err := s.store.UpdateApplication(ctx, userID, applicationID, db.ApplicationUpdate{
		ApplicationStatus: req.ApplicationStatus,
		Notes:             req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}
	return app, nil
}

// EditDocument stores the user's override on the latest version of a document.
// An empty string clears the override.
func (s *Service) EditDocument(ctx context.Context, userID, applicationID uuid.UUID, rawType string, req *types.EditDocumentRequest) (*db.Document, error) {
	docType, err := types.ParseDocumentType(rawType)
	if err != nil {
		return nil, types.Invalid("type", "%s", err.Error())
	}
	if req == nil || req.EditedContent == nil {
		return nil, types.Invalid("edited_content", "is required")
	}

	projection, err := s.GetLatest(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	var target *db.Document
	for i := range projection.Documents {
		if projection.Documents[i].Type == docType {
			target = &projection.Documents[i]
			break
		}
	}
	if target == nil {
		return nil, ErrNotFound
	}

	content := req.EditedContent
	if *content == "" {
		content = nil
	}
	doc, err := s.store.SetEditedContent(ctx, userID, target.ID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to edit document: %w", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Usage returns the caller's usage for the current period.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (*usage.Reservation, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return s.meter.Current(ctx, userID, usage.Tier(user.Tier), s.now())
}

// Summary returns the dashboard numbers and the most recent applications.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	current, err := s.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountApplications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	recent, _, err := s.store.ListApplications(ctx, userID, db.ApplicationFilters{Limit: RecentCount})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent applications: %w", err)
	}
	return &Summary{Usage: current, TotalApplications: total, Recent: recent}, nil
}
