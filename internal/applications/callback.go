package applications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/types"
)

// ApplyCallback applies a progress report from the generation engine.
//
// Every change is validated before anything is written, so a rejected
// transition leaves the application untouched. Reports for a document whose
// latest version is terminal start a new version instead of mutating it; a
// repeat of the terminal state with no new content is treated as a duplicate
// delivery and ignored.
func (s *Service) ApplyCallback(ctx context.Context, cb *types.GenerationCallback) (*Projection, error) {
	if cb == nil || cb.ApplicationID == uuid.Nil || cb.UserID == uuid.Nil {
		return nil, types.Invalid("application_id", "application_id and user_id are required")
	}
	if cb.Status == "" && len(cb.Documents) == 0 {
		return nil, types.Invalid("body", "status or documents are required")
	}

	app, err := s.store.GetApplication(ctx, cb.UserID, cb.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}
	docs, err := s.store.ListDocuments(ctx, cb.UserID, cb.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	write, err := planGeneration(app, latestByType(docs), cb)
	if err != nil {
		return nil, err
	}

	if write.Status != nil || len(write.Documents) > 0 {
		if err := s.store.ApplyGeneration(ctx, write); err != nil {
			return nil, fmt.Errorf("failed to apply generation update: %w", err)
		}
	}
	return s.GetLatest(ctx, cb.UserID, cb.ApplicationID)
}

// planGeneration turns a callback into the writes it implies, or the first
// validation or transition error.
func planGeneration(app *db.Application, latest map[types.DocumentType]db.Document, cb *types.GenerationCallback) (*db.GenerationWrite, error) {
	write := &db.GenerationWrite{UserID: app.UserID, ApplicationID: app.ID}

	if cb.Status != "" {
		if !cb.Status.Valid() {
			return nil, types.Invalid("status", "unknown status %q", cb.Status)
		}
		switch {
		case cb.Status == app.Status && app.Status.IsTerminal():
			// duplicate delivery
		case cb.Status == app.Status && app.Status == types.GenerationProcessing:
			// progress heartbeat
		default:
			if err := app.Status.Transition("application", cb.Status); err != nil {
				return nil, err
			}
			status := cb.Status
			write.Status = &status
		}
	}

	seen := make(map[types.DocumentType]bool, len(cb.Documents))
	for i, reported := range cb.Documents {
		docType, err := types.ParseDocumentType(string(reported.Type))
		if err != nil {
			return nil, types.Invalid(fmt.Sprintf("documents[%d].type", i), "%s", err.Error())
		}
		if !app.Requests(docType) {
			return nil, types.Invalid(fmt.Sprintf("documents[%d].type", i), "%s was not requested", docType)
		}
		if seen[docType] {
			return nil, types.Invalid(fmt.Sprintf("documents[%d].type", i), "%s reported twice", docType)
		}
		seen[docType] = true
		if !reported.Status.Valid() {
			return nil, types.Invalid(fmt.Sprintf("documents[%d].status", i), "unknown status %q", reported.Status)
		}

		subject := "document " + string(docType)
		cur, exists := latest[docType]

		switch {
		case !exists:
			if err := types.GenerationPending.Transition(subject, reported.Status); err != nil {
				return nil, err
			}
			write.Documents = append(write.Documents, db.DocumentWrite{
				Type:    docType,
				Version: 1,
				Status:  reported.Status,
				Content: reported.Content,
			})

		case cur.Status.IsTerminal():
			if reported.Status == cur.Status && (reported.Content == nil || sameContent(cur.Content, reported.Content)) {
				continue
			}
			// A retry is a fresh run already underway at the engine.
			if err := types.GenerationProcessing.Transition(subject, reported.Status); err != nil {
				return nil, err
			}
			write.Documents = append(write.Documents, db.DocumentWrite{
				Type:    docType,
				Version: cur.Version + 1,
				Status:  reported.Status,
				Content: reported.Content,
			})

		default:
			if err := cur.Status.Transition(subject, reported.Status); err != nil {
				return nil, err
			}
			if reported.Status == cur.Status && reported.Content == nil {
				continue
			}
			id := cur.ID
			write.Documents = append(write.Documents, db.DocumentWrite{
				ID:      &id,
				Type:    docType,
				Version: cur.Version,
				Status:  reported.Status,
				Content: reported.Content,
			})
		}
	}

	return write, nil
}

func sameContent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
