package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/applyai/internal/types"
)

const documentColumns = `id, application_id, user_id, type, content, edited_content, version, status, created_at`

// ListDocuments retrieves every document version of an application, highest version first
func (db *DB) ListDocuments(ctx context.Context, userID, applicationID uuid.UUID) ([]Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents WHERE application_id = $1 AND user_id = $2
		 ORDER BY version DESC, created_at DESC`,
		applicationID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// SetEditedContent stores the user override on a document row; nil clears it
func (db *DB) SetEditedContent(ctx context.Context, userID, documentID uuid.UUID, content *string) (*Document, error) {
	doc, err := scanDocument(db.pool.QueryRow(ctx,
		`UPDATE documents SET edited_content = $3
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+documentColumns,
		documentID, userID, content,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to edit document: %w", err)
	}
	return doc, nil
}

// ApplyGeneration writes one generation callback atomically: document rows are
// updated in place or inserted as new versions, then the application status is set.
func (db *DB) ApplyGeneration(ctx context.Context, w *GenerationWrite) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range w.Documents {
		if d.ID != nil {
			result, err := tx.Exec(ctx,
				`UPDATE documents SET status = $3, content = COALESCE($4, content)
				 WHERE id = $1 AND user_id = $2`,
				*d.ID, w.UserID, string(d.Status), d.Content,
			)
			if err != nil {
				return fmt.Errorf("failed to update %s document: %w", d.Type, err)
			}
			if result.RowsAffected() == 0 {
				return fmt.Errorf("document not found: %s", *d.ID)
			}
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO documents (application_id, user_id, type, content, version, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			w.ApplicationID, w.UserID, string(d.Type), d.Content, d.Version, string(d.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s document version %d: %w", d.Type, d.Version, err)
		}
	}

	if w.Status != nil {
		result, err := tx.Exec(ctx,
			`UPDATE applications SET status = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
			w.ApplicationID, w.UserID, string(*w.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to update application status: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("application not found: %s", w.ApplicationID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var docType, status string
	err := row.Scan(&d.ID, &d.ApplicationID, &d.UserID, &docType, &d.Content, &d.EditedContent,
		&d.Version, &status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Type = types.DocumentType(docType)
	d.Status = types.GenerationStatus(status)
	return &d, nil
}
