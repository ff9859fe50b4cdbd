package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/applyai/internal/types"
)

const applicationColumns = `id, user_id, job_title, company_name, job_description, job_url,
	hiring_manager_name, documents_requested, cover_letter_length, cover_letter_max_words,
	tone, status, application_status, notes, created_at, updated_at`

// CreateApplication inserts the application, one pending version-1 document per
// requested type, and the usage counter for the period, all in one transaction.
func (db *DB) CreateApplication(ctx context.Context, in *NewApplication) (*Application, []Document, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	requested := make([]string, len(in.DocumentsRequested))
	for i, t := range in.DocumentsRequested {
		requested[i] = string(t)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO applications (user_id, job_title, company_name, job_description, job_url,
		     hiring_manager_name, documents_requested, cover_letter_length, cover_letter_max_words,
		     tone, status, application_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+applicationColumns,
		in.UserID, in.JobTitle, in.CompanyName, in.JobDescription, nullIfEmpty(in.JobURL),
		nullIfEmpty(in.HiringManagerName), requested, string(in.CoverLetterLength), in.CoverLetterMaxWords,
		string(in.Tone), string(types.GenerationPending), string(types.ApplicationSaved),
	)
	app, err := scanApplication(row)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create application: %w", err)
	}

	docs := make([]Document, 0, len(in.DocumentsRequested))
	for _, t := range in.DocumentsRequested {
		doc, err := scanDocument(tx.QueryRow(ctx,
			`INSERT INTO documents (application_id, user_id, type, version, status)
			 VALUES ($1, $2, $3, 1, $4)
			 RETURNING `+documentColumns,
			app.ID, in.UserID, string(t), string(types.GenerationPending),
		))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s document: %w", t, err)
		}
		docs = append(docs, *doc)
	}

	// Upsert to the reserved value rather than incrementing: the quota check
	// already read the current count.
	_, err = tx.Exec(ctx,
		`INSERT INTO usage (user_id, period, applications_generated)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, period) DO UPDATE SET applications_generated = EXCLUDED.applications_generated`,
		in.UserID, in.UsagePeriod, in.UsageCount,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return app, docs, nil
}

// GetApplication retrieves an application owned by userID
func (db *DB) GetApplication(ctx context.Context, userID, applicationID uuid.UUID) (*Application, error) {
	app, err := scanApplication(db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 AND user_id = $2`,
		applicationID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListApplications retrieves a page of the user's applications, newest first, and the total match count
func (db *DB) ListApplications(ctx context.Context, userID uuid.UUID, filters ApplicationFilters) ([]Application, int, error) {
	if filters.Limit == 0 {
		filters.Limit = 25
	}

	where := ` WHERE user_id = $1`
	args := []any{userID}
	argNum := 2

	if filters.ApplicationStatus != "" {
		where += fmt.Sprintf(" AND application_status = $%d", argNum)
		args = append(args, string(filters.ApplicationStatus))
		argNum++
	}
	if filters.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM applications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	query := `SELECT ` + applicationColumns + ` FROM applications` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, total, nil
}

// UpdateApplication applies the user-editable fields and returns the updated row,
// or nil if the application does not exist for userID
func (db *DB) UpdateApplication(ctx context.Context, userID, applicationID uuid.UUID, update ApplicationUpdate) (*Application, error) {
	var status *string
	if update.ApplicationStatus != nil {
		s := string(*update.ApplicationStatus)
		status = &s
	}

	app, err := scanApplication(db.pool.QueryRow(ctx,
		`UPDATE applications SET
		     application_status = COALESCE($3, application_status),
		     notes = CASE WHEN $4::boolean THEN $5 ELSE notes END,
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+applicationColumns,
		applicationID, userID, status, update.Notes != nil, update.Notes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	return app, nil
}

// CountApplications returns how many applications the user has ever created
func (db *DB) CountApplications(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM applications WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return count, nil
}

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	var jobURL, hiringManager, notes *string
	var requested []string
	var length, tone, status, appStatus string

	err := row.Scan(&a.ID, &a.UserID, &a.JobTitle, &a.CompanyName, &a.JobDescription, &jobURL,
		&hiringManager, &requested, &length, &a.CoverLetterMaxWords,
		&tone, &status, &appStatus, &notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.JobURL = derefString(jobURL)
	a.HiringManagerName = derefString(hiringManager)
	a.Notes = derefString(notes)
	a.CoverLetterLength = types.CoverLetterLength(length)
	a.Tone = types.Tone(tone)
	a.Status = types.GenerationStatus(status)
	a.ApplicationStatus = types.ApplicationStatus(appStatus)
	a.DocumentsRequested = make([]types.DocumentType, len(requested))
	for i, r := range requested {
		a.DocumentsRequested[i] = types.DocumentType(r)
	}
	return &a, nil
}
