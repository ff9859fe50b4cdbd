package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetUsageCount returns applications_generated for (user, period), treating a missing row as 0
func (db *DB) GetUsageCount(ctx context.Context, userID uuid.UUID, period time.Time) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT applications_generated FROM usage WHERE user_id = $1 AND period = $2`,
		userID, period,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return count, nil
}
