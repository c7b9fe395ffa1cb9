// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewActivityRepository(pool *pgxpool.Pool, logger *slog.Logger) *ActivityRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &ActivityRepository{
		pool:   pool,
		logger: logger,
	}
}

// ListActivities returns the newest activities first. A beforeSeq of 0
// starts from the top; pass the seq of the last row seen to page further
// back.
func (r *ActivityRepository) ListActivities(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int, beforeSeq int64) ([]domain.ActivityRecord, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, entity_type, entity_id, activity_type, actor_email,
		       payload, created_at
		FROM activities
		WHERE entity_type=$1
		  AND entity_id=$2
		  AND ($3::BIGINT = 0 OR seq < $3)
		ORDER BY seq DESC
		LIMIT $4
	`, entityType, entityID, beforeSeq, limit)
	if err != nil {
		r.logger.Error("list activities query failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.ActivityRecord, 0, limit)
	var lastSeq int64
	for rows.Next() {
		var record domain.ActivityRecord
		var seq int64
		if err := rows.Scan(
			&record.ID,
			&seq,
			&record.EntityType,
			&record.EntityID,
			&record.Type,
			&record.ActorEmail,
			&record.Payload,
			&record.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		lastSeq = seq
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, lastSeq, nil
}

// insertActivity appends one audit row inside the caller's transaction so
// the activity commits or rolls back with the mutation it describes.
func insertActivity(ctx context.Context, tx pgx.Tx, entityType domain.EntityType, entityID uuid.UUID, activityType, actorEmail string, payload json.RawMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO activities (id, entity_type, entity_id, activity_type, actor_email, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		entityType,
		entityID,
		activityType,
		actorEmail,
		payload,
	)
	return err
}
