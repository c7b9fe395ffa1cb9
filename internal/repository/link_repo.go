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

// LinkRepository manages cross-entity associations through a join table.
// Linking is a plain insert with a uniqueness constraint, never a
// read-modify-write over an array column, so concurrent link calls cannot
// overwrite each other.
type LinkRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLinkRepository(pool *pgxpool.Pool, logger *slog.Logger) *LinkRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &LinkRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *LinkRepository) AddLink(ctx context.Context, link domain.EntityLink, actorEmail string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	// Both ends must exist before linking.
	for _, end := range []struct {
		entityType domain.EntityType
		id         uuid.UUID
	}{
		{link.ParentType, link.ParentID},
		{link.ChildType, link.ChildID},
	} {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM entities WHERE entity_type=$1 AND id=$2)
		`, end.entityType, end.id).Scan(&exists); err != nil {
			r.logger.Error("link existence check failed",
				"entity_type", end.entityType,
				"entity_id", end.id,
				"error", err,
			)
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO entity_links (parent_type, parent_id, child_type, child_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`,
		link.ParentType,
		link.ParentID,
		link.ChildType,
		link.ChildID,
	)
	if err != nil {
		r.logger.Error("insert link failed",
			"parent_id", link.ParentID,
			"child_id", link.ChildID,
			"error", err,
		)
		return err
	}

	if tag.RowsAffected() == 0 {
		// Already linked; idempotent.
		return tx.Commit(ctx)
	}

	payload, _ := json.Marshal(map[string]any{
		"child_type": link.ChildType,
		"child_id":   link.ChildID,
	})
	if err := insertActivity(ctx, tx, link.ParentType, link.ParentID,
		domain.ActivityLinkAdded, actorEmail, payload); err != nil {
		r.logger.Error("insert link activity failed", "error", err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit link failed", "error", err)
		return err
	}

	r.logger.Info("entities linked",
		"parent_type", link.ParentType,
		"parent_id", link.ParentID,
		"child_type", link.ChildType,
		"child_id", link.ChildID,
	)
	return nil
}

func (r *LinkRepository) RemoveLink(ctx context.Context, link domain.EntityLink, actorEmail string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM entity_links
		WHERE parent_type=$1 AND parent_id=$2 AND child_type=$3 AND child_id=$4
	`,
		link.ParentType,
		link.ParentID,
		link.ChildType,
		link.ChildID,
	)
	if err != nil {
		r.logger.Error("delete link failed",
			"parent_id", link.ParentID,
			"child_id", link.ChildID,
			"error", err,
		)
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	payload, _ := json.Marshal(map[string]any{
		"child_type": link.ChildType,
		"child_id":   link.ChildID,
	})
	if err := insertActivity(ctx, tx, link.ParentType, link.ParentID,
		domain.ActivityLinkRemoved, actorEmail, payload); err != nil {
		r.logger.Error("insert unlink activity failed", "error", err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit unlink failed", "error", err)
		return err
	}

	return nil
}

func (r *LinkRepository) ListLinks(ctx context.Context, parentType domain.EntityType, parentID uuid.UUID) ([]domain.EntityLink, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT parent_type, parent_id, child_type, child_id, created_at
		FROM entity_links
		WHERE parent_type=$1 AND parent_id=$2
		ORDER BY created_at ASC
	`, parentType, parentID)
	if err != nil {
		r.logger.Error("list links query failed",
			"parent_type", parentType,
			"parent_id", parentID,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EntityLink, 0, 8)
	for rows.Next() {
		var link domain.EntityLink
		if err := rows.Scan(
			&link.ParentType,
			&link.ParentID,
			&link.ChildType,
			&link.ChildID,
			&link.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
