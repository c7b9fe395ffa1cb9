// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// All entity types share one entities table keyed by (entity_type, id).
// Callers go through domain.ParseEntityType, so no table or column name is
// ever derived from request strings.
type EntityRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEntityRepository(pool *pgxpool.Pool, logger *slog.Logger) *EntityRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EntityRepository{
		pool:   pool,
		logger: logger,
	}
}

type CreateEntityParams struct {
	Type             domain.EntityType
	Title            string
	OwnerEmail       string
	ReviewAssignedTo string
	MunicipalityID   *uuid.UUID
	ReviewDueAt      *time.Time
}

func (r *EntityRepository) CreateEntity(ctx context.Context, params CreateEntityParams) (domain.EntityRecord, error) {
	entityID := uuid.New()

	var record domain.EntityRecord
	record.ID = entityID
	record.Type = params.Type
	record.Title = params.Title
	record.OwnerEmail = params.OwnerEmail
	record.MunicipalityID = params.MunicipalityID
	record.Status = domain.StatusUnderReview

	err := r.pool.QueryRow(ctx, `
		INSERT INTO entities
		    (id, entity_type, title, status, owner_email,
		     review_assigned_to, municipality_id, review_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`,
		entityID,
		params.Type,
		params.Title,
		domain.StatusUnderReview,
		params.OwnerEmail,
		params.ReviewAssignedTo,
		params.MunicipalityID,
		params.ReviewDueAt,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		r.logger.Error("insert entity failed",
			"entity_type", params.Type,
			"entity_id", entityID,
			"error", err,
		)
		return domain.EntityRecord{}, err
	}

	r.logger.Info("entity created",
		"entity_type", params.Type,
		"entity_id", entityID,
	)
	return record, nil
}

func (r *EntityRepository) GetEntity(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (domain.EntityRecord, error) {
	var record domain.EntityRecord

	err := r.pool.QueryRow(ctx, `
		SELECT id, entity_type, title, status, owner_email, municipality_id,
		       created_at, updated_at
		FROM entities
		WHERE entity_type=$1 AND id=$2
	`, entityType, id).Scan(
		&record.ID,
		&record.Type,
		&record.Title,
		&record.Status,
		&record.OwnerEmail,
		&record.MunicipalityID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return domain.EntityRecord{}, err
	}

	return record, nil
}

// MarkEscalated stamps escalated_at on a challenge and records the audit
// row in the same transaction. Already-escalated challenges are stamped
// again; the caller decides whether a re-escalation makes sense.
func (r *EntityRepository) MarkEscalated(ctx context.Context, challengeID uuid.UUID, actorEmail string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE entities
		SET escalated_at = now(), updated_at = now()
		WHERE entity_type=$1 AND id=$2
	`, domain.EntityChallenge, challengeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}

	err = insertActivity(ctx, tx, domain.EntityChallenge, challengeID,
		domain.ActivityEscalated, actorEmail, nil)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	r.logger.Info("challenge escalated",
		"entity_id", challengeID,
		"actor", actorEmail,
	)
	return nil
}

// ClaimOverdueChallenge picks one challenge whose review deadline has
// passed without an escalation, stamps it, and writes the audit row.
// FOR UPDATE SKIP LOCKED lets concurrent sweepers claim distinct rows.
// found is false when no challenge is due.
func (r *EntityRepository) ClaimOverdueChallenge(ctx context.Context, actorEmail string) (domain.ChallengeReview, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ChallengeReview{}, false, err
	}
	defer tx.Rollback(ctx)

	var review domain.ChallengeReview
	err = tx.QueryRow(ctx, `
		SELECT id, review_assigned_to, owner_email, municipality_id,
		       review_due_at, escalated_at
		FROM entities
		WHERE entity_type=$1
		  AND status=$2
		  AND review_due_at IS NOT NULL
		  AND review_due_at < now()
		  AND escalated_at IS NULL
		ORDER BY review_due_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, domain.EntityChallenge, domain.StatusUnderReview).Scan(
		&review.ID,
		&review.ReviewAssignedTo,
		&review.OwnerEmail,
		&review.MunicipalityID,
		&review.ReviewDueAt,
		&review.EscalatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChallengeReview{}, false, nil
		}
		return domain.ChallengeReview{}, false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE entities
		SET escalated_at = now(), updated_at = now()
		WHERE entity_type=$1 AND id=$2
	`, domain.EntityChallenge, review.ID)
	if err != nil {
		return domain.ChallengeReview{}, false, err
	}

	err = insertActivity(ctx, tx, domain.EntityChallenge, review.ID,
		domain.ActivityEscalated, actorEmail, nil)
	if err != nil {
		return domain.ChallengeReview{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ChallengeReview{}, false, err
	}

	return review, true, nil
}

// GetChallengeReview reads the fields the escalation chain is built from.
func (r *EntityRepository) GetChallengeReview(ctx context.Context, id uuid.UUID) (domain.ChallengeReview, error) {
	var review domain.ChallengeReview

	err := r.pool.QueryRow(ctx, `
		SELECT id, review_assigned_to, owner_email, municipality_id,
		       review_due_at, escalated_at
		FROM entities
		WHERE entity_type=$1 AND id=$2
	`, domain.EntityChallenge, id).Scan(
		&review.ID,
		&review.ReviewAssignedTo,
		&review.OwnerEmail,
		&review.MunicipalityID,
		&review.ReviewDueAt,
		&review.EscalatedAt,
	)
	if err != nil {
		return domain.ChallengeReview{}, err
	}

	return review, nil
}
