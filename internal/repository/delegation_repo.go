// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/civicflow/approvals/internal/delegation"
	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DelegationRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDelegationRepository(pool *pgxpool.Pool, logger *slog.Logger) *DelegationRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DelegationRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *DelegationRepository) CreateDelegation(ctx context.Context, params domain.CreateDelegationParams) (domain.DelegationRule, error) {
	rule := domain.DelegationRule{
		ID:              uuid.New(),
		DelegatorEmail:  params.DelegatorEmail,
		DelegateEmail:   params.DelegateEmail,
		PermissionTypes: params.PermissionTypes,
		EntityType:      params.EntityType,
		EntityID:        params.EntityID,
		StartDate:       params.StartDate,
		EndDate:         params.EndDate,
		IsActive:        true,
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return domain.DelegationRule{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO delegation_rules
		    (id, delegator_email, delegate_email, permission_types,
		     entity_type, entity_id, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING created_at
	`,
		rule.ID,
		rule.DelegatorEmail,
		rule.DelegateEmail,
		rule.PermissionTypes,
		rule.EntityType,
		rule.EntityID,
		rule.StartDate,
		rule.EndDate,
	).Scan(&rule.CreatedAt)
	if err != nil {
		r.logger.Error("insert delegation failed",
			"delegator", rule.DelegatorEmail,
			"delegate", rule.DelegateEmail,
			"error", err,
		)
		return domain.DelegationRule{}, err
	}

	if rule.EntityID != nil {
		payload, _ := json.Marshal(map[string]any{
			"delegate":    rule.DelegateEmail,
			"permissions": rule.PermissionTypes,
		})
		if err := insertActivity(ctx, tx, rule.EntityType, *rule.EntityID,
			domain.ActivityDelegationCreated, rule.DelegatorEmail, payload); err != nil {
			r.logger.Error("insert delegation activity failed", "error", err)
			return domain.DelegationRule{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit delegation failed", "error", err)
		return domain.DelegationRule{}, err
	}

	r.logger.Info("delegation created",
		"delegation_id", rule.ID,
		"delegator", rule.DelegatorEmail,
		"delegate", rule.DelegateEmail,
	)
	return rule, nil
}

func (r *DelegationRepository) DeactivateDelegation(ctx context.Context, id uuid.UUID, actorEmail string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	var entityType domain.EntityType
	var entityID *uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE delegation_rules
		SET is_active = FALSE
		WHERE id = $1 AND is_active
		RETURNING entity_type, entity_id
	`, id).Scan(&entityType, &entityID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return pgx.ErrNoRows
		}
		r.logger.Error("deactivate delegation failed", "delegation_id", id, "error", err)
		return err
	}

	if entityID != nil {
		payload, _ := json.Marshal(map[string]any{"delegation_id": id})
		if err := insertActivity(ctx, tx, entityType, *entityID,
			domain.ActivityDelegationRevoked, actorEmail, payload); err != nil {
			r.logger.Error("insert revoke activity failed", "error", err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit deactivate failed", "delegation_id", id, "error", err)
		return err
	}

	r.logger.Info("delegation deactivated", "delegation_id", id)
	return nil
}

// ListForDelegate returns every rule naming the delegate, active or not.
// Window and scope filtering is delegation.Resolve's job.
func (r *DelegationRepository) ListForDelegate(ctx context.Context, delegateEmail string) ([]domain.DelegationRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, delegator_email, delegate_email, permission_types,
		       entity_type, entity_id, start_date, end_date, is_active, created_at
		FROM delegation_rules
		WHERE delegate_email = $1
		ORDER BY created_at DESC
	`, delegateEmail)
	if err != nil {
		r.logger.Error("list delegations query failed",
			"delegate", delegateEmail,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DelegationRule, 0, 4)
	for rows.Next() {
		var rule domain.DelegationRule
		if err := rows.Scan(
			&rule.ID,
			&rule.DelegatorEmail,
			&rule.DelegateEmail,
			&rule.PermissionTypes,
			&rule.EntityType,
			&rule.EntityID,
			&rule.StartDate,
			&rule.EndDate,
			&rule.IsActive,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// CheckAccess is the point-in-time delegation check for one delegate and
// optional challenge.
func (r *DelegationRepository) CheckAccess(ctx context.Context, delegateEmail string, challengeID *uuid.UUID) (domain.DelegationAccess, error) {
	rules, err := r.ListForDelegate(ctx, delegateEmail)
	if err != nil {
		return domain.DelegationAccess{}, err
	}
	return delegation.Resolve(rules, challengeID, time.Now().UTC()), nil
}
