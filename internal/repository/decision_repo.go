// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/workflow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DecisionRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDecisionRepository(pool *pgxpool.Pool, logger *slog.Logger) *DecisionRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DecisionRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *DecisionRepository) ListDecisions(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID) ([]domain.ApprovalDecision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_type, entity_id, step, approver_email, approver_role,
		       decision, comments, decided_at
		FROM approval_decisions
		WHERE entity_type=$1 AND entity_id=$2
		ORDER BY step ASC
	`, entityType, entityID)
	if err != nil {
		r.logger.Error("list decisions query failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ApprovalDecision, 0, 4)
	for rows.Next() {
		var d domain.ApprovalDecision
		if err := rows.Scan(
			&d.ID,
			&d.EntityType,
			&d.EntityID,
			&d.Step,
			&d.ApproverEmail,
			&d.ApproverRole,
			&d.Decision,
			&d.Comments,
			&d.DecidedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// SubmitDecision records one approval or rejection and applies its side
// effects in a single transaction: the decision row, the parent status
// flip (REJECTED on any rejection, APPROVED when the final step approves),
// and the activity rows. A failure anywhere rolls back everything, so a
// decision can never be recorded with its status flip lost.
func (r *DecisionRepository) SubmitDecision(ctx context.Context, params domain.SubmitDecisionParams) (domain.ApprovalDecision, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return domain.ApprovalDecision{}, err
	}
	defer tx.Rollback(ctx)

	// Lock the entity row for the duration of the submission so two
	// concurrent decisions for the same entity serialize.
	var status domain.EntityStatus
	if err := tx.QueryRow(ctx, `
		SELECT status FROM entities
		WHERE entity_type=$1 AND id=$2
		FOR UPDATE
	`, params.EntityType, params.EntityID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ApprovalDecision{}, err
		}
		r.logger.Error("lock entity failed",
			"entity_type", params.EntityType,
			"entity_id", params.EntityID,
			"error", err,
		)
		return domain.ApprovalDecision{}, err
	}

	decisions, err := listDecisionsTx(ctx, tx, params.EntityType, params.EntityID)
	if err != nil {
		r.logger.Error("read decision history failed",
			"entity_type", params.EntityType,
			"entity_id", params.EntityID,
			"error", err,
		)
		return domain.ApprovalDecision{}, err
	}

	state, err := workflow.Evaluate(params.EntityType, decisions, params.ApproverRole)
	if err != nil {
		return domain.ApprovalDecision{}, err
	}
	if err := workflow.ValidateSubmission(state, params.Step, params.ApproverRole, params.Decision); err != nil {
		return domain.ApprovalDecision{}, err
	}

	record := domain.ApprovalDecision{
		ID:            uuid.New(),
		EntityType:    params.EntityType,
		EntityID:      params.EntityID,
		Step:          params.Step,
		ApproverEmail: params.ApproverEmail,
		ApproverRole:  params.ApproverRole,
		Decision:      params.Decision,
		Comments:      params.Comments,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO approval_decisions
		    (id, entity_type, entity_id, step, approver_email, approver_role,
		     decision, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING decided_at
	`,
		record.ID,
		record.EntityType,
		record.EntityID,
		record.Step,
		record.ApproverEmail,
		record.ApproverRole,
		record.Decision,
		record.Comments,
	).Scan(&record.DecidedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ApprovalDecision{}, domain.ErrStepAlreadyDecided
		}
		r.logger.Error("insert decision failed",
			"entity_type", params.EntityType,
			"entity_id", params.EntityID,
			"step", params.Step,
			"error", err,
		)
		return domain.ApprovalDecision{}, err
	}

	payload, _ := json.Marshal(map[string]any{
		"step":     record.Step,
		"decision": record.Decision,
	})
	if err := insertActivity(ctx, tx, params.EntityType, params.EntityID,
		domain.ActivityDecisionSubmitted, params.ApproverEmail, payload); err != nil {
		r.logger.Error("insert decision activity failed",
			"entity_id", params.EntityID,
			"error", err,
		)
		return domain.ApprovalDecision{}, err
	}

	newStatus, changed := nextEntityStatus(state, params.Decision)
	if changed {
		if _, err := tx.Exec(ctx, `
			UPDATE entities SET status=$3, updated_at=NOW()
			WHERE entity_type=$1 AND id=$2
		`, params.EntityType, params.EntityID, newStatus); err != nil {
			r.logger.Error("update entity status failed",
				"entity_id", params.EntityID,
				"status", newStatus,
				"error", err,
			)
			return domain.ApprovalDecision{}, err
		}

		statusPayload, _ := json.Marshal(map[string]any{
			"from": status,
			"to":   newStatus,
		})
		if err := insertActivity(ctx, tx, params.EntityType, params.EntityID,
			domain.ActivityStatusChanged, params.ApproverEmail, statusPayload); err != nil {
			r.logger.Error("insert status activity failed",
				"entity_id", params.EntityID,
				"error", err,
			)
			return domain.ApprovalDecision{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit decision failed",
			"entity_id", params.EntityID,
			"error", err,
		)
		return domain.ApprovalDecision{}, err
	}

	r.logger.Info("decision recorded",
		"entity_type", params.EntityType,
		"entity_id", params.EntityID,
		"step", params.Step,
		"decision", params.Decision,
	)

	return record, nil
}

// nextEntityStatus decides the parent status side effect of a decision
// that was just validated against the given pre-submission state.
func nextEntityStatus(state workflow.State, decision domain.Decision) (domain.EntityStatus, bool) {
	if decision == domain.DecisionRejected {
		return domain.StatusRejected, true
	}
	if state.CurrentStep == len(state.Workflow) {
		// Final step approval completes the workflow.
		return domain.StatusApproved, true
	}
	return "", false
}

func listDecisionsTx(ctx context.Context, tx pgx.Tx, entityType domain.EntityType, entityID uuid.UUID) ([]domain.ApprovalDecision, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, entity_type, entity_id, step, approver_email, approver_role,
		       decision, comments, decided_at
		FROM approval_decisions
		WHERE entity_type=$1 AND entity_id=$2
		ORDER BY step ASC
	`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ApprovalDecision, 0, 4)
	for rows.Next() {
		var d domain.ApprovalDecision
		if err := rows.Scan(
			&d.ID,
			&d.EntityType,
			&d.EntityID,
			&d.Step,
			&d.ApproverEmail,
			&d.ApproverRole,
			&d.Decision,
			&d.Comments,
			&d.DecidedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
