// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ApprovalDecision is one immutable row in the per-entity approval log.
// Rows are never updated or deleted; the workflow state is derived from
// the full set for an entity.
type ApprovalDecision struct {
	ID            uuid.UUID  `json:"id"`
	EntityType    EntityType `json:"entity_type"`
	EntityID      uuid.UUID  `json:"entity_id"`
	Step          int        `json:"step"`
	ApproverEmail string     `json:"approver_email"`
	ApproverRole  string     `json:"approver_role"`
	Decision      Decision   `json:"decision"`
	Comments      string     `json:"comments,omitempty"`
	DecidedAt     time.Time  `json:"decided_at"`
}

type SubmitDecisionParams struct {
	EntityType    EntityType
	EntityID      uuid.UUID
	Step          int
	ApproverEmail string
	ApproverRole  string
	Decision      Decision
	Comments      string
}
