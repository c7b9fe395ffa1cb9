// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission strings carried in delegation_rules.permission_types.
const (
	PermChallengeReview  = "challenge_review"
	PermChallengeApprove = "challenge_approve"
	PermChallengeEdit    = "challenge_edit"
)

// DelegationRule is a time-bounded grant of permissions from one user to
// another, scoped to a single challenge or global when EntityID is nil.
type DelegationRule struct {
	ID              uuid.UUID  `json:"id"`
	DelegatorEmail  string     `json:"delegator_email"`
	DelegateEmail   string     `json:"delegate_email"`
	PermissionTypes []string   `json:"permission_types"`
	EntityType      EntityType `json:"entity_type"`
	EntityID        *uuid.UUID `json:"entity_id,omitempty"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DelegationAccess is the result of a point-in-time access check. The
// check is advisory only: a rule can expire between check and use.
type DelegationAccess struct {
	HasAccess   bool             `json:"has_access"`
	Permissions []string         `json:"permissions"`
	Delegations []DelegationRule `json:"delegations"`
}

type CreateDelegationParams struct {
	DelegatorEmail  string
	DelegateEmail   string
	PermissionTypes []string
	EntityType      EntityType
	EntityID        *uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
}
