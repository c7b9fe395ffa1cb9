package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityChallenge EntityType = "challenge"
	EntityPilot     EntityType = "pilot"
	EntityProgram   EntityType = "program"
	EntitySandbox   EntityType = "sandbox"
)

type EntityStatus string

const (
	StatusDraft       EntityStatus = "DRAFT"
	StatusUnderReview EntityStatus = "UNDER_REVIEW"
	StatusApproved    EntityStatus = "APPROVED"
	StatusRejected    EntityStatus = "REJECTED"
)

// ParseEntityType validates an externally supplied entity type string.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(raw) {
	case EntityChallenge, EntityPilot, EntityProgram, EntitySandbox:
		return EntityType(raw), nil
	default:
		return "", ErrUnknownEntityType
	}
}

type EntityRecord struct {
	ID             uuid.UUID    `json:"id"`
	Type           EntityType   `json:"type"`
	Title          string       `json:"title"`
	Status         EntityStatus `json:"status"`
	OwnerEmail     string       `json:"owner_email"`
	MunicipalityID *uuid.UUID   `json:"municipality_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ChallengeReview carries the fields the escalation chain and the SLA
// sweeper read off a challenge row.
type ChallengeReview struct {
	ID               uuid.UUID  `json:"id"`
	ReviewAssignedTo string     `json:"review_assigned_to"`
	OwnerEmail       string     `json:"owner_email"`
	MunicipalityID   *uuid.UUID `json:"municipality_id,omitempty"`
	ReviewDueAt      *time.Time `json:"review_due_at,omitempty"`
	EscalatedAt      *time.Time `json:"escalated_at,omitempty"`
}

type EntityLink struct {
	ParentType EntityType `json:"parent_type"`
	ParentID   uuid.UUID  `json:"parent_id"`
	ChildType  EntityType `json:"child_type"`
	ChildID    uuid.UUID  `json:"child_id"`
	CreatedAt  time.Time  `json:"created_at"`
}
