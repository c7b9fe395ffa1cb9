// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity feed event types.
const (
	ActivityDecisionSubmitted = "DECISION_SUBMITTED"
	ActivityStatusChanged     = "STATUS_CHANGED"
	ActivityEscalated         = "ESCALATED"
	ActivityLinkAdded         = "LINK_ADDED"
	ActivityLinkRemoved       = "LINK_REMOVED"
	ActivityDelegationCreated = "DELEGATION_CREATED"
	ActivityDelegationRevoked = "DELEGATION_REVOKED"
)

// ActivityRecord is an append-only audit row written alongside every
// mutation for timeline display.
type ActivityRecord struct {
	ID         uuid.UUID       `json:"id"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Type       string          `json:"type"`
	ActorEmail string          `json:"actor_email"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
