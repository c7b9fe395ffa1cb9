// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/civicflow/approvals/internal/auth"
	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/notify"
	"github.com/civicflow/approvals/internal/repository"
	"github.com/google/uuid"
)

type EntityStore interface {
	CreateEntity(ctx context.Context, params repository.CreateEntityParams) (domain.EntityRecord, error)
	GetEntity(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (domain.EntityRecord, error)
	MarkEscalated(ctx context.Context, challengeID uuid.UUID, actorEmail string) error
}

type DecisionStore interface {
	SubmitDecision(ctx context.Context, params domain.SubmitDecisionParams) (domain.ApprovalDecision, error)
	ListDecisions(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID) ([]domain.ApprovalDecision, error)
}

type EscalationChainBuilder interface {
	Chain(ctx context.Context, challengeID uuid.UUID) ([]domain.EscalationChainEntry, error)
}

type DelegationStore interface {
	CreateDelegation(ctx context.Context, params domain.CreateDelegationParams) (domain.DelegationRule, error)
	DeactivateDelegation(ctx context.Context, id uuid.UUID, actorEmail string) error
	CheckAccess(ctx context.Context, delegateEmail string, challengeID *uuid.UUID) (domain.DelegationAccess, error)
}

type LinkStore interface {
	AddLink(ctx context.Context, link domain.EntityLink, actorEmail string) error
	RemoveLink(ctx context.Context, link domain.EntityLink, actorEmail string) error
	ListLinks(ctx context.Context, parentType domain.EntityType, parentID uuid.UUID) ([]domain.EntityLink, error)
}

type ActivityLister interface {
	ListActivities(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int, beforeSeq int64) ([]domain.ActivityRecord, int64, error)
}

type TokenAdmin interface {
	CreateToken(ctx context.Context, params domain.CreateTokenParams) (domain.CreatedToken, error)
	ListTokens(ctx context.Context) ([]domain.TokenRecord, error)
	RevokeToken(ctx context.Context, id uuid.UUID) error
}

type UserRoleAdmin interface {
	CreateUserRole(ctx context.Context, params domain.CreateUserRoleParams) (domain.UserRole, error)
}

type ActorResolver interface {
	ResolveToken(ctx context.Context, bearerToken string) (auth.Actor, bool, error)
}

// CacheInvalidator bumps the cache version for an entity after a mutation.
// Invalidation is awaited: a mutation does not report success until the
// stale version is gone.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, entityType domain.EntityType, id uuid.UUID) error
}

type Notifier interface {
	Send(ctx context.Context, trigger notify.Trigger)
	Fanout(ctx context.Context, chain []domain.EscalationChainEntry, base notify.Trigger)
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
