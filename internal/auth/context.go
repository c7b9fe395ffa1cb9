// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"

	"github.com/google/uuid"
)

type actorContextKey struct{}

var ctxActorKey actorContextKey

// Actor is the authenticated user a request acts as, resolved from its
// bearer token.
type Actor struct {
	TokenID           uuid.UUID
	Email             string
	Role              string
	MunicipalityID    *uuid.UUID
	MaxRequestsPerMin int
}

// WithActor stores the resolved acting user on the request context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey, actor)
}

// ActorFromContext reads the acting user from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	v := ctx.Value(ctxActorKey)
	actor, ok := v.(Actor)
	if !ok || actor.Email == "" {
		return Actor{}, false
	}
	return actor, true
}
