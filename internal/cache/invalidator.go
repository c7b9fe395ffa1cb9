// SPDX-License-Identifier: Apache-2.0

// Package cache tracks per-entity invalidation versions in Redis.
// Mutating operations bump the version for the rows they touched; readers
// compare versions to decide whether cached views are stale. The
// invalidator is passed into operations as a collaborator, never imported
// as ambient state.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inv:"

type Invalidator struct {
	client *redis.Client
}

func New(redisURL string) (*Invalidator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Invalidator{client: client}, nil
}

// NewWithClient wraps an existing Redis client, mainly for tests.
func NewWithClient(client *redis.Client) *Invalidator {
	return &Invalidator{client: client}
}

func key(entityType domain.EntityType, id uuid.UUID) string {
	return keyPrefix + string(entityType) + ":" + id.String()
}

// Invalidate bumps the version for one entity. Mutations await this call
// before returning so a reader cannot observe a stale version after a
// confirmed write.
func (i *Invalidator) Invalidate(ctx context.Context, entityType domain.EntityType, id uuid.UUID) error {
	if err := i.client.Incr(ctx, key(entityType, id)).Err(); err != nil {
		return fmt.Errorf("invalidate %s/%s: %w", entityType, id, err)
	}
	metrics.IncCacheInvalidation()
	return nil
}

// Version returns the current invalidation version for an entity; 0 means
// it has never been invalidated.
func (i *Invalidator) Version(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (int64, error) {
	v, err := i.client.Get(ctx, key(entityType, id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version %s/%s: %w", entityType, id, err)
	}
	return v, nil
}

func (i *Invalidator) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

func (i *Invalidator) Close() error {
	return i.client.Close()
}
