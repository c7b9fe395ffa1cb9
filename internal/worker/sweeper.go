// SPDX-License-Identifier: Apache-2.0

// Package worker runs the SLA sweeper: a background loop that escalates
// challenges whose review deadline passed without a decision.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/metrics"
	"github.com/civicflow/approvals/internal/notify"
	"github.com/google/uuid"
)

// systemActor is recorded on activities written by the sweeper so the
// feed distinguishes automatic escalations from manual ones.
const systemActor = "system:sla-sweeper"

type ChallengeClaimer interface {
	ClaimOverdueChallenge(ctx context.Context, actorEmail string) (domain.ChallengeReview, bool, error)
}

type ChainBuilder interface {
	Chain(ctx context.Context, challengeID uuid.UUID) ([]domain.EscalationChainEntry, error)
}

type Notifier interface {
	Fanout(ctx context.Context, chain []domain.EscalationChainEntry, base notify.Trigger)
}

type Invalidator interface {
	Invalidate(ctx context.Context, entityType domain.EntityType, id uuid.UUID) error
}

type Deps struct {
	Claimer  ChallengeClaimer
	Chains   ChainBuilder
	Notifier Notifier
	Cache    Invalidator
	Logger   *slog.Logger
	Interval time.Duration
}

type Sweeper struct {
	claimer  ChallengeClaimer
	chains   ChainBuilder
	notifier Notifier
	cache    Invalidator
	logger   *slog.Logger
	interval time.Duration
}

func New(deps Deps) *Sweeper {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := deps.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Sweeper{
		claimer:  deps.Claimer,
		chains:   deps.Chains,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		logger:   logger,
		interval: interval,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sla sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sla sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep escalates every currently overdue challenge, one claim at a
// time so concurrent sweepers split the backlog instead of racing on it.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ObserveSweepDuration(time.Since(start))
	}()

	for {
		found, err := s.ProcessOnce(ctx)
		if err != nil {
			s.logger.Error("sweep pass failed", "error", err)
			return
		}
		if !found {
			return
		}
	}
}

// ProcessOnce claims and escalates a single overdue challenge. found is
// false when nothing is due.
func (s *Sweeper) ProcessOnce(ctx context.Context) (bool, error) {
	review, found, err := s.claimer.ClaimOverdueChallenge(ctx, systemActor)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	s.logger.Info("overdue challenge claimed",
		"entity_id", review.ID,
		"review_due_at", review.ReviewDueAt,
	)
	metrics.IncEscalation()

	// The escalation is already committed; chain build and delivery
	// problems must not undo the claim, only get logged.
	chain, err := s.chains.Chain(ctx, review.ID)
	if err != nil {
		s.logger.Error("build escalation chain failed", "entity_id", review.ID, "error", err)
		return true, nil
	}

	if s.notifier != nil {
		s.notifier.Fanout(ctx, chain, notify.Trigger{
			Trigger:     notify.TriggerEscalationNotice,
			EntityType:  domain.EntityChallenge,
			EntityID:    review.ID,
			TriggeredBy: systemActor,
		})
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, domain.EntityChallenge, review.ID); err != nil {
			s.logger.Error("cache invalidation failed", "entity_id", review.ID, "error", err)
		}
	}

	s.logger.Info("challenge escalated by sweeper",
		"entity_id", review.ID,
		"chain_levels", len(chain),
	)
	return true, nil
}
