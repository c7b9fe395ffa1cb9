// SPDX-License-Identifier: Apache-2.0

// Package escalation derives the notification fan-out list for a
// challenge: assigned reviewer first, then owner, then municipality
// admins. The chain is recomputed on every read and never persisted.
package escalation

import (
	"context"
	"strings"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
)

type ChallengeReader interface {
	GetChallengeReview(ctx context.Context, id uuid.UUID) (domain.ChallengeReview, error)
}

type AdminLister interface {
	ListActiveAdmins(ctx context.Context, municipalityID uuid.UUID) ([]domain.UserRole, error)
}

type Builder struct {
	challenges ChallengeReader
	admins     AdminLister
}

func NewBuilder(challenges ChallengeReader, admins AdminLister) *Builder {
	return &Builder{challenges: challenges, admins: admins}
}

// Chain builds the escalation chain for one challenge. Levels are only
// present when the underlying field or lookup yields data; a challenge
// with no reviewer, no owner, and no municipality yields an empty chain.
func (b *Builder) Chain(ctx context.Context, challengeID uuid.UUID) ([]domain.EscalationChainEntry, error) {
	review, err := b.challenges.GetChallengeReview(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	var adminEmails []string
	if review.MunicipalityID != nil {
		admins, err := b.admins.ListActiveAdmins(ctx, *review.MunicipalityID)
		if err != nil {
			return nil, err
		}
		for _, a := range admins {
			adminEmails = append(adminEmails, a.Email)
		}
	}

	return Assemble(review, adminEmails), nil
}

// Assemble is the pure chain construction over already-fetched data.
func Assemble(review domain.ChallengeReview, adminEmails []string) []domain.EscalationChainEntry {
	chain := make([]domain.EscalationChainEntry, 0, 3)

	if reviewer := strings.TrimSpace(review.ReviewAssignedTo); reviewer != "" {
		chain = append(chain, domain.EscalationChainEntry{
			Level:  domain.EscalationLevelReviewer,
			Role:   "Assigned Reviewer",
			Emails: []string{reviewer},
		})
	}

	if owner := strings.TrimSpace(review.OwnerEmail); owner != "" {
		chain = append(chain, domain.EscalationChainEntry{
			Level:  domain.EscalationLevelOwner,
			Role:   "Challenge Owner",
			Emails: []string{owner},
		})
	}

	if len(adminEmails) > 0 {
		chain = append(chain, domain.EscalationChainEntry{
			Level:  domain.EscalationLevelAdmins,
			Role:   "Municipality Admin",
			Emails: adminEmails,
		})
	}

	return chain
}
