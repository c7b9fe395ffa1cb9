// SPDX-License-Identifier: Apache-2.0

package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
)

type stubChallengeReader struct {
	review domain.ChallengeReview
	err    error
}

func (s *stubChallengeReader) GetChallengeReview(_ context.Context, _ uuid.UUID) (domain.ChallengeReview, error) {
	return s.review, s.err
}

type stubAdminLister struct {
	admins []domain.UserRole
	err    error
	calls  int
}

func (s *stubAdminLister) ListActiveAdmins(_ context.Context, _ uuid.UUID) ([]domain.UserRole, error) {
	s.calls++
	return s.admins, s.err
}

func TestAssemble_ReviewerAndOwnerOnly(t *testing.T) {
	chain := Assemble(domain.ChallengeReview{
		ReviewAssignedTo: "r@x.com",
		OwnerEmail:       "o@x.com",
	}, nil)

	if len(chain) != 2 {
		t.Fatalf("expected 2 entries got %d", len(chain))
	}
	if chain[0].Level != domain.EscalationLevelReviewer || chain[0].Emails[0] != "r@x.com" {
		t.Fatalf("unexpected level 1 entry: %+v", chain[0])
	}
	if chain[1].Level != domain.EscalationLevelOwner || chain[1].Emails[0] != "o@x.com" {
		t.Fatalf("unexpected level 2 entry: %+v", chain[1])
	}
}

func TestAssemble_AllThreeLevels(t *testing.T) {
	chain := Assemble(domain.ChallengeReview{
		ReviewAssignedTo: "r@x.com",
		OwnerEmail:       "o@x.com",
	}, []string{"a@x.com"})

	if len(chain) != 3 {
		t.Fatalf("expected 3 entries got %d", len(chain))
	}
	third := chain[2]
	if third.Level != domain.EscalationLevelAdmins || third.Role != "Municipality Admin" {
		t.Fatalf("unexpected level 3 entry: %+v", third)
	}
	if len(third.Emails) != 1 || third.Emails[0] != "a@x.com" {
		t.Fatalf("unexpected level 3 emails: %v", third.Emails)
	}
}

func TestAssemble_EmptyChallenge(t *testing.T) {
	if chain := Assemble(domain.ChallengeReview{}, nil); len(chain) != 0 {
		t.Fatalf("expected empty chain got %+v", chain)
	}
	// Whitespace-only fields count as empty.
	if chain := Assemble(domain.ChallengeReview{ReviewAssignedTo: "  ", OwnerEmail: "\t"}, nil); len(chain) != 0 {
		t.Fatalf("expected empty chain for blank fields got %+v", chain)
	}
}

func TestAssemble_SkipsMissingLevels(t *testing.T) {
	chain := Assemble(domain.ChallengeReview{OwnerEmail: "o@x.com"}, []string{"a@x.com", "b@x.com"})

	if len(chain) != 2 {
		t.Fatalf("expected 2 entries got %d", len(chain))
	}
	if chain[0].Level != domain.EscalationLevelOwner {
		t.Fatalf("expected owner first when reviewer missing, got %+v", chain[0])
	}
	if len(chain[1].Emails) != 2 {
		t.Fatalf("expected both admin emails, got %v", chain[1].Emails)
	}
}

func TestBuilder_SkipsAdminLookupWithoutMunicipality(t *testing.T) {
	admins := &stubAdminLister{admins: []domain.UserRole{{Email: "a@x.com"}}}
	builder := NewBuilder(&stubChallengeReader{
		review: domain.ChallengeReview{
			ReviewAssignedTo: "r@x.com",
			OwnerEmail:       "o@x.com",
			MunicipalityID:   nil,
		},
	}, admins)

	chain, err := builder.Chain(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("chain failed: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected 2 entries got %d", len(chain))
	}
	if admins.calls != 0 {
		t.Fatal("expected admin lookup to be skipped when municipality is unset")
	}
}

func TestBuilder_IncludesMunicipalityAdmins(t *testing.T) {
	muniID := uuid.New()
	admins := &stubAdminLister{admins: []domain.UserRole{{Email: "a@x.com"}}}
	builder := NewBuilder(&stubChallengeReader{
		review: domain.ChallengeReview{
			ReviewAssignedTo: "r@x.com",
			OwnerEmail:       "o@x.com",
			MunicipalityID:   &muniID,
		},
	}, admins)

	chain, err := builder.Chain(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("chain failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 entries got %d", len(chain))
	}
	if chain[2].Emails[0] != "a@x.com" {
		t.Fatalf("unexpected admin emails: %v", chain[2].Emails)
	}
}

func TestBuilder_PropagatesErrors(t *testing.T) {
	readErr := errors.New("challenge lookup failed")
	builder := NewBuilder(&stubChallengeReader{err: readErr}, &stubAdminLister{})
	if _, err := builder.Chain(context.Background(), uuid.New()); !errors.Is(err, readErr) {
		t.Fatalf("expected challenge read error got %v", err)
	}

	muniID := uuid.New()
	adminErr := errors.New("admin lookup failed")
	builder = NewBuilder(&stubChallengeReader{
		review: domain.ChallengeReview{MunicipalityID: &muniID},
	}, &stubAdminLister{err: adminErr})
	if _, err := builder.Chain(context.Background(), uuid.New()); !errors.Is(err, adminErr) {
		t.Fatalf("expected admin list error got %v", err)
	}
}
