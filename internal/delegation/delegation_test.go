// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"testing"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
)

var now = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func activeRule() domain.DelegationRule {
	return domain.DelegationRule{
		ID:              uuid.New(),
		DelegatorEmail:  "lead@city.gov",
		DelegateEmail:   "deputy@city.gov",
		PermissionTypes: []string{domain.PermChallengeReview},
		EntityType:      domain.EntityChallenge,
		StartDate:       now.Add(-24 * time.Hour),
		EndDate:         now.Add(24 * time.Hour),
		IsActive:        true,
	}
}

func TestResolve_ActiveWindowGrantsAccess(t *testing.T) {
	access := Resolve([]domain.DelegationRule{activeRule()}, nil, now)

	if !access.HasAccess {
		t.Fatal("expected access for active in-window rule")
	}
	if len(access.Permissions) != 1 || access.Permissions[0] != domain.PermChallengeReview {
		t.Fatalf("unexpected permissions: %v", access.Permissions)
	}
	if len(access.Delegations) != 1 {
		t.Fatalf("expected 1 matching delegation got %d", len(access.Delegations))
	}
}

func TestResolve_FutureStartDeniesAccess(t *testing.T) {
	rule := activeRule()
	rule.StartDate = now.Add(time.Hour)
	rule.EndDate = now.Add(48 * time.Hour)

	if access := Resolve([]domain.DelegationRule{rule}, nil, now); access.HasAccess {
		t.Fatal("expected no access when start_date is in the future, even with is_active=true")
	}
}

func TestResolve_PastEndDeniesAccess(t *testing.T) {
	rule := activeRule()
	rule.StartDate = now.Add(-48 * time.Hour)
	rule.EndDate = now.Add(-time.Hour)

	if access := Resolve([]domain.DelegationRule{rule}, nil, now); access.HasAccess {
		t.Fatal("expected no access when end_date is in the past")
	}
}

func TestResolve_InactiveDeniesAccess(t *testing.T) {
	rule := activeRule()
	rule.IsActive = false

	if access := Resolve([]domain.DelegationRule{rule}, nil, now); access.HasAccess {
		t.Fatal("expected no access for inactive rule inside its window")
	}
}

func TestResolve_EntityScope(t *testing.T) {
	target := uuid.New()
	other := uuid.New()

	scoped := activeRule()
	scoped.PermissionTypes = []string{"sandbox_edit"} // not challenge-scoped
	scoped.EntityID = &target

	if access := Resolve([]domain.DelegationRule{scoped}, &target, now); !access.HasAccess {
		t.Fatal("expected access for rule scoped to the queried challenge")
	}
	if access := Resolve([]domain.DelegationRule{scoped}, &other, now); access.HasAccess {
		t.Fatal("expected no access for rule scoped to a different challenge")
	}

	global := activeRule()
	global.PermissionTypes = []string{"sandbox_edit"}
	global.EntityID = nil

	if access := Resolve([]domain.DelegationRule{global}, &other, now); !access.HasAccess {
		t.Fatal("expected access for global challenge grant")
	}
}

func TestResolve_ChallengePermissionIgnoresScope(t *testing.T) {
	other := uuid.New()
	rule := activeRule()
	rule.EntityType = domain.EntitySandbox // scope mismatch, permission type still wins

	if access := Resolve([]domain.DelegationRule{rule}, &other, now); !access.HasAccess {
		t.Fatal("expected challenge-scoped permission type to grant access")
	}
}

func TestResolve_DeduplicatesPermissions(t *testing.T) {
	a := activeRule()
	a.PermissionTypes = []string{domain.PermChallengeReview, domain.PermChallengeEdit}
	b := activeRule()
	b.PermissionTypes = []string{domain.PermChallengeEdit, domain.PermChallengeApprove}

	access := Resolve([]domain.DelegationRule{a, b}, nil, now)

	if len(access.Permissions) != 3 {
		t.Fatalf("expected 3 deduplicated permissions got %v", access.Permissions)
	}
	if len(access.Delegations) != 2 {
		t.Fatalf("expected both rules to match, got %d", len(access.Delegations))
	}
}

func TestResolve_EmptyInput(t *testing.T) {
	access := Resolve(nil, nil, now)
	if access.HasAccess {
		t.Fatal("expected no access for empty rule set")
	}
	if access.Permissions == nil || access.Delegations == nil {
		t.Fatal("expected empty, non-nil slices for JSON encoding")
	}
}
