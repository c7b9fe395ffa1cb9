// SPDX-License-Identifier: Apache-2.0

// Package delegation answers point-in-time questions about delegated
// permissions. The check is advisory: nothing stops a rule from expiring
// between check and use.
package delegation

import (
	"sort"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
)

// challengePermissions are the permission_types values that grant
// challenge-scoped access regardless of the rule's entity scope.
var challengePermissions = map[string]bool{
	domain.PermChallengeReview:  true,
	domain.PermChallengeApprove: true,
	domain.PermChallengeEdit:    true,
}

// ruleMatches reports whether a single rule grants the delegate access to
// the given challenge at the given instant. A nil challengeID asks about
// any challenge; a rule with nil EntityID is a global grant.
func ruleMatches(rule domain.DelegationRule, challengeID *uuid.UUID, now time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if now.Before(rule.StartDate) || now.After(rule.EndDate) {
		return false
	}

	for _, p := range rule.PermissionTypes {
		if challengePermissions[p] {
			return true
		}
	}

	if rule.EntityType != domain.EntityChallenge {
		return false
	}
	if rule.EntityID == nil {
		return true
	}
	return challengeID != nil && *rule.EntityID == *challengeID
}

// Resolve filters rules down to those active for the delegate and
// challenge at the given instant and deduplicates the granted permissions.
func Resolve(rules []domain.DelegationRule, challengeID *uuid.UUID, now time.Time) domain.DelegationAccess {
	access := domain.DelegationAccess{
		Permissions: []string{},
		Delegations: []domain.DelegationRule{},
	}

	seen := map[string]bool{}
	for _, rule := range rules {
		if !ruleMatches(rule, challengeID, now) {
			continue
		}
		access.HasAccess = true
		access.Delegations = append(access.Delegations, rule)
		for _, p := range rule.PermissionTypes {
			if !seen[p] {
				seen[p] = true
				access.Permissions = append(access.Permissions, p)
			}
		}
	}

	sort.Strings(access.Permissions)
	return access
}
