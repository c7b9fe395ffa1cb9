// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/civicflow/approvals/internal/auth"
	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/notify"
	"github.com/civicflow/approvals/internal/repository"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockEntityStore struct {
	record       domain.EntityRecord
	getErr       error
	createErr    error
	escalateErr  error
	createCalled bool
	escalatedID  uuid.UUID
}

func (m *mockEntityStore) CreateEntity(_ context.Context, params repository.CreateEntityParams) (domain.EntityRecord, error) {
	m.createCalled = true
	if m.createErr != nil {
		return domain.EntityRecord{}, m.createErr
	}
	record := m.record
	record.Type = params.Type
	record.Title = params.Title
	record.OwnerEmail = params.OwnerEmail
	return record, nil
}

func (m *mockEntityStore) GetEntity(context.Context, domain.EntityType, uuid.UUID) (domain.EntityRecord, error) {
	if m.getErr != nil {
		return domain.EntityRecord{}, m.getErr
	}
	return m.record, nil
}

func (m *mockEntityStore) MarkEscalated(_ context.Context, challengeID uuid.UUID, _ string) error {
	if m.escalateErr != nil {
		return m.escalateErr
	}
	m.escalatedID = challengeID
	return nil
}

type mockDecisionStore struct {
	decision  domain.ApprovalDecision
	submitErr error
	decisions []domain.ApprovalDecision
	listErr   error

	gotParams domain.SubmitDecisionParams
}

func (m *mockDecisionStore) SubmitDecision(_ context.Context, params domain.SubmitDecisionParams) (domain.ApprovalDecision, error) {
	m.gotParams = params
	if m.submitErr != nil {
		return domain.ApprovalDecision{}, m.submitErr
	}
	return m.decision, nil
}

func (m *mockDecisionStore) ListDecisions(context.Context, domain.EntityType, uuid.UUID) ([]domain.ApprovalDecision, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.decisions, nil
}

type mockChainBuilder struct {
	chain []domain.EscalationChainEntry
	err   error
}

func (m *mockChainBuilder) Chain(context.Context, uuid.UUID) ([]domain.EscalationChainEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.chain, nil
}

type mockDelegationStore struct {
	rule          domain.DelegationRule
	createErr     error
	deactivateErr error
	access        domain.DelegationAccess
	accessErr     error

	gotDelegator   string
	gotChallengeID *uuid.UUID
}

func (m *mockDelegationStore) CreateDelegation(_ context.Context, params domain.CreateDelegationParams) (domain.DelegationRule, error) {
	m.gotDelegator = params.DelegatorEmail
	if m.createErr != nil {
		return domain.DelegationRule{}, m.createErr
	}
	rule := m.rule
	rule.DelegateEmail = params.DelegateEmail
	return rule, nil
}

func (m *mockDelegationStore) DeactivateDelegation(context.Context, uuid.UUID, string) error {
	return m.deactivateErr
}

func (m *mockDelegationStore) CheckAccess(_ context.Context, _ string, challengeID *uuid.UUID) (domain.DelegationAccess, error) {
	m.gotChallengeID = challengeID
	if m.accessErr != nil {
		return domain.DelegationAccess{}, m.accessErr
	}
	return m.access, nil
}

type mockLinkStore struct {
	addErr    error
	removeErr error
	links     []domain.EntityLink
	listErr   error

	gotLink domain.EntityLink
}

func (m *mockLinkStore) AddLink(_ context.Context, link domain.EntityLink, _ string) error {
	m.gotLink = link
	return m.addErr
}

func (m *mockLinkStore) RemoveLink(_ context.Context, link domain.EntityLink, _ string) error {
	m.gotLink = link
	return m.removeErr
}

func (m *mockLinkStore) ListLinks(context.Context, domain.EntityType, uuid.UUID) ([]domain.EntityLink, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.links, nil
}

type mockActivityLister struct {
	activities []domain.ActivityRecord
	nextBefore int64
	err        error

	gotLimit  int
	gotBefore int64
}

func (m *mockActivityLister) ListActivities(_ context.Context, _ domain.EntityType, _ uuid.UUID, limit int, beforeSeq int64) ([]domain.ActivityRecord, int64, error) {
	m.gotLimit = limit
	m.gotBefore = beforeSeq
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.activities, m.nextBefore, nil
}

type mockTokenAdmin struct {
	created   domain.CreatedToken
	createErr error
	tokens    []domain.TokenRecord
	revokeErr error
}

func (m *mockTokenAdmin) CreateToken(context.Context, domain.CreateTokenParams) (domain.CreatedToken, error) {
	if m.createErr != nil {
		return domain.CreatedToken{}, m.createErr
	}
	return m.created, nil
}

func (m *mockTokenAdmin) ListTokens(context.Context) ([]domain.TokenRecord, error) {
	return m.tokens, nil
}

func (m *mockTokenAdmin) RevokeToken(context.Context, uuid.UUID) error {
	return m.revokeErr
}

type mockRoleAdmin struct {
	role domain.UserRole
	err  error
}

func (m *mockRoleAdmin) CreateUserRole(_ context.Context, params domain.CreateUserRoleParams) (domain.UserRole, error) {
	if m.err != nil {
		return domain.UserRole{}, m.err
	}
	role := m.role
	role.Email = params.Email
	role.Role = params.Role
	return role, nil
}

type stubResolver struct {
	actor auth.Actor
}

func (s *stubResolver) ResolveToken(context.Context, string) (auth.Actor, bool, error) {
	return s.actor, true, nil
}

type mockInvalidator struct {
	err   error
	calls int
}

func (m *mockInvalidator) Invalidate(context.Context, domain.EntityType, uuid.UUID) error {
	m.calls++
	return m.err
}

// mockNotifier records deliveries and signals done so tests can wait for
// the send goroutine.
type mockNotifier struct {
	mu       sync.Mutex
	triggers []notify.Trigger
	done     chan struct{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{done: make(chan struct{}, 8)}
}

func (m *mockNotifier) Send(_ context.Context, trigger notify.Trigger) {
	m.mu.Lock()
	m.triggers = append(m.triggers, trigger)
	m.mu.Unlock()
	m.done <- struct{}{}
}

func (m *mockNotifier) Fanout(ctx context.Context, chain []domain.EscalationChainEntry, base notify.Trigger) {
	for _, entry := range chain {
		for _, email := range entry.Emails {
			t := base
			t.RecipientEmail = email
			m.Send(ctx, t)
		}
	}
}

func (m *mockNotifier) sent() []notify.Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Trigger, len(m.triggers))
	copy(out, m.triggers)
	return out
}
