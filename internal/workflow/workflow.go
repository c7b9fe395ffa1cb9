// SPDX-License-Identifier: Apache-2.0

// Package workflow derives approval workflow state from an entity's
// decision log. Evaluation is pure: it never touches storage and accepts
// decisions in any order.
package workflow

import (
	"github.com/civicflow/approvals/internal/domain"
)

// StepConfig is one required approval gate in a per-entity-type sequence.
// Steps are 1-based and contiguous.
type StepConfig struct {
	Step         int    `json:"step"`
	RequiredRole string `json:"required_role"`
	Label        string `json:"label"`
}

// steps is the hand-coded workflow table. Sandboxes deliberately have no
// entry: asking for their workflow yields ErrNoWorkflowDefined instead of
// a trivially-complete chain.
var steps = map[domain.EntityType][]StepConfig{
	domain.EntityChallenge: {
		{Step: 1, RequiredRole: domain.RoleMunicipalityLead, Label: "Municipality review"},
		{Step: 2, RequiredRole: domain.RoleSectorExpert, Label: "Sector expert review"},
		{Step: 3, RequiredRole: domain.RoleGDISBAdmin, Label: "GDISB final approval"},
	},
	domain.EntityPilot: {
		{Step: 1, RequiredRole: domain.RolePilotManager, Label: "Pilot readiness review"},
		{Step: 2, RequiredRole: domain.RoleBudgetOfficer, Label: "Budget review"},
		{Step: 3, RequiredRole: domain.RoleGDISBAdmin, Label: "GDISB final approval"},
	},
	domain.EntityProgram: {
		{Step: 1, RequiredRole: domain.RoleProgramLead, Label: "Program lead review"},
		{Step: 2, RequiredRole: domain.RoleGDISBAdmin, Label: "GDISB final approval"},
	},
}

// StepsFor returns the configured steps for an entity type, or
// ErrNoWorkflowDefined when the type has no workflow.
func StepsFor(entityType domain.EntityType) ([]StepConfig, error) {
	configured, ok := steps[entityType]
	if !ok || len(configured) == 0 {
		return nil, domain.ErrNoWorkflowDefined
	}

	out := make([]StepConfig, len(configured))
	copy(out, configured)
	return out, nil
}

// State is the derived workflow position for one entity.
type State struct {
	Workflow    []StepConfig `json:"workflow"`
	CurrentStep int          `json:"current_step"`
	// CurrentStepConfig is nil once the workflow is complete.
	CurrentStepConfig *StepConfig `json:"current_step_config,omitempty"`
	CanApprove        bool        `json:"can_approve"`
	IsComplete        bool        `json:"is_complete"`
	Rejected          bool        `json:"rejected"`
}

// Evaluate computes the current actionable step and whether actingRole may
// submit the next decision. A rejection anywhere in the log short-circuits
// the chain: the workflow stops advancing and nobody can approve further.
func Evaluate(entityType domain.EntityType, decisions []domain.ApprovalDecision, actingRole string) (State, error) {
	configured, err := StepsFor(entityType)
	if err != nil {
		return State{}, err
	}

	maxStep := 0
	rejected := false
	for _, d := range decisions {
		if d.Step > maxStep {
			maxStep = d.Step
		}
		if d.Decision == domain.DecisionRejected {
			rejected = true
		}
	}

	state := State{
		Workflow:    configured,
		CurrentStep: maxStep + 1,
		Rejected:    rejected,
		IsComplete:  maxStep+1 > len(configured),
	}

	if rejected || state.IsComplete {
		return state, nil
	}

	for i := range configured {
		if configured[i].Step == state.CurrentStep {
			state.CurrentStepConfig = &configured[i]
			break
		}
	}

	state.CanApprove = state.CurrentStepConfig != nil &&
		actingRole == state.CurrentStepConfig.RequiredRole

	return state, nil
}

// ValidateSubmission gates a decision submission against the derived
// state. Errors map to 4xx responses before anything is written.
func ValidateSubmission(state State, step int, actingRole string, decision domain.Decision) error {
	if decision != domain.DecisionApproved && decision != domain.DecisionRejected {
		return domain.ErrInvalidDecision
	}
	if state.Rejected || state.IsComplete {
		return domain.ErrWorkflowComplete
	}
	if step != state.CurrentStep {
		return domain.ErrStepOutOfOrder
	}
	if !state.CanApprove || state.CurrentStepConfig == nil ||
		actingRole != state.CurrentStepConfig.RequiredRole {
		return domain.ErrStepRoleMismatch
	}
	return nil
}
