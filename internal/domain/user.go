// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifiers referenced by the workflow step table and the
// escalation chain.
const (
	RoleMunicipalityLead  = "municipality_lead"
	RoleSectorExpert      = "sector_expert"
	RoleGDISBAdmin        = "gdisb_admin"
	RolePilotManager      = "pilot_manager"
	RoleBudgetOfficer     = "budget_officer"
	RoleProgramLead       = "program_lead"
	RoleMunicipalityAdmin = "municipality_admin"
)

// UserRole is one active role assignment, optionally scoped to a
// municipality.
type UserRole struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	MunicipalityID *uuid.UUID `json:"municipality_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

type CreateUserRoleParams struct {
	Email          string
	Role           string
	MunicipalityID *uuid.UUID
}

type CreateTokenParams struct {
	Email             string
	Role              string
	MunicipalityID    *uuid.UUID
	MaxRequestsPerMin int
}

type CreatedToken struct {
	ID    uuid.UUID
	Token string
}

type TokenRecord struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	MunicipalityID    *uuid.UUID `json:"municipality_id,omitempty"`
	MaxRequestsPerMin int        `json:"max_requests_per_min"`
	CreatedAt         time.Time  `json:"created_at"`
}

const DefaultMaxRequestsPerMin = 60
