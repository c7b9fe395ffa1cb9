// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRoleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUserRoleRepository(pool *pgxpool.Pool, logger *slog.Logger) *UserRoleRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserRoleRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *UserRoleRepository) CreateUserRole(ctx context.Context, params domain.CreateUserRoleParams) (domain.UserRole, error) {
	role := domain.UserRole{
		ID:             uuid.New(),
		Email:          strings.TrimSpace(strings.ToLower(params.Email)),
		Role:           params.Role,
		MunicipalityID: params.MunicipalityID,
		IsActive:       true,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_roles (id, email, role, municipality_id, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (email, role, municipality_id)
		DO UPDATE SET is_active = TRUE
		RETURNING id, created_at
	`,
		role.ID,
		role.Email,
		role.Role,
		role.MunicipalityID,
	).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		r.logger.Error("upsert user role failed",
			"email", role.Email,
			"role", role.Role,
			"error", err,
		)
		return domain.UserRole{}, err
	}

	r.logger.Info("user role assigned", "email", role.Email, "role", role.Role)
	return role, nil
}

// ListActiveAdmins returns the active municipality_admin assignments for
// one municipality, for level-3 escalation fan-out.
func (r *UserRoleRepository) ListActiveAdmins(ctx context.Context, municipalityID uuid.UUID) ([]domain.UserRole, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, role, municipality_id, is_active, created_at
		FROM user_roles
		WHERE municipality_id = $1
		  AND role = $2
		  AND is_active
		ORDER BY email ASC
	`, municipalityID, domain.RoleMunicipalityAdmin)
	if err != nil {
		r.logger.Error("list municipality admins failed",
			"municipality_id", municipalityID,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserRole, 0, 4)
	for rows.Next() {
		var role domain.UserRole
		if err := rows.Scan(
			&role.ID,
			&role.Email,
			&role.Role,
			&role.MunicipalityID,
			&role.IsActive,
			&role.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
