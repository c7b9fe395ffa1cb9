// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/civicflow/approvals/internal/auth"
	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTokenRepository(pool *pgxpool.Pool, logger *slog.Logger) *TokenRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenRepository{
		pool:   pool,
		logger: logger,
	}
}

// ResolveToken maps a bearer token to its acting user. Only the SHA-256
// hash of the token is ever stored.
func (r *TokenRepository) ResolveToken(ctx context.Context, bearerToken string) (auth.Actor, bool, error) {
	if bearerToken == "" {
		return auth.Actor{}, false, nil
	}
	tokenHash := sha256Hex(bearerToken)

	var actor auth.Actor
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, role, municipality_id, max_requests_per_min
		FROM access_tokens
		WHERE token_hash=$1 AND revoked_at IS NULL
	`, tokenHash).Scan(
		&actor.TokenID,
		&actor.Email,
		&actor.Role,
		&actor.MunicipalityID,
		&actor.MaxRequestsPerMin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Actor{}, false, nil
		}
		r.logger.Error("resolve token failed", "error", err)
		return auth.Actor{}, false, err
	}

	if actor.MaxRequestsPerMin <= 0 {
		actor.MaxRequestsPerMin = domain.DefaultMaxRequestsPerMin
	}

	return actor, true, nil
}

func (r *TokenRepository) CreateToken(ctx context.Context, params domain.CreateTokenParams) (domain.CreatedToken, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.CreatedToken{}, domain.ErrInvalidTokenEmail
	}

	maxRequestsPerMin := params.MaxRequestsPerMin
	if maxRequestsPerMin <= 0 {
		maxRequestsPerMin = domain.DefaultMaxRequestsPerMin
	}

	token, tokenHash, err := generateAccessToken()
	if err != nil {
		r.logger.Error("generate access token failed", "error", err)
		return domain.CreatedToken{}, err
	}

	tokenID := uuid.New()
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO access_tokens (id, email, role, municipality_id, token_hash, max_requests_per_min)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		tokenID,
		email,
		params.Role,
		params.MunicipalityID,
		tokenHash,
		maxRequestsPerMin,
	); err != nil {
		r.logger.Error("create access token failed", "email", email, "error", err)
		return domain.CreatedToken{}, err
	}

	return domain.CreatedToken{
		ID:    tokenID,
		Token: token,
	}, nil
}

func (r *TokenRepository) ListTokens(ctx context.Context) ([]domain.TokenRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, role, municipality_id, max_requests_per_min, created_at
		FROM access_tokens
		WHERE revoked_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		r.logger.Error("list tokens query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	tokens := make([]domain.TokenRecord, 0, 32)
	for rows.Next() {
		var record domain.TokenRecord
		if err := rows.Scan(
			&record.ID,
			&record.Email,
			&record.Role,
			&record.MunicipalityID,
			&record.MaxRequestsPerMin,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		tokens = append(tokens, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (r *TokenRepository) RevokeToken(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE access_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		r.logger.Error("revoke token failed", "token_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func generateAccessToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := "at_live_" + hex.EncodeToString(raw)
	return token, sha256Hex(token), nil
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
