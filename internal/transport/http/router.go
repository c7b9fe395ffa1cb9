// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civicflow/approvals/internal/auth"
	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/metrics"
	"github.com/civicflow/approvals/internal/notify"
	"github.com/civicflow/approvals/internal/repository"
	"github.com/civicflow/approvals/internal/transport/middleware"
	"github.com/civicflow/approvals/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type createEntityRequest struct {
	Title            string     `json:"title"`
	OwnerEmail       string     `json:"owner_email"`
	ReviewAssignedTo string     `json:"review_assigned_to"`
	MunicipalityID   *uuid.UUID `json:"municipality_id"`
	ReviewDueAt      *time.Time `json:"review_due_at"`
}

type submitDecisionRequest struct {
	Step     int    `json:"step"`
	Decision string `json:"decision"`
	Comments string `json:"comments"`
}

type createDelegationRequest struct {
	DelegateEmail   string     `json:"delegate_email"`
	PermissionTypes []string   `json:"permission_types"`
	EntityType      string     `json:"entity_type"`
	EntityID        *uuid.UUID `json:"entity_id"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
}

type addLinkRequest struct {
	ChildType string    `json:"child_type"`
	ChildID   uuid.UUID `json:"child_id"`
}

type createTokenRequest struct {
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	MunicipalityID    *uuid.UUID `json:"municipality_id"`
	MaxRequestsPerMin int        `json:"max_requests_per_min"`
}

type createUserRoleRequest struct {
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	MunicipalityID *uuid.UUID `json:"municipality_id"`
}

type Deps struct {
	Entities    EntityStore
	Decisions   DecisionStore
	Escalation  EscalationChainBuilder
	Delegations DelegationStore
	Links       LinkStore
	Activities  ActivityLister
	TokenAdmin  TokenAdmin
	RoleAdmin   UserRoleAdmin
	Resolver    ActorResolver
	Cache       CacheInvalidator
	Notifier    Notifier
	Health      HealthChecker
	Logger      *slog.Logger
	AdminToken  string
	Version     string
	Commit      string
	BuildDate   string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Check(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- TOKEN AND ROLE ADMIN ----------------

	if deps.TokenAdmin != nil {
		r.Route("/tokens", func(admin chi.Router) {
			admin.Use(middleware.AdminTokenAuth(deps.AdminToken, logger))

			admin.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var reqBody createTokenRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				created, err := deps.TokenAdmin.CreateToken(r.Context(), domain.CreateTokenParams{
					Email:             reqBody.Email,
					Role:              reqBody.Role,
					MunicipalityID:    reqBody.MunicipalityID,
					MaxRequestsPerMin: reqBody.MaxRequestsPerMin,
				})
				if err != nil {
					if errors.Is(err, domain.ErrInvalidTokenEmail) {
						http.Error(w, "invalid token email", http.StatusBadRequest)
						return
					}
					logger.Error("create token failed", "error", err)
					http.Error(w, "failed to create token", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, map[string]string{
					"token_id": created.ID.String(),
					"token":    created.Token,
				})
			})

			admin.Get("/", func(w http.ResponseWriter, r *http.Request) {
				tokens, err := deps.TokenAdmin.ListTokens(r.Context())
				if err != nil {
					logger.Error("list tokens failed", "error", err)
					http.Error(w, "failed to list tokens", http.StatusInternalServerError)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"tokens": tokens,
				})
			})

			admin.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, err := uuid.Parse(chi.URLParam(r, "id"))
				if err != nil {
					http.Error(w, "invalid token ID", http.StatusBadRequest)
					return
				}

				if err := deps.TokenAdmin.RevokeToken(r.Context(), id); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						http.Error(w, "token not found", http.StatusNotFound)
						return
					}
					logger.Error("revoke token failed", "token_id", id, "error", err)
					http.Error(w, "failed to revoke token", http.StatusInternalServerError)
					return
				}

				w.WriteHeader(http.StatusNoContent)
			})
		})
	}

	if deps.RoleAdmin != nil {
		r.Group(func(admin chi.Router) {
			admin.Use(middleware.AdminTokenAuth(deps.AdminToken, logger))

			admin.Post("/user-roles", func(w http.ResponseWriter, r *http.Request) {
				var reqBody createUserRoleRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}
				if strings.TrimSpace(reqBody.Email) == "" || strings.TrimSpace(reqBody.Role) == "" {
					http.Error(w, "email and role are required", http.StatusBadRequest)
					return
				}

				role, err := deps.RoleAdmin.CreateUserRole(r.Context(), domain.CreateUserRoleParams{
					Email:          reqBody.Email,
					Role:           reqBody.Role,
					MunicipalityID: reqBody.MunicipalityID,
				})
				if err != nil {
					logger.Error("create user role failed", "error", err)
					http.Error(w, "failed to create user role", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, role)
			})
		})
	}

	// ---------------- AUTHENTICATED API ----------------

	r.Group(func(r chi.Router) {
		if deps.Resolver != nil {
			r.Use(middleware.ActorTokenAuth(deps.Resolver, logger))
		}

		// ---------------- CREATE ENTITY ----------------

		r.Post("/entities/{type}", func(w http.ResponseWriter, r *http.Request) {
			entityType, err := domain.ParseEntityType(chi.URLParam(r, "type"))
			if err != nil {
				http.Error(w, "unknown entity type", http.StatusBadRequest)
				return
			}

			var reqBody createEntityRequest
			if err := decodeJSON(r, &reqBody); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if strings.TrimSpace(reqBody.Title) == "" {
				http.Error(w, "title is required", http.StatusBadRequest)
				return
			}

			actor, _ := auth.ActorFromContext(r.Context())
			ownerEmail := strings.TrimSpace(reqBody.OwnerEmail)
			if ownerEmail == "" {
				ownerEmail = actor.Email
			}

			record, err := deps.Entities.CreateEntity(r.Context(), repository.CreateEntityParams{
				Type:             entityType,
				Title:            reqBody.Title,
				OwnerEmail:       ownerEmail,
				ReviewAssignedTo: reqBody.ReviewAssignedTo,
				MunicipalityID:   reqBody.MunicipalityID,
				ReviewDueAt:      reqBody.ReviewDueAt,
			})
			if err != nil {
				logger.Error("create entity failed", "entity_type", entityType, "error", err)
				http.Error(w, "failed to create entity", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusCreated, record)
		})

		// ---------------- GET ENTITY ----------------

		r.Get("/entities/{type}/{id}", func(w http.ResponseWriter, r *http.Request) {
			entityType, entityID, ok := entityRef(w, r)
			if !ok {
				return
			}

			record, err := deps.Entities.GetEntity(r.Context(), entityType, entityID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "entity not found", http.StatusNotFound)
					return
				}
				logger.Error("get entity failed", "entity_id", entityID, "error", err)
				http.Error(w, "failed to get entity", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, record)
		})

		// ---------------- WORKFLOW STATE ----------------

		r.Get("/entities/{type}/{id}/workflow", func(w http.ResponseWriter, r *http.Request) {
			entityType, entityID, ok := entityRef(w, r)
			if !ok {
				return
			}
			actor, _ := auth.ActorFromContext(r.Context())

			if _, err := deps.Entities.GetEntity(r.Context(), entityType, entityID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "entity not found", http.StatusNotFound)
					return
				}
				logger.Error("get entity failed", "entity_id", entityID, "error", err)
				http.Error(w, "failed to evaluate workflow", http.StatusInternalServerError)
				return
			}

			decisions, err := deps.Decisions.ListDecisions(r.Context(), entityType, entityID)
			if err != nil {
				logger.Error("list decisions failed", "entity_id", entityID, "error", err)
				http.Error(w, "failed to evaluate workflow", http.StatusInternalServerError)
				return
			}

			state, err := workflow.Evaluate(entityType, decisions, actor.Role)
			if err != nil {
				if errors.Is(err, domain.ErrNoWorkflowDefined) {
					http.Error(w, "no approval workflow defined for entity type", http.StatusNotFound)
					return
				}
				logger.Error("evaluate workflow failed", "entity_id", entityID, "error", err)
				http.Error(w, "failed to evaluate workflow", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, state)
		})

		// ---------------- SUBMIT DECISION ----------------

		r.Post("/entities/{type}/{id}/decisions", func(w http.ResponseWriter, r *http.Request) {
			entityType, entityID, ok := entityRef(w, r)
			if !ok {
				return
			}
			actor, _ := auth.ActorFromContext(r.Context())

			var reqBody submitDecisionRequest
			if err := decodeJSON(r, &reqBody); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			decision, err := deps.Decisions.SubmitDecision(r.Context(), domain.SubmitDecisionParams{
				EntityType:    entityType,
				EntityID:      entityID,
				Step:          reqBody.Step,
				ApproverEmail: actor.Email,
				ApproverRole:  actor.Role,
				Decision:      domain.Decision(reqBody.Decision),
				Comments:      reqBody.Comments,
			})
			if err != nil {
				writeDecisionError(w, logger, entityID, err)
				return
			}

			metrics.IncDecision(entityType, decision.Decision)

			if deps.Cache != nil {
				if err := deps.Cache.Invalidate(r.Context(), entityType, entityID); err != nil {
					logger.Error("cache invalidation failed",
						"entity_id", entityID,
						"error", err,
					)
					http.Error(w, "decision recorded, cache invalidation failed", http.StatusInternalServerError)
					return
				}
			}

			notifyDecision(r.Context(), deps, logger, decision)

			logger.Info("decision submitted via API",
				"entity_type", entityType,
				"entity_id", entityID,
				"step", decision.Step,
				"decision", decision.Decision,
			)
			writeJSON(w, http.StatusOK, decision)
		})

		// ---------------- DECISION HISTORY ----------------

		r.Get("/entities/{type}/{id}/decisions", func(w http.ResponseWriter, r *http.Request) {
			entityType, entityID, ok := entityRef(w, r)
			if !ok {
				return
			}

			decisions, err := deps.Decisions.ListDecisions(r.Context(), entityType, entityID)
			if err != nil {
				logger.Error("list decisions failed", "entity_id", entityID, "error", err)
				http.Error(w, "failed to list decisions", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"entity_id": entityID.String(),
				"decisions": decisions,
			})
		})

		// ---------------- ESCALATION CHAIN ----------------

		r.Get("/challenges/{id}/escalation-chain", func(w http.ResponseWriter, r *http.Request) {
			challengeID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid challenge ID", http.StatusBadRequest)
				return
			}

			chain, err := deps.Escalation.Chain(r.Context(), challengeID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "challenge not found", http.StatusNotFound)
					return
				}
				logger.Error("build escalation chain failed", "entity_id", challengeID, "error", err)
				http.Error(w, "failed to build escalation chain", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"challenge_id": challengeID.String(),
				"chain":        chain,
			})
		})

		// ---------------- MANUAL ESCALATION ----------------

		r.Post("/challenges/{id}/escalate", func(w http.ResponseWriter, r *http.Request) {
			challengeID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid challenge ID", http.StatusBadRequest)
				return
			}
			actor, _ := auth.ActorFromContext(r.Context())

			chain, err := deps.Escalation.Chain(r.Context(), challengeID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "challenge not found", http.StatusNotFound)
					return
				}
				logger.Error("build escalation chain failed", "entity_id", challengeID, "error", err)
				http.Error(w, "failed to escalate", http.StatusInternalServerError)
				return
			}

			if err := deps.Entities.MarkEscalated(r.Context(), challengeID, actor.Email); err != nil {
				if errors.Is(err, domain.ErrEntityNotFound) {
					http.Error(w, "challenge not found", http.StatusNotFound)
					return
				}
				logger.Error("mark escalated failed", "entity_id", challengeID, "error", err)
				http.Error(w, "failed to escalate", http.StatusInternalServerError)
				return
			}

			metrics.IncEscalation()

			if deps.Cache != nil {
				if err := deps.Cache.Invalidate(r.Context(), domain.EntityChallenge, challengeID); err != nil {
					logger.Error("cache invalidation failed", "entity_id", challengeID, "error", err)
					http.Error(w, "escalation recorded, cache invalidation failed", http.StatusInternalServerError)
					return
				}
			}

			if deps.Notifier != nil {
				go deps.Notifier.Fanout(context.WithoutCancel(r.Context()), chain, notify.Trigger{
					Trigger:     notify.TriggerEscalationNotice,
					EntityType:  domain.EntityChallenge,
					EntityID:    challengeID,
					TriggeredBy: actor.Email,
				})
			}

			logger.Info("challenge escalated via API", "entity_id", challengeID, "actor", actor.Email)
			writeJSON(w, http.StatusOK, map[string]any{
				"challenge_id": challengeID.String(),
				"chain":        chain,
			})
		})

		// ---------------- DELEGATION ACCESS CHECK ----------------

		r.Get("/delegations/access", func(w http.ResponseWriter, r *http.Request) {
			actor, _ := auth.ActorFromContext(r.Context())

			var challengeID *uuid.UUID
			if raw := strings.TrimSpace(r.URL.Query().Get("challenge_id")); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					http.Error(w, "invalid challenge_id", http.StatusBadRequest)
					return
				}
				challengeID = &id
			}

			access, err := deps.Delegations.CheckAccess(r.Context(), actor.Email, challengeID)
			if err != nil {
				logger.Error("delegation access check failed", "actor", actor.Email, "error", err)
				http.Error(w, "failed to check delegation access", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, access)
		})

		// ---------------- CREATE DELEGATION ----------------

		r.Post("/delegations", func(w http.ResponseWriter, r *http.Request) {
			actor, _ := auth.ActorFromContext(r.Context())

			var reqBody createDelegationRequest
			if err := decodeJSON(r, &reqBody); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if strings.TrimSpace(reqBody.DelegateEmail) == "" {
				http.Error(w, "delegate_email is required", http.StatusBadRequest)
				return
			}
			if !reqBody.EndDate.After(reqBody.StartDate) {
				http.Error(w, "end_date must be after start_date", http.StatusBadRequest)
				return
			}

			entityType, err := domain.ParseEntityType(reqBody.EntityType)
			if err != nil {
				http.Error(w, "unknown entity type", http.StatusBadRequest)
				return
			}

			rule, err := deps.Delegations.CreateDelegation(r.Context(), domain.CreateDelegationParams{
				DelegatorEmail:  actor.Email,
				DelegateEmail:   reqBody.DelegateEmail,
				PermissionTypes: reqBody.PermissionTypes,
				EntityType:      entityType,
				EntityID:        reqBody.EntityID,
				StartDate:       reqBody.StartDate,
				EndDate:         reqBody.EndDate,
			})
			if err != nil {
				logger.Error("create delegation failed", "actor", actor.Email, "error", err)
				http.Error(w, "failed to create delegation", http.StatusInternalServerError)
				return
			}

			if deps.Notifier != nil {
				go deps.Notifier.Send(context.WithoutCancel(r.Context()), notify.Trigger{
					Trigger:        notify.TriggerDelegationGranted,
					RecipientEmail: rule.DelegateEmail,
					EntityType:     rule.EntityType,
					TriggeredBy:    actor.Email,
				})
			}

			writeJSON(w, http.StatusCreated, rule)
		})

		// ---------------- DEACTIVATE DELEGATION ----------------

		r.Delete("/delegations/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid delegation ID", http.StatusBadRequest)
				return
			}
			actor, _ := auth.ActorFromContext(r.Context())

			if err := deps.Delegations.DeactivateDelegation(r.Context(), id, actor.Email); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "delegation not found", http.StatusNotFound)
					return
				}
				logger.Error("deactivate delegation failed", "delegation_id", id, "error", err)
				http.Error(w, "failed to deactivate delegation", http.StatusInternalServerError)
				return
			}

			w.WriteHeader(http.StatusNoContent)
		})

		// ---------------- LINKS ----------------

		r.Post("/entities/{type}/{id}/links", func(w http.ResponseWriter, r *http.Request) {
			parentType, parentID, ok := entityRef(w, r)
			if !ok {
				return
			}
			actor, _ := auth.ActorFromContext(r.Context())

			var reqBody addLinkRequest
			if err := decodeJSON(r, &reqBody); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			childType, err := domain.ParseEntityType(reqBody.ChildType)
			if err != nil {
				http.Error(w, "unknown entity type", http.StatusBadRequest)
				return
			}

			link := domain.EntityLink{
				ParentType: parentType,
				ParentID:   parentID,
				ChildType:  childType,
				ChildID:    reqBody.ChildID,
			}
			if err := deps.Links.AddLink(r.Context(), link, actor.Email); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "entity not found", http.StatusNotFound)
					return
				}
				logger.Error("add link failed", "parent_id", parentID, "error", err)
				http.Error(w, "failed to add link", http.StatusInternalServerError)
				return
			}

			if deps.Cache != nil {
				if err := deps.Cache.Invalidate(r.Context(), parentType, parentID); err != nil {
					logger.Error("cache invalidation failed", "entity_id", parentID, "error", err)
					http.Error(w, "link recorded, cache invalidation failed", http.StatusInternalServerError)
					return
				}
			}

			writeJSON(w, http.StatusCreated, link)
		})

		r.Delete("/entities/{type}/{id}/links/{ctype}/{cid}", func(w http.ResponseWriter, r *http.Request) {
			parentType, parentID, ok := entityRef(w, r)
			if !ok {
				return
			}
			childType, err := domain.ParseEntityType(chi.URLParam(r, "ctype"))
			if err != nil {
				http.Error(w, "unknown entity type", http.StatusBadRequest)
				return
			}
			childID, err := uuid.Parse(chi.URLParam(r, "cid"))
			if err != nil {
				http.Error(w, "invalid child entity ID", http.StatusBadRequest)
				return
			}
			actor, _ := auth.ActorFromContext(r.Context())

			link := domain.EntityLink{
				ParentType: parentType,
				ParentID:   parentID,
				ChildType:  childType,
				ChildID:    childID,
			}
			if err := deps.Links.RemoveLink(r.Context(), link, actor.Email); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "link not found", http.StatusNotFound)
					return
				}
				logger.Error("remove link failed", "parent_id", parentID, "error", err)
				http.Error(w, "failed to remove link", http.StatusInternalServerError)
				return
			}

			if deps.Cache != nil {
				if err := deps.Cache.Invalidate(r.Context(), parentType, parentID); err != nil {
					logger.Error("cache invalidation failed", "entity_id", parentID, "error", err)
					http.Error(w, "link removed, cache invalidation failed", http.StatusInternalServerError)
					return
				}
			}

			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/entities/{type}/{id}/links", func(w http.ResponseWriter, r *http.Request) {
			parentType, parentID, ok := entityRef(w, r)
			if !ok {
				return
			}

			links, err := deps.Links.ListLinks(r.Context(), parentType, parentID)
			if err != nil {
				logger.Error("list links failed", "parent_id", parentID, "error", err)
				http.Error(w, "failed to list links", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"parent_id": parentID.String(),
				"links":     links,
			})
		})

		// ---------------- ACTIVITY FEED ----------------

		r.Get("/entities/{type}/{id}/activities", func(w http.ResponseWriter, r *http.Request) {
			entityType, entityID, ok := entityRef(w, r)
			if !ok {
				return
			}

			limit := 0
			if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					http.Error(w, "invalid limit", http.StatusBadRequest)
					return
				}
				limit = n
			}

			var beforeSeq int64
			if raw := strings.TrimSpace(r.URL.Query().Get("before")); raw != "" {
				n, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || n < 0 {
					http.Error(w, "invalid before cursor", http.StatusBadRequest)
					return
				}
				beforeSeq = n
			}

			activities, nextBefore, err := deps.Activities.ListActivities(r.Context(), entityType, entityID, limit, beforeSeq)
			if err != nil {
				logger.Error("list activities failed", "entity_id", entityID, "error", err)
				http.Error(w, "failed to list activities", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"entity_id":   entityID.String(),
				"activities":  activities,
				"next_before": nextBefore,
			})
		})
	})

	return r
}

// notifyDecision tells the entity owner about the recorded decision.
// Terminal outcomes get their own trigger so the hub can pick a
// different template.
func notifyDecision(ctx context.Context, deps Deps, logger *slog.Logger, decision domain.ApprovalDecision) {
	if deps.Notifier == nil {
		return
	}

	record, err := deps.Entities.GetEntity(ctx, decision.EntityType, decision.EntityID)
	if err != nil {
		logger.Warn("skip decision notification, entity lookup failed",
			"entity_id", decision.EntityID,
			"error", err,
		)
		return
	}

	trigger := notify.TriggerDecisionRecorded
	switch record.Status {
	case domain.StatusRejected:
		trigger = notify.TriggerEntityRejected
	case domain.StatusApproved:
		trigger = notify.TriggerEntityApproved
	}

	go deps.Notifier.Send(context.WithoutCancel(ctx), notify.Trigger{
		Trigger:        trigger,
		RecipientEmail: record.OwnerEmail,
		EntityType:     decision.EntityType,
		EntityID:       decision.EntityID,
		Variables: map[string]string{
			"step":     strconv.Itoa(decision.Step),
			"decision": string(decision.Decision),
		},
		TriggeredBy: decision.ApproverEmail,
	})
}

func writeDecisionError(w http.ResponseWriter, logger *slog.Logger, entityID uuid.UUID, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDecision):
		http.Error(w, "decision must be APPROVED or REJECTED", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNoWorkflowDefined):
		http.Error(w, "no approval workflow defined for entity type", http.StatusBadRequest)
	case errors.Is(err, domain.ErrEntityNotFound), errors.Is(err, pgx.ErrNoRows):
		http.Error(w, "entity not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrStepRoleMismatch):
		http.Error(w, "acting role cannot decide the current step", http.StatusForbidden)
	case errors.Is(err, domain.ErrWorkflowComplete):
		http.Error(w, "workflow already complete", http.StatusConflict)
	case errors.Is(err, domain.ErrStepOutOfOrder):
		http.Error(w, "decision step out of order", http.StatusConflict)
	case errors.Is(err, domain.ErrStepAlreadyDecided):
		http.Error(w, "step already decided", http.StatusConflict)
	default:
		logger.Error("submit decision failed", "entity_id", entityID, "error", err)
		http.Error(w, "failed to submit decision", http.StatusInternalServerError)
	}
}

// entityRef parses the {type}/{id} pair shared by the entity routes,
// writing the 4xx response itself when either segment is invalid.
func entityRef(w http.ResponseWriter, r *http.Request) (domain.EntityType, uuid.UUID, bool) {
	entityType, err := domain.ParseEntityType(chi.URLParam(r, "type"))
	if err != nil {
		http.Error(w, "unknown entity type", http.StatusBadRequest)
		return "", uuid.Nil, false
	}

	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entity ID", http.StatusBadRequest)
		return "", uuid.Nil, false
	}

	return entityType, entityID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
