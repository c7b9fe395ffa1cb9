// SPDX-License-Identifier: Apache-2.0

// Package notify delivers email triggers to the notification hub.
// Delivery is best effort: failures are logged and counted, never
// surfaced to the caller, so a primary operation always succeeds or fails
// on its own merits.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/civicflow/approvals/internal/metrics"
	"github.com/google/uuid"
)

const (
	deliveryRetryAttempts = 3
	deliveryRetryBase     = 300 * time.Millisecond
	headerSignature       = "X-Signature"
)

// Trigger is the hub's request contract.
type Trigger struct {
	Trigger        string            `json:"trigger"`
	RecipientEmail string            `json:"recipient_email"`
	EntityType     domain.EntityType `json:"entity_type"`
	EntityID       uuid.UUID         `json:"entity_id"`
	Variables      map[string]string `json:"variables,omitempty"`
	Language       string            `json:"language"`
	TriggeredBy    string            `json:"triggered_by"`
}

// Trigger names the hub understands.
const (
	TriggerDecisionRecorded  = "approval_decision_recorded"
	TriggerEntityRejected    = "entity_rejected"
	TriggerEntityApproved    = "entity_approved"
	TriggerEscalationNotice  = "challenge_escalation"
	TriggerDelegationGranted = "delegation_granted"
)

type Hub struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHub(url, secret string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		url:    strings.TrimSpace(url),
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send delivers one trigger with bounded retries. It never returns an
// error; callers must not let notification problems fail the operation
// that produced them.
func (h *Hub) Send(ctx context.Context, trigger Trigger) {
	if h.url == "" {
		return
	}
	if trigger.Language == "" {
		trigger.Language = "en"
	}

	body, err := json.Marshal(trigger)
	if err != nil {
		h.logger.Error("trigger payload marshal failed",
			"trigger", trigger.Trigger,
			"entity_id", trigger.EntityID,
			"error", err,
		)
		metrics.IncNotification(false)
		return
	}

	signature := signPayload(h.secret, body)

	var lastErr error
	for attempt := 1; attempt <= deliveryRetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(headerSignature, signature)
		}

		resp, err := h.httpClient.Do(req)
		if err != nil {
			lastErr = err
			h.logger.Warn("trigger delivery failure",
				"trigger", trigger.Trigger,
				"recipient", trigger.RecipientEmail,
				"attempt", attempt,
				"error", err,
			)
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
				h.logger.Info("trigger delivered",
					"trigger", trigger.Trigger,
					"recipient", trigger.RecipientEmail,
					"attempt", attempt,
				)
				metrics.IncNotification(true)
				return
			}

			lastErr = fmt.Errorf("non-2xx response: %d", resp.StatusCode)
			h.logger.Warn("trigger delivery failure",
				"trigger", trigger.Trigger,
				"recipient", trigger.RecipientEmail,
				"attempt", attempt,
				"response_status", resp.StatusCode,
			)
		}

		if attempt < deliveryRetryAttempts {
			wait := deliveryRetryBase * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				metrics.IncNotification(false)
				return
			case <-timer.C:
			}
		}
	}

	if lastErr != nil {
		h.logger.Error("trigger delivery retries exhausted",
			"trigger", trigger.Trigger,
			"recipient", trigger.RecipientEmail,
			"error", lastErr,
		)
	}
	metrics.IncNotification(false)
}

// Fanout sends one trigger per escalation chain entry recipient.
func (h *Hub) Fanout(ctx context.Context, chain []domain.EscalationChainEntry, base Trigger) {
	for _, entry := range chain {
		for _, email := range entry.Emails {
			t := base
			t.RecipientEmail = email
			if t.Variables == nil {
				t.Variables = map[string]string{}
			}
			t.Variables["escalation_role"] = entry.Role
			h.Send(ctx, t)
		}
	}
}

func signPayload(secret string, payload []byte) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
