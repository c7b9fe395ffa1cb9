// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/civicflow/approvals/internal/domain"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendDeliversSignedTrigger(t *testing.T) {
	var gotBody []byte
	var gotSignature string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hub := NewHub(srv.URL, "topsecret", discardLogger())
	entityID := uuid.New()

	hub.Send(context.Background(), Trigger{
		Trigger:        TriggerEntityRejected,
		RecipientEmail: "owner@city.gov",
		EntityType:     domain.EntityChallenge,
		EntityID:       entityID,
		TriggeredBy:    "expert@city.gov",
	})

	var payload Trigger
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode delivered payload: %v", err)
	}
	if payload.Trigger != TriggerEntityRejected {
		t.Fatalf("unexpected trigger: %s", payload.Trigger)
	}
	if payload.EntityID != entityID {
		t.Fatalf("unexpected entity id: %s", payload.EntityID)
	}
	if payload.Language != "en" {
		t.Fatalf("expected default language en, got %s", payload.Language)
	}

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(gotBody)
	if gotSignature != hex.EncodeToString(mac.Sum(nil)) {
		t.Fatal("expected valid HMAC signature header")
	}
}

func TestSendRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hub := NewHub(srv.URL, "", discardLogger())
	hub.Send(context.Background(), Trigger{
		Trigger:        TriggerDecisionRecorded,
		RecipientEmail: "lead@city.gov",
	})

	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts got %d", got)
	}
}

func TestSendWithoutURLIsNoop(t *testing.T) {
	hub := NewHub("", "secret", discardLogger())
	// Must not panic or block.
	hub.Send(context.Background(), Trigger{Trigger: TriggerEntityApproved})
}

func TestSendOmitsSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hub := NewHub(srv.URL, "  ", discardLogger())
	hub.Send(context.Background(), Trigger{Trigger: TriggerEntityApproved})

	if gotSignature != "" {
		t.Fatalf("expected no signature header, got %q", gotSignature)
	}
}

func TestFanoutSendsPerRecipient(t *testing.T) {
	var recipients []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload Trigger
		_ = json.NewDecoder(r.Body).Decode(&payload)
		recipients = append(recipients, payload.RecipientEmail)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hub := NewHub(srv.URL, "", discardLogger())
	chain := []domain.EscalationChainEntry{
		{Level: 1, Role: "Assigned Reviewer", Emails: []string{"r@x.com"}},
		{Level: 3, Role: "Municipality Admin", Emails: []string{"a@x.com", "b@x.com"}},
	}

	hub.Fanout(context.Background(), chain, Trigger{
		Trigger:     TriggerEscalationNotice,
		EntityType:  domain.EntityChallenge,
		EntityID:    uuid.New(),
		TriggeredBy: "sweeper",
	})

	if len(recipients) != 3 {
		t.Fatalf("expected 3 deliveries got %d: %v", len(recipients), recipients)
	}
	if recipients[0] != "r@x.com" || recipients[1] != "a@x.com" || recipients[2] != "b@x.com" {
		t.Fatalf("unexpected recipient order: %v", recipients)
	}
}
