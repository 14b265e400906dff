// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bureau-foundation/gatehouse/credential"
	"github.com/bureau-foundation/gatehouse/identity"
	"github.com/bureau-foundation/gatehouse/journal"
	"github.com/bureau-foundation/gatehouse/lib/version"
)

type sessionRequest struct {
	// Assertion is the signed statement from the identity provider.
	Assertion string `json:"assertion"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// sessionResponse is the body of a successful issue or rotate.
type sessionResponse struct {
	Subject          string    `json:"subject"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// handleSession exchanges an identity-provider assertion for a fresh
// credential pair.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !g.decodeRequest(w, r, &req) {
		return
	}
	if req.Assertion == "" {
		g.sendError(w, http.StatusBadRequest, codeMalformedRequest, "assertion is required")
		return
	}

	now := g.clock.Now()
	subject, err := g.verifier.VerifySubject(req.Assertion, now)
	if err != nil {
		code := codeInvalidAssertion
		if errors.Is(err, identity.ErrAssertionExpired) {
			code = codeExpiredAssertion
		}
		g.rejected.Add(1)
		g.journalCredential(journal.CredentialEntry{
			Operation: journal.OpIssue,
			Outcome:   strings.ToLower(code),
		})
		g.sendError(w, http.StatusForbidden, code, "assertion rejected: %v", err)
		return
	}

	pair, err := g.lifecycle.Issue(subject, now)
	if err != nil {
		g.logger.Error("issuing credential pair", "error", err)
		g.sendError(w, http.StatusInternalServerError, codeInternalError, "issuing credentials failed")
		return
	}

	g.issued.Add(1)
	g.journalPair(journal.OpIssue, pair)
	g.logger.Info("session issued", "subject_digest", journal.IdentityDigest(subject))

	g.writeJSON(w, sessionResponse{
		Subject:          pair.Subject,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

// handleRefresh rotates a refresh credential into a fresh pair.
func (g *Gateway) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !g.decodeRequest(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		g.sendError(w, http.StatusBadRequest, codeMalformedRequest, "refresh_token is required")
		return
	}

	pair, err := g.lifecycle.Rotate(req.RefreshToken, g.clock.Now())
	if err != nil {
		_, code := credentialErrorCode(err)
		g.rejected.Add(1)
		g.journalCredential(journal.CredentialEntry{
			Operation: journal.OpRotate,
			Outcome:   strings.ToLower(code),
		})
		g.sendError(w, http.StatusForbidden, code, "refresh credential rejected: %v", err)
		return
	}

	g.rotated.Add(1)
	g.journalPair(journal.OpRotate, pair)
	g.logger.Info("session rotated", "subject_digest", journal.IdentityDigest(pair.Subject))

	g.writeJSON(w, sessionResponse{
		Subject:          pair.Subject,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

// decodeRequest parses a bounded JSON body into dst, answering 400 on
// failure.
func (g *Gateway) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		g.sendError(w, http.StatusBadRequest, codeMalformedRequest, "parsing request body: %v", err)
		return false
	}
	return true
}

// journalPair records both credentials of an issued or rotated pair.
func (g *Gateway) journalPair(op string, pair credential.Pair) {
	g.journalCredential(journal.CredentialEntry{
		Operation: op,
		Subject:   pair.Subject,
		Kind:      credential.Access.String(),
		ExpiresAt: pair.AccessExpiresAt,
		Outcome:   journal.OutcomeOK,
	})
	g.journalCredential(journal.CredentialEntry{
		Operation: op,
		Subject:   pair.Subject,
		Kind:      credential.Refresh.String(),
		ExpiresAt: pair.RefreshExpiresAt,
		Outcome:   journal.OutcomeOK,
	})
}

// handleHealth is the unauthenticated liveness endpoint.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, map[string]string{
		"status":  "ok",
		"version": version.Info(),
	})
}

// statusResponse aggregates operational counters. Contains no
// identities or subjects, digested or otherwise.
type statusResponse struct {
	Admitted            uint64  `json:"admitted"`
	DeniedGlobalBurst   uint64  `json:"denied_global_burst"`
	DeniedCooldown      uint64  `json:"denied_cooldown"`
	DeniedBlackoutDay   uint64  `json:"denied_blackout_day"`
	DeniedBlackoutHours uint64  `json:"denied_blackout_hours"`
	ActiveIdentities    int     `json:"active_identities"`
	CredentialsIssued   uint64  `json:"credentials_issued"`
	CredentialsRotated  uint64  `json:"credentials_rotated"`
	CredentialsRejected uint64  `json:"credentials_rejected"`
	JournalAdmissions   int64   `json:"journal_admissions,omitempty"`
	JournalCredentials  int64   `json:"journal_credentials,omitempty"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

// handleStatus returns the gateway's operational counters.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	counters := g.controller.Counters()
	status := statusResponse{
		Admitted:            counters.Admitted,
		DeniedGlobalBurst:   counters.DeniedGlobalBurst,
		DeniedCooldown:      counters.DeniedCooldown,
		DeniedBlackoutDay:   counters.DeniedBlackoutDay,
		DeniedBlackoutHours: counters.DeniedBlackoutHours,
		ActiveIdentities:    g.controller.ActiveIdentities(),
		CredentialsIssued:   g.issued.Load(),
		CredentialsRotated:  g.rotated.Load(),
		CredentialsRejected: g.rejected.Load(),
		UptimeSeconds:       g.clock.Now().Sub(g.startedAt).Seconds(),
	}

	if g.journal != nil {
		counts, err := g.journal.Counts(r.Context())
		if err != nil {
			g.logger.Warn("reading journal counts", "error", err)
		} else {
			status.JournalAdmissions = counts.AdmissionRows
			status.JournalCredentials = counts.CredentialRows
		}
	}

	g.writeJSON(w, status)
}

// handleJournalExport streams the journal as a compressed record
// stream. The compression query parameter selects the codec; the
// default is uncompressed.
func (g *Gateway) handleJournalExport(w http.ResponseWriter, r *http.Request) {
	if g.journal == nil {
		g.sendError(w, http.StatusNotFound, codeJournalDisabled, "journal is not configured")
		return
	}

	name := r.URL.Query().Get("compression")
	if name == "" {
		name = "none"
	}
	tag, err := journal.ParseCompressionTag(name)
	if err != nil {
		g.sendError(w, http.StatusBadRequest, codeMalformedRequest, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if err := g.journal.Export(r.Context(), w, tag); err != nil {
		// Headers are already gone; all we can do is log and cut the
		// stream short.
		g.logger.Warn("journal export failed mid-stream", "error", err)
	}
}
