// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bureau-foundation/gatehouse/admission"
	"github.com/bureau-foundation/gatehouse/credential"
	"github.com/bureau-foundation/gatehouse/journal"
)

// withAccessCredential requires a valid access credential in the
// Authorization header and stores its subject in the request context.
// A missing header is 401; a credential that fails verification is
// 403 with a code naming the failure.
func (g *Gateway) withAccessCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			g.sendError(w, http.StatusUnauthorized, codeMissingCredential, "authorization bearer credential is required")
			return
		}

		claims, err := g.signer.Verify(credential.Access, token, g.clock.Now())
		if err != nil {
			status, code := credentialErrorCode(err)
			g.sendError(w, status, code, "access credential rejected: %v", err)
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization header of the
// form "Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// credentialErrorCode maps a credential verification error to an
// HTTP status and envelope code. Everything verification rejects is
// 403: the caller presented a credential, it just isn't acceptable.
func credentialErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, credential.ErrTokenExpired):
		return http.StatusForbidden, codeExpiredCredential
	case errors.Is(err, credential.ErrInvalidSignature):
		return http.StatusForbidden, codeInvalidSignature
	default:
		return http.StatusForbidden, codeMalformedCredential
	}
}

// withAdmission runs the matched route's admission policy. Requests
// matching no route pass through without evaluation or journaling.
// Denials answer 429 (rate) or 403 (blackout) with the decision's
// reason as the envelope code.
func (g *Gateway) withAdmission(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, matched := g.routes.Match(r.URL.Path)
		if !matched {
			next.ServeHTTP(w, r)
			return
		}

		identityKey := route.IdentityFrom.Extract(r, subjectFromContext(r.Context()))
		decision := g.controller.Evaluate(route.Policy, identityKey)
		g.journalAdmission(route, identityKey, decision)

		if !decision.Admitted {
			if decision.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(decision), 10))
			}
			g.sendError(w, denialStatus(decision.Reason), decision.Reason.String(), "%s", denialMessage(decision.Reason))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds rounds the advisory wait up to whole seconds, as
// the Retry-After header requires.
func retryAfterSeconds(decision admission.Decision) int64 {
	return int64(math.Ceil(decision.RetryAfter.Seconds()))
}

func denialStatus(reason admission.Reason) int {
	switch reason {
	case admission.ReasonBlackoutDay, admission.ReasonBlackoutHours:
		return http.StatusForbidden
	default:
		return http.StatusTooManyRequests
	}
}

func denialMessage(reason admission.Reason) string {
	switch reason {
	case admission.ReasonGlobalBurst:
		return "too many identities are bursting, retry later"
	case admission.ReasonCooldown:
		return "identity hit the gateway too recently"
	case admission.ReasonBlackoutDay:
		return "requests are not accepted on this weekday"
	case admission.ReasonBlackoutHours:
		return "requests are not accepted during this hour"
	default:
		return "request denied"
	}
}

// journalAdmission records an admission decision. Uses a background
// context: a client that disconnects mid-request must not lose the
// journal row. Failures are logged and dropped; journaling never
// blocks admission.
func (g *Gateway) journalAdmission(route Route, identityKey string, decision admission.Decision) {
	if g.journal == nil {
		return
	}
	err := g.journal.RecordAdmission(context.Background(), journal.AdmissionEntry{
		Time:     g.clock.Now(),
		Route:    route.Prefix,
		Policy:   route.Policy.String(),
		Identity: identityKey,
		Admitted: decision.Admitted,
		Reason:   decision.Reason.String(),
	})
	if err != nil {
		g.logger.Warn("journaling admission decision", "error", err, "route", route.Prefix)
	}
}

// journalCredential records a credential operation. Same contract as
// journalAdmission.
func (g *Gateway) journalCredential(entry journal.CredentialEntry) {
	if g.journal == nil {
		return
	}
	entry.Time = g.clock.Now()
	if err := g.journal.RecordCredential(context.Background(), entry); err != nil {
		g.logger.Warn("journaling credential operation", "error", err, "op", entry.Operation)
	}
}
