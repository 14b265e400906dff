// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/gatehouse/admission"
	"github.com/bureau-foundation/gatehouse/credential"
	"github.com/bureau-foundation/gatehouse/identity"
	"github.com/bureau-foundation/gatehouse/journal"
	"github.com/bureau-foundation/gatehouse/lib/clock"
)

// maxRequestBodySize bounds the JSON bodies on the session endpoints.
// Assertions and refresh credentials are far below this.
const maxRequestBodySize = 64 * 1024

// Error codes carried in the error envelope. Wire-stable: clients
// dispatch on them.
const (
	codeMissingCredential   = "MISSING_CREDENTIAL"
	codeMalformedCredential = "MALFORMED_CREDENTIAL"
	codeInvalidSignature    = "INVALID_SIGNATURE"
	codeExpiredCredential   = "EXPIRED"
	codeInvalidAssertion    = "INVALID_ASSERTION"
	codeExpiredAssertion    = "EXPIRED_ASSERTION"
	codeMalformedRequest    = "MALFORMED_REQUEST"
	codeUpstreamSaturated   = "UPSTREAM_SATURATED"
	codeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	codeJournalDisabled     = "JOURNAL_DISABLED"
	codeInternalError       = "INTERNAL"
)

// errorBody is the JSON error envelope on every non-proxied error
// response. Admission denials use the decision's reason string as the
// code.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// contextKey keys values stored in a request context by this package.
type contextKey int

const subjectContextKey contextKey = iota

// subjectFromContext returns the verified credential subject placed
// by withAccessCredential, or "" outside that middleware.
func subjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey).(string)
	return subject
}

// GatewayConfig holds the collaborators for New. Routes, Controller,
// Signer, Verifier, and Forwarder are required. A nil Journal
// disables decision journaling, a nil Clock reads the wall clock, and
// a nil Logger discards.
type GatewayConfig struct {
	Routes     *RouteTable
	Controller *admission.Controller
	Signer     *credential.Signer
	Verifier   identity.Verifier
	Forwarder  *Forwarder
	Journal    *journal.Store
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Gateway is the admission-controlled credential gateway: it verifies
// bearer credentials, runs per-route admission policies, journals the
// outcomes, and forwards admitted requests upstream.
type Gateway struct {
	routes     *RouteTable
	controller *admission.Controller
	signer     *credential.Signer
	lifecycle  *credential.Lifecycle
	verifier   identity.Verifier
	forwarder  *Forwarder
	journal    *journal.Store
	clock      clock.Clock
	logger     *slog.Logger

	startedAt time.Time

	issued   atomic.Uint64
	rotated  atomic.Uint64
	rejected atomic.Uint64
}

// New builds a Gateway from cfg.
func New(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Routes == nil {
		return nil, fmt.Errorf("gateway: route table is required")
	}
	if cfg.Controller == nil {
		return nil, fmt.Errorf("gateway: admission controller is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("gateway: credential signer is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("gateway: identity verifier is required")
	}
	if cfg.Forwarder == nil {
		return nil, fmt.Errorf("gateway: forwarder is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Gateway{
		routes:     cfg.Routes,
		controller: cfg.Controller,
		signer:     cfg.Signer,
		lifecycle:  credential.NewLifecycle(cfg.Signer),
		verifier:   cfg.Verifier,
		forwarder:  cfg.Forwarder,
		journal:    cfg.Journal,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		startedAt:  cfg.Clock.Now(),
	}, nil
}

// Handler returns the gateway's HTTP handler. Session and admin
// endpoints are served locally; everything else runs the credential
// check and the matched route's admission policy, then forwards
// upstream.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session", g.handleSession)
	mux.HandleFunc("POST /v1/session/refresh", g.handleRefresh)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /v1/admin/status", g.handleStatus)
	mux.HandleFunc("GET /v1/admin/journal/export", g.handleJournalExport)
	mux.Handle("/", g.withAccessCredential(g.withAdmission(http.HandlerFunc(g.forwarder.Forward))))
	return mux
}

func (g *Gateway) sendError(w http.ResponseWriter, status int, code string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{
		Error:   code,
		Message: fmt.Sprintf(format, args...),
	}); err != nil {
		g.logger.Warn("writing JSON error response", "error", err, "status", status, "code", code)
	}
}

// writeJSON encodes value as JSON into w, setting the Content-Type
// header. If encoding fails (typically because the client
// disconnected), the error is logged — the caller cannot send a
// corrective response to a dead client.
func (g *Gateway) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		g.logger.Warn("writing JSON response", "error", err)
	}
}
