// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// SubjectHeader carries the verified credential subject to the
// upstream. The forwarder strips any inbound value: the upstream may
// trust it precisely because only the gateway can set it.
const SubjectHeader = "X-Gatehouse-Subject"

// Forwarder proxies admitted requests to the upstream.
type Forwarder struct {
	upstream *url.URL
	client   *http.Client
	shield   *rate.Limiter
	logger   *slog.Logger
}

// ForwarderConfig holds the parameters for NewForwarder. Upstream is
// required. A zero Shield disables the upstream token bucket, and a
// nil Logger discards.
type ForwarderConfig struct {
	// Upstream is the base URL requests are forwarded to.
	Upstream string

	// Shield configures a token bucket in front of the upstream,
	// applied after admission. Zero RequestsPerSecond disables it.
	Shield ShieldConfig

	Logger *slog.Logger
}

// NewForwarder builds a Forwarder from cfg.
func NewForwarder(cfg ForwarderConfig) (*Forwarder, error) {
	if cfg.Upstream == "" {
		return nil, fmt.Errorf("gateway: upstream URL is required")
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid upstream URL: %w", err)
	}
	if upstream.Scheme != "http" && upstream.Scheme != "https" {
		return nil, fmt.Errorf("gateway: upstream must be an http or https URL, got %q", cfg.Upstream)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var shield *rate.Limiter
	if cfg.Shield.RequestsPerSecond > 0 {
		burst := cfg.Shield.Burst
		if burst < 1 {
			burst = 1
		}
		shield = rate.NewLimiter(rate.Limit(cfg.Shield.RequestsPerSecond), burst)
	}

	// No overall client timeout: response bodies may stream for a
	// long time. The server's write timeout bounds the connection.
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Forwarder{
		upstream: upstream,
		client:   client,
		shield:   shield,
		logger:   logger,
	}, nil
}

// Forward proxies one admitted request to the upstream. The verified
// subject (when the request carried a credential) rides in
// SubjectHeader; upstream responses pass through untouched.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) {
	if f.shield != nil && !f.shield.Allow() {
		f.writeError(w, http.StatusTooManyRequests, codeUpstreamSaturated, "upstream is saturated, retry later")
		return
	}

	startTime := time.Now()

	upstreamURL := *f.upstream
	upstreamURL.Path = singleJoiningSlash(f.upstream.Path, r.URL.Path)
	upstreamURL.RawQuery = r.URL.RawQuery

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), r.Body)
	if err != nil {
		f.logger.Error("building upstream request", "error", err, "path", r.URL.Path)
		f.writeError(w, http.StatusInternalServerError, codeUpstreamUnavailable, "building upstream request failed")
		return
	}

	for key, values := range r.Header {
		if isHopByHopHeader(key) || isGatewayHeader(key) {
			continue
		}
		for _, value := range values {
			upstreamReq.Header.Add(key, value)
		}
	}

	if subject := subjectFromContext(r.Context()); subject != "" {
		upstreamReq.Header.Set(SubjectHeader, subject)
	}
	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		appendForwardedFor(upstreamReq.Header, r.Header.Get("X-Forwarded-For"), clientIP)
	}

	resp, err := f.client.Do(upstreamReq)
	if err != nil {
		f.logger.Error("upstream request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(startTime),
		)
		f.writeError(w, http.StatusBadGateway, codeUpstreamUnavailable, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if isHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	bytesCopied, _ := io.Copy(w, resp.Body)

	f.logger.Info("forwarded request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"bytes", bytesCopied,
		"duration", time.Since(startTime),
	)
}

// writeError emits the gateway error envelope. The forwarder carries
// its own copy so it stays usable as a bare http.Handler.
func (f *Forwarder) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: code, Message: message}); err != nil {
		f.logger.Warn("writing JSON error response", "error", err, "status", status)
	}
}

// isGatewayHeader reports headers the gateway consumes or owns. The
// Authorization credential never reaches the upstream, and an inbound
// SubjectHeader is dropped so clients cannot impersonate a subject.
func isGatewayHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "x-gatehouse-subject":
		return true
	}
	return false
}

// appendForwardedFor extends the standard X-Forwarded-For chain with
// the directly connected client.
func appendForwardedFor(header http.Header, existing, clientIP string) {
	if existing != "" {
		header.Set("X-Forwarded-For", existing+", "+clientIP)
		return
	}
	header.Set("X-Forwarded-For", clientIP)
}

// Headers that must not be forwarded.
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHopHeader(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

// singleJoiningSlash joins two URL paths with a single slash.
func singleJoiningSlash(a, b string) string {
	aSlash := strings.HasSuffix(a, "/")
	bSlash := strings.HasPrefix(b, "/")
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}
	return a + b
}
