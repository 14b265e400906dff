// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway is Gatehouse's HTTP surface: session issuance and
// refresh, admission-controlled forwarding to the upstream service,
// and the operator endpoints.
//
// A request to anything other than the session, health, and admin
// endpoints walks one pipeline: bearer access credential verification
// (401/403), the matched route's admission policy (429 with
// Retry-After, or 403 for calendar blackouts), then forwarding to the
// upstream with the verified subject attached. Route policies come
// from a JSONC table matched by longest prefix; everything else is
// configured through one YAML file.
//
// Errors the gateway generates itself use a JSON envelope
// {"error": CODE, "message": ...}. Upstream responses, including
// upstream errors, pass through untouched.
package gateway
