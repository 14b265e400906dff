// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity verifies provider assertions at the session
// boundary.
//
// The identity-provider handshake itself (login, MFA, federation)
// happens outside Gatehouse. What crosses the boundary is a compact
// assertion that a provider has verified a subject:
//
//	base64url( {"subject": ..., "issued_at": unix} || HMAC-SHA256 )
//
// signed under a secret shared between the provider and the Gatehouse
// deployment. HMACVerifier checks the signature and freshness and
// recovers the subject; the gateway then mints a credential pair for
// it. Assertions are single-purpose and short-lived (DefaultMaxAge)
// so a captured one is useless shortly after issue.
package identity
