// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential mints and verifies the HMAC-signed bearer
// credentials the gateway hands out: short-lived access credentials
// presented on every proxied request, and long-lived refresh
// credentials exchanged for fresh pairs.
//
// # Wire format
//
// A credential is base64.RawURLEncoding(payload || mac). The payload
// is deterministic CBOR (RFC 8949 core deterministic encoding) of
// [Claims] — integer-keyed, so the payload stays compact and stable.
// The mac is HMAC-SHA256 over the payload. Deterministic encoding plus
// a deterministic MAC means the same (kind, subject, instant) always
// produces the byte-identical credential.
//
// # Keys
//
// The two kinds sign under independent keys: each 32-byte deployment
// secret is stretched through HKDF-SHA256 with a per-kind info string,
// so an access credential never verifies as a refresh credential even
// if an operator mistakenly provisions related secrets. Construction
// refuses outright equal secrets ([ErrSecretsEqual]).
//
// # Verification order
//
// [Signer.Verify] checks the signature before the expiry: a tampered
// credential reports [ErrInvalidSignature] even when its claims are
// long expired. Expiry is inclusive — a credential is valid at exactly
// its expiry instant and invalid one second past it.
//
// [Lifecycle] composes the two kinds: Issue mints a pair for a
// verified subject, Rotate exchanges a live refresh credential for a
// fresh pair. There is no revocation and no refresh reuse detection;
// holding a refresh credential is the capability.
//
// Signer and Lifecycle are immutable after construction and safe for
// concurrent use.
package credential
