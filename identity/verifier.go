// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/gatehouse/lib/secret"
)

// DefaultMaxAge is how long an assertion stays acceptable after its
// issue instant. Assertions are exchanged for credentials immediately
// after the provider mints them; five minutes absorbs clock drift and
// retries without leaving a long replay window.
const DefaultMaxAge = 5 * time.Minute

// macSize is the length of the HMAC-SHA256 trailer on an assertion.
const macSize = sha256.Size

// Errors returned by VerifySubject.
var (
	ErrAssertionMalformed = errors.New("identity: malformed assertion")
	ErrAssertionInvalid   = errors.New("identity: invalid assertion signature")
	ErrAssertionExpired   = errors.New("identity: assertion has expired")
)

// Verifier recovers a verified subject from a provider assertion.
type Verifier interface {
	// VerifySubject checks the assertion at now and returns the
	// subject it vouches for.
	VerifySubject(assertion string, now time.Time) (string, error)
}

// assertionBody is the JSON payload under the MAC trailer.
type assertionBody struct {
	Subject  string `json:"subject"`
	IssuedAt int64  `json:"issued_at"`
}

// HMACVerifier verifies assertions signed under a shared provider
// secret. Immutable after construction; safe for concurrent use.
type HMACVerifier struct {
	secret *secret.Buffer
	maxAge time.Duration
}

// NewHMACVerifier wraps the shared provider secret. A zero maxAge
// takes DefaultMaxAge. The secret is copied into guarded memory
// owned by the verifier; the caller keeps ownership of its buffer.
//
// The caller must call Close when the verifier is no longer needed.
func NewHMACVerifier(providerSecret *secret.Buffer, maxAge time.Duration) (*HMACVerifier, error) {
	if providerSecret == nil || providerSecret.Len() == 0 {
		return nil, fmt.Errorf("identity: provider secret is required")
	}
	if maxAge < 0 {
		return nil, fmt.Errorf("identity: max age must not be negative, got %v", maxAge)
	}
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}

	copied := make([]byte, providerSecret.Len())
	copy(copied, providerSecret.Bytes())
	owned, err := secret.NewFromBytes(copied)
	if err != nil {
		return nil, fmt.Errorf("identity: copying provider secret: %w", err)
	}

	return &HMACVerifier{secret: owned, maxAge: maxAge}, nil
}

// Close zeros and releases the verifier's copy of the provider
// secret. Idempotent.
func (v *HMACVerifier) Close() error {
	return v.secret.Close()
}

// VerifySubject checks the assertion's signature and freshness at now
// and returns its subject. The signature is checked before the body
// is decoded, so a tampered assertion reports ErrAssertionInvalid
// regardless of its contents. Freshness is inclusive: an assertion is
// acceptable at exactly issued_at + maxAge and stale after it.
func (v *HMACVerifier) VerifySubject(assertion string, now time.Time) (string, error) {
	wire, err := base64.RawURLEncoding.DecodeString(assertion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssertionMalformed, err)
	}
	if len(wire) <= macSize {
		return "", fmt.Errorf("%w: too short for signature", ErrAssertionMalformed)
	}

	splitPoint := len(wire) - macSize
	body := wire[:splitPoint]
	trailer := wire[splitPoint:]

	mac := hmac.New(sha256.New, v.secret.Bytes())
	mac.Write(body)
	if !hmac.Equal(trailer, mac.Sum(nil)) {
		return "", ErrAssertionInvalid
	}

	var decoded assertionBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: decoding body: %v", ErrAssertionMalformed, err)
	}

	if now.Sub(time.Unix(decoded.IssuedAt, 0)) > v.maxAge {
		return "", ErrAssertionExpired
	}

	return decoded.Subject, nil
}

// SignAssertion mints an assertion for subject at issuedAt under the
// shared provider secret. Providers integrating with Gatehouse use
// this (or reimplement the two-line construction in their own
// language); Gatehouse itself calls it only from tests.
func SignAssertion(providerSecret *secret.Buffer, subject string, issuedAt time.Time) (string, error) {
	if providerSecret == nil || providerSecret.Len() == 0 {
		return "", fmt.Errorf("identity: provider secret is required")
	}

	body, err := json.Marshal(assertionBody{Subject: subject, IssuedAt: issuedAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("identity: encoding assertion body: %w", err)
	}

	mac := hmac.New(sha256.New, providerSecret.Bytes())
	mac.Write(body)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(body)), nil
}
