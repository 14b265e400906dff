// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"fmt"
	"time"
)

// Pair is one issued access + refresh credential set.
type Pair struct {
	// Subject both credentials were minted for.
	Subject string

	AccessToken     string
	AccessExpiresAt time.Time

	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Lifecycle issues and rotates credential pairs. Safe for concurrent
// use.
type Lifecycle struct {
	signer *Signer
}

// NewLifecycle wraps a signer. Panics on a nil signer: the lifecycle
// cannot exist without one, and a nil here is a wiring bug.
func NewLifecycle(signer *Signer) *Lifecycle {
	if signer == nil {
		panic("credential: NewLifecycle requires a signer")
	}
	return &Lifecycle{signer: signer}
}

// Issue mints a fresh pair for subject. Both credentials carry the
// same issue instant; their expiries differ by kind.
func (l *Lifecycle) Issue(subject string, now time.Time) (Pair, error) {
	accessToken, err := l.signer.Sign(Access, subject, now)
	if err != nil {
		return Pair{}, fmt.Errorf("credential: issuing access credential: %w", err)
	}
	refreshToken, err := l.signer.Sign(Refresh, subject, now)
	if err != nil {
		return Pair{}, fmt.Errorf("credential: issuing refresh credential: %w", err)
	}

	return Pair{
		Subject:          subject,
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(l.signer.TTL(Access)),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(l.signer.TTL(Refresh)),
	}, nil
}

// Rotate verifies a refresh credential and, on success, issues a
// fresh pair for the recovered subject at now. The new refresh expiry
// is strictly later than now. Verification failures propagate
// unchanged (ErrTokenExpired, ErrInvalidSignature, ...); there is no
// reuse detection — the old refresh credential stays valid until it
// expires.
func (l *Lifecycle) Rotate(refreshToken string, now time.Time) (Pair, error) {
	claims, err := l.signer.Verify(Refresh, refreshToken, now)
	if err != nil {
		return Pair{}, err
	}
	return l.Issue(claims.Subject, now)
}
