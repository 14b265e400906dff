// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/gatehouse/lib/secret"
)

var verifierBase = time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

func testProviderSecret(t *testing.T, fill byte) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes(bytes.Repeat([]byte{fill}, 32))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func testVerifier(t *testing.T) (*HMACVerifier, *secret.Buffer) {
	t.Helper()
	providerSecret := testProviderSecret(t, 0x77)
	verifier, err := NewHMACVerifier(providerSecret, 0)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	t.Cleanup(func() { verifier.Close() })
	return verifier, providerSecret
}

func TestVerifySubject(t *testing.T) {
	verifier, providerSecret := testVerifier(t)

	assertion, err := SignAssertion(providerSecret, "alice", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	subject, err := verifier.VerifySubject(assertion, verifierBase.Add(30*time.Second))
	if err != nil {
		t.Fatalf("VerifySubject: %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}
}

func TestVerifySubject_FreshnessBoundary(t *testing.T) {
	verifier, providerSecret := testVerifier(t)

	assertion, err := SignAssertion(providerSecret, "alice", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	// Acceptable at exactly issued_at + maxAge.
	if _, err := verifier.VerifySubject(assertion, verifierBase.Add(DefaultMaxAge)); err != nil {
		t.Errorf("VerifySubject at exact max age: %v, want ok", err)
	}

	// Stale one second past it.
	_, err = verifier.VerifySubject(assertion, verifierBase.Add(DefaultMaxAge+time.Second))
	if !errors.Is(err, ErrAssertionExpired) {
		t.Errorf("VerifySubject past max age: got %v, want ErrAssertionExpired", err)
	}
}

func TestVerifySubject_CustomMaxAge(t *testing.T) {
	providerSecret := testProviderSecret(t, 0x77)
	verifier, err := NewHMACVerifier(providerSecret, 10*time.Second)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	defer verifier.Close()

	assertion, err := SignAssertion(providerSecret, "alice", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	if _, err := verifier.VerifySubject(assertion, verifierBase.Add(10*time.Second)); err != nil {
		t.Errorf("VerifySubject within custom max age: %v, want ok", err)
	}
	_, err = verifier.VerifySubject(assertion, verifierBase.Add(11*time.Second))
	if !errors.Is(err, ErrAssertionExpired) {
		t.Errorf("VerifySubject past custom max age: got %v, want ErrAssertionExpired", err)
	}
}

func TestVerifySubject_WrongSecret(t *testing.T) {
	verifier, _ := testVerifier(t)
	otherSecret := testProviderSecret(t, 0x88)

	assertion, err := SignAssertion(otherSecret, "alice", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	_, err = verifier.VerifySubject(assertion, verifierBase)
	if !errors.Is(err, ErrAssertionInvalid) {
		t.Errorf("assertion under wrong secret: got %v, want ErrAssertionInvalid", err)
	}
}

func TestVerifySubject_Tampered(t *testing.T) {
	verifier, providerSecret := testVerifier(t)

	assertion, err := SignAssertion(providerSecret, "alice", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	wire, err := base64.RawURLEncoding.DecodeString(assertion)
	if err != nil {
		t.Fatalf("decoding assertion: %v", err)
	}
	wire[0] ^= 0xFF
	tampered := base64.RawURLEncoding.EncodeToString(wire)

	_, err = verifier.VerifySubject(tampered, verifierBase)
	if !errors.Is(err, ErrAssertionInvalid) {
		t.Errorf("tampered assertion: got %v, want ErrAssertionInvalid", err)
	}
}

func TestVerifySubject_Malformed(t *testing.T) {
	verifier, _ := testVerifier(t)

	for _, assertion := range []string{
		"",
		"not base64url !!!",
		base64.RawURLEncoding.EncodeToString(make([]byte, macSize)),
	} {
		_, err := verifier.VerifySubject(assertion, verifierBase)
		if !errors.Is(err, ErrAssertionMalformed) {
			t.Errorf("VerifySubject(%q): got %v, want ErrAssertionMalformed", assertion, err)
		}
	}
}

func TestVerifySubject_EmptySubject(t *testing.T) {
	verifier, providerSecret := testVerifier(t)

	assertion, err := SignAssertion(providerSecret, "", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}
	subject, err := verifier.VerifySubject(assertion, verifierBase)
	if err != nil {
		t.Fatalf("VerifySubject: %v", err)
	}
	if subject != "" {
		t.Errorf("subject = %q, want empty", subject)
	}
}

func TestNewHMACVerifier_Validation(t *testing.T) {
	if _, err := NewHMACVerifier(nil, 0); err == nil {
		t.Error("NewHMACVerifier(nil) should fail")
	}
	providerSecret := testProviderSecret(t, 0x77)
	if _, err := NewHMACVerifier(providerSecret, -time.Second); err == nil {
		t.Error("NewHMACVerifier with negative max age should fail")
	}
}

func TestNewHMACVerifier_CopiesSecret(t *testing.T) {
	providerSecret := testProviderSecret(t, 0x77)
	assertion, err := SignAssertion(providerSecret, "alice", verifierBase)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	verifier, err := NewHMACVerifier(providerSecret, 0)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	defer verifier.Close()

	// Closing the caller's buffer must not break the verifier.
	providerSecret.Close()

	if _, err := verifier.VerifySubject(assertion, verifierBase); err != nil {
		t.Errorf("VerifySubject after caller closed its buffer: %v", err)
	}
}
