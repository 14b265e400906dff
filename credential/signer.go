// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/gatehouse/lib/codec"
	"github.com/bureau-foundation/gatehouse/lib/secret"
)

// SecretSize is the required length of each raw signing secret.
const SecretSize = 32

// macSize is the length of the HMAC-SHA256 trailer on every credential.
const macSize = sha256.Size // 32 bytes

// Default credential lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 365 * 24 * time.Hour
)

// HKDF info strings. These are the "info" parameter to HKDF-SHA256,
// providing domain separation between the two credential kinds.
// Changing either invalidates every credential minted under it.
var (
	hkdfInfoAccess  = []byte("gatehouse.credential.access.v1")
	hkdfInfoRefresh = []byte("gatehouse.credential.refresh.v1")
)

// Kind selects which signing key and lifetime a credential uses.
type Kind int

const (
	// Access credentials ride the Authorization header of proxied
	// requests. Short-lived.
	Access Kind = iota

	// Refresh credentials are exchanged for fresh pairs at the
	// session-refresh endpoint. Long-lived.
	Refresh
)

// String returns the kind's lowercase name.
func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Claims is the CBOR-encoded payload of a credential.
type Claims struct {
	// Subject is the verified identity the credential was minted
	// for. May be empty: an empty subject is tracked like any other
	// by admission control.
	Subject string `cbor:"1,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the credential
	// was minted.
	IssuedAt int64 `cbor:"2,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds). The credential is
	// valid through this instant and invalid after it.
	ExpiresAt int64 `cbor:"3,keyasint"`
}

// Errors returned by Verify and NewSigner.
var (
	ErrTokenMalformed   = errors.New("credential: malformed token")
	ErrTokenTooShort    = errors.New("credential: token too short for signature")
	ErrInvalidSignature = errors.New("credential: invalid signature")
	ErrTokenExpired     = errors.New("credential: token has expired")
	ErrSecretsEqual     = errors.New("credential: access and refresh secrets must differ")
)

// SignerConfig holds the parameters for NewSigner. Both secrets are
// required; zero TTLs take the package defaults.
type SignerConfig struct {
	// AccessSecret is the raw access-kind secret, SecretSize bytes.
	// Borrowed: read during construction, not closed.
	AccessSecret *secret.Buffer

	// RefreshSecret is the raw refresh-kind secret, SecretSize bytes.
	// Borrowed: read during construction, not closed.
	RefreshSecret *secret.Buffer

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Signer mints and verifies credentials of both kinds. Immutable
// after construction; safe for concurrent use.
type Signer struct {
	accessKey  *secret.Buffer
	refreshKey *secret.Buffer
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSigner derives the per-kind MAC keys and returns a ready Signer.
// Fails if either secret is missing or mis-sized, or if the two
// secrets are equal (ErrSecretsEqual) — equal secrets would collapse
// the kinds into one key space.
//
// The caller must call Close when the signer is no longer needed.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.AccessSecret == nil || cfg.RefreshSecret == nil {
		return nil, fmt.Errorf("credential: both access and refresh secrets are required")
	}
	if cfg.AccessSecret.Len() != SecretSize {
		return nil, fmt.Errorf("credential: access secret is %d bytes, want %d", cfg.AccessSecret.Len(), SecretSize)
	}
	if cfg.RefreshSecret.Len() != SecretSize {
		return nil, fmt.Errorf("credential: refresh secret is %d bytes, want %d", cfg.RefreshSecret.Len(), SecretSize)
	}
	if cfg.AccessSecret.Equal(cfg.RefreshSecret.Bytes()) {
		return nil, ErrSecretsEqual
	}

	accessTTL := cfg.AccessTTL
	if accessTTL == 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTTL
	}

	accessKey, err := deriveKey(cfg.AccessSecret.Bytes(), hkdfInfoAccess)
	if err != nil {
		return nil, fmt.Errorf("credential: deriving access key: %w", err)
	}
	refreshKey, err := deriveKey(cfg.RefreshSecret.Bytes(), hkdfInfoRefresh)
	if err != nil {
		accessKey.Close()
		return nil, fmt.Errorf("credential: deriving refresh key: %w", err)
	}

	return &Signer{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// Close zeros and releases the derived MAC keys. After Close, Sign
// and Verify panic (via secret.Buffer's closed check). Idempotent.
func (s *Signer) Close() error {
	return errors.Join(s.accessKey.Close(), s.refreshKey.Close())
}

// TTL returns the lifetime for the given kind.
func (s *Signer) TTL(kind Kind) time.Duration {
	if kind == Refresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Sign mints a credential for subject at now: claims {subject, now,
// now + ttl(kind)}, deterministic CBOR, HMAC trailer, base64. The
// same inputs always produce the identical credential.
func (s *Signer) Sign(kind Kind, subject string, now time.Time) (string, error) {
	claims := Claims{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.TTL(kind)).Unix(),
	}

	payload, err := codec.Marshal(&claims)
	if err != nil {
		return "", fmt.Errorf("credential: encoding claims: %w", err)
	}

	mac := hmac.New(sha256.New, s.key(kind).Bytes())
	mac.Write(payload)

	wire := mac.Sum(payload) // appends the MAC to the payload
	return base64.RawURLEncoding.EncodeToString(wire), nil
}

// Verify decodes and checks a credential of the given kind at now.
// The checks run in a fixed order — base64 shape, length, signature,
// claims decode, expiry — so a tampered credential reports
// ErrInvalidSignature even when its claims are expired. Expiry is
// inclusive: a credential is valid at exactly ExpiresAt.
func (s *Signer) Verify(kind Kind, token string, now time.Time) (Claims, error) {
	wire, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if len(wire) <= macSize {
		return Claims{}, ErrTokenTooShort
	}

	splitPoint := len(wire) - macSize
	payload := wire[:splitPoint]
	trailer := wire[splitPoint:]

	mac := hmac.New(sha256.New, s.key(kind).Bytes())
	mac.Write(payload)
	if !hmac.Equal(trailer, mac.Sum(nil)) {
		return Claims{}, ErrInvalidSignature
	}

	var claims Claims
	if err := codec.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: decoding claims: %v", ErrTokenMalformed, err)
	}

	if now.Unix() > claims.ExpiresAt {
		return Claims{}, ErrTokenExpired
	}

	return claims, nil
}

func (s *Signer) key(kind Kind) *secret.Buffer {
	if kind == Refresh {
		return s.refreshKey
	}
	return s.accessKey
}

// deriveKey stretches a raw deployment secret into a MAC key via
// HKDF-SHA256. The salt is nil: the secrets are generated uniformly
// random by gatehouse-keygen, so the extract phase with a zero-key
// HMAC is appropriate per RFC 5869.
func deriveKey(inputKeyMaterial []byte, info []byte) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, inputKeyMaterial, nil, info)
	derived := make([]byte, SecretSize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(derived)
}
