// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bureau-foundation/gatehouse/lib/secret"
)

// GenerateSecret returns a fresh random signing secret, hex-encoded
// for writing to a secret file. gatehouse-keygen is the usual caller.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("credential: generating secret: %w", err)
	}
	encoded := hex.EncodeToString(raw)
	secret.Zero(raw)
	return encoded, nil
}

// LoadSecret reads one hex-encoded secret file into guarded memory.
// The file must decode to exactly SecretSize bytes. The returned
// buffer must be closed by the caller.
func LoadSecret(path string) (*secret.Buffer, error) {
	hexBuffer, err := secret.ReadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("credential: reading secret %s: %w", path, err)
	}
	defer hexBuffer.Close()

	decoded := make([]byte, hex.DecodedLen(hexBuffer.Len()))
	n, err := hex.Decode(decoded, hexBuffer.Bytes())
	if err != nil {
		secret.Zero(decoded)
		return nil, fmt.Errorf("credential: decoding secret %s: %w", path, err)
	}
	if n != SecretSize {
		secret.Zero(decoded)
		return nil, fmt.Errorf("credential: secret %s decodes to %d bytes, want %d", path, n, SecretSize)
	}

	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(decoded)
}

// LoadSecrets loads the access and refresh signing secrets. On error,
// neither returned buffer needs closing.
func LoadSecrets(accessPath, refreshPath string) (access, refresh *secret.Buffer, err error) {
	access, err = LoadSecret(accessPath)
	if err != nil {
		return nil, nil, err
	}
	refresh, err = LoadSecret(refreshPath)
	if err != nil {
		access.Close()
		return nil, nil, err
	}
	return access, refresh, nil
}
