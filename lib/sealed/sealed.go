// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/bureau-foundation/gatehouse/lib/secret"
)

// Keypair is an age x25519 keypair. The private half lives in a
// secret.Buffer; the public half is an ordinary string and may appear
// in manifests, flags, and logs. Close releases the private half.
type Keypair struct {
	// PrivateKey holds the AGE-SECRET-KEY-1... string in locked mmap
	// memory. Never log it, never write it to disk unencrypted, never
	// pass it on a command line.
	PrivateKey *secret.Buffer

	// PublicKey is the matching age1... recipient string.
	PublicKey string
}

// Close zeroes and unmaps the private key. Calling it twice is fine.
func (k *Keypair) Close() error {
	if k.PrivateKey == nil {
		return nil
	}
	return k.PrivateKey.Close()
}

// GenerateKeypair mints a fresh age x25519 keypair, parking the private
// key in locked memory. Operators keep the private key offline; only
// the public key is handed to gatehouse-keygen. Close the returned
// Keypair when finished.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	// age hands the key back as a heap string; copy it into locked
	// memory right away. The heap copy is transient and will be GC'd,
	// the buffer is the copy that persists.
	keyBytes := []byte(identity.String())
	buffer, err := secret.NewFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: buffer,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// parseRecipients turns age1... strings into age recipients, rejecting
// the batch on the first malformed key.
func parseRecipients(recipientKeys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// Encrypt seals plaintext to one or more age public keys and returns
// the ciphertext as a single standard-base64 string, ready to write to
// a bundle file or pipe between tools. At least one recipient is
// required; for escrow bundles the recipients are the operators
// entitled to provision gateways.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}
	recipients, err := parseRecipients(recipientKeys)
	if err != nil {
		return "", err
	}

	var sealedOutput bytes.Buffer
	encryptor, err := age.Encrypt(&sealedOutput, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := encryptor.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := encryptor.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sealedOutput.Bytes()), nil
}

// Decrypt unseals a base64 ciphertext with the given private key and
// returns the plaintext in a secret.Buffer, which the caller must
// Close. The private key is borrowed, not consumed.
func Decrypt(ciphertext string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	// age.ParseX25519Identity wants a string, so the key briefly
	// crosses onto the heap here. That window is unavoidable with the
	// age API.
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	sealedBytes, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}

	opened, err := age.Decrypt(bytes.NewReader(sealedBytes), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(opened)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}

	// A sealed empty payload is legitimate age ciphertext, but an mmap
	// buffer cannot be zero-length. Hand back a one-byte zeroed buffer.
	if len(plaintext) == 0 {
		empty, err := secret.New(1)
		if err != nil {
			return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
		}
		return empty, nil
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}

// ParsePublicKey checks that a string is a well-formed age x25519
// public key. Run it on recipient flags before generating anything, so
// a typo fails the command instead of producing an unopenable bundle.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

// ParsePrivateKey checks that the buffer holds a well-formed age x25519
// private key.
func ParsePrivateKey(privateKey *secret.Buffer) error {
	if _, err := age.ParseX25519Identity(privateKey.String()); err != nil {
		return fmt.Errorf("invalid age private key: %w", err)
	}
	return nil
}
