// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bureau-foundation/gatehouse/lib/secret"
)

func generateKeypair(t *testing.T) *Keypair {
	t.Helper()
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	t.Cleanup(func() { keypair.Close() })
	return keypair
}

func TestGenerateKeypair(t *testing.T) {
	keypair := generateKeypair(t)

	if !strings.HasPrefix(keypair.PrivateKey.String(), "AGE-SECRET-KEY-1") {
		t.Error("PrivateKey missing AGE-SECRET-KEY-1 prefix")
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want prefix age1", keypair.PublicKey)
	}
	if keypair.PrivateKey.Len() < 20 {
		t.Errorf("PrivateKey too short: %d bytes", keypair.PrivateKey.Len())
	}
}

func TestGenerateKeypair_Unique(t *testing.T) {
	keypair1 := generateKeypair(t)
	keypair2 := generateKeypair(t)

	if keypair1.PrivateKey.Equal([]byte(keypair2.PrivateKey.String())) {
		t.Error("two generated keypairs have identical private keys")
	}
	if keypair1.PublicKey == keypair2.PublicKey {
		t.Error("two generated keypairs have identical public keys")
	}
}

func TestEncryptDecrypt_SingleRecipient(t *testing.T) {
	keypair := generateKeypair(t)

	plaintext := []byte("hello, gatehouse secrets")
	ciphertext, err := Encrypt(append([]byte(nil), plaintext...), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Ciphertext should be valid base64.
	if _, err := base64.StdEncoding.DecodeString(ciphertext); err != nil {
		t.Errorf("Encrypt() returned invalid base64: %v", err)
	}
	if ciphertext == string(plaintext) {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	defer decrypted.Close()
	if !decrypted.Equal(plaintext) {
		t.Errorf("Decrypt() = %q, want %q", decrypted.String(), plaintext)
	}
}

func TestEncryptDecrypt_MultipleRecipients(t *testing.T) {
	// Generate two keypairs (simulating gateway host key + operator escrow).
	host := generateKeypair(t)
	operator := generateKeypair(t)

	plaintext := []byte(`{"access_secret":"aa","refresh_secret":"bb"}`)
	ciphertext, err := Encrypt(append([]byte(nil), plaintext...), []string{host.PublicKey, operator.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Both recipients should be able to decrypt independently.
	decryptedByHost, err := Decrypt(ciphertext, host.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt(host) error: %v", err)
	}
	defer decryptedByHost.Close()
	if !decryptedByHost.Equal(plaintext) {
		t.Errorf("Decrypt(host) = %q, want %q", decryptedByHost.String(), plaintext)
	}

	decryptedByOperator, err := Decrypt(ciphertext, operator.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt(operator) error: %v", err)
	}
	defer decryptedByOperator.Close()
	if !decryptedByOperator.Equal(plaintext) {
		t.Errorf("Decrypt(operator) = %q, want %q", decryptedByOperator.String(), plaintext)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	keypair := generateKeypair(t)
	wrongKeypair := generateKeypair(t)

	ciphertext, err := Encrypt([]byte("secret data"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := Decrypt(ciphertext, wrongKeypair.PrivateKey); err == nil {
		t.Error("Decrypt() with wrong key should return error")
	}
}

func TestEncrypt_NoRecipients(t *testing.T) {
	_, err := Encrypt([]byte("data"), nil)
	if err == nil {
		t.Fatal("Encrypt() with no recipients should return error")
	}
	if !strings.Contains(err.Error(), "at least one recipient") {
		t.Errorf("error = %v, want 'at least one recipient'", err)
	}

	if _, err := Encrypt([]byte("data"), []string{}); err == nil {
		t.Error("Encrypt() with empty recipients should return error")
	}
}

func TestEncrypt_InvalidRecipientKey(t *testing.T) {
	_, err := Encrypt([]byte("data"), []string{"not-a-valid-key"})
	if err == nil {
		t.Fatal("Encrypt() with invalid recipient key should return error")
	}
	if !strings.Contains(err.Error(), "parsing recipient key") {
		t.Errorf("error = %v, want 'parsing recipient key'", err)
	}
}

func TestDecrypt_InvalidPrivateKey(t *testing.T) {
	keypair := generateKeypair(t)
	ciphertext, err := Encrypt([]byte("data"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	garbage, err := secret.NewFromBytes([]byte("not-a-valid-private-key"))
	if err != nil {
		t.Fatalf("NewFromBytes() error: %v", err)
	}
	defer garbage.Close()

	_, err = Decrypt(ciphertext, garbage)
	if err == nil {
		t.Fatal("Decrypt() with invalid private key should return error")
	}
	if !strings.Contains(err.Error(), "parsing private key") {
		t.Errorf("error = %v, want 'parsing private key'", err)
	}
}

func TestDecrypt_InvalidBase64(t *testing.T) {
	keypair := generateKeypair(t)

	_, err := Decrypt("not-valid-base64!!!", keypair.PrivateKey)
	if err == nil {
		t.Fatal("Decrypt() with invalid base64 should return error")
	}
	if !strings.Contains(err.Error(), "decoding base64") {
		t.Errorf("error = %v, want 'decoding base64'", err)
	}
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	keypair := generateKeypair(t)

	// Valid base64 but not valid age ciphertext.
	corruptedBase64 := base64.StdEncoding.EncodeToString([]byte("this is not age ciphertext"))

	if _, err := Decrypt(corruptedBase64, keypair.PrivateKey); err == nil {
		t.Error("Decrypt() with corrupted ciphertext should return error")
	}
}

func TestEncryptDecrypt_BundleRoundTrip(t *testing.T) {
	// The full gatehouse-keygen lifecycle: marshal the secret bundle as
	// JSON, encrypt to host + operator, decrypt on the host, unmarshal.
	host := generateKeypair(t)
	operator := generateKeypair(t)

	bundle := map[string]string{
		"access_secret":    "4f1d3a8b",
		"refresh_secret":   "9c2e7b01",
		"assertion_secret": "d6a05f44",
	}
	jsonPayload, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}

	ciphertext, err := Encrypt(jsonPayload, []string{host.PublicKey, operator.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	decrypted, err := Decrypt(ciphertext, host.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	defer decrypted.Close()

	var recovered map[string]string
	if err := json.Unmarshal(decrypted.Bytes(), &recovered); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if len(recovered) != len(bundle) {
		t.Fatalf("recovered bundle has %d keys, want %d", len(recovered), len(bundle))
	}
	for key, wantValue := range bundle {
		if recovered[key] != wantValue {
			t.Errorf("recovered[%q] = %q, want %q", key, recovered[key], wantValue)
		}
	}
}

func TestParsePublicKey(t *testing.T) {
	keypair := generateKeypair(t)

	if err := ParsePublicKey(keypair.PublicKey); err != nil {
		t.Errorf("ParsePublicKey(valid) error: %v", err)
	}
	if err := ParsePublicKey("not-a-valid-key"); err == nil {
		t.Error("ParsePublicKey(invalid) should return error")
	}
	if err := ParsePublicKey(""); err == nil {
		t.Error("ParsePublicKey(empty) should return error")
	}
}

func TestParsePrivateKey(t *testing.T) {
	keypair := generateKeypair(t)

	if err := ParsePrivateKey(keypair.PrivateKey); err != nil {
		t.Errorf("ParsePrivateKey(valid) error: %v", err)
	}

	garbage, err := secret.NewFromBytes([]byte("not-a-valid-key"))
	if err != nil {
		t.Fatalf("NewFromBytes() error: %v", err)
	}
	defer garbage.Close()
	if err := ParsePrivateKey(garbage); err == nil {
		t.Error("ParsePrivateKey(invalid) should return error")
	}
}
