// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// gatehouse-inspect decodes a gatehouse credential and prints its
// claims. The claims ride unencrypted in the token, so decoding needs
// no secrets; pass --secrets to additionally check the HMAC trailer
// against a deployment's signing secrets.
package main

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gatehouse/credential"
	"github.com/bureau-foundation/gatehouse/lib/codec"
	"github.com/bureau-foundation/gatehouse/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var secretsDir string
	var kindName string
	var atFlag string

	flagSet := pflag.NewFlagSet("gatehouse-inspect", pflag.ContinueOnError)
	flagSet.StringVar(&secretsDir, "secrets", "", "directory with access.secret and refresh.secret; verify the signature")
	flagSet.StringVar(&kindName, "kind", "access", "credential kind to verify against (access or refresh)")
	flagSet.StringVar(&atFlag, "at", "", "RFC 3339 instant to evaluate expiry at (default: now)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other
	// gatehouse binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("gatehouse-inspect")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	var kind credential.Kind
	switch kindName {
	case "access":
		kind = credential.Access
	case "refresh":
		kind = credential.Refresh
	default:
		return fmt.Errorf("unknown --kind %q (want access or refresh)", kindName)
	}

	at := time.Now()
	if atFlag != "" {
		parsed, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = parsed
	}

	args := flagSet.Args()
	if len(args) > 1 {
		return fmt.Errorf("unexpected argument: %s", args[1])
	}

	// Read the token from the argument, or from stdin when no
	// argument is given. Stdin keeps the token out of the process
	// listing and shell history.
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading token from stdin: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return fmt.Errorf("no token provided (pass as argument or pipe to stdin)")
	}

	claims, err := decodeClaims(token)
	if err != nil {
		return err
	}

	issued := time.Unix(claims.IssuedAt, 0).UTC()
	expires := time.Unix(claims.ExpiresAt, 0).UTC()

	fmt.Printf("Subject:    %q\n", claims.Subject)
	fmt.Printf("Issued at:  %s\n", issued.Format(time.RFC3339))
	if at.Unix() > claims.ExpiresAt {
		fmt.Printf("Expires at: %s (expired %s ago)\n",
			expires.Format(time.RFC3339), at.Sub(expires).Truncate(time.Second))
	} else {
		fmt.Printf("Expires at: %s (%s left)\n",
			expires.Format(time.RFC3339), expires.Sub(at).Truncate(time.Second))
	}

	if secretsDir == "" {
		fmt.Printf("Signature:  not checked (pass --secrets to verify)\n")
		return nil
	}

	accessSecret, refreshSecret, err := credential.LoadSecrets(
		filepath.Join(secretsDir, "access.secret"),
		filepath.Join(secretsDir, "refresh.secret"),
	)
	if err != nil {
		return err
	}
	defer accessSecret.Close()
	defer refreshSecret.Close()

	signer, err := credential.NewSigner(credential.SignerConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
	})
	if err != nil {
		return err
	}
	defer signer.Close()

	_, err = signer.Verify(kind, token, at)
	switch {
	case err == nil:
		fmt.Printf("Signature:  valid (%s)\n", kind)
	case errors.Is(err, credential.ErrTokenExpired):
		// Expiry is checked after the signature, so an expired
		// verdict means the trailer was genuine.
		fmt.Printf("Signature:  valid (%s), credential expired\n", kind)
	default:
		return fmt.Errorf("verifying as %s credential: %w", kind, err)
	}

	return nil
}

// decodeClaims splits the MAC trailer off the wire form and decodes
// the CBOR claims without checking the signature.
func decodeClaims(token string) (credential.Claims, error) {
	wire, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return credential.Claims{}, fmt.Errorf("not a gatehouse credential: %w", err)
	}
	if len(wire) <= sha256.Size {
		return credential.Claims{}, fmt.Errorf("not a gatehouse credential: too short for a signature trailer")
	}

	var claims credential.Claims
	if err := codec.Unmarshal(wire[:len(wire)-sha256.Size], &claims); err != nil {
		return credential.Claims{}, fmt.Errorf("decoding claims: %w", err)
	}
	return claims, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Decode a gatehouse credential and print its claims.

The claims payload is authenticated but not encrypted: anyone holding
a token can read its subject and validity window. Verifying that the
token was actually minted by a deployment requires that deployment's
signing secrets (the files written by gatehouse-keygen).

Exit status is nonzero when the token is malformed, or when --secrets
is given and the signature does not check out for the chosen kind.

Usage:
  gatehouse-inspect [flags] [token]

Examples:
  # Decode claims only
  gatehouse-inspect o2FzdWJqZWN0...

  # Read the token from stdin and verify it as an access credential
  pbpaste | gatehouse-inspect --secrets /etc/gatehouse

  # Verify a refresh credential at a specific instant
  gatehouse-inspect --secrets /etc/gatehouse --kind refresh --at 2026-04-01T00:00:00Z

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
