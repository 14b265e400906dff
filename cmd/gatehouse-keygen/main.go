// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// gatehouse-keygen generates the signing secrets a gatehouse
// deployment needs: the access and refresh credential secrets and the
// assertion secret shared with the identity provider. Each secret is
// written hex-encoded to its own file, readable only by the owner.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gatehouse/credential"
	"github.com/bureau-foundation/gatehouse/lib/sealed"
	"github.com/bureau-foundation/gatehouse/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// secretNames are the basenames of the generated files, in the order
// they are written. Each becomes <dir>/<name>.secret.
var secretNames = []string{"access", "refresh", "assertion"}

func run() error {
	var outputDir string
	var force bool
	var sealRecipient string

	flagSet := pflag.NewFlagSet("gatehouse-keygen", pflag.ContinueOnError)
	flagSet.StringVar(&outputDir, "dir", ".", "directory the secret files are written to")
	flagSet.BoolVar(&force, "force", false, "overwrite existing secret files")
	flagSet.StringVar(&sealRecipient, "seal", "", "age public key; also print a sealed escrow bundle to stdout")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other
	// gatehouse binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("gatehouse-keygen")
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

	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if sealRecipient != "" {
		if err := sealed.ParsePublicKey(sealRecipient); err != nil {
			return fmt.Errorf("invalid --seal recipient: %w", err)
		}
	}

	secrets := make(map[string]string, len(secretNames))
	for _, name := range secretNames {
		value, err := credential.GenerateSecret()
		if err != nil {
			return err
		}
		secrets[name] = value
	}

	for _, name := range secretNames {
		path := filepath.Join(outputDir, name+".secret")
		if !force {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
		if err := os.WriteFile(path, []byte(secrets[name]+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	}

	// The escrow bundle lets an operator recover the secrets without
	// shell access to the gateway host. Ciphertext goes to stdout so
	// it can be piped; status messages stay on stderr.
	if sealRecipient != "" {
		bundle, err := json.Marshal(secrets)
		if err != nil {
			return fmt.Errorf("encoding escrow bundle: %w", err)
		}
		ciphertext, err := sealed.Encrypt(bundle, []string{sealRecipient})
		if err != nil {
			return fmt.Errorf("sealing escrow bundle: %w", err)
		}
		fmt.Fprintln(os.Stdout, ciphertext)
		fmt.Fprintf(os.Stderr, "sealed escrow bundle for %s\n", sealRecipient)
	}

	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Generate gatehouse signing secrets.

Writes access.secret, refresh.secret, and assertion.secret to the
output directory, each a fresh random secret hex-encoded on one line.
Point the gateway's secrets config at the files, and give
assertion.secret to the identity provider that signs assertions.

With --seal, an age-encrypted bundle of all three secrets is printed
to stdout for operator escrow. Decrypt with the matching private key.

Usage:
  gatehouse-keygen [flags]

Examples:
  # Generate secrets in /etc/gatehouse
  gatehouse-keygen --dir /etc/gatehouse

  # Rotate in place and escrow the new secrets
  gatehouse-keygen --dir /etc/gatehouse --force --seal age1... > escrow.age

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
