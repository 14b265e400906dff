// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes build metadata for Gatehouse binaries.
//
// Release builds inject the package variables through -ldflags:
//
//	go build -ldflags "\
//	  -X github.com/bureau-foundation/gatehouse/lib/version.Version=1.2.0 \
//	  -X github.com/bureau-foundation/gatehouse/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds and test runs leave them at their defaults
// ("0.1.0-dev", "unknown"). [Info] formats the assembled string for
// startup logs and status payloads; [Print] writes the --version line
// for a named binary.
package version
