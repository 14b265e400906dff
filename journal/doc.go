// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal persists admission decisions and credential events
// to SQLite for operators.
//
// The journal is observability, not state: admission control and
// credential verification never read it, a write failure never denies
// a request (callers log at Warn and drop the record), and losing the
// database loses nothing but history.
//
// Raw identities and subjects never reach the database. Record
// methods digest them with BLAKE3 under a domain tag before storage,
// so an exported journal correlates behavior per identity without
// disclosing who the identity is.
//
// RunRetention prunes rows older than the configured retention in the
// background. Export streams the journal as length-prefixed CBOR
// records, optionally compressed with lz4 or zstd.
package journal
