// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Gatehouse's shared CBOR encoding
// configuration.
//
// Gatehouse uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the HTTP API (session endpoints,
//     error envelopes, admin status) and the route policy file.
//   - CBOR for compact signed payloads and archives: credential
//     claims and journal export frames.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical data always produces identical bytes. The
// credential MAC is computed over the encoded claims, so determinism
// here is what makes signing deterministic.
//
// For buffer-oriented operations (credentials):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (journal exports):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
