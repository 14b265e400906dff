// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for key material: the
// access and refresh signing secrets and the identity-provider
// assertion secret.
//
// [Buffer] allocates memory outside the Go heap via
// mmap(MAP_ANONYMOUS), locks it into physical RAM via mlock
// (preventing swap), and marks it excluded from core dumps via
// madvise(MADV_DONTDUMP). On Close, the memory is zeroed, unlocked,
// and unmapped. Because the memory lives outside the Go heap, the
// garbage collector cannot copy or relocate it, so no stray copies of
// a signing secret survive release.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer of a given size
//   - [NewFromBytes] copies into protected memory and zeros the source
//
// Access via [Buffer.Bytes] (slice into the mmap region) or
// [Buffer.String] (heap copy, for API boundaries only). [Buffer.Equal]
// compares in constant time. [ReadFromPath] loads a secret file (or
// stdin with "-"). After Close, any access panics; Close is
// idempotent.
//
// Depends only on golang.org/x/sys/unix. Imported by credential,
// identity, and lib/sealed.
package secret
