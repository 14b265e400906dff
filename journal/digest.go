// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// identityDigestContext is the BLAKE3 derive-key context for identity
// and subject digests. It is a protocol constant: changing it changes
// every digest, breaking correlation with previously exported
// journals.
const identityDigestContext = "gatehouse.journal.identity.v1"

// digestSize is the stored digest length in bytes (hex doubles it).
const digestSize = 16

// IdentityDigest returns the hex digest stored in place of a raw
// identity or subject. The digest is stable across restarts and
// deployments, so operators can correlate an identity's behavior over
// time, but it cannot be reversed to the identity itself.
func IdentityDigest(identity string) string {
	var digest [digestSize]byte
	blake3.DeriveKey(identityDigestContext, []byte(identity), digest[:])
	return hex.EncodeToString(digest[:])
}
