// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal prints "error: <err>" to stderr and exits with status 1.
// main() hands it the error from run(); the structured logger may not
// exist yet at that point, so stderr is the right channel.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
