// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "fmt"

// Build metadata, overwritten by -ldflags -X on release builds.
var (
	// Version is the semantic version, bumped by hand for releases.
	Version = "0.1.0-dev"

	// GitCommit is the short SHA the binary was built from.
	GitCommit = "unknown"

	// GitDirty is "true" when the build tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Info renders the version line, e.g. "1.2.0 (ab3f91c, 2026-08-14T09:12:03Z)".
// A dirty build tree is marked with a "-dirty" suffix on the commit.
func Info() string {
	commit := GitCommit
	if GitDirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, BuildTime)
}

// Print writes "<binary> <version line>" to stdout. Binaries call it
// when invoked with --version.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}
