// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint glue shared by Gatehouse
// binaries. main() stays a thin shell around a run() function that
// returns an error; [Fatal] turns that error into a stderr line and a
// nonzero exit. Everything past startup reports through the structured
// logger instead. The CLI tools (gatehouse-keygen, gatehouse-inspect)
// print their human-facing output directly and only use this package
// for the final error path.
package process
