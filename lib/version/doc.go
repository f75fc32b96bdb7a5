// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for warden
// binaries and the compatibility contract of the kernel's operation
// surface.
//
// # Build information
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" when not injected, which
// occurs during development builds and test runs. For example:
//
//	go build -ldflags "-X github.com/bureau-foundation/warden/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Formatting functions produce human-readable version strings:
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-02-10T...)" for --version
//   - [Full] -- Info plus Go version and GOOS/GOARCH
//   - [Short] -- just the version number
//   - [Commit] -- just the git SHA
//
// # Operation surface compatibility
//
// [API] is the semantic version of the kernel's operation surface,
// independent of the build version. Embedding programs record the API
// version they were built against and call [Check] (surfaced as the
// kernel's CheckCompatibility operation) before relying on kernel
// behavior. The verdict is a [Compatibility] gradient rather than a
// boolean so callers can distinguish "upgrade advised" from "refuse
// to proceed".
package version
