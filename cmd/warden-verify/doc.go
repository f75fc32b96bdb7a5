// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Warden-verify checks a journal export offline: it decodes the
// envelope, walks the full hash chain from genesis, and compares the
// recomputed tip against the one the envelope recorded. Sealed
// exports are unsealed first with an age identity file.
//
// The tool holds no key material beyond the optional unseal identity
// and never contacts a running kernel; a copy of the export is all it
// needs, which is the point of hash-chained history.
//
// Exit codes:
//
//	0  chain verified end to end
//	1  verification failed (break located and printed)
//	2  error (unreadable input, missing identity, bad arguments)
package main
