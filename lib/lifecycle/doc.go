// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle implements the per-node state machine. A node
// moves through its states only along edges of a static transition
// table; the table is the single source of truth for legality and is
// consulted by every path, including kernel-policy actions like
// watchdog freezes.
//
// Transitions commit by compare-and-swap on a per-node state cell.
// When several callers race on the same node, exactly one commits;
// the rest observe TransitionInProgress and unchanged state.
// Validation (table lookup, token verification) runs before the swap
// without holding any lock, so reads and transitions on unrelated
// nodes never serialize against each other.
//
// Token-bearing transitions are the normal path: the caller presents
// a capability token bound to the node, and the registry verifies it
// through the token engine before committing. Force is the
// kernel-authority path for policy actions; it consults the same
// table but requires no token. Both paths produce a Receipt.
package lifecycle
