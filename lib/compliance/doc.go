// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compliance implements the gate: the single admission path
// for every mutating kernel operation. Callers describe what they
// want to do as a closed set of Action variants; the gate runs the
// checks that action kind requires — graph integrity, token validity,
// autonomy ceiling, resource availability, transition legality, in
// that fixed order — short-circuits at the first failure, and returns
// a Report naming exactly which check failed and why.
//
// The gate admits; it does not apply. A passed report means the
// operation may proceed to the owning component (graph builder,
// token engine, lifecycle registry), which re-checks atomically at
// commit time. The two layers never disagree on semantics because
// both consult the same sources; the gate exists so that every denial
// has a uniform, journalable shape and so that no caller can reach a
// primitive without passing here.
//
// The package also owns the resource ledger: the process-wide budget
// that in-flight dispatches draw from, and the read-only projections
// (Snapshot, Availability) callers use for pre-flight checks.
package compliance
