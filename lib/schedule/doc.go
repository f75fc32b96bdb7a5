// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schedule dispatches graph nodes for isolated execution in
// dependency order.
//
// Schedule admits an entry through the compliance gate and queues it.
// A single planner goroutine watches for entries whose dependencies
// have all merged, takes a resource hold, and hands them to a worker
// pool; independent nodes run concurrently with no cross-node
// locking. Workers drive each node through its lifecycle with
// gate-validated, token-authorized transitions, invoke the isolation
// executor, and settle the entry with an Outcome that releases
// anyone blocked in WaitForCompletion.
//
// A dependency that fails poisons its dependents: they are frozen
// through the kernel-policy path without executing, the freeze is
// journaled, and their waiters observe OutcomePoisoned. A watchdog
// ticker freezes dispatched nodes that stop making lifecycle progress
// for longer than the configured grace period — a policy action
// recorded in the journal, not an error return.
//
// The scheduler runs until its context is cancelled: admission stops,
// in-flight workloads are interrupted and escalated, still-pending
// entries are cancelled, and Done closes after the drain.
package schedule
