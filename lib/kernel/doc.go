// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel assembles the authorization kernel's components —
// graphs, tokens, lifecycle, compliance, journal, scheduler — behind
// one explicit context value.
//
// A [Kernel] is constructed by [New] from a [Config] and owns its
// components outright: there is no package-level state, and two
// kernels in one process share nothing. Every mutating operation runs
// the same pipeline: the compliance gate validates the proposed
// action, the owning component applies it with an atomic re-check,
// and the journal records the outcome — allowed or denied — before
// the call returns. Reads (states, stats, policy, events) are free
// and unrecorded.
//
// The scheduler starts with the kernel and runs until [Kernel.Close],
// which drains in-flight workloads. Closing leaves the journal and
// the read surface intact so audit tooling can export and verify
// after shutdown.
package kernel
