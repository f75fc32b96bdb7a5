// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph implements the execution graph: the arena of nodes
// and dependency edges inside which all delegated work runs. Nothing
// executes outside a graph.
//
// A graph is created with a [Kind] that fixes its structural rules
// for life: [Production] graphs reject any edge that would create a
// cycle at insertion time, [Sandbox] graphs permit cycles (and in
// exchange cannot produce a topological order). Self-edges are
// rejected in both kinds.
//
// Structure only ever grows. Nodes are never removed; [Graph.Deactivate]
// excludes a node from ordering and dispatch while preserving it for
// audit. [Graph.Close] ends structural mutation permanently — a closed
// graph accepts no new nodes or edges and cannot be reopened, but its
// nodes continue through their lifecycle.
//
// All methods are safe for concurrent use; each graph carries its own
// lock. Cross-graph operations need no coordination because edges
// never span graphs.
package graph
