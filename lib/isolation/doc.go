// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package isolation defines the boundary between the kernel and the
// layer that actually executes workloads. The kernel decides WHETHER
// work may run; executors decide HOW it runs and enforce the caps the
// workload's token declares.
//
// Executor is the abstraction: one call, one workload, a result or an
// error. Callers choose the implementation by the token's autonomy
// level — low levels can run in-process, high levels belong in a fully
// separated process with a cleared environment. This package ships
// only InProcess; process-separation executors live outside the
// kernel.
package isolation
