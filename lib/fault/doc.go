// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the structured errors returned by every
// warden component. A fault carries a stable machine-matchable Code,
// the Category the code belongs to, and a human-readable detail
// string describing the specific occurrence.
//
// Codes are themselves error values, so callers match with errors.Is:
//
//	if errors.Is(err, fault.CycleDetected) { ... }
//
// and recover the full structure with errors.As:
//
//	var f *fault.Fault
//	if errors.As(err, &f) { log(f.Code, f.Detail) }
//
// Each code has fixed traits — its category, whether the caller can
// correct the input and retry, and whether the kernel escalates the
// failure instead of merely reporting it. The traits drive uniform
// handling at the kernel boundary: recoverable faults deny the
// operation and leave state untouched; escalating faults additionally
// freeze the affected node and emit an escalation event.
//
// Faults never panic and are never used for control flow inside a
// component; they are the values operations return when an invariant
// would be violated.
package fault
