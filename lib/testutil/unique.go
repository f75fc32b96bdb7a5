// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need unique identifiers for work payloads, attribute values,
// or action names that must be distinguishable in shared journals.
//
//	work := testutil.UniqueID("work")      // "work-1", "work-2", ...
//	attr := testutil.UniqueID("attempt")   // "attempt-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
