// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// schedulePrefix is the type prefix of schedule identifiers.
const schedulePrefix = "sched"

// ScheduleID identifies one admission of a node into the scheduler.
// A node that is scheduled, frozen, thawed, and scheduled again gets
// a new ScheduleID for each admission. The canonical form is
// "sched-" followed by twelve lowercase hex characters.
//
// ScheduleID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type ScheduleID struct {
	id string
}

// NewScheduleID returns a fresh, unique schedule identifier.
func NewScheduleID() ScheduleID {
	return ScheduleID{id: schedulePrefix + "-" + randomSuffix()}
}

// ParseScheduleID validates and wraps a canonical schedule ID string.
func ParseScheduleID(raw string) (ScheduleID, error) {
	if _, err := parsePrefixed(raw, schedulePrefix, "schedule"); err != nil {
		return ScheduleID{}, err
	}
	return ScheduleID{id: raw}, nil
}

// MustParseScheduleID is like ParseScheduleID but panics on error.
// Use in tests and static initialization where the input is
// known-valid.
func MustParseScheduleID(raw string) ScheduleID {
	s, err := ParseScheduleID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseScheduleID(%q): %v", raw, err))
	}
	return s
}

// String returns the canonical form (e.g., "sched-07d1f3a9c45e").
func (s ScheduleID) String() string { return s.id }

// IsZero reports whether the ScheduleID is the zero value
// (uninitialized).
func (s ScheduleID) IsZero() bool { return s.id == "" }

// MarshalText implements encoding.TextMarshaler for JSON, CBOR, and
// other serialization formats.
func (s ScheduleID) MarshalText() ([]byte, error) {
	if s.id == "" {
		return nil, nil
	}
	return []byte(s.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// canonical form. An empty input produces the zero value (unset ID).
func (s *ScheduleID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*s = ScheduleID{}
		return nil
	}
	parsed, err := ParseScheduleID(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
