// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"strconv"
	"strings"
)

// API is the semantic version of the kernel's operation surface. It
// moves independently of the build Version: the major component
// changes only when an existing operation's contract changes, the
// minor component when operations are added.
var API = Triple{Major: 1, Minor: 0, Patch: 0}

// Triple is a parsed semantic version.
type Triple struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// ParseTriple parses "major.minor.patch" into a Triple. Pre-release
// and build suffixes are not accepted; the operation surface version
// is always a bare triple.
func ParseTriple(raw string) (Triple, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Triple{}, fmt.Errorf("version %q is not major.minor.patch", raw)
	}
	var numbers [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Triple{}, fmt.Errorf("version %q component %q is not a non-negative integer", raw, part)
		}
		numbers[i] = n
	}
	return Triple{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

// MustParseTriple is like ParseTriple but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseTriple(raw string) Triple {
	t, err := ParseTriple(raw)
	if err != nil {
		panic(fmt.Sprintf("version.MustParseTriple(%q): %v", raw, err))
	}
	return t
}

// String returns "major.minor.patch".
func (t Triple) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// Compatibility is the verdict of checking a client's build-time API
// version against the running kernel's.
type Compatibility int

const (
	// Compatible means the client was built against this exact
	// surface (patch differences are irrelevant).
	Compatible Compatibility = iota

	// Deprecated means the client was built against an older minor
	// version of the same major. Every operation it knows still
	// behaves as it expects, but it should upgrade.
	Deprecated

	// BreakingChanges means the client was built against a newer
	// minor version than this kernel serves: operations the client
	// expects may be missing. Proceed only with feature probing.
	BreakingChanges

	// Incompatible means the majors differ. Operation contracts have
	// changed; the client must not proceed.
	Incompatible
)

// String returns the verdict's lowercase name.
func (c Compatibility) String() string {
	switch c {
	case Compatible:
		return "compatible"
	case Deprecated:
		return "deprecated"
	case BreakingChanges:
		return "breaking-changes"
	case Incompatible:
		return "incompatible"
	default:
		return fmt.Sprintf("compatibility(%d)", int(c))
	}
}

// Check compares a client's build-time API version against the
// current surface version and returns the verdict. Patch components
// never affect the outcome.
func Check(client Triple) Compatibility {
	return CheckAgainst(client, API)
}

// CheckAgainst is Check with an explicit current version, for tests
// and for tools that inspect recorded export streams from other
// kernel builds.
func CheckAgainst(client, current Triple) Compatibility {
	if client.Major != current.Major {
		return Incompatible
	}
	switch {
	case client.Minor == current.Minor:
		return Compatible
	case client.Minor < current.Minor:
		return Deprecated
	default:
		return BreakingChanges
	}
}
