// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// suffixLength is the number of hex characters after the type prefix.
// Twelve characters encode six random bytes — 48 bits, enough that
// collisions are not a practical concern for the populations a single
// kernel manages, while keeping identifiers short enough for logs.
const suffixLength = 12

// randomSuffix returns suffixLength lowercase hex characters drawn
// from crypto/rand.
func randomSuffix() string {
	var raw [suffixLength / 2]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// crypto/rand never fails on the platforms we support; if it
		// does, identity generation cannot proceed safely.
		panic("ref: reading random bytes: " + err.Error())
	}
	return hex.EncodeToString(raw[:])
}

// parsePrefixed validates "prefix-suffix" form: the given prefix, a
// dash, and exactly suffixLength lowercase hex characters. Returns the
// suffix.
func parsePrefixed(raw, prefix, kind string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty %s ID", kind)
	}
	rest, ok := strings.CutPrefix(raw, prefix+"-")
	if !ok {
		return "", fmt.Errorf("%s ID must start with %q: %q", kind, prefix+"-", raw)
	}
	if len(rest) != suffixLength {
		return "", fmt.Errorf("%s ID suffix is %d characters, want %d: %q", kind, len(rest), suffixLength, raw)
	}
	for _, c := range rest {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%s ID suffix must be lowercase hex: %q", kind, raw)
		}
	}
	return rest, nil
}
