// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// SupportedVersion is the directive set format version this compiler
// accepts.
const SupportedVersion = 1

// Effect names the two rule outcomes.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// DirectiveSet is an authored policy document: an ordered list of
// allow/deny rules over action and resource patterns. Sets are
// authored on disk as JSONC files (JSON extended with comments and
// trailing commas).
type DirectiveSet struct {
	// Version is the format version. Must be SupportedVersion.
	Version int `json:"version"`

	// Name identifies the set, kebab-case. It is carried into the
	// compiled profile and appears in audit tooling.
	Name string `json:"name"`

	// Rules are evaluated in order; the first matching rule decides.
	// No match means deny.
	Rules []Rule `json:"rules"`
}

// Rule is one allow or deny decision over an action/resource pattern
// pair.
type Rule struct {
	// Effect is "allow" or "deny" (case-insensitive on input).
	Effect string `json:"effect"`

	// Action is a hierarchical action descriptor pattern:
	// "state/transition" exactly, "token/*" for a subtree, "*" for
	// everything.
	Action string `json:"action"`

	// Resource is a resource pattern with the same wildcard rules.
	// Empty means "*".
	Resource string `json:"resource,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a DirectiveSet. Parse does not validate;
// call [Validate] or let [Compile] do it.
func Parse(data []byte) (*DirectiveSet, error) {
	stripped := jsonc.ToJSON(data)

	var set DirectiveSet
	if err := json.Unmarshal(stripped, &set); err != nil {
		return nil, fmt.Errorf("parsing directive set: %w", err)
	}
	return &set, nil
}

// ReadFile reads a JSONC directive file from disk and parses it.
func ReadFile(path string) (*DirectiveSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
