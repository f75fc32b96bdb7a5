// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directive

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/warden/lib/codec"
	"github.com/bureau-foundation/warden/lib/digest"
)

// profileKey separates profile hashes from every other digest domain.
var profileKey = digest.MustKey("warden.directive.profile")

// ExecutionProfile is the compiled, canonical form of a directive set.
// Two semantically identical sets compile to byte-identical profiles
// and therefore the same hash, regardless of comments, whitespace, or
// effect-name casing in the source.
type ExecutionProfile struct {
	Name  string         `cbor:"1,keyasint"`
	Rules []CompiledRule `cbor:"2,keyasint"`
}

// CompiledRule is one normalized rule. Order is significant: the
// first matching rule decides.
type CompiledRule struct {
	Allow    bool   `cbor:"1,keyasint"`
	Action   string `cbor:"2,keyasint"`
	Resource string `cbor:"3,keyasint"`
}

// Compile validates and normalizes a directive set into an execution
// profile, and returns the profile hash that capability tokens bind
// to. Normalization trims whitespace, lowercases effects, substitutes
// "*" for empty resources, and drops exact duplicate rules keeping the
// first occurrence. Rule order is otherwise preserved.
func Compile(set *DirectiveSet) (ExecutionProfile, digest.Digest, error) {
	if issues := Validate(set); len(issues) > 0 {
		return ExecutionProfile{}, digest.Digest{}, fmt.Errorf(
			"directive set %q is invalid: %s", set.Name, strings.Join(issues, "; "))
	}

	profile := ExecutionProfile{
		Name:  set.Name,
		Rules: make([]CompiledRule, 0, len(set.Rules)),
	}
	seen := make(map[CompiledRule]bool)
	for _, rule := range set.Rules {
		compiled := CompiledRule{
			Allow:    strings.EqualFold(strings.TrimSpace(rule.Effect), EffectAllow),
			Action:   strings.TrimSpace(rule.Action),
			Resource: strings.TrimSpace(rule.Resource),
		}
		if compiled.Resource == "" {
			compiled.Resource = "*"
		}
		if seen[compiled] {
			continue
		}
		seen[compiled] = true
		profile.Rules = append(profile.Rules, compiled)
	}

	encoded, err := codec.Marshal(profile)
	if err != nil {
		return ExecutionProfile{}, digest.Digest{}, fmt.Errorf("encoding profile: %w", err)
	}
	return profile, digest.Sum(profileKey, encoded), nil
}

// Allows reports whether the profile permits action on resource. Rules
// are scanned in order and the first match decides; a profile with no
// matching rule denies.
func (p *ExecutionProfile) Allows(action, resource string) bool {
	for _, rule := range p.Rules {
		if matchPattern(rule.Action, action) && matchPattern(rule.Resource, resource) {
			return rule.Allow
		}
	}
	return false
}

// matchPattern matches value against a pattern where a trailing "*"
// matches any suffix and a bare "*" matches everything.
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, pattern[:len(pattern)-1])
	}
	return pattern == value
}
