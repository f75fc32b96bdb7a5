// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directive

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern is the allowed shape for directive set names:
// lowercase kebab-case, starting with a letter.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Validate checks a directive set for structural problems and returns
// a list of human-readable issues. An empty slice means the set is
// well-formed and can be compiled.
func Validate(set *DirectiveSet) []string {
	var issues []string

	if set.Version != SupportedVersion {
		issues = append(issues, fmt.Sprintf(
			"version: got %d, this compiler supports version %d",
			set.Version, SupportedVersion))
	}

	if set.Name == "" {
		issues = append(issues, "name: required")
	} else if !namePattern.MatchString(set.Name) {
		issues = append(issues, fmt.Sprintf(
			"name %q: must be lowercase kebab-case starting with a letter",
			set.Name))
	}

	if len(set.Rules) == 0 {
		issues = append(issues, "rules: at least one rule is required")
	}

	seen := make(map[string]int)
	for i, rule := range set.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)

		effect := strings.ToLower(strings.TrimSpace(rule.Effect))
		if effect != EffectAllow && effect != EffectDeny {
			issues = append(issues, fmt.Sprintf(
				"%s: effect %q: must be %q or %q",
				prefix, rule.Effect, EffectAllow, EffectDeny))
		}

		action := strings.TrimSpace(rule.Action)
		if action == "" {
			issues = append(issues, prefix+": action is required")
		} else if issue := checkPattern(action); issue != "" {
			issues = append(issues, fmt.Sprintf(
				"%s: action %q: %s", prefix, rule.Action, issue))
		}

		resource := strings.TrimSpace(rule.Resource)
		if resource != "" {
			if issue := checkPattern(resource); issue != "" {
				issues = append(issues, fmt.Sprintf(
					"%s: resource %q: %s", prefix, rule.Resource, issue))
			}
		}

		key := effect + "\x00" + action + "\x00" + resource
		if prev, dup := seen[key]; dup {
			issues = append(issues, fmt.Sprintf(
				"%s: duplicate of rules[%d]", prefix, prev))
		} else {
			seen[key] = i
		}
	}

	return issues
}

// checkPattern validates a single action or resource pattern. The only
// wildcard is a trailing "*"; a star anywhere else would silently match
// nothing the author expects.
func checkPattern(pattern string) string {
	if i := strings.IndexByte(pattern, '*'); i >= 0 && i != len(pattern)-1 {
		return "wildcard is only allowed at the end of a pattern"
	}
	return ""
}
