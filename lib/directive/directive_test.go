// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSet = `{
	// Build agents may work the tree but never touch tokens.
	"version": 1,
	"name": "build-agent",
	"rules": [
		{"effect": "allow", "action": "state/*"},
		{"effect": "allow", "action": "log/append", "resource": "journal/*"},
		{"effect": "deny", "action": "token/*"},
	],
}`

func TestParseJSONC(t *testing.T) {
	set, err := Parse([]byte(sampleSet))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if set.Name != "build-agent" {
		t.Errorf("name = %q, want %q", set.Name, "build-agent")
	}
	if len(set.Rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(set.Rules))
	}
	if set.Rules[1].Resource != "journal/*" {
		t.Errorf("rules[1].resource = %q, want %q", set.Rules[1].Resource, "journal/*")
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	if _, err := Parse([]byte(`{"version": }`)); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build-agent.jsonc")
	if err := os.WriteFile(path, []byte(sampleSet), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if set.Name != "build-agent" {
		t.Errorf("name = %q, want %q", set.Name, "build-agent")
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *DirectiveSet {
		return &DirectiveSet{
			Version: 1,
			Name:    "review-agent",
			Rules: []Rule{
				{Effect: "allow", Action: "state/transition"},
				{Effect: "deny", Action: "*"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*DirectiveSet)
		wantHit string
	}{
		{
			name:   "valid set",
			mutate: func(*DirectiveSet) {},
		},
		{
			name:    "unsupported version",
			mutate:  func(s *DirectiveSet) { s.Version = 2 },
			wantHit: "version",
		},
		{
			name:    "missing name",
			mutate:  func(s *DirectiveSet) { s.Name = "" },
			wantHit: "name: required",
		},
		{
			name:    "uppercase name",
			mutate:  func(s *DirectiveSet) { s.Name = "Review-Agent" },
			wantHit: "kebab-case",
		},
		{
			name:    "no rules",
			mutate:  func(s *DirectiveSet) { s.Rules = nil },
			wantHit: "at least one rule",
		},
		{
			name:    "unknown effect",
			mutate:  func(s *DirectiveSet) { s.Rules[0].Effect = "permit" },
			wantHit: `rules[0]: effect "permit"`,
		},
		{
			name:    "missing action",
			mutate:  func(s *DirectiveSet) { s.Rules[0].Action = "" },
			wantHit: "rules[0]: action is required",
		},
		{
			name:    "interior wildcard",
			mutate:  func(s *DirectiveSet) { s.Rules[0].Action = "state/*/freeze" },
			wantHit: "wildcard is only allowed at the end",
		},
		{
			name: "duplicate rule",
			mutate: func(s *DirectiveSet) {
				s.Rules = append(s.Rules, Rule{Effect: "allow", Action: "state/transition"})
			},
			wantHit: "rules[2]: duplicate of rules[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := valid()
			tt.mutate(set)
			issues := Validate(set)
			if tt.wantHit == "" {
				if len(issues) != 0 {
					t.Fatalf("unexpected issues: %v", issues)
				}
				return
			}
			if !containsIssue(issues, tt.wantHit) {
				t.Errorf("issues %v missing %q", issues, tt.wantHit)
			}
		})
	}
}

func containsIssue(issues []string, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}

func TestCompileHashIsCanonical(t *testing.T) {
	// Same semantics, different surface: casing, whitespace, comments,
	// and an explicit "*" resource must not change the hash.
	a, err := Parse([]byte(sampleSet))
	if err != nil {
		t.Fatal(err)
	}
	b := &DirectiveSet{
		Version: 1,
		Name:    "build-agent",
		Rules: []Rule{
			{Effect: "ALLOW", Action: "  state/*  ", Resource: "*"},
			{Effect: "Allow", Action: "log/append", Resource: "journal/*"},
			{Effect: "deny", Action: "token/*"},
		},
	}

	_, hashA, err := Compile(a)
	if err != nil {
		t.Fatalf("Compile(a): %v", err)
	}
	_, hashB, err := Compile(b)
	if err != nil {
		t.Fatalf("Compile(b): %v", err)
	}
	if hashA != hashB {
		t.Errorf("semantically identical sets hashed differently: %s vs %s", hashA, hashB)
	}

	// Reordering rules is a semantic change in a first-match-wins
	// policy and must move the hash.
	c := &DirectiveSet{
		Version: 1,
		Name:    "build-agent",
		Rules: []Rule{
			{Effect: "deny", Action: "token/*"},
			{Effect: "allow", Action: "state/*"},
			{Effect: "allow", Action: "log/append", Resource: "journal/*"},
		},
	}
	_, hashC, err := Compile(c)
	if err != nil {
		t.Fatalf("Compile(c): %v", err)
	}
	if hashA == hashC {
		t.Error("reordered rules produced the same hash")
	}
}

func TestCompileRejectsInvalidSet(t *testing.T) {
	set := &DirectiveSet{Version: 1, Name: "broken"}
	if _, _, err := Compile(set); err == nil {
		t.Fatal("expected error for rule-less set")
	}
}

func TestCompileDropsDuplicates(t *testing.T) {
	// Duplicates after normalization collapse to the first occurrence.
	// Validate flags the literal duplicate, so spell it differently.
	set := &DirectiveSet{
		Version: 1,
		Name:    "dedupe",
		Rules: []Rule{
			{Effect: "allow", Action: "state/transition"},
			{Effect: "ALLOW", Action: "state/transition", Resource: "*"},
		},
	}
	profile, _, err := Compile(set)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(profile.Rules) != 1 {
		t.Errorf("got %d compiled rules, want 1", len(profile.Rules))
	}
}

func TestAllows(t *testing.T) {
	set, err := Parse([]byte(sampleSet))
	if err != nil {
		t.Fatal(err)
	}
	profile, _, err := Compile(set)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		action   string
		resource string
		want     bool
	}{
		{"state/transition", "anything", true},
		{"state/freeze", "node-7", true},
		{"log/append", "journal/main", true},
		{"log/append", "archive/main", false},
		{"token/issue", "anything", false},
		{"graph/node", "anything", false}, // no rule matches: default deny
	}
	for _, tt := range tests {
		if got := profile.Allows(tt.action, tt.resource); got != tt.want {
			t.Errorf("Allows(%q, %q) = %v, want %v", tt.action, tt.resource, got, tt.want)
		}
	}
}

func TestAllowsFirstMatchWins(t *testing.T) {
	set := &DirectiveSet{
		Version: 1,
		Name:    "ordering",
		Rules: []Rule{
			{Effect: "deny", Action: "token/issue"},
			{Effect: "allow", Action: "token/*"},
		},
	}
	profile, _, err := Compile(set)
	if err != nil {
		t.Fatal(err)
	}
	if profile.Allows("token/issue", "x") {
		t.Error("specific deny should win over the later wildcard allow")
	}
	if !profile.Allows("token/downgrade", "x") {
		t.Error("wildcard allow should admit other token actions")
	}
}
