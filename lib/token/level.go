// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"fmt"
)

// Level is a node's autonomy level: how much the holder of a token is
// allowed to do within the node's scope. Levels are strictly ordered;
// a token can always be downgraded to a lower level but never
// elevated.
type Level uint8

const (
	// LevelObserve grants read-only access to node state and outputs.
	LevelObserve Level = iota
	// LevelSuggest permits proposing changes for external approval.
	LevelSuggest
	// LevelImplement permits writes within the node's own scope.
	LevelImplement
	// LevelReview permits approving and merging the output of other
	// nodes.
	LevelReview
	// LevelCoordinate permits managing groups of nodes and delegating
	// downgraded tokens to them.
	LevelCoordinate
	// LevelAutonomous permits the full pipeline without external
	// gates.
	LevelAutonomous

	// MaxLevel is the highest level the engine will mint.
	MaxLevel = LevelAutonomous
)

var levelNames = [...]string{
	LevelObserve:    "observe",
	LevelSuggest:    "suggest",
	LevelImplement:  "implement",
	LevelReview:     "review",
	LevelCoordinate: "coordinate",
	LevelAutonomous: "autonomous",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Valid reports whether l is a level the engine recognizes.
func (l Level) Valid() bool {
	return l <= MaxLevel
}

// ParseLevel converts a level name ("observe", "implement", ...) or a
// bare digit into a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '5' {
		return Level(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown autonomy level %q", s)
}
