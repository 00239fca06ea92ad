package models

import (
	"errors"
	"strings"
)

// ErrUnknownLevel is returned for tags outside A1..C2
var ErrUnknownLevel = errors.New("unknown CEFR level")

// Level is a CEFR proficiency tag
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// AllLevels returns every level from easiest to hardest
func AllLevels() []Level {
	return []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}
}

// ParseLevel parses a level tag case-insensitively
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", ErrUnknownLevel
	}
	return level, nil
}

// Valid reports whether l is a known level
func (l Level) Valid() bool {
	for _, known := range AllLevels() {
		if l == known {
			return true
		}
	}
	return false
}

func (l Level) String() string {
	return string(l)
}

// NormalizeLevels drops unknown and repeated levels, keeping first-seen order
func NormalizeLevels(levels []Level) []Level {
	seen := make(map[Level]bool, len(levels))
	out := make([]Level, 0, len(levels))
	for _, level := range levels {
		if !level.Valid() || seen[level] {
			continue
		}
		seen[level] = true
		out = append(out, level)
	}
	return out
}

// ParseLevels parses tags into levels, failing on the first unknown tag
func ParseLevels(tags []string) ([]Level, error) {
	levels := make([]Level, 0, len(tags))
	for _, tag := range tags {
		level, err := ParseLevel(tag)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return NormalizeLevels(levels), nil
}
