package config

import (
	"fmt"
	"strings"
)

// Difficulty selects obstacle density and jump scaling for a run.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultySport  Difficulty = "SPORT"
	DifficultyExpert Difficulty = "EXPERT"
)

func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultySport, DifficultyExpert}
}

// ParseDifficulty accepts any casing of a known difficulty name.
func ParseDifficulty(s string) (Difficulty, error) {
	candidate := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	for _, d := range AllDifficulties() {
		if d == candidate {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

func DefaultDifficulties() map[Difficulty]DifficultyConfig {
	return map[Difficulty]DifficultyConfig{
		DifficultyEasy:   {DensityMultiplier: 0.6, JumpHeightScale: 0.7},
		DifficultySport:  {DensityMultiplier: 1.0, JumpHeightScale: 1.0},
		DifficultyExpert: {DensityMultiplier: 1.5, JumpHeightScale: 1.35},
	}
}

// ForDifficulty returns the multipliers for d, falling back to neutral values.
func (c *Config) ForDifficulty(d Difficulty) DifficultyConfig {
	if dc, ok := c.Difficulties[d]; ok {
		return dc
	}
	return DifficultyConfig{DensityMultiplier: 1, JumpHeightScale: 1}
}
