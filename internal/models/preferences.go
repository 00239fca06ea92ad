package models

import (
	"fmt"
	"time"
)

const (
	MinDelayTimer     = 2 * time.Second
	MaxDelayTimer     = 10 * time.Second
	DefaultDelayTimer = 2 * time.Second
)

// SoundEffect names one of the answer feedback sounds
type SoundEffect string

const (
	SoundEffectCorrect SoundEffect = "correct"
	SoundEffectWrong   SoundEffect = "wrong"
)

// SoundEffects holds which answer feedback sounds are enabled
type SoundEffects struct {
	Correct bool `json:"correct"`
	Wrong   bool `json:"wrong"`
}

// Enabled reports whether the given effect is switched on
func (s SoundEffects) Enabled(effect SoundEffect) bool {
	switch effect {
	case SoundEffectCorrect:
		return s.Correct
	case SoundEffectWrong:
		return s.Wrong
	}
	return false
}

// Preferences are a learner's practice settings
type Preferences struct {
	Language       Language      `json:"language"`
	SelectedLevels []Level       `json:"selected_levels"`
	DelayTimer     time.Duration `json:"delay_timer"`
	SoundEffects   SoundEffects  `json:"sound_effects"`
}

// DefaultPreferences returns the settings a new learner starts with
func DefaultPreferences() Preferences {
	return Preferences{
		Language:       LanguageEnglishUS,
		SelectedLevels: []Level{LevelA1},
		DelayTimer:     DefaultDelayTimer,
		SoundEffects:   SoundEffects{Correct: true, Wrong: true},
	}
}

// Selection returns the language and levels the preferences select
func (p Preferences) Selection() Selection {
	levels := make([]Level, len(p.SelectedLevels))
	copy(levels, p.SelectedLevels)
	return Selection{Language: p.Language, Levels: levels}
}

// Validate checks the preferences can drive a word session
func (p Preferences) Validate() error {
	if !p.Language.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, p.Language)
	}
	for _, level := range p.SelectedLevels {
		if !level.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
		}
	}
	return nil
}

// Clone returns a deep copy
func (p Preferences) Clone() Preferences {
	out := p
	out.SelectedLevels = make([]Level, len(p.SelectedLevels))
	copy(out.SelectedLevels, p.SelectedLevels)
	return out
}

// ClampDelay keeps a skip delay within the allowed range
func ClampDelay(d time.Duration) time.Duration {
	if d < MinDelayTimer {
		return MinDelayTimer
	}
	if d > MaxDelayTimer {
		return MaxDelayTimer
	}
	return d
}
