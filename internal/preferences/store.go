// Package preferences keeps one learner's practice settings and tells
// subscribers when the word selection changes.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"dictation/internal/models"
)

// ErrNotFound is returned by a Repository that has nothing saved for a client
var ErrNotFound = errors.New("preferences not found")

// Repository persists preferences per client
type Repository interface {
	Load(ctx context.Context, clientID string) (models.Preferences, error)
	Save(ctx context.Context, clientID string, prefs models.Preferences) error
}

// Store holds one client's preferences
type Store struct {
	clientID string
	repo     Repository

	mu       sync.Mutex
	prefs    models.Preferences
	handlers map[int]func()
	nextID   int
}

// Open loads the client's saved preferences, starting from defaults when none exist
func Open(ctx context.Context, repo Repository, clientID string) (*Store, error) {
	prefs, err := repo.Load(ctx, clientID)
	switch {
	case errors.Is(err, ErrNotFound):
		prefs = models.DefaultPreferences()
	case err != nil:
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	return &Store{
		clientID: clientID,
		repo:     repo,
		prefs:    prefs,
		handlers: make(map[int]func()),
	}, nil
}

// ClientID returns the client these preferences belong to
func (s *Store) ClientID() string {
	return s.clientID
}

// Current returns a copy of the preferences
func (s *Store) Current() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// Selection returns the selected language and levels
func (s *Store) Selection() models.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Selection()
}

// OnChange registers fn to run after the language or selected levels change
func (s *Store) OnChange(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers, id)
		})
	}
}

// Update applies mutate, validates and persists the result, then notifies
// subscribers if the selection changed. A failed save leaves the store unchanged.
func (s *Store) Update(ctx context.Context, mutate func(p *models.Preferences)) error {
	s.mu.Lock()
	next := s.prefs.Clone()
	mutate(&next)
	next.SelectedLevels = models.NormalizeLevels(next.SelectedLevels)
	next.DelayTimer = models.ClampDelay(next.DelayTimer)

	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.repo.Save(ctx, s.clientID, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save preferences: %w", err)
	}

	changed := selectionChanged(s.prefs, next)
	s.prefs = next

	var handlers []func()
	if changed {
		handlers = make([]func(), 0, len(s.handlers))
		for _, id := range sortedKeys(s.handlers) {
			handlers = append(handlers, s.handlers[id])
		}
	}
	s.mu.Unlock()

	for _, handler := range handlers {
		handler()
	}
	return nil
}

// SetLanguage switches the word-list language
func (s *Store) SetLanguage(ctx context.Context, lang models.Language) error {
	return s.Update(ctx, func(p *models.Preferences) { p.Language = lang })
}

// SetSelectedLevels replaces the selected levels
func (s *Store) SetSelectedLevels(ctx context.Context, levels []models.Level) error {
	return s.Update(ctx, func(p *models.Preferences) { p.SelectedLevels = levels })
}

// AddLevel selects level if it is not selected yet
func (s *Store) AddLevel(ctx context.Context, level models.Level) error {
	return s.Update(ctx, func(p *models.Preferences) {
		if !slices.Contains(p.SelectedLevels, level) {
			p.SelectedLevels = append(p.SelectedLevels, level)
		}
	})
}

// RemoveLevel deselects level
func (s *Store) RemoveLevel(ctx context.Context, level models.Level) error {
	return s.Update(ctx, func(p *models.Preferences) {
		p.SelectedLevels = slices.DeleteFunc(p.SelectedLevels, func(l models.Level) bool { return l == level })
	})
}

// SetDelayTimer sets the skip delay, clamped to the allowed range
func (s *Store) SetDelayTimer(ctx context.Context, d time.Duration) error {
	return s.Update(ctx, func(p *models.Preferences) { p.DelayTimer = d })
}

// SetSoundEffect switches one answer feedback sound on or off
func (s *Store) SetSoundEffect(ctx context.Context, effect models.SoundEffect, on bool) error {
	switch effect {
	case models.SoundEffectCorrect, models.SoundEffectWrong:
	default:
		return fmt.Errorf("unknown sound effect %q", effect)
	}
	return s.Update(ctx, func(p *models.Preferences) {
		if effect == models.SoundEffectCorrect {
			p.SoundEffects.Correct = on
		} else {
			p.SoundEffects.Wrong = on
		}
	})
}

func selectionChanged(prev, next models.Preferences) bool {
	return prev.Language != next.Language || !slices.Equal(prev.SelectedLevels, next.SelectedLevels)
}

func sortedKeys(m map[int]func()) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
