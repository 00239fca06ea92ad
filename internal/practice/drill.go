// Package practice runs the dictation loop on top of a word session:
// checking answers, skipping with a reveal delay and answer feedback sounds.
package practice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/models"
	"dictation/internal/words"
)

// ErrNoWord is returned when there is no current word to answer or skip
var ErrNoWord = errors.New("no word to practise")

// WordSession is the part of a word store the drill drives
type WordSession interface {
	Current() (models.WordEntry, bool)
	Answer() string
	SetAnswer(text string)
	PickRandom() (models.WordEntry, bool)
	PlayAudio()
}

// Settings exposes the learner's preferences
type Settings interface {
	Current() models.Preferences
}

// Cues are the clips played as answer feedback
type Cues struct {
	Correct string
	Wrong   string
}

func (c Cues) clip(effect models.SoundEffect) string {
	if effect == models.SoundEffectCorrect {
		return c.Correct
	}
	return c.Wrong
}

// Result is the outcome of a submitted answer
type Result struct {
	Correct bool   `json:"correct"`
	Answer  string `json:"answer"`
}

// Stats counts what happened during a drill
type Stats struct {
	Attempts int `json:"attempts"`
	Correct  int `json:"correct"`
	Skipped  int `json:"skipped"`
}

// Accuracy is the share of attempts answered correctly, in percent
func (s Stats) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts) * 100
}

// WaitFunc blocks for d or until ctx is done
type WaitFunc func(ctx context.Context, d time.Duration) error

// Option configures a Drill
type Option func(*Drill)

// WithCues plays feedback clips through player
func WithCues(player words.Player, cues Cues) Option {
	return func(d *Drill) {
		d.cuePlayer = player
		d.cues = cues
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Drill) {
		d.logger = logging.OrNop(l)
	}
}

// WithWait replaces the skip delay timer
func WithWait(wait WaitFunc) Option {
	return func(d *Drill) {
		if wait != nil {
			d.wait = wait
		}
	}
}

// Drill is one learner's dictation loop
type Drill struct {
	session   WordSession
	settings  Settings
	cuePlayer words.Player
	cues      Cues
	logger    *zap.Logger
	wait      WaitFunc

	mu    sync.Mutex
	stats Stats
	cue   words.Playback
}

// NewDrill creates a drill over session following settings
func NewDrill(session WordSession, settings Settings, opts ...Option) *Drill {
	d := &Drill{
		session:  session,
		settings: settings,
		logger:   zap.NewNop(),
		wait:     sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit checks the typed answer against the current word. The answer must
// match exactly. A correct answer clears the input and moves to a new word.
func (d *Drill) Submit(ctx context.Context) (Result, error) {
	current, ok := d.session.Current()
	if !ok {
		return Result{}, ErrNoWord
	}
	answer := d.session.Answer()
	correct := answer != "" && answer == current.Word

	d.mu.Lock()
	d.stats.Attempts++
	if correct {
		d.stats.Correct++
	}
	d.mu.Unlock()

	if !correct {
		d.playCue(ctx, models.SoundEffectWrong)
		return Result{Correct: false, Answer: answer}, nil
	}

	d.playCue(ctx, models.SoundEffectCorrect)
	d.session.SetAnswer("")
	d.session.PickRandom()
	return Result{Correct: true, Answer: answer}, nil
}

// Skip reveals the current word and plays it, waits the learner's delay,
// then clears the answer and moves on. It returns the revealed entry.
func (d *Drill) Skip(ctx context.Context) (models.WordEntry, error) {
	current, ok := d.session.Current()
	if !ok {
		return models.WordEntry{}, ErrNoWord
	}

	d.session.SetAnswer(current.Word)
	d.session.PlayAudio()

	delay := models.ClampDelay(d.settings.Current().DelayTimer)
	if err := d.wait(ctx, delay); err != nil {
		return current, err
	}

	d.session.SetAnswer("")
	d.session.PickRandom()

	d.mu.Lock()
	d.stats.Skipped++
	d.mu.Unlock()

	return current, nil
}

// Stats returns the drill counters
func (d *Drill) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close stops any feedback clip still playing
func (d *Drill) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cue != nil {
		d.cue.Stop()
		d.cue = nil
	}
}

func (d *Drill) playCue(ctx context.Context, effect models.SoundEffect) {
	if d.cuePlayer == nil || !d.settings.Current().SoundEffects.Enabled(effect) {
		return
	}
	clip := d.cues.clip(effect)
	if clip == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cue != nil {
		d.cue.Stop()
		d.cue = nil
	}

	pb, err := d.cuePlayer.Play(ctx, clip)
	if err != nil {
		d.logger.Warn("feedback sound failed", zap.String("effect", string(effect)), zap.Error(err))
		return
	}
	d.cue = pb
}
