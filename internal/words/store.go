// Package words holds a learner's word session: the per-language cache of
// CEFR word lists, the current word, the typed answer and clip playback.
package words

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dictation/internal/logging"
	"dictation/internal/models"
)

const (
	DefaultAudioRoot        = "/audio_files"
	defaultFetchConcurrency = 4
)

// Preferences is the capability the store needs from a learner's settings
type Preferences interface {
	Selection() models.Selection
	// OnChange registers fn to run after the selection changes and returns a func that unregisters it
	OnChange(fn func()) (cancel func())
}

// State is a point-in-time view of the session
type State struct {
	Language  models.Language
	Words     []string
	Current   *models.WordEntry
	Answer    string
	IsPlaying bool
	InFlight  []models.Level
}

// Option configures a Store
type Option func(*Store)

// WithPlayer sets the audio backend
func WithPlayer(p Player) Option {
	return func(s *Store) {
		if p != nil {
			s.player = p
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logging.OrNop(l)
	}
}

// WithRand sets the random source used by PickRandom
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithAudioRoot sets the directory or URL clip paths are rewritten under
func WithAudioRoot(root string) Option {
	return func(s *Store) {
		if root != "" {
			s.audioRoot = root
		}
	}
}

// WithFetchConcurrency bounds how many word lists load at once
func WithFetchConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

type levelKey struct {
	lang  models.Language
	level models.Level
}

func (k levelKey) String() string {
	return string(k.lang) + "/" + string(k.level)
}

// Store is one learner's word session. It is safe for concurrent use.
type Store struct {
	source     Source
	prefs      Preferences
	player     Player
	logger     *zap.Logger
	audioRoot  string
	fetchLimit int

	loads singleflight.Group

	mu       sync.Mutex
	rng      *rand.Rand
	cache    map[models.Language]map[models.Level][]models.WordEntry
	inFlight map[levelKey]struct{}
	language models.Language
	words    []string
	current  *models.WordEntry
	answer   string
	playback Playback
	playing  bool
	playGen  uint64
	closed   bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// New creates a store reading word lists from source and following prefs.
// It registers one change handler on prefs; Close releases it.
func New(source Source, prefs Preferences, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		source:     source,
		prefs:      prefs,
		player:     instantPlayer{},
		logger:     zap.NewNop(),
		audioRoot:  DefaultAudioRoot,
		fetchLimit: defaultFetchConcurrency,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		cache:      make(map[models.Language]map[models.Level][]models.WordEntry),
		inFlight:   make(map[levelKey]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unsubscribe = prefs.OnChange(s.preferencesChanged)
	return s
}

// Close stops playback, detaches from the preferences and waits for background work
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.releasePlaybackLocked()
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	s.wg.Wait()
}

// preferencesChanged reloads for the new selection and draws a fresh word
func (s *Store) preferencesChanged() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		sel := s.prefs.Selection()
		s.EnsureLevelsLoaded(s.ctx, sel.Language, sel.Levels)
		s.PickRandom()
	}()
}

// Load brings the current selection into the cache and picks a first word if none is set
func (s *Store) Load(ctx context.Context) {
	sel := s.prefs.Selection()
	s.EnsureLevelsLoaded(ctx, sel.Language, sel.Levels)

	s.mu.Lock()
	needPick := s.current == nil || s.current.Language != sel.Language
	s.mu.Unlock()
	if needPick {
		s.PickRandom()
	}
}

// EnsureLevelsLoaded fetches every requested level missing from the cache.
// A level already being fetched is joined, not fetched again. Failures are
// logged and leave the level absent. Once all requested levels resolve the
// words projection is rebuilt from the current selection.
func (s *Store) EnsureLevelsLoaded(ctx context.Context, lang models.Language, levels []models.Level) {
	defer s.refreshWords()

	if !lang.Valid() {
		s.logger.Warn("ignoring load for unsupported language", zap.String("language", string(lang)))
		return
	}

	var g errgroup.Group
	g.SetLimit(s.fetchLimit)
	for _, level := range models.NormalizeLevels(levels) {
		key := levelKey{lang: lang, level: level}
		if s.hasLevel(key) {
			continue
		}
		g.Go(func() error {
			s.awaitLoad(ctx, key)
			return nil
		})
	}
	_ = g.Wait()
}

// awaitLoad starts or joins the fetch for key. Fetches run on the store's
// lifetime context, so a caller giving up does not cancel them.
func (s *Store) awaitLoad(ctx context.Context, key levelKey) {
	ch := s.loads.DoChan(key.String(), func() (any, error) {
		return nil, s.loadLevel(key)
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// loadLevel fetches one list into the cache. It counts against the store's
// wait group, so Close returns only after every fetch it raced with is done.
func (s *Store) loadLevel(key levelKey) error {
	s.mu.Lock()
	if s.closed || s.hasLevelLocked(key) {
		s.mu.Unlock()
		return nil
	}
	s.inFlight[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	entries, err := s.source.Load(s.ctx, key.lang, key.level)
	if err == nil {
		entries, err = s.canonicalize(key, entries)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)

	if err != nil {
		loadErr := &LevelLoadError{Language: key.lang, Level: key.level, Err: err}
		s.logger.Warn("word list load failed",
			zap.String("language", string(key.lang)),
			zap.String("level", string(key.level)),
			zap.Error(err))
		return loadErr
	}

	levels, ok := s.cache[key.lang]
	if !ok {
		levels = make(map[models.Level][]models.WordEntry)
		s.cache[key.lang] = levels
	}
	levels[key.level] = entries

	s.logger.Debug("word list loaded",
		zap.String("language", string(key.lang)),
		zap.String("level", string(key.level)),
		zap.Int("entries", len(entries)))
	return nil
}

// canonicalize validates a fetched list and rewrites clip paths to the asset root.
// The returned slice is a fresh copy owned by the cache.
func (s *Store) canonicalize(key levelKey, raw []models.WordEntry) ([]models.WordEntry, error) {
	out := make([]models.WordEntry, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, entry := range raw {
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrMalformedList, i)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrMalformedList, entry.ID)
		}
		seen[entry.ID] = true

		if strings.TrimSpace(entry.Word) == "" {
			return nil, fmt.Errorf("%w: entry %q has no word", ErrMalformedList, entry.ID)
		}
		if entry.AudioPath == "" {
			return nil, fmt.Errorf("%w: entry %q has no audio file", ErrMalformedList, entry.ID)
		}

		if entry.Language != "" {
			lang, err := models.ParseLanguage(string(entry.Language))
			if err != nil || lang != key.lang {
				return nil, fmt.Errorf("%w: entry %q language %q", ErrMalformedList, entry.ID, entry.Language)
			}
		}
		if entry.Level != "" {
			level, err := models.ParseLevel(string(entry.Level))
			if err != nil || level != key.level {
				return nil, fmt.Errorf("%w: entry %q level %q", ErrMalformedList, entry.ID, entry.Level)
			}
		}

		entry.Language = key.lang
		entry.Level = key.level
		entry.AudioPath = joinAudioPath(s.audioRoot, string(key.lang), string(key.level), path.Base(entry.AudioPath))
		out = append(out, entry)
	}

	return out, nil
}

// joinAudioPath joins elems under root, which may be a path or an absolute URL
func joinAudioPath(root string, elems ...string) string {
	if strings.Contains(root, "://") {
		if u, err := url.Parse(root); err == nil {
			return u.JoinPath(elems...).String()
		}
	}
	return path.Join(append([]string{root}, elems...)...)
}

func (s *Store) hasLevel(key levelKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasLevelLocked(key)
}

func (s *Store) hasLevelLocked(key levelKey) bool {
	_, ok := s.cache[key.lang][key.level]
	return ok
}

func (s *Store) refreshWords() {
	sel := s.prefs.Selection()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.selectedEntriesLocked(sel)
	words := make([]string, len(entries))
	for i, entry := range entries {
		words[i] = entry.Word
	}
	s.language = sel.Language
	s.words = words
}

// selectedEntriesLocked flattens the cached lists of the selected levels, in selection order
func (s *Store) selectedEntriesLocked(sel models.Selection) []models.WordEntry {
	levels := s.cache[sel.Language]
	var entries []models.WordEntry
	for _, level := range models.NormalizeLevels(sel.Levels) {
		entries = append(entries, levels[level]...)
	}
	return entries
}

// PickRandom draws a word uniformly from every entry of the selected levels.
// It returns false and changes nothing when no entries are loaded.
func (s *Store) PickRandom() (models.WordEntry, bool) {
	sel := s.prefs.Selection()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.selectedEntriesLocked(sel)
	if len(entries) == 0 {
		return models.WordEntry{}, false
	}

	entry := entries[s.rng.IntN(len(entries))]
	s.current = &entry
	s.playing = false
	s.playGen++
	return entry, true
}

// SetAnswer replaces the learner's typed answer
func (s *Store) SetAnswer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = text
}

// Answer returns the learner's typed answer
func (s *Store) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

// PlayAudio plays the current word's clip, interrupting any clip still playing.
// Playback failures are logged.
func (s *Store) PlayAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current == nil || s.current.AudioPath == "" {
		return
	}
	s.releasePlaybackLocked()

	clip := s.current.AudioPath
	pb, err := s.player.Play(s.ctx, clip)
	if err != nil {
		s.logger.Warn("audio playback failed", zap.String("clip", clip), zap.Error(err))
		return
	}

	s.playGen++
	gen := s.playGen
	s.playback = pb
	s.playing = true

	s.wg.Add(1)
	go s.watchPlayback(pb, gen, clip)
}

// watchPlayback flips isPlaying back once the clip of generation gen ends
func (s *Store) watchPlayback(pb Playback, gen uint64, clip string) {
	defer s.wg.Done()
	<-pb.Done()

	if err := pb.Err(); err != nil {
		s.logger.Warn("audio playback failed", zap.String("clip", clip), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playGen != gen {
		return
	}
	s.playing = false
	s.playback = nil
}

// StopAudio halts the active clip, if any
func (s *Store) StopAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil {
		return
	}
	s.releasePlaybackLocked()
}

func (s *Store) releasePlaybackLocked() {
	if s.playback != nil {
		s.playback.Stop()
		s.playback = nil
	}
	s.playGen++
	s.playing = false
}

// Words returns the word texts of the selected levels
func (s *Store) Words() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}

// Current returns the word being practised
func (s *Store) Current() (models.WordEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.WordEntry{}, false
	}
	return *s.current, true
}

// IsPlaying reports whether a clip is sounding
func (s *Store) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// InFlight returns the levels of lang currently being fetched
func (s *Store) InFlight(lang models.Language) []models.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlightLocked(lang)
}

func (s *Store) inFlightLocked(lang models.Language) []models.Level {
	var out []models.Level
	for _, level := range models.AllLevels() {
		if _, ok := s.inFlight[levelKey{lang: lang, level: level}]; ok {
			out = append(out, level)
		}
	}
	return out
}

// LoadedLevels returns the levels of lang present in the cache
func (s *Store) LoadedLevels(lang models.Language) []models.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Level
	for _, level := range models.AllLevels() {
		if _, ok := s.cache[lang][level]; ok {
			out = append(out, level)
		}
	}
	return out
}

// Entries returns a copy of the cached list for lang and level
func (s *Store) Entries(lang models.Language, level models.Level) ([]models.WordEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.cache[lang][level]
	if !ok {
		return nil, false
	}
	out := make([]models.WordEntry, len(entries))
	copy(out, entries)
	return out, true
}

// Snapshot returns a consistent view of the whole session
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		Language:  s.language,
		Words:     make([]string, len(s.words)),
		Answer:    s.answer,
		IsPlaying: s.playing,
		InFlight:  s.inFlightLocked(s.language),
	}
	copy(state.Words, s.words)
	if s.current != nil {
		current := *s.current
		state.Current = &current
	}
	return state
}
