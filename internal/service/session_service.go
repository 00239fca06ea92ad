package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/practice"
	"dictation/internal/preferences"
	"dictation/internal/security"
	"dictation/internal/words"
)

// ErrSessionNotFound is returned for ids that are not valid session ids
var ErrSessionNotFound = errors.New("session not found")

// Session is one learner's live word session
type Session struct {
	ID    string
	Words *words.Store
	Prefs *preferences.Store
	Drill *practice.Drill

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Drill.Close()
	s.Words.Close()
}

// SessionConfig wires the collaborators each new session gets
type SessionConfig struct {
	Source    words.Source
	Prefs     preferences.Repository
	Player    words.Player
	CuePlayer words.Player
	Cues      practice.Cues
	AudioRoot string
	IdleTTL   time.Duration
	Logger    *zap.Logger

	// DrillOptions are applied after the cue settings
	DrillOptions []practice.Option
}

// SessionService keeps word sessions in memory, keyed by session id.
// Preferences are persisted, so an evicted session is rebuilt on next use.
type SessionService struct {
	cfg    SessionConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewSessionService creates a new session service
func NewSessionService(cfg SessionConfig) *SessionService {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	return &SessionService{
		cfg:      cfg,
		logger:   logging.OrNop(cfg.Logger),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session with a fresh id
func (s *SessionService) Create(ctx context.Context) (*Session, error) {
	return s.Get(ctx, security.GenerateSessionID())
}

// Get returns the live session for id, rebuilding it from persisted
// preferences when it is not in memory
func (s *SessionService) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		sess.touch(s.now())
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.build(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok || s.closed {
		s.mu.Unlock()
		sess.close()
		if !ok {
			return nil, ErrSessionNotFound
		}
		existing.touch(s.now())
		return existing, nil
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Debug("session started", zap.String("session_id", id))
	return sess, nil
}

func (s *SessionService) build(ctx context.Context, id string) (*Session, error) {
	prefs, err := preferences.Open(ctx, s.cfg.Prefs, id)
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}

	opts := []words.Option{
		words.WithLogger(s.logger.With(zap.String("session_id", id))),
	}
	if s.cfg.Player != nil {
		opts = append(opts, words.WithPlayer(s.cfg.Player))
	}
	if s.cfg.AudioRoot != "" {
		opts = append(opts, words.WithAudioRoot(s.cfg.AudioRoot))
	}
	store := words.New(s.cfg.Source, prefs, opts...)
	store.Load(ctx)

	drillOpts := []practice.Option{practice.WithLogger(s.logger)}
	if s.cfg.CuePlayer != nil {
		drillOpts = append(drillOpts, practice.WithCues(s.cfg.CuePlayer, s.cfg.Cues))
	}
	drillOpts = append(drillOpts, s.cfg.DrillOptions...)

	return &Session{
		ID:       id,
		Words:    store,
		Prefs:    prefs,
		Drill:    practice.NewDrill(store, prefs, drillOpts...),
		lastSeen: s.now(),
	}, nil
}

// Remove ends a session
func (s *SessionService) Remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.close()
	}
}

// preferencesDeleter is implemented by repositories that can forget a client
type preferencesDeleter interface {
	Delete(ctx context.Context, clientID string) error
}

// End removes a session and forgets its saved preferences, so the id starts
// over from defaults if it is presented again
func (s *SessionService) End(ctx context.Context, id string) error {
	s.Remove(id)
	if d, ok := s.cfg.Prefs.(preferencesDeleter); ok {
		if err := d.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete preferences: %w", err)
		}
	}
	s.logger.Debug("session ended", zap.String("session_id", id))
	return nil
}

// Count returns the number of live sessions
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup ends sessions idle for longer than the TTL and returns how many
func (s *SessionService) Cleanup() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	if len(expired) > 0 {
		s.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run calls Cleanup every interval until ctx is done
func (s *SessionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Close ends every session; later Gets fail
func (s *SessionService) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}
