package handlers

import (
	"errors"
	"net/http"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/models"
	"dictation/internal/practice"
	"dictation/internal/security"
	"dictation/internal/service"
)

// SessionHandler serves the word session API
type SessionHandler struct {
	sessions *service.SessionService
	signer   *security.TokenSigner
	csrf     *security.CSRFGenerator
	clipFile func(clip string) string
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler. clipFile maps a word's clip
// path to the local file served by Clip; nil disables clip streaming.
func NewSessionHandler(sessions *service.SessionService, signer *security.TokenSigner, csrf *security.CSRFGenerator, clipFile func(clip string) string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, signer: signer, csrf: csrf, clipFile: clipFile, logger: logging.OrNop(logger)}
}

// currentWordView describes the word to spell without revealing it
type currentWordView struct {
	ID     string       `json:"id"`
	Level  models.Level `json:"level"`
	Length int          `json:"length"`
}

type sessionView struct {
	SessionID      string              `json:"session_id"`
	Language       models.Language     `json:"language"`
	SelectedLevels []models.Level      `json:"selected_levels"`
	DelayTimerMS   int64               `json:"delay_timer_ms"`
	SoundEffects   models.SoundEffects `json:"sound_effects"`
	Current        *currentWordView    `json:"current"`
	Answer         string              `json:"answer"`
	IsPlaying      bool                `json:"is_playing"`
	WordCount      int                 `json:"word_count"`
	InFlight       []models.Level      `json:"in_flight"`
	Stats          practice.Stats      `json:"stats"`
}

func newSessionView(sess *service.Session) sessionView {
	prefs := sess.Prefs.Current()
	state := sess.Words.Snapshot()

	view := sessionView{
		SessionID:      sess.ID,
		Language:       prefs.Language,
		SelectedLevels: prefs.SelectedLevels,
		DelayTimerMS:   prefs.DelayTimer.Milliseconds(),
		SoundEffects:   prefs.SoundEffects,
		Answer:         state.Answer,
		IsPlaying:      state.IsPlaying,
		WordCount:      len(state.Words),
		InFlight:       state.InFlight,
		Stats:          sess.Drill.Stats(),
	}
	if view.InFlight == nil {
		view.InFlight = []models.Level{}
	}
	if c := state.Current; c != nil {
		view.Current = &currentWordView{
			ID:     c.ID,
			Level:  c.Level,
			Length: len([]rune(c.Word)),
		}
	}
	return view
}

type createSessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	CSRFToken string      `json:"csrf_token"`
	Session   sessionView `json:"session"`
}

// CreateSession starts a session and sets its cookie
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to create session", err)
		return
	}

	token, expires, err := h.signer.Issue(sess.ID)
	if err != nil {
		h.sessions.Remove(sess.ID)
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to sign session token", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, token, expires))
	respondJSON(w, http.StatusCreated, createSessionResponse{
		Token:     token,
		ExpiresAt: expires,
		CSRFToken: h.csrf.Token(sess.ID),
		Session:   newSessionView(sess),
	})
}

// GetSession returns the session state
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newSessionView(GetSessionFromContext(r.Context())))
}

// DeleteSession ends the session and clears its cookie
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if err := h.sessions.End(r.Context(), sess.ID); err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to end session", err)
		return
	}
	http.SetCookie(w, security.CreateDeleteCookie(r))
	w.WriteHeader(http.StatusNoContent)
}

type soundEffectsRequest struct {
	Correct *bool `json:"correct"`
	Wrong   *bool `json:"wrong"`
}

type preferencesRequest struct {
	Language       *string              `json:"language"`
	SelectedLevels []string             `json:"selected_levels"`
	DelayTimerMS   *int64               `json:"delay_timer_ms"`
	SoundEffects   *soundEffectsRequest `json:"sound_effects"`
}

// UpdatePreferences applies a partial preferences update. The levels of the
// new selection are loaded before the response is written.
func (h *SessionHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	var req preferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}

	fields := map[string][]string{}
	var (
		lang   models.Language
		levels []models.Level
		err    error
	)
	if req.Language != nil {
		if lang, err = models.ParseLanguage(*req.Language); err != nil {
			fields["language"] = append(fields["language"], err.Error())
		}
	}
	if req.SelectedLevels != nil {
		if levels, err = models.ParseLevels(req.SelectedLevels); err != nil {
			fields["selected_levels"] = append(fields["selected_levels"], err.Error())
		}
	}
	if req.DelayTimerMS != nil && *req.DelayTimerMS < 0 {
		fields["delay_timer_ms"] = append(fields["delay_timer_ms"], "must not be negative")
	}
	if len(fields) > 0 {
		respondWithFieldErrors(w, fields)
		return
	}

	err = sess.Prefs.Update(r.Context(), func(p *models.Preferences) {
		if req.Language != nil {
			p.Language = lang
		}
		if req.SelectedLevels != nil {
			p.SelectedLevels = levels
		}
		if req.DelayTimerMS != nil {
			p.DelayTimer = time.Duration(*req.DelayTimerMS) * time.Millisecond
		}
		if se := req.SoundEffects; se != nil {
			if se.Correct != nil {
				p.SoundEffects.Correct = *se.Correct
			}
			if se.Wrong != nil {
				p.SoundEffects.Wrong = *se.Wrong
			}
		}
	})
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to save preferences", err)
		return
	}

	sel := sess.Prefs.Selection()
	sess.Words.EnsureLevelsLoaded(r.Context(), sel.Language, sel.Levels)
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

// Pick moves to a random word of the selected levels
func (h *SessionHandler) Pick(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if _, ok := sess.Words.PickRandom(); !ok {
		respondWithError(w, h.logger, http.StatusConflict, ErrNoCurrentWord, "", nil)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// SetAnswer stores the learner's typed text
func (h *SessionHandler) SetAnswer(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}
	sess.Words.SetAnswer(req.Answer)
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

type submitResponse struct {
	practice.Result
	Session sessionView `json:"session"`
}

// Submit checks the current answer
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	result, err := sess.Drill.Submit(r.Context())
	if errors.Is(err, practice.ErrNoWord) {
		respondWithError(w, h.logger, http.StatusConflict, ErrNoCurrentWord, "", nil)
		return
	}
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "submit failed", err)
		return
	}
	respondJSON(w, http.StatusOK, submitResponse{Result: result, Session: newSessionView(sess)})
}

type revealedWordView struct {
	ID    string       `json:"id"`
	Level models.Level `json:"level"`
	Word  string       `json:"word"`
}

type skipResponse struct {
	Revealed revealedWordView `json:"revealed"`
	Session  sessionView      `json:"session"`
}

// Skip reveals the current word, waits the learner's delay and moves on
func (h *SessionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	revealed, err := sess.Drill.Skip(r.Context())
	if errors.Is(err, practice.ErrNoWord) {
		respondWithError(w, h.logger, http.StatusConflict, ErrNoCurrentWord, "", nil)
		return
	}
	if err != nil {
		// The client went away during the delay
		h.logger.Debug("skip interrupted", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}

	respondJSON(w, http.StatusOK, skipResponse{
		Revealed: revealedWordView{
			ID:    revealed.ID,
			Level: revealed.Level,
			Word:  revealed.Word,
		},
		Session: newSessionView(sess),
	})
}

// PlayAudio plays the current word's clip
func (h *SessionHandler) PlayAudio(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	sess.Words.PlayAudio()
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

// Clip streams the current word's audio under a neutral file name
func (h *SessionHandler) Clip(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	current := sess.Words.Snapshot().Current
	if current == nil || current.AudioPath == "" {
		respondWithError(w, h.logger, http.StatusConflict, ErrNoCurrentWord, "", nil)
		return
	}
	if h.clipFile == nil {
		respondWithError(w, h.logger, http.StatusNotFound, ErrClipNotFound, "", nil)
		return
	}

	name := h.clipFile(current.AudioPath)
	f, err := os.Open(name)
	if err != nil {
		respondWithError(w, h.logger, http.StatusNotFound, ErrClipNotFound, "clip unavailable", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondWithError(w, h.logger, http.StatusNotFound, ErrClipNotFound, "clip unavailable", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "clip"+path.Ext(name), info.ModTime(), f)
}

// StopAudio stops playback
func (h *SessionHandler) StopAudio(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	sess.Words.StopAudio()
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

type levelView struct {
	Level    models.Level `json:"level"`
	Selected bool         `json:"selected"`
	Loaded   bool         `json:"loaded"`
	Loading  bool         `json:"loading"`
	Count    int          `json:"count"`
}

type levelsResponse struct {
	Language models.Language `json:"language"`
	Levels   []levelView     `json:"levels"`
}

// Levels reports the load state of every level in a language, defaulting to
// the session's language
func (h *SessionHandler) Levels(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	prefs := sess.Prefs.Current()

	lang := prefs.Language
	if q := r.URL.Query().Get("lang"); q != "" {
		parsed, err := models.ParseLanguage(q)
		if err != nil {
			respondWithFieldErrors(w, map[string][]string{"lang": {err.Error()}})
			return
		}
		lang = parsed
	}

	selected := map[models.Level]bool{}
	if lang == prefs.Language {
		for _, l := range prefs.SelectedLevels {
			selected[l] = true
		}
	}
	loading := map[models.Level]bool{}
	for _, l := range sess.Words.InFlight(lang) {
		loading[l] = true
	}

	resp := levelsResponse{Language: lang}
	for _, level := range models.AllLevels() {
		entries, loaded := sess.Words.Entries(lang, level)
		resp.Levels = append(resp.Levels, levelView{
			Level:    level,
			Selected: selected[level],
			Loaded:   loaded,
			Loading:  loading[level],
			Count:    len(entries),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
