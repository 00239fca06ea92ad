package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dictation/internal/app"
	"dictation/internal/models"
	"dictation/internal/practice"
	"dictation/internal/preferences"
	"dictation/internal/security"
	"dictation/internal/service"
	"dictation/internal/words"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testLists = fstest.MapFS{
	"en-us/index/A1_en_us_index.json": {Data: []byte(`{"entries":[{"id":"1","word":"cat","file":"cat.mp3"}]}`)},
	"en-us/index/B1_en_us_index.json": {Data: []byte(`{"entries":[{"id":"7","word":"journey","file":"journey.mp3"},{"id":"8","word":"harbour","file":"harbour.mp3"}]}`)},
	"de-de/index/A1_de_de_index.json": {Data: []byte(`{"entries":[{"id":"1","word":"Haus","file":"haus.mp3"}]}`)},
}

type memReports struct {
	mu      sync.Mutex
	reports []*models.Report
}

func (m *memReports) Create(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type apiFixture struct {
	server   *httptest.Server
	sessions *service.SessionService
	reports  *memReports
	audioDir string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	sessions := service.NewSessionService(service.SessionConfig{
		Source:  words.NewFSSource(testLists, nil),
		Prefs:   preferences.NewMemoryRepository(),
		IdleTTL: time.Hour,
		DrillOptions: []practice.Option{
			practice.WithWait(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
		},
	})
	t.Cleanup(sessions.Close)

	reports := &memReports{}
	limiter := security.NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)

	audioDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(audioDir, "en-us", "A1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "en-us", "A1", "cat.mp3"), []byte("ID3"), 0o644))

	router := NewRouter(RouterConfig{
		Sessions: sessions,
		Reports:  service.NewReportService(reports, limiter, security.NewIPHasher(testSecret), nil),
		Signer:   security.NewTokenSigner(testSecret, "dictation", time.Hour),
		CSRF:     security.NewCSRFGenerator(testSecret),
		DB:       fakePinger{},
		ClipFile: app.ClipResolver("/audio_files", audioDir),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, sessions: sessions, reports: reports, audioDir: audioDir}
}

type client struct {
	t      *testing.T
	base   string
	token  string
	cookie *http.Cookie
	csrf   string
}

func (f *apiFixture) newClient(t *testing.T) (*client, createSessionResponse) {
	t.Helper()
	c := &client{t: t, base: f.server.URL}

	resp := c.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createSessionResponse
	decode(t, resp, &created)
	c.token = created.Token
	c.csrf = created.CSRFToken
	for _, ck := range resp.Cookies() {
		if ck.Name == security.SessionCookieName {
			c.cookie = ck
		}
	}
	return c, created
}

func (c *client) do(method, path string, body any) *http.Response {
	return c.send(method, path, body, func(r *http.Request) {
		if c.token != "" {
			r.Header.Set("Authorization", "Bearer "+c.token)
		}
	})
}

func (c *client) send(method, path string, body any, prepare func(*http.Request)) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	prepare(req)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestCreateSession_HidesWord(t *testing.T) {
	api := newAPI(t)
	c, created := api.newClient(t)

	assert.NotEmpty(t, created.Token)
	assert.NotEmpty(t, created.CSRFToken)
	require.NotNil(t, created.Session.Current)
	assert.Equal(t, 3, created.Session.Current.Length)
	assert.Equal(t, models.LanguageEnglishUS, created.Session.Language)
	assert.Equal(t, 1, api.sessions.Count())

	resp := c.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw map[string]json.RawMessage
	decode(t, resp, &raw)
	require.Contains(t, raw, "current")
	assert.NotContains(t, string(raw["current"]), "audio_path")
	for key, value := range raw {
		assert.NotContains(t, string(value), "cat", "field %s", key)
	}
}

func TestSession_RequiresToken(t *testing.T) {
	api := newAPI(t)
	c := &client{t: t, base: api.server.URL}

	resp := c.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c.token = "garbage"
	resp = c.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSession_CookieNeedsCSRFForWrites(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)
	require.NotNil(t, c.cookie)

	withCookie := func(csrf string) func(*http.Request) {
		return func(r *http.Request) {
			r.AddCookie(c.cookie)
			if csrf != "" {
				r.Header.Set(security.CSRFHeader, csrf)
			}
		}
	}

	resp := c.send(http.MethodGet, "/api/session", nil, withCookie(""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.send(http.MethodPut, "/api/session/answer", answerRequest{Answer: "c"}, withCookie(""))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = c.send(http.MethodPut, "/api/session/answer", answerRequest{Answer: "c"}, withCookie(c.csrf))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmitFlow(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodPut, "/api/session/answer", answerRequest{Answer: "kat"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/session/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wrong struct {
		Correct bool        `json:"correct"`
		Session sessionView `json:"session"`
	}
	decode(t, resp, &wrong)
	assert.False(t, wrong.Correct)
	assert.Equal(t, "kat", wrong.Session.Answer)

	c.do(http.MethodPut, "/api/session/answer", answerRequest{Answer: "cat"})
	resp = c.do(http.MethodPost, "/api/session/submit", nil)
	var right struct {
		Correct bool        `json:"correct"`
		Session sessionView `json:"session"`
	}
	decode(t, resp, &right)
	assert.True(t, right.Correct)
	assert.Empty(t, right.Session.Answer)
	assert.Equal(t, practice.Stats{Attempts: 2, Correct: 1}, right.Session.Stats)
}

func TestSkipRevealsWord(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodPost, "/api/session/skip", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var skipped skipResponse
	decode(t, resp, &skipped)
	assert.Equal(t, "cat", skipped.Revealed.Word)
	assert.Empty(t, skipped.Session.Answer)
	assert.Equal(t, 1, skipped.Session.Stats.Skipped)
}

func TestUpdatePreferences(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodPut, "/api/session/preferences", map[string]any{
		"selected_levels": []string{"b1"},
		"delay_timer_ms":  60000,
		"sound_effects":   map[string]bool{"wrong": false},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view sessionView
	decode(t, resp, &view)
	assert.Equal(t, []models.Level{models.LevelB1}, view.SelectedLevels)
	assert.Equal(t, int64(10000), view.DelayTimerMS)
	assert.Equal(t, models.SoundEffects{Correct: true, Wrong: false}, view.SoundEffects)
	assert.Equal(t, 2, view.WordCount)

	assert.Eventually(t, func() bool {
		resp := c.do(http.MethodGet, "/api/session", nil)
		var v sessionView
		decode(t, resp, &v)
		return v.Current != nil && v.Current.Level == models.LevelB1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUpdatePreferences_Invalid(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodPut, "/api/session/preferences", map[string]any{
		"language":        "fr-FR",
		"selected_levels": []string{"Z9"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorResponse
	decode(t, resp, &body)
	assert.Contains(t, body.Fields, "language")
	assert.Contains(t, body.Fields, "selected_levels")

	resp = c.do(http.MethodPut, "/api/session/preferences", map[string]any{"colour": "blue"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPickWithEmptySelection(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodPut, "/api/session/preferences", map[string]any{"selected_levels": []string{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/session/pick", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAudioPlayStopAndClips(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodPost, "/api/session/audio/play", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = c.do(http.MethodPost, "/api/session/audio/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view sessionView
	decode(t, resp, &view)
	assert.False(t, view.IsPlaying)

	clip := c.do(http.MethodGet, "/api/session/audio", nil)
	require.Equal(t, http.StatusOK, clip.StatusCode)
	assert.Equal(t, "no-store", clip.Header.Get("Cache-Control"))
	data, err := io.ReadAll(clip.Body)
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))
	assert.NotContains(t, clip.Header.Get("Content-Disposition"), "cat")
}

func TestClip_OnlyThroughSession(t *testing.T) {
	api := newAPI(t)

	resp, err := http.Get(api.server.URL + "/api/session/audio")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(api.server.URL + "/audio_files/en-us/A1/cat.mp3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(api.server.URL + "/audio_files/en-us/A1/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClip_MissingFile(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)
	require.NoError(t, os.Remove(filepath.Join(api.audioDir, "en-us", "A1", "cat.mp3")))

	resp := c.do(http.MethodGet, "/api/session/audio", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, ErrClipNotFound, body.Error)
}

func TestLevels(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodGet, "/api/levels", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var levels levelsResponse
	decode(t, resp, &levels)
	require.Len(t, levels.Levels, len(models.AllLevels()))
	assert.Equal(t, levelView{Level: models.LevelA1, Selected: true, Loaded: true, Count: 1}, levels.Levels[0])
	assert.False(t, levels.Levels[2].Loaded)

	resp = c.do(http.MethodGet, "/api/levels?lang=xx", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	api := newAPI(t)
	c, _ := api.newClient(t)

	resp := c.do(http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, api.sessions.Count())
}

func TestSubmitReport(t *testing.T) {
	api := newAPI(t)
	c := &client{t: t, base: api.server.URL}

	valid := models.ReportInput{
		Subject:     "Clip too quiet",
		Message:     "The pronunciation of harbour is barely audible.",
		Language:    "en-us",
		ProblemType: models.ProblemPronunciation,
		Priority:    models.PriorityLow,
	}

	resp := c.do(http.MethodPost, "/api/reports", valid)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created reportResponse
	decode(t, resp, &created)
	assert.NotEmpty(t, created.ID)

	invalid := valid
	invalid.Subject = "x"
	resp = c.do(http.MethodPost, "/api/reports", invalid)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Contains(t, body.Fields, "subject")

	resp = c.do(http.MethodPost, "/api/reports", valid)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = c.do(http.MethodPost, "/api/reports", valid)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	api.reports.mu.Lock()
	defer api.reports.mu.Unlock()
	require.Len(t, api.reports.reports, 2)
	assert.False(t, strings.Contains(api.reports.reports[0].IPHash, "127.0.0.1"))
}

func TestSubmitReport_ForwardedForDoesNotResetLimit(t *testing.T) {
	api := newAPI(t)
	c := &client{t: t, base: api.server.URL}

	valid := models.ReportInput{
		Subject:     "Wrong spelling",
		Message:     "The list spells harbour the British way.",
		Language:    "en-us",
		ProblemType: models.ProblemSpelling,
		Priority:    models.PriorityLow,
	}

	statuses := make([]int, 0, 3)
	for _, hop := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		resp := c.send(http.MethodPost, "/api/reports", valid, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", hop)
		})
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, statuses)
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	resp, err := http.Get(api.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := httptest.NewRecorder()
	health(fakePinger{err: assert.AnError}, zap.NewNop())(down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
}
