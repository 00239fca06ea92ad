package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dictation/internal/models"
	"dictation/internal/preferences"
	"dictation/internal/security"
	"dictation/internal/validation"
	"dictation/internal/words"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var wordLists = fstest.MapFS{
	"en-us/index/A1_en_us_index.json": {Data: []byte(`{"entries":[{"id":"1","word":"cat","file":"cat.mp3"},{"id":"2","word":"sun","file":"sun.mp3"}]}`)},
	"de-de/index/A1_de_de_index.json": {Data: []byte(`{"entries":[{"id":"1","word":"Haus","file":"haus.mp3"}]}`)},
}

func newSessionService(t *testing.T, repo preferences.Repository) *SessionService {
	t.Helper()
	svc := NewSessionService(SessionConfig{
		Source:  words.NewFSSource(wordLists, nil),
		Prefs:   repo,
		IdleTTL: time.Minute,
	})
	t.Cleanup(svc.Close)
	return svc
}

func TestSessionService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t, preferences.NewMemoryRepository())

	sess, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(sess.ID)
	require.NoError(t, err)

	current, ok := sess.Words.Current()
	require.True(t, ok)
	assert.Equal(t, models.LanguageEnglishUS, current.Language)
	assert.Contains(t, []string{"/audio_files/en-us/A1/cat.mp3", "/audio_files/en-us/A1/sun.mp3"}, current.AudioPath)

	again, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, svc.Count())
}

func TestSessionService_GetRejectsBadID(t *testing.T) {
	svc := newSessionService(t, preferences.NewMemoryRepository())
	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_RebuildsFromPreferences(t *testing.T) {
	ctx := context.Background()
	repo := preferences.NewMemoryRepository()
	svc := newSessionService(t, repo)

	sess, err := svc.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Prefs.SetLanguage(ctx, models.LanguageGerman))

	svc.Remove(sess.ID)
	assert.Equal(t, 0, svc.Count())

	rebuilt, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotSame(t, sess, rebuilt)

	current, ok := rebuilt.Words.Current()
	require.True(t, ok)
	assert.Equal(t, "Haus", current.Word)
}

func TestSessionService_EndForgetsPreferences(t *testing.T) {
	ctx := context.Background()
	repo := preferences.NewMemoryRepository()
	svc := newSessionService(t, repo)

	sess, err := svc.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Prefs.SetLanguage(ctx, models.LanguageGerman))

	require.NoError(t, svc.End(ctx, sess.ID))
	assert.Equal(t, 0, svc.Count())
	_, err = repo.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, preferences.ErrNotFound)

	fresh, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LanguageEnglishUS, fresh.Prefs.Current().Language)
}

func TestSessionService_Cleanup(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t, preferences.NewMemoryRepository())
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	idle, err := svc.Create(ctx)
	require.NoError(t, err)
	now = now.Add(50 * time.Second)
	active, err := svc.Create(ctx)
	require.NoError(t, err)

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, svc.Cleanup())
	assert.Equal(t, 1, svc.Count())

	_, err = svc.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.NotEqual(t, idle.ID, active.ID)
}

func TestSessionService_RunStopsWithContext(t *testing.T) {
	svc := newSessionService(t, preferences.NewMemoryRepository())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSessionService_Closed(t *testing.T) {
	svc := newSessionService(t, preferences.NewMemoryRepository())
	svc.Close()
	_, err := svc.Create(context.Background())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type memoryReports struct {
	mu      sync.Mutex
	reports []*models.Report
	err     error
}

func (m *memoryReports) Create(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

type countingLimiter struct{ left int }

func (l *countingLimiter) Allow(string) bool {
	if l.left == 0 {
		return false
	}
	l.left--
	return true
}

func reportInput() models.ReportInput {
	return models.ReportInput{
		Subject:      "  Wrong word  ",
		Message:      "The A1 list contains a word that is clearly B2 level.",
		Language:     "en-us",
		ProblemType:  models.ProblemSpelling,
		Priority:     models.PriorityLow,
		ContactEmail: "learner@example.com",
	}
}

func TestReportService_Submit(t *testing.T) {
	repo := &memoryReports{}
	hasher := security.NewIPHasher("hash-key")
	svc := NewReportService(repo, &countingLimiter{left: 1}, hasher, nil)
	fixed := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	id, err := svc.Submit(context.Background(), reportInput(), ClientInfo{IP: "203.0.113.9", UserAgent: "curl/8"})
	require.NoError(t, err)

	require.Len(t, repo.reports, 1)
	got := repo.reports[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Wrong word", got.Subject)
	assert.Equal(t, models.ReportOpen, got.Status)
	assert.Equal(t, hasher.Hash("203.0.113.9"), got.IPHash)
	assert.NotContains(t, got.IPHash, "203.0.113.9")
	assert.Equal(t, fixed, got.CreatedAt)

	_, err = svc.Submit(context.Background(), reportInput(), ClientInfo{IP: "203.0.113.9"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, repo.reports, 1)
}

func TestReportService_InvalidDoesNotCount(t *testing.T) {
	repo := &memoryReports{}
	limiter := &countingLimiter{left: 1}
	svc := NewReportService(repo, limiter, security.NewIPHasher("k"), nil)

	in := reportInput()
	in.Message = "short"
	_, err := svc.Submit(context.Background(), in, ClientInfo{IP: "198.51.100.1"})

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.Fields(), "message")
	assert.Equal(t, 1, limiter.left)
	assert.Empty(t, repo.reports)
}

func TestReportService_UnknownOrigin(t *testing.T) {
	svc := NewReportService(&memoryReports{}, &countingLimiter{left: 5}, security.NewIPHasher("k"), nil)
	_, err := svc.Submit(context.Background(), reportInput(), ClientInfo{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestReportService_UserAgentTruncation(t *testing.T) {
	tests := []struct {
		name  string
		agent string
		want  string
	}{
		{name: "short kept", agent: "curl/8", want: "curl/8"},
		{name: "ascii cut at limit", agent: strings.Repeat("a", 600), want: strings.Repeat("a", 512)},
		{name: "multibyte not split", agent: "a" + strings.Repeat("é", 400), want: "a" + strings.Repeat("é", 255)},
		{name: "invalid bytes dropped", agent: "Mozilla\xff/5.0", want: "Mozilla/5.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memoryReports{}
			svc := NewReportService(repo, &countingLimiter{left: 1}, security.NewIPHasher("k"), nil)

			_, err := svc.Submit(context.Background(), reportInput(), ClientInfo{IP: "192.0.2.7", UserAgent: tt.agent})
			require.NoError(t, err)
			require.Len(t, repo.reports, 1)

			got := repo.reports[0].UserAgent
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), maxUserAgentLength)
		})
	}
}

func TestReportService_StoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewReportService(&memoryReports{err: boom}, &countingLimiter{left: 5}, security.NewIPHasher("k"), nil)

	_, err := svc.Submit(context.Background(), reportInput(), ClientInfo{IP: "192.0.2.4"})
	assert.ErrorIs(t, err, boom)
}
