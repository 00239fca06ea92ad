package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictation/internal/database"
	"dictation/internal/models"
	"dictation/internal/preferences"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background(), nil))
	return db
}

func TestPreferencesRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferencesRepository(newTestDB(t))

	_, err := repo.Load(ctx, "client-1")
	assert.ErrorIs(t, err, preferences.ErrNotFound)

	want := models.Preferences{
		Language:       models.LanguageGerman,
		SelectedLevels: []models.Level{models.LevelB2, models.LevelA1},
		DelayTimer:     5 * time.Second,
		SoundEffects:   models.SoundEffects{Correct: true, Wrong: false},
	}
	require.NoError(t, repo.Save(ctx, "client-1", want))

	got, err := repo.Load(ctx, "client-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	want.SelectedLevels = []models.Level{}
	want.DelayTimer = 10 * time.Second
	require.NoError(t, repo.Save(ctx, "client-1", want))

	got, err = repo.Load(ctx, "client-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() after update mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, repo.Delete(ctx, "client-1"))
	_, err = repo.Load(ctx, "client-1")
	assert.ErrorIs(t, err, preferences.ErrNotFound)
}

func TestPreferencesRepository_BacksStore(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferencesRepository(newTestDB(t))

	store, err := preferences.Open(ctx, repo, "client-2")
	require.NoError(t, err)
	require.NoError(t, store.AddLevel(ctx, models.LevelC1))

	reopened, err := preferences.Open(ctx, repo, "client-2")
	require.NoError(t, err)
	assert.Equal(t, []models.Level{models.LevelA1, models.LevelC1}, reopened.Current().SelectedLevels)
}

func TestDecodeLevels(t *testing.T) {
	tests := []struct {
		in   string
		want []models.Level
	}{
		{in: "", want: []models.Level{}},
		{in: "A1,B2", want: []models.Level{models.LevelA1, models.LevelB2}},
		{in: "a1, Z9 ,A1,c2", want: []models.Level{models.LevelA1, models.LevelC2}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeLevels(tt.in), tt.in)
	}
}

func newReport(id, ipHash string, created time.Time) *models.Report {
	return &models.Report{
		ID:           id,
		Subject:      "Wrong spelling",
		Message:      "The word colour is spelt the British way in en-us.",
		Language:     string(models.LanguageEnglishUS),
		ProblemType:  models.ProblemSpelling,
		Priority:     models.PriorityMedium,
		ContactEmail: "learner@example.com",
		Attachments:  []models.AttachmentInfo{{Filename: "shot.png", MimeType: "image/png", Size: 1024}},
		IPHash:       ipHash,
		UserAgent:    "test-agent",
		Status:       models.ReportOpen,
		CreatedAt:    created,
	}
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newReport("a5f1c2de-0000-4000-8000-000000000001", "hash-1", base)
	second := newReport("a5f1c2de-0000-4000-8000-000000000002", "hash-1", base.Add(5*time.Minute))
	second.Attachments = nil
	other := newReport("a5f1c2de-0000-4000-8000-000000000003", "hash-2", base.Add(time.Minute))
	for _, r := range []*models.Report{first, second, other} {
		require.NoError(t, repo.Create(ctx, r))
	}

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Subject, got.Subject)
		assert.Equal(t, first.Attachments, got.Attachments)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

		_, err = repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrReportNotFound)
	})

	t.Run("CountSince", func(t *testing.T) {
		n, err := repo.CountSince(ctx, "hash-1", base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.CountSince(ctx, "hash-1", base)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("List and UpdateStatus", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, other.ID, models.ReportResolved))
		assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", models.ReportResolved), ErrReportNotFound)

		open, err := repo.List(ctx, models.ReportOpen, 0)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, second.ID, open[0].ID)
		assert.Empty(t, open[0].Attachments)

		all, err := repo.List(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
