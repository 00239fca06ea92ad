package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dictation/internal/database"
	"dictation/internal/models"
	"dictation/internal/preferences"
)

// PreferencesRepository persists learner preferences, one row per client
type PreferencesRepository struct {
	db database.DBTX
}

func NewPreferencesRepository(db database.DBTX) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// Load retrieves a client's preferences, or preferences.ErrNotFound
func (r *PreferencesRepository) Load(ctx context.Context, clientID string) (models.Preferences, error) {
	var (
		lang    string
		levels  string
		delayMS int64
		prefs   models.Preferences
	)
	query := `SELECT language, selected_levels, delay_ms, correct_sound, wrong_sound FROM preferences WHERE client_id = ?`
	err := r.db.QueryRowContext(ctx, query, clientID).Scan(
		&lang,
		&levels,
		&delayMS,
		&prefs.SoundEffects.Correct,
		&prefs.SoundEffects.Wrong,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Preferences{}, preferences.ErrNotFound
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	prefs.Language, err = models.ParseLanguage(lang)
	if err != nil {
		// A language dropped from the supported set falls back to the default.
		prefs.Language = models.DefaultPreferences().Language
	}
	prefs.SelectedLevels = decodeLevels(levels)
	prefs.DelayTimer = models.ClampDelay(time.Duration(delayMS) * time.Millisecond)
	return prefs, nil
}

var preferenceColumns = []string{
	"client_id", "language", "selected_levels", "delay_ms", "correct_sound", "wrong_sound", "updated_at",
}

// Save updates or inserts a client's preferences
func (r *PreferencesRepository) Save(ctx context.Context, clientID string, prefs models.Preferences) error {
	query := r.db.GetDialect().Upsert("preferences", "client_id", preferenceColumns...)
	_, err := r.db.ExecContext(ctx, query,
		clientID,
		string(prefs.Language),
		encodeLevels(prefs.SelectedLevels),
		prefs.DelayTimer.Milliseconds(),
		prefs.SoundEffects.Correct,
		prefs.SoundEffects.Wrong,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Delete removes a client's preferences
func (r *PreferencesRepository) Delete(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE client_id = ?`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}

func encodeLevels(levels []models.Level) string {
	tags := make([]string, len(levels))
	for i, l := range levels {
		tags[i] = string(l)
	}
	return strings.Join(tags, ",")
}

func decodeLevels(s string) []models.Level {
	levels := []models.Level{}
	for _, tag := range strings.Split(s, ",") {
		if level, err := models.ParseLevel(strings.TrimSpace(tag)); err == nil {
			levels = append(levels, level)
		}
	}
	return models.NormalizeLevels(levels)
}
