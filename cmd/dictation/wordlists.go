package main

import (
	"context"
	"fmt"

	"dictation/internal/app"
	"dictation/internal/models"
	"dictation/internal/preferences"
	"dictation/internal/words"
)

// loadLists fetches the given levels of lang into a throwaway word store.
// Levels that fail to load are logged by the store and left out.
func loadLists(ctx context.Context, lang models.Language, levels []models.Level) (*words.Store, error) {
	source, err := app.NewSource(cfg.Assets)
	if err != nil {
		return nil, err
	}
	prefs, err := preferences.Open(ctx, preferences.NewMemoryRepository(), "cli")
	if err != nil {
		return nil, err
	}
	store := words.New(source, prefs,
		words.WithLogger(logger),
		words.WithAudioRoot(cfg.Assets.AudioRoot),
	)
	store.EnsureLevelsLoaded(ctx, lang, levels)
	if err := ctx.Err(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// parseLevelFlags turns --level values into levels, defaulting to all of them
func parseLevelFlags(tags []string) ([]models.Level, error) {
	if len(tags) == 0 {
		return models.AllLevels(), nil
	}
	levels, err := models.ParseLevels(tags)
	if err != nil {
		return nil, fmt.Errorf("invalid --level: %w", err)
	}
	return levels, nil
}

// parseLanguageFlag parses --lang; an empty value selects every language
func parseLanguageFlag(tag string) ([]models.Language, error) {
	if tag == "" {
		return models.SupportedLanguages(), nil
	}
	lang, err := models.ParseLanguage(tag)
	if err != nil {
		return nil, fmt.Errorf("invalid --lang %q: %w", tag, err)
	}
	return []models.Language{lang}, nil
}
