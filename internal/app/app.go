// Package app builds the collaborators shared by the server and the CLI from
// configuration.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"dictation/assets"
	"dictation/internal/audio"
	"dictation/internal/config"
	"dictation/internal/words"
)

// NewSource picks where word lists come from: a local directory, a remote
// base URL, or the bundled sample lists.
func NewSource(cfg config.AssetsConfig) (words.Source, error) {
	switch {
	case cfg.Dir != "":
		info, err := os.Stat(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("assets dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("assets dir %s is not a directory", cfg.Dir)
		}
		return words.NewFSSource(os.DirFS(cfg.Dir), nil), nil
	case cfg.BaseURL != "":
		return words.NewHTTPSource(cfg.BaseURL, nil, nil)
	default:
		return words.NewFSSource(assets.WordLists(), nil), nil
	}
}

// ClipResolver maps clip URL paths to local files. Paths under audioRoot are
// served from audioDir; other paths are looked up next to audioDir.
func ClipResolver(audioRoot, audioDir string) func(clip string) string {
	staticDir := filepath.Dir(filepath.Clean(audioDir))
	prefix := strings.TrimSuffix(audioRoot, "/") + "/"
	return func(clip string) string {
		if rest, ok := strings.CutPrefix(clip, prefix); ok {
			return filepath.Join(audioDir, filepath.FromSlash(rest))
		}
		return filepath.Join(staticDir, filepath.FromSlash(strings.TrimPrefix(clip, "/")))
	}
}

// NewPlayer returns a command player for the configured command, or nil when
// none is configured. "auto" detects a known player on PATH.
func NewPlayer(cfg config.Config, logger *zap.Logger) (words.Player, error) {
	command := strings.TrimSpace(cfg.Audio.Command)
	if command == "" {
		return nil, nil
	}
	if command == "auto" {
		detected, err := audio.DetectCommand()
		if err != nil {
			return nil, err
		}
		command = detected
	}

	player, err := audio.NewCommandPlayer(command, ClipResolver(cfg.Assets.AudioRoot, cfg.Assets.AudioDir))
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("audio playback enabled", zap.String("command", command))
	}
	return player, nil
}
