package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dictation/internal/audio"
	"dictation/internal/models"
)

var (
	audioLang     string
	audioLevels   []string
	audioEndpoint string
	audioDryRun   bool
)

// audioCmd groups pronunciation clip maintenance
var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Maintain pronunciation clips",
	Long: `Maintain the pronunciation clips served under the audio root.

Available subcommands:
  generate - Create missing clips with text-to-speech
  prune    - Delete clips no word list refers to`,
}

// audioGenerateCmd fills in clips for words that have none
var audioGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate missing clips with text-to-speech",
	Long: `Speaks every word of the selected lists that has no clip yet and saves it
as <audio_dir>/<lang>/<LEVEL>/<file>. Existing clips are never replaced.`,
	RunE: runAudioGenerate,
}

// audioPruneCmd removes clips that are no longer referenced
var audioPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete clips that no word list refers to",
	RunE:  runAudioPrune,
}

func init() {
	for _, c := range []*cobra.Command{audioGenerateCmd, audioPruneCmd} {
		c.Flags().StringVar(&audioLang, "lang", "", "Only this language (default all)")
		c.Flags().StringSliceVar(&audioLevels, "level", nil, "Only these levels (default all)")
	}
	audioGenerateCmd.Flags().StringVar(&audioEndpoint, "endpoint", audio.DefaultTTSEndpoint, "Text-to-speech endpoint")
	audioPruneCmd.Flags().BoolVar(&audioDryRun, "dry-run", false, "Only print what would be deleted")
}

func runAudioGenerate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	langs, err := parseLanguageFlag(audioLang)
	if err != nil {
		return err
	}
	levels, err := parseLevelFlags(audioLevels)
	if err != nil {
		return err
	}

	tts := audio.NewTTSService(cfg.Assets.AudioDir,
		audio.WithEndpoint(audioEndpoint),
		audio.WithTTSLogger(logger),
	)

	failed := 0
	for _, lang := range langs {
		store, err := loadLists(ctx, lang, levels)
		if err != nil {
			return err
		}
		for _, level := range store.LoadedLevels(lang) {
			entries, _ := store.Entries(lang, level)
			report, err := tts.GenerateMissing(ctx, lang, level, entries)
			if err != nil {
				store.Close()
				return err
			}
			fmt.Fprintf(out, "%s %s: %d created, %d existing, %d failed\n",
				lang, level, report.Created, report.Existing, len(report.Failed))
			failed += len(report.Failed)
		}
		store.Close()
	}

	if failed > 0 {
		return fmt.Errorf("%d clips could not be generated", failed)
	}
	return nil
}

func runAudioPrune(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	langs, err := parseLanguageFlag(audioLang)
	if err != nil {
		return err
	}
	levels, err := parseLevelFlags(audioLevels)
	if err != nil {
		return err
	}

	tts := audio.NewTTSService(cfg.Assets.AudioDir, audio.WithTTSLogger(logger))

	removed := 0
	for _, lang := range langs {
		store, err := loadLists(ctx, lang, levels)
		if err != nil {
			return err
		}
		for _, level := range store.LoadedLevels(lang) {
			entries, _ := store.Entries(lang, level)
			stale, err := staleClips(tts, lang, level, entries)
			if err != nil {
				store.Close()
				return err
			}
			for _, clip := range stale {
				if !audioDryRun {
					if err := tts.DeleteClip(lang, level, clip); err != nil {
						store.Close()
						return fmt.Errorf("failed to delete %s: %w", clip, err)
					}
				}
				fmt.Fprintf(out, "%s/%s/%s\n", lang, level, clip)
				removed++
			}
		}
		store.Close()
	}

	verb := "removed"
	if audioDryRun {
		verb = "would be removed"
	}
	fmt.Fprintf(out, "%d clips %s\n", removed, verb)
	return nil
}

// staleClips lists clips of a level that none of entries uses
func staleClips(tts *audio.TTSService, lang models.Language, level models.Level, entries []models.WordEntry) ([]string, error) {
	clips, err := tts.Clips(lang, level)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(entries))
	for _, entry := range entries {
		used[audio.ClipName(entry.AudioPath, entry.Word)] = true
	}

	var stale []string
	for _, clip := range clips {
		if !used[clip] {
			stale = append(stale, clip)
		}
	}
	return stale, nil
}
