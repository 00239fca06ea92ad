package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dictation/internal/app"
	"dictation/internal/models"
	"dictation/internal/practice"
	"dictation/internal/preferences"
	"dictation/internal/repository"
	"dictation/internal/words"
)

var (
	practiceLang    string
	practiceLevels  []string
	practiceClient  string
	practicePersist bool

	// skipWait overrides the reveal delay on skip; nil uses the learner's delay
	skipWait practice.WaitFunc
)

// practiceCmd runs an interactive dictation drill
var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Practise spelling in the terminal",
	Long: `Plays a random word from the selected levels and checks what you type.

While practising:
  <word>  submit a spelling
  :p      play the word again
  :s      skip: reveal the word, then move on after the delay timer
  :q      quit and print statistics

With --persist the preferences of --client are loaded from and saved to the
configured database, so a later run resumes the same selection.`,
	RunE: runPractice,
}

func init() {
	practiceCmd.Flags().StringVar(&practiceLang, "lang", "", "Language to practise (en-us, de-de)")
	practiceCmd.Flags().StringSliceVar(&practiceLevels, "level", nil, "Levels to practise (repeatable, e.g. --level A1 --level A2)")
	practiceCmd.Flags().StringVar(&practiceClient, "client", "cli", "Preferences profile to use")
	practiceCmd.Flags().BoolVar(&practicePersist, "persist", false, "Keep preferences in the configured database")
}

func runPractice(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	var repo preferences.Repository = preferences.NewMemoryRepository()
	if practicePersist {
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = repository.NewPreferencesRepository(db)
	}

	prefs, err := preferences.Open(ctx, repo, practiceClient)
	if err != nil {
		return err
	}
	if err := applySelectionFlags(ctx, prefs); err != nil {
		return err
	}

	source, err := app.NewSource(cfg.Assets)
	if err != nil {
		return err
	}
	player, err := app.NewPlayer(*cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up audio playback: %w", err)
	}

	store := words.New(source, prefs,
		words.WithPlayer(player),
		words.WithLogger(logger),
		words.WithAudioRoot(cfg.Assets.AudioRoot),
	)
	defer store.Close()

	drillOpts := []practice.Option{practice.WithLogger(logger), practice.WithWait(skipWait)}
	if player != nil {
		drillOpts = append(drillOpts, practice.WithCues(player, practice.Cues{
			Correct: cfg.Audio.CorrectCue,
			Wrong:   cfg.Audio.WrongCue,
		}))
	}
	drill := practice.NewDrill(store, prefs, drillOpts...)
	defer drill.Close()

	store.Load(ctx)
	if _, ok := store.Current(); !ok {
		sel := prefs.Selection()
		return fmt.Errorf("no words available for %s %v", sel.Language, sel.Levels)
	}

	sel := prefs.Selection()
	fmt.Fprintf(out, "Practising %s %v (%d words). Type :q to quit.\n", sel.Language, sel.Levels, len(store.Words()))

	err = practiceLoop(ctx, cmd.InOrStdin(), out, store, drill)

	stats := drill.Stats()
	fmt.Fprintf(out, "\n%d attempts, %d correct (%.0f%%), %d skipped\n",
		stats.Attempts, stats.Correct, stats.Accuracy(), stats.Skipped)
	return err
}

// applySelectionFlags saves --lang and --level into the preferences
func applySelectionFlags(ctx context.Context, prefs *preferences.Store) error {
	if practiceLang == "" && len(practiceLevels) == 0 {
		return nil
	}

	var lang models.Language
	if practiceLang != "" {
		parsed, err := models.ParseLanguage(practiceLang)
		if err != nil {
			return fmt.Errorf("invalid --lang %q: %w", practiceLang, err)
		}
		lang = parsed
	}
	var levels []models.Level
	if len(practiceLevels) > 0 {
		parsed, err := models.ParseLevels(practiceLevels)
		if err != nil {
			return fmt.Errorf("invalid --level: %w", err)
		}
		levels = parsed
	}

	return prefs.Update(ctx, func(p *models.Preferences) {
		if lang != "" {
			p.Language = lang
		}
		if levels != nil {
			p.SelectedLevels = levels
		}
	})
}

func practiceLoop(ctx context.Context, in io.Reader, out io.Writer, store *words.Store, drill *practice.Drill) error {
	scanner := bufio.NewScanner(in)
	for {
		current, ok := store.Current()
		if !ok {
			return errors.New("no word to practise")
		}
		store.PlayAudio()
		fmt.Fprintf(out, "[%s] %d letters > ", current.Level, len([]rune(current.Word)))

		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case ":q":
			return nil
		case ":p":
			continue
		case ":s":
			revealed, err := drill.Skip(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "The word was %q\n", revealed.Word)
			continue
		}

		store.SetAnswer(line)
		result, err := drill.Submit(ctx)
		if err != nil {
			return err
		}
		if result.Correct {
			fmt.Fprintln(out, "Correct!")
		} else {
			fmt.Fprintln(out, "Not quite, try again.")
		}
		logger.Debug("answer checked", zap.String("word_id", current.ID), zap.Bool("correct", result.Correct))
	}
}
