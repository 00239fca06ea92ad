package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var levelsLang string

// levelsCmd lists how many words each level provides
var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List the word lists available per language and level",
	RunE:  runLevels,
}

func init() {
	levelsCmd.Flags().StringVar(&levelsLang, "lang", "", "Only list this language")
}

func runLevels(cmd *cobra.Command, args []string) error {
	langs, err := parseLanguageFlag(levelsLang)
	if err != nil {
		return err
	}
	levels, err := parseLevelFlags(nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tLEVEL\tWORDS")
	for _, lang := range langs {
		store, err := loadLists(commandContext(cmd), lang, levels)
		if err != nil {
			return err
		}
		for _, level := range store.LoadedLevels(lang) {
			entries, _ := store.Entries(lang, level)
			fmt.Fprintf(w, "%s\t%s\t%d\n", lang, level, len(entries))
		}
		store.Close()
	}
	return w.Flush()
}
