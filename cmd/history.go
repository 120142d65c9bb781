package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scrapecast/internal/history"
	"scrapecast/internal/media"
	"scrapecast/internal/ui"
)

var (
	flagHistoryLimit  int
	flagHistoryRemove bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Replay from watch history",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "Show at most this many entries, newest first")
	historyCmd.Flags().BoolVar(&flagHistoryRemove, "remove", false, "Remove the selected entry instead of playing it")
}

func historyRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entries, err := history.Recent(flagHistoryLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if flagJSON {
		if entries == nil {
			entries = []media.HistoryEntry{}
		}
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No history entries found.")
		return nil
	}

	items := history.FormatForDisplay(entries)
	idx, err := ui.Select("Historial", items)
	if err != nil {
		return err
	}
	selected := entries[idx]

	if flagHistoryRemove {
		return history.Remove(selected.Provider, selected.Data)
	}
	debugf("replaying: %s (%s)", selected.Title, selected.Data)

	a, err := getServices(ctx)
	if err != nil {
		return err
	}
	p, err := a.registry.Get(selected.Provider)
	if err != nil {
		return err
	}

	// The entry stores the episode reference, so links resolve directly
	ep := media.Episode{Data: selected.Data, Season: selected.Season, Number: selected.Episode}
	detail := &media.Detail{
		Provider: selected.Provider,
		Title:    selected.Title,
		Kind:     selected.Kind,
		Episodes: []media.Episode{ep},
	}
	return playEpisode(ctx, a, p, detail, ep)
}
