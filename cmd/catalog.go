package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scrapecast/internal/media"
	"scrapecast/internal/provider"
	"scrapecast/internal/ui"
)

var (
	flagPage    int
	flagSection string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the provider's home page sections",
	Long: `Loads every section of the provider's home page, a few at a time, and
lets you pick an entry to play. With --section only that section is loaded.`,
	Args: cobra.NoArgs,
	RunE: catalogRun,
}

func init() {
	catalogCmd.Flags().IntVar(&flagPage, "page", 1, "Page number")
	catalogCmd.Flags().StringVarP(&flagSection, "section", "s", "", "Only this section (name or key)")
}

func catalogRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if flagPage < 1 {
		return fmt.Errorf("--page must be at least 1")
	}
	p, a, err := currentProvider(ctx)
	if err != nil {
		return err
	}

	var sections []media.Section
	if flagSection != "" {
		req, ok := findSection(p, flagSection)
		if !ok {
			return fmt.Errorf("provider %s has no section %q", p.Name(), flagSection)
		}
		req.Page = flagPage
		sec, err := p.ListCatalog(ctx, req)
		if err != nil {
			return fmt.Errorf("listing %s: %w", req.Name, err)
		}
		sections = append(sections, sec)
	} else {
		sections = provider.MainPage(ctx, p, flagPage, cfg.BatchSize)
	}

	if flagJSON {
		if sections == nil {
			sections = []media.Section{}
		}
		return printJSON(sections)
	}
	if len(sections) == 0 {
		fmt.Fprintln(os.Stderr, "No content found.")
		return nil
	}

	if !ui.Interactive() {
		for _, s := range sections {
			ui.PrintSection(os.Stdout, s)
		}
		return nil
	}

	// Flatten the sections into one menu
	var entries []media.Entry
	var items []string
	for _, s := range sections {
		for _, e := range s.Entries {
			entries = append(entries, e)
			items = append(items, fmt.Sprintf("%s › %s", s.Name, ui.EntryLine(e)))
		}
	}
	idx, err := ui.Select(p.Name(), items)
	if err != nil {
		return err
	}
	return playEntry(ctx, a, p, entries[idx].URL)
}

func findSection(p provider.Provider, name string) (media.SectionRequest, bool) {
	for _, req := range p.Sections() {
		if req.Name == name || req.Data == name {
			return req, true
		}
	}
	return media.SectionRequest{}, false
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List available providers and their sections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getServices(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			type info struct {
				Name     string                 `json:"name"`
				Sections []media.SectionRequest `json:"sections"`
			}
			var out []info
			for _, p := range a.registry.All() {
				out = append(out, info{Name: p.Name(), Sections: p.Sections()})
			}
			return printJSON(out)
		}
		for _, p := range a.registry.All() {
			name := p.Name()
			if name == cfg.Provider {
				name = ui.TitleStyle.Render(name + " *")
			}
			fmt.Println(name)
			for _, s := range p.Sections() {
				fmt.Printf("  %s %s\n", s.Name, ui.DimStyle.Render(s.Data))
			}
		}
		return nil
	},
}
