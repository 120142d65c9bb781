package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"scrapecast/internal/download"
	"scrapecast/internal/history"
	"scrapecast/internal/media"
	"scrapecast/internal/player"
	"scrapecast/internal/provider"
	"scrapecast/internal/sink"
	"scrapecast/internal/subtitle"
	"scrapecast/internal/ui"
)

// searchRun is the default command: scrapecast <query>
func searchRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.TrimSpace(strings.Join(args, " "))

	if query == "" {
		var err error
		query, err = ui.Input("Buscar")
		if err != nil || query == "" {
			return fmt.Errorf("no search query provided")
		}
	}

	p, a, err := currentProvider(ctx)
	if err != nil {
		return err
	}
	debugf("searching %s for: %s", p.Name(), query)

	results, err := p.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if flagJSON {
		if results == nil {
			results = []media.Entry{}
		}
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, ui.WarnStyle.Render("No results for "+query))
		return nil
	}
	return pickAndPlay(ctx, a, p, "Resultados", results)
}

// pickAndPlay lets the user choose an entry and plays it.
func pickAndPlay(ctx context.Context, a *app, p provider.Provider, prompt string, entries []media.Entry) error {
	items := make([]string, len(entries))
	for i, e := range entries {
		items[i] = ui.EntryLine(e)
	}
	idx, err := ui.Select(prompt, items)
	if err != nil {
		return err
	}
	selected := entries[idx]
	debugf("selected: %s (%s, %s)", selected.Title, selected.URL, selected.Kind)
	return playEntry(ctx, a, p, selected.URL)
}

// playEntry loads a title, asks for an episode when there are several and
// plays it.
func playEntry(ctx context.Context, a *app, p provider.Provider, url string) error {
	detail, err := p.Load(ctx, url)
	if err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}
	if len(detail.Episodes) == 0 {
		return fmt.Errorf("no episodes found for %q", detail.Title)
	}

	ep := detail.Episodes[0]
	if len(detail.Episodes) > 1 {
		items := make([]string, len(detail.Episodes))
		for i, e := range detail.Episodes {
			items[i] = episodeLabel(e)
		}
		idx, err := ui.Select(detail.Title, items)
		if err != nil {
			return err
		}
		ep = detail.Episodes[idx]
	}
	return playEpisode(ctx, a, p, detail, ep)
}

func episodeLabel(e media.Episode) string {
	switch {
	case e.Season > 0 && e.Number > 0:
		return strings.TrimSpace(fmt.Sprintf("T%d E%d %s", e.Season, e.Number, e.Name))
	case e.Number > 0:
		return strings.TrimSpace(fmt.Sprintf("%d. %s", e.Number, e.Name))
	default:
		return e.Name
	}
}

// collectLinks runs one link session and returns the links best first.
func collectLinks(ctx context.Context, a *app, p provider.Provider, data string) ([]media.ResolvedLink, []media.Subtitle, error) {
	out, links, subs := sink.Collect(a.normalizer)
	debugf("link session %s for %s", out.ID(), data)
	if !p.LoadLinks(ctx, data, out) {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("no playable links found")
	}
	ls := links()
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].Quality > ls[j].Quality })
	return ls, subs(), nil
}

func playEpisode(ctx context.Context, a *app, p provider.Provider, detail *media.Detail, ep media.Episode) error {
	links, subs, err := collectLinks(ctx, a, p, ep.Data)
	if err != nil {
		return err
	}

	link := links[0]
	if len(links) > 1 {
		items := make([]string, len(links))
		for i, l := range links {
			items[i] = ui.LinkLine(l)
		}
		idx, err := ui.Select("Enlace", items)
		if err != nil {
			return err
		}
		link = links[idx]
	}
	debugf("link: %s (%s)", link.URL, link.Quality)

	title := detail.Title
	if ep.Season > 0 || ep.Number > 0 {
		title = fmt.Sprintf("%s - %s", detail.Title, episodeLabel(ep))
	}

	// Subtitles are best effort
	var subFile string
	if !flagNoSubs && len(subs) > 0 {
		if best := subtitle.BestMatch(subs, cfg.SubsLanguage); best != nil {
			tmpDir, err := subtitle.NewTempDir()
			if err == nil {
				defer tmpDir.Cleanup()
				subFile, err = tmpDir.Download(ctx, a.fetcher, *best)
				if err != nil {
					debugf("subtitle download failed: %v", err)
					subFile = ""
				}
			}
		}
	}

	if flagDownload != "" {
		dir := flagDownload
		if dir == downloadToConfigDir {
			if dir, err = cfg.ExpandDownloadDir(); err != nil {
				return fmt.Errorf("resolving download dir: %w", err)
			}
		}
		outputPath, err := download.Download(ctx, link, title, dir, subFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.GoodStyle.Render("Downloaded:"), outputPath)
	} else {
		pl := player.New(cfg.Player)
		if !pl.Available() {
			return fmt.Errorf("player %q not found in PATH", cfg.Player)
		}
		if err := pl.Play(ctx, link, title, subFile); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
	}

	if cfg.History {
		entry := media.HistoryEntry{
			Provider: p.Name(),
			Title:    detail.Title,
			Data:     ep.Data,
			Kind:     detail.Kind,
			Season:   ep.Season,
			Episode:  ep.Number,
			LinkURL:  link.URL,
		}
		if err := history.Save(entry); err != nil {
			debugf("saving history failed: %v", err)
		}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
