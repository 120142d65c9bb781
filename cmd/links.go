package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scrapecast/internal/media"
	"scrapecast/internal/ui"
)

var linksCmd = &cobra.Command{
	Use:   "links <episode-url>",
	Short: "Resolve an episode reference into playable links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, a, err := currentProvider(ctx)
		if err != nil {
			return err
		}
		links, subs, err := collectLinks(ctx, a, p, args[0])
		if err != nil && flagJSON {
			links, subs = []media.ResolvedLink{}, []media.Subtitle{}
		} else if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{
				"found":     len(links) > 0,
				"links":     links,
				"subtitles": subs,
			})
		}
		for _, l := range links {
			fmt.Printf("%s\n  %s\n", ui.LinkLine(l), l.URL)
		}
		for _, s := range subs {
			fmt.Printf("%s %s\n", ui.DimStyle.Render("sub "+s.Language), s.URL)
		}
		return nil
	},
}

var flagReferer string

var resolveCmd = &cobra.Command{
	Use:   "resolve <embed-url>",
	Short: "Follow an embed chain and print every candidate stream",
	Long: `Runs the extraction chain directly on a URL without going through a
provider. Each candidate is printed with the strategy that found it and the
iframe depth it was found at.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := getServices(ctx)
		if err != nil {
			return err
		}

		found := 0
		type candidate struct {
			URL     string `json:"url"`
			Source  string `json:"source"`
			Depth   int    `json:"depth"`
			Referer string `json:"referer"`
		}
		var out []candidate
		for c := range a.resolver.Resolve(ctx, args[0], flagReferer) {
			found++
			if flagJSON {
				out = append(out, candidate{URL: c.URL, Source: string(c.SourceHint), Depth: c.Depth, Referer: c.Referer})
				continue
			}
			fmt.Printf("%s %s\n", ui.DimStyle.Render(fmt.Sprintf("[%s d=%d]", c.SourceHint, c.Depth)), c.URL)
		}

		if flagJSON {
			if out == nil {
				out = []candidate{}
			}
			return printJSON(out)
		}
		if found == 0 {
			fmt.Fprintln(os.Stderr, ui.WarnStyle.Render("No stream found"))
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&flagReferer, "referer", "", "Referer for the first request")
}
