package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scrapecast/internal/api"
	"scrapecast/internal/mirror"
	"scrapecast/internal/ui"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve catalogs and link resolution over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := getServices(ctx)
		if err != nil {
			return err
		}
		addr := cfg.Listen
		if flagListen != "" {
			addr = flagListen
		}

		pools := map[string]*mirror.Pool{}
		if inv, err := invidious(ctx); err == nil {
			pools[inv.Name()] = inv.Pool()
		}

		srv := api.New(api.Options{
			Registry:   a.registry,
			Resolver:   a.resolver,
			Normalizer: a.normalizer,
			BatchSize:  cfg.BatchSize,
			Pools:      pools,
		})
		fmt.Fprintf(os.Stderr, "%s http://%s\n", ui.GoodStyle.Render("Listening on"), addr)
		return srv.Run(ctx, addr)
	},
}

var mirrorsCmd = &cobra.Command{
	Use:   "mirrors",
	Short: "Probe every configured Invidious instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := invidious(cmd.Context())
		if err != nil {
			return err
		}
		statuses := inv.Pool().ProbeAll(cmd.Context())
		if flagJSON {
			return printJSON(statuses)
		}
		for _, st := range statuses {
			if st.OK {
				fmt.Printf("%s %s %s\n", ui.GoodStyle.Render("ok  "), st.URL, ui.DimStyle.Render(st.Latency.String()))
			} else {
				fmt.Printf("%s %s %s\n", ui.WarnStyle.Render("fail"), st.URL, ui.DimStyle.Render(st.Error))
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from config)")
}
