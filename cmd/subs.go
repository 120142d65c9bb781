package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scrapecast/internal/provider"
	"scrapecast/internal/ui"
)

var subsCmd = &cobra.Command{
	Use:   "subs",
	Short: "Manage Invidious channel subscriptions",
}

var subsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribed channel IDs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := invidious(cmd.Context())
		if err != nil {
			return err
		}
		ids, err := inv.Subscriptions(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			if ids == nil {
				ids = []string{}
			}
			return printJSON(ids)
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "No subscriptions.")
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var subsAddCmd = &cobra.Command{
	Use:   "add <channel-id>...",
	Short: "Subscribe to channels",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := invidious(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range args {
			added, err := inv.Subscribe(cmd.Context(), id)
			if err != nil {
				return err
			}
			if added {
				fmt.Println(ui.GoodStyle.Render("+ " + id))
			} else {
				fmt.Println(ui.DimStyle.Render("= " + id))
			}
		}
		return nil
	},
}

var subsRemoveCmd = &cobra.Command{
	Use:     "remove <channel-id>...",
	Aliases: []string{"rm"},
	Short:   "Unsubscribe from channels",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := invidious(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range args {
			removed, err := inv.Unsubscribe(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(os.Stderr, ui.WarnStyle.Render("not subscribed: "+id))
			}
		}
		return nil
	},
}

func init() {
	subsCmd.AddCommand(subsListCmd, subsAddCmd, subsRemoveCmd)
}

// invidious returns the registered Invidious provider regardless of -p.
func invidious(ctx context.Context) (*provider.Invidious, error) {
	a, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.registry.Get("invidious")
	if err != nil {
		return nil, err
	}
	inv, ok := p.(*provider.Invidious)
	if !ok {
		return nil, fmt.Errorf("invidious provider has unexpected type %T", p)
	}
	return inv, nil
}
