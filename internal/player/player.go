// Package player launches external media players. Players are invoked with
// explicit argument slices, never through a shell.
package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/rs/zerolog/log"

	"scrapecast/internal/media"
)

// Player is implemented by each supported media player.
type Player interface {
	// Play blocks until the player exits.
	Play(ctx context.Context, link media.ResolvedLink, title, subFile string) error

	// Args returns the command line Play would use.
	Args(link media.ResolvedLink, title, subFile string) []string

	Name() string

	// Available checks if the player binary exists in PATH.
	Available() bool
}

// New creates a player by name. Unknown names fall back to mpv.
func New(name string) Player {
	switch name {
	case "vlc":
		return &VLC{}
	case "iina", "celluloid":
		return &Generic{name: name}
	default:
		return &MPV{}
	}
}

// extraHeaders returns the link headers a player needs beyond Referer and
// User-Agent, sorted by name.
func extraHeaders(link media.ResolvedLink) []string {
	var out []string
	for k, v := range link.Headers {
		if v == "" || k == "Referer" || k == "User-Agent" {
			continue
		}
		out = append(out, k+": "+v)
	}
	sort.Strings(out)
	return out
}

// run starts bin and waits for it. A non-zero exit is how most players
// report that the user closed the window, so it is not an error.
func run(ctx context.Context, bin string, args []string) error {
	log.Debug().Str("player", bin).Strs("args", args).Msg("launching player")
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return fmt.Errorf("running %s: %w", bin, err)
	}
	return nil
}
