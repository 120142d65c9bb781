package player

import (
	"context"
	"os/exec"

	"scrapecast/internal/media"
)

// Generic implements Player for players like iina and celluloid that accept
// mpv-compatible arguments.
type Generic struct {
	name string
}

func (g *Generic) Name() string { return g.name }

func (g *Generic) Available() bool {
	_, err := exec.LookPath(g.name)
	return err == nil
}

func (g *Generic) Args(link media.ResolvedLink, title, subFile string) []string {
	return mpvArgs(link, title, subFile)
}

func (g *Generic) Play(ctx context.Context, link media.ResolvedLink, title, subFile string) error {
	return run(ctx, g.name, g.Args(link, title, subFile))
}
