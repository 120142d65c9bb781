package player

import (
	"context"
	"os/exec"

	"scrapecast/internal/media"
)

// VLC launches VLC media player. VLC has no option for arbitrary headers, so
// only Referer and User-Agent are passed.
type VLC struct{}

func (v *VLC) Name() string { return "vlc" }

func (v *VLC) Available() bool {
	_, err := exec.LookPath("vlc")
	return err == nil
}

func (v *VLC) Args(link media.ResolvedLink, title, subFile string) []string {
	args := []string{
		link.URL,
		"--meta-title", title,
		"--play-and-exit",
	}
	if link.Referer != "" {
		args = append(args, "--http-referrer="+link.Referer)
	}
	if ua := link.Headers["User-Agent"]; ua != "" {
		args = append(args, "--http-user-agent="+ua)
	}
	if subFile != "" {
		args = append(args, "--sub-file", subFile)
	}
	return args
}

func (v *VLC) Play(ctx context.Context, link media.ResolvedLink, title, subFile string) error {
	return run(ctx, "vlc", v.Args(link, title, subFile))
}
