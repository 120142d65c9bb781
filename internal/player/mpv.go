package player

import (
	"context"
	"os/exec"
	"strings"

	"scrapecast/internal/media"
)

// MPV launches mpv.
type MPV struct{}

func (m *MPV) Name() string { return "mpv" }

func (m *MPV) Available() bool {
	_, err := exec.LookPath("mpv")
	return err == nil
}

func (m *MPV) Args(link media.ResolvedLink, title, subFile string) []string {
	return mpvArgs(link, title, subFile)
}

func (m *MPV) Play(ctx context.Context, link media.ResolvedLink, title, subFile string) error {
	return run(ctx, "mpv", m.Args(link, title, subFile))
}

// mpvArgs builds mpv-style flags. iina and celluloid accept them too.
func mpvArgs(link media.ResolvedLink, title, subFile string) []string {
	args := []string{
		link.URL,
		"--force-media-title=" + title,
		"--really-quiet",
	}
	if link.Referer != "" {
		args = append(args, "--referrer="+link.Referer)
	}
	if ua := link.Headers["User-Agent"]; ua != "" {
		args = append(args, "--user-agent="+ua)
	}
	if extra := extraHeaders(link); len(extra) > 0 {
		// mpv splits this option on commas.
		for i, h := range extra {
			extra[i] = strings.ReplaceAll(h, ",", `\,`)
		}
		args = append(args, "--http-header-fields="+strings.Join(extra, ","))
	}
	if subFile != "" {
		args = append(args, "--sub-file="+subFile)
	}
	return args
}
