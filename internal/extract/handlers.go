package extract

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/httputil"
)

// HostHandler resolves pages of specific hosts that the generic strategies
// cannot handle on their own.
type HostHandler struct {
	Name    string
	Hosts   []string // Host names; subdomains match too
	Resolve func(ctx context.Context, hop *Hop)
}

// DefaultHandlers returns the built-in host table.
func DefaultHandlers() []HostHandler {
	return []HostHandler{
		{Name: "bysekoze", Hosts: []string{"bysekoze.com"}, Resolve: resolveBysekoze},
		{Name: "xupalace", Hosts: []string{"xupalace.org"}, Resolve: resolveXupalace},
		{Name: "opuxa", Hosts: []string{"opuxa.lat"}, Resolve: resolveOpuxa},
	}
}

var (
	bysekozeID      = regexp.MustCompile(`/e/([a-zA-Z0-9]+)`)
	packedFileEntry = regexp.MustCompile(`sources:\s*\[\s*\{\s*file:\s*"(.*?)"`)
	goToPlayer      = regexp.MustCompile(`go_to_player(?:Vast)?\('(.*?)'`)

	// Player setup keys in inline scripts and quoted file URLs.
	scriptPlayerURL = regexp.MustCompile(`(?:src|file|video_url)\s*:\s*["']([^"']+)["']`)
	scriptFileURL   = regexp.MustCompile(`["'](https?://[^"'\s]+\.(?:m3u8|mp4|mkv|avi)[^"'\s]*)["']`)
	mediaPath       = regexp.MustCompile(`\.(?:m3u8|mpd|mp4|mkv|avi)$`)
)

type playbackResponse struct {
	Sources []struct {
		URL   string `json:"url"`
		Label string `json:"label"`
	} `json:"sources"`
}

// resolveBysekoze asks the playback API first and falls back to the packed
// player script.
func resolveBysekoze(ctx context.Context, hop *Hop) {
	if m := bysekozeID.FindStringSubmatch(hop.URL); m != nil {
		api := httputil.Origin(hop.URL) + "/api/videos/" + m[1] + "/embed/playback"
		res, err := hop.Fetch(ctx, api, map[string]string{"Accept": "application/json"})
		if err == nil {
			var pb playbackResponse
			if json.Unmarshal([]byte(res.RawText), &pb) == nil && len(pb.Sources) > 0 {
				for _, src := range pb.Sources {
					if src.URL != "" {
						hop.Emit(ctx, CandidateLink{URL: src.URL, SourceHint: HintAPI, Label: src.Label})
					}
				}
				return
			}
		}
	}

	res, err := hop.Fetch(ctx, hop.URL, nil)
	if err != nil {
		return
	}
	for _, unpacked := range UnpackAll(res.RawText) {
		if m := packedFileEntry.FindStringSubmatch(unpacked); m != nil {
			hop.Emit(ctx, CandidateLink{URL: Clean(m[1]), SourceHint: HintPacked})
			return
		}
	}
	hop.Scan(ctx, res)
}

// resolveXupalace fans out to every player option listed on the page.
func resolveXupalace(ctx context.Context, hop *Hop) {
	res, err := hop.Fetch(ctx, hop.URL, nil)
	if err != nil {
		return
	}
	matches := goToPlayer.FindAllStringSubmatch(res.RawText, -1)
	if len(matches) == 0 {
		hop.Scan(ctx, res)
		return
	}
	seen := make(map[string]bool)
	for _, m := range matches {
		next := res.Resolve(Clean(m[1]))
		if next == "" || seen[next] {
			continue
		}
		seen[next] = true
		hop.Follow(ctx, next)
	}
}

// opuxaHeaders are sent when loading an opuxa page as a cross-site frame.
var opuxaHeaders = map[string]string{
	"Sec-Fetch-Dest": "iframe",
	"Sec-Fetch-Mode": "navigate",
	"Sec-Fetch-Site": "cross-site",
	"Cache-Control":  "no-cache",
}

// resolveOpuxa follows the player frame with the referrer and autoplay
// parameters the host checks. Pages without a frame are read for player
// URLs in their inline scripts.
func resolveOpuxa(ctx context.Context, hop *Hop) {
	res, err := hop.Fetch(ctx, hop.URL, opuxaHeaders)
	if err != nil {
		return
	}
	doc := res.Document()
	if src := strings.TrimSpace(doc.Find("iframe[src]").First().AttrOr("src", "")); src != "" {
		if next := res.Resolve(src); next != "" {
			hop.Follow(ctx, opuxaPlayerURL(next, hop.Referer))
			return
		}
	}

	seen := make(map[string]bool)
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		text := script.Text()
		matches := append(scriptPlayerURL.FindAllStringSubmatch(text, -1), scriptFileURL.FindAllStringSubmatch(text, -1)...)
		for _, m := range matches {
			u := Clean(m[1])
			if !strings.HasPrefix(u, "http") || seen[u] {
				continue
			}
			seen[u] = true
			if isMediaURL(u) {
				hop.Emit(ctx, CandidateLink{URL: u, SourceHint: HintDirect})
			} else {
				hop.Follow(ctx, u)
			}
		}
	})
	if len(seen) == 0 {
		hop.Scan(ctx, res)
	}
}

// opuxaPlayerURL adds http_referer and autoplay unless the frame URL
// already carries them.
func opuxaPlayerURL(frame, referer string) string {
	if !strings.Contains(frame, "http_referer") {
		sep := "?"
		if strings.Contains(frame, "?") {
			sep = "&"
		}
		frame += sep + "http_referer=" + url.QueryEscape(referer)
	}
	if !strings.Contains(frame, "autoplay") {
		frame += "&autoplay=yes"
	}
	return frame
}

func isMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return mediaPath.MatchString(strings.ToLower(u.Path))
}
