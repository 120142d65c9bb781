package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/httputil"
)

// Page is a fetched page handed to strategies.
type Page struct {
	URL     string
	Referer string
	Depth   int
	Result  *httputil.FetchResult
}

// Step is what a strategy found on a page: terminal links, pages to follow,
// or both.
type Step struct {
	Links  []CandidateLink
	Follow []string
}

// Strategy inspects a page and reports whether it produced a result.
type Strategy struct {
	Name  string
	Apply func(p *Page) (Step, bool)
}

// DefaultStrategies returns the resolution order: direct media references,
// packed scripts, base64 cascades, then embedded frames.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: string(HintDirect), Apply: scanDirect},
		{Name: string(HintPacked), Apply: scanPacked},
		{Name: string(HintBase64), Apply: scanBase64},
		{Name: "iframe", Apply: followFrames},
	}
}

var (
	// Quoted manifest URL anywhere in the text.
	directPattern = regexp.MustCompile(`["'](https?://[^"'\s]+\.(?:m3u8|mpd)[^"'\s]*)["']`)

	// Unquoted manifest URL, used on decoded payloads.
	bareMediaPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+\.(?:m3u8|mpd)[^\s"'<>\\]*`)

	atobPattern = regexp.MustCompile(`atob\(\s*["']([^"']+)["']\s*\)`)
)

// maxBase64Rounds bounds nested base64 decoding of one literal.
const maxBase64Rounds = 4

// FindMedia returns the first quoted manifest URL in text.
func FindMedia(text string) (string, bool) {
	m := directPattern.FindStringSubmatch(unescape(text))
	if m == nil {
		return "", false
	}
	return Clean(m[1]), true
}

// findBareMedia accepts quoted or unquoted manifest URLs.
func findBareMedia(text string) (string, bool) {
	if u, ok := FindMedia(text); ok {
		return u, true
	}
	if m := bareMediaPattern.FindString(unescape(text)); m != "" {
		return Clean(m), true
	}
	return "", false
}

// Clean strips escaping and stray quotes around a scraped URL.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, `\/`, "/")
	s = strings.ReplaceAll(s, `\"`, "")
	return strings.Trim(s, "\"' \t\r\n")
}

func unescape(text string) string {
	return strings.ReplaceAll(text, `\/`, "/")
}

func scanDirect(p *Page) (Step, bool) {
	u, ok := FindMedia(p.Result.RawText)
	if !ok {
		return Step{}, false
	}
	return Step{Links: []CandidateLink{{URL: u, SourceHint: HintDirect}}}, true
}

func scanPacked(p *Page) (Step, bool) {
	for _, unpacked := range UnpackAll(p.Result.RawText) {
		if u, ok := FindMedia(unpacked); ok {
			return Step{Links: []CandidateLink{{URL: u, SourceHint: HintPacked}}}, true
		}
	}
	return Step{}, false
}

func scanBase64(p *Page) (Step, bool) {
	for _, m := range atobPattern.FindAllStringSubmatch(p.Result.RawText, -1) {
		if u, ok := decodeCascade(m[1]); ok {
			return Step{Links: []CandidateLink{{URL: u, SourceHint: HintBase64}}}, true
		}
	}
	return Step{}, false
}

// decodeCascade base64-decodes s repeatedly, checking each round for a
// manifest URL.
func decodeCascade(s string) (string, bool) {
	encoded := s
	for round := 0; round < maxBase64Rounds; round++ {
		decoded, err := DecodeBase64(encoded)
		if err != nil {
			return "", false
		}
		if u, ok := findBareMedia(decoded); ok {
			return u, true
		}
		encoded = strings.TrimSpace(decoded)
	}
	return "", false
}

func followFrames(p *Page) (Step, bool) {
	next := FrameSources(p.Result.Document(), p.Result.FinalURL)

	var follow []string
	for _, u := range next {
		if u == p.URL || u == p.Result.FinalURL {
			continue
		}
		follow = append(follow, u)
		if len(follow) == maxFramesPerPage {
			break
		}
	}
	if len(follow) == 0 {
		return Step{}, false
	}
	return Step{Follow: follow}, true
}

// FrameSources lists the distinct absolute http(s) iframe sources of doc in
// document order.
func FrameSources(doc *goquery.Document, base string) []string {
	var out []string
	seen := make(map[string]bool)
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if strings.TrimSpace(src) == "" {
			src, _ = s.Attr("data-src")
		}
		u := httputil.ResolveReference(base, src)
		if u == "" || seen[u] || httputil.ValidateURL(u) != nil {
			return
		}
		seen[u] = true
		out = append(out, u)
	})
	return out
}
