// Package subtitle picks subtitle tracks and stages them in a private temp
// directory for the player.
package subtitle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
)

// languageCodes maps configured language names to the codes APIs report.
var languageCodes = map[string]string{
	"spanish":    "es",
	"español":    "es",
	"english":    "en",
	"portuguese": "pt",
	"french":     "fr",
	"japanese":   "ja",
}

// matches reports whether sub is in language, by name or by code.
func matches(sub media.Subtitle, language string) bool {
	lang := strings.ToLower(strings.TrimSpace(language))
	code := languageCodes[lang]
	if code == "" && len(lang) == 2 {
		code = lang
	}
	subLang := strings.ToLower(sub.Language)
	if code != "" && (subLang == code || strings.HasPrefix(subLang, code+"-")) {
		return true
	}
	return strings.Contains(subLang, lang) || strings.Contains(strings.ToLower(sub.Label), lang)
}

// Filter returns subtitles matching the preferred language (case-insensitive).
func Filter(subtitles []media.Subtitle, language string) []media.Subtitle {
	if language == "" {
		return subtitles
	}
	var matched []media.Subtitle
	for _, sub := range subtitles {
		if matches(sub, language) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// BestMatch returns the best matching subtitle for the given language.
// Human-made tracks win over auto-generated and SDH ones.
func BestMatch(subtitles []media.Subtitle, language string) *media.Subtitle {
	filtered := Filter(subtitles, language)
	if len(filtered) == 0 {
		return nil
	}
	for _, sub := range filtered {
		label := strings.ToLower(sub.Label)
		if !strings.Contains(label, "sdh") && !strings.Contains(label, "auto") {
			return &sub
		}
	}
	return &filtered[0]
}

// TempDir manages a randomized temporary directory for subtitle files.
type TempDir struct {
	path string
}

// NewTempDir creates a randomized temporary directory for subtitle files.
func NewTempDir() (*TempDir, error) {
	dir, err := os.MkdirTemp("", "scrapecast-subs-*")
	if err != nil {
		return nil, fmt.Errorf("creating subtitle temp dir: %w", err)
	}
	return &TempDir{path: dir}, nil
}

// Path returns the directory path.
func (t *TempDir) Path() string { return t.path }

// Cleanup removes the temporary directory and all contents.
func (t *TempDir) Cleanup() {
	if t.path != "" {
		os.RemoveAll(t.path)
	}
}

// Download fetches a subtitle into the temp directory and returns the local
// path.
func (t *TempDir) Download(ctx context.Context, f *httputil.Fetcher, sub media.Subtitle) (string, error) {
	if err := httputil.ValidateURL(sub.URL); err != nil {
		return "", fmt.Errorf("invalid subtitle URL: %w", err)
	}

	filename := "subtitle.vtt"
	if parts := strings.Split(sub.URL, "/"); len(parts) > 0 {
		last := parts[len(parts)-1]
		if idx := strings.Index(last, "?"); idx != -1 {
			last = last[:idx]
		}
		if last != "" {
			filename = httputil.SanitizeFilename(last)
		}
	}
	if filepath.Ext(filename) == "" {
		filename += ".vtt"
	}
	if sub.Language != "" {
		filename = httputil.SanitizeFilename(sub.Language) + "-" + filename
	}
	localPath := filepath.Join(t.path, filename)

	res, err := f.Get(ctx, sub.URL, nil)
	if err != nil {
		return "", fmt.Errorf("downloading subtitle: %w", err)
	}
	if err := os.WriteFile(localPath, []byte(res.RawText), 0600); err != nil {
		return "", fmt.Errorf("writing subtitle file: %w", err)
	}
	return localPath, nil
}
