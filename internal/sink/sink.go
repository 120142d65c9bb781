// Package sink collects playable links and subtitles produced during one
// resolution session, dropping duplicates.
package sink

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scrapecast/internal/hosts"
	"scrapecast/internal/media"
	"scrapecast/internal/metrics"
)

// Link is a candidate offered to the sink.
type Link struct {
	Source  string            // Provider or extractor name
	Name    string            // Display name; defaults to Source
	URL     string
	Label   string            // Free-form quality text, e.g. "720p" or "HD"
	Quality media.Quality     // Explicit quality; overrides Label when set
	Referer string
	Headers map[string]string
}

// LinkFunc receives each accepted link.
type LinkFunc func(media.ResolvedLink)

// SubtitleFunc receives each accepted subtitle.
type SubtitleFunc func(media.Subtitle)

// Sink deduplicates links by normalized URL. It is safe for concurrent use.
type Sink struct {
	id         string
	normalizer *hosts.Normalizer
	onLink     LinkFunc
	onSubtitle SubtitleFunc
	logger     zerolog.Logger

	mu        sync.Mutex
	seen      map[string]struct{}
	seenSubs  map[string]struct{}
	accepted  int
	subtitles int
}

// New creates a sink for one session. Either callback may be nil.
func New(normalizer *hosts.Normalizer, onLink LinkFunc, onSubtitle SubtitleFunc) *Sink {
	if normalizer == nil {
		normalizer = hosts.Default()
	}
	id := uuid.NewString()
	return &Sink{
		id:         id,
		normalizer: normalizer,
		onLink:     onLink,
		onSubtitle: onSubtitle,
		logger:     log.With().Str("session", id).Logger(),
		seen:       make(map[string]struct{}),
		seenSubs:   make(map[string]struct{}),
	}
}

// Collect returns a sink that appends accepted links to a slice, plus a
// function returning a snapshot of that slice.
func Collect(normalizer *hosts.Normalizer) (*Sink, func() []media.ResolvedLink, func() []media.Subtitle) {
	var mu sync.Mutex
	var links []media.ResolvedLink
	var subs []media.Subtitle
	s := New(normalizer,
		func(l media.ResolvedLink) {
			mu.Lock()
			links = append(links, l)
			mu.Unlock()
		},
		func(sub media.Subtitle) {
			mu.Lock()
			subs = append(subs, sub)
			mu.Unlock()
		},
	)
	return s,
		func() []media.ResolvedLink {
			mu.Lock()
			defer mu.Unlock()
			return append([]media.ResolvedLink(nil), links...)
		},
		func() []media.Subtitle {
			mu.Lock()
			defer mu.Unlock()
			return append([]media.Subtitle(nil), subs...)
		}
}

// ID identifies the session in logs.
func (s *Sink) ID() string { return s.id }

// Normalizer returns the host normalizer used for deduplication.
func (s *Sink) Normalizer() *hosts.Normalizer { return s.normalizer }

// Emit offers a link. It returns false when the URL is empty or was already
// accepted in this session.
func (s *Sink) Emit(l Link) bool {
	u := s.normalizer.Normalize(l.URL)
	if u == "" {
		return false
	}

	s.mu.Lock()
	if _, dup := s.seen[u]; dup {
		s.mu.Unlock()
		metrics.LinksEmitted.WithLabelValues("duplicate").Inc()
		return false
	}
	s.seen[u] = struct{}{}
	s.accepted++
	s.mu.Unlock()

	quality := l.Quality
	if quality == media.QualityUnknown {
		quality = ParseQuality(l.Label)
	}
	name := l.Name
	if name == "" {
		name = l.Source
	}

	link := media.ResolvedLink{
		Source:   l.Source,
		Name:     name,
		URL:      u,
		Quality:  quality,
		Adaptive: IsAdaptive(u),
		Referer:  l.Referer,
		Headers:  l.Headers,
	}

	metrics.LinksEmitted.WithLabelValues("accepted").Inc()
	s.logger.Debug().Str("url", u).Str("source", l.Source).Stringer("quality", quality).Msg("link accepted")

	if s.onLink != nil {
		s.onLink(link)
	}
	return true
}

// Subtitle offers a subtitle track, deduplicated by URL.
func (s *Sink) Subtitle(sub media.Subtitle) bool {
	if sub.URL == "" {
		return false
	}
	s.mu.Lock()
	if _, dup := s.seenSubs[sub.URL]; dup {
		s.mu.Unlock()
		return false
	}
	s.seenSubs[sub.URL] = struct{}{}
	s.subtitles++
	s.mu.Unlock()

	if s.onSubtitle != nil {
		s.onSubtitle(sub)
	}
	return true
}

// Found reports whether at least one link was accepted.
func (s *Sink) Found() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted > 0
}

// Count returns the number of accepted links.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

var (
	heightPattern = regexp.MustCompile(`(\d{3,4})p`)
	bareHeight    = regexp.MustCompile(`^(\d{3,4})$`)
)

// ParseQuality infers a vertical resolution from label text such as "720p",
// "1080", "HD" or "4K". Unrecognized labels yield media.QualityUnknown.
func ParseQuality(label string) media.Quality {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return media.QualityUnknown
	}

	for _, re := range []*regexp.Regexp{heightPattern, bareHeight} {
		if m := re.FindStringSubmatch(l); m != nil {
			if h, err := strconv.Atoi(m[1]); err == nil && h >= 144 && h <= 4320 {
				return media.Quality(h)
			}
		}
	}

	switch {
	case strings.Contains(l, "4k"), strings.Contains(l, "uhd"):
		return 2160
	case strings.Contains(l, "2k"):
		return 1440
	case strings.Contains(l, "fhd"), strings.Contains(l, "full hd"), strings.Contains(l, "fullhd"):
		return 1080
	case strings.Contains(l, "hd"):
		return 720
	case strings.Contains(l, "sd"):
		return 480
	case strings.Contains(l, "cam"):
		return 360
	}
	return media.QualityUnknown
}

// IsAdaptive reports whether u looks like an HLS or DASH manifest.
func IsAdaptive(u string) bool {
	l := strings.ToLower(u)
	if i := strings.IndexAny(l, "?#"); i >= 0 {
		l = l[:i]
	}
	return strings.HasSuffix(l, ".m3u8") || strings.HasSuffix(l, ".mpd") ||
		strings.Contains(l, ".m3u8/") || strings.Contains(l, "/hls/")
}
