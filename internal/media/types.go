// Package media defines shared types for the scrapecast application.
package media

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a catalog entry.
type Kind int

const (
	Movie Kind = iota
	Series
	Anime
	Live
	Video
	Playlist
	Channel
)

func (k Kind) String() string {
	switch k {
	case Movie:
		return "movie"
	case Series:
		return "series"
	case Anime:
		return "anime"
	case Live:
		return "live"
	case Video:
		return "video"
	case Playlist:
		return "playlist"
	case Channel:
		return "channel"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// ParseKind is the inverse of Kind.String. Unknown names map to Movie.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "series", "tv":
		return Series
	case "anime":
		return Anime
	case "live":
		return Live
	case "video":
		return Video
	case "playlist":
		return Playlist
	case "channel":
		return Channel
	default:
		return Movie
	}
}

// Entry is a single item in a catalog listing or search result.
type Entry struct {
	Provider string `json:"provider"`       // Provider name that produced the entry
	Title    string `json:"title"`          // Display title
	URL      string `json:"url"`            // Reference passed back to Load
	Poster   string `json:"poster"`         // Poster image URL, may be empty
	Kind     Kind   `json:"kind"`
	Year     int    `json:"year,omitempty"` // 0 when unknown
	Note     string `json:"note,omitempty"` // Short extra text, e.g. "Episodio 3" or a channel name
}

// SectionRequest identifies one page of one catalog section.
type SectionRequest struct {
	Name string `json:"name"` // Display name, e.g. "Películas"
	Data string `json:"data"` // Section URL or provider-specific key
	Page int    `json:"page"` // 1-based page number
}

// Section is one page of catalog entries.
type Section struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
	HasNext bool    `json:"has_next"`
}

// Episode is a playable unit of a title.
type Episode struct {
	Name   string `json:"name"`
	Data   string `json:"data"` // Reference passed to LoadLinks
	Season int    `json:"season,omitempty"`
	Number int    `json:"number,omitempty"`
	Poster string `json:"poster,omitempty"`
}

// Detail holds title metadata and its episode list.
// Movies and live channels carry a single episode pointing at themselves.
type Detail struct {
	Provider   string    `json:"provider"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Kind       Kind      `json:"kind"`
	Poster     string    `json:"poster"`
	Background string    `json:"background,omitempty"`
	Plot       string    `json:"plot,omitempty"`
	Year       int       `json:"year,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Episodes   []Episode `json:"episodes"`
	Related    []Entry   `json:"related,omitempty"`
	ChannelID  string    `json:"channel_id,omitempty"` // Set for channel and video details that belong to a channel
}

// Quality is the vertical resolution of a stream in pixels.
type Quality int

// QualityUnknown marks a link without a usable quality label.
const QualityUnknown Quality = 0

func (q Quality) String() string {
	if q == QualityUnknown {
		return "unknown"
	}
	return fmt.Sprintf("%dp", int(q))
}

// ResolvedLink is a final playable URL handed to a player.
type ResolvedLink struct {
	Source   string            `json:"source"`            // Provider or extractor name
	Name     string            `json:"name"`              // Display name
	URL      string            `json:"url"`               // m3u8, mpd or progressive video URL
	Quality  Quality           `json:"quality"`           // Vertical resolution, QualityUnknown when absent
	Adaptive bool              `json:"adaptive"`          // true for HLS/DASH manifests
	Referer  string            `json:"referer,omitempty"` // Referer header the player must send
	Headers  map[string]string `json:"headers,omitempty"` // Extra headers the player must send
}

// Subtitle represents a subtitle track.
type Subtitle struct {
	Language string `json:"language"` // e.g., "es"
	Label    string `json:"label"`    // Display label, e.g., "Español (auto)"
	URL      string `json:"url"`      // URL to the subtitle file (usually VTT)
}

// HistoryEntry represents a single entry in the watch history.
type HistoryEntry struct {
	Provider  string    // Provider name
	Title     string    // Display title
	Data      string    // Episode reference passed to LoadLinks
	Kind      Kind      // Kind of the parent title
	Season    int       // 0 when not applicable
	Episode   int       // 0 when not applicable
	LinkURL   string    // Last link that was played
	WatchedAt time.Time // When the link was resolved
}
