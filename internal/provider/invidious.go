package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/mirror"
	"scrapecast/internal/sink"
	"scrapecast/internal/store"
)

// DefaultInstances are the Invidious mirrors tried in order.
var DefaultInstances = []string{
	"https://inv.nadeko.net",
	"https://inv.vern.cc",
	"https://invidious.jing.rocks",
}

// ProbePath is requested on each instance to check it is alive.
const ProbePath = "/api/v1/trending?fields=videoId"

const (
	sectionSubscriptions = "subscriptions"
	sectionTrending      = "trending"
)

var (
	watchID    = regexp.MustCompile(`watch\?v=([a-zA-Z0-9_-]+)`)
	playlistID = regexp.MustCompile(`[?&]list=([a-zA-Z0-9_-]+)`)
	channelID  = regexp.MustCompile(`/channel/([a-zA-Z0-9_-]+)`)
)

// Invidious talks to the JSON API of a rotating set of Invidious instances.
// Loading a channel subscribes to it; subscribed channels feed the
// Subscriptions section.
type Invidious struct {
	pool    *mirror.Pool
	fetcher *httputil.Fetcher
	store   store.Store
	logger  zerolog.Logger
}

// NewInvidious creates the provider. A nil Deps.Store keeps subscriptions in
// memory.
func NewInvidious(d Deps) (*Invidious, error) {
	f := d.Fetcher
	if f == nil {
		f = httputil.NewFetcher(httputil.Options{})
	}
	instances := d.Instances
	if len(instances) == 0 {
		instances = DefaultInstances
	}
	pool, err := mirror.NewPool(instances, &mirror.HTTPProber{Fetcher: f, Path: ProbePath},
		mirror.Options{ProbeTimeout: d.ProbeTimeout})
	if err != nil {
		return nil, fmt.Errorf("creating invidious mirror pool: %w", err)
	}
	st := d.Store
	if st == nil {
		st = store.NewMemory()
	}
	return &Invidious{
		pool:    pool,
		fetcher: f,
		store:   st,
		logger:  log.With().Str("provider", "invidious").Logger(),
	}, nil
}

func (v *Invidious) Name() string { return "invidious" }

// Pool exposes the mirror pool for diagnostics.
func (v *Invidious) Pool() *mirror.Pool { return v.pool }

func (v *Invidious) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "Suscripciones", Data: sectionSubscriptions},
		{Name: "Trending", Data: sectionTrending},
	}
}

type videoEntry struct {
	Title    string `json:"title"`
	VideoID  string `json:"videoId"`
	Author   string `json:"author"`
	AuthorID string `json:"authorId"`
}

type playlistEntry struct {
	Title      string `json:"title"`
	PlaylistID string `json:"playlistId"`
	Author     string `json:"author"`
}

type channelEntry struct {
	Author   string `json:"author"`
	AuthorID string `json:"authorId"`
}

type videoDetail struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	VideoID       string `json:"videoId"`
	Author        string `json:"author"`
	AuthorID      string `json:"authorId"`
	Published     int64  `json:"published"`
	Genre         string `json:"genre"`
	HLSURL        string `json:"hlsUrl"`
	FormatStreams []struct {
		URL          string `json:"url"`
		QualityLabel string `json:"qualityLabel"`
	} `json:"formatStreams"`
	Captions []struct {
		Label        string `json:"label"`
		LanguageCode string `json:"languageCode"`
		URL          string `json:"url"`
	} `json:"captions"`
	RecommendedVideos []videoEntry `json:"recommendedVideos"`
}

type playlistDetail struct {
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Description string       `json:"description"`
	Videos      []videoEntry `json:"videos"`
}

func (v *Invidious) videoEntry(base string, e videoEntry) media.Entry {
	return media.Entry{
		Provider: v.Name(),
		Title:    e.Title,
		URL:      base + "/watch?v=" + e.VideoID,
		Poster:   thumbnail(base, e.VideoID),
		Kind:     media.Video,
		Note:     e.Author,
	}
}

func thumbnail(base, id string) string {
	return base + "/vi/" + id + "/hqdefault.jpg"
}

func (v *Invidious) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	if req.Page > 1 {
		return section, nil
	}
	base := v.pool.Select(ctx)

	switch req.Data {
	case sectionTrending:
		var videos []videoEntry
		if err := v.fetcher.GetJSON(ctx, base+"/api/v1/trending?fields=videoId,title,author", nil, &videos); err != nil {
			return section, fmt.Errorf("getting trending: %w", err)
		}
		for _, e := range videos {
			section.Entries = append(section.Entries, v.videoEntry(base, e))
		}

	case sectionSubscriptions:
		channels, err := v.store.Members(ctx, store.SubscriptionsKey)
		if err != nil {
			return section, fmt.Errorf("reading subscriptions: %w", err)
		}
		for _, id := range channels {
			videos, err := v.channelVideos(ctx, base, id)
			if err != nil {
				v.logger.Debug().Err(err).Str("channel", id).Msg("skipping channel")
				continue
			}
			for _, e := range videos {
				section.Entries = append(section.Entries, v.videoEntry(base, e))
			}
		}

	default:
		return section, fmt.Errorf("unknown invidious section %q", req.Data)
	}
	return section, nil
}

// channelVideos accepts both the bare array older instances return and the
// {"videos": [...]} object of newer ones.
func (v *Invidious) channelVideos(ctx context.Context, base, id string) ([]videoEntry, error) {
	if err := httputil.ValidateID(id); err != nil {
		return nil, fmt.Errorf("invalid channel ID: %w", err)
	}
	var raw json.RawMessage
	if err := v.fetcher.GetJSON(ctx, base+"/api/v1/channels/"+id+"/videos?fields=videoId,title,author,authorId", nil, &raw); err != nil {
		return nil, fmt.Errorf("getting channel %s: %w", id, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var videos []videoEntry
		if err := json.Unmarshal(raw, &videos); err != nil {
			return nil, fmt.Errorf("parsing channel %s: %w", id, err)
		}
		return videos, nil
	}
	var wrapped struct {
		Videos []videoEntry `json:"videos"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing channel %s: %w", id, err)
	}
	return wrapped.Videos, nil
}

// Search queries videos, playlists and channels. It fails only when all
// three requests fail.
func (v *Invidious) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	base := v.pool.Select(ctx)
	q := url.QueryEscape(query)
	searchURL := func(kind string) string {
		return fmt.Sprintf("%s/api/v1/search?q=%s&page=1&type=%s", base, q, kind)
	}

	var results []media.Entry
	var failures int
	var lastErr error

	var videos []videoEntry
	if err := v.fetcher.GetJSON(ctx, searchURL("video")+"&fields=videoId,title,author", nil, &videos); err != nil {
		failures++
		lastErr = err
	}
	for _, e := range videos {
		results = append(results, v.videoEntry(base, e))
	}

	var playlists []playlistEntry
	if err := v.fetcher.GetJSON(ctx, searchURL("playlist"), nil, &playlists); err != nil {
		failures++
		lastErr = err
	}
	for _, p := range playlists {
		results = append(results, media.Entry{
			Provider: v.Name(),
			Title:    p.Title,
			URL:      base + "/playlist?list=" + p.PlaylistID,
			Kind:     media.Playlist,
			Note:     p.Author,
		})
	}

	var channels []channelEntry
	if err := v.fetcher.GetJSON(ctx, searchURL("channel"), nil, &channels); err != nil {
		failures++
		lastErr = err
	}
	for _, c := range channels {
		results = append(results, media.Entry{
			Provider: v.Name(),
			Title:    c.Author,
			URL:      base + "/channel/" + c.AuthorID,
			Kind:     media.Channel,
		})
	}

	if failures == 3 {
		return nil, fmt.Errorf("searching for %q: %w", query, lastErr)
	}
	return results, nil
}

// Load handles watch, playlist and channel URLs. A bare video ID is accepted
// as well.
func (v *Invidious) Load(ctx context.Context, rawURL string) (*media.Detail, error) {
	base := v.pool.Select(ctx)

	if m := playlistID.FindStringSubmatch(rawURL); m != nil && strings.Contains(rawURL, "/playlist") {
		return v.loadPlaylist(ctx, base, m[1])
	}
	if m := channelID.FindStringSubmatch(rawURL); m != nil {
		return v.loadChannel(ctx, base, m[1])
	}

	id := ""
	if m := watchID.FindStringSubmatch(rawURL); m != nil {
		id = m[1]
	} else if httputil.ValidateID(rawURL) == nil {
		id = rawURL
	}
	if id == "" {
		return nil, fmt.Errorf("not an invidious video URL: %q", rawURL)
	}

	video, err := v.video(ctx, base, id)
	if err != nil {
		return nil, err
	}
	d := &media.Detail{
		Provider:  v.Name(),
		Title:     video.Title,
		URL:       base + "/watch?v=" + id,
		Kind:      media.Video,
		Poster:    thumbnail(base, id),
		Plot:      video.Description,
		ChannelID: video.AuthorID,
		Episodes:  []media.Episode{{Name: video.Title, Data: id}},
	}
	if video.Genre != "" {
		d.Tags = []string{video.Genre}
	}
	for _, r := range video.RecommendedVideos {
		d.Related = append(d.Related, v.videoEntry(base, r))
	}
	return d, nil
}

func (v *Invidious) video(ctx context.Context, base, id string) (*videoDetail, error) {
	if err := httputil.ValidateID(id); err != nil {
		return nil, fmt.Errorf("invalid video ID: %w", err)
	}
	var video videoDetail
	if err := v.fetcher.GetJSON(ctx, base+"/api/v1/videos/"+id, nil, &video); err != nil {
		return nil, fmt.Errorf("getting video %s: %w", id, err)
	}
	return &video, nil
}

func (v *Invidious) loadPlaylist(ctx context.Context, base, id string) (*media.Detail, error) {
	var pl playlistDetail
	if err := v.fetcher.GetJSON(ctx, base+"/api/v1/playlists/"+id, nil, &pl); err != nil {
		return nil, fmt.Errorf("getting playlist %s: %w", id, err)
	}
	d := &media.Detail{
		Provider: v.Name(),
		Title:    pl.Title,
		URL:      base + "/playlist?list=" + id,
		Kind:     media.Playlist,
		Plot:     pl.Description,
	}
	for i, e := range pl.Videos {
		if i == 0 {
			d.Poster = thumbnail(base, e.VideoID)
		}
		d.Episodes = append(d.Episodes, media.Episode{
			Name:   e.Title,
			Data:   e.VideoID,
			Number: i + 1,
			Poster: thumbnail(base, e.VideoID),
		})
	}
	return d, nil
}

// loadChannel lists a channel's videos and subscribes to it.
func (v *Invidious) loadChannel(ctx context.Context, base, id string) (*media.Detail, error) {
	if _, err := v.Subscribe(ctx, id); err != nil {
		v.logger.Warn().Err(err).Str("channel", id).Msg("could not subscribe")
	}
	videos, err := v.channelVideos(ctx, base, id)
	if err != nil {
		return nil, err
	}
	title := "Canal " + id
	if len(videos) > 0 && videos[0].Author != "" {
		title = videos[0].Author
	}
	d := &media.Detail{
		Provider:  v.Name(),
		Title:     title,
		URL:       base + "/channel/" + id,
		Kind:      media.Channel,
		ChannelID: id,
	}
	for i, e := range videos {
		d.Episodes = append(d.Episodes, media.Episode{
			Name:   e.Title,
			Data:   e.VideoID,
			Number: i + 1,
			Poster: thumbnail(base, e.VideoID),
		})
	}
	return d, nil
}

// LoadLinks emits the progressive streams, the HLS manifest when the
// instance offers one, and caption tracks.
func (v *Invidious) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	id := data
	if m := watchID.FindStringSubmatch(data); m != nil {
		id = m[1]
	}
	base := v.pool.Select(ctx)
	video, err := v.video(ctx, base, id)
	if err != nil {
		v.logger.Debug().Err(err).Msg("loading links")
		return false
	}

	found := false
	headers := map[string]string{"User-Agent": v.fetcher.UserAgent()}
	for _, s := range video.FormatStreams {
		if s.URL == "" {
			continue
		}
		ok := out.Emit(sink.Link{
			Source:  v.Name(),
			Name:    firstNonEmpty(s.QualityLabel, "Unknown"),
			URL:     s.URL,
			Label:   s.QualityLabel,
			Referer: base,
			Headers: headers,
		})
		found = found || ok
	}
	if video.HLSURL != "" {
		ok := out.Emit(sink.Link{
			Source:  v.Name(),
			Name:    "HLS",
			URL:     httputil.ResolveReference(base+"/", video.HLSURL),
			Referer: base,
			Headers: headers,
		})
		found = found || ok
	}
	for _, c := range video.Captions {
		out.Subtitle(media.Subtitle{
			Language: c.LanguageCode,
			Label:    c.Label,
			URL:      httputil.ResolveReference(base+"/", c.URL),
		})
	}
	return found
}

// Subscribe adds a channel to the Subscriptions section.
func (v *Invidious) Subscribe(ctx context.Context, channel string) (bool, error) {
	if err := httputil.ValidateID(channel); err != nil {
		return false, fmt.Errorf("invalid channel ID: %w", err)
	}
	return v.store.Add(ctx, store.SubscriptionsKey, channel)
}

// Unsubscribe removes a channel.
func (v *Invidious) Unsubscribe(ctx context.Context, channel string) (bool, error) {
	return v.store.Remove(ctx, store.SubscriptionsKey, channel)
}

// Subscriptions lists subscribed channel IDs.
func (v *Invidious) Subscriptions(ctx context.Context) ([]string, error) {
	return v.store.Members(ctx, store.SubscriptionsKey)
}
