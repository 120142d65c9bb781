package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/extract"
	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const verpeliculasURL = "https://verpeliculasonline.org"

var (
	// Player URLs assigned in inline scripts.
	scriptSources = []*regexp.Regexp{
		regexp.MustCompile(`src\s*[:=]\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`iframe.*?src\s*=\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`(https?://[^\s"']+\.(?:mp4|m3u8))`),
	}
	// Post ID in the player bootstrap script.
	scriptPostID = []*regexp.Regexp{
		regexp.MustCompile(`post\s*:\s*['"]?(\d+)`),
		regexp.MustCompile(`post_id\s*:\s*['"]?(\d+)`),
		regexp.MustCompile(`id\s*:\s*['"]?(\d+)`),
	}
	pathPostID  = regexp.MustCompile(`/(\d+)/`)
	episodeMark = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
)

// VerPeliculas scrapes a DooPlay WordPress site. Players are in frames,
// in inline scripts, or behind the theme's admin-ajax endpoint.
type VerPeliculas struct {
	scraper
}

func NewVerPeliculas(mainURL string, d Deps) *VerPeliculas {
	return &VerPeliculas{scraper: newScraper("verpeliculasonline", mainURL, d)}
}

func (v *VerPeliculas) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "Inicio", Data: v.mainURL + "/"},
		{Name: "Películas", Data: v.mainURL + "/categoria/peliculas/"},
		{Name: "Series", Data: v.mainURL + "/categoria/series/"},
		{Name: "Acción", Data: v.mainURL + "/genero/accion/"},
		{Name: "Aventura", Data: v.mainURL + "/genero/aventura/"},
		{Name: "Drama", Data: v.mainURL + "/genero/drama/"},
	}
}

func (v *VerPeliculas) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	pageURL := strings.TrimSuffix(req.Data, "/") + "/"
	if req.Page > 1 {
		pageURL += fmt.Sprintf("page/%d/", req.Page)
	}
	doc, err := v.document(ctx, pageURL)
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	section.Entries = v.parseItems(doc)
	section.HasNext = len(section.Entries) > 0
	return section, nil
}

func (v *VerPeliculas) parseItems(doc *goquery.Document) []media.Entry {
	var entries []media.Entry
	seen := make(map[string]bool)
	doc.Find("article, .item, .post").Each(func(_ int, el *goquery.Selection) {
		href := strings.TrimSpace(el.Find("a").First().AttrOr("href", ""))
		title := strings.TrimSpace(el.Find("h2, h3, h4, .title, .entry-title").First().Text())
		if href == "" || title == "" {
			return
		}
		link := v.abs(href)
		if seen[link] {
			return
		}
		seen[link] = true

		e := media.Entry{Provider: v.name, Title: title, URL: link, Kind: media.Movie}
		if src := imageSource(el.Find("img").First(), "data-src", "src", "data-lazy-src"); src != "" {
			e.Poster = v.abs(src)
		}
		if strings.Contains(href, "/serie/") || el.Find(".tvshows").Length() > 0 {
			e.Kind = media.Series
		}
		entries = append(entries, e)
	})
	return entries
}

func (v *VerPeliculas) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := v.document(ctx, v.mainURL+"/?s="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return v.parseItems(doc), nil
}

func (v *VerPeliculas) Load(ctx context.Context, rawURL string) (*media.Detail, error) {
	doc, err := v.document(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", rawURL, err)
	}
	d := &media.Detail{
		Provider: v.name,
		Title:    firstNonEmpty(doc.Find("h1, .entry-title").First().Text(), "Sin título"),
		URL:      rawURL,
		Kind:     media.Movie,
		Year:     parseYear(doc.Find(".year, .date").First().Text()),
		Plot: firstNonEmpty(
			doc.Find(".entry-content, .description, .sinopsis").First().Text(),
			doc.Find("meta[name='description']").AttrOr("content", ""),
		),
	}
	poster := firstNonEmpty(
		doc.Find("meta[property='og:image']").AttrOr("content", ""),
		doc.Find("img[src*='poster'], .poster img").First().AttrOr("src", ""),
	)
	if poster != "" {
		d.Poster = v.abs(poster)
	}

	if !strings.Contains(rawURL, "/serie/") && doc.Find(".tvshows, .seasons").Length() == 0 {
		d.Episodes = []media.Episode{{Name: d.Title, Data: rawURL}}
		return d, nil
	}
	d.Kind = media.Series
	doc.Find("ul.episodios li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find(".episodiotitle a, a").First()
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		ep := media.Episode{Name: strings.TrimSpace(a.Text()), Data: v.abs(href), Season: 1}
		if m := episodeMark.FindStringSubmatch(li.Find(".numerando").Text()); m != nil {
			ep.Season, _ = strconv.Atoi(m[1])
			ep.Number, _ = strconv.Atoi(m[2])
		}
		d.Episodes = append(d.Episodes, ep)
	})
	return d, nil
}

type dooPlayerResponse struct {
	EmbedURL string `json:"embed_url"`
}

// LoadLinks gathers frames, script player URLs and the admin-ajax player,
// then resolves them together.
func (v *VerPeliculas) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	res, err := v.fetcher.Get(ctx, data, map[string]string{"Referer": v.mainURL + "/"})
	if err != nil {
		v.logger.Debug().Err(err).Msg("loading player page")
		return false
	}
	doc := res.Document()

	var embeds []string
	for _, src := range extract.FrameSources(doc, res.FinalURL) {
		if !strings.Contains(src, "facebook") && !strings.Contains(src, "twitter") {
			embeds = append(embeds, src)
		}
	}
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		text := script.Text()
		for _, re := range scriptSources {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if u := extract.Clean(m[1]); strings.Contains(u, "http") {
					embeds = append(embeds, res.Resolve(u))
				}
			}
		}
	})

	if post := v.postID(doc, res.FinalURL); post != "" {
		form := url.Values{"action": {"doo_player_ajax"}, "post": {post}, "nume": {"1"}, "type": {"movie"}}
		if strings.Contains(data, "/episodio/") || strings.Contains(data, "/serie/") {
			form.Set("type", "tv")
		}
		player, err := v.fetcher.PostForm(ctx, v.mainURL+"/wp-admin/admin-ajax.php", form, map[string]string{"Referer": data})
		if err != nil {
			v.logger.Debug().Err(err).Str("post", post).Msg("player ajax")
		} else {
			var pr dooPlayerResponse
			if json.Unmarshal([]byte(player.RawText), &pr) == nil && pr.EmbedURL != "" {
				embeds = append(embeds, v.abs(extract.Clean(pr.EmbedURL)))
			}
		}
	}

	return v.resolveEach(ctx, embeds, data, out)
}

// postID finds the WordPress post ID of a player page: the player option
// attribute, the bootstrap script, then the URL path.
func (v *VerPeliculas) postID(doc *goquery.Document, pageURL string) string {
	if id := doc.Find("[data-post]").First().AttrOr("data-post", ""); id != "" {
		return id
	}
	var id string
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		text := script.Text()
		for _, re := range scriptPostID {
			if m := re.FindStringSubmatch(text); m != nil {
				id = m[1]
				return false
			}
		}
		return true
	})
	if id != "" {
		return id
	}
	if m := pathPostID.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	return ""
}
