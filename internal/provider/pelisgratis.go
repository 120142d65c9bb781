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

const pelisgratisURL = "https://www.pelisgratishd.net"

var (
	seasonSlug  = regexp.MustCompile(`temporada-(\d+)`)
	episodeSlug = regexp.MustCompile(`episodio-(\d+)`)
	anyURL      = regexp.MustCompile(`https?://[^\s"']+`)

	// Player URLs assigned in inline scripts.
	scriptPlayers = []*regexp.Regexp{
		regexp.MustCompile(`src\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?s)iframe.*?src\s*:\s*["']([^"']+)["']`),
		regexp.MustCompile(`file\s*:\s*["']([^"']+)["']`),
		regexp.MustCompile(`link\s*:\s*["']([^"']+)["']`),
	}
)

// PelisGratis scrapes a DLE-style catalog. Server buttons carry a hash that
// the site exchanges for the embed URL.
type PelisGratis struct {
	scraper
}

func NewPelisGratis(mainURL string, d Deps) *PelisGratis {
	return &PelisGratis{scraper: newScraper("pelisgratishd", mainURL, d)}
}

func (p *PelisGratis) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "Películas Populares", Data: p.mainURL + "/peliculas"},
		{Name: "Series Populares", Data: p.mainURL + "/series"},
		{Name: "Acción", Data: p.mainURL + "/peliculas/genero/accion"},
		{Name: "Comedia", Data: p.mainURL + "/peliculas/genero/comedia"},
		{Name: "Drama", Data: p.mainURL + "/peliculas/genero/drama"},
		{Name: "Terror", Data: p.mainURL + "/peliculas/genero/terror"},
		{Name: "Ciencia Ficción", Data: p.mainURL + "/peliculas/genero/ciencia-ficcion"},
		{Name: "Animación", Data: p.mainURL + "/peliculas/genero/animacion"},
		{Name: "Series 2025", Data: p.mainURL + "/series/ano/2025"},
	}
}

func (p *PelisGratis) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	pageURL := strings.TrimSuffix(req.Data, "/")
	if req.Page > 1 {
		pageURL += "/page/" + strconv.Itoa(req.Page)
	}
	doc, err := p.document(ctx, pageURL)
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}

	path := strings.TrimPrefix(strings.TrimSuffix(req.Data, "/"), p.mainURL)
	switch {
	case strings.HasPrefix(path, "/peliculas"):
		section.Entries = p.parseCards(doc.Find(".movie-item2"), func(href string) bool { return !strings.Contains(href, "/series/") })
		if len(section.Entries) == 0 {
			section.Entries = p.parseLinks(doc.Find("a[href*='/peliculas/ver-']"))
		}
		if len(section.Entries) == 0 {
			section.Entries = p.parseCards(doc.Find(".movie-grid-item, .pelicula-item"), func(href string) bool { return !strings.Contains(href, "/series/") })
		}
	case strings.HasPrefix(path, "/series"):
		section.Entries = p.parseCards(doc.Find(".movie-item2"), func(href string) bool { return strings.Contains(href, "/series/") })
	default:
		section.Entries = p.parseCards(doc.Find(".movie-item2"), func(href string) bool { return !strings.Contains(href, "/ver-episodio-") })
	}

	section.HasNext = doc.Find(".pnext a").Length() > 0 ||
		doc.Find("a[href*='/page/']").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.Contains(strings.ToUpper(a.Text()), "SIGUIENTE")
		}).Length() > 0
	return section, nil
}

// parseCards reads poster cards whose link passes keep.
func (p *PelisGratis) parseCards(cards *goquery.Selection, keep func(href string) bool) []media.Entry {
	var entries []media.Entry
	seen := make(map[string]bool)
	cards.Each(func(_ int, card *goquery.Selection) {
		a := card.Find("a.mi2-in-link, a[href*='/ver-']").First()
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !strings.Contains(href, "/ver-") || !keep(href) {
			return
		}
		title := firstNonEmpty(card.Find(".mi2-title, .movie-title, .title").First().Text(), a.AttrOr("title", ""))
		if e, ok := p.entry(title, href, card.Find("img").First()); ok && !seen[e.URL] {
			seen[e.URL] = true
			entries = append(entries, e)
		}
	})
	return entries
}

// parseLinks reads bare title links, as on genre pages and search results.
func (p *PelisGratis) parseLinks(links *goquery.Selection) []media.Entry {
	var entries []media.Entry
	seen := make(map[string]bool)
	links.Each(func(_ int, a *goquery.Selection) {
		title := firstNonEmpty(a.AttrOr("title", ""), a.Find(".mi2-title, .side-title, .title").First().Text(), a.Text())
		if e, ok := p.entry(title, a.AttrOr("href", ""), a.Find("img").First()); ok && !seen[e.URL] {
			seen[e.URL] = true
			entries = append(entries, e)
		}
	})
	return entries
}

// entry drops untitled and upcoming titles.
func (p *PelisGratis) entry(title, href string, img *goquery.Selection) (media.Entry, bool) {
	title = strings.TrimSpace(title)
	href = strings.TrimSpace(href)
	if title == "" || href == "" || strings.Contains(strings.ToLower(title), "próximamente") {
		return media.Entry{}, false
	}
	e := media.Entry{Provider: p.name, Title: title, URL: p.abs(href), Kind: media.Movie}
	if strings.Contains(href, "/series/") {
		e.Kind = media.Series
	}
	if src := imageSource(img, "data-src", "src", "data-original", "srcset"); src != "" {
		e.Poster = p.abs(src)
	}
	return e, true
}

func (p *PelisGratis) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := p.document(ctx, p.mainURL+"/buscar?q="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	entries := p.parseCards(doc.Find(".movie-item2"), func(string) bool { return true })
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.URL] = true
	}
	for _, e := range p.parseLinks(doc.Find("a[href*='/ver-']")) {
		if !seen[e.URL] && !strings.Contains(e.Title, "Búsqueda") {
			seen[e.URL] = true
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Load reads a movie or a series. Series episodes live on one page per
// season, which are fetched in order.
func (p *PelisGratis) Load(ctx context.Context, rawURL string) (*media.Detail, error) {
	doc, err := p.document(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", rawURL, err)
	}
	title := firstNonEmpty(doc.Find("h1.kino-h, h1.title").First().Text(), doc.Find("h2.h2-f").First().Text(), "Desconocido")
	title = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "próximamente", ""), "Próximamente", ""))

	d := &media.Detail{
		Provider: p.name,
		Title:    title,
		URL:      rawURL,
		Kind:     media.Movie,
		Plot: firstNonEmpty(
			doc.Find(".full-desc, .kino-desc p").First().Text(),
			doc.Find("p[style*='text-align']").First().Text(),
		),
	}
	if poster := firstNonEmpty(
		doc.Find("meta[property='og:image']").AttrOr("content", ""),
		doc.Find(".full-poster img").First().AttrOr("src", ""),
	); poster != "" {
		d.Poster = p.abs(poster)
		d.Background = d.Poster
	}

	doc.Find(".details-f").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(row.Text())
		switch {
		case strings.Contains(label, "género"):
			row.Find("a").Each(func(_ int, a *goquery.Selection) {
				if t := strings.TrimSpace(a.Text()); t != "" {
					d.Tags = append(d.Tags, t)
				}
			})
		case strings.Contains(label, "lanzamiento"), strings.Contains(label, "año"):
			if y, err := strconv.Atoi(strings.TrimSpace(row.Find("a").First().Text())); err == nil && d.Year == 0 {
				d.Year = y
			}
		}
	})
	if d.Year == 0 {
		d.Year = parseYear(title)
	}

	seasons := doc.Find("a[href*='temporada-']")
	if !strings.Contains(rawURL, "/series/") || (seasons.Length() == 0 && doc.Find(".seasons").Length() == 0) {
		d.Episodes = []media.Episode{{Name: d.Title, Data: rawURL}}
		return d, nil
	}
	d.Kind = media.Series

	var seasonURLs []string
	seasons.Each(func(_ int, a *goquery.Selection) {
		seasonURLs = append(seasonURLs, p.abs(a.AttrOr("href", "")))
	})
	seen := make(map[string]bool)
	for _, su := range dedupe(seasonURLs) {
		season := 1
		if m := seasonSlug.FindStringSubmatch(su); m != nil {
			season, _ = strconv.Atoi(m[1])
		}
		sdoc, err := p.document(ctx, su)
		if err != nil {
			p.logger.Debug().Err(err).Str("season", su).Msg("loading season page")
			continue
		}
		sdoc.Find("a[href*='ver-episodio-']").Each(func(_ int, a *goquery.Selection) {
			href := p.abs(a.AttrOr("href", ""))
			if href == "" || seen[href] {
				return
			}
			seen[href] = true
			n := 1
			if m := episodeSlug.FindStringSubmatch(href); m != nil {
				n, _ = strconv.Atoi(m[1])
			}
			d.Episodes = append(d.Episodes, media.Episode{
				Name:   "Episodio " + strconv.Itoa(n),
				Data:   href,
				Season: season,
				Number: n,
				Poster: d.Poster,
			})
		})
	}
	return d, nil
}

type hashLinkResponse struct {
	Link string `json:"link"`
}

// LoadLinks exchanges every server hash for its embed. When the page has no
// hashes it falls back to script player URLs, then to bare frames.
func (p *PelisGratis) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	res, err := p.fetcher.Get(ctx, data, map[string]string{"Referer": p.mainURL + "/"})
	if err != nil {
		p.logger.Debug().Err(err).Msg("loading player page")
		return false
	}
	doc := res.Document()
	token := doc.Find("meta[name='csrf-token']").AttrOr("content", "")

	var embeds []string
	doc.Find(".lien[data-hash]").Each(func(_ int, el *goquery.Selection) {
		if u := p.embedForHash(ctx, strings.TrimSpace(el.AttrOr("data-hash", "")), token, data); u != "" {
			embeds = append(embeds, u)
		}
	})
	if p.resolveEach(ctx, embeds, p.mainURL, out) {
		return true
	}

	embeds = embeds[:0]
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		text := script.Text()
		for _, re := range scriptPlayers {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				u := extract.Clean(m[1])
				if u == "" || strings.Contains(u, "ads") || strings.Contains(u, "google") {
					continue
				}
				embeds = append(embeds, p.abs(u))
			}
		}
	})
	if p.resolveEach(ctx, embeds, p.mainURL, out) {
		return true
	}

	embeds = embeds[:0]
	for _, src := range extract.FrameSources(doc, res.FinalURL) {
		if !strings.Contains(src, "ads") {
			embeds = append(embeds, src)
		}
	}
	return p.resolveEach(ctx, embeds, p.mainURL, out)
}

// embedForHash posts a server hash and returns the embed URL in the reply.
func (p *PelisGratis) embedForHash(ctx context.Context, hash, token, referer string) string {
	if hash == "" {
		return ""
	}
	form := url.Values{"hash": {hash}}
	if token != "" {
		form.Set("_token", token)
	}
	res, err := p.fetcher.PostForm(ctx, p.mainURL+"/hashembedlink", form, map[string]string{
		"Referer": referer,
		"Origin":  p.mainURL,
	})
	if err != nil {
		p.logger.Debug().Err(err).Str("hash", hash).Msg("exchanging server hash")
		return ""
	}
	var hr hashLinkResponse
	if json.Unmarshal([]byte(res.RawText), &hr) == nil && hr.Link != "" {
		return extract.Clean(hr.Link)
	}
	return anyURL.FindString(extract.Clean(res.RawText))
}
