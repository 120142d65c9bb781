package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const pelisplusURL = "https://www.pelisplushd.la"

var (
	seasonInPath  = regexp.MustCompile(`temporada/(\d+)/`)
	episodeInPath = regexp.MustCompile(`capitulo/(\d+)`)
)

// Pelisplus scrapes pelisplushd: paginated poster grids, seasons in tab
// panels and server lists embedded in the episode page.
type Pelisplus struct {
	scraper
}

func NewPelisplus(mainURL string, d Deps) *Pelisplus {
	return &Pelisplus{scraper: newScraper("pelisplushd", mainURL, d)}
}

func (p *Pelisplus) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "Inicio", Data: p.mainURL},
		{Name: "Películas", Data: p.mainURL + "/peliculas"},
		{Name: "Series", Data: p.mainURL + "/series"},
		{Name: "Animes", Data: p.mainURL + "/animes"},
		{Name: "Doramas", Data: p.mainURL + "/generos/dorama"},
	}
}

func (p *Pelisplus) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	home := strings.TrimSuffix(req.Data, "/") == p.mainURL

	pageURL := strings.TrimSuffix(req.Data, "/")
	if !home {
		page := max(req.Page, 1)
		pageURL = fmt.Sprintf("%s?page=%d", pageURL, page)
	} else if req.Page > 1 {
		return section, nil
	}

	doc, err := p.document(ctx, pageURL)
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	sel := "div.Posters a.Posters-link"
	if home {
		sel = "div#default-tab-1 div.Posters a.Posters-link, div#default-tab-2 div.Posters a.Posters-link, " +
			"div#default-tab-3 div.Posters a.Posters-link, div#default-tab-4 div.Posters a.Posters-link"
	}
	section.Entries = p.parsePosters(doc.Find(sel))
	section.HasNext = doc.Find("ul.pagination a.page-link[rel='next']").Length() > 0
	return section, nil
}

// parsePosters reads poster links, keeping the first of each slug.
func (p *Pelisplus) parsePosters(links *goquery.Selection) []media.Entry {
	var entries []media.Entry
	seen := make(map[string]bool)
	links.Each(func(_ int, a *goquery.Selection) {
		e, ok := p.posterEntry(a)
		if !ok {
			return
		}
		slug := strings.TrimSuffix(e.URL, "/")
		slug = slug[strings.LastIndex(slug, "/")+1:]
		if seen[slug] {
			return
		}
		seen[slug] = true
		entries = append(entries, e)
	})
	return entries
}

func (p *Pelisplus) posterEntry(a *goquery.Selection) (media.Entry, bool) {
	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return media.Entry{}, false
	}
	var title string
	if t, ok := a.Attr("data-title"); ok {
		title, _, _ = strings.Cut(t, " Online Gratis HD")
		title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(title), "VER "))
	} else {
		title = firstNonEmpty(a.Find(".listing-content p").First().Text(), a.Find("p").First().Text())
	}
	if title == "" {
		return media.Entry{}, false
	}
	return media.Entry{
		Provider: p.name,
		Title:    title,
		URL:      p.abs(href),
		Poster:   p.abs(imageSource(a.Find("img").First(), "src", "data-src", "data-srcset", "srcset")),
		Kind:     pelisplusKind(a, href),
	}, true
}

func pelisplusKind(a *goquery.Selection, href string) media.Kind {
	switch {
	case a.Find(".movies.centrado").Length() > 0:
		return media.Movie
	case a.Find(".series.centrado").Length() > 0:
		return media.Series
	case a.Find(".animes.centrado").Length() > 0:
		return media.Anime
	case strings.Contains(href, "/serie/"), strings.Contains(href, "/dorama"):
		return media.Series
	case strings.Contains(href, "/anime/"), strings.Contains(href, "/animes/"):
		return media.Anime
	default:
		return media.Movie
	}
}

func (p *Pelisplus) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := p.document(ctx, p.mainURL+"/search?s="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return p.parsePosters(doc.Find("div.Posters a.Posters-link")), nil
}

func (p *Pelisplus) Load(ctx context.Context, url string) (*media.Detail, error) {
	doc, err := p.document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	return p.parseDetail(doc, url), nil
}

func (p *Pelisplus) parseDetail(doc *goquery.Document, url string) *media.Detail {
	ogTitle, _, _ := strings.Cut(doc.Find("meta[property='og:title']").AttrOr("content", ""), " - ")
	d := &media.Detail{
		Provider: p.name,
		Title:    firstNonEmpty(doc.Find("h1").First().Text(), ogTitle, "Sin título"),
		URL:      url,
		Plot: firstNonEmpty(
			doc.Find("meta[property='og:description']").AttrOr("content", ""),
			doc.Find(".text-large").First().Text(),
		),
	}
	if img := doc.Find("img[src*='/poster/'], .card-body img.img-fluid").First(); img.Length() > 0 {
		d.Poster = p.abs(imageSource(img, "src", "data-src", "data-srcset", "srcset"))
	}
	if d.Poster == "" {
		d.Poster = p.abs(doc.Find("meta[property='og:image']").AttrOr("content", ""))
	}
	if y, err := strconv.Atoi(strings.TrimSpace(doc.Find("a[href*='/year/']").First().Text())); err == nil {
		d.Year = y
	}
	doc.Find("a[href*='/generos/']").Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			d.Tags = append(d.Tags, t)
		}
	})

	tabs := doc.Find(".VideoPlayer ul.TbVideoNv li a[href*='pills-vertical']")
	isSeries := strings.Contains(url, "/serie/") || strings.Contains(url, "/anime/") ||
		strings.Contains(url, "/dorama") || tabs.Length() > 0

	switch {
	case !isSeries:
		d.Kind = media.Movie
		d.Episodes = []media.Episode{{Name: d.Title, Data: url}}
	case tabs.Length() > 0:
		d.Kind = media.Series
		tabs.Each(func(i int, tab *goquery.Selection) {
			id := strings.ReplaceAll(strings.TrimPrefix(tab.AttrOr("href", ""), "#"), " ", "")
			if id == "" {
				return
			}
			panel := doc.Find("div.tab-content div#" + id).First()
			if panel.Length() == 0 {
				panel = doc.Find("div.tab-content div[id*='" + id + "']").First()
			}
			d.Episodes = append(d.Episodes, p.parseEpisodeButtons(panel, i+1)...)
		})
	default:
		d.Kind = media.Series
		d.Episodes = p.parseEpisodeButtons(doc.Selection, 0)
	}
	if strings.Contains(url, "/anime/") {
		d.Kind = media.Anime
	}

	seen := make(map[string]bool)
	doc.Find("aside .Posters a.Posters-link, .related .Posters a, .MovieList a.Posters-link").Each(func(_ int, a *goquery.Selection) {
		e, ok := p.posterEntry(a)
		if !ok || seen[e.URL] || len(d.Related) >= 12 {
			return
		}
		seen[e.URL] = true
		d.Related = append(d.Related, e)
	})
	return d
}

// parseEpisodeButtons reads episode links under root. A zero season means
// the season is taken from the link path.
func (p *Pelisplus) parseEpisodeButtons(root *goquery.Selection, season int) []media.Episode {
	var eps []media.Episode
	root.Find("a.btn-block[href*='/capitulo/']").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		s := season
		if s == 0 {
			s = 1
			if m := seasonInPath.FindStringSubmatch(href); m != nil {
				s, _ = strconv.Atoi(m[1])
			}
		}
		n := 1
		if m := episodeInPath.FindStringSubmatch(href); m != nil {
			n, _ = strconv.Atoi(m[1])
		}
		eps = append(eps, media.Episode{
			Name:   strings.TrimSpace(a.Text()),
			Data:   p.abs(href),
			Season: s,
			Number: n,
		})
	})
	return eps
}

// LoadLinks tries the server lists in the order the site fills them: the
// series span list, the movie list, then any bare player element.
func (p *Pelisplus) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	doc, err := p.document(ctx, data)
	if err != nil {
		p.logger.Debug().Err(err).Msg("loading episode page")
		return false
	}

	for _, group := range []struct{ sel, attr string }{
		{"div#link_url span[url]", "url"},
		{"li.playurl[data-url]", "data-url"},
	} {
		var embeds []string
		doc.Find(group.sel).Each(func(_ int, el *goquery.Selection) {
			if u := strings.TrimSpace(el.AttrOr(group.attr, "")); u != "" {
				embeds = append(embeds, httputil.ResolveReference(data, u))
			}
		})
		if p.resolveEach(ctx, embeds, data, out) {
			return true
		}
	}

	var embeds []string
	doc.Find("iframe[src], video source[src], div.video-html iframe[src]").Each(func(_ int, el *goquery.Selection) {
		src := firstNonEmpty(el.AttrOr("src", ""), el.AttrOr("data-src", ""))
		if strings.Contains(src, "http") {
			embeds = append(embeds, httputil.ResolveReference(data, src))
		}
	})
	return p.resolveEach(ctx, embeds, data, out)
}
