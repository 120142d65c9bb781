package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const (
	sololatinoURL = "https://sololatino.net"

	// Curated saga lists published alongside the site.
	sololatinoSagas = "https://raw.githubusercontent.com/mobilelegendsbkrjd-oss/lat_cs_bkrjd/main/ListasSL.json"
)

// SoloLatino scrapes a DooPlay-themed catalog of movies, series and anime.
type SoloLatino struct {
	scraper
	sagasURL string
}

func NewSoloLatino(mainURL string, d Deps) *SoloLatino {
	return &SoloLatino{scraper: newScraper("sololatino", mainURL, d), sagasURL: sololatinoSagas}
}

func (s *SoloLatino) Sections() []media.SectionRequest {
	sections := []media.SectionRequest{{Name: "Sagas", Data: s.sagasURL}}
	for _, p := range []struct{ name, path string }{
		{"Películas", "/peliculas"},
		{"Series", "/series"},
		{"Animes", "/animes"},
		{"Cartoons", "/genre_series/toons"},
		{"Doramas", "/genre_series/kdramas/"},
		{"Netflix", "/network/netflix/"},
		{"Amazon", "/network/amazon/"},
		{"Disney+", "/network/disney/"},
		{"HBO Max", "/network/hbo-max/"},
		{"Apple TV", "/network/apple-tv/"},
		{"Hulu", "/network/hulu/"},
	} {
		sections = append(sections, media.SectionRequest{Name: p.name, Data: s.mainURL + p.path})
	}
	return sections
}

func sololatinoKind(u string) media.Kind {
	switch {
	case strings.Contains(u, "/pelicula"):
		return media.Movie
	case strings.Contains(u, "/anime"):
		return media.Anime
	default:
		return media.Series
	}
}

func (s *SoloLatino) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	if req.Data == s.sagasURL {
		if req.Page > 1 {
			return section, nil
		}
		entries, err := s.sagas(ctx)
		section.Entries = entries
		return section, err
	}

	pageURL := req.Data
	if req.Page > 1 {
		pageURL = fmt.Sprintf("%s/page/%d/", strings.TrimSuffix(req.Data, "/"), req.Page)
	}
	doc, err := s.document(ctx, pageURL)
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	section.Entries = s.parseItems(doc, sololatinoKind(req.Data))
	section.HasNext = len(section.Entries) > 0
	return section, nil
}

type sagaEntry struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Poster string `json:"poster"`
}

func (s *SoloLatino) sagas(ctx context.Context) ([]media.Entry, error) {
	var list []sagaEntry
	if err := s.fetcher.GetJSON(ctx, s.sagasURL, nil, &list); err != nil {
		return nil, fmt.Errorf("loading sagas: %w", err)
	}
	var entries []media.Entry
	for _, e := range list {
		if e.Title == "" || e.URL == "" {
			continue
		}
		entries = append(entries, media.Entry{
			Provider: s.name,
			Title:    e.Title,
			URL:      e.URL,
			Poster:   e.Poster,
			Kind:     media.Series,
		})
	}
	return entries, nil
}

// parseItems reads the article.item cards used by listings and search.
func (s *SoloLatino) parseItems(doc *goquery.Document, kind media.Kind) []media.Entry {
	var entries []media.Entry
	doc.Find("div.items article.item").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("a div.data h3").First().Text())
		href, ok := item.Find("a").First().Attr("href")
		if title == "" || !ok {
			return
		}
		k := kind
		if strings.Contains(href, "/peliculas/") {
			k = media.Movie
		}
		entries = append(entries, media.Entry{
			Provider: s.name,
			Title:    title,
			URL:      s.abs(href),
			Poster:   imageSource(item.Find("div.poster img").First(), "data-srcset", "data-src", "src"),
			Kind:     k,
			Year:     parseYear(item.Find("div.data span").Text()),
		})
	})
	return entries
}

func (s *SoloLatino) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := s.document(ctx, s.mainURL+"/?s="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return s.parseItems(doc, media.Series), nil
}

func (s *SoloLatino) Load(ctx context.Context, url string) (*media.Detail, error) {
	doc, err := s.document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	if strings.Contains(url, "/listas/") && doc.Find("div.infoCard").Length() > 0 {
		return s.parseSaga(doc, url), nil
	}
	return s.parseDetail(doc, url), nil
}

func (s *SoloLatino) parseDetail(doc *goquery.Document, url string) *media.Detail {
	kind := media.Series
	if strings.Contains(url, "peliculas") {
		kind = media.Movie
	}
	d := &media.Detail{
		Provider: s.name,
		Title:    strings.TrimSpace(doc.Find("div.data h1").First().Text()),
		URL:      url,
		Kind:     kind,
		Poster:   imageSource(doc.Find("div.poster img").First(), "data-src", "src"),
		Plot:     strings.TrimSpace(doc.Find("div.wp-content").First().Text()),
		Year:     parseYear(doc.Find("div.extra span.date, span.date").First().Text()),
	}
	d.Background = firstNonEmpty(cssURL(doc.Find(".wallpaper").AttrOr("style", "")), d.Poster)
	doc.Find("div.sgeneros a").Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			d.Tags = append(d.Tags, t)
		}
	})

	if kind == media.Movie {
		d.Episodes = []media.Episode{{Name: d.Title, Data: url}}
		return d
	}
	doc.Find("div#seasons div.se-c").Each(func(si int, season *goquery.Selection) {
		season.Find("ul.episodios li").Each(func(ei int, li *goquery.Selection) {
			href, ok := li.Find("a").First().Attr("href")
			if !ok {
				return
			}
			d.Episodes = append(d.Episodes, media.Episode{
				Name:   strings.TrimSpace(li.Find("div.episodiotitle div.epst").First().Text()),
				Data:   s.abs(href),
				Season: si + 1,
				Number: ei + 1,
				Poster: imageSource(li.Find("div.imagen img").First(), "data-src", "src"),
			})
		})
	})
	return d
}

// parseSaga turns a curated list page into a single season ordered by
// release year. Only movie and episode pages are playable.
func (s *SoloLatino) parseSaga(doc *goquery.Document, url string) *media.Detail {
	d := &media.Detail{
		Provider: s.name,
		Title:    firstNonEmpty(doc.Find("div.infoCard h1").First().Text(), "Saga"),
		URL:      url,
		Kind:     media.Series,
		Plot:     strings.TrimSpace(doc.Find("div.infoCard article p").First().Text()),
	}

	type item struct {
		url, title, poster string
		year               int
	}
	var items []item
	doc.Find("div#archive-content article.item").Each(func(_ int, el *goquery.Selection) {
		href, ok := el.Find("a").First().Attr("href")
		if !ok || !(strings.Contains(href, "/peliculas/") || strings.Contains(href, "/episodios/")) {
			return
		}
		poster := imageSource(el.Find("div.poster img").First(), "data-srcset")
		if poster == "" {
			poster = imageSource(el.Find("img").First(), "data-src", "src")
		}
		items = append(items, item{
			url:    s.abs(href),
			title:  strings.TrimSpace(el.Find("h3").First().Text()),
			poster: poster,
			year:   parseYear(el.Find(".data p").First().Text()),
		})
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].year < items[j].year })

	for i, it := range items {
		name := it.title
		if it.year > 0 {
			name = fmt.Sprintf("%s (%d)", it.title, it.year)
		}
		d.Episodes = append(d.Episodes, media.Episode{
			Name:   name,
			Data:   it.url,
			Season: 1,
			Number: i + 1,
			Poster: it.poster,
		})
	}
	if len(d.Episodes) > 0 {
		d.Poster = d.Episodes[0].Poster
	}
	return d
}

// cssURL extracts the target of url(...) in an inline style.
func cssURL(style string) string {
	_, rest, ok := strings.Cut(style, "url(")
	if !ok {
		return ""
	}
	target, _, _ := strings.Cut(rest, ")")
	return strings.Trim(strings.TrimSpace(target), `"'`)
}

// LoadLinks follows the player iframe. Player pages that list several
// servers are fanned out by the resolver's host handlers.
func (s *SoloLatino) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	doc, err := s.document(ctx, data)
	if err != nil {
		s.logger.Debug().Err(err).Msg("loading player page")
		return false
	}
	frame := doc.Find("iframe").First()
	src := firstNonEmpty(frame.AttrOr("src", ""), frame.AttrOr("data-src", ""))
	if src == "" {
		return false
	}
	return s.resolve(ctx, httputil.ResolveReference(data, src), data, out)
}
