package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const cinecalidadURL = "https://www.cinecalidad.ec"

// Cinecalidad scrapes a WordPress catalog with /page/N/ pagination. Series
// pages list their chapters as plain links.
type Cinecalidad struct {
	scraper
}

func NewCinecalidad(mainURL string, d Deps) *Cinecalidad {
	return &Cinecalidad{scraper: newScraper("cinecalidad", mainURL, d)}
}

func (c *Cinecalidad) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "Series", Data: c.mainURL + "/ver-serie/page/"},
		{Name: "Películas", Data: c.mainURL + "/page/"},
		{Name: "4K UHD", Data: c.mainURL + "/genero-de-la-pelicula/peliculas-en-calidad-4k/page/"},
	}
}

func (c *Cinecalidad) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	doc, err := c.document(ctx, fmt.Sprintf("%s%d", req.Data, max(req.Page, 1)))
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	section.Entries = c.parseArticles(doc)
	section.HasNext = len(section.Entries) > 0
	return section, nil
}

func (c *Cinecalidad) parseArticles(doc *goquery.Document) []media.Entry {
	var entries []media.Entry
	doc.Find("article").Each(func(_ int, art *goquery.Selection) {
		href := strings.TrimSpace(art.Find("a").First().AttrOr("href", ""))
		title := strings.TrimSpace(art.Find("h2").First().Text())
		if href == "" || title == "" {
			return
		}
		e := media.Entry{
			Provider: c.name,
			Title:    title,
			URL:      c.abs(href),
			Kind:     media.Movie,
		}
		if src := imageSource(art.Find("img").First(), "data-src", "src"); src != "" {
			e.Poster = c.abs(src)
		}
		if strings.Contains(href, "/ver-serie/") {
			e.Kind = media.Series
		}
		entries = append(entries, e)
	})
	return entries
}

func (c *Cinecalidad) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := c.document(ctx, c.mainURL+"/?s="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return c.parseArticles(doc), nil
}

func (c *Cinecalidad) Load(ctx context.Context, url string) (*media.Detail, error) {
	doc, err := c.document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return nil, fmt.Errorf("loading %s: %w", url, errNoTitle)
	}
	d := &media.Detail{
		Provider: c.name,
		Title:    title,
		URL:      url,
		Kind:     media.Movie,
		Plot:     strings.TrimSpace(doc.Find("div.entry-content p").First().Text()),
	}
	if src := imageSource(doc.Find("img").First(), "data-src", "src"); src != "" {
		d.Poster = c.abs(src)
	}

	if doc.Find("div.season, div.episodios").Length() == 0 {
		d.Episodes = []media.Episode{{Name: title, Data: url}}
		return d, nil
	}
	d.Kind = media.Series
	seen := make(map[string]bool)
	doc.Find(`a[href*="capitulo"], a[href*="episodio"]`).Each(func(_ int, a *goquery.Selection) {
		href := c.abs(a.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		d.Episodes = append(d.Episodes, media.Episode{
			Name:   strings.TrimSpace(a.Text()),
			Data:   href,
			Season: 1,
			Number: len(d.Episodes) + 1,
		})
	})
	return d, nil
}

// LoadLinks resolves the player links and frames on the page.
func (c *Cinecalidad) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	doc, err := c.document(ctx, data)
	if err != nil {
		c.logger.Debug().Err(err).Msg("loading player page")
		return false
	}
	var embeds []string
	doc.Find(`a[href*="player"], a[href*="iframe"], iframe`).Each(func(_ int, el *goquery.Selection) {
		ref := el.AttrOr("href", "")
		if goquery.NodeName(el) == "iframe" {
			ref = firstNonEmpty(el.AttrOr("src", ""), el.AttrOr("data-src", ""))
		}
		if u := httputil.ResolveReference(data, strings.TrimSpace(ref)); u != "" {
			embeds = append(embeds, u)
		}
	})
	return c.resolveEach(ctx, embeds, data, out)
}
