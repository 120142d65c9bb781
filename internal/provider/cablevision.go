package provider

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const cablevisionURL = "https://www.cablevisionhd.com"

// Cablevision lists live TV channels. Each channel page hides its stream
// behind a chain of embeds that the resolver unwinds.
type Cablevision struct {
	scraper
}

func NewCablevision(mainURL string, d Deps) *Cablevision {
	return &Cablevision{scraper: newScraper("cablevisionhd", mainURL, d)}
}

func (c *Cablevision) Sections() []media.SectionRequest {
	return []media.SectionRequest{{Name: "Canales", Data: c.mainURL + "/"}}
}

// ListCatalog reads the channel grid of the home page. The grid is a single
// page.
func (c *Cablevision) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	if req.Page > 1 {
		return section, nil
	}
	doc, err := c.document(ctx, firstNonEmpty(req.Data, c.mainURL+"/"))
	if err != nil {
		return section, err
	}
	section.Entries = c.parseChannels(doc)
	return section, nil
}

// parseChannels collects the site's own links that wrap an image.
func (c *Cablevision) parseChannels(doc *goquery.Document) []media.Entry {
	var entries []media.Entry
	seen := make(map[string]bool)
	home := strings.TrimSuffix(c.mainURL, "/")

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		img := a.Find("img").First()
		if img.Length() == 0 {
			return
		}
		href := c.abs(a.AttrOr("href", ""))
		if !strings.HasPrefix(href, home+"/") || strings.TrimSuffix(href, "/") == home || seen[href] {
			return
		}
		title := firstNonEmpty(a.AttrOr("title", ""), img.AttrOr("alt", ""), a.Text())
		if title == "" {
			return
		}
		seen[href] = true
		entries = append(entries, media.Entry{
			Provider: c.name,
			Title:    title,
			URL:      href,
			Poster:   c.abs(imageSource(img)),
			Kind:     media.Live,
		})
	})
	return entries
}

// Search filters the channel grid by name.
func (c *Cablevision) Search(ctx context.Context, query string) ([]media.Entry, error) {
	section, err := c.ListCatalog(ctx, media.SectionRequest{Page: 1})
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []media.Entry
	for _, e := range section.Entries {
		if strings.Contains(strings.ToLower(e.Title), q) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Cablevision) Load(ctx context.Context, url string) (*media.Detail, error) {
	doc, err := c.document(ctx, url)
	if err != nil {
		return nil, err
	}
	title := firstNonEmpty(doc.Find("h1, h2").First().Text(), "Canal en Vivo")
	poster := c.abs(imageSource(doc.Find("img").First()))
	return &media.Detail{
		Provider:   c.name,
		Title:      title,
		URL:        url,
		Kind:       media.Live,
		Poster:     poster,
		Background: poster,
		Plot:       "Transmisión en vivo",
		Episodes:   []media.Episode{{Name: title, Data: url}},
	}, nil
}

// LoadLinks walks the embed chain starting at the channel page. The site
// checks Origin on every hop, so the resolver sends the home origin
// throughout.
func (c *Cablevision) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	r := c.resolver.WithOrigin(c.mainURL)
	return c.resolveWith(ctx, r, data, c.mainURL, "HD", out)
}
