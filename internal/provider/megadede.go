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

const megadedeURL = "https://megadede.mobi"

var episodeLabel = regexp.MustCompile(`(?i)ep\.?\s*(\d+)`)

// Megadede scrapes a catalog of article cards. Series pages group episode
// cards by season container; episode pages are loadable on their own.
type Megadede struct {
	scraper
}

func NewMegadede(mainURL string, d Deps) *Megadede {
	return &Megadede{scraper: newScraper("megadede", mainURL, d)}
}

func (m *Megadede) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "Películas", Data: m.mainURL + "/peliculas"},
		{Name: "Series", Data: m.mainURL + "/series"},
		{Name: "Animes", Data: m.mainURL + "/animes"},
		{Name: "Estrenos", Data: m.mainURL + "/estrenos"},
		{Name: "Acción", Data: m.mainURL + "/genero/accion"},
		{Name: "Terror", Data: m.mainURL + "/genero/terror"},
	}
}

func (m *Megadede) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	pageURL := req.Data
	if req.Page > 1 {
		pageURL += "?page=" + strconv.Itoa(req.Page)
	}
	doc, err := m.document(ctx, pageURL)
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	section.Entries = m.parseCards(doc)
	section.HasNext = len(section.Entries) > 0
	return section, nil
}

func (m *Megadede) parseCards(doc *goquery.Document) []media.Entry {
	var entries []media.Entry
	doc.Find("article.mv").Each(func(_ int, art *goquery.Selection) {
		title := strings.TrimSpace(art.Find("h2, h4").First().Text())
		a := art.Find("a.lnk-blk").First()
		if a.Length() == 0 {
			a = art.Find("a").First()
		}
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if title == "" || href == "" {
			return
		}
		e := media.Entry{
			Provider: m.name,
			Title:    title,
			URL:      m.abs(href),
			Kind:     m.kindOf(href),
			Year:     parseYear(art.Find("span.op6.db.fz6").First().Text()),
		}
		if src := imageSource(art.Find("img").First(), "data-src", "data-lazy", "data-original", "src"); src != "" {
			e.Poster = m.abs(src)
		}
		entries = append(entries, e)
	})
	return entries
}

func (m *Megadede) kindOf(href string) media.Kind {
	switch {
	case strings.Contains(href, "/anime"):
		return media.Anime
	case strings.Contains(href, "/serie"):
		return media.Series
	}
	return media.Movie
}

func (m *Megadede) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := m.document(ctx, m.mainURL+"/search?s="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return m.parseCards(doc), nil
}

func (m *Megadede) Load(ctx context.Context, rawURL string) (*media.Detail, error) {
	doc, err := m.document(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", rawURL, err)
	}

	if strings.Contains(rawURL, "/capitulo/") {
		title, _, _ := strings.Cut(doc.Find("title").First().Text(), " -")
		title = firstNonEmpty(title, "Episodio")
		return &media.Detail{
			Provider: m.name,
			Title:    title,
			URL:      rawURL,
			Kind:     media.Series,
			Episodes: []media.Episode{{Name: title, Data: rawURL, Season: 1, Number: 1}},
		}, nil
	}

	title := strings.TrimSpace(doc.Find("h1, h2").First().Text())
	if title == "" {
		return nil, fmt.Errorf("loading %s: %w", rawURL, errNoTitle)
	}
	d := &media.Detail{
		Provider: m.name,
		Title:    title,
		URL:      rawURL,
		Kind:     m.kindOf(rawURL),
		Year:     parseYear(doc.Find("span.year, span.op6.db.fz6, .date").First().Text()),
		Plot: firstNonEmpty(
			doc.Find("h2.description, .description p, .description").First().Text(),
			doc.Find("meta[property='og:description']").AttrOr("content", ""),
		),
	}
	if src := firstNonEmpty(
		imageSource(doc.Find(".poster img, .post-thumbnail img, figure img").First(), "data-src", "data-lazy", "src"),
		doc.Find("meta[property='og:image']").AttrOr("content", ""),
	); src != "" {
		d.Poster = m.abs(src)
	}

	doc.Find(".season-container[data-season]").Each(func(_ int, box *goquery.Selection) {
		season, err := strconv.Atoi(strings.TrimSpace(box.AttrOr("data-season", "")))
		if err != nil {
			season = 1
		}
		box.Find(".episode-card").Each(func(i int, card *goquery.Selection) {
			a := card.Find("a").First()
			if card.Is("a") {
				a = card
			}
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" {
				return
			}
			n := i + 1
			if mm := episodeLabel.FindStringSubmatch(card.Find(".fz5").First().Text()); mm != nil {
				n, _ = strconv.Atoi(mm[1])
			}
			d.Episodes = append(d.Episodes, media.Episode{
				Name:   firstNonEmpty(card.Find("p").First().Text(), "Episodio "+strconv.Itoa(n)),
				Data:   m.abs(href),
				Season: season,
				Number: n,
			})
		})
	})
	if len(d.Episodes) == 0 {
		d.Kind = media.Movie
		d.Episodes = []media.Episode{{Name: title, Data: rawURL}}
	} else if d.Kind == media.Movie {
		d.Kind = media.Series
	}
	return d, nil
}

// LoadLinks resolves player frames and direct video sources.
func (m *Megadede) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	doc, err := m.document(ctx, data)
	if err != nil {
		m.logger.Debug().Err(err).Msg("loading player page")
		return false
	}
	var embeds []string
	doc.Find("iframe, video source").Each(func(_ int, el *goquery.Selection) {
		src := strings.TrimSpace(firstNonEmpty(el.AttrOr("src", ""), el.AttrOr("data-src", "")))
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		if src != "" {
			embeds = append(embeds, m.abs(src))
		}
	})
	return m.resolveEach(ctx, embeds, m.mainURL, out)
}
