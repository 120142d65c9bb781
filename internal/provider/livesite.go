package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

// LiveVariant describes a WordPress site that posts live events and replays
// as pages with embedded players.
type LiveVariant struct {
	Name          string // Registry key
	MainURL       string
	PathFilter    string // Only links containing this are events
	TitleSuffix   string // Stripped from page titles
	Section       string
	DefaultPoster string
	DefaultPlot   string
}

// LiveVariants returns the built-in live-event sites.
func LiveVariants() []LiveVariant {
	return []LiveVariant{
		{
			Name:          "latinluchas",
			MainURL:       "https://tv.latinluchas.com/tv",
			PathFilter:    "/tv/coli",
			TitleSuffix:   " - TV LatinLuchas",
			Section:       "Eventos y Repeticiones",
			DefaultPoster: "https://tv.latinluchas.com/tv/wp-content/uploads/2026/02/hq720.avif",
			DefaultPlot:   "Repetición o transmisión en vivo - TV LatinLuchas",
		},
	}
}

// eventSelector matches the post cards of common WordPress themes as well as
// bare event links.
const eventSelector = "article, .elementor-post, .post, a[href]"

// LiveSite scrapes a LiveVariant with colly.
type LiveSite struct {
	scraper
	v LiveVariant
}

func NewLiveSite(v LiveVariant, d Deps) *LiveSite {
	return &LiveSite{scraper: newScraper(v.Name, v.MainURL, d), v: v}
}

// liveCollector is a synchronous collector plus the first failure seen by
// its hooks.
type liveCollector struct {
	*colly.Collector
	err error
}

func (lc *liveCollector) fail(err error) {
	if lc.err == nil {
		lc.err = err
	}
}

// collector returns a synchronous collector that shares the fetcher's
// transport and User-Agent. Every request passes the fetcher's robots
// gate and host limiter and is counted in the fetch metrics.
func (l *LiveSite) collector(ctx context.Context) *liveCollector {
	c := colly.NewCollector(
		colly.UserAgent(l.fetcher.UserAgent()),
		colly.AllowURLRevisit(),
	)
	client := l.fetcher.Client()
	if client.Transport != nil {
		c.WithTransport(client.Transport)
	} else {
		c.WithTransport(http.DefaultTransport)
	}
	if client.Timeout > 0 {
		c.SetRequestTimeout(client.Timeout)
	}

	lc := &liveCollector{Collector: c}
	c.OnRequest(func(r *colly.Request) {
		if err := l.fetcher.Admit(ctx, r.URL.String()); err != nil {
			lc.fail(err)
			r.Abort()
			return
		}
		r.Ctx.Put("start", time.Now())
		r.Headers.Set("Referer", l.mainURL+"/")
		r.Headers.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	})
	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("observed", true)
		l.fetcher.Observe(r.Request.Method, r.StatusCode, elapsed(r.Ctx))
	})
	c.OnError(func(r *colly.Response, err error) {
		// Parse errors arrive after OnResponse already counted the page
		if r.Ctx.GetAny("observed") == nil {
			l.fetcher.Observe(r.Request.Method, r.StatusCode, elapsed(r.Ctx))
		}
		lc.fail(&httputil.NetworkError{URL: r.Request.URL.String(), StatusCode: r.StatusCode, Err: err})
	})
	return lc
}

func elapsed(ctx *colly.Context) time.Duration {
	if start, ok := ctx.GetAny("start").(time.Time); ok {
		return time.Since(start)
	}
	return 0
}

// visit runs c against rawURL unless ctx is already done.
func (l *LiveSite) visit(ctx context.Context, c *liveCollector, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Visit(rawURL); err != nil {
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	return c.err
}

func (l *LiveSite) Sections() []media.SectionRequest {
	return []media.SectionRequest{{Name: l.v.Section, Data: l.mainURL}}
}

// ListCatalog lists the event links on the home page. There is no
// pagination.
func (l *LiveSite) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: firstNonEmpty(req.Name, l.v.Section)}
	if req.Page > 1 {
		return section, nil
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	c := l.collector(ctx)
	c.OnHTML(eventSelector, func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" {
			href = e.ChildAttr("a[href]", "href")
		}
		if strings.TrimSpace(href) == "" {
			return
		}
		link := e.Request.AbsoluteURL(href)
		if link == "" || !strings.Contains(link, l.v.PathFilter) {
			return
		}
		title := firstNonEmpty(
			e.DOM.Find("h2, h3, .entry-title").First().Text(),
			e.DOM.Find("a").First().Text(),
			e.Text,
			"Evento sin título",
		)

		mu.Lock()
		defer mu.Unlock()
		if seen[link] {
			return
		}
		seen[link] = true
		section.Entries = append(section.Entries, media.Entry{
			Provider: l.name,
			Title:    strings.Join(strings.Fields(title), " "),
			URL:      link,
			Poster:   l.v.DefaultPoster,
			Kind:     media.Live,
		})
	})

	if err := l.visit(ctx, c, firstNonEmpty(req.Data, l.mainURL)); err != nil {
		return section, err
	}
	return section, nil
}

// Search filters the home listing by title.
func (l *LiveSite) Search(ctx context.Context, query string) ([]media.Entry, error) {
	section, err := l.ListCatalog(ctx, media.SectionRequest{Page: 1})
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

func (l *LiveSite) Load(ctx context.Context, url string) (*media.Detail, error) {
	var title, plot string
	c := l.collector(ctx)
	c.OnHTML("title", func(e *colly.HTMLElement) {
		if title == "" {
			title = e.Text
		}
	})
	c.OnHTML("meta[property='og:description']", func(e *colly.HTMLElement) {
		plot = e.Attr("content")
	})
	c.OnHTML(".elementor-widget-container p, .elementor-text-editor", func(e *colly.HTMLElement) {
		if plot == "" {
			plot = strings.TrimSpace(e.Text)
		}
	})
	if err := l.visit(ctx, c, url); err != nil {
		return nil, err
	}

	if i := strings.Index(title, l.v.TitleSuffix); l.v.TitleSuffix != "" && i >= 0 {
		title = title[:i]
	}
	title = firstNonEmpty(title, "Evento en vivo")
	return &media.Detail{
		Provider: l.name,
		Title:    title,
		URL:      url,
		Kind:     media.Live,
		Poster:   l.v.DefaultPoster,
		Plot:     firstNonEmpty(plot, l.v.DefaultPlot),
		Episodes: []media.Episode{{Name: title, Data: url}},
	}, nil
}

// LoadLinks resolves every player iframe on the event page.
func (l *LiveSite) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	var frames []string
	c := l.collector(ctx)
	c.OnHTML("iframe[src]", func(e *colly.HTMLElement) {
		src := strings.TrimSpace(e.Attr("src"))
		if src == "" {
			return
		}
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		if src = e.Request.AbsoluteURL(src); src != "" {
			frames = append(frames, src)
		}
	})
	if err := l.visit(ctx, c, data); err != nil {
		l.logger.Debug().Err(err).Msg("loading event page")
		return false
	}
	return l.resolveEach(ctx, frames, data, out)
}
