package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"scrapecast/internal/extract"
	"scrapecast/internal/httputil"
	"scrapecast/internal/sink"
	"scrapecast/internal/store"
)

// Deps are the shared services handed to every provider.
type Deps struct {
	Fetcher      *httputil.Fetcher
	Resolver     *extract.Resolver
	Store        store.Store   // Subscriptions; may be nil
	Instances    []string      // Invidious mirrors
	ProbeTimeout time.Duration // Mirror probe bound
}

// builtin is the provider table. Each entry builds one provider from Deps.
var builtin = []struct {
	name  string
	build func(Deps) (Provider, error)
}{
	{"invidious", func(d Deps) (Provider, error) { return NewInvidious(d) }},
	{"cablevisionhd", func(d Deps) (Provider, error) { return NewCablevision(cablevisionURL, d), nil }},
	{"sololatino", func(d Deps) (Provider, error) { return NewSoloLatino(sololatinoURL, d), nil }},
	{"pelisplushd", func(d Deps) (Provider, error) { return NewPelisplus(pelisplusURL, d), nil }},
	{"monoschinos", func(d Deps) (Provider, error) { return NewMonosChinos(monoschinosURL, d), nil }},
	{"monoschinos2", func(d Deps) (Provider, error) { return NewMonosChinos2(monoschinos2URL, d), nil }},
	{"cinecalidad", func(d Deps) (Provider, error) { return NewCinecalidad(cinecalidadURL, d), nil }},
	{"latanime", func(d Deps) (Provider, error) { return NewLatanime(latanimeURL, d), nil }},
	{"verpeliculasonline", func(d Deps) (Provider, error) { return NewVerPeliculas(verpeliculasURL, d), nil }},
	{"pelisgratishd", func(d Deps) (Provider, error) { return NewPelisGratis(pelisgratisURL, d), nil }},
	{"megadede", func(d Deps) (Provider, error) { return NewMegadede(megadedeURL, d), nil }},
}

// Build creates a registry with every built-in provider and live-event
// variant.
func Build(d Deps) (*Registry, error) {
	if d.Fetcher == nil {
		d.Fetcher = httputil.NewFetcher(httputil.Options{})
	}
	if d.Resolver == nil {
		d.Resolver = extract.NewResolver(d.Fetcher, extract.Options{UserAgent: d.Fetcher.UserAgent()})
	}

	r := NewRegistry()
	for _, b := range builtin {
		p, err := b.build(d)
		if err != nil {
			return nil, fmt.Errorf("building provider %s: %w", b.name, err)
		}
		r.Register(p)
	}
	for _, v := range LiveVariants() {
		r.Register(NewLiveSite(v, d))
	}
	return r, nil
}

// scraper holds what the HTML providers share: a base URL, the fetcher and
// the embed resolver.
type scraper struct {
	name     string
	mainURL  string
	fetcher  *httputil.Fetcher
	resolver *extract.Resolver
	logger   zerolog.Logger
}

func newScraper(name, mainURL string, d Deps) scraper {
	f := d.Fetcher
	if f == nil {
		f = httputil.NewFetcher(httputil.Options{})
	}
	res := d.Resolver
	if res == nil {
		res = extract.NewResolver(f, extract.Options{UserAgent: f.UserAgent()})
	}
	return scraper{
		name:     name,
		mainURL:  strings.TrimSuffix(mainURL, "/"),
		fetcher:  f,
		resolver: res,
		logger:   log.With().Str("provider", name).Logger(),
	}
}

func (s *scraper) Name() string { return s.name }

// document GETs rawURL with the site as Referer.
func (s *scraper) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	res, err := s.fetcher.Get(ctx, rawURL, map[string]string{"Referer": s.mainURL + "/"})
	if err != nil {
		return nil, err
	}
	return res.Document(), nil
}

// abs resolves ref against the site root.
func (s *scraper) abs(ref string) string {
	return httputil.ResolveReference(s.mainURL+"/", ref)
}

// resolve walks one embed URL and sends what it finds to out.
func (s *scraper) resolve(ctx context.Context, embedURL, referer string, out *sink.Sink) bool {
	return s.resolveWith(ctx, s.resolver, embedURL, referer, "", out)
}

// resolveWith is resolve with a specific resolver. label is used for
// candidates that carry no quality text of their own.
func (s *scraper) resolveWith(ctx context.Context, r *extract.Resolver, embedURL, referer, label string, out *sink.Sink) bool {
	embedURL = out.Normalizer().Normalize(embedURL)
	if httputil.ValidateURL(embedURL) != nil {
		return false
	}
	server := out.Normalizer().Canonical(hostOf(embedURL))

	found := false
	for c := range r.Resolve(ctx, embedURL, referer) {
		ok := out.Emit(sink.Link{
			Source:  s.name,
			Name:    s.name + " " + server,
			URL:     c.URL,
			Label:   firstNonEmpty(c.Label, label),
			Referer: c.Referer,
			Headers: map[string]string{"User-Agent": s.fetcher.UserAgent()},
		})
		found = found || ok
	}
	if !found {
		s.logger.Debug().Str("embed", embedURL).Msg("no playable link")
	}
	return found
}

// resolveEach resolves every embed concurrently.
func (s *scraper) resolveEach(ctx context.Context, embeds []string, referer string, out *sink.Sink) bool {
	found := atomic.NewBool(false)
	var wg sync.WaitGroup
	for _, e := range dedupe(embeds) {
		wg.Add(1)
		go func(e string) {
			defer wg.Done()
			if s.resolve(ctx, e, referer, out) {
				found.Store(true)
			}
		}(e)
	}
	wg.Wait()
	return found.Load()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// imageSource returns the first usable image URL on an <img>, checking lazy
// loading attributes before src.
func imageSource(img *goquery.Selection, attrs ...string) string {
	if len(attrs) == 0 {
		attrs = []string{"data-src", "src", "data-srcset", "srcset"}
	}
	for _, a := range attrs {
		v := strings.TrimSpace(img.AttrOr(a, ""))
		if v == "" || strings.HasPrefix(v, "data:") {
			continue
		}
		// srcset lists "url width" pairs.
		if f := strings.Fields(v); len(f) > 0 {
			return f[0]
		}
	}
	return ""
}

// errNoTitle reports a detail page without a heading, usually a removed
// title or a block page.
var errNoTitle = errors.New("page has no title")

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// parseYear returns the first plausible year in text, or 0.
func parseYear(text string) int {
	m := yearPattern.FindString(text)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
