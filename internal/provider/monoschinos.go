package provider

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/extract"
	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const (
	monoschinosURL  = "https://monoschinos.net"
	monoschinos2URL = "https://vww.monoschinos2.net"
)

var (
	verSlug     = regexp.MustCompile(`/ver/([^/?#]+)`)
	trailingNum = regexp.MustCompile(`(\d+)/?$`)
)

// monosLayout is what differs between the MonosChinos mirrors: the
// directory path, its sections and how episode pages are addressed.
type monosLayout struct {
	name      string
	directory string // Listing and search path
	sections  [][2]string

	// episodeCount reads the series episode count from div.ep_count and
	// addresses episodes as /ver/<slug>-episodio-<n>. Otherwise the count
	// comes from section.caplist and episodes are /ver/<slug>/<n>.
	episodeCount bool
}

var (
	monosClassic = monosLayout{
		name:      "monoschinos",
		directory: "/directorio",
		sections: [][2]string{
			{"Animes (TV)", "tipo=tv&orden=desc"},
			{"Películas", "tipo=pelicula&orden=desc"},
			{"OVAs", "tipo=ova&orden=desc"},
			{"Especiales", "tipo=especial&orden=desc"},
			{"Anime Latino", "buscar=latino&tipo=tv&orden=desc"},
			{"Películas Latino", "buscar=latino&tipo=pelicula&orden=desc"},
		},
	}
	monos2 = monosLayout{
		name:      "monoschinos2",
		directory: "/animes",
		sections: [][2]string{
			{"Animes (TV)", "tipo=anime&orden=desc"},
			{"Películas", "tipo=pelicula&orden=desc"},
			{"Donghua", "tipo=donghua&orden=desc"},
			{"Especiales", "tipo=especial&orden=desc"},
			{"ONA", "tipo=ona&orden=desc"},
			{"OVA", "tipo=ova&orden=desc"},
			{"Corto", "tipo=corto&orden=desc"},
			{"Anime Latino", "buscar=latino&tipo=anime&orden=desc"},
			{"Películas Latino", "buscar=latino&tipo=pelicula&orden=desc"},
		},
		episodeCount: true,
	}
)

// MonosChinos scrapes an anime directory whose player list is fetched with
// an AJAX POST and whose server URLs are base64 encoded.
type MonosChinos struct {
	scraper
	layout monosLayout
}

func NewMonosChinos(mainURL string, d Deps) *MonosChinos {
	return &MonosChinos{scraper: newScraper(monosClassic.name, mainURL, d), layout: monosClassic}
}

// NewMonosChinos2 scrapes the monoschinos2 mirror, which lists under
// /animes and numbers episode pages by slug suffix.
func NewMonosChinos2(mainURL string, d Deps) *MonosChinos {
	return &MonosChinos{scraper: newScraper(monos2.name, mainURL, d), layout: monos2}
}

func (m *MonosChinos) Sections() []media.SectionRequest {
	dir := m.mainURL + m.layout.directory + "?"
	out := make([]media.SectionRequest, len(m.layout.sections))
	for i, sec := range m.layout.sections {
		out[i] = media.SectionRequest{Name: sec[0], Data: dir + sec[1]}
	}
	return out
}

func (m *MonosChinos) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	pageURL := fmt.Sprintf("%s&pag=%d", req.Data, max(req.Page, 1))
	doc, err := m.document(ctx, pageURL)
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	section.Entries = m.parseListing(doc.Find("div#listanime ul li a[href*='/anime/'], div#listanime ul li a[href*='/ver/']"))
	section.HasNext = len(section.Entries) > 0
	return section, nil
}

func (m *MonosChinos) parseListing(links *goquery.Selection) []media.Entry {
	var entries []media.Entry
	seen := make(map[string]bool)
	links.Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		heading := "h3"
		if strings.Contains(href, "/ver/") {
			heading = "h2"
		}
		title := strings.TrimSpace(a.Find(heading).First().Text())
		if title == "" || href == "" {
			return
		}
		link := m.abs(href)
		if seen[link] {
			return
		}
		seen[link] = true

		e := media.Entry{
			Provider: m.name,
			Title:    title,
			URL:      link,
			Poster:   m.poster(a.Find("img").First()),
			Kind:     media.Anime,
		}
		if ep := strings.TrimSpace(a.Find(".episode").First().Text()); ep != "" {
			e.Note = "Episodio " + ep
		}
		entries = append(entries, e)
	})
	return entries
}

// poster skips the site's placeholder images.
func (m *MonosChinos) poster(img *goquery.Selection) string {
	src := imageSource(img, "data-src", "src")
	for _, placeholder := range []string{"anime.png", "episode.png", "placeholder"} {
		if strings.Contains(src, placeholder) {
			return ""
		}
	}
	if src == "" {
		return ""
	}
	return m.abs(src)
}

func (m *MonosChinos) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	doc, err := m.document(ctx, m.mainURL+m.layout.directory+"?buscar="+httputil.EncodeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return m.parseListing(doc.Find("div#listanime ul li a[href*='/anime/']")), nil
}

// Load accepts series pages and episode pages; an episode page loads its
// series. On the episode-count layout a standalone episode page (a short
// or special without an episode list) loads as itself.
func (m *MonosChinos) Load(ctx context.Context, rawURL string) (*media.Detail, error) {
	if sm := verSlug.FindStringSubmatch(rawURL); sm != nil && !m.layout.episodeCount {
		rawURL = m.mainURL + "/anime/" + sm[1]
	}
	doc, err := m.document(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", rawURL, err)
	}
	if m.layout.episodeCount {
		return m.parseCountedDetail(doc, rawURL), nil
	}
	return m.parseDetail(doc, rawURL), nil
}

// detailMeta reads the title, poster and plot shared by both layouts.
func (m *MonosChinos) detailMeta(doc *goquery.Document, rawURL string) *media.Detail {
	ogTitle, _, _ := strings.Cut(doc.Find("meta[property='og:title']").AttrOr("content", ""), " | ")
	d := &media.Detail{
		Provider: m.name,
		Title:    firstNonEmpty(doc.Find("h1.fs-2, h1.fs-3, h1").First().Text(), ogTitle, "Sin título"),
		URL:      rawURL,
		Kind:     media.Anime,
		Poster: firstNonEmpty(
			doc.Find("meta[property='og:image']").AttrOr("content", ""),
			doc.Find("img.lazy[data-src]").First().AttrOr("data-src", ""),
			doc.Find("img[src*='/cdn/img/anime/']").First().AttrOr("src", ""),
		),
		Plot: firstNonEmpty(
			doc.Find(".txt.sp p").First().Text(),
			doc.Find("meta[property='og:description']").AttrOr("content", ""),
			doc.Find("meta[name='description']").AttrOr("content", ""),
			doc.Find("p").First().Text(),
		),
	}
	if d.Poster != "" {
		d.Poster = m.abs(d.Poster)
	}
	return d
}

func (m *MonosChinos) parseDetail(doc *goquery.Document, rawURL string) *media.Detail {
	d := m.detailMeta(doc, rawURL)

	kind := strings.ToLower(doc.Find(".badge.text-bg-dark, dl dd").First().Text())
	caplist := doc.Find("section.caplist").First()
	count, _ := strconv.Atoi(caplist.AttrOr("data-e", ""))
	slug := caplist.AttrOr("data-u", "")

	switch {
	case (strings.Contains(kind, "película") || strings.Contains(kind, "movie") || count == 1) && slug != "":
		d.Kind = media.Movie
		d.Episodes = []media.Episode{{
			Name: "Película Completa", Data: m.mainURL + "/ver/" + slug + "/1",
			Season: 1, Number: 1, Poster: d.Poster,
		}}
	case count > 0 && slug != "":
		for i := 1; i <= count; i++ {
			d.Episodes = append(d.Episodes, media.Episode{
				Name:   "Episodio " + strconv.Itoa(i),
				Data:   fmt.Sprintf("%s/ver/%s/%d", m.mainURL, slug, i),
				Season: 1,
				Number: i,
				Poster: d.Poster,
			})
		}
	default:
		d.Episodes = m.linkedEpisodes(doc, d.Poster)
	}
	return d
}

// parseCountedDetail handles the episode-count layout.
func (m *MonosChinos) parseCountedDetail(doc *goquery.Document, rawURL string) *media.Detail {
	d := m.detailMeta(doc, rawURL)

	if strings.Contains(rawURL, "/ver/") && doc.Find("section.caplist[data-e]").Length() == 0 {
		n := 1
		if sm := trailingNum.FindStringSubmatch(rawURL); sm != nil {
			n, _ = strconv.Atoi(sm[1])
		}
		d.Episodes = []media.Episode{{
			Name: fmt.Sprintf("Episodio %d (Especial)", n), Data: rawURL, Season: 1, Number: n, Poster: d.Poster,
		}}
		return d
	}

	count, _ := strconv.Atoi(strings.TrimSpace(doc.Find("div.ep_count").First().Text()))
	slug := strings.TrimSuffix(rawURL, "/")
	slug = slug[strings.LastIndex(slug, "/")+1:]
	if count > 0 && slug != "" {
		for i := 1; i <= count; i++ {
			d.Episodes = append(d.Episodes, media.Episode{
				Name:   "Episodio " + strconv.Itoa(i),
				Data:   fmt.Sprintf("%s/ver/%s-episodio-%d", m.mainURL, slug, i),
				Season: 1,
				Number: i,
				Poster: d.Poster,
			})
		}
		return d
	}
	d.Episodes = m.linkedEpisodes(doc, d.Poster)
	return d
}

// linkedEpisodes collects the /ver/ links on a page, numbered by their
// trailing digits and sorted.
func (m *MonosChinos) linkedEpisodes(doc *goquery.Document, poster string) []media.Episode {
	var eps []media.Episode
	seen := make(map[string]bool)
	doc.Find("a[href*='/ver/']").Each(func(_ int, a *goquery.Selection) {
		href := m.abs(a.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		n := len(eps) + 1
		if sm := trailingNum.FindStringSubmatch(href); sm != nil {
			n, _ = strconv.Atoi(sm[1])
		}
		eps = append(eps, media.Episode{
			Name: "Episodio " + strconv.Itoa(n), Data: href, Season: 1, Number: n, Poster: poster,
		})
	})
	sort.SliceStable(eps, func(i, j int) bool { return eps[i].Number < eps[j].Number })
	return eps
}

// LoadLinks asks the site for the server list, decodes each server URL, and
// also tries the iframes and download buttons already on the page.
func (m *MonosChinos) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	res, err := m.fetcher.Get(ctx, data, map[string]string{"Referer": m.mainURL + "/"})
	if err != nil {
		m.logger.Debug().Err(err).Msg("loading episode page")
		return false
	}
	doc := res.Document()

	var embeds []string
	if encrypt := doc.Find("ul.nav-tabs[data-encrypt]").First().AttrOr("data-encrypt", ""); encrypt != "" {
		form := url.Values{"acc": {"opt"}, "i": {encrypt}}
		servers, err := m.fetcher.PostForm(ctx, m.mainURL+"/ajax_pagination", form, map[string]string{"Referer": data})
		if err != nil {
			m.logger.Debug().Err(err).Msg("loading server list")
		} else {
			sdoc := servers.Document()
			sdoc.Find("button.play-video[data-player]").Each(func(_ int, b *goquery.Selection) {
				decoded, err := extract.DecodeBase64(b.AttrOr("data-player", ""))
				if decoded = strings.TrimSpace(decoded); err == nil && strings.HasPrefix(decoded, "http") {
					embeds = append(embeds, decoded)
				}
			})
			embeds = append(embeds, frameSources(sdoc.Selection, servers.FinalURL)...)
		}
	}
	embeds = append(embeds, frameSources(doc.Selection, res.FinalURL)...)
	doc.Find("a.btn-warning[target='_blank'][href]").Each(func(_ int, a *goquery.Selection) {
		embeds = append(embeds, httputil.ResolveReference(res.FinalURL, a.AttrOr("href", "")))
	})

	return m.resolveEach(ctx, embeds, data, out)
}

func frameSources(root *goquery.Selection, base string) []string {
	var out []string
	root.Find("div.ifplay iframe[src], iframe[src]").Each(func(_ int, f *goquery.Selection) {
		if u := httputil.ResolveReference(base, f.AttrOr("src", "")); u != "" {
			out = append(out, u)
		}
	})
	return out
}
