package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"scrapecast/internal/extract"
	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

const (
	latanimeURL = "https://latanime.org"

	// latanimeGenresURL is a community-maintained genre list for the site.
	latanimeGenresURL = "https://raw.githubusercontent.com/mobilelegendsbkrjd-oss/lat_cs_bkrjd/main/ListaLA.json"

	// latanimeGenres is the Data of the genre section.
	latanimeGenres = "categorias"
)

var (
	playerURL   = regexp.MustCompile(`https?://[^"'\s]+`)
	nonLetters  = regexp.MustCompile(`[^A-Za-zÁÉÍÓÚáéíóúñÑ ]`)
	genreFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", " ", "")
)

// Latanime scrapes an anime site whose player buttons carry base64 embed
// URLs. Genres come from a JSON list kept outside the site.
type Latanime struct {
	scraper
	genresURL string

	mu     sync.Mutex
	genres map[string]string // folded name -> listing URL
}

func NewLatanime(mainURL string, d Deps) *Latanime {
	return &Latanime{scraper: newScraper("latanime", mainURL, d), genresURL: latanimeGenresURL}
}

func (l *Latanime) Sections() []media.SectionRequest {
	return []media.SectionRequest{
		{Name: "En Emisión", Data: l.mainURL + "/emision"},
		{Name: "Anime Latino", Data: l.mainURL + "/animes?fecha=false&genero=false&letra=false&categoria=latino"},
		{Name: "Anime Subtitulado", Data: l.mainURL + "/animes?fecha=false&genero=false&letra=false&categoria=anime"},
		{Name: "Categorías", Data: latanimeGenres},
	}
}

func (l *Latanime) ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error) {
	section := media.Section{Name: req.Name}
	if req.Data == latanimeGenres {
		if req.Page > 1 {
			return section, nil
		}
		entries, err := l.genreEntries(ctx)
		if err != nil {
			return section, fmt.Errorf("listing %s: %w", req.Name, err)
		}
		section.Entries = entries
		return section, nil
	}

	sep := "?"
	if strings.Contains(req.Data, "?") {
		sep = "&"
	}
	doc, err := l.document(ctx, req.Data+sep+"p="+strconv.Itoa(max(req.Page, 1)))
	if err != nil {
		return section, fmt.Errorf("listing %s: %w", req.Name, err)
	}
	section.Entries = l.parseCards(doc)
	section.HasNext = doc.Find("a[rel='next']").Length() > 0 ||
		doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.Contains(a.Text(), "Siguiente")
		}).Length() > 0
	return section, nil
}

func (l *Latanime) parseCards(doc *goquery.Document) []media.Entry {
	var entries []media.Entry
	doc.Find("div.row a").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Find("h3").Text())
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if title == "" || href == "" {
			return
		}
		e := media.Entry{Provider: l.name, Title: title, URL: l.abs(href), Kind: media.Anime}
		if src := a.Find("img").First().AttrOr("data-src", ""); src != "" {
			e.Poster = l.abs(src)
		}
		entries = append(entries, e)
	})
	return entries
}

type latanimeGenre struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// genreEntries fetches the genre list and refreshes the lookup used by
// Search.
func (l *Latanime) genreEntries(ctx context.Context) ([]media.Entry, error) {
	var list []latanimeGenre
	if err := l.fetcher.GetJSON(ctx, l.genresURL, nil, &list); err != nil {
		return nil, err
	}
	lookup := make(map[string]string, len(list))
	var entries []media.Entry
	for _, g := range list {
		title := strings.TrimSpace(nonLetters.ReplaceAllString(g.Title, ""))
		if title == "" || g.URL == "" {
			continue
		}
		target := g.URL
		if _, q, ok := strings.Cut(g.URL, "/buscar?q="); ok {
			target = l.mainURL + "/animes?genero=" + foldGenre(q)
		}
		lookup[foldGenre(title)] = target
		entries = append(entries, media.Entry{Provider: l.name, Title: title, URL: target, Kind: media.Anime})
	}

	l.mu.Lock()
	l.genres = lookup
	l.mu.Unlock()
	return entries, nil
}

func foldGenre(s string) string {
	return genreFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Search lists a genre when the query names one, and runs a site search
// otherwise.
func (l *Latanime) Search(ctx context.Context, query string) ([]media.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	l.mu.Lock()
	loaded := l.genres != nil
	l.mu.Unlock()
	if !loaded {
		if _, err := l.genreEntries(ctx); err != nil {
			l.logger.Debug().Err(err).Msg("loading genre list")
		}
	}

	l.mu.Lock()
	target, isGenre := l.genres[foldGenre(query)]
	l.mu.Unlock()
	if !isGenre {
		target = l.mainURL + "/buscar?q=" + httputil.EncodeQuery(query)
	}
	doc, err := l.document(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	return l.parseCards(doc), nil
}

// Load returns a title with its episodes. Genre listing URLs load as a
// detail without episodes whose related entries are the listing.
func (l *Latanime) Load(ctx context.Context, url string) (*media.Detail, error) {
	doc, err := l.document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	if strings.Contains(url, "/animes?genero=") {
		return &media.Detail{
			Provider: l.name,
			Title:    "Categoría",
			URL:      url,
			Kind:     media.Anime,
			Related:  l.parseCards(doc),
		}, nil
	}

	d := &media.Detail{
		Provider: l.name,
		Title:    firstNonEmpty(doc.Find("h2").First().Text(), "Desconocido"),
		URL:      url,
		Kind:     media.Anime,
		Poster:   doc.Find("meta[property='og:image']").AttrOr("content", ""),
		Plot:     strings.TrimSpace(doc.Find("h2 ~ p.my-2").First().Text()),
	}
	eps := doc.Find("div.row a[href*='/ver/']")
	if eps.Length() <= 1 {
		d.Kind = media.Movie
		d.Episodes = []media.Episode{{Name: d.Title, Data: l.abs(firstNonEmpty(eps.First().AttrOr("href", ""), url))}}
		return d, nil
	}
	eps.Each(func(i int, a *goquery.Selection) {
		href := l.abs(a.AttrOr("href", ""))
		n := i + 1
		if m := trailingNum.FindStringSubmatch(href); m != nil {
			n, _ = strconv.Atoi(m[1])
		}
		d.Episodes = append(d.Episodes, media.Episode{
			Name:   firstNonEmpty(a.Find("h2, h3").First().Text(), "Episodio "+strconv.Itoa(n)),
			Data:   href,
			Season: 1,
			Number: n,
		})
	})
	return d, nil
}

// LoadLinks decodes the data-player attribute of every player button.
func (l *Latanime) LoadLinks(ctx context.Context, data string, out *sink.Sink) bool {
	doc, err := l.document(ctx, data)
	if err != nil {
		l.logger.Debug().Err(err).Msg("loading episode page")
		return false
	}
	var embeds []string
	doc.Find("#play-video a").Each(func(_ int, a *goquery.Selection) {
		decoded, err := extract.DecodeBase64(a.AttrOr("data-player", ""))
		if err != nil {
			return
		}
		if u := playerURL.FindString(decoded); u != "" {
			embeds = append(embeds, u)
		}
	})
	return l.resolveEach(ctx, embeds, data, out)
}
