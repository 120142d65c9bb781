package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
)

func TestCablevisionListCatalog(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/": "@cablevision_home.html"})
	c := NewCablevision(site.URL(), testDeps())
	base := site.URL()

	sec, err := c.ListCatalog(context.Background(), c.Sections()[0])
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "cablevisionhd", Title: "ESPN", URL: base + "/canal/espn", Poster: base + "/img/espn.png", Kind: media.Live},
		{Provider: "cablevisionhd", Title: "Fox Sports", URL: base + "/canal/fox-sports", Poster: base + "/img/fox.png", Kind: media.Live},
		{Provider: "cablevisionhd", Title: "Discovery Channel", URL: base + "/canal/discovery", Poster: base + "/img/discovery.png", Kind: media.Live},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}
	if sec.HasNext {
		t.Error("channel grid has no further pages")
	}
}

func TestCablevisionSearch(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/": "@cablevision_home.html"})
	c := NewCablevision(site.URL(), testDeps())

	tests := []struct {
		query string
		want  []string
	}{
		{"espn", []string{"ESPN"}},
		{"  SPORTS ", []string{"Fox Sports"}},
		{"hbo", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := c.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if g := titles(got); !reflect.DeepEqual(g, tt.want) {
				t.Errorf("titles = %v, want %v", g, tt.want)
			}
		})
	}
}

func TestCablevisionLoad(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/canal/espn":    "@cablevision_channel.html",
		"/canal/sin-h1":  "<html><body><p>nada</p></body></html>",
	})
	c := NewCablevision(site.URL(), testDeps())

	d, err := c.Load(context.Background(), site.URL()+"/canal/espn")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "ESPN en vivo" || d.Kind != media.Live || d.Poster != site.URL()+"/img/espn-large.png" {
		t.Errorf("detail = %q %v %q", d.Title, d.Kind, d.Poster)
	}
	if len(d.Episodes) != 1 || d.Episodes[0].Data != site.URL()+"/canal/espn" {
		t.Errorf("episodes = %+v", d.Episodes)
	}

	d, err = c.Load(context.Background(), site.URL()+"/canal/sin-h1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Canal en Vivo" {
		t.Errorf("default title = %q", d.Title)
	}
}

func TestCablevisionLoadLinks(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/canal/espn": "@cablevision_channel.html"})
	stream := site.URL() + "/live/espn/index.m3u8?token=abc"
	site.routes["/embed/espn.php"] = `<script>var src = atob("` +
		base64.StdEncoding.EncodeToString([]byte(stream)) + `");</script>`

	c := NewCablevision(site.URL(), testDeps())
	out, links := collect()

	if !c.LoadLinks(context.Background(), site.URL()+"/canal/espn", out) {
		t.Fatal("LoadLinks = false")
	}
	got := links()
	if len(got) != 1 {
		t.Fatalf("got %d links, want 1", len(got))
	}
	if got[0].URL != stream || got[0].Quality != 720 || !got[0].Adaptive {
		t.Errorf("link = %+v", got[0])
	}

	site.mu.Lock()
	defer site.mu.Unlock()
	for _, r := range site.requests {
		if got := r.Header.Get("Origin"); got != site.URL() {
			t.Errorf("%s sent Origin %q, want %q", r.URL.Path, got, site.URL())
		}
	}
}

func testVariant(base string) LiveVariant {
	return LiveVariant{
		Name:          "luchas",
		MainURL:       base + "/tv",
		PathFilter:    "/tv/coli",
		TitleSuffix:   " - TV LatinLuchas",
		Section:       "Eventos",
		DefaultPoster: base + "/img/default.jpg",
		DefaultPlot:   "Evento",
	}
}

func TestLiveSiteListCatalog(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/tv": "@livesite_home.html"})
	base := site.URL()
	l := NewLiveSite(testVariant(base), testDeps())

	sec, err := l.ListCatalog(context.Background(), l.Sections()[0])
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "luchas", Title: "AAA Triplemanía XXXII", URL: base + "/tv/coliseo-aaa-triplemania/", Poster: base + "/img/default.jpg", Kind: media.Live},
		{Provider: "luchas", Title: "WWE Raw en vivo", URL: base + "/tv/coliseo-wwe-raw/", Poster: base + "/img/default.jpg", Kind: media.Live},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}
	if sec.Name != "Eventos" {
		t.Errorf("section name = %q", sec.Name)
	}

	got, err := l.Search(context.Background(), "raw")
	if err != nil {
		t.Fatal(err)
	}
	if g := titles(got); !reflect.DeepEqual(g, []string{"WWE Raw en vivo"}) {
		t.Errorf("search = %v", g)
	}
}

func TestLiveSiteListCatalogError(t *testing.T) {
	site := newFixtureSite(t, map[string]string{})
	l := NewLiveSite(testVariant(site.URL()), testDeps())
	if _, err := l.ListCatalog(context.Background(), l.Sections()[0]); err == nil {
		t.Error("expected an error for a missing home page")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.ListCatalog(ctx, l.Sections()[0]); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestLiveSiteHonorsRobots(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/robots.txt": "User-agent: *\nDisallow: /tv\n",
		"/tv":         "@livesite_home.html",
	})
	d := testDeps()
	d.Fetcher = httputil.NewFetcher(httputil.Options{RespectRobots: true})
	l := NewLiveSite(testVariant(site.URL()), d)

	_, err := l.ListCatalog(context.Background(), l.Sections()[0])
	if !httputil.IsNetworkError(err) {
		t.Fatalf("err = %v, want a NetworkError", err)
	}
	if n := site.hits("/tv"); n != 0 {
		t.Errorf("collector fetched a disallowed page %d times", n)
	}
	if n := site.hits("/robots.txt"); n != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", n)
	}
}

func TestLiveSiteStatusError(t *testing.T) {
	site := newFixtureSite(t, map[string]string{})
	l := NewLiveSite(testVariant(site.URL()), testDeps())

	_, err := l.Load(context.Background(), site.URL()+"/tv/coliseo-missing/")
	var ne *httputil.NetworkError
	if !errors.As(err, &ne) || ne.StatusCode != http.StatusNotFound {
		t.Errorf("err = %v, want a 404 NetworkError", err)
	}
}

func TestLiveSiteLoad(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/tv/coliseo-aaa-triplemania/": "@livesite_event.html",
		"/tv/coliseo-vacio/":           "<html><body></body></html>",
	})
	l := NewLiveSite(testVariant(site.URL()), testDeps())

	d, err := l.Load(context.Background(), site.URL()+"/tv/coliseo-aaa-triplemania/")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "AAA Triplemanía XXXII" || d.Plot != "Repetición completa de Triplemanía." || d.Kind != media.Live {
		t.Errorf("detail = %q %q %v", d.Title, d.Plot, d.Kind)
	}

	d, err = l.Load(context.Background(), site.URL()+"/tv/coliseo-vacio/")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Evento en vivo" || d.Plot != "Evento" {
		t.Errorf("defaults = %q %q", d.Title, d.Plot)
	}
}

func TestLiveSiteLoadLinks(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/tv/coliseo-aaa-triplemania/": "@livesite_event.html",
		"/embed/live1":                 `<script>var hls = "{{BASE}}/hls/tm.m3u8";</script>`,
	})
	l := NewLiveSite(testVariant(site.URL()), testDeps())
	out, links := collect()

	if !l.LoadLinks(context.Background(), site.URL()+"/tv/coliseo-aaa-triplemania/", out) {
		t.Fatal("LoadLinks = false")
	}
	got := links()
	if len(got) != 1 || got[0].URL != site.URL()+"/hls/tm.m3u8" || got[0].Source != "luchas" {
		t.Errorf("links = %+v", got)
	}
	if site.hits("/embed/live2") != 1 {
		t.Error("second iframe was not tried")
	}
}
