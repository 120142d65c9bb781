package provider

import (
	"context"
	"reflect"
	"testing"

	"scrapecast/internal/media"
)

func TestPelisplusHome(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/": "@pelisplus_home.html"})
	p := NewPelisplus(site.URL(), testDeps())
	base := site.URL()

	sec, err := p.ListCatalog(context.Background(), media.SectionRequest{Name: "Inicio", Data: base, Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "pelisplushd", Title: "Dune: Parte Dos", URL: base + "/pelicula/dune-parte-dos", Poster: base + "/poster/dune.jpg", Kind: media.Movie},
		{Provider: "pelisplushd", Title: "Shōgun", URL: base + "/serie/shogun", Poster: base + "/poster/shogun.jpg", Kind: media.Series},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}
	if sec.HasNext {
		t.Error("home page reports a next page")
	}

	sec, err = p.ListCatalog(context.Background(), media.SectionRequest{Name: "Inicio", Data: base, Page: 2})
	if err != nil || len(sec.Entries) != 0 {
		t.Errorf("home page 2 = %d entries, %v", len(sec.Entries), err)
	}
	if site.hits("/") != 1 {
		t.Errorf("home fetched %d times, want 1", site.hits("/"))
	}
}

func TestPelisplusListing(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/peliculas?page=3": "@pelisplus_list.html"})
	p := NewPelisplus(site.URL(), testDeps())
	base := site.URL()

	sec, err := p.ListCatalog(context.Background(), media.SectionRequest{Name: "Películas", Data: base + "/peliculas", Page: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "pelisplushd", Title: "Frieren", URL: base + "/anime/frieren", Poster: base + "/poster/frieren-300.jpg", Kind: media.Anime},
		{Provider: "pelisplushd", Title: "Queen of Tears", URL: base + "/dorama/queen-of-tears", Poster: base + "/poster/queen.jpg", Kind: media.Series},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}
	if !sec.HasNext {
		t.Error("HasNext = false, want true")
	}
}

func TestPelisplusSearch(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/search?s=queen+of+tears": "@pelisplus_list.html"})
	p := NewPelisplus(site.URL(), testDeps())

	got, err := p.Search(context.Background(), "queen   of tears")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Frieren", "Queen of Tears"}; !reflect.DeepEqual(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}
}

func TestPelisplusLoadSeries(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/serie/shogun": "@pelisplus_series.html"})
	p := NewPelisplus(site.URL(), testDeps())
	base := site.URL()

	d, err := p.Load(context.Background(), base+"/serie/shogun")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Shōgun" || d.Kind != media.Series || d.Year != 2024 || d.Plot != "Japón, 1600." {
		t.Errorf("detail = %q %v %d %q", d.Title, d.Kind, d.Year, d.Plot)
	}
	if d.Poster != base+"/poster/shogun.jpg" {
		t.Errorf("poster = %q", d.Poster)
	}
	if !reflect.DeepEqual(d.Tags, []string{"Drama", "Historia"}) {
		t.Errorf("tags = %v", d.Tags)
	}

	want := []media.Episode{
		{Name: "T1 - E1: Anjin", Data: base + "/serie/shogun/temporada/1/capitulo/1", Season: 1, Number: 1},
		{Name: "T1 - E2: Sirvientes", Data: base + "/serie/shogun/temporada/1/capitulo/2", Season: 1, Number: 2},
		{Name: "T2 - E1: Estreno", Data: base + "/serie/shogun/temporada/2/capitulo/1", Season: 2, Number: 1},
	}
	if !reflect.DeepEqual(d.Episodes, want) {
		t.Errorf("episodes:\n got %+v\nwant %+v", d.Episodes, want)
	}
	if len(d.Related) != 1 || d.Related[0].Title != "The Last Samurai" {
		t.Errorf("related = %+v", d.Related)
	}
}

func TestPelisplusLoadMovie(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/pelicula/dune-parte-dos": "@pelisplus_movie.html"})
	p := NewPelisplus(site.URL(), testDeps())
	url := site.URL() + "/pelicula/dune-parte-dos"

	d, err := p.Load(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != media.Movie || len(d.Episodes) != 1 || d.Episodes[0].Data != url || d.Episodes[0].Name != "Dune: Parte Dos" {
		t.Errorf("detail = %v %+v", d.Kind, d.Episodes)
	}
}

func TestPelisplusLoadLinksServerList(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/serie/shogun/temporada/1/capitulo/1": "@pelisplus_episode.html",
		"/embed/alive":                         `<video><source src="{{BASE}}/hls/shogun/index.m3u8"></video><script>var q = "720p";</script>`,
		"/embed/movie":                         `<script>"{{BASE}}/hls/wrong.m3u8"</script>`,
	})
	p := NewPelisplus(site.URL(), testDeps())
	out, links := collect()

	if !p.LoadLinks(context.Background(), site.URL()+"/serie/shogun/temporada/1/capitulo/1", out) {
		t.Fatal("LoadLinks = false")
	}
	got := links()
	if len(got) != 1 || got[0].URL != site.URL()+"/hls/shogun/index.m3u8" {
		t.Errorf("links = %+v", got)
	}
	if site.hits("/embed/dead") != 1 {
		t.Error("dead server was not tried")
	}
	if site.hits("/embed/movie") != 0 {
		t.Error("movie list was tried after the server list succeeded")
	}
}

func TestPelisplusLoadLinksMovieList(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/pelicula/dune-parte-dos": "@pelisplus_movie.html",
		"/embed/movie":             `<script>player.setup({file: "{{BASE}}/hls/dune.m3u8"});</script>`,
	})
	p := NewPelisplus(site.URL(), testDeps())
	out, links := collect()

	if !p.LoadLinks(context.Background(), site.URL()+"/pelicula/dune-parte-dos", out) {
		t.Fatal("LoadLinks = false")
	}
	if got := links(); len(got) != 1 || got[0].URL != site.URL()+"/hls/dune.m3u8" {
		t.Errorf("links = %+v", got)
	}
}

func TestPelisplusLoadLinksNothing(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/pelicula/vacia": "<html><body><h1>Vacía</h1></body></html>"})
	p := NewPelisplus(site.URL(), testDeps())
	out, links := collect()
	if p.LoadLinks(context.Background(), site.URL()+"/pelicula/vacia", out) || len(links()) != 0 {
		t.Error("expected no links")
	}
}
