package provider

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"scrapecast/internal/media"
)

func TestCinecalidadListCatalog(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/ver-serie/page/2": "@cinecalidad_list.html"})
	c := NewCinecalidad(site.URL(), testDeps())
	base := site.URL()

	sec, err := c.ListCatalog(context.Background(), media.SectionRequest{Name: "Series", Data: base + "/ver-serie/page/", Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "cinecalidad", Title: "Dune: Parte Dos", URL: base + "/ver-pelicula/dune-parte-dos/", Poster: base + "/wp-content/uploads/dune.jpg", Kind: media.Movie},
		{Provider: "cinecalidad", Title: "The Last of Us", URL: base + "/ver-serie/the-last-of-us/", Poster: base + "/wp-content/uploads/tlou.jpg", Kind: media.Series},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}
	if !sec.HasNext {
		t.Error("HasNext = false")
	}
}

func TestCinecalidadSections(t *testing.T) {
	secs := NewCinecalidad("https://cinecalidad.example/", testDeps()).Sections()
	if len(secs) != 3 {
		t.Fatalf("got %d sections, want 3", len(secs))
	}
	if secs[1].Data != "https://cinecalidad.example/page/" {
		t.Errorf("movies section = %q", secs[1].Data)
	}
}

func TestCinecalidadSearch(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/?s=dune+parte": "@cinecalidad_list.html"})
	c := NewCinecalidad(site.URL(), testDeps())

	got, err := c.Search(context.Background(), "dune parte")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Dune: Parte Dos", "The Last of Us"}; !reflect.DeepEqual(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}
	if got, _ := c.Search(context.Background(), "  "); got != nil {
		t.Errorf("blank query = %v", got)
	}
}

func TestCinecalidadLoad(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/ver-pelicula/dune-parte-dos/": "@cinecalidad_movie.html",
		"/ver-serie/the-last-of-us/":    "@cinecalidad_series.html",
		"/ver-pelicula/retirada/":       `<html><body><p>Contenido no disponible</p></body></html>`,
	})
	c := NewCinecalidad(site.URL(), testDeps())
	base := site.URL()

	tests := []struct {
		name     string
		path     string
		kind     media.Kind
		plot     string
		episodes []media.Episode
	}{
		{
			name: "movie",
			path: "/ver-pelicula/dune-parte-dos/",
			kind: media.Movie,
			plot: "Paul Atreides se une a los Fremen.",
			episodes: []media.Episode{
				{Name: "Dune: Parte Dos", Data: base + "/ver-pelicula/dune-parte-dos/"},
			},
		},
		{
			name: "series",
			path: "/ver-serie/the-last-of-us/",
			kind: media.Series,
			plot: "Joel escolta a Ellie.",
			episodes: []media.Episode{
				{Name: "Capítulo 1", Data: base + "/ver-serie/the-last-of-us/capitulo-1/", Season: 1, Number: 1},
				{Name: "Capítulo 2", Data: base + "/ver-serie/the-last-of-us/capitulo-2/", Season: 1, Number: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Load(context.Background(), base+tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if d.Kind != tt.kind || d.Plot != tt.plot {
				t.Errorf("detail = %v %q", d.Kind, d.Plot)
			}
			if !reflect.DeepEqual(d.Episodes, tt.episodes) {
				t.Errorf("episodes:\n got %+v\nwant %+v", d.Episodes, tt.episodes)
			}
		})
	}

	t.Run("no heading", func(t *testing.T) {
		if _, err := c.Load(context.Background(), base+"/ver-pelicula/retirada/"); !errors.Is(err, errNoTitle) {
			t.Errorf("err = %v, want errNoTitle", err)
		}
	})
}

func TestCinecalidadLoadLinks(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/ver-pelicula/dune-parte-dos/": "@cinecalidad_movie.html",
		"/player/fembed-1":              `<script>var src = "{{BASE}}/hls/c1.m3u8";</script>`,
		"/embed/c2":                     `<script>var src = "{{BASE}}/hls/c2.m3u8";</script>`,
	})
	c := NewCinecalidad(site.URL(), testDeps())
	out, links := collect()

	if !c.LoadLinks(context.Background(), site.URL()+"/ver-pelicula/dune-parte-dos/", out) {
		t.Fatal("LoadLinks = false")
	}
	var urls []string
	for _, l := range links() {
		urls = append(urls, l.URL)
	}
	slices.Sort(urls)
	want := []string{site.URL() + "/hls/c1.m3u8", site.URL() + "/hls/c2.m3u8"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("links = %v, want %v", urls, want)
	}
}
