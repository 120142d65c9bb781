package provider

import (
	"context"
	"encoding/base64"
	"reflect"
	"testing"

	"scrapecast/internal/media"
)

const latanimeGenreList = `[
	{"title": "Acción ⚔️", "url": "https://latanime.org/buscar?q=Acción"},
	{"title": "Ciencia Ficción", "url": "https://latanime.org/buscar?q=Ciencia Ficción"},
	{"title": "🎃", "url": "https://latanime.org/buscar?q=halloween"},
	{"title": "Isekai", "url": "https://latanime.org/animes?genero=isekai"}
]`

func newTestLatanime(site *fixtureSite) *Latanime {
	l := NewLatanime(site.URL(), testDeps())
	l.genresURL = site.URL() + "/ListaLA.json"
	return l
}

func TestLatanimeListCatalog(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/emision?p=2": "@latanime_list.html"})
	l := newTestLatanime(site)
	base := site.URL()

	sec, err := l.ListCatalog(context.Background(), media.SectionRequest{Name: "En Emisión", Data: base + "/emision", Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "latanime", Title: "Sousou no Frieren", URL: base + "/anime/sousou-no-frieren", Poster: base + "/assets/img/frieren.jpg", Kind: media.Anime},
		{Provider: "latanime", Title: "Dandadan", URL: base + "/anime/dandadan", Kind: media.Anime},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}
	if !sec.HasNext {
		t.Error("HasNext = false")
	}
}

func TestLatanimeListCatalogAppendsPageToQuery(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/animes?fecha=false&genero=false&letra=false&categoria=latino&p=1": "@latanime_list.html",
	})
	l := newTestLatanime(site)

	sec, err := l.ListCatalog(context.Background(), l.Sections()[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(sec.Entries) != 2 {
		t.Errorf("got %d entries, want 2", len(sec.Entries))
	}
}

func TestLatanimeGenres(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/ListaLA.json":               latanimeGenreList,
		"/animes?genero=accion":       "@latanime_list.html",
		"/buscar?q=sousou+no+frieren": "@latanime_list.html",
	})
	l := newTestLatanime(site)
	base := site.URL()

	sec, err := l.ListCatalog(context.Background(), media.SectionRequest{Name: "Categorías", Data: latanimeGenres, Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []media.Entry{
		{Provider: "latanime", Title: "Acción", URL: base + "/animes?genero=accion", Kind: media.Anime},
		{Provider: "latanime", Title: "Ciencia Ficción", URL: base + "/animes?genero=cienciaficcion", Kind: media.Anime},
		{Provider: "latanime", Title: "Isekai", URL: "https://latanime.org/animes?genero=isekai", Kind: media.Anime},
	}
	if !reflect.DeepEqual(sec.Entries, want) {
		t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, want)
	}

	t.Run("second page is empty", func(t *testing.T) {
		sec, err := l.ListCatalog(context.Background(), media.SectionRequest{Name: "Categorías", Data: latanimeGenres, Page: 2})
		if err != nil || len(sec.Entries) != 0 {
			t.Errorf("page 2 = %+v, %v", sec.Entries, err)
		}
	})

	t.Run("search by genre name", func(t *testing.T) {
		got, err := l.Search(context.Background(), "ACCIÓN")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || site.hits("/animes?genero=accion") != 1 {
			t.Errorf("got %d entries, genre listing hits = %d", len(got), site.hits("/animes?genero=accion"))
		}
	})

	t.Run("search by title", func(t *testing.T) {
		got, err := l.Search(context.Background(), "sousou no  frieren")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || site.hits("/buscar?q=") != 1 {
			t.Errorf("got %d entries, search hits = %d", len(got), site.hits("/buscar?q="))
		}
	})

	if n := site.hits("/ListaLA.json"); n != 1 {
		t.Errorf("genre list fetched %d times, want 1", n)
	}
}

func TestLatanimeSearchWithoutGenreList(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/buscar?q=dandadan": "@latanime_list.html"})
	l := newTestLatanime(site)

	got, err := l.Search(context.Background(), "dandadan")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Sousou no Frieren", "Dandadan"}; !reflect.DeepEqual(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}
}

func TestLatanimeLoad(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/anime/sousou-no-frieren": "@latanime_series.html",
		"/anime/suzume":            "@latanime_movie.html",
		"/animes?genero=isekai":    "@latanime_list.html",
	})
	l := newTestLatanime(site)
	base := site.URL()

	t.Run("series", func(t *testing.T) {
		d, err := l.Load(context.Background(), base+"/anime/sousou-no-frieren")
		if err != nil {
			t.Fatal(err)
		}
		if d.Title != "Sousou no Frieren" || d.Kind != media.Anime || d.Poster != base+"/assets/img/frieren-cover.jpg" {
			t.Errorf("detail = %q %v %q", d.Title, d.Kind, d.Poster)
		}
		if d.Plot != "Una elfa maga recorre el mundo tras la victoria." {
			t.Errorf("plot = %q", d.Plot)
		}
		want := []media.Episode{
			{Name: "Capítulo 1", Data: base + "/ver/sousou-no-frieren-episodio-1", Season: 1, Number: 1},
			{Name: "Episodio 2", Data: base + "/ver/sousou-no-frieren-episodio-2", Season: 1, Number: 2},
		}
		if !reflect.DeepEqual(d.Episodes, want) {
			t.Errorf("episodes:\n got %+v\nwant %+v", d.Episodes, want)
		}
	})

	t.Run("movie", func(t *testing.T) {
		d, err := l.Load(context.Background(), base+"/anime/suzume")
		if err != nil {
			t.Fatal(err)
		}
		want := []media.Episode{{Name: "Suzume", Data: base + "/ver/suzume-episodio-1"}}
		if d.Kind != media.Movie || !reflect.DeepEqual(d.Episodes, want) {
			t.Errorf("detail = %v %+v", d.Kind, d.Episodes)
		}
	})

	t.Run("genre listing", func(t *testing.T) {
		d, err := l.Load(context.Background(), base+"/animes?genero=isekai")
		if err != nil {
			t.Fatal(err)
		}
		if d.Title != "Categoría" || len(d.Episodes) != 0 || len(d.Related) != 2 {
			t.Errorf("detail = %q with %d episodes and %d related", d.Title, len(d.Episodes), len(d.Related))
		}
	})
}

func TestLatanimeLoadLinks(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/embed/l1": `<script>var src = "{{BASE}}/hls/l1.m3u8";</script>`,
	})
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	site.routes["/ver/frieren-episodio-1"] = `<html><body><ul id="play-video">` +
		`<li><a data-player="` + b64(site.URL()+"/embed/l1") + `">Servidor 1</a></li>` +
		`<li><a data-player="` + b64("sin enlace") + `">Roto</a></li>` +
		`<li><a data-player="%%%">Inválido</a></li>` +
		`</ul></body></html>`

	l := newTestLatanime(site)
	out, links := collect()
	if !l.LoadLinks(context.Background(), site.URL()+"/ver/frieren-episodio-1", out) {
		t.Fatal("LoadLinks = false")
	}
	got := links()
	if len(got) != 1 || got[0].URL != site.URL()+"/hls/l1.m3u8" {
		t.Errorf("links = %+v", got)
	}
}
