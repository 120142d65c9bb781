package provider

import (
	"context"
	"reflect"
	"slices"
	"testing"

	"scrapecast/internal/media"
)

func TestPelisGratisListCatalog(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/peliculas/page/2":               "@pelisgratis_list.html",
		"/series":                         "@pelisgratis_list.html",
		"/peliculas/genero/comedia":       "@pelisgratis_links.html",
		"/peliculas/genero/accion/page/4": `<html><body><p>Sin resultados</p></body></html>`,
	})
	p := NewPelisGratis(site.URL(), testDeps())
	base := site.URL()

	tests := []struct {
		name    string
		req     media.SectionRequest
		want    []media.Entry
		hasNext bool
	}{
		{
			name: "movie cards",
			req:  media.SectionRequest{Name: "Películas Populares", Data: base + "/peliculas", Page: 2},
			want: []media.Entry{
				{Provider: "pelisgratishd", Title: "Dune", URL: base + "/peliculas/ver-dune", Poster: base + "/img/dune.webp", Kind: media.Movie},
			},
			hasNext: true,
		},
		{
			name: "series cards",
			req:  media.SectionRequest{Name: "Series Populares", Data: base + "/series/", Page: 1},
			want: []media.Entry{
				{Provider: "pelisgratishd", Title: "The Bear", URL: base + "/series/ver-the-bear", Poster: base + "/img/the-bear.webp", Kind: media.Series},
			},
			hasNext: true,
		},
		{
			name: "bare links",
			req:  media.SectionRequest{Name: "Comedia", Data: base + "/peliculas/genero/comedia"},
			want: []media.Entry{
				{Provider: "pelisgratishd", Title: "Dune", URL: base + "/peliculas/ver-dune", Poster: base + "/img/dune.webp", Kind: media.Movie},
				{Provider: "pelisgratishd", Title: "Dune: Parte Dos", URL: base + "/peliculas/ver-dune-parte-dos", Kind: media.Movie},
			},
			hasNext: true,
		},
		{
			name: "empty page",
			req:  media.SectionRequest{Name: "Acción", Data: base + "/peliculas/genero/accion", Page: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, err := p.ListCatalog(context.Background(), tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(sec.Entries, tt.want) {
				t.Errorf("entries:\n got %+v\nwant %+v", sec.Entries, tt.want)
			}
			if sec.HasNext != tt.hasNext {
				t.Errorf("HasNext = %v, want %v", sec.HasNext, tt.hasNext)
			}
		})
	}
}

func TestPelisGratisSearch(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/buscar?q=the+bear": "@pelisgratis_list.html"})
	p := NewPelisGratis(site.URL(), testDeps())

	got, err := p.Search(context.Background(), "the bear")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Dune", "The Bear"}; !reflect.DeepEqual(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}
}

func TestPelisGratisLoad(t *testing.T) {
	season1 := `<html><body>` +
		`<a href="/series/ver-the-bear/temporada-1/ver-episodio-1">Episodio 1</a>` +
		`<a href="/series/ver-the-bear/temporada-1/ver-episodio-2">Episodio 2</a>` +
		`<a href="/series/ver-the-bear/temporada-1/ver-episodio-2">Episodio 2</a>` +
		`</body></html>`
	season2 := `<html><body><a href="/series/ver-the-bear/temporada-2/ver-episodio-1">Episodio 1</a></body></html>`
	site := newFixtureSite(t, map[string]string{
		"/peliculas/ver-dune":              "@pelisgratis_movie.html",
		"/series/ver-the-bear":             "@pelisgratis_series.html",
		"/series/ver-the-bear/temporada-1": season1,
		"/series/ver-the-bear/temporada-2": season2,
	})
	p := NewPelisGratis(site.URL(), testDeps())
	base := site.URL()

	t.Run("movie", func(t *testing.T) {
		d, err := p.Load(context.Background(), base+"/peliculas/ver-dune")
		if err != nil {
			t.Fatal(err)
		}
		if d.Title != "Dune" || d.Year != 2021 || d.Kind != media.Movie {
			t.Errorf("detail = %q %d %v", d.Title, d.Year, d.Kind)
		}
		if d.Poster != base+"/img/dune-full.webp" || d.Plot != "Paul Atreides viaja a Arrakis." {
			t.Errorf("poster = %q, plot = %q", d.Poster, d.Plot)
		}
		if want := []string{"Acción", "Drama"}; !reflect.DeepEqual(d.Tags, want) {
			t.Errorf("tags = %v, want %v", d.Tags, want)
		}
		want := []media.Episode{{Name: "Dune", Data: base + "/peliculas/ver-dune"}}
		if !reflect.DeepEqual(d.Episodes, want) {
			t.Errorf("episodes = %+v", d.Episodes)
		}
	})

	t.Run("series walks season pages", func(t *testing.T) {
		d, err := p.Load(context.Background(), base+"/series/ver-the-bear")
		if err != nil {
			t.Fatal(err)
		}
		if d.Kind != media.Series || d.Plot != "Un chef vuelve a Chicago." {
			t.Errorf("detail = %v %q", d.Kind, d.Plot)
		}
		poster := base + "/img/the-bear.webp"
		want := []media.Episode{
			{Name: "Episodio 1", Data: base + "/series/ver-the-bear/temporada-1/ver-episodio-1", Season: 1, Number: 1, Poster: poster},
			{Name: "Episodio 2", Data: base + "/series/ver-the-bear/temporada-1/ver-episodio-2", Season: 1, Number: 2, Poster: poster},
			{Name: "Episodio 1", Data: base + "/series/ver-the-bear/temporada-2/ver-episodio-1", Season: 2, Number: 1, Poster: poster},
		}
		if !reflect.DeepEqual(d.Episodes, want) {
			t.Errorf("episodes:\n got %+v\nwant %+v", d.Episodes, want)
		}
		if n := site.hits("/series/ver-the-bear/temporada-2"); n != 1 {
			t.Errorf("season 2 fetched %d times, want 1", n)
		}
	})
}

func TestPelisGratisLoadLinksExchangesHashes(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/peliculas/ver-dune": "@pelisgratis_movie.html",
		"/hashembedlink":      `{"link":"{{BASE}}/embed/p1"}`,
		"/embed/p1":           `<script>var src = "{{BASE}}/hls/p1.m3u8";</script>`,
		"/embed/unused":       `<script>var src = "{{BASE}}/hls/unused.m3u8";</script>`,
	})
	p := NewPelisGratis(site.URL(), testDeps())
	out, links := collect()
	page := site.URL() + "/peliculas/ver-dune"

	if !p.LoadLinks(context.Background(), page, out) {
		t.Fatal("LoadLinks = false")
	}
	if got := links(); len(got) != 1 || got[0].URL != site.URL()+"/hls/p1.m3u8" {
		t.Errorf("links = %+v", got)
	}
	if site.hits("/embed/unused") != 0 {
		t.Error("frames were followed although the server hashes resolved")
	}

	site.mu.Lock()
	defer site.mu.Unlock()
	var hashes []string
	for i, r := range site.requests {
		if r.URL.Path != "/hashembedlink" {
			continue
		}
		form := site.forms[i]
		hashes = append(hashes, form["hash"][0])
		if form["_token"][0] != "tok123" {
			t.Errorf("_token = %q, want the page's csrf token", form["_token"][0])
		}
		if r.Header.Get("Referer") != page || r.Header.Get("Origin") != site.URL() {
			t.Errorf("headers = Referer %q, Origin %q", r.Header.Get("Referer"), r.Header.Get("Origin"))
		}
	}
	slices.Sort(hashes)
	if want := []string{"aGFzaC0x", "aGFzaC0y"}; !reflect.DeepEqual(hashes, want) {
		t.Errorf("posted hashes = %v, want %v", hashes, want)
	}
}

func TestPelisGratisLoadLinksFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		routes map[string]string
		want   string
	}{
		{
			name: "plain text hash reply",
			routes: map[string]string{
				"/ver":           `<div class="lien" data-hash="x1">1</div>`,
				"/hashembedlink": `embed: {{BASE}}/embed/p4`,
			},
			want: "/hls/p4.m3u8",
		},
		{
			name: "script player",
			routes: map[string]string{
				"/ver": `<script>player.src = "{{BASE}}/embed/p2"; var ad = {file: "https://ads.example/x"};</script>`,
			},
			want: "/hls/p2.m3u8",
		},
		{
			name: "frame",
			routes: map[string]string{
				"/ver": `<html><body><iframe src="/embed/p3"></iframe></body></html>`,
			},
			want: "/hls/p3.m3u8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newFixtureSite(t, tt.routes)
			for _, id := range []string{"p2", "p3", "p4"} {
				site.routes["/embed/"+id] = `<script>var src = "{{BASE}}/hls/` + id + `.m3u8";</script>`
			}
			p := NewPelisGratis(site.URL(), testDeps())
			out, links := collect()

			if !p.LoadLinks(context.Background(), site.URL()+"/ver", out) {
				t.Fatal("LoadLinks = false")
			}
			if got := links(); len(got) != 1 || got[0].URL != site.URL()+tt.want {
				t.Errorf("links = %+v", got)
			}
		})
	}
}
