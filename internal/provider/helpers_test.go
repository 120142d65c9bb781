package provider

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"scrapecast/internal/extract"
	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
	"scrapecast/internal/sink"
	"scrapecast/internal/store"
)

// fixtureSite serves testdata files or inline bodies. Keys are a path or a
// full request URI; {{BASE}} in bodies is replaced with the server URL.
type fixtureSite struct {
	t      *testing.T
	srv    *httptest.Server
	routes map[string]string

	mu       sync.Mutex
	requests []*http.Request
	forms    []map[string][]string
}

func newFixtureSite(t *testing.T, routes map[string]string) *fixtureSite {
	t.Helper()
	fs := &fixtureSite{t: t, routes: routes}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fixtureSite) URL() string { return fs.srv.URL }

func (fs *fixtureSite) serve(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	fs.mu.Lock()
	fs.requests = append(fs.requests, r)
	fs.forms = append(fs.forms, r.PostForm)
	fs.mu.Unlock()

	body, ok := fs.routes[r.URL.RequestURI()]
	if !ok {
		body, ok = fs.routes[r.URL.Path]
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.HasPrefix(body, "@") {
		data, err := os.ReadFile("testdata/" + body[1:])
		if err != nil {
			fs.t.Errorf("reading fixture %s: %v", body[1:], err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body = string(data)
	}
	body = strings.ReplaceAll(body, "{{BASE}}", fs.srv.URL)

	switch {
	case strings.HasPrefix(strings.TrimSpace(body), "{"), strings.HasPrefix(strings.TrimSpace(body), "["):
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Write([]byte(body))
}

// hits counts requests whose URI starts with prefix.
func (fs *fixtureSite) hits(prefix string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, r := range fs.requests {
		if strings.HasPrefix(r.URL.RequestURI(), prefix) {
			n++
		}
	}
	return n
}

func testDeps() Deps {
	f := httputil.NewFetcher(httputil.Options{})
	return Deps{
		Fetcher:  f,
		Resolver: extract.NewResolver(f, extract.Options{}),
		Store:    store.NewMemory(),
	}
}

func collect() (*sink.Sink, func() []media.ResolvedLink) {
	s, links, _ := sink.Collect(nil)
	return s, links
}

func titles(entries []media.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}
