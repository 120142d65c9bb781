package mirror

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"scrapecast/internal/httputil"
)

var errDown = errors.New("down")

// fakeProber answers from a fixed health table and records the probe order.
type fakeProber struct {
	mu      sync.Mutex
	healthy map[string]bool
	calls   []string
}

func (f *fakeProber) Probe(_ context.Context, base string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, base)
	if f.healthy[base] {
		return nil
	}
	return errDown
}

func TestNewPoolValidation(t *testing.T) {
	if _, err := NewPool(nil, &fakeProber{}, Options{}); err == nil {
		t.Error("expected error for empty candidates")
	}
	if _, err := NewPool([]string{"https://a"}, nil, Options{}); err == nil {
		t.Error("expected error for nil prober")
	}
}

func TestSelect(t *testing.T) {
	mirrors := []string{"https://a.example", "https://b.example", "https://c.example"}
	tests := []struct {
		name    string
		healthy map[string]bool
		want    string
		probes  int
	}{
		{"first healthy", map[string]bool{"https://a.example": true}, "https://a.example", 1},
		{"skips dead mirrors", map[string]bool{"https://c.example": true}, "https://c.example", 3},
		{"none reachable returns first", map[string]bool{}, "https://a.example", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &fakeProber{healthy: tt.healthy}
			p, err := NewPool(mirrors, pr, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if got := p.Select(context.Background()); got != tt.want {
				t.Errorf("Select = %q, want %q", got, tt.want)
			}
			if len(pr.calls) != tt.probes {
				t.Errorf("probes = %d, want %d", len(pr.calls), tt.probes)
			}
		})
	}
}

func TestSelectRotatesOncePerCall(t *testing.T) {
	mirrors := []string{"https://a.example", "https://b.example", "https://c.example"}
	pr := &fakeProber{healthy: map[string]bool{
		"https://a.example": true, "https://b.example": true, "https://c.example": true,
	}}
	p, _ := NewPool(mirrors, pr, Options{})

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, p.Select(context.Background()))
	}
	want := []string{"https://a.example", "https://b.example", "https://c.example", "https://a.example"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
	if p.Cursor() != 1 {
		t.Errorf("Cursor = %d, want 1", p.Cursor())
	}
}

func TestSelectFailureKeepsCurrent(t *testing.T) {
	pr := &fakeProber{healthy: map[string]bool{"https://b.example": true}}
	p, _ := NewPool([]string{"https://a.example", "https://b.example"}, pr, Options{})

	if got := p.Select(context.Background()); got != "https://b.example" {
		t.Fatalf("Select = %q", got)
	}
	if p.Current() != "https://b.example" {
		t.Errorf("Current = %q", p.Current())
	}

	pr.mu.Lock()
	pr.healthy = map[string]bool{}
	pr.mu.Unlock()

	if got := p.Select(context.Background()); got != "https://a.example" {
		t.Errorf("fallback = %q, want first candidate", got)
	}
	if p.Current() != "https://b.example" {
		t.Errorf("Current changed to %q after a failed round", p.Current())
	}
}

func TestSelectProbeTimeout(t *testing.T) {
	slow := ProberFunc(func(ctx context.Context, base string) error {
		if base == "https://slow.example" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	p, _ := NewPool([]string{"https://slow.example", "https://fast.example"}, slow, Options{ProbeTimeout: 20 * time.Millisecond})

	start := time.Now()
	if got := p.Select(context.Background()); got != "https://fast.example" {
		t.Errorf("Select = %q", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("probe timeout was not applied")
	}
}

func TestSelectConcurrent(t *testing.T) {
	pr := &fakeProber{healthy: map[string]bool{"https://a.example": true, "https://b.example": true}}
	p, _ := NewPool([]string{"https://a.example", "https://b.example"}, pr, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := p.Select(context.Background()); got == "" {
				t.Error("empty selection")
			}
		}()
	}
	wg.Wait()
	if len(pr.calls) != 50 {
		t.Errorf("probes = %d, want 50", len(pr.calls))
	}
}

func TestHTTPProber(t *testing.T) {
	var gotPath string
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Write([]byte(`[]`))
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	pr := &HTTPProber{Fetcher: httputil.NewFetcher(httputil.Options{}), Path: "/api/v1/trending?fields=videoId"}
	p, _ := NewPool([]string{broken.URL, healthy.URL + "/"}, pr, Options{})

	if got := p.Select(context.Background()); got != healthy.URL+"/" {
		t.Errorf("Select = %q, want healthy mirror", got)
	}
	if gotPath != "/api/v1/trending?fields=videoId" {
		t.Errorf("probe path = %q", gotPath)
	}

	statuses := p.ProbeAll(context.Background())
	if len(statuses) != 2 || statuses[0].OK || !statuses[1].OK || statuses[0].Error == "" {
		t.Errorf("ProbeAll = %+v", statuses)
	}
}
