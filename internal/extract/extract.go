// Package extract follows embed pages, packed scripts and base64 payloads
// from a start URL down to playable media URLs.
package extract

import (
	"context"
	"iter"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"scrapecast/internal/hosts"
	"scrapecast/internal/httputil"
	"scrapecast/internal/logging"
	"scrapecast/internal/metrics"
)

// DefaultMaxDepth bounds how many nested pages a chain may visit.
const DefaultMaxDepth = 6

// maxFramesPerPage caps the iframe branches followed from a single page.
const maxFramesPerPage = 4

// SourceHint names the strategy that produced a candidate.
type SourceHint string

const (
	HintDirect SourceHint = "direct"
	HintPacked SourceHint = "packed"
	HintBase64 SourceHint = "base64"
	HintAPI    SourceHint = "api"
)

// CandidateLink is a media URL found during resolution.
type CandidateLink struct {
	URL        string
	SourceHint SourceHint
	Depth      int    // 0 for the start page
	Referer    string // Page the link was found on
	Label      string // Quality text when the source provides one
}

// Fetcher performs page requests.
type Fetcher interface {
	Fetch(ctx context.Context, r httputil.Request) (*httputil.FetchResult, error)
}

// Options configures a Resolver.
type Options struct {
	MaxDepth   int
	UserAgent  string // Sent on every hop; the fetcher default when empty
	Origin     string // Origin header; defaults to the start URL's origin
	Normalizer *hosts.Normalizer
	Handlers   []HostHandler // nil means DefaultHandlers()
	Strategies []Strategy    // nil means DefaultStrategies()
}

// Resolver walks embed chains. It holds no per-session state and may be
// shared between goroutines.
type Resolver struct {
	fetcher    Fetcher
	maxDepth   int
	userAgent  string
	origin     string
	normalizer *hosts.Normalizer
	handlers   []HostHandler
	strategies []Strategy
	logger     zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(f Fetcher, opts Options) *Resolver {
	r := &Resolver{
		fetcher:    f,
		maxDepth:   opts.MaxDepth,
		userAgent:  opts.UserAgent,
		origin:     opts.Origin,
		normalizer: opts.Normalizer,
		handlers:   opts.Handlers,
		strategies: opts.Strategies,
		logger:     logging.For("extract"),
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.normalizer == nil {
		r.normalizer = hosts.Default()
	}
	if r.handlers == nil {
		r.handlers = DefaultHandlers()
	}
	if r.strategies == nil {
		r.strategies = DefaultStrategies()
	}
	return r
}

// WithOrigin returns a copy of r that sends origin on every hop.
func (r *Resolver) WithOrigin(origin string) *Resolver {
	cp := *r
	cp.origin = origin
	return &cp
}

// MaxDepth returns the depth bound.
func (r *Resolver) MaxDepth() int { return r.maxDepth }

// Resolve returns the candidates reachable from startURL. The sequence is
// lazy: pages are fetched while it is consumed, and stopping early cancels
// outstanding fetches. It can be iterated only once.
func (r *Resolver) Resolve(ctx context.Context, startURL, referer string) iter.Seq[CandidateLink] {
	used := atomic.NewBool(false)

	return func(yield func(CandidateLink) bool) {
		if used.Swap(true) {
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		origin := r.origin
		if origin == "" {
			origin = httputil.Origin(startURL)
		}
		if referer == "" {
			referer = origin
		}

		out := make(chan CandidateLink)
		s := &session{
			r:       r,
			origin:  origin,
			out:     out,
			visited: make(map[string]bool),
		}

		s.spawn(ctx, startURL, referer, 0)
		go func() {
			s.wg.Wait()
			close(out)
		}()

		for c := range out {
			if !yield(c) {
				cancel()
				for range out {
				}
				return
			}
		}
	}
}

// ResolveAll drains Resolve into a slice.
func (r *Resolver) ResolveAll(ctx context.Context, startURL, referer string) []CandidateLink {
	var links []CandidateLink
	for c := range r.Resolve(ctx, startURL, referer) {
		links = append(links, c)
	}
	return links
}

func (r *Resolver) handlerFor(rawURL string) *HostHandler {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for i := range r.handlers {
		h := &r.handlers[i]
		for _, suffix := range h.Hosts {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return h
			}
		}
	}
	return nil
}

// session is the state of one Resolve call.
type session struct {
	r      *Resolver
	origin string
	out    chan<- CandidateLink
	wg     sync.WaitGroup

	mu      sync.Mutex
	visited map[string]bool
}

// visit marks u as visited and reports whether it was new.
func (s *session) visit(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[u] {
		return false
	}
	s.visited[u] = true
	return true
}

func (s *session) spawn(ctx context.Context, pageURL, referer string, depth int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.walk(ctx, pageURL, referer, depth)
	}()
}

func (s *session) emit(ctx context.Context, c CandidateLink) bool {
	c.URL = s.r.normalizer.Normalize(c.URL)
	if c.URL == "" {
		return false
	}
	metrics.Candidates.WithLabelValues(string(c.SourceHint)).Inc()
	select {
	case s.out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *session) walk(ctx context.Context, pageURL, referer string, depth int) {
	if depth >= s.r.maxDepth || ctx.Err() != nil {
		return
	}

	pageURL = s.r.normalizer.Normalize(pageURL)
	if !s.visit(pageURL) {
		s.r.logger.Debug().Str("url", pageURL).Int("depth", depth).Msg("already visited")
		return
	}

	hop := &Hop{URL: pageURL, Referer: referer, Depth: depth, s: s}

	// A media file is already the answer.
	if isMediaURL(pageURL) {
		hop.Emit(ctx, CandidateLink{URL: pageURL, SourceHint: HintDirect, Referer: referer})
		return
	}

	if h := s.r.handlerFor(pageURL); h != nil {
		s.r.logger.Debug().Str("url", pageURL).Str("handler", h.Name).Msg("host handler")
		h.Resolve(ctx, hop)
		return
	}

	res, err := hop.Fetch(ctx, pageURL, nil)
	if err != nil {
		return
	}
	hop.Scan(ctx, res)
}

// Hop is one page visit inside a resolution session.
type Hop struct {
	URL     string
	Referer string
	Depth   int

	s *session
}

// Fetch requests u with the session's User-Agent, Referer and Origin headers.
// extra headers override them.
func (h *Hop) Fetch(ctx context.Context, u string, extra map[string]string) (*httputil.FetchResult, error) {
	headers := map[string]string{
		"Referer": h.Referer,
		"Origin":  h.s.origin,
	}
	if h.s.r.userAgent != "" {
		headers["User-Agent"] = h.s.r.userAgent
	}
	for k, v := range extra {
		headers[k] = v
	}
	res, err := h.s.r.fetcher.Fetch(ctx, httputil.Request{URL: u, Headers: headers})
	if err != nil {
		h.s.r.logger.Debug().Err(err).Str("url", u).Int("depth", h.Depth).Msg("hop fetch failed")
		return nil, err
	}
	return res, nil
}

// Emit sends a candidate found on this hop.
func (h *Hop) Emit(ctx context.Context, c CandidateLink) bool {
	c.Depth = h.Depth
	if c.Referer == "" {
		c.Referer = h.URL
	}
	return h.s.emit(ctx, c)
}

// Follow walks next as a child of this hop, with this hop's URL as Referer.
func (h *Hop) Follow(ctx context.Context, next string) {
	h.s.spawn(ctx, next, h.URL, h.Depth+1)
}

// Scan runs the strategy list on a fetched page. The first strategy that
// matches decides the outcome for the page.
func (h *Hop) Scan(ctx context.Context, res *httputil.FetchResult) bool {
	page := &Page{URL: h.URL, Referer: h.Referer, Depth: h.Depth, Result: res}
	for _, st := range h.s.r.strategies {
		step, ok := st.Apply(page)
		if !ok {
			continue
		}
		h.s.r.logger.Debug().Str("url", h.URL).Str("strategy", st.Name).
			Int("links", len(step.Links)).Int("follow", len(step.Follow)).Msg("strategy matched")
		for _, c := range step.Links {
			h.Emit(ctx, c)
		}
		for _, next := range step.Follow {
			h.Follow(ctx, next)
		}
		return true
	}
	return false
}
