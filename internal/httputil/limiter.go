package httputil

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// HostLimiter enforces a per-host request rate so that concurrent section
// fetches do not trip anti-scraping throttles.
type HostLimiter struct {
	perSecond float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns a limiter allowing perSecond requests per host.
// A non-positive rate disables limiting.
func NewHostLimiter(perSecond float64) *HostLimiter {
	return &HostLimiter{
		perSecond: perSecond,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL's host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil || l.perSecond <= 0 {
		return nil
	}
	return l.limiter(hostOf(rawURL)).Wait(ctx)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[host]
	if !ok {
		burst := int(math.Max(1, math.Ceil(l.perSecond)))
		lim = rate.NewLimiter(rate.Limit(l.perSecond), burst)
		l.limiters[host] = lim
	}
	return lim
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// RobotsGate caches robots.txt groups per host.
type RobotsGate struct {
	client    *http.Client
	userAgent string

	mu    sync.RWMutex
	cache map[string]*robotstxt.Group
}

// NewRobotsGate creates a gate that fetches robots.txt with client.
func NewRobotsGate(client *http.Client, userAgent string) *RobotsGate {
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be fetched. Missing or unreadable
// robots.txt files allow everything.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	g.mu.RLock()
	group, cached := g.cache[u.Host]
	g.mu.RUnlock()

	if !cached {
		group = g.fetch(ctx, u.Scheme, u.Host)
		g.mu.Lock()
		g.cache[u.Host] = group
		g.mu.Unlock()
	}

	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (g *RobotsGate) fetch(ctx context.Context, scheme, host string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(g.userAgent)
}
