// Package httputil provides the page fetcher used by every provider: a hardened
// HTTP client, header injection, body decoding, politeness limits and input
// sanitization utilities.
package httputil

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"scrapecast/internal/metrics"
)

// DefaultUserAgent is used when neither the fetcher nor the request sets one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

const defaultMaxBody = 10 * 1024 * 1024 // 10MB limit

// NewClient creates a hardened HTTP client with secure defaults.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        20,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
	}
}

// NetworkError reports a transport failure or a non-2xx response.
// Callers treat it as "no data" and move on to the next source.
type NetworkError struct {
	URL        string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Request describes one page fetch.
type Request struct {
	Method  string            // GET when empty
	URL     string
	Headers map[string]string // Override defaults (User-Agent, Referer, Origin, ...)
	Form    url.Values        // Sent as application/x-www-form-urlencoded for POST
}

// FetchResult is the outcome of one successful HTTP call.
type FetchResult struct {
	RawText    string
	FinalURL   string // URL after redirects
	StatusOK   bool
	StatusCode int

	docOnce sync.Once
	doc     *goquery.Document
}

// Document returns the parsed DOM of RawText. Parsing happens on first use.
func (r *FetchResult) Document() *goquery.Document {
	r.docOnce.Do(func() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.RawText))
		if err != nil {
			doc = goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
		}
		if u, err := url.Parse(r.FinalURL); err == nil {
			doc.Url = u
		}
		r.doc = doc
	})
	return r.doc
}

// Resolve resolves a possibly relative reference against FinalURL.
func (r *FetchResult) Resolve(ref string) string {
	return ResolveReference(r.FinalURL, ref)
}

// Options configures a Fetcher.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64 // per host; 0 disables limiting
	RespectRobots bool
	MaxBodyBytes  int64
}

// Fetcher performs page fetches with browser-like headers.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	limiter   *HostLimiter
	robots    *RobotsGate
}

// NewFetcher creates a Fetcher with a hardened client.
func NewFetcher(opts Options) *Fetcher {
	return NewFetcherWithClient(NewClient(opts.Timeout), opts)
}

// NewFetcherWithClient creates a Fetcher around an existing client.
func NewFetcherWithClient(client *http.Client, opts Options) *Fetcher {
	f := &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		limiter:   NewHostLimiter(opts.RatePerSecond),
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxBody <= 0 {
		f.maxBody = defaultMaxBody
	}
	if opts.RespectRobots {
		f.robots = NewRobotsGate(client, f.userAgent)
	}
	return f
}

// Client exposes the underlying HTTP client.
func (f *Fetcher) Client() *http.Client { return f.client }

// UserAgent returns the default User-Agent header value.
func (f *Fetcher) UserAgent() string { return f.userAgent }

// Get fetches a page with GET.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*FetchResult, error) {
	return f.Fetch(ctx, Request{Method: http.MethodGet, URL: rawURL, Headers: headers})
}

// PostForm fetches a page with a url-encoded POST body.
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (*FetchResult, error) {
	return f.Fetch(ctx, Request{Method: http.MethodPost, URL: rawURL, Form: form, Headers: headers})
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	h := map[string]string{"Accept": "application/json"}
	for k, val := range headers {
		h[k] = val
	}
	res, err := f.Get(ctx, rawURL, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(res.RawText), v); err != nil {
		return fmt.Errorf("decoding JSON from %s: %w", rawURL, err)
	}
	return nil
}

// Admit runs the checks every outgoing request passes before it is sent:
// URL validation, robots.txt and the per-host rate limit. Clients that
// bypass Fetch (the colly collectors) call it from their request hook.
func (f *Fetcher) Admit(ctx context.Context, rawURL string) error {
	if err := ValidateURL(rawURL); err != nil {
		return &NetworkError{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	if f.robots != nil && !f.robots.Allowed(ctx, rawURL) {
		metrics.FetchErrors.WithLabelValues("robots").Inc()
		return &NetworkError{URL: rawURL, Err: errors.New("disallowed by robots.txt")}
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	return nil
}

// Observe records one completed round trip. A zero status means the
// transport failed before a response arrived.
func (f *Fetcher) Observe(method string, status int, took time.Duration) {
	metrics.FetchDuration.WithLabelValues(method).Observe(took.Seconds())
	switch {
	case status == 0:
		metrics.FetchErrors.WithLabelValues("transport").Inc()
		return
	case status < 200 || status > 299:
		metrics.FetchErrors.WithLabelValues("status").Inc()
	}
	metrics.PagesFetched.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Fetch performs one request. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, r Request) (*FetchResult, error) {
	if err := f.Admit(ctx, r.URL); err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(r.Form) > 0 {
		body = strings.NewReader(r.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, &NetworkError{URL: r.URL, Err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	for k, v := range r.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.Observe(method, 0, time.Since(start))
		log.Debug().Err(err).Str("url", r.URL).Msg("fetch failed")
		return nil, &NetworkError{URL: r.URL, Err: err}
	}
	defer resp.Body.Close()
	f.Observe(method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Int("status", resp.StatusCode).Str("url", r.URL).Msg("fetch rejected")
		return nil, &NetworkError{URL: r.URL, StatusCode: resp.StatusCode}
	}

	data, err := f.readBody(resp)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("transport").Inc()
		return nil, &NetworkError{URL: r.URL, Err: err}
	}

	finalURL := r.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &FetchResult{
		RawText:    string(data),
		FinalURL:   finalURL,
		StatusOK:   true,
		StatusCode: resp.StatusCode,
	}, nil
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", f.maxBody)
	}
	return body, nil
}

// ResolveReference resolves ref against base. Protocol-relative references
// ("//host/path") inherit the base scheme, falling back to https.
func ResolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" {
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref
		}
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Origin returns scheme://host of rawURL, or "" if it cannot be parsed.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
