// Package api serves the provider pipeline over HTTP: catalog, search, detail
// and link resolution as JSON, plus /metrics and /healthz.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"scrapecast/internal/extract"
	"scrapecast/internal/hosts"
	"scrapecast/internal/httputil"
	"scrapecast/internal/logging"
	"scrapecast/internal/media"
	"scrapecast/internal/mirror"
	"scrapecast/internal/provider"
	"scrapecast/internal/sink"
)

// Options configures a Server.
type Options struct {
	Registry   *provider.Registry
	Resolver   *extract.Resolver // Backs /api/resolve; the endpoint is off when nil
	Normalizer *hosts.Normalizer
	BatchSize  int
	Pools      map[string]*mirror.Pool // Mirror pools reported by /api/mirrors
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	engine *gin.Engine
	logger zerolog.Logger
}

// New builds the router.
func New(opts Options) *Server {
	if opts.BatchSize <= 0 {
		opts.BatchSize = provider.DefaultBatchSize
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		opts:   opts,
		engine: gin.New(),
		logger: logging.For("api"),
	}
	s.engine.Use(gin.Recovery(), s.accessLog())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := s.engine.Group("/api")
	g.GET("/providers", s.listProviders)
	g.GET("/providers/:name/catalog", s.catalog)
	g.GET("/providers/:name/search", s.search)
	g.GET("/providers/:name/load", s.load)
	g.GET("/providers/:name/links", s.links)
	g.GET("/resolve", s.resolve)
	g.GET("/mirrors", s.mirrors)
	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// upstream reports a provider failure: 502 when the site could not be
// reached, 500 when its page was fetched but could not be used.
func upstream(c *gin.Context, err error) {
	if httputil.IsNetworkError(err) {
		fail(c, http.StatusBadGateway, err)
		return
	}
	fail(c, http.StatusInternalServerError, err)
}

// provider looks up :name, writing a 404 when it is unknown.
func (s *Server) provider(c *gin.Context) (provider.Provider, bool) {
	p, err := s.opts.Registry.Get(c.Param("name"))
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return nil, false
	}
	return p, true
}

func (s *Server) listProviders(c *gin.Context) {
	type info struct {
		Name     string                 `json:"name"`
		Sections []media.SectionRequest `json:"sections"`
	}
	var out []info
	for _, p := range s.opts.Registry.All() {
		out = append(out, info{Name: p.Name(), Sections: p.Sections()})
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

func (s *Server) catalog(c *gin.Context) {
	p, ok := s.provider(c)
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		fail(c, http.StatusBadRequest, errors.New("page must be a positive integer"))
		return
	}

	if name := c.Query("section"); name != "" {
		for _, req := range p.Sections() {
			if req.Name == name || req.Data == name {
				req.Page = page
				sec, err := p.ListCatalog(c.Request.Context(), req)
				if err != nil {
					upstream(c, err)
					return
				}
				c.JSON(http.StatusOK, gin.H{"sections": []media.Section{sec}})
				return
			}
		}
		fail(c, http.StatusNotFound, errors.New("unknown section "+name))
		return
	}

	sections := provider.MainPage(c.Request.Context(), p, page, s.opts.BatchSize)
	if sections == nil {
		sections = []media.Section{}
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

func (s *Server) search(c *gin.Context) {
	p, ok := s.provider(c)
	if !ok {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, errors.New("missing q"))
		return
	}
	results, err := p.Search(c.Request.Context(), q)
	if err != nil {
		upstream(c, err)
		return
	}
	if results == nil {
		results = []media.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) load(c *gin.Context) {
	p, ok := s.provider(c)
	if !ok {
		return
	}
	u := c.Query("url")
	if u == "" {
		fail(c, http.StatusBadRequest, errors.New("missing url"))
		return
	}
	d, err := p.Load(c.Request.Context(), u)
	if err != nil {
		upstream(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) links(c *gin.Context) {
	p, ok := s.provider(c)
	if !ok {
		return
	}
	data := c.Query("data")
	if data == "" {
		fail(c, http.StatusBadRequest, errors.New("missing data"))
		return
	}
	out, links, subs := sink.Collect(s.opts.Normalizer)
	found := p.LoadLinks(c.Request.Context(), data, out)

	l, sb := links(), subs()
	if l == nil {
		l = []media.ResolvedLink{}
	}
	if sb == nil {
		sb = []media.Subtitle{}
	}
	c.JSON(http.StatusOK, gin.H{"found": found, "session": out.ID(), "links": l, "subtitles": sb})
}

func (s *Server) resolve(c *gin.Context) {
	if s.opts.Resolver == nil {
		fail(c, http.StatusNotImplemented, errors.New("resolver disabled"))
		return
	}
	u := c.Query("url")
	if u == "" {
		fail(c, http.StatusBadRequest, errors.New("missing url"))
		return
	}
	type candidate struct {
		URL     string `json:"url"`
		Source  string `json:"source"`
		Depth   int    `json:"depth"`
		Referer string `json:"referer"`
		Label   string `json:"label,omitempty"`
	}
	out := []candidate{}
	for _, cl := range s.opts.Resolver.ResolveAll(c.Request.Context(), u, c.Query("referer")) {
		out = append(out, candidate{URL: cl.URL, Source: string(cl.SourceHint), Depth: cl.Depth, Referer: cl.Referer, Label: cl.Label})
	}
	c.JSON(http.StatusOK, gin.H{"candidates": out})
}

func (s *Server) mirrors(c *gin.Context) {
	out := make(map[string][]mirror.Status, len(s.opts.Pools))
	for name, pool := range s.opts.Pools {
		out[name] = pool.ProbeAll(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}
