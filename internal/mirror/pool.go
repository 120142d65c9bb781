// Package mirror picks a reachable base URL out of a rotating set of
// equivalent mirrors.
package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"scrapecast/internal/httputil"
	"scrapecast/internal/logging"
	"scrapecast/internal/metrics"
)

// DefaultProbeTimeout bounds a single health probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks whether a mirror is usable.
type Prober interface {
	Probe(ctx context.Context, base string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, base string) error

func (f ProberFunc) Probe(ctx context.Context, base string) error { return f(ctx, base) }

// HTTPProber reports a mirror healthy when GET base+Path answers 2xx.
type HTTPProber struct {
	Fetcher *httputil.Fetcher
	Path    string
}

func (p *HTTPProber) Probe(ctx context.Context, base string) error {
	_, err := p.Fetcher.Get(ctx, strings.TrimSuffix(base, "/")+p.Path, nil)
	return err
}

// Options configures a Pool.
type Options struct {
	ProbeTimeout time.Duration
}

// Pool is an ordered set of mirrors with a rotation cursor and the last mirror
// that answered. Concurrent Select calls may observe each other's cursor
// moves; that only changes which mirror is probed first.
type Pool struct {
	candidates []string
	prober     Prober
	timeout    time.Duration

	cursor  *atomic.Uint64
	current *atomic.String
	logger  zerolog.Logger
}

// NewPool creates a Pool. candidates must not be empty.
func NewPool(candidates []string, prober Prober, opts Options) (*Pool, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("mirror pool needs at least one candidate")
	}
	if prober == nil {
		return nil, fmt.Errorf("mirror pool needs a prober")
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	cs := make([]string, len(candidates))
	copy(cs, candidates)
	return &Pool{
		candidates: cs,
		prober:     prober,
		timeout:    timeout,
		cursor:     atomic.NewUint64(0),
		current:    atomic.NewString(cs[0]),
		logger:     logging.For("mirror"),
	}, nil
}

// Candidates returns the mirrors in configured order.
func (p *Pool) Candidates() []string {
	out := make([]string, len(p.candidates))
	copy(out, p.candidates)
	return out
}

// Current returns the last mirror that passed a probe, or the first candidate.
func (p *Pool) Current() string { return p.current.Load() }

// Cursor returns the rotation index Select will start from next.
func (p *Pool) Cursor() int { return int(p.cursor.Load() % uint64(len(p.candidates))) }

// Select probes mirrors starting at the cursor and returns the first one that
// answers. The cursor advances by one per call. When nothing answers the
// first candidate is returned; Select never fails.
func (p *Pool) Select(ctx context.Context) string {
	n := uint64(len(p.candidates))
	start := p.cursor.Inc() - 1

	for i := uint64(0); i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		base := p.candidates[(start+i)%n]
		if err := p.probe(ctx, base); err != nil {
			metrics.MirrorProbes.WithLabelValues("failure").Inc()
			p.logger.Debug().Err(err).Str("mirror", base).Msg("probe failed")
			continue
		}
		metrics.MirrorProbes.WithLabelValues("success").Inc()
		p.current.Store(base)
		return base
	}

	p.logger.Warn().Strs("mirrors", p.candidates).Msg("no mirror answered, using the first one")
	return p.candidates[0]
}

func (p *Pool) probe(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.prober.Probe(ctx, base)
}

// Status is the probe result of one mirror.
type Status struct {
	URL     string        `json:"url"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// ProbeAll checks every mirror in order without touching the cursor.
func (p *Pool) ProbeAll(ctx context.Context) []Status {
	out := make([]Status, 0, len(p.candidates))
	for _, base := range p.candidates {
		started := time.Now()
		err := p.probe(ctx, base)
		st := Status{URL: base, OK: err == nil, Latency: time.Since(started)}
		if err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}
