// Package provider defines the interface for media sites and their
// implementations.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"scrapecast/internal/media"
	"scrapecast/internal/sink"
)

// ErrUnknownProvider is returned by Registry.Get for a name that is not
// registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider is the interface that media sites must implement.
//
// Errors report transport or parse failures only. Callers treat them as
// "no data" and keep going.
type Provider interface {
	// Name is the registry key, e.g. "sololatino".
	Name() string

	// Sections lists the catalog sections shown on the home page. Page is
	// left at zero; callers fill it in.
	Sections() []media.SectionRequest

	// ListCatalog returns one page of one section.
	ListCatalog(ctx context.Context, req media.SectionRequest) (media.Section, error)

	// Search returns matching entries for a query.
	Search(ctx context.Context, query string) ([]media.Entry, error)

	// Load returns metadata and episodes for an entry URL.
	Load(ctx context.Context, url string) (*media.Detail, error)

	// LoadLinks resolves an episode reference into playable links, sending
	// each to out. It reports whether at least one link was accepted.
	LoadLinks(ctx context.Context, data string, out *sink.Sink) bool
}

// Registry maps provider names to implementations.
type Registry struct {
	byName map[string]Provider
}

// NewRegistry creates a registry holding ps. Later duplicates replace
// earlier ones.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds or replaces p.
func (r *Registry) Register(p Provider) {
	r.byName[p.Name()] = p
}

// Get returns the provider called name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, name, r.Names())
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the providers sorted by name.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.byName))
	for _, n := range r.Names() {
		out = append(out, r.byName[n])
	}
	return out
}
