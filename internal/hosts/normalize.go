// Package hosts rewrites known mirror-domain aliases to the canonical host of
// each extractor family.
package hosts

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrRuleCycle is returned when rules rewrite a domain back to itself.
var ErrRuleCycle = errors.New("host rules form a cycle")

// Rule rewrites the Old domain (or any subdomain of it) to New.
type Rule struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// Normalizer applies an ordered rule table. Targets are resolved to their final
// destination at construction, so a single pass is idempotent.
type Normalizer struct {
	rules []Rule
}

// New builds a Normalizer. Chained rules (a -> b, b -> c) are collapsed to
// a -> c; cycles are rejected.
func New(rules []Rule) (*Normalizer, error) {
	next := make(map[string]string, len(rules))
	for _, r := range rules {
		old := canonical(r.Old)
		if old == "" || canonical(r.New) == "" {
			return nil, fmt.Errorf("empty domain in rule %q -> %q", r.Old, r.New)
		}
		if _, dup := next[old]; !dup {
			next[old] = canonical(r.New)
		}
	}

	n := &Normalizer{rules: make([]Rule, 0, len(rules))}
	added := make(map[string]bool, len(rules))
	for _, r := range rules {
		old := canonical(r.Old)
		if added[old] {
			continue
		}
		target, err := follow(next, old)
		if err != nil {
			return nil, err
		}
		if target == old {
			continue
		}
		n.rules = append(n.rules, Rule{Old: old, New: target})
		added[old] = true
	}

	// A rewritten host must not match any rule again, including rules on
	// subdomains of the target (a -> b with x.b -> c turns x.a into x.b).
	for i, r := range n.rules {
		for j, other := range n.rules {
			if isWithin(r.New, other.Old) || (i != j && isWithin(other.Old, r.New)) {
				return nil, fmt.Errorf("%w: target %s overlaps rule for %s", ErrRuleCycle, r.New, other.Old)
			}
		}
	}
	return n, nil
}

// isWithin reports whether host is domain or one of its subdomains.
func isWithin(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func (n *Normalizer) match(host string) *Rule {
	for i := range n.rules {
		r := &n.rules[i]
		if isWithin(host, r.Old) {
			return r
		}
	}
	return nil
}

func follow(next map[string]string, start string) (string, error) {
	seen := map[string]bool{start: true}
	cur := start
	for {
		nxt, ok := next[cur]
		if !ok {
			return cur, nil
		}
		if seen[nxt] {
			if nxt == cur {
				return cur, nil
			}
			return "", fmt.Errorf("%w: %s", ErrRuleCycle, start)
		}
		seen[nxt] = true
		cur = nxt
	}
}

// MustNew is New for static tables.
func MustNew(rules []Rule) *Normalizer {
	n, err := New(rules)
	if err != nil {
		panic(err)
	}
	return n
}

// Rules returns the resolved rule table.
func (n *Normalizer) Rules() []Rule {
	out := make([]Rule, len(n.rules))
	copy(out, n.rules)
	return out
}

// Normalize rewrites the host of rawURL using the first matching rule.
// It also undoes JSON-escaped slashes. Unparseable URLs are returned as is.
func (n *Normalizer) Normalize(rawURL string) string {
	s := strings.TrimSpace(unescapeSlashes(rawURL))
	if n == nil || len(n.rules) == 0 {
		return s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}

	host := strings.ToLower(u.Hostname())
	r := n.match(host)
	if r == nil {
		return s
	}
	rewritten := strings.TrimSuffix(host, r.Old) + r.New
	if port := u.Port(); port != "" {
		rewritten += ":" + port
	}
	u.Host = rewritten
	return u.String()
}

// Canonical reports the family host for a domain, or the domain itself.
func (n *Normalizer) Canonical(host string) string {
	host = canonical(host)
	if r := n.match(host); r != nil {
		return strings.TrimSuffix(host, r.Old) + r.New
	}
	return host
}

func unescapeSlashes(s string) string {
	for strings.Contains(s, `\/`) {
		s = strings.ReplaceAll(s, `\/`, "/")
	}
	return s
}

func canonical(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimSuffix(d, "/")
}

// LoadRules reads extra rules from a YAML file:
//
//	rules:
//	  - old: newmirror.example
//	    new: streamwish.to
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading host rules: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing host rules %s: %w", path, err)
	}
	return doc.Rules, nil
}

// WithFile returns the default table extended by rules from path. File rules
// take precedence over built-in ones. An empty path yields Default().
func WithFile(path string) (*Normalizer, error) {
	if path == "" {
		return Default(), nil
	}
	extra, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(append(extra, DefaultRules()...))
}
