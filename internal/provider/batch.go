package provider

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"scrapecast/internal/media"
)

// DefaultBatchSize is how many section pages are fetched at once.
const DefaultBatchSize = 3

// inBatches runs fn over items, width at a time. Each batch finishes before
// the next starts. Results keep the order of items. Batches not yet started
// when ctx ends are skipped and leave zero values.
func inBatches[T, R any](ctx context.Context, items []T, width int, fn func(context.Context, T) R) []R {
	if width <= 0 {
		width = DefaultBatchSize
	}
	out := make([]R, len(items))
	for start := 0; start < len(items); start += width {
		if ctx.Err() != nil {
			break
		}
		end := min(start+width, len(items))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = fn(ctx, items[i])
			}(i)
		}
		wg.Wait()
	}
	return out
}

// MainPage fetches every section of p for the given page in batches of
// width. Sections that fail or come back empty are left out.
func MainPage(ctx context.Context, p Provider, page, width int) []media.Section {
	reqs := p.Sections()
	for i := range reqs {
		reqs[i].Page = page
	}

	logger := log.With().Str("provider", p.Name()).Logger()
	type result struct {
		section media.Section
		err     error
	}
	results := inBatches(ctx, reqs, width, func(ctx context.Context, req media.SectionRequest) result {
		s, err := p.ListCatalog(ctx, req)
		return result{s, err}
	})

	var sections []media.Section
	for i, r := range results {
		if r.err != nil {
			logger.Warn().Err(r.err).Str("section", reqs[i].Name).Msg("section failed")
			continue
		}
		if len(r.section.Entries) == 0 {
			continue
		}
		if r.section.Name == "" {
			r.section.Name = reqs[i].Name
		}
		sections = append(sections, r.section)
	}
	return sections
}
