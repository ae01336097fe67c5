package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tripwind/dealfeed/internal/pricing"
)

// freshFor is how long a cached per-origin candidate list is served before
// a rebuild.
const freshFor = 10 * time.Minute

// CatalogStore lists active destination records.
type CatalogStore interface {
	ListActive(ctx context.Context) ([]Destination, error)
}

// QuoteStore reads the live quotes for one origin.
type QuoteStore interface {
	QuotesForOrigin(ctx context.Context, origin string) (map[string]pricing.Quote, error)
}

// CacheEntry is the memoized candidate list for one origin.
type CacheEntry struct {
	Items    []MergedDestination `json:"items"`
	CachedAt time.Time           `json:"cachedAt"`
}

// Cache memoizes merged candidate lists per origin. Get returns nil, nil
// on a miss.
type Cache interface {
	Get(ctx context.Context, origin string) (*CacheEntry, error)
	Set(ctx context.Context, origin string, entry *CacheEntry) error
}

// Query carries the feed request knobs that shape one composition.
type Query struct {
	Region   string
	Vibe     string
	MaxPrice float64
	Sort     string
	Seed     string
}

// Composer builds the ordered candidate list for an origin: cached join of
// catalog and quotes, filters, then preset sort or diversity ranking.
type Composer struct {
	catalog CatalogStore
	quotes  QuoteStore
	cache   Cache
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewComposer constructs a Composer with the production freshness window.
func NewComposer(catalog CatalogStore, quotes QuoteStore, cache Cache, log *slog.Logger) *Composer {
	return &Composer{
		catalog: catalog,
		quotes:  quotes,
		cache:   cache,
		ttl:     freshFor,
		now:     time.Now,
		log:     log,
	}
}

// NewComposerWithClock constructs a Composer with an injected TTL and clock
// (used in tests).
func NewComposerWithClock(catalog CatalogStore, quotes QuoteStore, cache Cache, ttl time.Duration, now func() time.Time, log *slog.Logger) *Composer {
	return &Composer{catalog: catalog, quotes: quotes, cache: cache, ttl: ttl, now: now, log: log}
}

// Compose returns the full ordered list for the origin. Pagination is the
// caller's concern: the whole filtered set is ranked so a stable seed
// yields a stable ordering no matter which page is requested.
func (c *Composer) Compose(ctx context.Context, origin string, q Query) ([]MergedDestination, error) {
	candidates, err := c.candidates(ctx, origin)
	if err != nil {
		return nil, err
	}

	filtered := Filter(candidates, q)

	if q.Sort != "" {
		if !ApplyPreset(filtered, q.Sort) {
			return nil, fmt.Errorf("unknown sort preset %q", q.Sort)
		}
		return filtered, nil
	}

	return Rank(filtered, q.Seed), nil
}

// candidates serves the merged list from cache when fresh, rebuilding
// otherwise. A rebuild failure falls back to a stale entry when one is
// still retained.
func (c *Composer) candidates(ctx context.Context, origin string) ([]MergedDestination, error) {
	entry, err := c.cache.Get(ctx, origin)
	if err != nil {
		c.log.Error("feed cache get failed", "origin", origin, "err", err)
		entry = nil
	}
	if entry != nil && c.now().Sub(entry.CachedAt) < c.ttl {
		return entry.Items, nil
	}

	items, err := c.rebuild(ctx, origin)
	if err != nil {
		if entry != nil {
			c.log.Warn("serving stale feed entry after rebuild failure", "origin", origin, "err", err)
			return entry.Items, nil
		}
		return nil, err
	}

	if err := c.cache.Set(ctx, origin, &CacheEntry{Items: items, CachedAt: c.now()}); err != nil {
		c.log.Warn("feed cache set failed", "origin", origin, "err", err)
	}

	return items, nil
}

func (c *Composer) rebuild(ctx context.Context, origin string) ([]MergedDestination, error) {
	records, err := c.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing destinations for %s: %w", origin, err)
	}

	quotes, err := c.quotes.QuotesForOrigin(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("loading quotes for %s: %w", origin, err)
	}

	return Merge(records, quotes), nil
}

// Filter applies the region, vibe and price-ceiling filters, in that
// order. Exclusion/seen lists are deliberately not a filter concern.
func Filter(items []MergedDestination, q Query) []MergedDestination {
	out := make([]MergedDestination, 0, len(items))
	for _, m := range items {
		if q.Region != "" && q.Region != "all" && RegionBucket(m.Destination) != q.Region {
			continue
		}
		if q.Vibe != "" && !hasVibe(m.Destination, q.Vibe) {
			continue
		}
		if q.MaxPrice > 0 && m.EffectivePrice() > q.MaxPrice {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasVibe(d Destination, vibe string) bool {
	for _, v := range d.Vibes {
		if strings.EqualFold(v, vibe) {
			return true
		}
	}
	return false
}
