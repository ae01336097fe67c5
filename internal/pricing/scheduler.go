package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	// defaultMaxOrigins is how many stale origins one run refreshes.
	defaultMaxOrigins = 3

	// runBudget caps a whole refresh run. Checked between origins only:
	// an origin already in flight always completes.
	runBudget = 45 * time.Second
)

// defaultOrigins are always considered active, regardless of what user
// preference records mention.
var defaultOrigins = []string{"TPA", "MCO", "MIA", "JFK", "ORD", "LAX"}

// QuoteFetcher is satisfied by Chain.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, origin string, codes []string) map[string]Quote
}

// OriginStatus pairs an origin with the timestamp of its freshest quote
// row. Nil LastFetched means the origin has never been refreshed.
type OriginStatus struct {
	Origin      string
	LastFetched *time.Time
}

// PriceStore is the quote persistence needed by the scheduler.
type PriceStore interface {
	UpsertQuote(ctx context.Context, q Quote) error
	OriginStatuses(ctx context.Context, origins []string) ([]OriginStatus, error)
}

// OriginSource lists origins seen in user preference records.
type OriginSource interface {
	PreferredOrigins(ctx context.Context) ([]string, error)
}

// CodeSource lists the active destination IATA codes to price.
type CodeSource interface {
	ActiveCodes(ctx context.Context) ([]string, error)
}

// OriginReport is the per-origin refresh outcome.
type OriginReport struct {
	Origin  string         `json:"origin"`
	Fetched int            `json:"fetched"`
	Total   int            `json:"total"`
	Sources map[string]int `json:"sources"`
}

// Report summarizes one refresh run.
type Report struct {
	Origins      []OriginReport `json:"origins"`
	TotalOrigins int            `json:"totalOrigins"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Scheduler refreshes the price cache for the stalest origins under a
// wall-clock budget.
type Scheduler struct {
	fetcher    QuoteFetcher
	store      PriceStore
	prefs      OriginSource
	codes      CodeSource
	maxOrigins int
	budget     time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewScheduler constructs a Scheduler with production budget and fan-out.
func NewScheduler(fetcher QuoteFetcher, store PriceStore, prefs OriginSource, codes CodeSource, log *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher:    fetcher,
		store:      store,
		prefs:      prefs,
		codes:      codes,
		maxOrigins: defaultMaxOrigins,
		budget:     runBudget,
		now:        time.Now,
		log:        log,
	}
}

// NewSchedulerWithClock constructs a Scheduler with injected budget,
// origin count and clock (used in tests).
func NewSchedulerWithClock(fetcher QuoteFetcher, store PriceStore, prefs OriginSource, codes CodeSource, maxOrigins int, budget time.Duration, now func() time.Time, log *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher:    fetcher,
		store:      store,
		prefs:      prefs,
		codes:      codes,
		maxOrigins: maxOrigins,
		budget:     budget,
		now:        now,
		log:        log,
	}
}

// Run refreshes either the explicit origin, or the stalest origins when
// origin is empty or "ALL". The budget check is cooperative: evaluated
// after each origin completes, never mid-origin.
func (s *Scheduler) Run(ctx context.Context, origin string) (*Report, error) {
	codes, err := s.codes.ActiveCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active destination codes: %w", err)
	}

	var origins []string
	if origin != "" && origin != "ALL" {
		origins = []string{origin}
	} else {
		origins, err = s.staleOrigins(ctx)
		if err != nil {
			return nil, err
		}
	}

	report := &Report{Origins: []OriginReport{}, Timestamp: s.now().UTC()}
	start := s.now()

	for i, o := range origins {
		report.Origins = append(report.Origins, s.refreshOrigin(ctx, o, codes))
		report.TotalOrigins++

		if elapsed := s.now().Sub(start); elapsed >= s.budget && i < len(origins)-1 {
			s.log.Warn("refresh budget exhausted, skipping remaining origins",
				"elapsed", elapsed, "refreshed", i+1, "skipped", len(origins)-i-1)
			break
		}
	}

	return report, nil
}

// staleOrigins ranks active origins by staleness: never-refreshed origins
// first, then oldest last-fetched, and keeps the top maxOrigins.
func (s *Scheduler) staleOrigins(ctx context.Context) ([]string, error) {
	preferred, err := s.prefs.PreferredOrigins(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing preferred origins: %w", err)
	}

	seen := make(map[string]bool, len(defaultOrigins)+len(preferred))
	active := make([]string, 0, len(defaultOrigins)+len(preferred))
	for _, o := range append(append([]string{}, defaultOrigins...), preferred...) {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		active = append(active, o)
	}

	statuses, err := s.store.OriginStatuses(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("ranking origin staleness: %w", err)
	}

	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i].LastFetched, statuses[j].LastFetched
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	n := s.maxOrigins
	if n > len(statuses) {
		n = len(statuses)
	}

	origins := make([]string, 0, n)
	for _, st := range statuses[:n] {
		origins = append(origins, st.Origin)
	}
	return origins, nil
}

// refreshOrigin runs the fetch chain for one origin and upserts whatever
// came back. Individual upsert failures are logged and skipped.
func (s *Scheduler) refreshOrigin(ctx context.Context, origin string, codes []string) OriginReport {
	rep := OriginReport{Origin: origin, Total: len(codes), Sources: map[string]int{}}

	quotes := s.fetcher.FetchQuotes(ctx, origin, codes)
	for _, q := range quotes {
		if err := s.store.UpsertQuote(ctx, q); err != nil {
			s.log.Error("quote upsert failed", "origin", origin, "destination", q.Destination, "err", err)
			continue
		}
		rep.Fetched++
		rep.Sources[q.Provider]++
	}

	s.log.Info("origin refreshed", "origin", origin, "fetched", rep.Fetched, "total", rep.Total)
	return rep
}
