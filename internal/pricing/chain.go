package pricing

import (
	"context"
	"log/slog"
)

// Chain queries providers in priority order, each later provider only
// attempting the codes still missing. The first provider to fill a code
// wins; a provider outage is counted and logged, never fatal.
type Chain struct {
	providers []Provider
	log       *slog.Logger
}

// NewChain constructs a Chain over the given providers in priority order.
func NewChain(log *slog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, log: log}
}

// FetchQuotes fills a destination→quote map for the origin, walking the
// provider list until every code is covered or providers run out.
func (c *Chain) FetchQuotes(ctx context.Context, origin string, codes []string) map[string]Quote {
	quotes := make(map[string]Quote, len(codes))
	missing := codes

	for _, p := range c.providers {
		if len(missing) == 0 {
			break
		}

		got, err := p.FetchQuotes(ctx, origin, missing)
		if err != nil {
			c.log.Warn("provider unavailable", "provider", p.Name(), "origin", origin, "missing", len(missing), "err", err)
		}

		for code, q := range got {
			quotes[code] = q
		}

		var still []string
		for _, code := range missing {
			if _, ok := quotes[code]; !ok {
				still = append(still, code)
			}
		}
		missing = still
	}

	if len(missing) > 0 {
		c.log.Info("quotes missing after all providers", "origin", origin, "missing", len(missing))
	}

	return quotes
}
