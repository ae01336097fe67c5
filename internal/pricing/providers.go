package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const httpTimeout = 10 * time.Second

// perRouteBatchSize bounds concurrent per-route lookups.
const perRouteBatchSize = 5

// Provider fills quotes for as many of the requested destination codes as
// it can. Missing codes are simply absent from the returned map; per-call
// failures must never fail the whole batch.
type Provider interface {
	Name() string
	FetchQuotes(ctx context.Context, origin string, codes []string) (map[string]Quote, error)
}

// newHTTPClient returns an http.Client with a 10-second timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// doGet performs a GET request and decodes the JSON response into dst.
func doGet(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", rawURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	return nil
}

// ---- Bulk provider ----

// BulkProvider retrieves a whole origin's destination prices in one round
// trip. Always first in the chain.
type BulkProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

const bulkDefaultURL = "https://api.fastfares.io/v2/prices"

// NewBulkProvider constructs a BulkProvider with the given API key.
func NewBulkProvider(apiKey string, log *slog.Logger) *BulkProvider {
	return &BulkProvider{apiKey: apiKey, baseURL: bulkDefaultURL, client: newHTTPClient(), log: log}
}

// NewBulkProviderWithURL constructs a BulkProvider pointing at a custom
// base URL (for tests).
func NewBulkProviderWithURL(baseURL, apiKey string, log *slog.Logger) *BulkProvider {
	return &BulkProvider{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient(), log: log}
}

func (p *BulkProvider) Name() string { return "bulk" }

type bulkQuote struct {
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	Airline    string  `json:"airline"`
	DepartDate string  `json:"depart_date"`
	ReturnDate string  `json:"return_date"`
	TripDays   int     `json:"trip_days"`
}

type bulkResponse struct {
	Origin string               `json:"origin"`
	Prices map[string]bulkQuote `json:"prices"`
}

// FetchQuotes retrieves the origin's full price map and keeps the entries
// matching the requested codes.
func (p *BulkProvider) FetchQuotes(ctx context.Context, origin string, codes []string) (map[string]Quote, error) {
	endpoint := p.baseURL + "?origin=" + url.QueryEscape(origin) + "&token=" + p.apiKey

	var raw bulkResponse
	if err := doGet(ctx, p.client, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("bulk fetch for %s: %w", origin, err)
	}

	now := time.Now().UTC()
	quotes := make(map[string]Quote, len(codes))
	for _, code := range codes {
		bq, ok := raw.Prices[code]
		if !ok || bq.Price <= 0 {
			continue
		}
		quotes[code] = Quote{
			Origin:      origin,
			Destination: code,
			Price:       bq.Price,
			Currency:    nonEmpty(bq.Currency, "USD"),
			Airline:     bq.Airline,
			Provider:    p.Name(),
			FetchedAt:   now,
			DepartDate:  bq.DepartDate,
			ReturnDate:  bq.ReturnDate,
			TripDays:    bq.TripDays,
		}
	}

	return quotes, nil
}

// ---- Per-route provider ----

// PerRouteProvider issues one lookup per origin→destination route, five
// concurrent calls at a time. Individual failures leave gaps, never abort
// the batch.
type PerRouteProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

const perRouteDefaultURL = "https://api.fastfares.io/v2/route"

// NewPerRouteProvider constructs a PerRouteProvider with the given API key.
func NewPerRouteProvider(apiKey string, log *slog.Logger) *PerRouteProvider {
	return &PerRouteProvider{apiKey: apiKey, baseURL: perRouteDefaultURL, client: newHTTPClient(), log: log}
}

// NewPerRouteProviderWithURL constructs a PerRouteProvider pointing at a
// custom base URL (for tests).
func NewPerRouteProviderWithURL(baseURL, apiKey string, log *slog.Logger) *PerRouteProvider {
	return &PerRouteProvider{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient(), log: log}
}

func (p *PerRouteProvider) Name() string { return "per-route" }

type routeResponse struct {
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	Airline    string  `json:"airline"`
	DepartDate string  `json:"depart_date"`
	ReturnDate string  `json:"return_date"`
	TripDays   int     `json:"trip_days"`
}

// FetchQuotes looks up each code individually in batches of five.
func (p *PerRouteProvider) FetchQuotes(ctx context.Context, origin string, codes []string) (map[string]Quote, error) {
	quotes := make(map[string]Quote, len(codes))
	var mu sync.Mutex

	for start := 0; start < len(codes); start += perRouteBatchSize {
		end := start + perRouteBatchSize
		if end > len(codes) {
			end = len(codes)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for _, code := range codes[start:end] {
			g.Go(func() error {
				q, err := p.fetchRoute(gCtx, origin, code)
				if err != nil {
					p.log.Warn("per-route fetch failed", "origin", origin, "destination", code, "err", err)
					return nil
				}
				mu.Lock()
				quotes[code] = *q
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return quotes, err
		}
	}

	return quotes, nil
}

func (p *PerRouteProvider) fetchRoute(ctx context.Context, origin, code string) (*Quote, error) {
	endpoint := fmt.Sprintf("%s?origin=%s&destination=%s&token=%s",
		p.baseURL, url.QueryEscape(origin), url.QueryEscape(code), p.apiKey)

	var raw routeResponse
	if err := doGet(ctx, p.client, endpoint, &raw); err != nil {
		return nil, err
	}
	if raw.Price <= 0 {
		return nil, fmt.Errorf("route %s-%s: no price in response", origin, code)
	}

	return &Quote{
		Origin:      origin,
		Destination: code,
		Price:       raw.Price,
		Currency:    nonEmpty(raw.Currency, "USD"),
		Airline:     raw.Airline,
		Provider:    p.Name(),
		FetchedAt:   time.Now().UTC(),
		DepartDate:  raw.DepartDate,
		ReturnDate:  raw.ReturnDate,
		TripDays:    raw.TripDays,
	}, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
