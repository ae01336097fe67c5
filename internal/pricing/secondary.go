package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const (
	secondaryBatchSize  = 3
	secondaryBatchPause = 250 * time.Millisecond

	// tokenRefreshMargin forces a refresh when the cached bearer token is
	// about to expire.
	tokenRefreshMargin = 60 * time.Second

	// Secondary quotes are requested for a single future date window.
	secondaryLeadDays = 21
	secondaryTripDays = 7
)

const secondaryDefaultURL = "https://api.skyquote.net/v1"

// tokenCache memoizes the secondary provider's bearer token. Process-local
// best-effort state; concurrent refreshes across instances are harmless.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func (t *tokenCache) get(fetch func() (string, time.Duration, error)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expiresAt.Add(-tokenRefreshMargin)) {
		return t.token, nil
	}

	token, ttl, err := fetch()
	if err != nil {
		return "", err
	}

	t.token = token
	t.expiresAt = t.now().Add(ttl)
	return token, nil
}

// SecondaryProvider is the last resort in the chain: a token-authenticated
// fare API queried three routes at a time with a politeness pause between
// batches. Only constructed when credentials are configured.
type SecondaryProvider struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *resty.Client
	tokens       *tokenCache
	pause        time.Duration
	now          func() time.Time
	log          *slog.Logger
}

// NewSecondaryProvider constructs a SecondaryProvider against the
// production API.
func NewSecondaryProvider(clientID, clientSecret string, log *slog.Logger) *SecondaryProvider {
	return newSecondary(secondaryDefaultURL, clientID, clientSecret, secondaryBatchPause, time.Now, log)
}

// NewSecondaryProviderWithURL constructs a SecondaryProvider pointing at a
// custom base URL with no inter-batch pause (for tests).
func NewSecondaryProviderWithURL(baseURL, clientID, clientSecret string, log *slog.Logger) *SecondaryProvider {
	return newSecondary(baseURL, clientID, clientSecret, 0, time.Now, log)
}

func newSecondary(baseURL, clientID, clientSecret string, pause time.Duration, now func() time.Time, log *slog.Logger) *SecondaryProvider {
	client := resty.New()
	client.SetTimeout(httpTimeout)
	client.SetBaseURL(baseURL)

	return &SecondaryProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		client:       client,
		tokens:       &tokenCache{now: now},
		pause:        pause,
		now:          now,
		log:          log,
	}
}

func (p *SecondaryProvider) Name() string { return "secondary" }

type secondaryTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type secondaryOfferResponse struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Airline  string  `json:"airline"`
}

// bearerToken returns a cached token, refreshing when it is within 60s of
// expiry.
func (p *SecondaryProvider) bearerToken(ctx context.Context) (string, error) {
	return p.tokens.get(func() (string, time.Duration, error) {
		var raw secondaryTokenResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"grant_type":    "client_credentials",
				"client_id":     p.clientID,
				"client_secret": p.clientSecret,
			}).
			SetResult(&raw).
			Post("/oauth/token")
		if err != nil {
			return "", 0, fmt.Errorf("secondary token request: %w", err)
		}
		if resp.IsError() {
			return "", 0, fmt.Errorf("secondary token request returned status %d", resp.StatusCode())
		}
		if raw.AccessToken == "" {
			return "", 0, fmt.Errorf("secondary token response missing access_token")
		}
		return raw.AccessToken, time.Duration(raw.ExpiresIn) * time.Second, nil
	})
}

// FetchQuotes looks up the still-missing codes in batches of three with a
// pause between batches. An auth failure disables the provider for the
// run; per-route failures only leave gaps.
func (p *SecondaryProvider) FetchQuotes(ctx context.Context, origin string, codes []string) (map[string]Quote, error) {
	token, err := p.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	depart := p.now().UTC().AddDate(0, 0, secondaryLeadDays).Format("2006-01-02")
	ret := p.now().UTC().AddDate(0, 0, secondaryLeadDays+secondaryTripDays).Format("2006-01-02")

	quotes := make(map[string]Quote, len(codes))
	var mu sync.Mutex

	for start := 0; start < len(codes); start += secondaryBatchSize {
		end := start + secondaryBatchSize
		if end > len(codes) {
			end = len(codes)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for _, code := range codes[start:end] {
			g.Go(func() error {
				q, err := p.fetchOffer(gCtx, token, origin, code, depart, ret)
				if err != nil {
					p.log.Warn("secondary fetch failed", "origin", origin, "destination", code, "err", err)
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

		if end < len(codes) && p.pause > 0 {
			select {
			case <-ctx.Done():
				return quotes, ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}

	return quotes, nil
}

func (p *SecondaryProvider) fetchOffer(ctx context.Context, token, origin, code, depart, ret string) (*Quote, error) {
	var raw secondaryOfferResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"origin":      origin,
			"destination": code,
			"depart_date": depart,
			"return_date": ret,
		}).
		SetResult(&raw).
		Get("/offers")
	if err != nil {
		return nil, fmt.Errorf("secondary offer %s-%s: %w", origin, code, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("secondary offer %s-%s returned status %d", origin, code, resp.StatusCode())
	}
	if raw.Price <= 0 {
		return nil, fmt.Errorf("secondary offer %s-%s: no price in response", origin, code)
	}

	return &Quote{
		Origin:      origin,
		Destination: code,
		Price:       raw.Price,
		Currency:    nonEmpty(raw.Currency, "USD"),
		Airline:     raw.Airline,
		Provider:    p.Name(),
		FetchedAt:   p.now().UTC(),
		DepartDate:  depart,
		ReturnDate:  ret,
		TripDays:    secondaryTripDays,
	}, nil
}
