package pricing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwind/dealfeed/internal/pricing"
)

func bulkHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TPA", r.URL.Query().Get("origin"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"origin": "TPA",
			"prices": map[string]any{
				"CUN": map[string]any{"price": 289.0, "currency": "USD", "airline": "AA", "trip_days": 5},
				"SJU": map[string]any{"price": 212.0, "airline": "B6"},
				"ZZZ": map[string]any{"price": 999.0},
			},
		})
	}
}

func TestBulkProvider_FetchQuotes(t *testing.T) {
	srv := httptest.NewServer(bulkHandler(t))
	defer srv.Close()

	p := pricing.NewBulkProviderWithURL(srv.URL, "test-key", discardLog())

	quotes, err := p.FetchQuotes(context.Background(), "TPA", []string{"CUN", "SJU", "MBJ"})
	require.NoError(t, err)

	require.Len(t, quotes, 2, "only requested codes present in the response are returned")
	assert.Equal(t, 289.0, quotes["CUN"].Price)
	assert.Equal(t, "AA", quotes["CUN"].Airline)
	assert.Equal(t, 5, quotes["CUN"].TripDays)
	assert.Equal(t, "bulk", quotes["CUN"].Provider)
	assert.Equal(t, "USD", quotes["SJU"].Currency, "missing currency falls back to USD")

	_, ok := quotes["ZZZ"]
	assert.False(t, ok, "codes not asked for are dropped")
}

func TestBulkProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := pricing.NewBulkProviderWithURL(srv.URL, "test-key", discardLog())

	_, err := p.FetchQuotes(context.Background(), "TPA", []string{"CUN"})
	require.Error(t, err)
}

func TestPerRouteProvider_FetchQuotes(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dest := r.URL.Query().Get("destination")
		mu.Lock()
		seen[dest] = true
		mu.Unlock()

		if dest == "BAD" {
			http.Error(w, "no fares", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 300.0, "currency": "USD", "airline": "DL"})
	}))
	defer srv.Close()

	p := pricing.NewPerRouteProviderWithURL(srv.URL, "test-key", discardLog())

	codes := []string{"CUN", "SJU", "BAD", "LIS", "BCN", "NRT", "BKK"}
	quotes, err := p.FetchQuotes(context.Background(), "TPA", codes)
	require.NoError(t, err)

	assert.Len(t, quotes, 6, "a failing route leaves a gap, not an error")
	_, ok := quotes["BAD"]
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 7, "every requested code gets its own lookup")
}

func TestPerRouteProvider_AllRoutesFail(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := pricing.NewPerRouteProviderWithURL(srv.URL, "test-key", discardLog())

	quotes, err := p.FetchQuotes(context.Background(), "TPA", []string{"CUN", "SJU"})
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPerRouteProvider_RejectsZeroPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 0})
	}))
	defer srv.Close()

	p := pricing.NewPerRouteProviderWithURL(srv.URL, "test-key", discardLog())

	quotes, err := p.FetchQuotes(context.Background(), "TPA", []string{"CUN"})
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
