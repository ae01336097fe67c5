package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripwind/dealfeed/internal/pricing"
)

// PriceRepo persists live quotes, one row per (origin, destination).
type PriceRepo struct {
	q Querier
}

// NewPriceRepo constructs a PriceRepo backed by the given pool.
func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{q: pool}
}

// NewPriceRepoWithQuerier constructs a PriceRepo with a custom Querier
// (for tests).
func NewPriceRepoWithQuerier(q Querier) *PriceRepo {
	return &PriceRepo{q: q}
}

// QuotesForOrigin returns the live quotes for an origin keyed by
// destination code.
func (r *PriceRepo) QuotesForOrigin(ctx context.Context, origin string) (map[string]pricing.Quote, error) {
	const q = `
		SELECT origin, destination, price, currency, airline, provider,
		       fetched_at, depart_date, return_date, trip_days,
		       previous_price, direction
		FROM price_quotes
		WHERE origin = $1
	`

	rows, err := r.q.Query(ctx, q, origin)
	if err != nil {
		return nil, fmt.Errorf("querying quotes for origin %s: %w", origin, err)
	}
	defer rows.Close()

	quotes := make(map[string]pricing.Quote)
	for rows.Next() {
		var qt pricing.Quote
		var direction string

		if err := rows.Scan(
			&qt.Origin,
			&qt.Destination,
			&qt.Price,
			&qt.Currency,
			&qt.Airline,
			&qt.Provider,
			&qt.FetchedAt,
			&qt.DepartDate,
			&qt.ReturnDate,
			&qt.TripDays,
			&qt.PreviousPrice,
			&direction,
		); err != nil {
			return nil, fmt.Errorf("scanning quote row for origin %s: %w", origin, err)
		}

		qt.Direction = pricing.Direction(direction)
		quotes[qt.Destination] = qt
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quote rows for origin %s: %w", origin, err)
	}

	return quotes, nil
}

// UpsertQuote writes the quote, classifying its price direction against
// the existing row. Read-then-write is not atomic against a concurrent
// refresh of the same origin; last writer wins.
func (r *PriceRepo) UpsertQuote(ctx context.Context, qt pricing.Quote) error {
	const sel = `SELECT price FROM price_quotes WHERE origin = $1 AND destination = $2`

	var previous *float64
	var existing float64
	err := r.q.QueryRow(ctx, sel, qt.Origin, qt.Destination).Scan(&existing)
	switch {
	case err == nil:
		previous = &existing
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return fmt.Errorf("reading existing quote %s-%s: %w", qt.Origin, qt.Destination, err)
	}

	direction := pricing.ClassifyDirection(previous, qt.Price)

	const ins = `
		INSERT INTO price_quotes (origin, destination, price, currency, airline,
		                          provider, fetched_at, depart_date, return_date,
		                          trip_days, previous_price, direction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (origin, destination) DO UPDATE
		SET price          = EXCLUDED.price,
		    currency       = EXCLUDED.currency,
		    airline        = EXCLUDED.airline,
		    provider       = EXCLUDED.provider,
		    fetched_at     = EXCLUDED.fetched_at,
		    depart_date    = EXCLUDED.depart_date,
		    return_date    = EXCLUDED.return_date,
		    trip_days      = EXCLUDED.trip_days,
		    previous_price = EXCLUDED.previous_price,
		    direction      = EXCLUDED.direction
	`

	if _, err := r.q.Exec(ctx, ins,
		qt.Origin, qt.Destination, qt.Price, qt.Currency, qt.Airline,
		qt.Provider, qt.FetchedAt, qt.DepartDate, qt.ReturnDate,
		qt.TripDays, previous, string(direction),
	); err != nil {
		return fmt.Errorf("upserting quote %s-%s: %w", qt.Origin, qt.Destination, err)
	}

	return nil
}

// OriginStatuses reports each origin's freshest fetched_at. Origins with
// no quote rows come back with a nil timestamp so staleness ranking can
// put them first.
func (r *PriceRepo) OriginStatuses(ctx context.Context, origins []string) ([]pricing.OriginStatus, error) {
	const q = `
		SELECT origin, MAX(fetched_at)
		FROM price_quotes
		WHERE origin = ANY($1)
		GROUP BY origin
	`

	rows, err := r.q.Query(ctx, q, origins)
	if err != nil {
		return nil, fmt.Errorf("querying origin statuses: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]time.Time, len(origins))
	for rows.Next() {
		var origin string
		var fetched time.Time
		if err := rows.Scan(&origin, &fetched); err != nil {
			return nil, fmt.Errorf("scanning origin status: %w", err)
		}
		latest[origin] = fetched
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating origin statuses: %w", err)
	}

	statuses := make([]pricing.OriginStatus, 0, len(origins))
	for _, o := range origins {
		st := pricing.OriginStatus{Origin: o}
		if t, ok := latest[o]; ok {
			ts := t
			st.LastFetched = &ts
		}
		statuses = append(statuses, st)
	}

	return statuses, nil
}
