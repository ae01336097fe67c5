package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripwind/dealfeed/internal/feed"
)

// Querier abstracts the subset of pgxpool.Pool used by the repositories.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DestinationRepo reads the destination catalog.
type DestinationRepo struct {
	q Querier
}

// NewDestinationRepo constructs a DestinationRepo backed by the given pool.
func NewDestinationRepo(pool *pgxpool.Pool) *DestinationRepo {
	return &DestinationRepo{q: pool}
}

// NewDestinationRepoWithQuerier constructs a DestinationRepo with a custom
// Querier (for tests).
func NewDestinationRepoWithQuerier(q Querier) *DestinationRepo {
	return &DestinationRepo{q: q}
}

// ListActive returns all active catalog records.
func (r *DestinationRepo) ListActive(ctx context.Context) ([]feed.Destination, error) {
	const q = `
		SELECT id, iata_code, city, country, continent,
		       base_flight_price, base_hotel_price, currency,
		       vibes, rating, review_count, affinities, popularity
		FROM destinations
		WHERE active = TRUE
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying active destinations: %w", err)
	}
	defer rows.Close()

	var results []feed.Destination
	for rows.Next() {
		var d feed.Destination
		var affinitiesJSON []byte

		if err := rows.Scan(
			&d.ID,
			&d.IATACode,
			&d.City,
			&d.Country,
			&d.Continent,
			&d.BaseFlightPrice,
			&d.BaseHotelPrice,
			&d.Currency,
			&d.Vibes,
			&d.Rating,
			&d.ReviewCount,
			&affinitiesJSON,
			&d.Popularity,
		); err != nil {
			return nil, fmt.Errorf("scanning destination row: %w", err)
		}

		if len(affinitiesJSON) > 0 {
			if err := json.Unmarshal(affinitiesJSON, &d.Affinities); err != nil {
				return nil, fmt.Errorf("unmarshaling affinities for %s: %w", d.IATACode, err)
			}
		}

		d.Active = true
		results = append(results, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination rows: %w", err)
	}

	return results, nil
}

// ActiveCodes returns the IATA codes of all active destinations.
func (r *DestinationRepo) ActiveCodes(ctx context.Context) ([]string, error) {
	const q = `SELECT iata_code FROM destinations WHERE active = TRUE ORDER BY iata_code`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying active destination codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning destination code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination codes: %w", err)
	}

	return codes, nil
}

// PreferredOrigins returns the distinct home airports stored in user
// preference records.
func (r *DestinationRepo) PreferredOrigins(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT home_airport FROM user_prefs WHERE home_airport <> ''`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying preferred origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scanning preferred origin: %w", err)
		}
		origins = append(origins, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preferred origins: %w", err)
	}

	return origins, nil
}
