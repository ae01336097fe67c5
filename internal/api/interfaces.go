package api

import (
	"context"

	"github.com/tripwind/dealfeed/internal/feed"
	"github.com/tripwind/dealfeed/internal/pricing"
)

// FeedComposer builds the full ordered destination list for an origin.
type FeedComposer interface {
	Compose(ctx context.Context, origin string, q feed.Query) ([]feed.MergedDestination, error)
}

// RefreshRunner executes one price refresh run.
type RefreshRunner interface {
	Run(ctx context.Context, origin string) (*pricing.Report, error)
}
