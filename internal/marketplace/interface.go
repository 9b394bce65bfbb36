package marketplace

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"vsixgrab/internal/models"
)

// Gallery is the part of the marketplace the CLI talks to over the network.
type Gallery interface {
	LatestVersion(ctx context.Context, identifier string) (models.Descriptor, error)
	FetchListing(ctx context.Context, listingURL string) (*goquery.Document, string, error)
}

var _ Gallery = (*Client)(nil)
