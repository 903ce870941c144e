// Package fixture serves search results from a Browse-shaped JSON file, for offline runs.
package fixture

import (
	"context"
	"fmt"
	"os"
	"time"

	"DealScanner/internal/config"
	"DealScanner/internal/domain"
	"DealScanner/internal/infrastructure/ebay"
	"DealScanner/internal/ports"
)

// Provider re-reads the fixture file on every search so it can be edited between cycles.
type Provider struct {
	path string
}

var _ ports.SearchProvider = (*Provider)(nil)

// NewProvider points the provider at a fixture file.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// Name identifies the provider inside the source registry.
func (p *Provider) Name() string {
	return config.SourceFixture
}

// Search ignores the token and returns at most query.Limit listings.
func (p *Provider) Search(_ context.Context, _ string, query domain.SearchQuery) ([]domain.Listing, error) {
	if query.Query == "" {
		return nil, config.ErrMissingQuery
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	listings, err := ebay.ParseSearchResponse(f)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", p.path, err)
	}
	if query.Limit > 0 && len(listings) > query.Limit {
		listings = listings[:query.Limit]
	}
	return listings, nil
}

// StaticToken satisfies ports.TokenProvider without network access.
type StaticToken struct{}

var _ ports.TokenProvider = StaticToken{}

// Token returns a placeholder credential valid for a day.
func (StaticToken) Token(context.Context) (string, time.Duration, error) {
	return "fixture", 24 * time.Hour, nil
}
