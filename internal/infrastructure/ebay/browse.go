// Package ebay implements the marketplace token and search providers.
package ebay

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"DealScanner/internal/config"
	"DealScanner/internal/domain"
	"DealScanner/internal/infrastructure/httpx"
	"DealScanner/internal/ports"
)

const (
	searchPath    = "/buy/browse/v1/item_summary/search"
	minLimit      = 1
	maxLimit      = 200
	anyCondition  = "NEW_OR_USED"
	openMinPrice  = "0"
	openMaxPrice  = "999999"
	marketplaceHd = "X-EBAY-C-MARKETPLACE-ID"
)

var allowedSorts = map[string]struct{}{
	"BEST_MATCH":                  {},
	"ENDING_SOONEST":              {},
	"NEWLY_LISTED":                {},
	"PRICE_PLUS_SHIPPING_LOWEST":  {},
	"PRICE_PLUS_SHIPPING_HIGHEST": {},
	"DISTANCE_NEAREST":            {},
	"BEST_SELLING":                {},
}

// SearchProvider queries the Browse item_summary/search endpoint.
type SearchProvider struct {
	baseURL       string
	marketplaceID string
	client        *httpx.Client
}

var _ ports.SearchProvider = (*SearchProvider)(nil)

// NewSearchProvider builds a provider from configuration.
func NewSearchProvider(cfg config.EbayConfig, client *httpx.Client) *SearchProvider {
	return &SearchProvider{
		baseURL:       cfg.APIBaseURL(),
		marketplaceID: strings.TrimSpace(cfg.MarketplaceID),
		client:        client,
	}
}

// Name identifies the provider inside the source registry.
func (s *SearchProvider) Name() string {
	return config.SourceEbay
}

// Search returns the listings of one result page in provider order.
func (s *SearchProvider) Search(ctx context.Context, token string, query domain.SearchQuery) ([]domain.Listing, error) {
	params, err := SearchParams(query)
	if err != nil {
		return nil, err
	}
	endpoint := s.baseURL + searchPath + "?" + params.Encode()

	resp, err := s.client.Do(ctx, "browse search", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if s.marketplaceID != "" {
			req.Header.Set(marketplaceHd, s.marketplaceID)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return ParseSearchResponse(resp.Body)
}

// SearchParams translates a query into Browse API parameters.
func SearchParams(query domain.SearchQuery) (url.Values, error) {
	q := strings.TrimSpace(query.Query)
	if q == "" {
		return nil, config.ErrMissingQuery
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(min(max(query.Limit, minLimit), maxLimit)))

	if sort := strings.ToUpper(strings.TrimSpace(query.Sort)); sort != "" {
		if _, ok := allowedSorts[sort]; ok {
			params.Set("sort", sort)
		}
	}

	if ids := cleanCSV(query.CategoryIDs); ids != "" {
		params.Set("category_ids", ids)
	}

	var filters []string
	minPrice, maxPrice := strings.TrimSpace(query.MinPrice), strings.TrimSpace(query.MaxPrice)
	if minPrice != "" || maxPrice != "" {
		if minPrice == "" {
			minPrice = openMinPrice
		}
		if maxPrice == "" {
			maxPrice = openMaxPrice
		}
		filters = append(filters, "price:["+minPrice+".."+maxPrice+"]")
	}
	if cond := strings.TrimSpace(query.Condition); cond != "" && cond != anyCondition {
		filters = append(filters, "conditionIds:"+cond)
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}

	return params, nil
}

func cleanCSV(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ",")
}
