package ebay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DealScanner/internal/config"
	"DealScanner/internal/domain"
	"DealScanner/internal/infrastructure/httpx"
)

const samplePayload = `{
  "total": 3,
  "itemSummaries": [
    {
      "itemId": "v1|111|0",
      "title": "  Nintendo   Switch OLED ",
      "itemWebUrl": "https://www.ebay.fr/itm/111",
      "price": {"value": "80.00", "currency": "EUR"},
      "marketingPrice": {"originalPrice": {"value": "100.00", "currency": "EUR"}, "discountPercentage": "20"},
      "buyingOptions": ["FIXED_PRICE", "best_offer"],
      "seller": {"username": "shop", "feedbackScore": 6000, "feedbackPercentage": "99.5"}
    },
    {
      "itemId": "v1|222|0",
      "title": "Broken numbers",
      "price": {"value": "n/a", "currency": "EUR"},
      "marketingPrice": {"originalPrice": {"value": null}},
      "seller": {"feedbackScore": "lots", "positiveFeedbackPercent": 98.1}
    },
    {
      "legacyItemId": "333",
      "title": "No price at all"
    }
  ]
}`

func testHTTPClient(server *httptest.Server) *httpx.Client {
	policy := httpx.Policy{MaxAttempts: 1}
	return httpx.NewClient(time.Second, policy, nil).WithHTTPClient(server.Client())
}

func TestParseSearchResponse(t *testing.T) {
	t.Parallel()

	listings, err := ParseSearchResponse(strings.NewReader(samplePayload))
	if err != nil {
		t.Fatalf("ParseSearchResponse error: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.ID != "v1|111|0" || first.Title != "Nintendo Switch OLED" {
		t.Fatalf("unexpected identity: %+v", first)
	}
	if first.Price.Amount != 80 || first.Price.Currency != "EUR" {
		t.Fatalf("unexpected price: %+v", first.Price)
	}
	if first.OriginalPrice == nil || first.OriginalPrice.Amount != 100 {
		t.Fatalf("unexpected original price: %+v", first.OriginalPrice)
	}
	if first.DiscountPercentage == nil || *first.DiscountPercentage != 20 {
		t.Fatalf("unexpected discount: %v", first.DiscountPercentage)
	}
	if !first.HasBuyingOption(domain.BuyingFixedPrice) || !first.HasBuyingOption(domain.BuyingBestOffer) {
		t.Fatalf("unexpected buying options: %v", first.BuyingOptions)
	}
	if first.Seller.FeedbackScore != 6000 || first.Seller.PositivePercent != 99.5 {
		t.Fatalf("unexpected seller: %+v", first.Seller)
	}

	broken := listings[1]
	if broken.Price.Amount != 0 {
		t.Fatalf("unparseable price should default to 0, got %v", broken.Price.Amount)
	}
	if broken.OriginalPrice != nil || broken.DiscountPercentage != nil {
		t.Fatalf("null marketing price should be dropped: %+v", broken)
	}
	if broken.Seller.FeedbackScore != 0 || broken.Seller.PositivePercent != 98.1 {
		t.Fatalf("unexpected seller fallback: %+v", broken.Seller)
	}

	if listings[2].ID != "333" || listings[2].Price.Amount != 0 {
		t.Fatalf("unexpected legacy listing: %+v", listings[2])
	}
}

func TestParseSearchResponseKeepsItemsWithMalformedFields(t *testing.T) {
	t.Parallel()

	payload := `{"itemSummaries":[
		{"itemId":"clean","price":{"value":"80","currency":"EUR"},"buyingOptions":["FIXED_PRICE"]},
		{"itemId":"orig-string","price":{"value":"80","currency":"EUR"},"marketingPrice":{"originalPrice":"100"}},
		{"itemId":"options-string","price":{"value":"80","currency":"EUR"},"buyingOptions":"FIXED_PRICE"},
		{"itemId":"seller-string","price":{"value":"80","currency":"EUR"},"seller":"shop"},
		{"itemId":"marketing-array","price":"80","marketingPrice":[1,2],"title":42},
		{"itemId":"bad-discount","price":{"value":"80"},"marketingPrice":{"originalPrice":{"value":"100"},"discountPercentage":"n/a"}},
		{"itemId":12345,"buyingOptions":["AUCTION",7]},
		"not an object",
		null
	]}`

	listings, err := ParseSearchResponse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ParseSearchResponse error: %v", err)
	}

	var ids []string
	byID := map[string]domain.Listing{}
	for _, l := range listings {
		ids = append(ids, l.ID)
		byID[l.ID] = l
	}
	want := []string{"clean", "orig-string", "options-string", "seller-string", "marketing-array", "bad-discount", "12345"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected ids: got %v, want %v", ids, want)
	}

	if l := byID["orig-string"]; l.OriginalPrice != nil || l.Price.Amount != 80 {
		t.Fatalf("string original price should be dropped, listing kept: %+v", l)
	}
	if l := byID["options-string"]; len(l.BuyingOptions) != 0 {
		t.Fatalf("non-array buying options should be empty: %v", l.BuyingOptions)
	}
	if l := byID["seller-string"]; l.Seller != (domain.Seller{}) {
		t.Fatalf("non-object seller should be zero: %+v", l.Seller)
	}
	if l := byID["marketing-array"]; l.Price.Amount != 0 || l.Title != "42" || l.DiscountPercentage != nil {
		t.Fatalf("unexpected defaults: %+v", l)
	}
	if l := byID["bad-discount"]; l.DiscountPercentage == nil || *l.DiscountPercentage != 0 || l.OriginalPrice == nil {
		t.Fatalf("unparseable discount should be present as 0: %+v", l)
	}
	if l := byID["12345"]; len(l.BuyingOptions) != 1 || l.BuyingOptions[0] != domain.BuyingAuction {
		t.Fatalf("string members of buying options should be kept: %v", l.BuyingOptions)
	}
}

func TestParseSearchResponseEmpty(t *testing.T) {
	t.Parallel()

	listings, err := ParseSearchResponse(strings.NewReader(`{"total":0}`))
	if err != nil || len(listings) != 0 {
		t.Fatalf("expected no listings, got %v, %v", listings, err)
	}
	if _, err := ParseSearchResponse(strings.NewReader("<html>")); err == nil {
		t.Fatalf("expected error for non-json body")
	}
}

func TestSearchParams(t *testing.T) {
	t.Parallel()

	params, err := SearchParams(domain.SearchQuery{
		Query:       " switch oled ",
		Limit:       500,
		MaxPrice:    "250",
		Condition:   "1000",
		Sort:        "newly_listed",
		CategoryIDs: " 139971, ,48749 ",
	})
	if err != nil {
		t.Fatalf("SearchParams error: %v", err)
	}
	if params.Get("q") != "switch oled" {
		t.Fatalf("unexpected q: %q", params.Get("q"))
	}
	if params.Get("limit") != "200" {
		t.Fatalf("limit not clamped: %s", params.Get("limit"))
	}
	if params.Get("sort") != "NEWLY_LISTED" {
		t.Fatalf("unexpected sort: %s", params.Get("sort"))
	}
	if params.Get("category_ids") != "139971,48749" {
		t.Fatalf("unexpected categories: %s", params.Get("category_ids"))
	}
	if params.Get("filter") != "price:[0..250],conditionIds:1000" {
		t.Fatalf("unexpected filter: %s", params.Get("filter"))
	}

	params, err = SearchParams(domain.SearchQuery{Query: "x", Limit: 0, Sort: "CHEAPEST", Condition: "NEW_OR_USED"})
	if err != nil {
		t.Fatalf("SearchParams error: %v", err)
	}
	if params.Get("limit") != "1" {
		t.Fatalf("limit not clamped up: %s", params.Get("limit"))
	}
	if params.Has("sort") || params.Has("filter") {
		t.Fatalf("invalid sort and open condition must be omitted: %v", params)
	}

	if _, err := SearchParams(domain.SearchQuery{Query: "   "}); !errors.Is(err, config.ErrMissingQuery) {
		t.Fatalf("expected ErrMissingQuery, got %v", err)
	}
}

func TestSearchProviderSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != searchPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get(marketplaceHd) != "EBAY_FR" {
			t.Errorf("missing marketplace header")
		}
		if r.URL.Query().Get("q") != "switch" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	cfg := config.EbayConfig{BaseURL: server.URL, MarketplaceID: "EBAY_FR"}
	provider := NewSearchProvider(cfg, testHTTPClient(server))

	listings, err := provider.Search(context.Background(), "tok", domain.SearchQuery{Query: "switch", Limit: 50})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
}

func TestSearchProviderNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"Invalid access token"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewSearchProvider(config.EbayConfig{BaseURL: server.URL}, testHTTPClient(server))
	_, err := provider.Search(context.Background(), "stale", domain.SearchQuery{Query: "switch"})
	if !httpx.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestTokenProvider(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "s3cret" {
			t.Errorf("unexpected basic auth: %v %s %s", ok, id, secret)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("scope") != apiScope {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"access_token":"v^1.1#abc","token_type":"Application Access Token"}`))
	}))
	defer server.Close()

	cfg := config.EbayConfig{BaseURL: server.URL, ClientID: "client", ClientSecret: "s3cret"}
	provider := NewTokenProvider(cfg, testHTTPClient(server))

	token, life, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if token != "v^1.1#abc" {
		t.Fatalf("unexpected token: %s", token)
	}
	if life != defaultTokenLife {
		t.Fatalf("missing expires_in should default, got %s", life)
	}
}

func TestTokenProviderErrors(t *testing.T) {
	t.Parallel()

	provider := NewTokenProvider(config.EbayConfig{ClientID: "only-id"}, nil)
	if _, _, err := provider.Token(context.Background()); !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in":7200}`))
	}))
	defer server.Close()

	cfg := config.EbayConfig{BaseURL: server.URL, ClientID: "id", ClientSecret: "secret"}
	provider = NewTokenProvider(cfg, testHTTPClient(server))
	if _, _, err := provider.Token(context.Background()); err == nil {
		t.Fatalf("expected error for response without token")
	}
}
