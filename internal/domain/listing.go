package domain

import "time"

// BuyingOption enumerates the purchase formats a marketplace advertises.
type BuyingOption string

const (
	BuyingFixedPrice    BuyingOption = "FIXED_PRICE"
	BuyingAuction       BuyingOption = "AUCTION"
	BuyingBestOffer     BuyingOption = "BEST_OFFER"
	BuyingClassifiedAds BuyingOption = "CLASSIFIED_AD"
)

// Money is an amount in a given currency. Amount is zero when the source value was missing or unparseable.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Seller carries the reputation figures used by scoring.
type Seller struct {
	Username        string  `json:"username,omitempty"`
	FeedbackScore   float64 `json:"feedback_score"`
	PositivePercent float64 `json:"positive_percent"`
}

// Listing is one search result, normalized from the provider payload.
type Listing struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	URL                string         `json:"url"`
	Price              Money          `json:"price"`
	OriginalPrice      *Money         `json:"original_price,omitempty"`
	DiscountPercentage *float64       `json:"discount_percentage,omitempty"`
	BuyingOptions      []BuyingOption `json:"buying_options,omitempty"`
	Condition          string         `json:"condition,omitempty"`
	Seller             Seller         `json:"seller"`
}

// HasBuyingOption reports whether the listing advertises the given format.
func (l Listing) HasBuyingOption(opt BuyingOption) bool {
	for _, o := range l.BuyingOptions {
		if o == opt {
			return true
		}
	}
	return false
}

// ScoreBreakdown exposes every scoring input and sub-score.
type ScoreBreakdown struct {
	Price              float64 `json:"price"`
	DiscountPercent    float64 `json:"discount_percent"`
	MedianPrice        float64 `json:"median_price"`
	SellerFeedback     float64 `json:"seller_feedback"`
	SellerPositive     float64 `json:"seller_positive"`
	DiscountScore      int     `json:"discount_score"`
	PriceVsMedianScore int     `json:"price_vs_median_score"`
	SellerScore        int     `json:"seller_score"`
	FormatScore        int     `json:"format_score"`
	Total              int     `json:"total"`
}

// ScoredListing pairs a listing with its breakdown; it is the snapshot record.
type ScoredListing struct {
	Listing   Listing        `json:"listing"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Score returns the total score.
func (s ScoredListing) Score() int {
	return s.Breakdown.Total
}

// Credential is a bearer token held in memory only.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// NeedsRefresh reports whether the credential is absent or within margin of expiry.
func (c *Credential) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if c == nil || c.Token == "" {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-margin))
}

// SearchQuery carries the provider search request.
type SearchQuery struct {
	Query       string
	Limit       int
	MinPrice    string
	MaxPrice    string
	Condition   string
	Sort        string
	CategoryIDs string
}

// Snapshot is the per-cycle audit record.
type Snapshot struct {
	CycleID string          `json:"cycle_id"`
	TakenAt time.Time       `json:"taken_at"`
	Median  float64         `json:"median_price"`
	Items   []ScoredListing `json:"items"`
}
