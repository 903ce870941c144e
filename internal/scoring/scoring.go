// Package scoring rates listings against a market reference price.
package scoring

import (
	"math"
	"sort"

	"DealScanner/internal/domain"
)

const (
	maxDiscountScore = 40
	maxSellerScore   = 30
	fixedPriceScore  = 5
	minDiscount      = 10.0
	discountWeight   = 1.5
)

type tier struct {
	threshold float64
	points    int
}

var (
	priceRatioTiers = []tier{{0.70, 30}, {0.85, 20}, {1.00, 10}}
	positiveTiers   = []tier{{99, 20}, {98, 16}, {97, 12}, {95, 6}}
	feedbackTiers   = []tier{{5000, 10}, {1000, 8}, {200, 6}, {50, 3}}
)

// Price returns the listing's current price, or 0 when it is missing or not positive.
func Price(l domain.Listing) float64 {
	if l.Price.Amount <= 0 || math.IsNaN(l.Price.Amount) || math.IsInf(l.Price.Amount, 0) {
		return 0
	}
	return l.Price.Amount
}

// DiscountPercent prefers the advertised percentage and falls back to
// deriving it from the original price. The result is never negative.
func DiscountPercent(l domain.Listing) float64 {
	if l.DiscountPercentage != nil {
		return clampNonNegative(*l.DiscountPercentage)
	}
	if l.OriginalPrice == nil {
		return 0
	}
	original := l.OriginalPrice.Amount
	price := Price(l)
	if original > 0 && price > 0 && original >= price {
		return (original - price) / original * 100
	}
	return 0
}

// Score computes the total and its breakdown. It is a pure function of its inputs.
func Score(l domain.Listing, medianPrice float64) (int, domain.ScoreBreakdown) {
	price := Price(l)
	discount := DiscountPercent(l)
	feedback := clampNonNegative(l.Seller.FeedbackScore)
	positive := clampNonNegative(l.Seller.PositivePercent)

	b := domain.ScoreBreakdown{
		Price:              price,
		DiscountPercent:    discount,
		MedianPrice:        medianPrice,
		SellerFeedback:     feedback,
		SellerPositive:     positive,
		DiscountScore:      discountScore(discount),
		PriceVsMedianScore: priceVsMedianScore(price, medianPrice),
		SellerScore:        sellerScore(positive, feedback),
	}
	if l.HasBuyingOption(domain.BuyingFixedPrice) {
		b.FormatScore = fixedPriceScore
	}
	b.Total = b.DiscountScore + b.PriceVsMedianScore + b.SellerScore + b.FormatScore

	return b.Total, b
}

func discountScore(discount float64) int {
	if discount < minDiscount {
		return 0
	}
	return min(maxDiscountScore, int(math.Floor(discount*discountWeight)))
}

func priceVsMedianScore(price, median float64) int {
	if median <= 0 || price <= 0 {
		return 0
	}
	ratio := price / median
	for _, t := range priceRatioTiers {
		if ratio <= t.threshold {
			return t.points
		}
	}
	return 0
}

func sellerScore(positive, feedback float64) int {
	return min(maxSellerScore, atLeast(positiveTiers, positive)+atLeast(feedbackTiers, feedback))
}

// atLeast returns the points of the first tier whose threshold v reaches. Tiers are ordered high to low.
func atLeast(tiers []tier, v float64) int {
	for _, t := range tiers {
		if v >= t.threshold {
			return t.points
		}
	}
	return 0
}

// MedianPrice returns the median of all positive prices in the batch, or 0 when there are none.
func MedianPrice(listings []domain.Listing) float64 {
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		if p := Price(l); p > 0 {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return 0
	}

	sort.Float64s(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return (prices[mid-1] + prices[mid]) / 2
}

func clampNonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
