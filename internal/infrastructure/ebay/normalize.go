package ebay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"DealScanner/internal/domain"
)

// number accepts JSON numbers, numeric strings and null. Anything unparseable
// leaves it unset instead of failing the whole payload; present records that a
// non-null value was there at all.
type number struct {
	value   float64
	set     bool
	present bool
}

func (n *number) UnmarshalJSON(raw []byte) error {
	*n = number{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	n.present = true
	text := strings.TrimSpace(strings.Trim(string(raw), `"`))
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil
	}
	n.value = d.InexactFloat64()
	n.set = true
	return nil
}

// text accepts a JSON string or a bare number; any other shape decodes as "".
type text string

func (t *text) UnmarshalJSON(raw []byte) error {
	*t = ""
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		*t = text(n)
	}
	return nil
}

// options keeps the string members of a JSON array; any other shape decodes as empty.
type options []string

func (o *options) UnmarshalJSON(raw []byte) error {
	*o = nil
	var members []json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil
	}
	for _, m := range members {
		var s string
		if err := json.Unmarshal(m, &s); err == nil {
			*o = append(*o, s)
		}
	}
	return nil
}

type amount struct {
	Value    number `json:"value"`
	Currency text   `json:"currency"`
}

// UnmarshalJSON zeroes the amount when the value is not an object.
func (a *amount) UnmarshalJSON(raw []byte) error {
	type plain amount
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		*a = amount{}
		return nil
	}
	*a = amount(p)
	return nil
}

func (a *amount) money() domain.Money {
	if a == nil {
		return domain.Money{}
	}
	return domain.Money{Amount: a.Value.value, Currency: string(a.Currency)}
}

type marketingPrice struct {
	OriginalPrice      *amount `json:"originalPrice"`
	DiscountPercentage number  `json:"discountPercentage"`
}

func (m *marketingPrice) UnmarshalJSON(raw []byte) error {
	type plain marketingPrice
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		*m = marketingPrice{}
		return nil
	}
	*m = marketingPrice(p)
	return nil
}

type seller struct {
	Username                text   `json:"username"`
	FeedbackScore           number `json:"feedbackScore"`
	FeedbackPercentage      number `json:"feedbackPercentage"`
	PositiveFeedbackPercent number `json:"positiveFeedbackPercent"`
}

func (s *seller) UnmarshalJSON(raw []byte) error {
	type plain seller
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		*s = seller{}
		return nil
	}
	*s = seller(p)
	return nil
}

// itemSummary fields all decode tolerantly, so only a non-object item fails.
type itemSummary struct {
	ItemID         text            `json:"itemId"`
	LegacyItemID   text            `json:"legacyItemId"`
	Title          text            `json:"title"`
	ItemWebURL     text            `json:"itemWebUrl"`
	Price          *amount         `json:"price"`
	BuyingOptions  options         `json:"buyingOptions"`
	Condition      text            `json:"condition"`
	MarketingPrice *marketingPrice `json:"marketingPrice"`
	Seller         *seller         `json:"seller"`
}

type searchResponse struct {
	ItemSummaries []json.RawMessage `json:"itemSummaries"`
}

// ParseSearchResponse decodes a Browse search payload. Only a body that is not
// JSON at all is an error; malformed fields inside an item default to zero
// values, and only items that are not JSON objects are skipped.
func ParseSearchResponse(r io.Reader) ([]domain.Listing, error) {
	var resp searchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	listings := make([]domain.Listing, 0, len(resp.ItemSummaries))
	for _, raw := range resp.ItemSummaries {
		var item itemSummary
		if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			continue
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		listings = append(listings, item.normalize())
	}
	return listings, nil
}

func (it itemSummary) normalize() domain.Listing {
	l := domain.Listing{
		ID:        strings.TrimSpace(string(it.ItemID)),
		Title:     strings.Join(strings.Fields(string(it.Title)), " "),
		URL:       strings.TrimSpace(string(it.ItemWebURL)),
		Price:     it.Price.money(),
		Condition: string(it.Condition),
	}
	if l.ID == "" {
		l.ID = strings.TrimSpace(string(it.LegacyItemID))
	}

	for _, opt := range it.BuyingOptions {
		l.BuyingOptions = append(l.BuyingOptions, domain.BuyingOption(strings.ToUpper(strings.TrimSpace(opt))))
	}

	if mp := it.MarketingPrice; mp != nil {
		if mp.OriginalPrice != nil && mp.OriginalPrice.Value.set {
			original := mp.OriginalPrice.money()
			l.OriginalPrice = &original
		}
		// An advertised but unparseable percentage counts as 0 and is not derived.
		if mp.DiscountPercentage.present {
			pct := mp.DiscountPercentage.value
			l.DiscountPercentage = &pct
		}
	}

	if s := it.Seller; s != nil {
		l.Seller.Username = string(s.Username)
		l.Seller.FeedbackScore = s.FeedbackScore.value
		l.Seller.PositivePercent = s.FeedbackPercentage.value
		if !s.FeedbackPercentage.set {
			l.Seller.PositivePercent = s.PositiveFeedbackPercent.value
		}
	}

	return l
}
