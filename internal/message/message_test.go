package message

import (
	"strings"
	"testing"
	"unicode/utf8"

	"DealScanner/internal/domain"
)

func sampleAlert() domain.ScoredListing {
	return domain.ScoredListing{
		Listing: domain.Listing{
			ID:    "v1|1|0",
			Title: "Switch <OLED> & dock",
			URL:   "https://www.ebay.fr/itm/1?a=1&b=2",
			Price: domain.Money{Amount: 80, Currency: "EUR"},
		},
		Breakdown: domain.ScoreBreakdown{
			Price: 80, DiscountPercent: 20, MedianPrice: 100,
			SellerFeedback: 6000, SellerPositive: 99.5,
			DiscountScore: 30, PriceVsMedianScore: 20, SellerScore: 30, FormatScore: 5, Total: 85,
		},
	}
}

func TestFormatAlerts(t *testing.T) {
	t.Parallel()

	text := FormatAlerts([]domain.ScoredListing{sampleAlert()})
	for _, want := range []string{
		"<b>1 new deal(s)</b>",
		"1. <b>[85] Switch &lt;OLED&gt; &amp; dock</b>",
		"Price: 80.00 EUR | -20% | median 100.00",
		"Seller: 6000 feedback, 99.5% positive",
		"https://www.ebay.fr/itm/1?a=1&amp;b=2",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}

	if FormatAlerts(nil) != "" {
		t.Fatalf("empty alerts should render nothing")
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	plain := PlainText(FormatAlerts([]domain.ScoredListing{sampleAlert()}))
	if strings.Contains(plain, "<b>") {
		t.Fatalf("markup not stripped: %s", plain)
	}
	if !strings.Contains(plain, "[85] Switch <OLED> & dock") {
		t.Fatalf("entities not decoded: %s", plain)
	}
	if !strings.Contains(plain, "https://www.ebay.fr/itm/1?a=1&b=2") {
		t.Fatalf("url lost: %s", plain)
	}
	if strings.Count(plain, "\n") < 4 {
		t.Fatalf("line breaks lost: %q", plain)
	}
}

func TestSplitKeepsOrderAndLimit(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString(strings.Repeat("é", 30) + "\n")
	}
	text := b.String()

	chunks := Split(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
		if !strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d split mid-line: %q", i, c)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatalf("chunks do not reassemble the original text")
	}
}

func TestSplitHardWrapsLongLines(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 25)
	chunks := Split(text, 10)
	if len(chunks) != 3 || chunks[0] != strings.Repeat("x", 10) || chunks[2] != "xxxxx" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}

	if got := Split("short", 4096); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text should be a single chunk: %q", got)
	}
	if Split("", 10) != nil {
		t.Fatalf("empty text should produce no chunks")
	}
}
