// Package message renders alert text for chat delivery and logs.
package message

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"DealScanner/internal/domain"
)

// FormatAlerts renders ranked alerts as Telegram-flavoured HTML, one block per listing.
// Every tag opens and closes on the same line so the text can be split on newlines.
func FormatAlerts(alerts []domain.ScoredListing) string {
	if len(alerts) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d new deal(s)</b>\n", len(alerts))
	for i, a := range alerts {
		b.WriteString("\n")
		writeAlert(&b, i+1, a)
	}
	return b.String()
}

func writeAlert(b *strings.Builder, rank int, a domain.ScoredListing) {
	l, bd := a.Listing, a.Breakdown

	title := l.Title
	if title == "" {
		title = l.ID
	}
	fmt.Fprintf(b, "%d. <b>[%d] %s</b>\n", rank, bd.Total, html.EscapeString(title))

	price := formatAmount(bd.Price)
	if l.Price.Currency != "" {
		price += " " + html.EscapeString(l.Price.Currency)
	}
	line := "Price: " + price
	if bd.DiscountPercent > 0 {
		line += fmt.Sprintf(" | -%.0f%%", bd.DiscountPercent)
	}
	if bd.MedianPrice > 0 {
		line += " | median " + formatAmount(bd.MedianPrice)
	}
	b.WriteString(line + "\n")

	fmt.Fprintf(b, "Seller: %s feedback, %s%% positive\n",
		strconv.FormatFloat(bd.SellerFeedback, 'f', -1, 64),
		strconv.FormatFloat(bd.SellerPositive, 'f', -1, 64))
	fmt.Fprintf(b, "Score: discount %d, vs median %d, seller %d, format %d\n",
		bd.DiscountScore, bd.PriceVsMedianScore, bd.SellerScore, bd.FormatScore)
	if l.URL != "" {
		b.WriteString(html.EscapeString(l.URL) + "\n")
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// PlainText strips markup and decodes entities, keeping line breaks.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	return strings.TrimSpace(doc.Text())
}

// Split breaks text into ordered chunks of at most limit runes, preferring line boundaries.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n <= limit {
			current.WriteString(line)
			size += n
			continue
		}
		flush()
		for n > limit {
			head, tail := splitRunes(line, limit)
			chunks = append(chunks, head)
			line, n = tail, n-limit
		}
		current.WriteString(line)
		size = n
	}
	flush()

	return chunks
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
