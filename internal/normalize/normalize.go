// Package normalize turns raw extracted page text into canonical typed
// values. Every function here is total: garbage in, usable default out.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/retailsync/order-scraper/internal/models"
)

const (
	maxNameLength = 255
	isoDateFormat = "2006-01-02"
)

var (
	unsafeChars  = regexp.MustCompile(`[^\w\s\-.,()]`)
	priceToken   = regexp.MustCompile(`\d{1,3}(?:,\d{3})*(?:\.\d+)?|\d+(?:\.\d+)?`)
	relativeDate = regexp.MustCompile(`(\d+)\s*(day|week|month)`)
)

// absoluteDateFormats are tried in order against trimmed date text.
var absoluteDateFormats = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"1/2/2006",
	"2 January 2006",
	"02.01.2006",
	time.RFC3339,
}

// SanitizeText trims, strips angle brackets and anything outside a
// conservative safe set, and truncates to 255 characters. Idempotent.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = unsafeChars.ReplaceAllString(s, "")
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	return strings.TrimSpace(s)
}

// ParsePrice extracts the first numeric token, tolerating thousands
// separators. Returns 0 when no numeric token is present; never fails.
func ParsePrice(s string) float64 {
	token := priceToken.FindString(s)
	if token == "" {
		return 0
	}
	token = strings.ReplaceAll(token, ",", "")
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseDate resolves raw date text to an ISO calendar date. Absolute
// formats are tried first, then relative patterns like "3 days ago";
// anything unparseable falls back to today. The result is always a
// valid YYYY-MM-DD string.
func ParseDate(s string) string {
	return parseDateAt(s, time.Now())
}

func parseDateAt(s string, now time.Time) string {
	trimmed := strings.TrimSpace(s)

	for _, layout := range absoluteDateFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(isoDateFormat)
		}
	}

	if m := relativeDate.FindStringSubmatch(strings.ToLower(trimmed)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch m[2] {
			case "day":
				return now.AddDate(0, 0, -n).Format(isoDateFormat)
			case "week":
				return now.AddDate(0, 0, -7*n).Format(isoDateFormat)
			case "month":
				return now.AddDate(0, -n, 0).Format(isoDateFormat)
			}
		}
	}

	return now.Format(isoDateFormat)
}

// InferCategory returns the first whitespace-delimited token of the
// product name, or "Unknown" for an empty name.
func InferCategory(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[0]
}

// Record converts a RawRecord into a CanonicalProduct. The caller has
// already verified that name and date text are non-empty.
func Record(raw models.RawRecord) models.CanonicalProduct {
	name := SanitizeText(raw.NameText)
	return models.CanonicalProduct{
		OrderID:      raw.OrderID,
		Name:         name,
		Price:        ParsePrice(raw.PriceText),
		PurchaseDate: ParseDate(raw.DateText),
		ImageURL:     raw.ImageURL,
		Retailer:     raw.Retailer,
		Category:     InferCategory(name),
	}
}
