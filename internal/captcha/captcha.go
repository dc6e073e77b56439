// Package captcha detects known automation-block markers in a page
// snapshot. Detection is a pure predicate; it never mutates the page.
package captcha

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/retailsync/order-scraper/internal/retailer"
)

// blockPhrases supplement the selector markers: some challenge pages
// carry no stable selectors but always include these strings.
var blockPhrases = []string{
	"type the characters you see",
	"enter the characters you see",
	"i'm not a robot",
	"verify you are a human",
}

// Detect reports whether any known block marker is present in the
// document. Presence of a single marker is a hit.
func Detect(doc *goquery.Document, markers retailer.Chain) bool {
	if markers.FindFirst(doc.Selection) != nil {
		return true
	}

	body := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range blockPhrases {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

// DetectHTML parses raw HTML and runs Detect. Unparseable HTML is
// treated as not blocked.
func DetectHTML(html string, markers retailer.Chain) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return Detect(doc, markers)
}
