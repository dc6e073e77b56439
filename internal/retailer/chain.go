package retailer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FindFirst runs the chain against root and returns the first
// candidate's matches, or nil when no candidate matches. Pure with
// respect to the document.
func (c Chain) FindFirst(root *goquery.Selection) *goquery.Selection {
	for _, sel := range c {
		if m := root.Find(sel); m.Length() > 0 {
			return m
		}
	}
	return nil
}

// Text returns the whitespace-collapsed text of the chain's first
// match, or "".
func (c Chain) Text(root *goquery.Selection) string {
	m := c.FindFirst(root)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(m.First().Text()), " ")
}

// Attr returns the named attribute of the chain's first match, or "".
func (c Chain) Attr(root *goquery.Selection, name string) string {
	m := c.FindFirst(root)
	if m == nil {
		return ""
	}
	v, _ := m.First().Attr(name)
	return v
}
