// Package drivertest provides an in-memory browser.Driver backed by
// static HTML, so the login and extraction flows can be exercised
// without a real browser.
package drivertest

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/retailsync/order-scraper/internal/browser"
)

// Fake implements browser.Driver over a map of URL -> HTML. Click
// transitions are scripted via OnClick: clicking a selector swaps the
// current document for the configured HTML.
type Fake struct {
	HTMLByURL map[string]string
	// OnClick maps a clicked selector to the HTML that replaces the
	// current document.
	OnClick map[string]string

	NavigateErr error
	ContentErr  error

	CurrentURL string
	Filled     map[string]string
	Clicks     []string
	Headers    map[string]string
	Cookies    []browser.Cookie
	Storage    map[string]string
	Closed     bool

	html string
}

func New() *Fake {
	return &Fake{
		HTMLByURL: make(map[string]string),
		OnClick:   make(map[string]string),
		Filled:    make(map[string]string),
		Storage:   make(map[string]string),
	}
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	f.CurrentURL = url
	f.html = ""
	for known, html := range f.HTMLByURL {
		if strings.HasPrefix(url, known) {
			f.html = html
			break
		}
	}
	return nil
}

func (f *Fake) WaitForAny(_ context.Context, selectors []string, _ time.Duration) (string, error) {
	doc := f.doc()
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return sel, nil
		}
	}
	return "", browser.ErrNoMatch
}

func (f *Fake) Click(_ context.Context, selector string) error {
	f.Clicks = append(f.Clicks, selector)
	if html, ok := f.OnClick[selector]; ok {
		f.html = html
	}
	return nil
}

func (f *Fake) Fill(_ context.Context, selector, value string) error {
	f.Filled[selector] = value
	return nil
}

func (f *Fake) Content(_ context.Context) (string, error) {
	if f.ContentErr != nil {
		return "", f.ContentErr
	}
	return f.html, nil
}

func (f *Fake) WaitSettled(_ context.Context) error {
	return nil
}

func (f *Fake) SetExtraHeaders(headers map[string]string) error {
	f.Headers = headers
	return nil
}

func (f *Fake) AddCookies(cookies []browser.Cookie) error {
	f.Cookies = append(f.Cookies, cookies...)
	return nil
}

func (f *Fake) SetLocalStorage(_ context.Context, key, value string) error {
	f.Storage[key] = value
	return nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// SetHTML replaces the current document directly, bypassing navigation.
func (f *Fake) SetHTML(html string) {
	f.html = html
}

func (f *Fake) doc() *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}
