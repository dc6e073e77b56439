package retailer

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailsync/order-scraper/internal/models"
)

func TestLookupCaseInsensitive(t *testing.T) {
	registry := NewRegistry()

	for _, id := range []string{"amazon", "AMAZON", "Amazon", "  amazon  "} {
		p, ok := registry.Lookup(id)
		require.True(t, ok, "lookup %q", id)
		assert.Equal(t, "amazon", p.ID)
	}
}

func TestLookupUnknown(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Lookup("sears")
	assert.False(t, ok)
}

func TestRegistryProfileShapes(t *testing.T) {
	registry := NewRegistry()

	for _, id := range registry.IDs() {
		p, ok := registry.Lookup(id)
		require.True(t, ok)

		assert.NotEmpty(t, p.OrdersURL, "%s orders URL", id)
		assert.Greater(t, p.MaxPages, 0, "%s max pages", id)
		assert.NotEmpty(t, p.Selectors.OrderContainer, "%s order container chain", id)
		assert.NotEmpty(t, p.Selectors.ProductName, "%s product name chain", id)
		assert.NotEmpty(t, p.Selectors.OrderDate, "%s order date chain", id)
		assert.NotEmpty(t, p.Selectors.CaptchaMarker, "%s captcha chain", id)

		if p.AuthType == models.AuthTypeCredentials {
			assert.NotEmpty(t, p.LoginURL, "%s login URL", id)
			assert.NotEmpty(t, p.Selectors.LoginEmail, "%s login email chain", id)
			assert.NotEmpty(t, p.Selectors.LoginPassword, "%s login password chain", id)
			assert.NotEmpty(t, p.Selectors.LoginSubmit, "%s login submit chain", id)
		} else {
			assert.NotEmpty(t, p.Selectors.AccountMarker, "%s account marker chain", id)
		}
	}
}

func TestAmazonIsTokenBased(t *testing.T) {
	registry := NewRegistry()

	p, ok := registry.Lookup("amazon")
	require.True(t, ok)
	assert.Equal(t, models.AuthTypeOAuth, p.AuthType)

	p, ok = registry.Lookup("walmart")
	require.True(t, ok)
	assert.Equal(t, models.AuthTypeCredentials, p.AuthType)
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestChainFindFirst(t *testing.T) {
	doc := mustDoc(t, `
		<div class="fallback-title">Fallback</div>
		<div class="secondary">Second</div>`)

	tests := []struct {
		name     string
		chain    Chain
		expected string
	}{
		{
			name:     "first candidate wins",
			chain:    Chain{".fallback-title", ".secondary"},
			expected: "Fallback",
		},
		{
			name:     "falls through missing candidates",
			chain:    Chain{".missing", "#also-missing", ".secondary"},
			expected: "Second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.chain.FindFirst(doc.Selection)
			require.NotNil(t, m)
			assert.Equal(t, tt.expected, strings.TrimSpace(m.First().Text()))
		})
	}
}

func TestChainFindFirstNoMatch(t *testing.T) {
	doc := mustDoc(t, `<div class="present"></div>`)

	assert.Nil(t, Chain{".missing", "#gone"}.FindFirst(doc.Selection))
	assert.Nil(t, Chain{}.FindFirst(doc.Selection))
}

func TestChainText(t *testing.T) {
	doc := mustDoc(t, `<span class="title">
		Widget
		Pro
	</span>`)

	assert.Equal(t, "Widget Pro", Chain{".title"}.Text(doc.Selection))
	assert.Equal(t, "", Chain{".missing"}.Text(doc.Selection))
}

func TestChainAttr(t *testing.T) {
	doc := mustDoc(t, `<img class="thumb" src="https://img.example.com/a.jpg">`)

	assert.Equal(t, "https://img.example.com/a.jpg", Chain{".thumb"}.Attr(doc.Selection, "src"))
	assert.Equal(t, "", Chain{".thumb"}.Attr(doc.Selection, "alt"))
	assert.Equal(t, "", Chain{".missing"}.Attr(doc.Selection, "src"))
}
