package scraper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailsync/order-scraper/internal/browser"
	"github.com/retailsync/order-scraper/internal/browser/drivertest"
	"github.com/retailsync/order-scraper/internal/metrics"
	"github.com/retailsync/order-scraper/internal/models"
	"github.com/retailsync/order-scraper/internal/retailer"
	"github.com/retailsync/order-scraper/internal/session"
)

type fakeRuntime struct {
	driver   *drivertest.Fake
	sessions int
}

func (r *fakeRuntime) NewSession() (browser.Driver, error) {
	r.sessions++
	return r.driver, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(driver *drivertest.Fake) (*Service, *fakeRuntime) {
	rt := &fakeRuntime{driver: driver}
	guard := session.NewGuard(rt, time.Minute, testLogger())
	svc := NewService(guard, metrics.New(), nil, nil, 0, testLogger())
	return svc, rt
}

func amazonProfile(t *testing.T) *retailer.Profile {
	t.Helper()
	p, ok := retailer.NewRegistry().Lookup("amazon")
	require.True(t, ok)
	return p
}

func amazonOrdersHTML(items string) string {
	return `<div id="nav-orders">Orders</div>` + items
}

func orderCard(name, date, price string) string {
	return `<div class="order-card">
		<div class="order-info"><div class="a-column"><span class="value">` + date + `</span></div></div>
		<span class="yohtmlc-product-title">` + name + `</span>
		<div class="yohtmlc-order-total"><span class="value">` + price + `</span></div>
	</div>`
}

func TestImportTokenHappyPath(t *testing.T) {
	profile := amazonProfile(t)

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = amazonOrdersHTML(orderCard("Widget Pro", "2 days ago", "$19.99"))

	svc, rt := newTestService(fake)
	products, serr := svc.Import(context.Background(), profile,
		models.Credential{Type: models.AuthTypeOAuth, Token: "tok"},
		models.ImportRequest{Retailer: "amazon"})

	require.Nil(t, serr)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget Pro", products[0].Name)
	assert.Equal(t, 19.99, products[0].Price)
	assert.Equal(t, time.Now().AddDate(0, 0, -2).Format("2006-01-02"), products[0].PurchaseDate)
	assert.Equal(t, "amazon", products[0].Retailer)
	assert.Equal(t, "Widget", products[0].Category)

	assert.Equal(t, 1, rt.sessions)
	assert.True(t, fake.Closed)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.PagesScraped))
}

func TestImportAuthFailureClosesSession(t *testing.T) {
	profile := amazonProfile(t)

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = `<div>please sign in</div>`

	svc, _ := newTestService(fake)
	products, serr := svc.Import(context.Background(), profile,
		models.Credential{Type: models.AuthTypeOAuth, Token: "bad"},
		models.ImportRequest{Retailer: "amazon"})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindAuthFailed, serr.Kind)
	assert.Nil(t, products)
	assert.True(t, fake.Closed)
}

func TestImportDateRangeFilter(t *testing.T) {
	profile := amazonProfile(t)

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = amazonOrdersHTML(
		orderCard("Old Item", "2022-01-10", "$5.00") +
			orderCard("In Range", "2023-06-15", "$10.00") +
			orderCard("Future Item", "2024-02-01", "$15.00"))

	svc, _ := newTestService(fake)
	products, serr := svc.Import(context.Background(), profile,
		models.Credential{Type: models.AuthTypeOAuth, Token: "tok"},
		models.ImportRequest{
			Retailer:  "amazon",
			DateRange: &models.DateRange{StartDate: "2023-01-01", EndDate: "2023-12-31"},
		})

	require.Nil(t, serr)
	require.Len(t, products, 1)
	assert.Equal(t, "In Range", products[0].Name)
}

func TestImportOptionsFilter(t *testing.T) {
	profile := amazonProfile(t)

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = amazonOrdersHTML(
		orderCard("Kindle Edition Book", "2023-06-15", "$3.99") +
			orderCard("Widget Pro", "2023-06-16", "$19.99"))

	svc, _ := newTestService(fake)

	// Explicit options with digital excluded.
	products, serr := svc.Import(context.Background(), profile,
		models.Credential{Type: models.AuthTypeOAuth, Token: "tok"},
		models.ImportRequest{
			Retailer: "amazon",
			Options:  &models.ImportFlags{IncludeReturns: true, IncludeSubscriptions: true},
		})

	require.Nil(t, serr)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget Pro", products[0].Name)

	// No options block keeps everything.
	products, serr = svc.Import(context.Background(), profile,
		models.Credential{Type: models.AuthTypeOAuth, Token: "tok"},
		models.ImportRequest{Retailer: "amazon"})

	require.Nil(t, serr)
	assert.Len(t, products, 2)
}

func TestYearHint(t *testing.T) {
	tests := []struct {
		name     string
		r        *models.DateRange
		expected int
	}{
		{"nil range", nil, 0},
		{"same year", &models.DateRange{StartDate: "2023-01-01", EndDate: "2023-12-31"}, 2023},
		{"spanning years", &models.DateRange{StartDate: "2022-06-01", EndDate: "2023-06-01"}, 0},
		{"open ended", &models.DateRange{StartDate: "2023-01-01"}, 0},
		{"garbage dates", &models.DateRange{StartDate: "soonish", EndDate: "later"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, yearHint(tt.r))
		})
	}
}

func TestNilStoresAreSafe(t *testing.T) {
	// Audit and cooldown stores are optional; the service must run
	// with both absent.
	profile := amazonProfile(t)

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = amazonOrdersHTML(orderCard("Widget", "1 day ago", "$1.00"))

	svc, _ := newTestService(fake)
	require.Nil(t, svc.audit)
	require.Nil(t, svc.cooldowns)

	_, serr := svc.Import(context.Background(), profile,
		models.Credential{Type: models.AuthTypeOAuth, Token: "tok"},
		models.ImportRequest{Retailer: "amazon"})
	assert.Nil(t, serr)
}
