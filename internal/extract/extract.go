// Package extract drives the per-page order-history scrape loop and
// turns raw page records into canonical products.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/retailsync/order-scraper/internal/browser"
	"github.com/retailsync/order-scraper/internal/captcha"
	"github.com/retailsync/order-scraper/internal/models"
	"github.com/retailsync/order-scraper/internal/normalize"
	"github.com/retailsync/order-scraper/internal/retailer"
)

// SystemMaxPages is the hard ceiling on pagination depth, applied
// regardless of the caller-requested or per-retailer limit.
const SystemMaxPages = 20

const defaultWaitTimeout = 15 * time.Second

// Options tune one extraction run.
type Options struct {
	// MaxPages caps the pagination loop; 0 means the profile default.
	MaxPages int
	// YearHint requests server-side year filtering on retailers that
	// support it.
	YearHint int
	// PageDelay is the base inter-page delay; jitter of up to half the
	// base is added on top. Zero disables throttling.
	PageDelay time.Duration
	// PagesScraped, when set, is incremented once per extracted page.
	PagesScraped prometheus.Counter
}

// Extractor owns one extraction run over one fresh page cursor. It is
// not restartable.
type Extractor struct {
	driver      browser.Driver
	profile     *retailer.Profile
	logger      *slog.Logger
	waitTimeout time.Duration
}

func New(driver browser.Driver, profile *retailer.Profile, logger *slog.Logger) *Extractor {
	return &Extractor{
		driver:      driver,
		profile:     profile,
		logger:      logger.With("component", "extract", "retailer", profile.ID),
		waitTimeout: defaultWaitTimeout,
	}
}

// Run walks the order-history pages until exhaustion or the page cap.
// Per-page faults stop pagination but keep the records gathered so
// far; a captcha hit aborts the whole run.
func (e *Extractor) Run(ctx context.Context, opts Options) ([]models.CanonicalProduct, *models.ScrapeError) {
	maxPages := clampPages(opts.MaxPages, e.profile.MaxPages)

	if err := e.driver.Navigate(ctx, e.ordersURL(opts.YearHint)); err != nil {
		return nil, models.Classify(models.StageExtract, err)
	}

	products := make([]models.CanonicalProduct, 0)

	for page := 1; page <= maxPages; page++ {
		if _, err := e.driver.WaitForAny(ctx, e.profile.Selectors.OrderContainer, e.waitTimeout); err != nil {
			e.logger.Warn("order container never appeared, stopping pagination",
				"page", page, "error", err)
			return products, nil
		}

		html, err := e.driver.Content(ctx)
		if err != nil {
			e.logger.Warn("failed to read page content, stopping pagination",
				"page", page, "error", err)
			return products, nil
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			e.logger.Warn("unparseable page, stopping pagination",
				"page", page, "error", err)
			return products, nil
		}

		if captcha.Detect(doc, e.profile.Selectors.CaptchaMarker) {
			return nil, models.NewScrapeError(models.ErrKindCaptcha,
				fmt.Sprintf("captcha challenge during pagination (page %d)", page), nil)
		}

		raws := e.parsePage(doc, page)
		for _, raw := range raws {
			products = append(products, normalize.Record(raw))
		}
		e.logger.Info("page extracted", "page", page, "records", len(raws))
		if opts.PagesScraped != nil {
			opts.PagesScraped.Inc()
		}

		if page == maxPages {
			break
		}

		nextSel := e.nextPageSelector(doc)
		if nextSel == "" {
			break
		}

		if err := e.driver.Click(ctx, nextSel); err != nil {
			e.logger.Warn("next-page activation failed, stopping pagination",
				"page", page, "error", err)
			return products, nil
		}
		if err := e.driver.WaitSettled(ctx); err != nil {
			e.logger.Warn("page never settled after next-page click, stopping pagination",
				"page", page, "error", err)
			return products, nil
		}

		e.throttle(ctx, opts.PageDelay)
	}

	return products, nil
}

// parsePage reads every raw record visible on the page. Records
// missing a name or a date are dropped silently; that is markup drift,
// not an error.
func (e *Extractor) parsePage(doc *goquery.Document, page int) []models.RawRecord {
	containers := e.profile.Selectors.OrderContainer.FindFirst(doc.Selection)
	if containers == nil {
		return nil
	}

	sel := e.profile.Selectors
	var raws []models.RawRecord

	containers.Each(func(i int, card *goquery.Selection) {
		name := sel.ProductName.Text(card)
		date := sel.OrderDate.Text(card)
		if name == "" || date == "" {
			return
		}

		orderID := sel.OrderID.Text(card)
		if orderID == "" {
			orderID = e.synthesizeOrderID(page, i)
		}

		raws = append(raws, models.RawRecord{
			OrderID:   orderID,
			NameText:  name,
			PriceText: sel.ProductPrice.Text(card),
			DateText:  date,
			ImageURL:  sel.ProductImage.Attr(card, "src"),
			Retailer:  e.profile.ID,
		})
	})

	return raws
}

// synthesizeOrderID builds a page-unique fallback identifier when the
// markup exposes none. Not a stable external identifier.
func (e *Extractor) synthesizeOrderID(page, index int) string {
	return fmt.Sprintf("%s-%d-%d-%d", e.profile.ID, time.Now().Unix(), page, index)
}

func (e *Extractor) nextPageSelector(doc *goquery.Document) string {
	for _, sel := range e.profile.Selectors.NextPage {
		m := doc.Find(sel)
		if m.Length() == 0 {
			continue
		}
		if _, disabled := m.First().Attr("disabled"); disabled {
			continue
		}
		return sel
	}
	return ""
}

// throttle inserts the randomized inter-page delay. Intentional
// rate-based-defense avoidance, not resource contention.
func (e *Extractor) throttle(ctx context.Context, base time.Duration) {
	if base <= 0 {
		return
	}
	delay := base + time.Duration(rand.Int63n(int64(base/2)+1))
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (e *Extractor) ordersURL(yearHint int) string {
	u := e.profile.OrdersURL
	if yearHint > 0 && e.profile.YearParam != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + fmt.Sprintf(e.profile.YearParam, yearHint)
	}
	return u
}

func clampPages(requested, profileDefault int) int {
	pages := requested
	if pages <= 0 {
		pages = profileDefault
	}
	if pages <= 0 {
		pages = SystemMaxPages
	}
	if pages > SystemMaxPages {
		pages = SystemMaxPages
	}
	return pages
}
