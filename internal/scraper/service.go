// Package scraper coordinates one import request end to end: profile
// selection, session lifetime, authentication, paginated extraction
// and result filtering.
package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/retailsync/order-scraper/internal/auth"
	"github.com/retailsync/order-scraper/internal/browser"
	"github.com/retailsync/order-scraper/internal/cooldown"
	"github.com/retailsync/order-scraper/internal/database"
	"github.com/retailsync/order-scraper/internal/extract"
	"github.com/retailsync/order-scraper/internal/metrics"
	"github.com/retailsync/order-scraper/internal/models"
	"github.com/retailsync/order-scraper/internal/retailer"
	"github.com/retailsync/order-scraper/internal/session"
)

type Service struct {
	guard     *session.Guard
	metrics   *metrics.Metrics
	audit     *database.DB    // nil disables auditing
	cooldowns *cooldown.Store // nil disables cooldowns
	logger    *slog.Logger
	pageDelay time.Duration
}

func NewService(guard *session.Guard, m *metrics.Metrics, audit *database.DB, cooldowns *cooldown.Store, pageDelay time.Duration, logger *slog.Logger) *Service {
	return &Service{
		guard:     guard,
		metrics:   m,
		audit:     audit,
		cooldowns: cooldowns,
		logger:    logger.With("component", "scraper"),
		pageDelay: pageDelay,
	}
}

// Import runs the authenticate-and-extract sequence for one validated
// request. The returned products are fully normalized and filtered;
// any failure comes back classified.
func (s *Service) Import(ctx context.Context, profile *retailer.Profile, cred models.Credential, req models.ImportRequest) ([]models.CanonicalProduct, *models.ScrapeError) {
	start := time.Now()

	if s.cooldowns.Blocked(ctx, profile.ID) {
		serr := models.NewScrapeError(models.ErrKindRateLimit,
			"retailer is on cooldown after a recent block", nil)
		s.finish(ctx, profile.ID, 0, start, serr)
		return nil, serr
	}

	var products []models.CanonicalProduct

	serr := s.guard.Run(ctx, func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		flow := auth.NewFlow(d, profile, s.logger)
		if serr := flow.Run(ctx, cred); serr != nil {
			return serr
		}

		extractor := extract.New(d, profile, s.logger)
		extracted, serr := extractor.Run(ctx, extract.Options{
			YearHint:     yearHint(req.DateRange),
			PageDelay:    s.pageDelay,
			PagesScraped: s.metrics.PagesScraped,
		})
		if serr != nil {
			return serr
		}

		products = filterDateRange(extracted, req.DateRange)
		products = filterOptions(products, profile, req.Options)
		return nil
	})

	if serr != nil {
		if serr.Kind == models.ErrKindCaptcha {
			s.cooldowns.Block(ctx, profile.ID, string(serr.Kind))
		}
		s.finish(ctx, profile.ID, 0, start, serr)
		return nil, serr
	}

	s.finish(ctx, profile.ID, len(products), start, nil)
	return products, nil
}

func (s *Service) finish(ctx context.Context, retailerID string, count int, start time.Time, serr *models.ScrapeError) {
	elapsed := time.Since(start)

	outcome := "success"
	errKind := ""
	if serr != nil {
		outcome = "error"
		errKind = string(serr.Kind)
		s.metrics.ErrorsTotal.WithLabelValues(errKind).Inc()
	}
	s.metrics.ObserveImport(retailerID, outcome, count, elapsed)

	// The audit row is best-effort and carries no product data.
	err := s.audit.RecordAttempt(ctx, database.Attempt{
		Retailer:    retailerID,
		Outcome:     outcome,
		ErrorKind:   errKind,
		RecordCount: count,
		Duration:    elapsed,
	})
	if err != nil {
		s.logger.Warn("failed to record attempt audit", "error", err)
	}

	s.logger.Info("import finished",
		"retailer", retailerID, "outcome", outcome, "records", count,
		"duration", elapsed)
}

// yearHint asks the retailer for server-side year filtering when the
// requested range sits inside a single calendar year.
func yearHint(r *models.DateRange) int {
	if r == nil || r.StartDate == "" || r.EndDate == "" {
		return 0
	}
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return 0
	}
	if start.Year() != end.Year() {
		return 0
	}
	return start.Year()
}

// filterDateRange drops products outside the requested window. ISO
// dates compare lexicographically.
func filterDateRange(products []models.CanonicalProduct, r *models.DateRange) []models.CanonicalProduct {
	if r == nil {
		return products
	}
	kept := products[:0]
	for _, p := range products {
		if r.StartDate != "" && p.PurchaseDate < r.StartDate {
			continue
		}
		if r.EndDate != "" && p.PurchaseDate > r.EndDate {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// filterOptions applies the include_* flags using the profile's marker
// phrases. A nil options block keeps everything.
func filterOptions(products []models.CanonicalProduct, profile *retailer.Profile, opts *models.ImportFlags) []models.CanonicalProduct {
	if opts == nil {
		return products
	}
	kept := products[:0]
	for _, p := range products {
		if !opts.IncludeReturns && matchesMarker(p.Name, profile.ReturnMarkers) {
			continue
		}
		if !opts.IncludeDigital && matchesMarker(p.Name, profile.DigitalMarkers) {
			continue
		}
		if !opts.IncludeSubscriptions && matchesMarker(p.Name, profile.SubscriptionMarkers) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func matchesMarker(name string, markers []string) bool {
	lower := strings.ToLower(name)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
