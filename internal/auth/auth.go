// Package auth drives a retailer login to completion or a classified
// failure. The flow is an explicit state machine; every transition
// returns a result instead of panicking, so each step is testable
// against a fake driver.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/retailsync/order-scraper/internal/browser"
	"github.com/retailsync/order-scraper/internal/captcha"
	"github.com/retailsync/order-scraper/internal/models"
	"github.com/retailsync/order-scraper/internal/retailer"
)

// State is the position of a login flow within its lifecycle.
type State int

const (
	StateStart State = iota
	StateNavigatedToLogin
	StateCaptchaChecked
	StateCredentialsSubmitted
	StateTwoFactorChecked
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateNavigatedToLogin:
		return "navigated_to_login"
	case StateCaptchaChecked:
		return "captcha_checked"
	case StateCredentialsSubmitted:
		return "credentials_submitted"
	case StateTwoFactorChecked:
		return "two_factor_checked"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const defaultWaitTimeout = 15 * time.Second

// Flow runs one authentication attempt against one session.
type Flow struct {
	driver      browser.Driver
	profile     *retailer.Profile
	logger      *slog.Logger
	waitTimeout time.Duration
	state       State
}

func NewFlow(driver browser.Driver, profile *retailer.Profile, logger *slog.Logger) *Flow {
	return &Flow{
		driver:      driver,
		profile:     profile,
		logger:      logger.With("component", "auth", "retailer", profile.ID),
		waitTimeout: defaultWaitTimeout,
		state:       StateStart,
	}
}

// State reports the terminal or current state, for observability and
// tests.
func (f *Flow) State() State {
	return f.state
}

// Run executes the flow. A nil return means the session is
// authenticated; any failure comes back classified.
func (f *Flow) Run(ctx context.Context, cred models.Credential) *models.ScrapeError {
	var serr *models.ScrapeError
	if cred.Type == models.AuthTypeOAuth {
		serr = f.runToken(ctx, cred.Token)
	} else {
		serr = f.runCredentials(ctx, cred)
	}

	if serr != nil {
		f.state = StateFailed
		f.logger.Warn("authentication failed", "kind", serr.Kind, "message", serr.Message)
		return serr
	}

	f.state = StateAuthenticated
	f.logger.Info("authenticated")
	return nil
}

// runToken bypasses the credential-form states entirely: the bearer
// token goes into outbound headers plus client-side storage and
// cookies, then a reachability probe confirms an authenticated-account
// marker is present.
func (f *Flow) runToken(ctx context.Context, token string) *models.ScrapeError {
	if err := f.driver.SetExtraHeaders(map[string]string{
		"Authorization": "Bearer " + token,
	}); err != nil {
		return models.Classify(models.StageAuth, err)
	}

	if domain := cookieDomain(f.profile.OrdersURL); domain != "" {
		err := f.driver.AddCookies([]browser.Cookie{
			{Name: "session-token", Value: token, Domain: domain, Path: "/"},
		})
		if err != nil {
			return models.Classify(models.StageAuth, err)
		}
	}

	if err := f.driver.Navigate(ctx, f.profile.OrdersURL); err != nil {
		return models.Classify(models.StageAuth, err)
	}
	f.state = StateNavigatedToLogin

	// Local storage is scoped to an origin, so the token can only be
	// written after the first navigation; headers and cookies above
	// cover the requests made during that navigation.
	if err := f.driver.SetLocalStorage(ctx, "access_token", token); err != nil {
		f.logger.Debug("local storage injection failed", "error", err)
	}

	_, err := f.driver.WaitForAny(ctx, f.profile.Selectors.AccountMarker, f.waitTimeout)
	if err != nil {
		return models.NewScrapeError(models.ErrKindAuthFailed,
			"token session rejected: no authenticated account marker found", err)
	}
	return nil
}

func (f *Flow) runCredentials(ctx context.Context, cred models.Credential) *models.ScrapeError {
	if err := f.driver.Navigate(ctx, f.profile.LoginURL); err != nil {
		return models.Classify(models.StageAuth, err)
	}
	f.state = StateNavigatedToLogin

	if serr := f.checkCaptcha(ctx, "pre-login"); serr != nil {
		return serr
	}
	f.state = StateCaptchaChecked

	emailSel, err := f.driver.WaitForAny(ctx, f.profile.Selectors.LoginEmail, f.waitTimeout)
	if err != nil {
		return models.NewScrapeError(models.ErrKindAuthFailed,
			"login form did not appear", err)
	}

	if err := f.driver.Fill(ctx, emailSel, cred.Username); err != nil {
		return models.Classify(models.StageAuth, err)
	}

	passSel, err := f.driver.WaitForAny(ctx, f.profile.Selectors.LoginPassword, f.waitTimeout)
	if err != nil {
		return models.NewScrapeError(models.ErrKindAuthFailed,
			"password field not found", err)
	}
	if err := f.driver.Fill(ctx, passSel, cred.Password); err != nil {
		return models.Classify(models.StageAuth, err)
	}

	submitSel, err := f.driver.WaitForAny(ctx, f.profile.Selectors.LoginSubmit, f.waitTimeout)
	if err != nil {
		return models.NewScrapeError(models.ErrKindAuthFailed,
			"submit control not found", err)
	}
	if err := f.driver.Click(ctx, submitSel); err != nil {
		return models.Classify(models.StageAuth, err)
	}
	f.state = StateCredentialsSubmitted

	if err := f.driver.WaitSettled(ctx); err != nil {
		return models.Classify(models.StageAuth, err)
	}

	if serr := f.checkCaptcha(ctx, "post-login"); serr != nil {
		return serr
	}

	html, err := f.driver.Content(ctx)
	if err != nil {
		return models.Classify(models.StageAuth, err)
	}

	if matchesAny(html, f.profile.Selectors.TwoFactor) {
		f.state = StateTwoFactorChecked
		return models.NewScrapeError(models.ErrKindAuthFailed,
			"two-factor challenge presented", nil)
	}
	f.state = StateTwoFactorChecked

	// A still-visible login field after submission means the
	// credentials were rejected.
	if matchesAny(html, f.profile.Selectors.LoginEmail) {
		return models.NewScrapeError(models.ErrKindAuthFailed,
			"credentials rejected: login form still present", nil)
	}

	return nil
}

func (f *Flow) checkCaptcha(ctx context.Context, checkpoint string) *models.ScrapeError {
	html, err := f.driver.Content(ctx)
	if err != nil {
		return models.Classify(models.StageAuth, err)
	}
	if captcha.DetectHTML(html, f.profile.Selectors.CaptchaMarker) {
		return models.NewScrapeError(models.ErrKindCaptcha,
			fmt.Sprintf("captcha challenge detected (%s)", checkpoint), nil)
	}
	return nil
}

func matchesAny(html string, chain retailer.Chain) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return chain.FindFirst(doc.Selection) != nil
}

func cookieDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
