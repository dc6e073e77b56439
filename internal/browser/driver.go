package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNoMatch is returned by WaitForAny when no selector in the chain
// became visible before the timeout elapsed.
var ErrNoMatch = errors.New("no selector matched")

// Cookie is the driver-agnostic cookie shape used for token injection.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Driver is the capability surface the authentication and extraction
// flows run against. The production implementation drives a playwright
// page; tests use an in-memory fake over static HTML.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// WaitForAny waits until one selector of the chain is visible and
	// returns it; ErrNoMatch after the timeout.
	WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	// Content returns the current page HTML snapshot.
	Content(ctx context.Context) (string, error)
	// WaitSettled blocks until in-flight navigation and network
	// activity have quieted down.
	WaitSettled(ctx context.Context) error
	SetExtraHeaders(headers map[string]string) error
	AddCookies(cookies []Cookie) error
	SetLocalStorage(ctx context.Context, key, value string) error
	Close() error
}

type pageDriver struct {
	context playwright.BrowserContext
	page    playwright.Page
	logger  *slog.Logger
}

func (d *pageDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *pageDriver) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, sel := range selectors {
			count, err := d.page.Locator(sel).Count()
			if err == nil && count > 0 {
				return sel, nil
			}
		}
		if time.Now().After(deadline) {
			return "", ErrNoMatch
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func (d *pageDriver) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.Locator(selector).First().Click(); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

func (d *pageDriver) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("fill on %q failed: %w", selector, err)
	}
	return nil
}

func (d *pageDriver) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := d.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (d *pageDriver) WaitSettled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
	if err != nil {
		// Pages with long-polling never reach network idle; DOM
		// readiness is good enough to read content.
		d.logger.Debug("network idle wait failed, falling back to domcontentloaded", "error", err)
		return d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateDomcontentloaded,
		})
	}
	return nil
}

func (d *pageDriver) SetExtraHeaders(headers map[string]string) error {
	return d.page.SetExtraHTTPHeaders(headers)
}

func (d *pageDriver) AddCookies(cookies []Cookie) error {
	converted := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		converted = append(converted, playwright.OptionalCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: playwright.String(c.Domain),
			Path:   playwright.String(c.Path),
		})
	}
	return d.context.AddCookies(converted)
}

func (d *pageDriver) SetLocalStorage(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	script := fmt.Sprintf("localStorage.setItem(%q, %q)", key, value)
	if _, err := d.page.Evaluate(script); err != nil {
		return fmt.Errorf("failed to set local storage: %w", err)
	}
	return nil
}

func (d *pageDriver) Close() error {
	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close page: %w", err))
	}
	if err := d.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close context: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
