// Package session owns the per-request browser session lifetime: one
// session per request, a hard wall-clock deadline over the whole
// authenticate-and-extract sequence, and teardown on every exit path.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retailsync/order-scraper/internal/browser"
	"github.com/retailsync/order-scraper/internal/models"
)

// Runtime acquires fresh automation sessions. *browser.Browser is the
// production implementation.
type Runtime interface {
	NewSession() (browser.Driver, error)
}

const DefaultDeadline = 3 * time.Minute

// Guard wraps a unit of scraping work in session acquisition, deadline
// enforcement and guaranteed teardown.
type Guard struct {
	runtime  Runtime
	deadline time.Duration
	logger   *slog.Logger
}

func NewGuard(runtime Runtime, deadline time.Duration, logger *slog.Logger) *Guard {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Guard{
		runtime:  runtime,
		deadline: deadline,
		logger:   logger.With("component", "session"),
	}
}

// Run acquires a session, executes fn under the request deadline and
// tears the session down no matter how fn exits. Teardown failures are
// logged and suppressed; they never mask fn's result.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context, d browser.Driver) *models.ScrapeError) *models.ScrapeError {
	sessionID := uuid.NewString()
	log := g.logger.With("session_id", sessionID)

	driver, err := g.runtime.NewSession()
	if err != nil {
		log.Error("failed to acquire browser session", "error", err)
		return models.NewScrapeError(models.ErrKindParse,
			"failed to acquire browser session", err)
	}

	defer func() {
		if err := driver.Close(); err != nil {
			log.Warn("session teardown failed", "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, g.deadline)
	defer cancel()

	log.Info("session opened", "deadline", g.deadline)
	serr := fn(runCtx, driver)

	if serr == nil && runCtx.Err() != nil {
		serr = deadlineError(runCtx.Err())
	}
	if serr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && serr.Kind != models.ErrKindCaptcha {
		serr = deadlineError(runCtx.Err())
	}

	if serr != nil {
		log.Warn("session finished with error", "kind", serr.Kind)
	} else {
		log.Info("session finished")
	}
	return serr
}

func deadlineError(cause error) *models.ScrapeError {
	return models.NewScrapeError(models.ErrKindTimeout,
		"request deadline exceeded", cause)
}
