package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailsync/order-scraper/internal/browser"
	"github.com/retailsync/order-scraper/internal/browser/drivertest"
	"github.com/retailsync/order-scraper/internal/models"
)

type fakeRuntime struct {
	driver   *drivertest.Fake
	err      error
	sessions int
}

func (r *fakeRuntime) NewSession() (browser.Driver, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.sessions++
	return r.driver, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuardClosesSessionOnSuccess(t *testing.T) {
	rt := &fakeRuntime{driver: drivertest.New()}
	guard := NewGuard(rt, time.Minute, testLogger())

	serr := guard.Run(context.Background(), func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		return nil
	})

	require.Nil(t, serr)
	assert.True(t, rt.driver.Closed)
}

func TestGuardClosesSessionOnError(t *testing.T) {
	rt := &fakeRuntime{driver: drivertest.New()}
	guard := NewGuard(rt, time.Minute, testLogger())

	want := models.NewScrapeError(models.ErrKindCaptcha, "blocked", nil)
	serr := guard.Run(context.Background(), func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		return want
	})

	require.Same(t, want, serr)
	assert.True(t, rt.driver.Closed)
}

func TestGuardDeadline(t *testing.T) {
	rt := &fakeRuntime{driver: drivertest.New()}
	guard := NewGuard(rt, 20*time.Millisecond, testLogger())

	serr := guard.Run(context.Background(), func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		<-ctx.Done()
		return nil
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindTimeout, serr.Kind)
	assert.True(t, rt.driver.Closed)
}

func TestGuardDeadlineRewritesLateErrors(t *testing.T) {
	rt := &fakeRuntime{driver: drivertest.New()}
	guard := NewGuard(rt, 20*time.Millisecond, testLogger())

	serr := guard.Run(context.Background(), func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		<-ctx.Done()
		return models.NewScrapeError(models.ErrKindParse, "wait aborted", ctx.Err())
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindTimeout, serr.Kind)
}

func TestGuardKeepsCaptchaOverDeadline(t *testing.T) {
	rt := &fakeRuntime{driver: drivertest.New()}
	guard := NewGuard(rt, 20*time.Millisecond, testLogger())

	serr := guard.Run(context.Background(), func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		<-ctx.Done()
		return models.NewScrapeError(models.ErrKindCaptcha, "blocked mid-run", nil)
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindCaptcha, serr.Kind)
}

func TestGuardRuntimeFailure(t *testing.T) {
	rt := &fakeRuntime{err: errors.New("browser pool exhausted")}
	guard := NewGuard(rt, time.Minute, testLogger())

	called := false
	serr := guard.Run(context.Background(), func(ctx context.Context, d browser.Driver) *models.ScrapeError {
		called = true
		return nil
	})

	require.NotNil(t, serr)
	assert.False(t, called)
	assert.Equal(t, 0, rt.sessions)
}

func TestGuardDefaultDeadline(t *testing.T) {
	guard := NewGuard(&fakeRuntime{driver: drivertest.New()}, 0, testLogger())
	assert.Equal(t, DefaultDeadline, guard.deadline)
}
