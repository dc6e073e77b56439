package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailsync/order-scraper/internal/browser/drivertest"
	"github.com/retailsync/order-scraper/internal/models"
	"github.com/retailsync/order-scraper/internal/retailer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func profileFor(t *testing.T, id string) *retailer.Profile {
	t.Helper()
	p, ok := retailer.NewRegistry().Lookup(id)
	require.True(t, ok)
	return p
}

const walmartLoginHTML = `
	<form>
		<input id="loginId" type="email">
		<input id="password" type="password">
		<button id="sign-in-form-submit-btn">Sign in</button>
	</form>`

const walmartAccountHTML = `
	<div data-testid="account-menu">Hi, Test</div>
	<div data-testid="order-card"></div>`

func TestCredentialFlowSuccess(t *testing.T) {
	profile := profileFor(t, "walmart")

	fake := drivertest.New()
	fake.HTMLByURL[profile.LoginURL] = walmartLoginHTML
	fake.OnClick["button#sign-in-form-submit-btn"] = walmartAccountHTML

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:     models.AuthTypeCredentials,
		Username: "user@example.com",
		Password: "hunter2",
	})

	require.Nil(t, serr)
	assert.Equal(t, StateAuthenticated, flow.State())
	assert.Equal(t, "user@example.com", fake.Filled["input#loginId"])
	assert.Equal(t, "hunter2", fake.Filled["input#password"])
	assert.Contains(t, fake.Clicks, "button#sign-in-form-submit-btn")
}

func TestCredentialFlowPreLoginCaptcha(t *testing.T) {
	profile := profileFor(t, "walmart")

	fake := drivertest.New()
	fake.HTMLByURL[profile.LoginURL] = `<div class="re-captcha"></div>` + walmartLoginHTML

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:     models.AuthTypeCredentials,
		Username: "u",
		Password: "p",
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindCaptcha, serr.Kind)
	assert.False(t, serr.Recoverable)
	assert.Equal(t, StateFailed, flow.State())
	// The flow must stop before touching the form.
	assert.Empty(t, fake.Filled)
}

func TestCredentialFlowPostLoginCaptcha(t *testing.T) {
	profile := profileFor(t, "walmart")

	fake := drivertest.New()
	fake.HTMLByURL[profile.LoginURL] = walmartLoginHTML
	fake.OnClick["button#sign-in-form-submit-btn"] = `<div id="px-captcha"></div>`

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:     models.AuthTypeCredentials,
		Username: "u",
		Password: "p",
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindCaptcha, serr.Kind)
}

func TestCredentialFlowTwoFactor(t *testing.T) {
	profile := profileFor(t, "walmart")

	fake := drivertest.New()
	fake.HTMLByURL[profile.LoginURL] = walmartLoginHTML
	fake.OnClick["button#sign-in-form-submit-btn"] = `<input name="otp">`

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:     models.AuthTypeCredentials,
		Username: "u",
		Password: "p",
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindAuthFailed, serr.Kind)
	assert.False(t, serr.Recoverable)
	assert.Contains(t, serr.Message, "two-factor")
}

func TestCredentialFlowRejectedCredentials(t *testing.T) {
	profile := profileFor(t, "walmart")

	// Login form still visible after submit means rejection.
	fake := drivertest.New()
	fake.HTMLByURL[profile.LoginURL] = walmartLoginHTML
	fake.OnClick["button#sign-in-form-submit-btn"] = walmartLoginHTML

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:     models.AuthTypeCredentials,
		Username: "u",
		Password: "wrong",
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindAuthFailed, serr.Kind)
	assert.Contains(t, serr.Message, "credentials rejected")
}

func TestCredentialFlowMissingLoginForm(t *testing.T) {
	profile := profileFor(t, "walmart")

	fake := drivertest.New()
	fake.HTMLByURL[profile.LoginURL] = `<div>maintenance page</div>`

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:     models.AuthTypeCredentials,
		Username: "u",
		Password: "p",
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindAuthFailed, serr.Kind)
	assert.Contains(t, serr.Message, "login form")
}

func TestTokenFlowSuccess(t *testing.T) {
	profile := profileFor(t, "amazon")

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = `<div id="nav-orders">Orders</div>`

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:  models.AuthTypeOAuth,
		Token: "tok-123",
	})

	require.Nil(t, serr)
	assert.Equal(t, StateAuthenticated, flow.State())
	assert.Equal(t, "Bearer tok-123", fake.Headers["Authorization"])
	assert.Equal(t, "tok-123", fake.Storage["access_token"])

	require.Len(t, fake.Cookies, 1)
	assert.Equal(t, "www.amazon.com", fake.Cookies[0].Domain)
	assert.Equal(t, "tok-123", fake.Cookies[0].Value)
}

func TestTokenFlowNoAccountMarker(t *testing.T) {
	profile := profileFor(t, "amazon")

	fake := drivertest.New()
	fake.HTMLByURL[profile.OrdersURL] = `<div id="signin-prompt">Sign in</div>`

	flow := NewFlow(fake, profile, testLogger())
	serr := flow.Run(context.Background(), models.Credential{
		Type:  models.AuthTypeOAuth,
		Token: "expired",
	})

	require.NotNil(t, serr)
	assert.Equal(t, models.ErrKindAuthFailed, serr.Kind)
	assert.False(t, serr.Recoverable)
	assert.Equal(t, StateFailed, flow.State())
}

func TestTransportFailureClassification(t *testing.T) {
	profile := profileFor(t, "walmart")

	tests := []struct {
		name     string
		err      error
		expected models.ErrorKind
	}{
		{
			name:     "generic navigation failure",
			err:      errors.New("net::ERR_TIMED_OUT navigating"),
			expected: models.ErrKindAuthFailed,
		},
		{
			name:     "captcha mentioned in transport error",
			err:      errors.New("page redirected to captcha interstitial"),
			expected: models.ErrKindCaptcha,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := drivertest.New()
			fake.NavigateErr = tt.err

			flow := NewFlow(fake, profile, testLogger())
			serr := flow.Run(context.Background(), models.Credential{
				Type:     models.AuthTypeCredentials,
				Username: "u",
				Password: "p",
			})

			require.NotNil(t, serr)
			assert.Equal(t, tt.expected, serr.Kind)
		})
	}
}
