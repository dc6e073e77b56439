// Package retailer holds the static per-retailer scraping profiles:
// URLs, selector fallback chains and extraction limits. The registry is
// built once at startup and read-only afterwards.
package retailer

import (
	"strings"

	"github.com/retailsync/order-scraper/internal/models"
)

// Chain is an ordered list of selector candidates, tried in sequence
// with the first structural match winning. Retailer markup varies
// across page variants; a single fixed selector is a latent outage.
type Chain []string

// SelectorSet names every DOM query the login and extraction flows need.
type SelectorSet struct {
	LoginEmail     Chain
	LoginPassword  Chain
	LoginSubmit    Chain
	AccountMarker  Chain
	OrderContainer Chain
	OrderID        Chain
	ProductName    Chain
	OrderDate      Chain
	ProductPrice   Chain
	ProductImage   Chain
	NextPage       Chain
	CaptchaMarker  Chain
	TwoFactor      Chain
}

// Profile is the immutable configuration for one retailer.
type Profile struct {
	ID        string
	AuthType  models.AuthType
	LoginURL  string
	OrdersURL string
	// YearParam, when set, is appended to OrdersURL to request
	// server-side filtering by order year.
	YearParam string
	Selectors SelectorSet
	MaxPages  int
	// Marker substrings used by the import-option post filters.
	ReturnMarkers       []string
	DigitalMarkers      []string
	SubscriptionMarkers []string
}

// Registry maps lower-cased retailer identifiers to their profiles.
type Registry struct {
	profiles map[string]*Profile
}

// Lookup resolves a retailer identifier, case-insensitively.
func (r *Registry) Lookup(id string) (*Profile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// IDs returns every registered retailer identifier.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids
}

// NewRegistry builds the default profile set. Selector chains mirror
// the live retailer front ends as of the last markup audit.
func NewRegistry() *Registry {
	profiles := []*Profile{
		amazonProfile(),
		walmartProfile(),
		targetProfile(),
		bestbuyProfile(),
	}

	m := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	return &Registry{profiles: m}
}

func amazonProfile() *Profile {
	return &Profile{
		ID:        "amazon",
		AuthType:  models.AuthTypeOAuth,
		LoginURL:  "https://www.amazon.com/ap/signin",
		OrdersURL: "https://www.amazon.com/gp/css/order-history",
		YearParam: "timeFilter=year-%d",
		MaxPages:  10,
		Selectors: SelectorSet{
			AccountMarker:  Chain{"#nav-link-accountList", "#nav-orders", ".nav-line-1-container"},
			OrderContainer: Chain{".order-card", ".a-box-group.order", ".js-order-card"},
			OrderID:        Chain{".yohtmlc-order-id span[dir=ltr]", "bdi[dir=ltr]"},
			ProductName:    Chain{".yohtmlc-product-title", ".a-link-normal[href*='/dp/']", ".item-title"},
			OrderDate:      Chain{".order-info .a-column .value", ".order-header .a-size-base", ".delivery-box__primary-text"},
			ProductPrice:   Chain{".yohtmlc-order-total .value", ".a-price .a-offscreen", ".order-total"},
			ProductImage:   Chain{".product-image img", ".item-view-left-col-inner img", "img.yo-critical-feature"},
			NextPage:       Chain{"ul.a-pagination li.a-last a", ".a-pagination .a-last:not(.a-disabled) a"},
			CaptchaMarker:  Chain{"#captchacharacters", "form[action*='Captcha']", "#auth-captcha-image"},
			TwoFactor:      Chain{"#auth-mfa-otpcode", "#auth-mfa-form"},
		},
		ReturnMarkers:       []string{"Return complete", "Refunded"},
		DigitalMarkers:      []string{"Kindle", "Digital Order", "eBook"},
		SubscriptionMarkers: []string{"Subscribe & Save", "Subscription"},
	}
}

func walmartProfile() *Profile {
	return &Profile{
		ID:        "walmart",
		AuthType:  models.AuthTypeCredentials,
		LoginURL:  "https://www.walmart.com/account/login",
		OrdersURL: "https://www.walmart.com/orders",
		MaxPages:  8,
		Selectors: SelectorSet{
			LoginEmail:     Chain{"input#loginId", "input[name='Email Address']", "input[type='email']"},
			LoginPassword:  Chain{"input#password", "input[name='Password']", "input[type='password']"},
			LoginSubmit:    Chain{"button#sign-in-form-submit-btn", "button[type='submit']"},
			AccountMarker:  Chain{"[data-testid='account-menu']", ".account-greeting"},
			OrderContainer: Chain{"[data-testid='order-card']", ".order-card", "[data-automation-id='order']"},
			OrderID:        Chain{"[data-testid='order-number']", ".order-number"},
			ProductName:    Chain{"[data-testid='productName']", ".order-item-title", "[data-automation-id='product-title']"},
			OrderDate:      Chain{"[data-testid='order-date']", ".order-date"},
			ProductPrice:   Chain{"[data-testid='order-total']", ".order-total", ".price-main"},
			ProductImage:   Chain{"[data-testid='productImage'] img", ".order-item-image img"},
			NextPage:       Chain{"[data-testid='NextPage']", "button[aria-label='Next Page']", "a[aria-label='next page']"},
			CaptchaMarker:  Chain{".re-captcha", "#px-captcha", "iframe[title*='challenge']"},
			TwoFactor:      Chain{"input[name='otp']", "[data-testid='verify-code']"},
		},
		ReturnMarkers:       []string{"Returned", "Refund issued"},
		DigitalMarkers:      []string{"eGift Card", "Digital delivery"},
		SubscriptionMarkers: []string{"Subscription"},
	}
}

func targetProfile() *Profile {
	return &Profile{
		ID:        "target",
		AuthType:  models.AuthTypeCredentials,
		LoginURL:  "https://www.target.com/login",
		OrdersURL: "https://www.target.com/orders",
		MaxPages:  8,
		Selectors: SelectorSet{
			LoginEmail:     Chain{"input#username", "input[name='username']", "input[type='email']"},
			LoginPassword:  Chain{"input#password", "input[name='password']"},
			LoginSubmit:    Chain{"button#login", "button[type='submit']"},
			AccountMarker:  Chain{"[data-test='@web/AccountLink']", "#account"},
			OrderContainer: Chain{"[data-test='order-card']", ".order-history-card"},
			OrderID:        Chain{"[data-test='order-number']", ".order-number"},
			ProductName:    Chain{"[data-test='product-title']", ".order-item-name"},
			OrderDate:      Chain{"[data-test='order-date']", ".order-placed-date"},
			ProductPrice:   Chain{"[data-test='order-total']", ".order-total-amount"},
			ProductImage:   Chain{"[data-test='product-image'] img", ".order-item-image img"},
			NextPage:       Chain{"button[data-test='next']", "button[aria-label='next page']"},
			CaptchaMarker:  Chain{"#sec-cpt-if", "iframe[src*='captcha']"},
			TwoFactor:      Chain{"input[name='passcode']", "[data-test='verification-code']"},
		},
		ReturnMarkers:       []string{"Return started", "Refunded"},
		DigitalMarkers:      []string{"Gift card", "Digital"},
		SubscriptionMarkers: []string{"Subscription"},
	}
}

func bestbuyProfile() *Profile {
	return &Profile{
		ID:        "bestbuy",
		AuthType:  models.AuthTypeCredentials,
		LoginURL:  "https://www.bestbuy.com/identity/global/signin",
		OrdersURL: "https://www.bestbuy.com/profile/ss/purchasehistory",
		MaxPages:  6,
		Selectors: SelectorSet{
			LoginEmail:     Chain{"input#fld-e", "input[type='email']"},
			LoginPassword:  Chain{"input#fld-p1", "input[type='password']"},
			LoginSubmit:    Chain{"button.cia-form__controls__submit", "button[type='submit']"},
			AccountMarker:  Chain{".account-menu", "[data-lid='account_menu']"},
			OrderContainer: Chain{".order-card", ".purchase-summary"},
			OrderID:        Chain{".order-number", ".purchase-number"},
			ProductName:    Chain{".order-item-title a", ".sku-title"},
			OrderDate:      Chain{".order-date", ".purchase-date"},
			ProductPrice:   Chain{".order-total", ".purchase-total"},
			ProductImage:   Chain{".order-item-image img", ".product-image img"},
			NextPage:       Chain{"a.pagination-next", "button[aria-label='Next']"},
			CaptchaMarker:  Chain{"#verify-human", "iframe[src*='captcha']"},
			TwoFactor:      Chain{"input[name='verificationCode']", "#verification-code"},
		},
		ReturnMarkers:       []string{"Returned", "Refund"},
		DigitalMarkers:      []string{"Digital download", "E-Gift Card"},
		SubscriptionMarkers: []string{"Subscription", "Membership"},
	}
}
