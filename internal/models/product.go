package models

// RawRecord carries the loosely-typed fields read directly from an order
// page before normalization. It is produced and consumed within a single
// page-extraction step and never reaches the output boundary.
type RawRecord struct {
	OrderID   string
	NameText  string
	PriceText string
	DateText  string
	ImageURL  string
	Retailer  string
}

// CanonicalProduct is the retailer-agnostic output shape. The field set
// is invariant across all retailers.
type CanonicalProduct struct {
	OrderID      string  `json:"order_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	PurchaseDate string  `json:"purchase_date"`
	ImageURL     string  `json:"image_url,omitempty"`
	Retailer     string  `json:"retailer"`
	Category     string  `json:"category"`
}

// AuthType distinguishes token-based retailers from credential-form ones.
type AuthType string

const (
	AuthTypeOAuth       AuthType = "oauth"
	AuthTypeCredentials AuthType = "credentials"
)

// Credential holds either a bearer token or a username/password pair.
// Never logged, never persisted; lives for the duration of one request.
type Credential struct {
	Type     AuthType
	Token    string
	Username string
	Password string
}

// ImportRequest is the JSON body accepted by the import endpoint.
type ImportRequest struct {
	Retailer  string       `json:"retailer" validate:"required"`
	Auth      AuthPayload  `json:"auth"`
	DateRange *DateRange   `json:"date_range,omitempty"`
	Options   *ImportFlags `json:"import_options,omitempty"`
}

type AuthPayload struct {
	Type     string `json:"type" validate:"required,oneof=oauth credentials"`
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type DateRange struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type ImportFlags struct {
	IncludeReturns       bool `json:"include_returns"`
	IncludeDigital       bool `json:"include_digital"`
	IncludeSubscriptions bool `json:"include_subscriptions"`
}

// ImportResponse is the success payload of the import endpoint.
type ImportResponse struct {
	Success  bool               `json:"success"`
	Retailer string             `json:"retailer"`
	Products []CanonicalProduct `json:"products"`
	Count    int                `json:"count"`
}

// ErrorResponse is the failure payload of the import endpoint.
type ErrorResponse struct {
	Error       string    `json:"error"`
	Type        ErrorKind `json:"type,omitempty"`
	Recoverable *bool     `json:"recoverable,omitempty"`
}
