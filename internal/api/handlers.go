package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/retailsync/order-scraper/internal/database"
	"github.com/retailsync/order-scraper/internal/models"
	"github.com/retailsync/order-scraper/internal/retailer"
	"github.com/retailsync/order-scraper/internal/scraper"
)

type Handlers struct {
	scraper  *scraper.Service
	registry *retailer.Registry
	audit    *database.DB // nil disables the stats endpoint data
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandlers(s *scraper.Service, registry *retailer.Registry, audit *database.DB, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  s,
		registry: registry,
		audit:    audit,
		validate: validator.New(),
		logger:   logger.With("component", "api"),
	}
}

// Import handles POST /api/v1/import. All request-shape failures are
// rejected before any browser session is opened.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	profile, ok := h.registry.Lookup(req.Retailer)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unsupported retailer: "+req.Retailer)
		return
	}

	cred, badReq := buildCredential(profile, req.Auth)
	if badReq != "" {
		h.respondError(w, http.StatusBadRequest, badReq)
		return
	}

	products, serr := h.scraper.Import(r.Context(), profile, cred, req)
	if serr != nil {
		h.logger.Warn("import failed",
			"retailer", profile.ID, "kind", serr.Kind, "recoverable", serr.Recoverable)
		h.respondJSON(w, serr.HTTPStatus(), models.ErrorResponse{
			Error:       serr.Message,
			Type:        serr.Kind,
			Recoverable: &serr.Recoverable,
		})
		return
	}

	h.respondJSON(w, http.StatusOK, models.ImportResponse{
		Success:  true,
		Retailer: profile.ID,
		Products: products,
		Count:    len(products),
	})
}

// buildCredential checks the auth payload against the retailer's auth
// mode. It returns a non-empty message for any 400-class mismatch.
func buildCredential(profile *retailer.Profile, auth models.AuthPayload) (models.Credential, string) {
	authType := models.AuthType(auth.Type)

	if authType != profile.AuthType {
		return models.Credential{}, "auth type " + auth.Type + " is not supported for retailer " + profile.ID
	}

	switch authType {
	case models.AuthTypeOAuth:
		if auth.Token == "" {
			return models.Credential{}, "token is required for oauth authentication"
		}
		return models.Credential{Type: authType, Token: auth.Token}, ""
	case models.AuthTypeCredentials:
		if auth.Username == "" || auth.Password == "" {
			return models.Credential{}, "username and password are required for credentials authentication"
		}
		return models.Credential{Type: authType, Username: auth.Username, Password: auth.Password}, ""
	default:
		return models.Credential{}, "unsupported auth type: " + auth.Type
	}
}

// Health handles GET /health with a static healthy status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Retailers handles GET /api/v1/retailers.
func (h *Handlers) Retailers(w http.ResponseWriter, r *http.Request) {
	ids := h.registry.IDs()
	sort.Strings(ids)
	h.respondJSON(w, http.StatusOK, map[string]any{"retailers": ids})
}

// Stats handles GET /api/v1/stats over the last 24 hours of audited
// attempts. Returns an empty list when auditing is disabled.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.StatsSince(r.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		h.logger.Error("failed to load attempt stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	if stats == nil {
		stats = []database.AttemptStats{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
