package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/machikado-app/api/internal/platform/httpx"
	"github.com/machikado-app/api/internal/services"
)

const (
	maxMapsBodySize       = 8 * 1024
	defaultMapsRateLimit  = 30
	defaultMapsRateWindow = time.Minute
)

// MapsHandlers exposes the map link expansion endpoint. Expansion reaches out
// to third-party hosts, so callers are rate limited per source address.
type MapsHandlers struct {
	maps    services.MapsService
	limiter rateLimiter
}

// MapsOption customises MapsHandlers construction.
type MapsOption func(*MapsHandlers)

// WithMapsRateLimit overrides the per-address request budget.
func WithMapsRateLimit(limit int, window time.Duration) MapsOption {
	return func(h *MapsHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewMapsHandlers constructs a new MapsHandlers instance.
func NewMapsHandlers(maps services.MapsService, opts ...MapsOption) *MapsHandlers {
	h := &MapsHandlers{
		maps:    maps,
		limiter: newSimpleRateLimiter(defaultMapsRateLimit, defaultMapsRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the map expansion endpoint.
func (h *MapsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maps:expand", h.expand)
}

// expand resolves a shortened map link. Expansion failures are part of the
// contract and answer 200 with success=false.
func (h *MapsHandlers) expand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maps == nil {
		httpx.WriteError(ctx, w, httpx.NewError("maps_service_unavailable", "maps service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many expansion requests", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxMapsBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}

	var req expandMapRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "url is required", http.StatusBadRequest))
		return
	}

	result := h.maps.ExpandMapURL(ctx, req.URL)

	payload := expandMapResponse{Success: result.Success}
	if result.ExpandedURL != "" {
		payload.ExpandedURL = result.ExpandedURL
	}
	if result.Coordinates != nil {
		payload.Coordinates = &geoPointPayload{
			Latitude:  result.Coordinates.Latitude,
			Longitude: result.Coordinates.Longitude,
		}
	}
	if result.Error != "" {
		payload.Error = result.Error
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

type expandMapRequest struct {
	URL string `json:"url"`
}

type expandMapResponse struct {
	Success     bool             `json:"success"`
	ExpandedURL string           `json:"expandedUrl,omitempty"`
	Coordinates *geoPointPayload `json:"coordinates,omitempty"`
	Error       string           `json:"error,omitempty"`
}
