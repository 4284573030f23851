package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/platform/auth"
	"github.com/machikado-app/api/internal/platform/httpx"
	"github.com/machikado-app/api/internal/services"
)

const maxEventBodySize = 16 * 1024

// EventHandlers exposes the owner-facing event lifecycle endpoints.
type EventHandlers struct {
	authn      *auth.Authenticator
	moderation services.ModerationService
}

// NewEventHandlers constructs a new EventHandlers instance.
func NewEventHandlers(authn *auth.Authenticator, moderation services.ModerationService) *EventHandlers {
	return &EventHandlers{
		authn:      authn,
		moderation: moderation,
	}
}

// Routes registers the /events endpoints.
func (h *EventHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/{eventId}:progress", h.advanceProgress)
}

func (h *EventHandlers) advanceProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.moderation == nil {
		writeModerationUnavailable(ctx, w)
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	eventID := strings.TrimSpace(chi.URLParam(r, "eventId"))
	if eventID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "event id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxEventBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}

	var req progressRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	target := domain.EventProgress(strings.ToLower(strings.TrimSpace(req.Progress)))
	switch target {
	case domain.ProgressOngoing, domain.ProgressCancelled, domain.ProgressFinished:
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "progress must be one of ongoing, cancelled, finished", http.StatusBadRequest))
		return
	}

	actorRole := domain.RoleShopOwner
	if identity.HasRole(auth.RoleAdmin) {
		actorRole = domain.RoleAdmin
	}

	event, err := h.moderation.AdvanceEventProgress(ctx, services.ProgressCommand{
		EventID:   eventID,
		ActorUID:  identity.UID,
		ActorRole: actorRole,
		Target:    target,
	})
	if err != nil {
		writeModerationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildEventPayload(event))
}

type progressRequest struct {
	Progress string `json:"progress"`
}
