package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/platform/auth"
	"github.com/machikado-app/api/internal/platform/httpx"
	"github.com/machikado-app/api/internal/platform/pagination"
	"github.com/machikado-app/api/internal/repositories"
	"github.com/machikado-app/api/internal/services"
)

const maxModerationBodySize = 16 * 1024

// AdminModerationHandlers exposes the administrator decision endpoints.
type AdminModerationHandlers struct {
	authn      *auth.Authenticator
	moderation services.ModerationService
}

// NewAdminModerationHandlers constructs a new AdminModerationHandlers instance.
func NewAdminModerationHandlers(authn *auth.Authenticator, moderation services.ModerationService) *AdminModerationHandlers {
	return &AdminModerationHandlers{
		authn:      authn,
		moderation: moderation,
	}
}

// Routes registers the /admin moderation endpoints.
func (h *AdminModerationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/moderation/queue", h.pendingQueue)
	r.Post("/moderation/users/{uid}:approve", h.approveUser)
	r.Post("/moderation/users/{uid}:reject", h.rejectUser)
	r.Post("/moderation/shops/{shopId}:approve", h.approveShop)
	r.Post("/moderation/shops/{shopId}:reject", h.rejectShop)
	r.Post("/moderation/events/{eventId}:approve", h.approveEvent)
	r.Post("/moderation/events/{eventId}:reject", h.rejectEvent)
}

func (h *AdminModerationHandlers) pendingQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.moderation == nil {
		writeModerationUnavailable(ctx, w)
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: 50, MaxPageSize: 100})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	cursor, err := queueCursorFromParams(params)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid pageToken", http.StatusBadRequest))
		return
	}

	queue, err := h.moderation.PendingQueue(ctx, services.QueueQuery{PageSize: params.PageSize, Cursor: cursor})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal", "failed to load moderation queue", http.StatusInternalServerError))
		return
	}

	nextToken, err := queueNextPageToken(queue.NextCursor)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal", "failed to load moderation queue", http.StatusInternalServerError))
		return
	}

	payload := moderationQueueResponse{
		NextPageToken: nextToken,
		GeneratedAt:   formatTime(queue.GeneratedAt),
	}
	for _, user := range queue.Users {
		payload.Users = append(payload.Users, buildUserPayload(user))
	}
	for _, shop := range queue.Shops {
		payload.Shops = append(payload.Shops, buildShopPayload(shop))
	}
	for _, event := range queue.Events {
		payload.Events = append(payload.Events, buildEventPayload(event))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminModerationHandlers) approveUser(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "uid", func(ctx context.Context, cmd services.ApproveCommand) (any, error) {
		user, err := h.moderation.ApproveUser(ctx, cmd)
		return buildUserPayload(user), err
	})
}

func (h *AdminModerationHandlers) rejectUser(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, "uid", func(ctx context.Context, cmd services.RejectCommand) (any, error) {
		user, err := h.moderation.RejectUser(ctx, cmd)
		return buildUserPayload(user), err
	})
}

func (h *AdminModerationHandlers) approveShop(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "shopId", func(ctx context.Context, cmd services.ApproveCommand) (any, error) {
		shop, err := h.moderation.ApproveShop(ctx, cmd)
		return buildShopPayload(shop), err
	})
}

func (h *AdminModerationHandlers) rejectShop(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, "shopId", func(ctx context.Context, cmd services.RejectCommand) (any, error) {
		shop, err := h.moderation.RejectShop(ctx, cmd)
		return buildShopPayload(shop), err
	})
}

func (h *AdminModerationHandlers) approveEvent(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "eventId", func(ctx context.Context, cmd services.ApproveCommand) (any, error) {
		event, err := h.moderation.ApproveEvent(ctx, cmd)
		return buildEventPayload(event), err
	})
}

func (h *AdminModerationHandlers) rejectEvent(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, "eventId", func(ctx context.Context, cmd services.RejectCommand) (any, error) {
		event, err := h.moderation.RejectEvent(ctx, cmd)
		return buildEventPayload(event), err
	})
}

func (h *AdminModerationHandlers) approve(w http.ResponseWriter, r *http.Request, param string, decide func(context.Context, services.ApproveCommand) (any, error)) {
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

	id := strings.TrimSpace(chi.URLParam(r, param))
	if id == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "submission id is required", http.StatusBadRequest))
		return
	}

	payload, err := decide(ctx, services.ApproveCommand{ID: id, ActorUID: identity.UID})
	if err != nil {
		writeModerationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminModerationHandlers) reject(w http.ResponseWriter, r *http.Request, param string, decide func(context.Context, services.RejectCommand) (any, error)) {
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

	id := strings.TrimSpace(chi.URLParam(r, param))
	if id == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "submission id is required", http.StatusBadRequest))
		return
	}

	var req rejectRequest
	body, err := readLimitedBody(r, maxModerationBodySize)
	switch {
	case err == nil:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// A rejection without a body carries no reason.
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	payload, err := decide(ctx, services.RejectCommand{ID: id, ActorUID: identity.UID, Reason: req.Reason})
	if err != nil {
		writeModerationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeModerationUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("moderation_service_unavailable", "moderation service unavailable", http.StatusServiceUnavailable))
}

func writeModerationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrModerationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "submission not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNotEventOwner):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "actor does not own the event", http.StatusForbidden))
	case errors.Is(err, services.ErrEventNotApproved):
		httpx.WriteError(ctx, w, httpx.NewError("event_not_approved", "event has not been approved", http.StatusConflict))
	case errors.Is(err, services.ErrInvalidProgress):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_progress", "progress transition not allowed", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal", "moderation request failed", http.StatusInternalServerError))
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type moderationQueueResponse struct {
	Users         []userPayload  `json:"users"`
	Shops         []shopPayload  `json:"shops"`
	Events        []eventPayload `json:"events"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	GeneratedAt   string         `json:"generated_at"`
}

// The queue token flattens the three collection cursors into one page token:
// a (createdAt, id) pair per collection, empty pair once a listing is drained.
const queueCursorParts = 6

func queueCursorFromParams(params pagination.Params) (services.QueueCursor, error) {
	if params.PageToken == "" {
		return services.QueueCursor{}, nil
	}
	parts := params.Cursor.StartAfter
	if len(parts) != queueCursorParts {
		return services.QueueCursor{}, pagination.ErrInvalidPageToken
	}

	var cursor services.QueueCursor
	var err error
	if cursor.Users, err = pendingCursorFromParts(parts[0], parts[1]); err != nil {
		return services.QueueCursor{}, err
	}
	if cursor.Shops, err = pendingCursorFromParts(parts[2], parts[3]); err != nil {
		return services.QueueCursor{}, err
	}
	if cursor.Events, err = pendingCursorFromParts(parts[4], parts[5]); err != nil {
		return services.QueueCursor{}, err
	}
	if cursor.IsZero() {
		return services.QueueCursor{}, pagination.ErrInvalidPageToken
	}
	return cursor, nil
}

func pendingCursorFromParts(rawCreatedAt, rawID any) (repositories.PendingCursor, error) {
	createdAt, okCreatedAt := rawCreatedAt.(string)
	id, okID := rawID.(string)
	if !okCreatedAt || !okID {
		return repositories.PendingCursor{}, pagination.ErrInvalidPageToken
	}
	if id == "" {
		return repositories.PendingCursor{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return repositories.PendingCursor{}, pagination.ErrInvalidPageToken
	}
	return repositories.PendingCursor{CreatedAt: ts, ID: id}, nil
}

func queueNextPageToken(cursor services.QueueCursor) (string, error) {
	if cursor.IsZero() {
		return "", nil
	}
	parts := make([]any, 0, queueCursorParts)
	for _, c := range []repositories.PendingCursor{cursor.Users, cursor.Shops, cursor.Events} {
		createdAt, id := "", ""
		if !c.IsZero() {
			createdAt = c.CreatedAt.UTC().Format(time.RFC3339Nano)
			id = c.ID
		}
		parts = append(parts, createdAt, id)
	}
	return pagination.EncodeToken(pagination.Cursor{StartAfter: parts})
}

type userPayload struct {
	UID             string `json:"uid"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
	Role            string `json:"role"`
	ApprovalStatus  string `json:"approval_status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

type shopPayload struct {
	ID              string           `json:"id"`
	OwnerUserID     string           `json:"owner_user_id"`
	ShopName        string           `json:"shop_name"`
	Description     string           `json:"description,omitempty"`
	Address         string           `json:"address,omitempty"`
	Location        *geoPointPayload `json:"location,omitempty"`
	ApprovalStatus  string           `json:"approval_status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Images          []string         `json:"images,omitempty"`
	CreatedAt       string           `json:"created_at,omitempty"`
	UpdatedAt       string           `json:"updated_at,omitempty"`
}

type eventPayload struct {
	ID              string   `json:"id"`
	OwnerUserID     string   `json:"owner_user_id"`
	EventName       string   `json:"event_name"`
	Description     string   `json:"description,omitempty"`
	Venue           string   `json:"venue,omitempty"`
	ApprovalStatus  string   `json:"approval_status"`
	EventProgress   string   `json:"event_progress"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	Images          []string `json:"images,omitempty"`
	EventTimeStart  string   `json:"event_time_start,omitempty"`
	EventTimeEnd    string   `json:"event_time_end,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

type geoPointPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func buildUserPayload(user domain.User) userPayload {
	return userPayload{
		UID:             user.UID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		Role:            string(user.Role),
		ApprovalStatus:  string(user.ApprovalStatus),
		RejectionReason: user.RejectionReason,
		CreatedAt:       formatTime(user.CreatedAt),
		UpdatedAt:       formatTime(user.UpdatedAt),
	}
}

func buildShopPayload(shop domain.Shop) shopPayload {
	payload := shopPayload{
		ID:              shop.ID,
		OwnerUserID:     shop.OwnerUserID,
		ShopName:        shop.ShopName,
		Description:     shop.Description,
		Address:         shop.Address,
		ApprovalStatus:  string(shop.ApprovalStatus),
		RejectionReason: shop.RejectionReason,
		Images:          shop.Images,
		CreatedAt:       formatTime(shop.CreatedAt),
		UpdatedAt:       formatTime(shop.UpdatedAt),
	}
	if shop.Location != nil {
		payload.Location = &geoPointPayload{
			Latitude:  shop.Location.Latitude,
			Longitude: shop.Location.Longitude,
		}
	}
	return payload
}

func buildEventPayload(event domain.Event) eventPayload {
	payload := eventPayload{
		ID:              event.ID,
		OwnerUserID:     event.OwnerUserID,
		EventName:       event.EventName,
		Description:     event.Description,
		Venue:           event.Venue,
		ApprovalStatus:  string(event.ApprovalStatus),
		EventProgress:   string(event.EventProgress),
		RejectionReason: event.RejectionReason,
		Images:          event.Images,
		EventTimeStart:  formatTime(event.EventTimeStart),
		CreatedAt:       formatTime(event.CreatedAt),
		UpdatedAt:       formatTime(event.UpdatedAt),
	}
	if event.EventTimeEnd != nil {
		payload.EventTimeEnd = formatTime(*event.EventTimeEnd)
	}
	return payload
}
