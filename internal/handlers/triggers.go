package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/platform/httpx"
	"github.com/machikado-app/api/internal/services"
)

const maxTriggerBodySize = 512 * 1024

// TriggerHandlers receives pushed change and finalize events. Handlers answer
// 200 for every well-formed envelope: downstream failures are logged and
// swallowed so the push subscription never redelivers.
type TriggerHandlers struct {
	notifications services.NotificationService
	media         services.MediaService
	logger        func(ctx context.Context, event string, fields map[string]any)
}

// TriggerOption customises TriggerHandlers construction.
type TriggerOption func(*TriggerHandlers)

// WithTriggerLogger sets the structured logging callback.
func WithTriggerLogger(logger func(ctx context.Context, event string, fields map[string]any)) TriggerOption {
	return func(h *TriggerHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewTriggerHandlers constructs handlers for the /internal trigger endpoints.
func NewTriggerHandlers(notifications services.NotificationService, media services.MediaService, opts ...TriggerOption) *TriggerHandlers {
	h := &TriggerHandlers{
		notifications: notifications,
		media:         media,
		logger:        func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /internal trigger endpoints.
func (h *TriggerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/triggers/firestore/users", h.userChanged)
	r.Post("/triggers/firestore/shops", h.shopChanged)
	r.Post("/triggers/firestore/events", h.eventChanged)
	r.Post("/triggers/storage", h.objectFinalized)
}

func (h *TriggerHandlers) userChanged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var envelope struct {
		ID     string        `json:"id"`
		Before *userSnapshot `json:"before"`
		After  *userSnapshot `json:"after"`
	}
	if !h.decodeEnvelope(w, r, &envelope) {
		return
	}
	if strings.TrimSpace(envelope.ID) == "" || envelope.After == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "id and after snapshot are required", http.StatusBadRequest))
		return
	}

	if h.notifications != nil {
		err := h.notifications.UserChanged(ctx, services.UserChange{
			UID:    envelope.ID,
			Before: envelope.Before.toDomain(envelope.ID),
			After:  envelope.After.toDomain(envelope.ID),
		})
		if err != nil {
			h.logger(ctx, "user change handling failed", map[string]any{"uid": envelope.ID, "error": err.Error()})
		}
	}
	writeTriggerAck(w)
}

func (h *TriggerHandlers) shopChanged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var envelope struct {
		ID     string        `json:"id"`
		Before *shopSnapshot `json:"before"`
		After  *shopSnapshot `json:"after"`
	}
	if !h.decodeEnvelope(w, r, &envelope) {
		return
	}
	if strings.TrimSpace(envelope.ID) == "" || envelope.After == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "id and after snapshot are required", http.StatusBadRequest))
		return
	}

	if h.notifications != nil {
		err := h.notifications.ShopChanged(ctx, services.ShopChange{
			ID:     envelope.ID,
			Before: envelope.Before.toDomain(envelope.ID),
			After:  envelope.After.toDomain(envelope.ID),
		})
		if err != nil {
			h.logger(ctx, "shop change handling failed", map[string]any{"shopId": envelope.ID, "error": err.Error()})
		}
	}
	writeTriggerAck(w)
}

func (h *TriggerHandlers) eventChanged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var envelope struct {
		ID     string         `json:"id"`
		Before *eventSnapshot `json:"before"`
		After  *eventSnapshot `json:"after"`
	}
	if !h.decodeEnvelope(w, r, &envelope) {
		return
	}
	if strings.TrimSpace(envelope.ID) == "" || envelope.After == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "id and after snapshot are required", http.StatusBadRequest))
		return
	}

	if h.notifications != nil {
		err := h.notifications.EventChanged(ctx, services.EventChange{
			ID:     envelope.ID,
			Before: envelope.Before.toDomain(envelope.ID),
			After:  envelope.After.toDomain(envelope.ID),
		})
		if err != nil {
			h.logger(ctx, "event change handling failed", map[string]any{"eventId": envelope.ID, "error": err.Error()})
		}
	}
	writeTriggerAck(w)
}

func (h *TriggerHandlers) objectFinalized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var envelope struct {
		Bucket      string `json:"bucket"`
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	}
	if !h.decodeEnvelope(w, r, &envelope) {
		return
	}
	if strings.TrimSpace(envelope.Bucket) == "" || strings.TrimSpace(envelope.Name) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "bucket and name are required", http.StatusBadRequest))
		return
	}

	if h.media != nil {
		report, err := h.media.ProcessFinalizedObject(ctx, services.StorageObject{
			Bucket:      envelope.Bucket,
			Name:        envelope.Name,
			ContentType: envelope.ContentType,
		})
		switch {
		case err != nil:
			h.logger(ctx, "object processing failed", map[string]any{"object": envelope.Name, "error": err.Error()})
		case report.Skipped:
			h.logger(ctx, "object skipped", map[string]any{"object": envelope.Name, "reason": report.SkipReason})
		}
	}
	writeTriggerAck(w)
}

func (h *TriggerHandlers) decodeEnvelope(w http.ResponseWriter, r *http.Request, target any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxTriggerBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

func writeTriggerAck(w http.ResponseWriter) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userSnapshot struct {
	Email           string `json:"email"`
	DisplayName     string `json:"displayName"`
	Role            string `json:"role"`
	ApprovalStatus  string `json:"approvalStatus"`
	RejectionReason string `json:"rejectionReason"`
}

func (s *userSnapshot) toDomain(uid string) *domain.User {
	if s == nil {
		return nil
	}
	return &domain.User{
		UID:             uid,
		Email:           s.Email,
		DisplayName:     s.DisplayName,
		Role:            domain.Role(s.Role),
		ApprovalStatus:  domain.ApprovalStatus(s.ApprovalStatus),
		RejectionReason: s.RejectionReason,
	}
}

type shopSnapshot struct {
	OwnerUserID     string           `json:"ownerUserId"`
	ShopName        string           `json:"shopName"`
	Description     string           `json:"description"`
	Address         string           `json:"address"`
	Location        *geoPointPayload `json:"location"`
	ApprovalStatus  string           `json:"approvalStatus"`
	RejectionReason string           `json:"rejectionReason"`
	Images          []string         `json:"images"`
}

func (s *shopSnapshot) toDomain(id string) *domain.Shop {
	if s == nil {
		return nil
	}
	shop := &domain.Shop{
		ID:              id,
		OwnerUserID:     s.OwnerUserID,
		ShopName:        s.ShopName,
		Description:     s.Description,
		Address:         s.Address,
		ApprovalStatus:  domain.ApprovalStatus(s.ApprovalStatus),
		RejectionReason: s.RejectionReason,
		Images:          s.Images,
	}
	if s.Location != nil {
		shop.Location = &domain.GeoPoint{
			Latitude:  s.Location.Latitude,
			Longitude: s.Location.Longitude,
		}
	}
	return shop
}

type eventSnapshot struct {
	OwnerUserID     string     `json:"ownerUserId"`
	EventName       string     `json:"eventName"`
	Description     string     `json:"description"`
	Venue           string     `json:"venue"`
	ApprovalStatus  string     `json:"approvalStatus"`
	EventProgress   string     `json:"eventProgress"`
	RejectionReason string     `json:"rejectionReason"`
	Images          []string   `json:"images"`
	EventTimeStart  *time.Time `json:"eventTimeStart"`
	EventTimeEnd    *time.Time `json:"eventTimeEnd"`
}

func (s *eventSnapshot) toDomain(id string) *domain.Event {
	if s == nil {
		return nil
	}
	event := &domain.Event{
		ID:              id,
		OwnerUserID:     s.OwnerUserID,
		EventName:       s.EventName,
		Description:     s.Description,
		Venue:           s.Venue,
		ApprovalStatus:  domain.ApprovalStatus(s.ApprovalStatus),
		EventProgress:   domain.EventProgress(s.EventProgress),
		RejectionReason: s.RejectionReason,
		Images:          s.Images,
		EventTimeEnd:    s.EventTimeEnd,
	}
	if s.EventTimeStart != nil {
		event.EventTimeStart = *s.EventTimeStart
	}
	return event
}
