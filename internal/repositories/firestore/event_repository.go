package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/machikado-app/api/internal/domain"
	pfirestore "github.com/machikado-app/api/internal/platform/firestore"
	"github.com/machikado-app/api/internal/repositories"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const eventCollection = "events"

// EventRepository persists event listings, their moderation state, and the
// operational progress lifecycle in Firestore.
type EventRepository struct {
	base     *pfirestore.BaseRepository[eventDocument]
	provider *pfirestore.Provider
}

// NewEventRepository constructs a Firestore-backed event repository.
func NewEventRepository(provider *pfirestore.Provider) (*EventRepository, error) {
	if provider == nil {
		return nil, errors.New("event repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[eventDocument](provider, eventCollection, nil, nil)
	return &EventRepository{base: base, provider: provider}, nil
}

// FindByID loads the event listing by document id.
func (r *EventRepository) FindByID(ctx context.Context, eventID string) (domain.Event, error) {
	if r == nil || r.base == nil {
		return domain.Event{}, errors.New("event repository not initialised")
	}
	if strings.TrimSpace(eventID) == "" {
		return domain.Event{}, errors.New("event id is required")
	}

	doc, err := r.base.Get(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	return toDomainEvent(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// SetApproval writes the moderation decision onto the event document.
func (r *EventRepository) SetApproval(ctx context.Context, eventID string, update repositories.ApprovalUpdate) (domain.Event, error) {
	if r == nil || r.base == nil {
		return domain.Event{}, errors.New("event repository not initialised")
	}
	if strings.TrimSpace(eventID) == "" {
		return domain.Event{}, errors.New("event id is required")
	}
	if !update.Status.IsKnown() {
		return domain.Event{}, fmt.Errorf("unknown approval status %q", update.Status)
	}

	now := update.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	updates := []firestore.Update{
		{Path: "approvalStatus", Value: string(update.Status)},
		{Path: "updatedAt", Value: now},
	}
	if update.Status == domain.ApprovalRejected {
		updates = append(updates, firestore.Update{Path: "rejectionReason", Value: strings.TrimSpace(update.RejectionReason)})
	} else {
		updates = append(updates, firestore.Update{Path: "rejectionReason", Value: firestore.Delete})
	}

	if _, err := r.base.Update(ctx, eventID, updates); err != nil {
		return domain.Event{}, err
	}
	return r.FindByID(ctx, eventID)
}

// SetProgress advances the event lifecycle inside a transaction so a stale
// caller cannot replay a terminal state.
func (r *EventRepository) SetProgress(ctx context.Context, eventID string, progress domain.EventProgress, now time.Time) (domain.Event, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Event{}, errors.New("event repository not initialised")
	}
	if strings.TrimSpace(eventID) == "" {
		return domain.Event{}, errors.New("event id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, eventID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode event %s: %w", eventID, err)
		}

		current := domain.EventProgress(strings.TrimSpace(doc.EventProgress))
		if !current.CanAdvanceTo(progress) {
			return status.Errorf(codes.FailedPrecondition, "event %s cannot move %s -> %s", eventID, current, progress)
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "eventProgress", Value: string(progress)},
			{Path: "updatedAt", Value: now},
		})
	}); err != nil {
		return domain.Event{}, err
	}
	return r.FindByID(ctx, eventID)
}

// AppendImages merges the URLs into the gallery inside a transaction. See
// ShopRepository.AppendImages for the eviction contract.
func (r *EventRepository) AppendImages(ctx context.Context, eventID string, urls []string, now time.Time) (repositories.AppendImagesResult, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return repositories.AppendImagesResult{}, errors.New("event repository not initialised")
	}
	if strings.TrimSpace(eventID) == "" {
		return repositories.AppendImagesResult{}, errors.New("event id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.AppendImagesResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, eventID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode event %s: %w", eventID, err)
		}

		kept, evicted := mergeGallery(doc.Images, urls)
		result = repositories.AppendImagesResult{Images: kept, Evicted: evicted}
		return tx.Update(docRef, []firestore.Update{
			{Path: "images", Value: kept},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return repositories.AppendImagesResult{}, err
	}
	return result, nil
}

// ListPending returns the oldest event submissions still awaiting a decision,
// resuming after the supplied cursor.
func (r *EventRepository) ListPending(ctx context.Context, limit int, after repositories.PendingCursor) ([]domain.Event, repositories.PendingCursor, error) {
	if r == nil || r.base == nil {
		return nil, repositories.PendingCursor{}, errors.New("event repository not initialised")
	}
	if limit <= 0 {
		limit = defaultPendingLimit
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("approvalStatus", "==", string(domain.ApprovalPending)).
			OrderBy("createdAt", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc)
		if !after.IsZero() {
			q = q.StartAfter(after.CreatedAt, after.ID)
		}
		return q.Limit(limit)
	})
	if err != nil {
		return nil, repositories.PendingCursor{}, err
	}

	events := make([]domain.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, toDomainEvent(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	var next repositories.PendingCursor
	if len(events) == limit {
		last := events[len(events)-1]
		next = repositories.PendingCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return events, next, nil
}

type eventDocument struct {
	OwnerUserID     string     `firestore:"ownerUserId"`
	EventName       string     `firestore:"eventName"`
	Description     string     `firestore:"description"`
	Venue           string     `firestore:"venue"`
	ApprovalStatus  string     `firestore:"approvalStatus"`
	EventProgress   string     `firestore:"eventProgress"`
	RejectionReason string     `firestore:"rejectionReason,omitempty"`
	Images          []string   `firestore:"images"`
	EventTimeStart  time.Time  `firestore:"eventTimeStart"`
	EventTimeEnd    *time.Time `firestore:"eventTimeEnd,omitempty"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

func toDomainEvent(id string, doc eventDocument, createTime, updateTime time.Time) domain.Event {
	event := domain.Event{
		ID:              id,
		OwnerUserID:     strings.TrimSpace(doc.OwnerUserID),
		EventName:       strings.TrimSpace(doc.EventName),
		Description:     doc.Description,
		Venue:           strings.TrimSpace(doc.Venue),
		ApprovalStatus:  domain.ApprovalStatus(strings.TrimSpace(doc.ApprovalStatus)),
		EventProgress:   domain.EventProgress(strings.TrimSpace(doc.EventProgress)),
		RejectionReason: strings.TrimSpace(doc.RejectionReason),
		Images:          doc.Images,
		EventTimeStart:  doc.EventTimeStart,
		EventTimeEnd:    doc.EventTimeEnd,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if event.EventProgress == "" {
		event.EventProgress = domain.ProgressScheduled
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = createTime
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = updateTime
	}
	return event
}

var _ repositories.EventRepository = (*EventRepository)(nil)

// CollectionName exposes the Firestore collection for migration tooling.
func (r *EventRepository) CollectionName() string {
	return eventCollection
}
