package repositories

import (
	"context"
	"time"

	domain "github.com/machikado-app/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Users() UserRepository
	Shops() ShopRepository
	Events() EventRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ApprovalUpdate carries the fields an administrator decision mutates.
type ApprovalUpdate struct {
	Status          domain.ApprovalStatus
	RejectionReason string
	Now             time.Time
}

// AppendImagesResult reports the gallery after a capped append along with the
// entries the cap pushed out.
type AppendImagesResult struct {
	Images  []string
	Evicted []string
}

// PendingCursor marks how far a pending listing has been read. Listings are
// ordered by submission time with the document ID as tiebreak. The zero value
// reads from the start on input and signals the final page on output.
type PendingCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether the cursor points at the start of the listing.
func (c PendingCursor) IsZero() bool {
	return c.ID == ""
}

// UserRepository stores platform accounts keyed by Firebase UID.
type UserRepository interface {
	FindByUID(ctx context.Context, uid string) (domain.User, error)
	SetApproval(ctx context.Context, uid string, update ApprovalUpdate) (domain.User, error)
	ListPending(ctx context.Context, limit int, after PendingCursor) ([]domain.User, PendingCursor, error)
}

// ShopRepository stores shop listings and their moderated gallery.
type ShopRepository interface {
	FindByID(ctx context.Context, shopID string) (domain.Shop, error)
	SetApproval(ctx context.Context, shopID string, update ApprovalUpdate) (domain.Shop, error)
	AppendImages(ctx context.Context, shopID string, urls []string, now time.Time) (AppendImagesResult, error)
	ListPending(ctx context.Context, limit int, after PendingCursor) ([]domain.Shop, PendingCursor, error)
}

// EventRepository stores event listings, their moderation state, and progress.
type EventRepository interface {
	FindByID(ctx context.Context, eventID string) (domain.Event, error)
	SetApproval(ctx context.Context, eventID string, update ApprovalUpdate) (domain.Event, error)
	SetProgress(ctx context.Context, eventID string, progress domain.EventProgress, now time.Time) (domain.Event, error)
	AppendImages(ctx context.Context, eventID string, urls []string, now time.Time) (AppendImagesResult, error)
	ListPending(ctx context.Context, limit int, after PendingCursor) ([]domain.Event, PendingCursor, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
