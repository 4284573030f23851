package services

import (
	"context"
	"time"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	User               = domain.User
	Shop               = domain.Shop
	Event              = domain.Event
	Role               = domain.Role
	ApprovalStatus     = domain.ApprovalStatus
	EventProgress      = domain.EventProgress
	GeoPoint           = domain.GeoPoint
	ContentKind        = domain.ContentKind
	SystemHealthReport = domain.SystemHealthReport
)

// ModerationService exposes the administrator decision surface and the owner
// progress surface. Writes land on the documents the triggers observe.
type ModerationService interface {
	ApproveUser(ctx context.Context, cmd ApproveCommand) (User, error)
	RejectUser(ctx context.Context, cmd RejectCommand) (User, error)
	ApproveShop(ctx context.Context, cmd ApproveCommand) (Shop, error)
	RejectShop(ctx context.Context, cmd RejectCommand) (Shop, error)
	ApproveEvent(ctx context.Context, cmd ApproveCommand) (Event, error)
	RejectEvent(ctx context.Context, cmd RejectCommand) (Event, error)
	PendingQueue(ctx context.Context, query QueueQuery) (ModerationQueue, error)
	AdvanceEventProgress(ctx context.Context, cmd ProgressCommand) (Event, error)
}

// NotificationService evaluates observed document transitions and sends the
// matching mail. Every method is a no-op when the watched field did not move.
type NotificationService interface {
	UserChanged(ctx context.Context, change UserChange) error
	ShopChanged(ctx context.Context, change ShopChange) error
	EventChanged(ctx context.Context, change EventChange) error
}

// MediaService owns the variant pipeline for uploaded listing images.
type MediaService interface {
	ProcessFinalizedObject(ctx context.Context, object StorageObject) (VariantReport, error)
}

// MapsService resolves shortened map links to coordinates, best effort.
type MapsService interface {
	ExpandMapURL(ctx context.Context, rawURL string) MapExpansion
}

// SystemService aggregates utility endpoints (health and readiness).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// ContentPublisher announces approved listings to downstream pipelines.
type ContentPublisher interface {
	PublishContent(ctx context.Context, message ContentPublishedMessage) (string, error)
}

// MailSender relays a composed message to the outbound mail provider.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NotificationComposer renders the notification templates. Each method
// returns a subject and a plain-text body.
type NotificationComposer interface {
	AdminNewUser(user User) (string, string)
	AdminNewShop(owner User, shop Shop) (string, string)
	UserApproved(user User) (string, string)
	UserRejected(user User) (string, string)
	ShopApproved(owner User, shop Shop) (string, string)
	ShopRejected(owner User, shop Shop) (string, string)
	EventApproved(owner User, event Event) (string, string)
	EventRejected(owner User, event Event) (string, string)
	EventProgress(owner User, event Event, progress EventProgress) (string, string)
}

// UserFinder resolves listing owners to their account document.
type UserFinder interface {
	FindByUID(ctx context.Context, uid string) (User, error)
}

// Command and DTO definitions ------------------------------------------------

// ApproveCommand identifies the submission an administrator accepts.
type ApproveCommand struct {
	ID       string
	ActorUID string
}

// RejectCommand identifies the submission an administrator declines. Reason
// may be empty; the composer renders an omitted reason line in that case.
type RejectCommand struct {
	ID       string
	ActorUID string
	Reason   string
}

// ProgressCommand advances an event's operational lifecycle. Owners may move
// their own events; administrators may move any.
type ProgressCommand struct {
	EventID   string
	ActorUID  string
	ActorRole Role
	Target    EventProgress
}

// QueueQuery selects one page of the pending moderation queue.
type QueueQuery struct {
	PageSize int
	Cursor   QueueCursor
}

// QueueCursor resumes the pending listings in lockstep, one cursor per
// collection. The zero value starts every listing from the beginning.
type QueueCursor struct {
	Users  repositories.PendingCursor
	Shops  repositories.PendingCursor
	Events repositories.PendingCursor
}

// IsZero reports whether every collection cursor is at the start.
func (c QueueCursor) IsZero() bool {
	return c.Users.IsZero() && c.Shops.IsZero() && c.Events.IsZero()
}

// ModerationQueue bundles one page of everything still awaiting a decision.
// NextCursor is zero once all three listings are drained.
type ModerationQueue struct {
	Users       []User
	Shops       []Shop
	Events      []Event
	NextCursor  QueueCursor
	GeneratedAt time.Time
}

// UserChange is an observed write on a user document. Before is nil on create.
type UserChange struct {
	UID    string
	Before *User
	After  *User
}

// ShopChange is an observed write on a shop document.
type ShopChange struct {
	ID     string
	Before *Shop
	After  *Shop
}

// EventChange is an observed write on an event document.
type EventChange struct {
	ID     string
	Before *Event
	After  *Event
}

// StorageObject describes a finalized upload in the content bucket.
type StorageObject struct {
	Bucket      string
	Name        string
	ContentType string
}

// VariantReport summarises one variant-pipeline run.
type VariantReport struct {
	Skipped     bool
	SkipReason  string
	UploadedURL []string
	Failed      []VariantFailure
	Gallery     []string
	Evicted     []string
}

// VariantFailure records a single size that could not be produced.
type VariantFailure struct {
	SizeName string
	Err      error
}

// MapExpansion is the result of resolving a shortened map link.
type MapExpansion struct {
	Success     bool
	ExpandedURL string
	Coordinates *GeoPoint
	Error       string
}

// MailMessage is the composed notification handed to the relay. ID is the
// delivery identifier minted per send; the relay stamps it on the wire and
// the service logs it, so a delivery can be traced end to end.
type MailMessage struct {
	ID      string
	To      string
	Subject string
	Text    string
}

// ContentPublishedMessage is the fan-out payload for newly approved listings.
type ContentPublishedMessage struct {
	ContentID  string      `json:"contentId"`
	Kind       ContentKind `json:"kind"`
	Name       string      `json:"name"`
	OwnerUID   string      `json:"ownerUid"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// BuildInfo carries process identity reported by the health endpoint.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}
