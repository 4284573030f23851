package domain

import (
	"strings"
	"time"
)

// Role identifies the coarse authorisation class of a platform account.
type Role string

const (
	// RoleAdmin marks platform administrators who moderate submissions.
	RoleAdmin Role = "admin"
	// RoleShopOwner marks accounts that register shops and events.
	RoleShopOwner Role = "shop_owner"
)

// ApprovalStatus tracks the moderation lifecycle of users, shops and events.
type ApprovalStatus string

const (
	// ApprovalPending marks a submission awaiting an administrator decision.
	ApprovalPending ApprovalStatus = "pending"
	// ApprovalApproved marks a submission accepted for publication.
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalRejected marks a submission declined by an administrator.
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsKnown reports whether the value is one of the recognised approval states.
func (s ApprovalStatus) IsKnown() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// EventProgress tracks the operational lifecycle of an event, independent of
// its moderation status.
type EventProgress string

const (
	// ProgressScheduled is the initial state for every event.
	ProgressScheduled EventProgress = "scheduled"
	// ProgressOngoing marks an event currently running.
	ProgressOngoing EventProgress = "ongoing"
	// ProgressCancelled marks an event called off before or during its run.
	ProgressCancelled EventProgress = "cancelled"
	// ProgressFinished marks an event that completed normally.
	ProgressFinished EventProgress = "finished"
)

// CanAdvanceTo reports whether the progress transition is permitted.
// Scheduled events may start or be cancelled; ongoing events may finish or be
// cancelled; cancelled and finished are terminal.
func (p EventProgress) CanAdvanceTo(next EventProgress) bool {
	switch p {
	case ProgressScheduled:
		return next == ProgressOngoing || next == ProgressCancelled
	case ProgressOngoing:
		return next == ProgressFinished || next == ProgressCancelled
	}
	return false
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `firestore:"latitude" json:"latitude"`
	Longitude float64 `firestore:"longitude" json:"longitude"`
}

// User is a platform account document. Created on first sign-in with
// ApprovalPending; only administrators mutate the approval fields.
type User struct {
	UID             string
	Email           string
	DisplayName     string
	Role            Role
	ApprovalStatus  ApprovalStatus
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Shop is a store listing registered by a shop owner.
type Shop struct {
	ID              string
	OwnerUserID     string
	ShopName        string
	Description     string
	Address         string
	Location        *GeoPoint
	ApprovalStatus  ApprovalStatus
	RejectionReason string
	Images          []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Event is a happening registered by a shop owner or any approved user. The
// two status fields evolve separately: ApprovalStatus moves once, while
// EventProgress advances through the operational lifecycle.
type Event struct {
	ID              string
	OwnerUserID     string
	EventName       string
	Description     string
	Venue           string
	ApprovalStatus  ApprovalStatus
	EventProgress   EventProgress
	RejectionReason string
	Images          []string
	EventTimeStart  time.Time
	EventTimeEnd    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContentKind names the moderated listing collections.
type ContentKind string

const (
	// ContentShop identifies the shops collection.
	ContentShop ContentKind = "shop"
	// ContentEvent identifies the events collection.
	ContentEvent ContentKind = "event"
)

// MaxListingImages is the business limit on gallery size for shops and events.
const MaxListingImages = 5

// ImagePathInfo describes a storage object that belongs to a listing gallery.
type ImagePathInfo struct {
	Kind    ContentKind
	OwnerID string
	Object  string
}

// ParseImagePath splits a storage object name of the form
// "shops/{id}/..." or "events/{id}/..." into its owning listing.
func ParseImagePath(name string) (ImagePathInfo, bool) {
	trimmed := strings.Trim(strings.TrimSpace(name), "/")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return ImagePathInfo{}, false
	}
	var kind ContentKind
	switch parts[0] {
	case "shops":
		kind = ContentShop
	case "events":
		kind = ContentEvent
	default:
		return ImagePathInfo{}, false
	}
	return ImagePathInfo{Kind: kind, OwnerID: parts[1], Object: trimmed}, true
}
