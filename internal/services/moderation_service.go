package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/repositories"
)

var (
	// ErrModerationNotFound indicates the submission no longer exists.
	ErrModerationNotFound = errors.New("moderation: submission not found")
	// ErrInvalidProgress indicates a disallowed lifecycle move.
	ErrInvalidProgress = errors.New("moderation: invalid progress transition")
	// ErrEventNotApproved indicates progress changes on unmoderated events.
	ErrEventNotApproved = errors.New("moderation: event is not approved")
	// ErrNotEventOwner indicates the actor may not move this event.
	ErrNotEventOwner = errors.New("moderation: actor does not own the event")
)

// ModerationServiceDeps bundles collaborators required to construct a moderation service.
type ModerationServiceDeps struct {
	Users     repositories.UserRepository
	Shops     repositories.ShopRepository
	Events    repositories.EventRepository
	Publisher ContentPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type moderationService struct {
	users     repositories.UserRepository
	shops     repositories.ShopRepository
	events    repositories.EventRepository
	publisher ContentPublisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

var _ ModerationService = (*moderationService)(nil)

// NewModerationService assembles the administrator decision surface.
func NewModerationService(deps ModerationServiceDeps) (ModerationService, error) {
	if deps.Users == nil {
		return nil, errors.New("moderation service: user repository is required")
	}
	if deps.Shops == nil {
		return nil, errors.New("moderation service: shop repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("moderation service: event repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &moderationService{
		users:     deps.Users,
		shops:     deps.Shops,
		events:    deps.Events,
		publisher: deps.Publisher,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *moderationService) ApproveUser(ctx context.Context, cmd ApproveCommand) (User, error) {
	if err := validateDecision(ctx, cmd.ID); err != nil {
		return User{}, err
	}

	user, err := s.users.SetApproval(ctx, cmd.ID, repositories.ApprovalUpdate{
		Status: domain.ApprovalApproved,
		Now:    s.clock(),
	})
	if err != nil {
		return User{}, translateModerationErr(err)
	}

	s.logger(ctx, "user approved", map[string]any{"uid": user.UID, "actor": cmd.ActorUID})
	return user, nil
}

func (s *moderationService) RejectUser(ctx context.Context, cmd RejectCommand) (User, error) {
	if err := validateDecision(ctx, cmd.ID); err != nil {
		return User{}, err
	}

	user, err := s.users.SetApproval(ctx, cmd.ID, repositories.ApprovalUpdate{
		Status:          domain.ApprovalRejected,
		RejectionReason: strings.TrimSpace(cmd.Reason),
		Now:             s.clock(),
	})
	if err != nil {
		return User{}, translateModerationErr(err)
	}

	s.logger(ctx, "user rejected", map[string]any{"uid": user.UID, "actor": cmd.ActorUID})
	return user, nil
}

func (s *moderationService) ApproveShop(ctx context.Context, cmd ApproveCommand) (Shop, error) {
	if err := validateDecision(ctx, cmd.ID); err != nil {
		return Shop{}, err
	}

	shop, err := s.shops.SetApproval(ctx, cmd.ID, repositories.ApprovalUpdate{
		Status: domain.ApprovalApproved,
		Now:    s.clock(),
	})
	if err != nil {
		return Shop{}, translateModerationErr(err)
	}

	s.logger(ctx, "shop approved", map[string]any{"shopId": shop.ID, "actor": cmd.ActorUID})
	s.publishContent(ctx, ContentPublishedMessage{
		ContentID:  shop.ID,
		Kind:       domain.ContentShop,
		Name:       shop.ShopName,
		OwnerUID:   shop.OwnerUserID,
		OccurredAt: s.clock(),
	})
	return shop, nil
}

func (s *moderationService) RejectShop(ctx context.Context, cmd RejectCommand) (Shop, error) {
	if err := validateDecision(ctx, cmd.ID); err != nil {
		return Shop{}, err
	}

	shop, err := s.shops.SetApproval(ctx, cmd.ID, repositories.ApprovalUpdate{
		Status:          domain.ApprovalRejected,
		RejectionReason: strings.TrimSpace(cmd.Reason),
		Now:             s.clock(),
	})
	if err != nil {
		return Shop{}, translateModerationErr(err)
	}

	s.logger(ctx, "shop rejected", map[string]any{"shopId": shop.ID, "actor": cmd.ActorUID})
	return shop, nil
}

func (s *moderationService) ApproveEvent(ctx context.Context, cmd ApproveCommand) (Event, error) {
	if err := validateDecision(ctx, cmd.ID); err != nil {
		return Event{}, err
	}

	event, err := s.events.SetApproval(ctx, cmd.ID, repositories.ApprovalUpdate{
		Status: domain.ApprovalApproved,
		Now:    s.clock(),
	})
	if err != nil {
		return Event{}, translateModerationErr(err)
	}

	s.logger(ctx, "event approved", map[string]any{"eventId": event.ID, "actor": cmd.ActorUID})
	s.publishContent(ctx, ContentPublishedMessage{
		ContentID:  event.ID,
		Kind:       domain.ContentEvent,
		Name:       event.EventName,
		OwnerUID:   event.OwnerUserID,
		OccurredAt: s.clock(),
	})
	return event, nil
}

func (s *moderationService) RejectEvent(ctx context.Context, cmd RejectCommand) (Event, error) {
	if err := validateDecision(ctx, cmd.ID); err != nil {
		return Event{}, err
	}

	event, err := s.events.SetApproval(ctx, cmd.ID, repositories.ApprovalUpdate{
		Status:          domain.ApprovalRejected,
		RejectionReason: strings.TrimSpace(cmd.Reason),
		Now:             s.clock(),
	})
	if err != nil {
		return Event{}, translateModerationErr(err)
	}

	s.logger(ctx, "event rejected", map[string]any{"eventId": event.ID, "actor": cmd.ActorUID})
	return event, nil
}

// PendingQueue pages the three pending listings in lockstep. On resumed
// pages a zero collection cursor means that listing was already drained, so
// only collections with a live cursor are read again.
func (s *moderationService) PendingQueue(ctx context.Context, query QueueQuery) (ModerationQueue, error) {
	if ctx == nil {
		return ModerationQueue{}, errors.New("moderation service: context is required")
	}

	firstPage := query.Cursor.IsZero()
	queue := ModerationQueue{GeneratedAt: s.clock()}

	if firstPage || !query.Cursor.Users.IsZero() {
		users, next, err := s.users.ListPending(ctx, query.PageSize, query.Cursor.Users)
		if err != nil {
			return ModerationQueue{}, fmt.Errorf("list pending users: %w", err)
		}
		queue.Users = users
		queue.NextCursor.Users = next
	}
	if firstPage || !query.Cursor.Shops.IsZero() {
		shops, next, err := s.shops.ListPending(ctx, query.PageSize, query.Cursor.Shops)
		if err != nil {
			return ModerationQueue{}, fmt.Errorf("list pending shops: %w", err)
		}
		queue.Shops = shops
		queue.NextCursor.Shops = next
	}
	if firstPage || !query.Cursor.Events.IsZero() {
		events, next, err := s.events.ListPending(ctx, query.PageSize, query.Cursor.Events)
		if err != nil {
			return ModerationQueue{}, fmt.Errorf("list pending events: %w", err)
		}
		queue.Events = events
		queue.NextCursor.Events = next
	}

	return queue, nil
}

func (s *moderationService) AdvanceEventProgress(ctx context.Context, cmd ProgressCommand) (Event, error) {
	if ctx == nil {
		return Event{}, errors.New("moderation service: context is required")
	}
	if strings.TrimSpace(cmd.EventID) == "" {
		return Event{}, errors.New("moderation service: event id is required")
	}

	event, err := s.events.FindByID(ctx, cmd.EventID)
	if err != nil {
		return Event{}, translateModerationErr(err)
	}

	if cmd.ActorRole != domain.RoleAdmin && cmd.ActorUID != event.OwnerUserID {
		return Event{}, ErrNotEventOwner
	}
	if event.ApprovalStatus != domain.ApprovalApproved {
		return Event{}, ErrEventNotApproved
	}
	if !event.EventProgress.CanAdvanceTo(cmd.Target) {
		return Event{}, fmt.Errorf("%w: %s -> %s", ErrInvalidProgress, event.EventProgress, cmd.Target)
	}

	updated, err := s.events.SetProgress(ctx, cmd.EventID, cmd.Target, s.clock())
	if err != nil {
		return Event{}, translateModerationErr(err)
	}

	s.logger(ctx, "event progress advanced", map[string]any{
		"eventId": updated.ID,
		"actor":   cmd.ActorUID,
		"from":    string(event.EventProgress),
		"to":      string(updated.EventProgress),
	})
	return updated, nil
}

func (s *moderationService) publishContent(ctx context.Context, message ContentPublishedMessage) {
	if s.publisher == nil {
		return
	}
	id, err := s.publisher.PublishContent(ctx, message)
	if err != nil {
		s.logger(ctx, "content publish failed", map[string]any{
			"contentId": message.ContentID,
			"kind":      string(message.Kind),
			"error":     err.Error(),
		})
		return
	}
	s.logger(ctx, "content published", map[string]any{
		"contentId": message.ContentID,
		"kind":      string(message.Kind),
		"messageId": id,
	})
}

func validateDecision(ctx context.Context, id string) error {
	if ctx == nil {
		return errors.New("moderation service: context is required")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("moderation service: submission id is required")
	}
	return nil
}

func translateModerationErr(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrModerationNotFound, err)
	}
	return err
}
