package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/repositories"
)

// ErrMailRelay marks a composed notification the relay could not deliver.
// The trigger boundary logs it and still acknowledges the delivery.
var ErrMailRelay = errors.New("notification: mail relay failed")

// NotificationServiceDeps bundles collaborators required to construct a notification service.
type NotificationServiceDeps struct {
	Composer   NotificationComposer
	Sender     MailSender
	Users      UserFinder
	AdminEmail string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	composer   NotificationComposer
	sender     MailSender
	users      UserFinder
	adminEmail string
	clock      func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)
}

var _ NotificationService = (*notificationService)(nil)

// NewNotificationService assembles the transition evaluator that turns
// observed document writes into outbound mail.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Composer == nil {
		return nil, errors.New("notification service: composer is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("notification service: mail sender is required")
	}
	if deps.Users == nil {
		return nil, errors.New("notification service: user finder is required")
	}
	adminEmail := strings.TrimSpace(deps.AdminEmail)
	if adminEmail == "" {
		return nil, errors.New("notification service: admin email is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		composer:   deps.Composer,
		sender:     deps.Sender,
		users:      deps.Users,
		adminEmail: adminEmail,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *notificationService) UserChanged(ctx context.Context, change UserChange) error {
	if ctx == nil {
		return errors.New("notification service: context is required")
	}
	if change.After == nil {
		// Deletes carry no approval edge.
		return nil
	}
	after := *change.After

	var before domain.ApprovalStatus
	if change.Before != nil {
		before = change.Before.ApprovalStatus
	}

	switch registrationApprovalEffect(before, after.ApprovalStatus) {
	case effectNotifyAdmin:
		subject, body := s.composer.AdminNewUser(after)
		return s.deliver(ctx, "user.registered", s.adminEmail, subject, body)
	case effectNotifyApproved:
		subject, body := s.composer.UserApproved(after)
		return s.deliverToUser(ctx, "user.approved", after, subject, body)
	case effectNotifyRejected:
		subject, body := s.composer.UserRejected(after)
		return s.deliverToUser(ctx, "user.rejected", after, subject, body)
	}
	return nil
}

func (s *notificationService) ShopChanged(ctx context.Context, change ShopChange) error {
	if ctx == nil {
		return errors.New("notification service: context is required")
	}
	if change.After == nil {
		return nil
	}
	after := *change.After

	var before domain.ApprovalStatus
	if change.Before != nil {
		before = change.Before.ApprovalStatus
	}

	effect := registrationApprovalEffect(before, after.ApprovalStatus)
	if effect == effectNone {
		return nil
	}

	owner, ok := s.resolveOwner(ctx, "shop", after.ID, after.OwnerUserID)
	if !ok {
		return nil
	}

	switch effect {
	case effectNotifyAdmin:
		subject, body := s.composer.AdminNewShop(owner, after)
		return s.deliver(ctx, "shop.registered", s.adminEmail, subject, body)
	case effectNotifyApproved:
		subject, body := s.composer.ShopApproved(owner, after)
		return s.deliverToUser(ctx, "shop.approved", owner, subject, body)
	case effectNotifyRejected:
		subject, body := s.composer.ShopRejected(owner, after)
		return s.deliverToUser(ctx, "shop.rejected", owner, subject, body)
	}
	return nil
}

func (s *notificationService) EventChanged(ctx context.Context, change EventChange) error {
	if ctx == nil {
		return errors.New("notification service: context is required")
	}
	if change.After == nil {
		return nil
	}
	after := *change.After

	var beforeApproval domain.ApprovalStatus
	beforeProgress := after.EventProgress
	if change.Before != nil {
		beforeApproval = change.Before.ApprovalStatus
		beforeProgress = change.Before.EventProgress
	}

	approvalEffect := eventApprovalEffect(beforeApproval, after.ApprovalStatus)
	progressFires := change.Before != nil &&
		eventProgressEffect(after.ApprovalStatus, beforeProgress, after.EventProgress)
	if approvalEffect == effectNone && !progressFires {
		return nil
	}

	owner, ok := s.resolveOwner(ctx, "event", after.ID, after.OwnerUserID)
	if !ok {
		return nil
	}

	switch approvalEffect {
	case effectNotifyApproved:
		subject, body := s.composer.EventApproved(owner, after)
		if err := s.deliverToUser(ctx, "event.approved", owner, subject, body); err != nil {
			return err
		}
	case effectNotifyRejected:
		subject, body := s.composer.EventRejected(owner, after)
		if err := s.deliverToUser(ctx, "event.rejected", owner, subject, body); err != nil {
			return err
		}
	}

	if progressFires {
		subject, body := s.composer.EventProgress(owner, after, after.EventProgress)
		kind := "event.progress." + string(after.EventProgress)
		if err := s.deliverToUser(ctx, kind, owner, subject, body); err != nil {
			return err
		}
	}
	return nil
}

// resolveOwner loads the listing owner. A missing owner or an owner without
// an email address is a logged no-op, never an error.
func (s *notificationService) resolveOwner(ctx context.Context, kind, id, ownerUID string) (User, bool) {
	trimmed := strings.TrimSpace(ownerUID)
	if trimmed == "" {
		s.logger(ctx, "notification skipped: listing has no owner", map[string]any{
			"kind": kind,
			"id":   id,
		})
		return User{}, false
	}

	owner, err := s.users.FindByUID(ctx, trimmed)
	if err != nil {
		s.logger(ctx, "notification skipped: owner lookup failed", map[string]any{
			"kind":  kind,
			"id":    id,
			"owner": trimmed,
			"error": err.Error(),
		})
		return User{}, false
	}
	if strings.TrimSpace(owner.Email) == "" {
		s.logger(ctx, "notification skipped: owner has no email", map[string]any{
			"kind":  kind,
			"id":    id,
			"owner": trimmed,
		})
		return User{}, false
	}
	return owner, true
}

func (s *notificationService) deliverToUser(ctx context.Context, kind string, user User, subject, body string) error {
	to := strings.TrimSpace(user.Email)
	if to == "" {
		s.logger(ctx, "notification skipped: recipient has no email", map[string]any{
			"kind": kind,
			"uid":  user.UID,
		})
		return nil
	}
	return s.deliver(ctx, kind, to, subject, body)
}

func (s *notificationService) deliver(ctx context.Context, kind, to, subject, body string) error {
	notificationID := ulid.Make().String()
	err := s.sender.Send(ctx, MailMessage{ID: notificationID, To: to, Subject: subject, Text: body})
	if err != nil {
		return fmt.Errorf("%w: %s to %s: %v", ErrMailRelay, kind, maskEmail(to), err)
	}

	s.logger(ctx, "notification sent", map[string]any{
		"notificationId": notificationID,
		"kind":           kind,
		"to":             maskEmail(to),
		"at":             s.clock(),
	})
	return nil
}

// maskEmail keeps the first rune of the local part so logs stay correlatable
// without exposing addresses.
func maskEmail(addr string) string {
	at := strings.Index(addr, "@")
	if at <= 1 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

var _ UserFinder = (repositories.UserRepository)(nil)
