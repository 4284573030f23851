package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/repositories"
)

type notFoundError struct{ err error }

func (e *notFoundError) Error() string       { return e.err.Error() }
func (e *notFoundError) Unwrap() error       { return e.err }
func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }

var _ repositories.RepositoryError = (*notFoundError)(nil)

type stubUserRepo struct {
	users       map[string]domain.User
	approvals   []repositories.ApprovalUpdate
	listAfter   []repositories.PendingCursor
	pendingNext repositories.PendingCursor
}

func (r *stubUserRepo) FindByUID(_ context.Context, uid string) (domain.User, error) {
	user, ok := r.users[uid]
	if !ok {
		return domain.User{}, &notFoundError{err: errors.New("user not found")}
	}
	return user, nil
}

func (r *stubUserRepo) SetApproval(_ context.Context, uid string, update repositories.ApprovalUpdate) (domain.User, error) {
	user, ok := r.users[uid]
	if !ok {
		return domain.User{}, &notFoundError{err: errors.New("user not found")}
	}
	user.ApprovalStatus = update.Status
	user.RejectionReason = update.RejectionReason
	user.UpdatedAt = update.Now
	r.users[uid] = user
	r.approvals = append(r.approvals, update)
	return user, nil
}

func (r *stubUserRepo) ListPending(_ context.Context, limit int, after repositories.PendingCursor) ([]domain.User, repositories.PendingCursor, error) {
	r.listAfter = append(r.listAfter, after)
	var pending []domain.User
	for _, user := range r.users {
		if user.ApprovalStatus == domain.ApprovalPending {
			pending = append(pending, user)
		}
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, r.pendingNext, nil
}

type stubShopRepo struct {
	shops       map[string]domain.Shop
	appends     [][]string
	appendRes   repositories.AppendImagesResult
	appendErr   error
	listAfter   []repositories.PendingCursor
	pendingNext repositories.PendingCursor
}

func (r *stubShopRepo) FindByID(_ context.Context, shopID string) (domain.Shop, error) {
	shop, ok := r.shops[shopID]
	if !ok {
		return domain.Shop{}, &notFoundError{err: errors.New("shop not found")}
	}
	return shop, nil
}

func (r *stubShopRepo) SetApproval(_ context.Context, shopID string, update repositories.ApprovalUpdate) (domain.Shop, error) {
	shop, ok := r.shops[shopID]
	if !ok {
		return domain.Shop{}, &notFoundError{err: errors.New("shop not found")}
	}
	shop.ApprovalStatus = update.Status
	shop.RejectionReason = update.RejectionReason
	shop.UpdatedAt = update.Now
	r.shops[shopID] = shop
	return shop, nil
}

func (r *stubShopRepo) AppendImages(_ context.Context, shopID string, urls []string, _ time.Time) (repositories.AppendImagesResult, error) {
	if r.appendErr != nil {
		return repositories.AppendImagesResult{}, r.appendErr
	}
	r.appends = append(r.appends, urls)
	if r.appendRes.Images != nil || r.appendRes.Evicted != nil {
		return r.appendRes, nil
	}
	return repositories.AppendImagesResult{Images: urls}, nil
}

func (r *stubShopRepo) ListPending(_ context.Context, limit int, after repositories.PendingCursor) ([]domain.Shop, repositories.PendingCursor, error) {
	r.listAfter = append(r.listAfter, after)
	var pending []domain.Shop
	for _, shop := range r.shops {
		if shop.ApprovalStatus == domain.ApprovalPending {
			pending = append(pending, shop)
		}
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, r.pendingNext, nil
}

type stubEventRepo struct {
	events      map[string]domain.Event
	appends     [][]string
	appendRes   repositories.AppendImagesResult
	appendErr   error
	listAfter   []repositories.PendingCursor
	pendingNext repositories.PendingCursor
}

func (r *stubEventRepo) FindByID(_ context.Context, eventID string) (domain.Event, error) {
	event, ok := r.events[eventID]
	if !ok {
		return domain.Event{}, &notFoundError{err: errors.New("event not found")}
	}
	return event, nil
}

func (r *stubEventRepo) SetApproval(_ context.Context, eventID string, update repositories.ApprovalUpdate) (domain.Event, error) {
	event, ok := r.events[eventID]
	if !ok {
		return domain.Event{}, &notFoundError{err: errors.New("event not found")}
	}
	event.ApprovalStatus = update.Status
	event.RejectionReason = update.RejectionReason
	event.UpdatedAt = update.Now
	r.events[eventID] = event
	return event, nil
}

func (r *stubEventRepo) SetProgress(_ context.Context, eventID string, progress domain.EventProgress, now time.Time) (domain.Event, error) {
	event, ok := r.events[eventID]
	if !ok {
		return domain.Event{}, &notFoundError{err: errors.New("event not found")}
	}
	event.EventProgress = progress
	event.UpdatedAt = now
	r.events[eventID] = event
	return event, nil
}

func (r *stubEventRepo) AppendImages(_ context.Context, eventID string, urls []string, _ time.Time) (repositories.AppendImagesResult, error) {
	if r.appendErr != nil {
		return repositories.AppendImagesResult{}, r.appendErr
	}
	r.appends = append(r.appends, urls)
	if r.appendRes.Images != nil || r.appendRes.Evicted != nil {
		return r.appendRes, nil
	}
	return repositories.AppendImagesResult{Images: urls}, nil
}

func (r *stubEventRepo) ListPending(_ context.Context, limit int, after repositories.PendingCursor) ([]domain.Event, repositories.PendingCursor, error) {
	r.listAfter = append(r.listAfter, after)
	var pending []domain.Event
	for _, event := range r.events {
		if event.ApprovalStatus == domain.ApprovalPending {
			pending = append(pending, event)
		}
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, r.pendingNext, nil
}

var (
	_ repositories.UserRepository  = (*stubUserRepo)(nil)
	_ repositories.ShopRepository  = (*stubShopRepo)(nil)
	_ repositories.EventRepository = (*stubEventRepo)(nil)
)
