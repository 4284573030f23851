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
)

const userCollection = "users"

// UserRepository persists platform accounts in Firestore keyed by Firebase UID.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base, provider: provider}, nil
}

// FindByUID loads the account document by Firebase UID.
func (r *UserRepository) FindByUID(ctx context.Context, uid string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(uid) == "" {
		return domain.User{}, errors.New("user uid is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// SetApproval writes the moderation decision onto the account document.
// Approvals clear any previous rejection reason.
func (r *UserRepository) SetApproval(ctx context.Context, uid string, update repositories.ApprovalUpdate) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(uid) == "" {
		return domain.User{}, errors.New("user uid is required")
	}
	if !update.Status.IsKnown() {
		return domain.User{}, fmt.Errorf("unknown approval status %q", update.Status)
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

	if _, err := r.base.Update(ctx, uid, updates); err != nil {
		return domain.User{}, err
	}
	return r.FindByUID(ctx, uid)
}

// ListPending returns the oldest accounts still awaiting a decision, resuming
// after the supplied cursor. The returned cursor is zero once the listing is
// exhausted.
func (r *UserRepository) ListPending(ctx context.Context, limit int, after repositories.PendingCursor) ([]domain.User, repositories.PendingCursor, error) {
	if r == nil || r.base == nil {
		return nil, repositories.PendingCursor{}, errors.New("user repository not initialised")
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

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, toDomainUser(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	var next repositories.PendingCursor
	if len(users) == limit {
		last := users[len(users)-1]
		next = repositories.PendingCursor{CreatedAt: last.CreatedAt, ID: last.UID}
	}
	return users, next, nil
}

type userDocument struct {
	UID             string    `firestore:"uid"`
	Email           string    `firestore:"email"`
	DisplayName     string    `firestore:"displayName"`
	Role            string    `firestore:"role"`
	ApprovalStatus  string    `firestore:"approvalStatus"`
	RejectionReason string    `firestore:"rejectionReason,omitempty"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func toDomainUser(id string, doc userDocument, createTime, updateTime time.Time) domain.User {
	user := domain.User{
		UID:             id,
		Email:           strings.TrimSpace(doc.Email),
		DisplayName:     strings.TrimSpace(doc.DisplayName),
		Role:            domain.Role(strings.TrimSpace(doc.Role)),
		ApprovalStatus:  domain.ApprovalStatus(strings.TrimSpace(doc.ApprovalStatus)),
		RejectionReason: strings.TrimSpace(doc.RejectionReason),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = createTime
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = updateTime
	}
	return user
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// CollectionName exposes the Firestore collection for migration tooling.
func (r *UserRepository) CollectionName() string {
	return userCollection
}

// DocumentPath constructs the document path for the provided uid.
func (r *UserRepository) DocumentPath(uid string) string {
	return fmt.Sprintf("%s/%s", userCollection, strings.TrimSpace(uid))
}
