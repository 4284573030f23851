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

const shopCollection = "shops"

// ShopRepository persists shop listings and their moderated gallery in Firestore.
type ShopRepository struct {
	base     *pfirestore.BaseRepository[shopDocument]
	provider *pfirestore.Provider
}

// NewShopRepository constructs a Firestore-backed shop repository.
func NewShopRepository(provider *pfirestore.Provider) (*ShopRepository, error) {
	if provider == nil {
		return nil, errors.New("shop repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[shopDocument](provider, shopCollection, nil, nil)
	return &ShopRepository{base: base, provider: provider}, nil
}

// FindByID loads the shop listing by document id.
func (r *ShopRepository) FindByID(ctx context.Context, shopID string) (domain.Shop, error) {
	if r == nil || r.base == nil {
		return domain.Shop{}, errors.New("shop repository not initialised")
	}
	if strings.TrimSpace(shopID) == "" {
		return domain.Shop{}, errors.New("shop id is required")
	}

	doc, err := r.base.Get(ctx, shopID)
	if err != nil {
		return domain.Shop{}, err
	}
	return toDomainShop(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// SetApproval writes the moderation decision onto the shop document.
func (r *ShopRepository) SetApproval(ctx context.Context, shopID string, update repositories.ApprovalUpdate) (domain.Shop, error) {
	if r == nil || r.base == nil {
		return domain.Shop{}, errors.New("shop repository not initialised")
	}
	if strings.TrimSpace(shopID) == "" {
		return domain.Shop{}, errors.New("shop id is required")
	}
	if !update.Status.IsKnown() {
		return domain.Shop{}, fmt.Errorf("unknown approval status %q", update.Status)
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

	if _, err := r.base.Update(ctx, shopID, updates); err != nil {
		return domain.Shop{}, err
	}
	return r.FindByID(ctx, shopID)
}

// AppendImages merges the URLs into the gallery inside a transaction so the
// image cap holds under concurrent variant uploads. The evicted entries are
// reported so the caller can reclaim the storage objects.
func (r *ShopRepository) AppendImages(ctx context.Context, shopID string, urls []string, now time.Time) (repositories.AppendImagesResult, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return repositories.AppendImagesResult{}, errors.New("shop repository not initialised")
	}
	if strings.TrimSpace(shopID) == "" {
		return repositories.AppendImagesResult{}, errors.New("shop id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.AppendImagesResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, shopID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc shopDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode shop %s: %w", shopID, err)
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

// ListPending returns the oldest shop submissions still awaiting a decision,
// resuming after the supplied cursor.
func (r *ShopRepository) ListPending(ctx context.Context, limit int, after repositories.PendingCursor) ([]domain.Shop, repositories.PendingCursor, error) {
	if r == nil || r.base == nil {
		return nil, repositories.PendingCursor{}, errors.New("shop repository not initialised")
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

	shops := make([]domain.Shop, 0, len(docs))
	for _, doc := range docs {
		shops = append(shops, toDomainShop(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	var next repositories.PendingCursor
	if len(shops) == limit {
		last := shops[len(shops)-1]
		next = repositories.PendingCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return shops, next, nil
}

type shopDocument struct {
	OwnerUserID     string           `firestore:"ownerUserId"`
	ShopName        string           `firestore:"shopName"`
	Description     string           `firestore:"description"`
	Address         string           `firestore:"address"`
	Location        *domain.GeoPoint `firestore:"location,omitempty"`
	ApprovalStatus  string           `firestore:"approvalStatus"`
	RejectionReason string           `firestore:"rejectionReason,omitempty"`
	Images          []string         `firestore:"images"`
	CreatedAt       time.Time        `firestore:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt"`
}

func toDomainShop(id string, doc shopDocument, createTime, updateTime time.Time) domain.Shop {
	shop := domain.Shop{
		ID:              id,
		OwnerUserID:     strings.TrimSpace(doc.OwnerUserID),
		ShopName:        strings.TrimSpace(doc.ShopName),
		Description:     doc.Description,
		Address:         strings.TrimSpace(doc.Address),
		Location:        doc.Location,
		ApprovalStatus:  domain.ApprovalStatus(strings.TrimSpace(doc.ApprovalStatus)),
		RejectionReason: strings.TrimSpace(doc.RejectionReason),
		Images:          doc.Images,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = createTime
	}
	if shop.UpdatedAt.IsZero() {
		shop.UpdatedAt = updateTime
	}
	return shop
}

var _ repositories.ShopRepository = (*ShopRepository)(nil)

// CollectionName exposes the Firestore collection for migration tooling.
func (r *ShopRepository) CollectionName() string {
	return shopCollection
}
