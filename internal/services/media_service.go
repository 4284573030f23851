package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	domain "github.com/machikado-app/api/internal/domain"
	platformstorage "github.com/machikado-app/api/internal/platform/storage"
	"github.com/machikado-app/api/internal/repositories"
)

const variantJPEGQuality = 85

// variantSize is one fixed output dimension of the pipeline.
type variantSize struct {
	Name   string
	Width  int
	Height int
}

// variantSizes is the fixed fan-out set, smallest first.
var variantSizes = []variantSize{
	{Name: "thumbnail", Width: 150, Height: 150},
	{Name: "small", Width: 400, Height: 300},
	{Name: "medium", Width: 800, Height: 600},
	{Name: "large", Width: 1200, Height: 900},
}

// allowedImageTypes is the upload content-type allow-list.
var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// VariantStore is the slice of object storage the pipeline needs.
type VariantStore interface {
	Download(ctx context.Context, bucket, object string) ([]byte, error)
	UploadPublic(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, bucket, object string) error
	ObjectFromPublicURL(raw string, bucket string) (string, bool)
}

// MediaServiceDeps bundles collaborators required to construct a media service.
type MediaServiceDeps struct {
	Store  VariantStore
	Shops  repositories.ShopRepository
	Events repositories.EventRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type mediaService struct {
	store  VariantStore
	shops  repositories.ShopRepository
	events repositories.EventRepository
	clock  func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

var _ MediaService = (*mediaService)(nil)

// NewMediaService assembles the image variant pipeline.
func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	if deps.Store == nil {
		return nil, errors.New("media service: object store is required")
	}
	if deps.Shops == nil {
		return nil, errors.New("media service: shop repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("media service: event repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &mediaService{
		store:  deps.Store,
		shops:  deps.Shops,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ProcessFinalizedObject runs the variant pipeline for one finalized upload.
// Per-size failures are captured and the remaining sizes continue; the
// gallery is only touched when at least one variant succeeded.
func (s *mediaService) ProcessFinalizedObject(ctx context.Context, object StorageObject) (VariantReport, error) {
	if ctx == nil {
		return VariantReport{}, errors.New("media service: context is required")
	}

	name := strings.TrimSpace(object.Name)
	info, ok := domain.ParseImagePath(name)
	if !ok {
		return skipReport("object is outside listing galleries"), nil
	}
	if _, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(object.ContentType))]; !ok {
		return skipReport(fmt.Sprintf("content type %q is not an image", object.ContentType)), nil
	}
	if platformstorage.IsVariantObject(name) {
		return skipReport("object is already a generated variant"), nil
	}

	data, err := s.store.Download(ctx, object.Bucket, name)
	if err != nil {
		return VariantReport{}, fmt.Errorf("download %s: %w", name, err)
	}
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return VariantReport{}, fmt.Errorf("decode %s: %w", name, err)
	}

	urls, failures := s.generateVariants(ctx, object.Bucket, name, src)
	report := VariantReport{UploadedURL: urls, Failed: failures}
	for _, failure := range failures {
		s.logger(ctx, "variant generation failed", map[string]any{
			"object": name,
			"size":   failure.SizeName,
			"error":  failure.Err.Error(),
		})
	}
	if len(urls) == 0 {
		return report, nil
	}

	gallery, err := s.appendToGallery(ctx, info, urls)
	if err != nil {
		return report, fmt.Errorf("append gallery %s/%s: %w", info.Kind, info.OwnerID, err)
	}
	report.Gallery = gallery.Images
	report.Evicted = gallery.Evicted

	s.deleteEvicted(ctx, object.Bucket, gallery.Evicted)
	return report, nil
}

// generateVariants fans out over the fixed size set and joins, capturing a
// per-task error for every size that could not be produced.
func (s *mediaService) generateVariants(ctx context.Context, bucket, name string, src image.Image) ([]string, []VariantFailure) {
	type outcome struct {
		url string
		err error
	}

	outcomes := make([]outcome, len(variantSizes))
	var wg sync.WaitGroup
	wg.Add(len(variantSizes))
	for i, size := range variantSizes {
		i, size := i, size
		go func() {
			defer wg.Done()
			url, err := s.produceVariant(ctx, bucket, name, src, size)
			outcomes[i] = outcome{url: url, err: err}
		}()
	}
	wg.Wait()

	var urls []string
	var failures []VariantFailure
	for i, out := range outcomes {
		if out.err != nil {
			failures = append(failures, VariantFailure{SizeName: variantSizes[i].Name, Err: out.err})
			continue
		}
		urls = append(urls, out.url)
	}
	return urls, failures
}

func (s *mediaService) produceVariant(ctx context.Context, bucket, name string, src image.Image, size variantSize) (string, error) {
	variantName, err := platformstorage.VariantObjectName(name, size.Name)
	if err != nil {
		return "", err
	}

	resized := imaging.Fill(src, size.Width, size.Height, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(variantJPEGQuality)); err != nil {
		return "", fmt.Errorf("encode %s: %w", size.Name, err)
	}

	url, err := s.store.UploadPublic(ctx, bucket, variantName, "image/jpeg", buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", variantName, err)
	}
	return url, nil
}

func (s *mediaService) appendToGallery(ctx context.Context, info domain.ImagePathInfo, urls []string) (repositories.AppendImagesResult, error) {
	now := s.clock()
	switch info.Kind {
	case domain.ContentShop:
		return s.shops.AppendImages(ctx, info.OwnerID, urls, now)
	case domain.ContentEvent:
		return s.events.AppendImages(ctx, info.OwnerID, urls, now)
	}
	return repositories.AppendImagesResult{}, fmt.Errorf("unknown listing kind %q", info.Kind)
}

// deleteEvicted reclaims storage for URLs the gallery cap pushed out. Each
// delete is best effort.
func (s *mediaService) deleteEvicted(ctx context.Context, bucket string, evicted []string) {
	for _, url := range evicted {
		objectName, ok := s.store.ObjectFromPublicURL(url, bucket)
		if !ok {
			s.logger(ctx, "evicted image outside bucket", map[string]any{"url": url})
			continue
		}
		if err := s.store.Delete(ctx, bucket, objectName); err != nil {
			s.logger(ctx, "evicted image delete failed", map[string]any{
				"object": objectName,
				"error":  err.Error(),
			})
		}
	}
}

func skipReport(reason string) VariantReport {
	return VariantReport{Skipped: true, SkipReason: reason}
}
