package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/repositories"
)

type stubStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   map[string][]byte
	deleted   []string
	failSizes map[string]error
	deleteErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		objects:   map[string][]byte{},
		uploads:   map[string][]byte{},
		failSizes: map[string]error{},
	}
}

func (s *stubStore) Download(_ context.Context, _, object string) ([]byte, error) {
	data, ok := s.objects[object]
	if !ok {
		return nil, errors.New("object missing")
	}
	return data, nil
}

func (s *stubStore) UploadPublic(_ context.Context, bucket, object, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for suffix, err := range s.failSizes {
		if strings.Contains(object, suffix) {
			return "", err
		}
	}
	s.uploads[object] = data
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object), nil
}

func (s *stubStore) Delete(_ context.Context, _, object string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, object)
	return nil
}

func (s *stubStore) ObjectFromPublicURL(raw string, bucket string) (string, bool) {
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", bucket)
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	return strings.TrimPrefix(raw, prefix), true
}

func sampleJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(width, height, color.White)
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode sample image: %v", err)
	}
	return buf.Bytes()
}

func newMediaFixture(t *testing.T, store *stubStore, shops *stubShopRepo, events *stubEventRepo) MediaService {
	t.Helper()
	if shops == nil {
		shops = &stubShopRepo{shops: map[string]domain.Shop{}}
	}
	if events == nil {
		events = &stubEventRepo{events: map[string]domain.Event{}}
	}
	svc, err := NewMediaService(MediaServiceDeps{
		Store:  store,
		Shops:  shops,
		Events: events,
		Clock:  func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new media service: %v", err)
	}
	return svc
}

func TestProcessFinalizedObjectProducesFourVariants(t *testing.T) {
	store := newStubStore()
	store.objects["shops/s1/photo.jpg"] = sampleJPEG(t, 1000, 1000)
	shops := &stubShopRepo{shops: map[string]domain.Shop{"s1": {ID: "s1"}}}
	svc := newMediaFixture(t, store, shops, nil)

	report, err := svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket:      "content",
		Name:        "shops/s1/photo.jpg",
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Skipped {
		t.Fatalf("unexpected skip: %s", report.SkipReason)
	}
	if len(report.UploadedURL) != 4 || len(report.Failed) != 0 {
		t.Fatalf("expected 4 uploads, got %d uploads %d failures", len(report.UploadedURL), len(report.Failed))
	}

	want := map[string][2]int{
		"shops/s1/photo_thumbnail.jpg": {150, 150},
		"shops/s1/photo_small.jpg":     {400, 300},
		"shops/s1/photo_medium.jpg":    {800, 600},
		"shops/s1/photo_large.jpg":     {1200, 900},
	}
	for object, dims := range want {
		data, ok := store.uploads[object]
		if !ok {
			t.Fatalf("missing upload %s (have %v)", object, len(store.uploads))
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %s: %v", object, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != dims[0] || bounds.Dy() != dims[1] {
			t.Fatalf("%s: got %dx%d, want %dx%d", object, bounds.Dx(), bounds.Dy(), dims[0], dims[1])
		}
	}

	if len(shops.appends) != 1 || len(shops.appends[0]) != 4 {
		t.Fatalf("expected one gallery append with 4 urls, got %+v", shops.appends)
	}
}

func TestProcessFinalizedObjectSkipsExistingVariant(t *testing.T) {
	store := newStubStore()
	svc := newMediaFixture(t, store, nil, nil)

	report, err := svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket:      "content",
		Name:        "shops/s1/photo_thumbnail.jpg",
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !report.Skipped {
		t.Fatal("variant objects must be skipped")
	}
	if len(store.uploads) != 0 {
		t.Fatalf("skip must not upload, got %v", store.uploads)
	}
}

func TestProcessFinalizedObjectSkipsNonImagesAndForeignPaths(t *testing.T) {
	store := newStubStore()
	svc := newMediaFixture(t, store, nil, nil)

	report, err := svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket: "content", Name: "shops/s1/menu.pdf", ContentType: "application/pdf",
	})
	if err != nil || !report.Skipped {
		t.Fatalf("pdf must be skipped, report=%+v err=%v", report, err)
	}

	report, err = svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket: "content", Name: "avatars/u1/photo.jpg", ContentType: "image/jpeg",
	})
	if err != nil || !report.Skipped {
		t.Fatalf("foreign path must be skipped, report=%+v err=%v", report, err)
	}
}

func TestProcessFinalizedObjectContinuesAfterSizeFailure(t *testing.T) {
	store := newStubStore()
	store.objects["events/e1/flyer.png"] = sampleJPEG(t, 1000, 1000)
	store.failSizes["_small"] = errors.New("upload quota")
	events := &stubEventRepo{events: map[string]domain.Event{"e1": {ID: "e1"}}}
	svc := newMediaFixture(t, store, nil, events)

	report, err := svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket:      "content",
		Name:        "events/e1/flyer.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(report.UploadedURL) != 3 {
		t.Fatalf("expected 3 surviving uploads, got %v", report.UploadedURL)
	}
	if len(report.Failed) != 1 || report.Failed[0].SizeName != "small" {
		t.Fatalf("expected a captured small failure, got %+v", report.Failed)
	}
	if len(events.appends) != 1 || len(events.appends[0]) != 3 {
		t.Fatalf("partial success must still append, got %+v", events.appends)
	}
}

func TestProcessFinalizedObjectDeletesEvictedImages(t *testing.T) {
	store := newStubStore()
	store.objects["shops/s1/photo.jpg"] = sampleJPEG(t, 1000, 1000)
	shops := &stubShopRepo{
		shops: map[string]domain.Shop{"s1": {ID: "s1"}},
		appendRes: repositories.AppendImagesResult{
			Images: []string{"https://storage.googleapis.com/content/shops/s1/keep.jpg"},
			Evicted: []string{
				"https://storage.googleapis.com/content/shops/s1/old1.jpg",
				"https://storage.googleapis.com/content/shops/s1/old2.jpg",
			},
		},
	}
	svc := newMediaFixture(t, store, shops, nil)

	report, err := svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket:      "content",
		Name:        "shops/s1/photo.jpg",
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(report.Evicted) != 2 {
		t.Fatalf("expected 2 evicted urls, got %v", report.Evicted)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected 2 deletes, got %v", store.deleted)
	}
}

func TestProcessFinalizedObjectToleratesDeleteFailure(t *testing.T) {
	store := newStubStore()
	store.objects["shops/s1/photo.jpg"] = sampleJPEG(t, 1000, 1000)
	store.deleteErr = errors.New("permission denied")
	shops := &stubShopRepo{
		shops: map[string]domain.Shop{"s1": {ID: "s1"}},
		appendRes: repositories.AppendImagesResult{
			Images:  []string{"https://storage.googleapis.com/content/shops/s1/keep.jpg"},
			Evicted: []string{"https://storage.googleapis.com/content/shops/s1/old.jpg"},
		},
	}
	svc := newMediaFixture(t, store, shops, nil)

	if _, err := svc.ProcessFinalizedObject(context.Background(), StorageObject{
		Bucket:      "content",
		Name:        "shops/s1/photo.jpg",
		ContentType: "image/jpeg",
	}); err != nil {
		t.Fatalf("delete failures must stay best effort, got %v", err)
	}
}
