package firestore

import (
	"reflect"
	"testing"
)

func TestMergeGalleryKeepsNewestUnderCap(t *testing.T) {
	existing := []string{"a.jpg", "b.jpg"}
	added := []string{"c.jpg"}

	kept, evicted := mergeGallery(existing, added)
	if !reflect.DeepEqual(kept, []string{"a.jpg", "b.jpg", "c.jpg"}) {
		t.Fatalf("unexpected gallery: %v", kept)
	}
	if len(evicted) != 0 {
		t.Fatalf("expected no evictions, got %v", evicted)
	}
}

func TestMergeGalleryEvictsOldestBeyondCap(t *testing.T) {
	existing := []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg"}
	added := []string{"5.jpg", "6.jpg", "7.jpg"}

	kept, evicted := mergeGallery(existing, added)
	if !reflect.DeepEqual(kept, []string{"3.jpg", "4.jpg", "5.jpg", "6.jpg", "7.jpg"}) {
		t.Fatalf("unexpected gallery: %v", kept)
	}
	if !reflect.DeepEqual(evicted, []string{"1.jpg", "2.jpg"}) {
		t.Fatalf("unexpected evictions: %v", evicted)
	}
}

func TestMergeGalleryDropsDuplicatesAndBlanks(t *testing.T) {
	existing := []string{"a.jpg", ""}
	added := []string{" a.jpg ", "b.jpg", "b.jpg"}

	kept, evicted := mergeGallery(existing, added)
	if !reflect.DeepEqual(kept, []string{"a.jpg", "b.jpg"}) {
		t.Fatalf("unexpected gallery: %v", kept)
	}
	if len(evicted) != 0 {
		t.Fatalf("expected no evictions, got %v", evicted)
	}
}
