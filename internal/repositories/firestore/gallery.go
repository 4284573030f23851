package firestore

import (
	"strings"

	domain "github.com/machikado-app/api/internal/domain"
)

const defaultPendingLimit = 50

// mergeGallery appends the new URLs to the existing gallery, drops duplicates
// and blanks, and enforces the listing image cap by keeping the newest entries.
// It returns the gallery to persist and the entries the cap evicted.
func mergeGallery(existing, added []string) (kept, evicted []string) {
	merged := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, url := range append(append([]string{}, existing...), added...) {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		merged = append(merged, trimmed)
	}

	if len(merged) <= domain.MaxListingImages {
		return merged, nil
	}
	cut := len(merged) - domain.MaxListingImages
	return merged[cut:], merged[:cut]
}
