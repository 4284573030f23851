package storage

import (
	"fmt"
	"path"
	"strings"
)

// VariantSuffixes lists the size-name suffixes appended to generated image
// variants. Objects already carrying one are never reprocessed.
var VariantSuffixes = []string{"_thumbnail", "_small", "_medium", "_large"}

// IsVariantObject reports whether the object name already carries a variant
// size suffix.
func IsVariantObject(object string) bool {
	base := strings.TrimSuffix(path.Base(object), path.Ext(object))
	for _, suffix := range VariantSuffixes {
		if strings.Contains(base, suffix) {
			return true
		}
	}
	return false
}

// VariantObjectName composes the object name for a generated variant:
// "shops/abc/photo.png" with size "small" becomes "shops/abc/photo_small.jpg".
// Variants are always re-encoded as JPEG.
func VariantObjectName(original, sizeName string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(original), "/")
	if trimmed == "" {
		return "", errInvalidObject
	}
	size := strings.TrimSpace(sizeName)
	if size == "" {
		return "", fmt.Errorf("storage: variant size name is required")
	}
	ext := path.Ext(trimmed)
	base := strings.TrimSuffix(trimmed, ext)
	return fmt.Sprintf("%s_%s.jpg", base, size), nil
}
