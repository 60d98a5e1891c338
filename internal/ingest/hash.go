package ingest

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash computes the stable digest used as the dedup key for chunks.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return fmt.Sprintf("%x", sum)
}

// ImageHash computes the stable digest used as the dedup key for figures.
func ImageHash(image []byte) string {
	sum := sha256.Sum256(image)
	return fmt.Sprintf("%x", sum)
}
