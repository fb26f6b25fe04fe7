// Package checksum fingerprints document text for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the lowercase hex SHA-256 of text.
func Of(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Changed reports whether text no longer matches a previously stored
// fingerprint. An empty stored value always counts as changed.
func Changed(stored, text string) bool {
	return stored == "" || stored != Of(text)
}
