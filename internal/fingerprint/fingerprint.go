// Package fingerprint computes the stable identifiers used as cache key
// components. Both fingerprints use SHA-256: the content fingerprint is a
// security-relevant cache admission key, so collision resistance matters.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// URL fingerprints a canonical page address.
func URL(rawURL string) string {
	return digest(rawURL)
}

// Content fingerprints extracted body text. Any single-byte change in the
// input produces a different fingerprint, which is what invalidates cached
// audits when a page is rewritten under the same URL.
func Content(text string) string {
	return digest(text)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
