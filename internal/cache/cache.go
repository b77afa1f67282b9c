package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix is bumped whenever Normalize or the stored value format changes
const keyPrefix = "athena:v1:"

// Normalize canonicalises input text so trivially different submissions
// (spacing, case, Unicode composition) share a fingerprint
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.ToLower(text)
}

// Fingerprint generates a cache key from input text
func Fingerprint(text string) string {
	hash := sha256.Sum256([]byte(Normalize(text)))
	return keyPrefix + hex.EncodeToString(hash[:])
}
