package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
)

// clickIDLength keeps click tokens short enough for query strings while
// leaving collision probability negligible at tracking volumes
const clickIDLength = 21

var newClickID, _ = nanoid.Standard(clickIDLength)

// GenerateClickID returns a new opaque click token
func GenerateClickID() string {
	return newClickID()
}

// GenerateSessionID returns a new visitor session identifier
func GenerateSessionID() string {
	return uuid.New().String()
}

// HashUserAgent returns the hex SHA-256 digest of a raw user agent string.
// Clicks are correlated by this hash, never by the raw string.
func HashUserAgent(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}
