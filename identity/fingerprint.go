package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes key parts into a short stable identifier for cache and session keys.
func Fingerprint(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:16])
}
