// Package digest is the hash primitive used for identity hashing and
// challenge-token derivation.
package digest

import (
	"encoding/hex"

	"github.com/minio/sha256-simd"
)

// SHA256Hex returns the lowercase hex SHA-256 of s (64 characters).
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
