package brewtext

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashDescription returns a 32-char lowercase hex digest of the description,
// the first 16 bytes of its SHA-256. Used to detect when a stored description
// changed and its cleaned form must be recomputed
func HashDescription(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
