package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashText keys caches by model and whitespace-normalized text.
func HashText(model, input string) string {
	normalized := strings.Join(strings.Fields(input), " ")
	sum := sha256.Sum256([]byte(model + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}
