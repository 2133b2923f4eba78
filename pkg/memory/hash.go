package memory

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the deterministic hash memory dedup is keyed on:
// (content, category, machine_id), matching the store's idempotency
// contract for repeated stores within the dedup window.
func ContentHash(content string, category Category, machineID string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(machineID))
	return hex.EncodeToString(h.Sum(nil))
}
