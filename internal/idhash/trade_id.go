package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-curve-engine/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(pool_id|side|seq|timestamp)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	poolID string,
	side domain.Side,
	seq int64,
	timestamp int64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		poolID,
		string(side),
		seq,
		timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
