package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// DerivePoolAddress derives a deterministic, Solana-address-shaped pool
// identifier from the mint, the creator and the creation timestamp.
// Formula: base58(SHA256(mint|creator|created_at)), 32 bytes of hash,
// so the result looks and sorts like an on-chain account address.
func DerivePoolAddress(mint, creator string, createdAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, creator, createdAt)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
