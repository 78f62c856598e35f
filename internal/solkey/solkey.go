// Package solkey validates Solana-style account addresses supplied in
// pool configurations.
package solkey

import (
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address validation errors.
var (
	ErrBadEncoding = errors.New("address is not valid base58")
	ErrBadLength   = errors.New("address must decode to 32 bytes")
	ErrOffCurve    = errors.New("address is not an ed25519 curve point")
)

// ValidateAddress checks that addr is a base58-encoded 32-byte ed25519
// curve point, i.e. a plausible wallet or mint address. Program derived
// addresses are intentionally rejected: pool creators and fee
// recipients must be signable keys.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return ErrBadEncoding
	}
	if len(raw) != 32 {
		return ErrBadLength
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return ErrOffCurve
	}
	return nil
}
