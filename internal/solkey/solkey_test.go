package solkey

import (
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

// System program and wrapped SOL mint: both are valid curve points.
const (
	systemProgram = "11111111111111111111111111111111"
	wrappedSOL    = "So11111111111111111111111111111111111111112"
)

func TestValidateAddress_KnownGood(t *testing.T) {
	for _, addr := range []string{systemProgram, wrappedSOL} {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%s) failed: %v", addr, err)
		}
	}
}

func TestValidateAddress_BadEncoding(t *testing.T) {
	// 0, O, I, l are outside the base58 alphabet.
	if err := ValidateAddress("0OIl"); !errors.Is(err, ErrBadEncoding) {
		t.Errorf("expected ErrBadEncoding, got %v", err)
	}
}

func TestValidateAddress_BadLength(t *testing.T) {
	short := base58.Encode([]byte{1, 2, 3})
	if err := ValidateAddress(short); !errors.Is(err, ErrBadLength) {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
}

func TestValidateAddress_OffCurve(t *testing.T) {
	// All 0xff is not a canonical curve point encoding.
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xff
	}
	if err := ValidateAddress(base58.Encode(raw)); !errors.Is(err, ErrOffCurve) {
		t.Errorf("expected ErrOffCurve, got %v", err)
	}
}
