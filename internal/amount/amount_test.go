package amount_test

import (
	"errors"
	"testing"

	"SherPool/internal/amount"

	"github.com/holiman/uint256"
)

func TestMulDiv_RoundsDown(t *testing.T) {
	// 7 * 3 / 2 = 10.5, truncated to 10
	got, err := amount.MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	if err != nil {
		t.Fatalf("MulDiv failed: %v", err)
	}
	if got.Uint64() != 10 {
		t.Errorf("expected 10, got %s", got.Dec())
	}
}

func TestMulDiv_FullPrecisionIntermediate(t *testing.T) {
	// x*y overflows 256 bits but the quotient fits: max * max / max = max.
	max := new(uint256.Int).SetAllOne()
	got, err := amount.MulDiv(max, max, max)
	if err != nil {
		t.Fatalf("MulDiv failed: %v", err)
	}
	if !got.Eq(max) {
		t.Errorf("expected max, got %s", got.Dec())
	}
}

func TestMulDiv_DivisionByZero(t *testing.T) {
	_, err := amount.MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0))
	if !errors.Is(err, amount.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestMulDiv_Overflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	_, err := amount.MulDiv(max, uint256.NewInt(2), uint256.NewInt(1))
	if !errors.Is(err, amount.ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestBpsShare(t *testing.T) {
	tests := []struct {
		name string
		x    uint64
		bps  uint32
		want uint64
	}{
		{"one percent", 10_000, 100, 100},
		{"full", 10_000, 10_000, 10_000},
		{"zero bps", 10_000, 0, 0},
		{"rounds down", 1001, 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := amount.BpsShare(uint256.NewInt(tt.x), tt.bps)
			if got.Uint64() != tt.want {
				t.Errorf("BpsShare(%d, %d) = %s, want %d", tt.x, tt.bps, got.Dec(), tt.want)
			}
		})
	}
}

func TestWeightShare_FullWeightIsIdentity(t *testing.T) {
	x := uint256.NewInt(123_456_789)
	got := amount.WeightShare(x, amount.WeightTotal)
	if !got.Eq(x) {
		t.Errorf("full weight share = %s, want %s", got.Dec(), x.Dec())
	}
}

func TestWeightShare_HalfWeight(t *testing.T) {
	// 65535 is odd so half the total weight floors.
	got := amount.WeightShare(uint256.NewInt(65535), 32767)
	if got.Uint64() != 32767 {
		t.Errorf("expected 32767, got %s", got.Dec())
	}
}

func TestUsdValue_RoundTripWithFromUsd(t *testing.T) {
	price := new(uint256.Int).Mul(uint256.NewInt(2), amount.Wad) // $2.00
	tokens := uint256.NewInt(500)

	usd, err := amount.UsdValue(tokens, price)
	if err != nil {
		t.Fatalf("UsdValue failed: %v", err)
	}
	want := new(uint256.Int).Mul(uint256.NewInt(1000), amount.Wad)
	if !usd.Eq(want) {
		t.Errorf("UsdValue = %s, want %s", usd.Dec(), want.Dec())
	}

	back, err := amount.FromUsd(usd, price)
	if err != nil {
		t.Fatalf("FromUsd failed: %v", err)
	}
	if !back.Eq(tokens) {
		t.Errorf("FromUsd = %s, want %s", back.Dec(), tokens.Dec())
	}
}

func TestFromUsd_ZeroPrice(t *testing.T) {
	_, err := amount.FromUsd(amount.Wad, uint256.NewInt(0))
	if !errors.Is(err, amount.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestIsMax(t *testing.T) {
	if !amount.IsMax(new(uint256.Int).SetAllOne()) {
		t.Error("all-ones should be the max sentinel")
	}
	if amount.IsMax(uint256.NewInt(1)) {
		t.Error("1 should not be the max sentinel")
	}
	if amount.IsMax(nil) {
		t.Error("nil should not be the max sentinel")
	}
}

func TestClone_NilSafe(t *testing.T) {
	got := amount.Clone(nil)
	if got == nil || !got.IsZero() {
		t.Errorf("Clone(nil) should return zero, got %v", got)
	}
}

func TestClone_Independent(t *testing.T) {
	orig := uint256.NewInt(42)
	cp := amount.Clone(orig)
	cp.AddUint64(cp, 1)
	if orig.Uint64() != 42 {
		t.Errorf("mutating the clone changed the original: %s", orig.Dec())
	}
}
