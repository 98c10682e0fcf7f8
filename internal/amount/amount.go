package amount

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

// Pool balances, share counts, premium rates and SherX quantities are all
// unsigned 256-bit integers. Intermediate products are widened through big.Int
// so a MulDiv never loses precision; division always rounds down.

const (
	// BpsDenominator is the basis-point scale for the cooldown fee.
	BpsDenominator = 10_000

	// WeightTotal is the full emission weight (uint16 max). The per-asset
	// weights plus the beneficiary weight must sum to exactly this.
	WeightTotal = 65_535
)

var (
	// Wad is the 1e18 fixed-point scale used for injected USD prices and for
	// the SherX USD price.
	Wad = uint256.NewInt(1e18)

	// Max is the all-ones sentinel meaning "the full available balance".
	Max = new(uint256.Int).SetAllOne()

	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("result exceeds 256 bits")
)

var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Clone returns an independent copy of x (nil-safe).
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}

// IsMax reports whether x is the full-balance sentinel.
func IsMax(x *uint256.Int) bool {
	return x != nil && x.Eq(Max)
}

// MulDiv computes x*y/d with a 512-bit intermediate, rounding down.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}

	prod := getBig()
	defer putBig(prod)

	prod.Mul(x.ToBig(), y.ToBig())
	prod.Div(prod, d.ToBig())

	out, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// MulU64Div computes x*y/d where y and d are small scalars.
func MulU64Div(x *uint256.Int, y, d uint64) (*uint256.Int, error) {
	return MulDiv(x, uint256.NewInt(y), uint256.NewInt(d))
}

// BpsShare returns x*bps/10000, the basis-point portion of x.
func BpsShare(x *uint256.Int, bps uint32) *uint256.Int {
	// bps <= 10000 so the product cannot overflow the widened intermediate
	// and the quotient never exceeds x.
	out, _ := MulU64Div(x, uint64(bps), BpsDenominator)
	return out
}

// WeightShare returns x*weight/65535, the emission-weight portion of x.
func WeightShare(x *uint256.Int, weight uint16) *uint256.Int {
	out, _ := MulU64Div(x, uint64(weight), WeightTotal)
	return out
}

// UsdValue converts a token quantity to its wad-scaled USD value:
// amount * price / 1e18.
func UsdValue(tokens, price *uint256.Int) (*uint256.Int, error) {
	return MulDiv(tokens, price, Wad)
}

// FromUsd converts a wad-scaled USD value back to token units:
// usd * 1e18 / price.
func FromUsd(usd, price *uint256.Int) (*uint256.Int, error) {
	return MulDiv(usd, Wad, price)
}
