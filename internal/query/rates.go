package query

import "math/big"

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ExchangeRate returns the wad-scaled underlying value of one share,
// stakersPool·1e18/totalShares, from the projected decimal strings.
// ok is false while no shares exist or the inputs do not parse.
func ExchangeRate(totalShares, stakersPool string) (string, bool) {
	shares, ok := new(big.Int).SetString(totalShares, 10)
	if !ok || shares.Sign() <= 0 {
		return "", false
	}
	pool, ok := new(big.Int).SetString(stakersPool, 10)
	if !ok || pool.Sign() < 0 {
		return "", false
	}
	rate := new(big.Int).Mul(pool, wad)
	return rate.Quo(rate, shares).String(), true
}

// sherXPrice returns the wad-scaled USD value of one SherX,
// usdPool·1e18/internalSupply, falling back to 1 USD while either side is
// zero — the same rule the engine prices with.
func sherXPrice(internalSupply, usdPool string) string {
	supply, ok := new(big.Int).SetString(internalSupply, 10)
	if !ok || supply.Sign() <= 0 {
		return wad.String()
	}
	usd, ok := new(big.Int).SetString(usdPool, 10)
	if !ok || usd.Sign() <= 0 {
		return wad.String()
	}
	price := new(big.Int).Mul(usd, wad)
	return price.Quo(price, supply).String()
}
