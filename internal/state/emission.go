package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
)

// EmissionState carries the SherX accrual accumulators. Premium flow is
// valued in USD per block; the derivative is emitted at a rate that keeps
// one accrued SherX worth its current USD price.
type EmissionState struct {
	// SherXPerBlock is the derivative emission rate derived from the USD
	// flow and the current SherX price.
	SherXPerBlock *uint256.Int
	// TotalUsdPerBlock is Σ over premium pools of rate·price/1e18.
	TotalUsdPerBlock *uint256.Int
	// UsdPool is the cumulative USD value backing the internal supply.
	UsdPool *uint256.Int

	LastAccrualBlock uint64

	// Beneficiary receives the non-staker slice of every emission.
	Beneficiary            uuid.UUID
	BeneficiaryWeight      uint16
	BeneficiaryUnallocated *uint256.Int
}

func NewEmissionState() *EmissionState {
	return &EmissionState{
		SherXPerBlock:          new(uint256.Int),
		TotalUsdPerBlock:       new(uint256.Int),
		UsdPool:                new(uint256.Int),
		BeneficiaryUnallocated: new(uint256.Int),
	}
}

// EmissionManager accrues and distributes the derivative. Every mutating
// command that touches rates, weights, prices or the derivative ledger must
// accrue first so the accumulators never mix two rate regimes.
type EmissionManager struct {
	st *State
}

func NewEmissionManager(st *State) *EmissionManager {
	return &EmissionManager{st: st}
}

// Accrue advances the accumulators from the last accrual block to now at the
// current rates: the USD pool grows by flow·Δ and up to Δ·sherXPerBlock new
// internal supply is split across the weight table.
func (m *EmissionManager) Accrue(now uint64) {
	e := m.st.Emission
	if now <= e.LastAccrualBlock {
		return
	}
	delta := uint256.NewInt(now - e.LastAccrualBlock)
	e.LastAccrualBlock = now

	if !e.TotalUsdPerBlock.IsZero() {
		e.UsdPool.Add(e.UsdPool, new(uint256.Int).Mul(e.TotalUsdPerBlock, delta))
	}
	if e.SherXPerBlock.IsZero() {
		return
	}
	minted := new(uint256.Int).Mul(e.SherXPerBlock, delta)

	// Supply grows by the sum of the round-down slices, never by the raw
	// minted amount, so every internal token sits in some accumulator.
	distributed := new(uint256.Int)
	for _, asset := range m.st.StakerList {
		p := m.st.Pools[asset]
		if p.SherXWeight == 0 {
			continue
		}
		slice := amount.WeightShare(minted, p.SherXWeight)
		p.UnallocatedSherX.Add(p.UnallocatedSherX, slice)
		distributed.Add(distributed, slice)
	}
	if e.BeneficiaryWeight > 0 {
		slice := amount.WeightShare(minted, e.BeneficiaryWeight)
		e.BeneficiaryUnallocated.Add(e.BeneficiaryUnallocated, slice)
		distributed.Add(distributed, slice)
	}
	m.st.Derivative.InternalTotalSupply.Add(m.st.Derivative.InternalTotalSupply, distributed)
}

// SherXUsdPrice returns the wad-scaled USD value of one SherX:
// usdPool·1e18/internalSupply, falling back to 1 USD while no supply exists.
func (m *EmissionManager) SherXUsdPrice() *uint256.Int {
	d := m.st.Derivative
	if d.InternalTotalSupply.IsZero() || m.st.Emission.UsdPool.IsZero() {
		return new(uint256.Int).Set(amount.Wad)
	}
	price, err := amount.MulDiv(m.st.Emission.UsdPool, amount.Wad, d.InternalTotalSupply)
	if err != nil {
		return new(uint256.Int).Set(amount.Wad)
	}
	return price
}

// RecomputeRate rebuilds TotalUsdPerBlock from every premium pool's rate and
// injected price, then rederives SherXPerBlock so emitted SherX carries the
// USD flow at the current price. Callers accrue before touching the inputs.
func (m *EmissionManager) RecomputeRate() error {
	e := m.st.Emission
	total := new(uint256.Int)
	for _, asset := range m.st.PremiumList {
		p := m.st.Pools[asset]
		if p.TotalPremiumPerBlock.IsZero() {
			continue
		}
		usd, err := amount.UsdValue(p.TotalPremiumPerBlock, p.UsdPrice)
		if err != nil {
			return errArg(ReasonZeroAmount, "usd flow for %s: %v", asset, err)
		}
		total.Add(total, usd)
	}
	e.TotalUsdPerBlock = total

	if total.IsZero() {
		e.SherXPerBlock = new(uint256.Int)
		return nil
	}
	rate, err := amount.FromUsd(total, m.SherXUsdPrice())
	if err != nil {
		return errArg(ReasonZeroAmount, "emission rate: %v", err)
	}
	e.SherXPerBlock = rate
	return nil
}

// SetWeights replaces the emission-weight table. Unlisted staking assets are
// zeroed; a nonzero weight requires the asset's staking side to be enabled.
// The listed weights plus the beneficiary weight must sum to the full total.
func (m *EmissionManager) SetWeights(assets []string, weights []uint16, beneficiaryWeight uint16, beneficiary uuid.UUID, now uint64) error {
	if len(assets) != len(weights) {
		return errArg(ReasonLengthMismatch, "%d assets vs %d weights", len(assets), len(weights))
	}
	var sum uint64
	for i, asset := range assets {
		p, err := m.st.Pool(asset)
		if err != nil {
			return err
		}
		if !p.StakingEnabled && weights[i] != 0 {
			return errState(ReasonDisabled, "asset %s stakers disabled", asset)
		}
		sum += uint64(weights[i])
	}
	sum += uint64(beneficiaryWeight)
	if sum != amount.WeightTotal {
		return errArg(ReasonSum, "weights sum to %d, want %d", sum, amount.WeightTotal)
	}

	// Accrue at the old table before rewriting it.
	m.Accrue(now)

	for _, asset := range m.st.StakerList {
		m.st.Pools[asset].SherXWeight = 0
	}
	for i, asset := range assets {
		m.st.Pools[asset].SherXWeight = weights[i]
	}
	m.st.Emission.BeneficiaryWeight = beneficiaryWeight
	if beneficiary != uuid.Nil {
		m.st.Emission.Beneficiary = beneficiary
	}
	return nil
}

// SetTokenPrice injects the wad-scaled USD price for an asset, accruing at
// the old price first and rederiving the emission rate.
func (m *EmissionManager) SetTokenPrice(asset string, price *uint256.Int, now uint64) error {
	if price == nil {
		return errArg(ReasonZeroAmount, "usd price")
	}
	p, err := m.st.Pool(asset)
	if err != nil {
		return err
	}
	m.Accrue(now)
	p.UsdPrice = new(uint256.Int).Set(price)
	return m.RecomputeRate()
}

// HarvestResult is the minted outcome of one harvest call.
type HarvestResult struct {
	// Minted is the per-asset slice credited from each pool's unallocated
	// accumulator, keyed in call order.
	Minted map[string]*uint256.Int
	// BeneficiaryMinted is the beneficiary-accumulator slice, nonzero only
	// when the harvesting account is the beneficiary.
	BeneficiaryMinted *uint256.Int
	Total             *uint256.Int
}

// Harvest mints the account's current-share fraction of each listed pool's
// unallocated SherX (every staking asset when the list is empty). The
// beneficiary additionally drains its own accumulator in full.
func (m *EmissionManager) Harvest(account uuid.UUID, assets []string, now uint64) (*HarvestResult, error) {
	if account == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "harvest account")
	}
	if len(assets) == 0 {
		assets = append(assets, m.st.StakerList...)
	} else {
		for _, asset := range assets {
			if _, err := m.st.Pool(asset); err != nil {
				return nil, err
			}
		}
	}

	m.Accrue(now)

	res := &HarvestResult{
		Minted:            make(map[string]*uint256.Int, len(assets)),
		BeneficiaryMinted: new(uint256.Int),
		Total:             new(uint256.Int),
	}
	for _, asset := range assets {
		p := m.st.Pools[asset]
		if p.UnallocatedSherX.IsZero() || p.TotalShares.IsZero() {
			continue
		}
		held := p.SharesOf(account)
		if held.IsZero() {
			continue
		}
		slice, err := amount.MulDiv(p.UnallocatedSherX, held, p.TotalShares)
		if err != nil || slice.IsZero() {
			continue
		}
		p.UnallocatedSherX.Sub(p.UnallocatedSherX, slice)
		m.st.Derivative.Mint(account, slice)
		res.Minted[asset] = slice
		res.Total.Add(res.Total, slice)
	}

	e := m.st.Emission
	if account == e.Beneficiary && !e.BeneficiaryUnallocated.IsZero() {
		res.BeneficiaryMinted.Set(e.BeneficiaryUnallocated)
		m.st.Derivative.Mint(account, res.BeneficiaryMinted)
		e.BeneficiaryUnallocated.Clear()
		res.Total.Add(res.Total, res.BeneficiaryMinted)
	}
	return res, nil
}
