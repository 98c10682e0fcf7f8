package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
)

// UnstakeEntry is one cooldown slot. Consumed (shares zeroed) by exactly one
// of unstake, cancel, or window expiry.
type UnstakeEntry struct {
	BlockInitiated uint64
	Shares         *uint256.Int
}

// Active reports whether the entry still holds locked shares.
func (e *UnstakeEntry) Active() bool {
	return e.Shares != nil && !e.Shares.IsZero()
}

// Coverage is one protocol's position on one asset pool.
type Coverage struct {
	ProtocolID      uuid.UUID
	Agent           uuid.UUID
	Manager         uuid.UUID
	PremiumPerBlock *uint256.Int
	Balance         *uint256.Int // prepaid premium deposit
	// UnpaidDebt accumulates debt that settled short of the prepaid
	// balance. A protocol carrying it can only be cleaned with force.
	UnpaidDebt *uint256.Int
}

// AssetPool is the aggregate state of one supported asset.
//
// Balance invariant: StakersPool == Unactivated + StrategyDeployed, and
// FirstMoneyOut sits outside StakersPool entirely.
// TotalShares == 0 implies StakersPool == 0.
type AssetPool struct {
	Asset      string
	GovAddress uuid.UUID
	LockToken  uuid.UUID // external share-token binding, zero when absent

	StakingEnabled bool
	PremiumEnabled bool

	TotalShares      *uint256.Int
	StakersPool      *uint256.Int
	FirstMoneyOut    *uint256.Int
	Unactivated      *uint256.Int
	StrategyDeployed *uint256.Int

	StrategyID uuid.UUID // zero when detached

	CooldownFeeBps uint32

	// Staker positions and cooldown entries. AccountList keeps iteration
	// deterministic for digests and snapshots.
	Shares      map[uuid.UUID]*uint256.Int
	AccountList []uuid.UUID

	UnstakeEntries map[uuid.UUID][]*UnstakeEntry
	// FirstActive is the strictly-increasing pointer past consumed entries.
	FirstActive map[uuid.UUID]int

	// Premium coverage. ProtocolList is the swap-and-pop index arena callers
	// address by expected index.
	Protocols            map[uuid.UUID]*Coverage
	ProtocolList         []uuid.UUID
	TotalPremiumPerBlock *uint256.Int
	PremiumLastPaidBlock uint64
	// ActivePremiums counts protocols with a nonzero rate — the "accruing
	// set" that blocks disable/removal until cleaned.
	ActivePremiums int

	// SherX emission
	UsdPrice         *uint256.Int // wad-scaled, injected
	SherXWeight      uint16
	UnallocatedSherX *uint256.Int

	// Disable bookkeeping. Eligibility checks key on the enabled flags;
	// these record the block of the last disable and are cleared when
	// tokenInit re-enables the side.
	StakersDisabledAt  uint64
	ProtocolDisabledAt uint64
}

func newAssetPool(asset string, gov uuid.UUID) *AssetPool {
	return &AssetPool{
		Asset:                asset,
		GovAddress:           gov,
		TotalShares:          new(uint256.Int),
		StakersPool:          new(uint256.Int),
		FirstMoneyOut:        new(uint256.Int),
		Unactivated:          new(uint256.Int),
		StrategyDeployed:     new(uint256.Int),
		Shares:               make(map[uuid.UUID]*uint256.Int),
		UnstakeEntries:       make(map[uuid.UUID][]*UnstakeEntry),
		FirstActive:          make(map[uuid.UUID]int),
		Protocols:            make(map[uuid.UUID]*Coverage),
		TotalPremiumPerBlock: new(uint256.Int),
		UsdPrice:             new(uint256.Int),
		UnallocatedSherX:     new(uint256.Int),
	}
}

// LockToToken converts shares to underlying at the current exchange rate.
// Undefined while no shares exist.
func (p *AssetPool) LockToToken(shares *uint256.Int) (*uint256.Int, error) {
	if p.TotalShares.IsZero() {
		return nil, errState(ReasonNoData, "no shares outstanding for %s", p.Asset)
	}
	out, err := amount.MulDiv(shares, p.StakersPool, p.TotalShares)
	if err != nil {
		return nil, errArg(ReasonZeroAmount, "rate conversion: %v", err)
	}
	return out, nil
}

// TokenToLock converts underlying to shares at the current exchange rate.
func (p *AssetPool) TokenToLock(tokens *uint256.Int) (*uint256.Int, error) {
	if p.TotalShares.IsZero() || p.StakersPool.IsZero() {
		return nil, errState(ReasonNoData, "no exchange rate for %s", p.Asset)
	}
	out, err := amount.MulDiv(tokens, p.TotalShares, p.StakersPool)
	if err != nil {
		return nil, errArg(ReasonZeroAmount, "rate conversion: %v", err)
	}
	return out, nil
}

// SharesOf returns the staker's active position (zero when absent).
func (p *AssetPool) SharesOf(account uuid.UUID) *uint256.Int {
	if s, ok := p.Shares[account]; ok {
		return new(uint256.Int).Set(s)
	}
	return new(uint256.Int)
}

func (p *AssetPool) addShares(account uuid.UUID, delta *uint256.Int) {
	s, ok := p.Shares[account]
	if !ok {
		s = new(uint256.Int)
		p.Shares[account] = s
		p.AccountList = append(p.AccountList, account)
	}
	s.Add(s, delta)
}

func (p *AssetPool) subShares(account uuid.UUID, delta *uint256.Int) {
	if s, ok := p.Shares[account]; ok {
		s.Sub(s, delta)
	}
}

// AccruedDebt returns Σ premiumPerBlock · (now − lastPaid), the outstanding
// unsettled premium debt on the pool.
func (p *AssetPool) AccruedDebt(now uint64) *uint256.Int {
	if now <= p.PremiumLastPaidBlock {
		return new(uint256.Int)
	}
	delta := uint256.NewInt(now - p.PremiumLastPaidBlock)
	return new(uint256.Int).Mul(p.TotalPremiumPerBlock, delta)
}

// CheckBalanceInvariant verifies the pool's internal balance identity.
func (p *AssetPool) CheckBalanceInvariant() error {
	sum := new(uint256.Int).Add(p.Unactivated, p.StrategyDeployed)
	if !sum.Eq(p.StakersPool) {
		return errGuard(ReasonInsufficient,
			"%s: stakers pool %s != unactivated %s + deployed %s",
			p.Asset, p.StakersPool.Dec(), p.Unactivated.Dec(), p.StrategyDeployed.Dec())
	}
	if p.TotalShares.IsZero() && !p.StakersPool.IsZero() {
		return errGuard(ReasonInsufficient,
			"%s: zero shares with nonzero stakers pool %s", p.Asset, p.StakersPool.Dec())
	}
	return nil
}
