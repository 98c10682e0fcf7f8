package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Registry manages the bounded, governance-curated asset set and its
// lifecycle state machine: init → (disable stakers, disable protocol) →
// unload → remove.
type Registry struct {
	st         *State
	lockTokens LockTokens
}

func NewRegistry(st *State, lockTokens LockTokens) *Registry {
	return &Registry{st: st, lockTokens: lockTokens}
}

// TokenInit creates an asset pool, or idempotently re-initializes an
// existing one, restoring it to the iteration collections without
// duplication.
func (r *Registry) TokenInit(asset string, gov, lockToken uuid.UUID, enableStaking, enablePremium bool) error {
	if asset == "" {
		return errArg(ReasonZeroAddress, "empty asset symbol")
	}
	if asset == DerivativeSymbol {
		return errGuard(ReasonUnderlying, "derivative token cannot be its own underlying")
	}

	p, exists := r.st.Pools[asset]
	if exists {
		if lockToken != uuid.Nil && p.LockToken != uuid.Nil && lockToken != p.LockToken {
			return errGuard(ReasonWrongLock, "asset %s already bound to %s", asset, p.LockToken)
		}
	}

	// Validate a fresh lock-token binding against the external capability.
	bindingLock := lockToken != uuid.Nil && (!exists || p.LockToken == uuid.Nil)
	if bindingLock && r.lockTokens != nil {
		info, ok := r.lockTokens.Info(lockToken)
		if !ok {
			return errState(ReasonWrongLock, "unknown lock token %s", lockToken)
		}
		if info.Owner != gov {
			return errGuard(ReasonOwner, "lock token %s owned by %s", lockToken, info.Owner)
		}
		if info.TotalSupply != nil && !info.TotalSupply.IsZero() {
			return errGuard(ReasonSupply, "lock token %s has pre-existing supply", lockToken)
		}
	}

	if !exists {
		p = newAssetPool(asset, gov)
		r.st.Pools[asset] = p
	}
	if gov != uuid.Nil {
		p.GovAddress = gov
	}
	if lockToken != uuid.Nil && p.LockToken == uuid.Nil {
		p.LockToken = lockToken
	}

	if enableStaking {
		if p.LockToken == uuid.Nil {
			return errState(ReasonWrongLock, "staking requires a lock token for %s", asset)
		}
		p.StakingEnabled = true
		p.StakersDisabledAt = 0
		if listIndex(r.st.StakerList, asset) < 0 {
			r.st.StakerList = append(r.st.StakerList, asset)
		}
	}
	if enablePremium {
		p.PremiumEnabled = true
		p.ProtocolDisabledAt = 0
		if listIndex(r.st.PremiumList, asset) < 0 {
			r.st.PremiumList = append(r.st.PremiumList, asset)
		}
	}
	return nil
}

// DisableStakers removes the asset from the staker iteration list.
func (r *Registry) DisableStakers(asset string, expectedIndex int, now uint64) error {
	p, err := r.st.Pool(asset)
	if err != nil {
		return err
	}
	if !p.StakingEnabled {
		return errState(ReasonNoStaking, "asset %s already disabled", asset)
	}
	if p.SherXWeight != 0 {
		return errGuard(ReasonActiveWeight, "asset %s carries emission weight %d", asset, p.SherXWeight)
	}
	if expectedIndex < 0 || expectedIndex >= len(r.st.StakerList) || r.st.StakerList[expectedIndex] != asset {
		return errState(ReasonIndex, "asset %s not at staker index %d", asset, expectedIndex)
	}
	r.st.StakerList = swapAndPop(r.st.StakerList, expectedIndex)
	p.StakingEnabled = false
	p.StakersDisabledAt = now
	return nil
}

// DisableProtocol removes the asset from the premium iteration list.
func (r *Registry) DisableProtocol(asset string, expectedIndex int, now uint64) error {
	p, err := r.st.Pool(asset)
	if err != nil {
		return err
	}
	if !p.PremiumEnabled {
		return errState(ReasonNoPremium, "asset %s already disabled", asset)
	}
	if p.ActivePremiums > 0 || !p.TotalPremiumPerBlock.IsZero() {
		return errGuard(ReasonActivePremium, "asset %s has %d accruing protocols", asset, p.ActivePremiums)
	}
	if !p.UnallocatedSherX.IsZero() {
		return errGuard(ReasonActiveSherX, "asset %s holds unallocated SherX %s", asset, p.UnallocatedSherX.Dec())
	}
	if expectedIndex < 0 || expectedIndex >= len(r.st.PremiumList) || r.st.PremiumList[expectedIndex] != asset {
		return errState(ReasonIndex, "asset %s not at premium index %d", asset, expectedIndex)
	}
	r.st.PremiumList = swapAndPop(r.st.PremiumList, expectedIndex)
	p.PremiumEnabled = false
	p.ProtocolDisabledAt = now
	return nil
}

// UnloadResult describes the sweep performed by TokenUnload.
type UnloadResult struct {
	SweptUnderlying *uint256.Int // firstMoneyOut + stakersPool, to the underlying receiver
	FirstMoneyOut   *uint256.Int
	StakersPool     *uint256.Int
	DerivativeMint  *uint256.Int // unallocated SherX credited to the derivative receiver
	Effects         []Effect
}

// Unload sweeps a fully-disabled asset's balances out. The asset's
// unallocated SherX is minted to the derivative receiver; the backing claim
// it represents shifts onto the remaining weighted staking assets.
func (r *Registry) Unload(asset string, underlyingReceiver, derivativeReceiver uuid.UUID) (*UnloadResult, error) {
	p, err := r.st.Pool(asset)
	if err != nil {
		return nil, err
	}
	if underlyingReceiver == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "underlying receiver")
	}
	if p.StakingEnabled || p.PremiumEnabled {
		return nil, errState(ReasonNotDisabled, "asset %s still enabled", asset)
	}
	if p.ActivePremiums > 0 {
		return nil, errGuard(ReasonActivePremium, "asset %s has accruing protocols", asset)
	}
	if p.StrategyID != uuid.Nil {
		return nil, errGuard(ReasonActiveStrategy, "asset %s has strategy attached", asset)
	}

	if !p.UnallocatedSherX.IsZero() {
		if derivativeReceiver == uuid.Nil {
			return nil, errArg(ReasonZeroAddress, "derivative receiver")
		}
		// The minted claim must have somewhere to draw backing from.
		remaining := false
		for _, a := range r.st.StakerList {
			if a != asset && r.st.Pools[a].SherXWeight != 0 {
				remaining = true
				break
			}
		}
		if !remaining {
			return nil, errGuard(ReasonEmptySwap, "no weighted asset remains to back %s's unallocated SherX", asset)
		}
	}

	res := &UnloadResult{
		FirstMoneyOut:  new(uint256.Int).Set(p.FirstMoneyOut),
		StakersPool:    new(uint256.Int).Set(p.StakersPool),
		DerivativeMint: new(uint256.Int).Set(p.UnallocatedSherX),
	}
	res.SweptUnderlying = new(uint256.Int).Add(res.FirstMoneyOut, res.StakersPool)

	if !res.DerivativeMint.IsZero() {
		r.st.Derivative.Mint(derivativeReceiver, res.DerivativeMint)
		p.UnallocatedSherX.Clear()
	}

	if !res.SweptUnderlying.IsZero() {
		res.Effects = append(res.Effects, Effect{
			Kind:    EffectTransferOut,
			Asset:   asset,
			Account: underlyingReceiver,
			Amount:  new(uint256.Int).Set(res.SweptUnderlying),
		})
	}

	p.FirstMoneyOut.Clear()
	p.StakersPool.Clear()
	p.Unactivated.Clear()
	p.StrategyDeployed.Clear()
	p.TotalShares.Clear()
	p.Shares = make(map[uuid.UUID]*uint256.Int)
	p.AccountList = nil
	p.UnstakeEntries = make(map[uuid.UUID][]*UnstakeEntry)
	p.FirstActive = make(map[uuid.UUID]int)
	return res, nil
}

// Remove destroys an emptied pool. Terminal.
func (r *Registry) Remove(asset string) error {
	p, err := r.st.Pool(asset)
	if err != nil {
		return err
	}
	if p.StakingEnabled || p.PremiumEnabled {
		return errState(ReasonNotDisabled, "asset %s still enabled", asset)
	}
	if !p.StakersPool.IsZero() || !p.FirstMoneyOut.IsZero() || !p.Unactivated.IsZero() ||
		!p.TotalShares.IsZero() || !p.UnallocatedSherX.IsZero() {
		return errGuard(ReasonNotEmpty, "asset %s still holds balances", asset)
	}
	if len(p.Protocols) > 0 {
		return errGuard(ReasonNotEmpty, "asset %s still has %d protocols", asset, len(p.Protocols))
	}
	delete(r.st.Pools, asset)
	return nil
}
