package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
)

// StakeManager implements the staking side of a pool: share mint/burn at the
// current exchange rate and the cooldown → unstake-window state machine.
// All methods validate every precondition before the first mutation.
type StakeManager struct {
	st *State
}

func NewStakeManager(st *State) *StakeManager {
	return &StakeManager{st: st}
}

// StakeResult reports the share mint for journaling and lock-token effects.
type StakeResult struct {
	SharesMinted *uint256.Int
	Effects      []Effect
}

// Stake deposits underlying and mints shares to receiver at the current
// exchange rate (1:1 while the pool is empty).
func (m *StakeManager) Stake(asset string, staker, receiver uuid.UUID, amt *uint256.Int) (*StakeResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, errArg(ReasonZeroAmount, "stake amount")
	}
	if receiver == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "stake receiver")
	}
	p, err := m.st.StakingPool(asset)
	if err != nil {
		return nil, err
	}

	var shares *uint256.Int
	if p.TotalShares.IsZero() || p.StakersPool.IsZero() {
		shares = new(uint256.Int).Set(amt)
	} else {
		shares, err = amount.MulDiv(amt, p.TotalShares, p.StakersPool)
		if err != nil {
			return nil, errArg(ReasonZeroAmount, "share mint: %v", err)
		}
		if shares.IsZero() {
			// Deposit too small to mint a single share at this rate.
			return nil, errArg(ReasonZeroAmount, "stake of %s mints zero shares", amt.Dec())
		}
	}

	p.StakersPool.Add(p.StakersPool, amt)
	p.Unactivated.Add(p.Unactivated, amt)
	p.TotalShares.Add(p.TotalShares, shares)
	p.addShares(receiver, shares)

	return &StakeResult{
		SharesMinted: shares,
		Effects: []Effect{
			{Kind: EffectTransferIn, Asset: asset, Account: staker, Amount: new(uint256.Int).Set(amt)},
			{Kind: EffectLockMint, Asset: asset, Account: receiver, Amount: new(uint256.Int).Set(shares)},
		},
	}, nil
}

// CooldownResult reports the fee split for journaling.
type CooldownResult struct {
	EntryID       int
	LockedShares  *uint256.Int
	FeeShares     *uint256.Int
	FeeUnderlying *uint256.Int // moved stakers pool → first money out
	Effects       []Effect
}

// ActivateCooldown burns shareAmount from the caller, extracts the
// basis-point cooldown fee into first-money-out, and opens an unstake entry
// for the remainder. The fee shares leave total supply together with their
// underlying, so the exchange rate for remaining stakers is unchanged.
func (m *StakeManager) ActivateCooldown(asset string, staker uuid.UUID, shareAmount *uint256.Int, now uint64) (*CooldownResult, error) {
	if shareAmount == nil || shareAmount.IsZero() {
		return nil, errArg(ReasonZeroAmount, "cooldown share amount")
	}
	p, err := m.st.StakingPool(asset)
	if err != nil {
		return nil, err
	}
	if p.SharesOf(staker).Lt(shareAmount) {
		return nil, errState(ReasonInsufficient, "staker %s holds fewer than %s shares", staker, shareAmount.Dec())
	}

	feeShares := amount.BpsShare(shareAmount, p.CooldownFeeBps)
	feeUnderlying := new(uint256.Int)
	if !feeShares.IsZero() {
		feeUnderlying, err = p.LockToToken(feeShares)
		if err != nil {
			return nil, err
		}
		if p.Unactivated.Lt(feeUnderlying) {
			return nil, errState(ReasonInsufficientIdle,
				"fee %s exceeds idle balance %s", feeUnderlying.Dec(), p.Unactivated.Dec())
		}
	}
	locked := new(uint256.Int).Sub(shareAmount, feeShares)

	p.subShares(staker, shareAmount)
	p.TotalShares.Sub(p.TotalShares, feeShares)
	p.StakersPool.Sub(p.StakersPool, feeUnderlying)
	p.Unactivated.Sub(p.Unactivated, feeUnderlying)
	p.FirstMoneyOut.Add(p.FirstMoneyOut, feeUnderlying)

	entries := p.UnstakeEntries[staker]
	entries = append(entries, &UnstakeEntry{BlockInitiated: now, Shares: locked})
	p.UnstakeEntries[staker] = entries

	return &CooldownResult{
		EntryID:       len(entries) - 1,
		LockedShares:  locked,
		FeeShares:     feeShares,
		FeeUnderlying: feeUnderlying,
	}, nil
}

func (m *StakeManager) entry(p *AssetPool, account uuid.UUID, entryID int) (*UnstakeEntry, error) {
	entries := p.UnstakeEntries[account]
	if entryID < 0 || entryID >= len(entries) || !entries[entryID].Active() {
		return nil, errState(ReasonWithdrawNotActive, "entry %d for %s", entryID, account)
	}
	return entries[entryID], nil
}

// advanceFirstActive moves the strictly-increasing pointer past consumed
// entries.
func (m *StakeManager) advanceFirstActive(p *AssetPool, account uuid.UUID) {
	entries := p.UnstakeEntries[account]
	i := p.FirstActive[account]
	for i < len(entries) && !entries[i].Active() {
		i++
	}
	p.FirstActive[account] = i
}

// CancelCooldown restores a still-cooling entry's shares to the caller.
func (m *StakeManager) CancelCooldown(asset string, staker uuid.UUID, entryID int, now uint64) (*uint256.Int, error) {
	p, err := m.st.StakingPool(asset)
	if err != nil {
		return nil, err
	}
	e, err := m.entry(p, staker, entryID)
	if err != nil {
		return nil, err
	}
	if now >= e.BlockInitiated+m.st.CooldownBlocks {
		return nil, errState(ReasonCooldownExpired, "entry %d cooled at block %d", entryID, e.BlockInitiated+m.st.CooldownBlocks)
	}

	restored := new(uint256.Int).Set(e.Shares)
	p.addShares(staker, restored)
	e.Shares.Clear()
	m.advanceFirstActive(p, staker)
	return restored, nil
}

// UnstakeResult reports the underlying paid out.
type UnstakeResult struct {
	SharesBurned *uint256.Int
	Underlying   *uint256.Int
	Effects      []Effect
}

// Unstake converts a matured entry's locked shares to underlying at the
// CURRENT exchange rate and pays the receiver. Only valid inside
// [cooldown, cooldown+window).
func (m *StakeManager) Unstake(asset string, staker uuid.UUID, entryID int, receiver uuid.UUID, now uint64) (*UnstakeResult, error) {
	if receiver == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "unstake receiver")
	}
	p, err := m.st.StakingPool(asset)
	if err != nil {
		return nil, err
	}
	e, err := m.entry(p, staker, entryID)
	if err != nil {
		return nil, err
	}
	opens := e.BlockInitiated + m.st.CooldownBlocks
	closes := opens + m.st.UnstakeWindowBlocks
	if now < opens {
		return nil, errState(ReasonCooldownActive, "entry %d opens at block %d", entryID, opens)
	}
	if now >= closes {
		return nil, errState(ReasonWindowExpired, "entry %d closed at block %d", entryID, closes)
	}

	underlying, err := p.LockToToken(e.Shares)
	if err != nil {
		return nil, err
	}
	if p.Unactivated.Lt(underlying) {
		return nil, errState(ReasonInsufficientIdle,
			"payout %s exceeds idle balance %s; sweep the strategy first", underlying.Dec(), p.Unactivated.Dec())
	}

	burned := new(uint256.Int).Set(e.Shares)
	p.TotalShares.Sub(p.TotalShares, burned)
	p.StakersPool.Sub(p.StakersPool, underlying)
	p.Unactivated.Sub(p.Unactivated, underlying)
	e.Shares.Clear()
	m.advanceFirstActive(p, staker)

	return &UnstakeResult{
		SharesBurned: burned,
		Underlying:   underlying,
		Effects: []Effect{
			{Kind: EffectLockBurn, Asset: asset, Account: staker, Amount: new(uint256.Int).Set(burned)},
			{Kind: EffectTransferOut, Asset: asset, Account: receiver, Amount: new(uint256.Int).Set(underlying)},
		},
	}, nil
}

// WindowExpiry returns an expired entry's shares to its original owner.
// Permissionless: anyone may call it once the window has passed.
func (m *StakeManager) WindowExpiry(asset string, account uuid.UUID, entryID int, now uint64) (*uint256.Int, error) {
	p, err := m.st.StakingPool(asset)
	if err != nil {
		return nil, err
	}
	e, err := m.entry(p, account, entryID)
	if err != nil {
		return nil, err
	}
	closes := e.BlockInitiated + m.st.CooldownBlocks + m.st.UnstakeWindowBlocks
	if now < closes {
		return nil, errState(ReasonWindowNotExpired, "entry %d open until block %d", entryID, closes)
	}

	restored := new(uint256.Int).Set(e.Shares)
	p.addShares(account, restored)
	e.Shares.Clear()
	m.advanceFirstActive(p, account)
	return restored, nil
}
