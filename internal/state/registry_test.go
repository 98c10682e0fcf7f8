package state_test

import (
	"testing"

	"SherPool/internal/state"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// fakeLockTokens is an in-memory lock-token capability.
type fakeLockTokens map[uuid.UUID]state.LockTokenInfo

func (f fakeLockTokens) Info(id uuid.UUID) (state.LockTokenInfo, bool) {
	info, ok := f[id]
	return info, ok
}

func TestTokenInit_CreatesPoolAndLists(t *testing.T) {
	st := state.New()
	reg := state.NewRegistry(st, nil)

	if err := reg.TokenInit("DAI", govID, uuid.New(), true, true); err != nil {
		t.Fatalf("TokenInit failed: %v", err)
	}

	p := mustPool(t, st, "DAI")
	if !p.StakingEnabled || !p.PremiumEnabled {
		t.Error("pool should be enabled for staking and premium")
	}
	if len(st.StakerList) != 1 || st.StakerList[0] != "DAI" {
		t.Errorf("StakerList = %v, want [DAI]", st.StakerList)
	}
	if len(st.PremiumList) != 1 || st.PremiumList[0] != "DAI" {
		t.Errorf("PremiumList = %v, want [DAI]", st.PremiumList)
	}
}

func TestTokenInit_Idempotent(t *testing.T) {
	st := state.New()
	reg := state.NewRegistry(st, nil)
	lock := uuid.New()

	if err := reg.TokenInit("DAI", govID, lock, true, true); err != nil {
		t.Fatalf("first TokenInit failed: %v", err)
	}
	if err := reg.TokenInit("DAI", govID, lock, true, true); err != nil {
		t.Fatalf("second TokenInit failed: %v", err)
	}
	if len(st.StakerList) != 1 || len(st.PremiumList) != 1 {
		t.Errorf("re-init duplicated lists: %v / %v", st.StakerList, st.PremiumList)
	}
}

func TestTokenInit_ReEnableClearsDisableMarkers(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)

	if err := reg.DisableStakers("DAI", 0, 5); err != nil {
		t.Fatalf("DisableStakers failed: %v", err)
	}
	if err := reg.DisableProtocol("DAI", 0, 6); err != nil {
		t.Fatalf("DisableProtocol failed: %v", err)
	}

	if err := reg.TokenInit("DAI", govID, uuid.Nil, true, true); err != nil {
		t.Fatalf("re-init failed: %v", err)
	}

	p := mustPool(t, st, "DAI")
	if !p.StakingEnabled || p.StakersDisabledAt != 0 {
		t.Errorf("staking re-enable: enabled=%v disabledAt=%d", p.StakingEnabled, p.StakersDisabledAt)
	}
	if !p.PremiumEnabled || p.ProtocolDisabledAt != 0 {
		t.Errorf("premium re-enable: enabled=%v disabledAt=%d", p.PremiumEnabled, p.ProtocolDisabledAt)
	}
	if len(st.StakerList) != 1 || len(st.PremiumList) != 1 {
		t.Errorf("re-init lists: %v / %v", st.StakerList, st.PremiumList)
	}
}

func TestTokenInit_ArgumentGuards(t *testing.T) {
	st := state.New()
	reg := state.NewRegistry(st, nil)

	err := reg.TokenInit("", govID, uuid.New(), false, false)
	wantReason(t, err, state.ReasonZeroAddress)

	err = reg.TokenInit(state.DerivativeSymbol, govID, uuid.New(), false, false)
	wantReason(t, err, state.ReasonUnderlying)

	// Staking without a lock-token binding.
	err = reg.TokenInit("DAI", govID, uuid.Nil, true, false)
	wantReason(t, err, state.ReasonWrongLock)
}

func TestTokenInit_RebindDifferentLock_Rejected(t *testing.T) {
	st := state.New()
	reg := state.NewRegistry(st, nil)

	if err := reg.TokenInit("DAI", govID, uuid.New(), true, false); err != nil {
		t.Fatalf("TokenInit failed: %v", err)
	}
	err := reg.TokenInit("DAI", govID, uuid.New(), true, false)
	wantReason(t, err, state.ReasonWrongLock)
}

func TestTokenInit_LockTokenCapabilityChecks(t *testing.T) {
	lockOK := uuid.New()
	lockOwned := uuid.New()
	lockMinted := uuid.New()
	locks := fakeLockTokens{
		lockOK:     {Owner: govID, TotalSupply: new(uint256.Int)},
		lockOwned:  {Owner: uuid.New(), TotalSupply: new(uint256.Int)},
		lockMinted: {Owner: govID, TotalSupply: uint256.NewInt(5)},
	}

	st := state.New()
	reg := state.NewRegistry(st, locks)

	err := reg.TokenInit("A", govID, uuid.New(), true, false)
	wantReason(t, err, state.ReasonWrongLock)

	err = reg.TokenInit("B", govID, lockOwned, true, false)
	wantReason(t, err, state.ReasonOwner)

	err = reg.TokenInit("C", govID, lockMinted, true, false)
	wantReason(t, err, state.ReasonSupply)

	if err := reg.TokenInit("D", govID, lockOK, true, false); err != nil {
		t.Fatalf("valid binding failed: %v", err)
	}
}

func TestDisableStakers_Guards(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)

	mustPool(t, st, "DAI").SherXWeight = 100
	err := reg.DisableStakers("DAI", 0, 5)
	wantReason(t, err, state.ReasonActiveWeight)

	mustPool(t, st, "DAI").SherXWeight = 0
	err = reg.DisableStakers("DAI", 1, 5)
	wantReason(t, err, state.ReasonIndex)

	if err := reg.DisableStakers("DAI", 0, 5); err != nil {
		t.Fatalf("DisableStakers failed: %v", err)
	}
	if got := mustPool(t, st, "DAI").StakersDisabledAt; got != 5 {
		t.Errorf("StakersDisabledAt = %d, want 5", got)
	}
	if len(st.StakerList) != 0 {
		t.Errorf("StakerList = %v, want empty", st.StakerList)
	}

	err = reg.DisableStakers("DAI", 0, 6)
	wantReason(t, err, state.ReasonNoStaking)
}

func TestDisableProtocol_Guards(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)
	p := mustPool(t, st, "DAI")

	p.ActivePremiums = 1
	err := reg.DisableProtocol("DAI", 0, 5)
	wantReason(t, err, state.ReasonActivePremium)
	p.ActivePremiums = 0

	p.UnallocatedSherX = uint256.NewInt(1)
	err = reg.DisableProtocol("DAI", 0, 5)
	wantReason(t, err, state.ReasonActiveSherX)
	p.UnallocatedSherX = new(uint256.Int)

	if err := reg.DisableProtocol("DAI", 0, 5); err != nil {
		t.Fatalf("DisableProtocol failed: %v", err)
	}
	if len(st.PremiumList) != 0 {
		t.Errorf("PremiumList = %v, want empty", st.PremiumList)
	}

	err = reg.DisableProtocol("DAI", 0, 6)
	wantReason(t, err, state.ReasonNoPremium)
}

// disableAsset turns off both sides of a pool so it is unload-eligible.
func disableAsset(t *testing.T, st *state.State, asset string) {
	t.Helper()
	reg := state.NewRegistry(st, nil)
	if err := reg.DisableStakers(asset, listPos(st.StakerList, asset), 1); err != nil {
		t.Fatalf("DisableStakers(%s) failed: %v", asset, err)
	}
	if err := reg.DisableProtocol(asset, listPos(st.PremiumList, asset), 1); err != nil {
		t.Fatalf("DisableProtocol(%s) failed: %v", asset, err)
	}
}

func listPos(list []string, asset string) int {
	for i, a := range list {
		if a == asset {
			return i
		}
	}
	return -1
}

func TestUnload_RequiresFullyDisabled(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)

	_, err := reg.Unload("DAI", stakerA, uuid.Nil)
	wantReason(t, err, state.ReasonNotDisabled)
}

func TestUnload_StrategyStillAttached(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)
	gm := state.NewGovManager(st)

	if err := gm.SetStrategy("DAI", uuid.New()); err != nil {
		t.Fatalf("SetStrategy failed: %v", err)
	}
	disableAsset(t, st, "DAI")

	_, err := reg.Unload("DAI", stakerA, uuid.Nil)
	wantReason(t, err, state.ReasonActiveStrategy)
}

func TestUnload_SweepsBalancesAndMintsUnallocated(t *testing.T) {
	st := newPoolState(t, "DAI", "USDC")
	reg := state.NewRegistry(st, nil)
	em := state.NewEmissionManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	p := mustPool(t, st, "DAI")
	p.FirstMoneyOut = uint256.NewInt(50)
	p.UnallocatedSherX = uint256.NewInt(200)

	// USDC keeps the full weight so the minted claim has backing left.
	if err := em.SetWeights([]string{"USDC"}, []uint16{65535}, 0, uuid.Nil, 0); err != nil {
		t.Fatalf("SetWeights failed: %v", err)
	}
	disableAsset(t, st, "DAI")

	res, err := reg.Unload("DAI", stakerA, stakerB)
	if err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	wantEq(t, res.SweptUnderlying, 1050, "SweptUnderlying")
	wantEq(t, res.DerivativeMint, 200, "DerivativeMint")
	wantEq(t, st.Derivative.BalanceOf(stakerB), 200, "derivative receiver balance")

	wantEq(t, p.StakersPool, 0, "StakersPool")
	wantEq(t, p.FirstMoneyOut, 0, "FirstMoneyOut")
	wantEq(t, p.Unactivated, 0, "Unactivated")
	wantEq(t, p.TotalShares, 0, "TotalShares")
	wantEq(t, p.UnallocatedSherX, 0, "UnallocatedSherX")
	if len(p.Shares) != 0 || len(p.UnstakeEntries) != 0 {
		t.Error("staker positions should be cleared")
	}
}

func TestUnload_UnallocatedWithoutRemainingBacking_Rejected(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)

	p := mustPool(t, st, "DAI")
	p.UnallocatedSherX = uint256.NewInt(200)
	disableAsset(t, st, "DAI")

	_, err := reg.Unload("DAI", stakerA, stakerB)
	wantReason(t, err, state.ReasonEmptySwap)

	// And a nil derivative receiver is rejected before the backing check.
	_, err = reg.Unload("DAI", stakerA, uuid.Nil)
	wantReason(t, err, state.ReasonZeroAddress)
}

func TestRemove_GuardsThenDeletes(t *testing.T) {
	st := newPoolState(t, "DAI")
	reg := state.NewRegistry(st, nil)

	mustStake(t, st, "DAI", stakerA, 10)
	disableAsset(t, st, "DAI")

	err := reg.Remove("DAI")
	wantReason(t, err, state.ReasonNotEmpty)

	if _, err := reg.Unload("DAI", stakerA, uuid.Nil); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	if err := reg.Remove("DAI"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := st.Pools["DAI"]; ok {
		t.Error("pool should be deleted")
	}
}
