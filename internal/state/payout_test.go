package state_test

import (
	"testing"

	"SherPool/internal/state"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

func newPayoutManager(st *state.State) *state.PayoutManager {
	return state.NewPayoutManager(st, state.NewEmissionManager(st))
}

func one(v uint64) []*uint256.Int {
	return []*uint256.Int{uint256.NewInt(v)}
}

func TestPayout_DirectLegs(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	mustPool(t, st, "DAI").FirstMoneyOut = uint256.NewInt(100)

	res, err := pay.Execute(stakerB, []string{"DAI"}, one(60), one(200), one(0), "", 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(res.Legs) != 1 {
		t.Fatalf("expected 1 leg, got %d", len(res.Legs))
	}
	wantEq(t, res.Legs[0].Total(), 260, "leg total")

	p := mustPool(t, st, "DAI")
	wantEq(t, p.FirstMoneyOut, 40, "FirstMoneyOut")
	wantEq(t, p.StakersPool, 800, "StakersPool")
	wantEq(t, p.Unactivated, 800, "Unactivated")
	// Shares stay put; the value each backs just drops.
	wantEq(t, p.TotalShares, 1000, "TotalShares")
}

func TestPayout_ArgumentValidation(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)
	mustStake(t, st, "DAI", stakerA, 1000)

	_, err := pay.Execute(uuid.Nil, []string{"DAI"}, one(0), one(1), one(0), "", 0)
	wantReason(t, err, state.ReasonZeroAddress)

	_, err = pay.Execute(stakerB, []string{"DAI"}, nil, one(1), one(0), "", 0)
	wantReason(t, err, state.ReasonLengthMismatch)

	_, err = pay.Execute(stakerB, []string{"DAI", "DAI"},
		[]*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)},
		[]*uint256.Int{uint256.NewInt(1), uint256.NewInt(1)},
		[]*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)}, "", 0)
	wantReason(t, err, state.ReasonIndex)
}

func TestPayout_OverdrawnLegs(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)
	mustStake(t, st, "DAI", stakerA, 1000)
	mustPool(t, st, "DAI").FirstMoneyOut = uint256.NewInt(50)

	_, err := pay.Execute(stakerB, []string{"DAI"}, one(51), one(0), one(0), "", 0)
	wantReason(t, err, state.ReasonInsufficient)

	_, err = pay.Execute(stakerB, []string{"DAI"}, one(0), one(1001), one(0), "", 0)
	wantReason(t, err, state.ReasonInsufficient)

	_, err = pay.Execute(stakerB, []string{"DAI"}, one(0), one(0), one(1), "", 0)
	wantReason(t, err, state.ReasonUnallocFee)
}

func TestPayout_UnallocatedLeg_SpreadsByUsdBacking(t *testing.T) {
	st := newPoolState(t, "DAI", "USDC")
	pay := newPayoutManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	mustStake(t, st, "USDC", stakerA, 1000)
	mustPool(t, st, "DAI").UsdPrice = wad(1)
	mustPool(t, st, "USDC").UsdPrice = wad(2)

	// 300 SherX backed 1:1 by the USD pool, so one SherX is worth 1 USD.
	mustPool(t, st, "DAI").UnallocatedSherX = uint256.NewInt(300)
	st.Derivative.InternalTotalSupply = uint256.NewInt(300)
	st.Emission.UsdPool = uint256.NewInt(300)

	res, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(0), one(300), "", 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	wantEq(t, res.UnallocatedSherX, 300, "UnallocatedSherX burned")
	wantEq(t, res.UsdValue, 300, "UsdValue")
	if len(res.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(res.Legs))
	}

	// USD backing: DAI $1000, USDC $2000. The 300 USD draw splits 100/200,
	// which at the injected prices is 100 DAI and 100 USDC.
	legs := map[string]*state.PayoutLeg{}
	for _, leg := range res.Legs {
		legs[leg.Asset] = leg
	}
	wantEq(t, legs["DAI"].Redistributed, 100, "DAI Redistributed")
	wantEq(t, legs["USDC"].Redistributed, 100, "USDC Redistributed")

	wantEq(t, mustPool(t, st, "DAI").StakersPool, 900, "DAI StakersPool")
	wantEq(t, mustPool(t, st, "USDC").StakersPool, 900, "USDC StakersPool")
	wantEq(t, mustPool(t, st, "DAI").UnallocatedSherX, 0, "DAI UnallocatedSherX")
	wantEq(t, st.Derivative.InternalTotalSupply, 0, "InternalTotalSupply")
	wantEq(t, st.Emission.UsdPool, 0, "UsdPool")
}

func TestPayout_UnallocatedLeg_ExcludedAsset(t *testing.T) {
	st := newPoolState(t, "DAI", "USDC")
	pay := newPayoutManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	mustStake(t, st, "USDC", stakerA, 1000)
	mustPool(t, st, "DAI").UsdPrice = wad(1)
	mustPool(t, st, "USDC").UsdPrice = wad(1)

	mustPool(t, st, "DAI").UnallocatedSherX = uint256.NewInt(100)
	st.Derivative.InternalTotalSupply = uint256.NewInt(100)
	st.Emission.UsdPool = uint256.NewInt(100)

	_, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(0), one(100), "USDC", 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// All 100 USD lands on DAI; USDC is untouched.
	wantEq(t, mustPool(t, st, "DAI").StakersPool, 900, "DAI StakersPool")
	wantEq(t, mustPool(t, st, "USDC").StakersPool, 1000, "USDC StakersPool")
}

func TestPayout_UnallocatedLeg_ReEnabledAssetEligible(t *testing.T) {
	st := newPoolState(t, "DAI", "USDC")
	pay := newPayoutManager(st)
	reg := state.NewRegistry(st, nil)

	// DAI cycles through a disable and back before _any_ staking happens.
	daiAt := 0
	if st.StakerList[0] != "DAI" {
		daiAt = 1
	}
	if err := reg.DisableStakers("DAI", daiAt, 5); err != nil {
		t.Fatalf("DisableStakers failed: %v", err)
	}
	if err := reg.TokenInit("DAI", govID, uuid.Nil, true, true); err != nil {
		t.Fatalf("re-init failed: %v", err)
	}

	mustStake(t, st, "DAI", stakerA, 1000)
	mustPool(t, st, "DAI").UsdPrice = wad(1)
	mustPool(t, st, "DAI").UnallocatedSherX = uint256.NewInt(100)
	st.Derivative.InternalTotalSupply = uint256.NewInt(100)
	st.Emission.UsdPool = uint256.NewInt(100)

	// DAI is the only priced backing. A stale disable would starve the leg
	// into EMPTY_SWAP; the re-enabled pool must absorb it.
	_, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(0), one(100), "", 10)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	wantEq(t, mustPool(t, st, "DAI").StakersPool, 900, "DAI StakersPool")
}

func TestPayout_UnallocatedLeg_NoBacking_EmptySwap(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)

	// Staked but unpriced: no pool qualifies as a redistribution target.
	mustStake(t, st, "DAI", stakerA, 1000)
	mustPool(t, st, "DAI").UnallocatedSherX = uint256.NewInt(100)
	st.Derivative.InternalTotalSupply = uint256.NewInt(100)
	st.Emission.UsdPool = uint256.NewInt(100)

	_, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(0), one(100), "", 0)
	wantReason(t, err, state.ReasonEmptySwap)
}

func TestPayout_PullsShortfallFromStrategy(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)
	gm := state.NewGovManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	if err := gm.SetStrategy("DAI", uuid.New()); err != nil {
		t.Fatalf("SetStrategy failed: %v", err)
	}
	if _, _, err := gm.StrategyDeposit("DAI", uint256.NewInt(800)); err != nil {
		t.Fatalf("StrategyDeposit failed: %v", err)
	}

	res, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(500), one(0), "", 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	wantEq(t, res.Legs[0].StrategyWithdrawn, 300, "StrategyWithdrawn")

	p := mustPool(t, st, "DAI")
	wantEq(t, p.StrategyDeployed, 500, "StrategyDeployed")
	wantEq(t, p.Unactivated, 0, "Unactivated")
	wantEq(t, p.StakersPool, 500, "StakersPool")
}

func TestPayout_InsufficientIdle_WithoutStrategy(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	p := mustPool(t, st, "DAI")
	// Simulate deployed funds with no strategy to claw them back from.
	p.Unactivated = uint256.NewInt(200)
	p.StrategyDeployed = uint256.NewInt(800)

	_, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(500), one(0), "", 0)
	wantReason(t, err, state.ReasonInsufficientIdle)
}

func TestPayout_FailedPlanLeavesStateUntouched(t *testing.T) {
	st := newPoolState(t, "DAI", "USDC")
	pay := newPayoutManager(st)

	mustStake(t, st, "DAI", stakerA, 1000)
	mustStake(t, st, "USDC", stakerA, 100)

	// The USDC leg overdraws, so the whole payout must be rejected with the
	// DAI pool untouched.
	_, err := pay.Execute(stakerB, []string{"DAI", "USDC"},
		[]*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)},
		[]*uint256.Int{uint256.NewInt(500), uint256.NewInt(101)},
		[]*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)}, "", 0)
	wantReason(t, err, state.ReasonInsufficient)

	wantEq(t, mustPool(t, st, "DAI").StakersPool, 1000, "DAI StakersPool")
	wantEq(t, mustPool(t, st, "USDC").StakersPool, 100, "USDC StakersPool")
}

func TestPayout_MarksSettlementBlock(t *testing.T) {
	st := newPoolState(t, "DAI")
	pay := newPayoutManager(st)
	mustStake(t, st, "DAI", stakerA, 1000)

	if _, err := pay.Execute(stakerB, []string{"DAI"}, one(0), one(10), one(0), "", 42); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := st.Derivative.InternalSettledAtBlock; got != 42 {
		t.Errorf("InternalSettledAtBlock = %d, want 42", got)
	}
}
