package state_test

import (
	"testing"

	"SherPool/internal/amount"
	"SherPool/internal/state"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// addProtocol registers a protocol and optionally starts its premium accrual.
func addProtocol(t *testing.T, st *state.State, asset string, ratePerBlock uint64, now uint64) uuid.UUID {
	t.Helper()
	pm := state.NewPremiumManager(st)
	pid := uuid.New()
	if err := pm.ProtocolAdd(asset, pid, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("ProtocolAdd failed: %v", err)
	}
	if ratePerBlock > 0 {
		_, err := pm.SetPremiums(asset, []uuid.UUID{pid}, []*uint256.Int{uint256.NewInt(ratePerBlock)}, nil, now)
		if err != nil {
			t.Fatalf("SetPremiums failed: %v", err)
		}
	}
	return pid
}

func protocolBalance(t *testing.T, st *state.State, asset string, pid uuid.UUID) *uint256.Int {
	t.Helper()
	p := mustPool(t, st, asset)
	cov, ok := p.Protocols[pid]
	if !ok {
		t.Fatalf("protocol %s not found on %s", pid, asset)
	}
	return cov.Balance
}

func TestProtocolAdd_Duplicate_Rejected(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)
	pid := uuid.New()

	if err := pm.ProtocolAdd("DAI", pid, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("ProtocolAdd failed: %v", err)
	}
	err := pm.ProtocolAdd("DAI", pid, uuid.New(), uuid.New())
	wantReason(t, err, state.ReasonProtocolExists)
}

func TestProtocolAdd_NilID_Rejected(t *testing.T) {
	st := newPoolState(t, "DAI")
	err := state.NewPremiumManager(st).ProtocolAdd("DAI", uuid.Nil, uuid.New(), uuid.New())
	wantReason(t, err, state.ReasonZeroAddress)
}

func TestSettle_AccruesIntoFirstMoneyOut(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	pid := addProtocol(t, st, "DAI", 5, 100)
	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(1000), 100); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	settled, err := pm.SettleDebt("DAI", 110)
	if err != nil {
		t.Fatalf("SettleDebt failed: %v", err)
	}
	if len(settled) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(settled))
	}
	wantEq(t, settled[0].Paid, 50, "Paid")
	wantEq(t, settled[0].Shortfall, 0, "Shortfall")
	wantEq(t, protocolBalance(t, st, "DAI", pid), 950, "protocol balance")
	wantEq(t, mustPool(t, st, "DAI").FirstMoneyOut, 50, "FirstMoneyOut")
}

func TestSettle_Idempotent_SameBlock(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	pid := addProtocol(t, st, "DAI", 5, 100)
	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(1000), 100); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	if _, err := pm.SettleDebt("DAI", 110); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	settled, err := pm.SettleDebt("DAI", 110)
	if err != nil {
		t.Fatalf("second settle failed: %v", err)
	}
	if len(settled) != 0 {
		t.Errorf("same-block settle should be a no-op, got %d settlements", len(settled))
	}
	wantEq(t, protocolBalance(t, st, "DAI", pid), 950, "protocol balance")
}

func TestSettle_ShortfallCapsAtBalance(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	pid := addProtocol(t, st, "DAI", 10, 0)
	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(30), 0); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	settled, err := pm.SettleDebt("DAI", 10)
	if err != nil {
		t.Fatalf("SettleDebt failed: %v", err)
	}
	wantEq(t, settled[0].Paid, 30, "Paid")
	wantEq(t, settled[0].Shortfall, 70, "Shortfall")
	wantEq(t, protocolBalance(t, st, "DAI", pid), 0, "protocol balance")
	wantEq(t, mustPool(t, st, "DAI").FirstMoneyOut, 30, "FirstMoneyOut")
}

func TestDeposit_SettlesBeforeCrediting(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	pid := addProtocol(t, st, "DAI", 10, 0)
	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(50), 0); err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}

	// Ten blocks of debt (100) outrun the prepaid 50; the new deposit must
	// not retroactively cover the gap.
	settled, err := pm.Deposit("DAI", pid, uint256.NewInt(1000), 10)
	if err != nil {
		t.Fatalf("second deposit failed: %v", err)
	}
	wantEq(t, settled[0].Paid, 50, "Paid")
	wantEq(t, settled[0].Shortfall, 50, "Shortfall")
	wantEq(t, protocolBalance(t, st, "DAI", pid), 1000, "protocol balance")
}

func TestWithdraw_MaxSentinel_TakesFullBalance(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	pid := addProtocol(t, st, "DAI", 10, 0)
	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(1000), 0); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	// Settlement at block 10 takes 100 first; max withdraws the 900 left.
	res, err := pm.Withdraw("DAI", pid, amount.Max, stakerA, 10)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	wantEq(t, res.Amount, 900, "Amount")
	wantEq(t, protocolBalance(t, st, "DAI", pid), 0, "protocol balance")
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	pid := addProtocol(t, st, "DAI", 0, 0)
	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(100), 0); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	_, err := pm.Withdraw("DAI", pid, uint256.NewInt(101), stakerA, 0)
	wantReason(t, err, state.ReasonInsufficient)
}

func TestSetPremiums_LengthMismatch(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)
	pid := addProtocol(t, st, "DAI", 0, 0)

	_, err := pm.SetPremiums("DAI", []uuid.UUID{pid}, nil, nil, 0)
	wantReason(t, err, state.ReasonLengthMismatch)
}

func TestSetPremiums_UnknownProtocol(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	_, err := pm.SetPremiums("DAI", []uuid.UUID{uuid.New()}, []*uint256.Int{uint256.NewInt(1)}, nil, 0)
	wantReason(t, err, state.ReasonProtocolUnknown)
}

func TestSetPremiums_SingleSettlementPass(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	p1 := addProtocol(t, st, "DAI", 0, 0)
	p2 := addProtocol(t, st, "DAI", 0, 0)
	_, err := pm.SetPremiums("DAI",
		[]uuid.UUID{p1, p2},
		[]*uint256.Int{uint256.NewInt(10), uint256.NewInt(20)}, nil, 0)
	if err != nil {
		t.Fatalf("SetPremiums failed: %v", err)
	}
	if _, err := pm.Deposit("DAI", p1, uint256.NewInt(1000), 0); err != nil {
		t.Fatalf("deposit p1 failed: %v", err)
	}
	if _, err := pm.Deposit("DAI", p2, uint256.NewInt(1000), 0); err != nil {
		t.Fatalf("deposit p2 failed: %v", err)
	}

	// Both rates change at block 10; both settle once at the old rates.
	settled, err := pm.SetPremiums("DAI",
		[]uuid.UUID{p1, p2},
		[]*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)}, nil, 10)
	if err != nil {
		t.Fatalf("SetPremiums failed: %v", err)
	}
	if len(settled) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(settled))
	}
	wantEq(t, settled[0].Paid, 100, "p1 Paid")
	wantEq(t, settled[1].Paid, 200, "p2 Paid")

	pool := mustPool(t, st, "DAI")
	wantEq(t, pool.TotalPremiumPerBlock, 0, "TotalPremiumPerBlock")
	if pool.ActivePremiums != 0 {
		t.Errorf("ActivePremiums = %d, want 0", pool.ActivePremiums)
	}
}

func TestSetPremiums_TracksActiveSetAndPrice(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)
	pid := addProtocol(t, st, "DAI", 0, 0)

	_, err := pm.SetPremiums("DAI", []uuid.UUID{pid}, []*uint256.Int{uint256.NewInt(7)}, wad(2), 0)
	if err != nil {
		t.Fatalf("SetPremiums failed: %v", err)
	}

	pool := mustPool(t, st, "DAI")
	if pool.ActivePremiums != 1 {
		t.Errorf("ActivePremiums = %d, want 1", pool.ActivePremiums)
	}
	wantEq(t, pool.TotalPremiumPerBlock, 7, "TotalPremiumPerBlock")
	if !pool.UsdPrice.Eq(wad(2)) {
		t.Errorf("UsdPrice = %s, want %s", pool.UsdPrice.Dec(), wad(2).Dec())
	}

	// Nil price leaves the injected price alone.
	_, err = pm.SetPremiums("DAI", []uuid.UUID{pid}, []*uint256.Int{uint256.NewInt(3)}, nil, 0)
	if err != nil {
		t.Fatalf("SetPremiums failed: %v", err)
	}
	if !pool.UsdPrice.Eq(wad(2)) {
		t.Errorf("nil price overwrote UsdPrice: %s", pool.UsdPrice.Dec())
	}
	wantEq(t, pool.TotalPremiumPerBlock, 3, "TotalPremiumPerBlock after update")
}

func TestClean_AccruingRate_Blocked(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)
	pid := addProtocol(t, st, "DAI", 10, 0)

	_, err := pm.Clean("DAI", pid, 0, false, stakerA, 5)
	wantReason(t, err, state.ReasonCanNotDelete2)
}

func TestClean_PriorShortfall_RequiresForce(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)
	pid := addProtocol(t, st, "DAI", 10, 0)

	if _, err := pm.Deposit("DAI", pid, uint256.NewInt(30), 0); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	// Ten blocks owe 100 against a prepaid 30; the 70 settles short.
	settled, err := pm.SettleDebt("DAI", 10)
	if err != nil {
		t.Fatalf("SettleDebt failed: %v", err)
	}
	wantEq(t, settled[0].Shortfall, 70, "Shortfall")

	// The shortfall outlives its settlement pass. Zeroing the rate and
	// cleaning later must still demand force.
	_, err = pm.SetPremiums("DAI", []uuid.UUID{pid}, []*uint256.Int{uint256.NewInt(0)}, nil, 10)
	if err != nil {
		t.Fatalf("SetPremiums failed: %v", err)
	}
	_, err = pm.Clean("DAI", pid, 0, false, stakerA, 10)
	wantReason(t, err, state.ReasonCanNotDelete)

	res, err := pm.Clean("DAI", pid, 0, true, stakerA, 10)
	if err != nil {
		t.Fatalf("forced Clean failed: %v", err)
	}
	wantEq(t, res.Refund, 0, "Refund")
	if len(st.Pools["DAI"].ProtocolList) != 0 {
		t.Errorf("ProtocolList = %v, want empty", st.Pools["DAI"].ProtocolList)
	}
}

func TestClean_WrongIndex_Rejected(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)
	pid := addProtocol(t, st, "DAI", 0, 0)

	_, err := pm.Clean("DAI", pid, 1, false, stakerA, 0)
	wantReason(t, err, state.ReasonIndex)
}

func TestClean_RefundsAndSwapPops(t *testing.T) {
	st := newPoolState(t, "DAI")
	pm := state.NewPremiumManager(st)

	p1 := addProtocol(t, st, "DAI", 0, 0)
	p2 := addProtocol(t, st, "DAI", 0, 0)
	p3 := addProtocol(t, st, "DAI", 0, 0)
	if _, err := pm.Deposit("DAI", p1, uint256.NewInt(500), 0); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	res, err := pm.Clean("DAI", p1, 0, false, stakerA, 0)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	wantEq(t, res.Refund, 500, "Refund")

	pool := mustPool(t, st, "DAI")
	if _, ok := pool.Protocols[p1]; ok {
		t.Error("cleaned protocol still present")
	}
	if len(pool.ProtocolList) != 2 || pool.ProtocolList[0] != p3 || pool.ProtocolList[1] != p2 {
		t.Errorf("swap-and-pop order wrong: %v", pool.ProtocolList)
	}
}
