package state_test

import (
	"testing"

	"SherPool/internal/amount"
	"SherPool/internal/state"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var (
	govID   = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	stakerA = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	stakerB = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
)

// newPoolState builds a state with the given assets initialized for both
// staking and premium coverage.
func newPoolState(t *testing.T, assets ...string) *state.State {
	t.Helper()
	st := state.New()
	reg := state.NewRegistry(st, nil)
	for _, asset := range assets {
		if err := reg.TokenInit(asset, govID, uuid.New(), true, true); err != nil {
			t.Fatalf("TokenInit(%s) failed: %v", asset, err)
		}
	}
	return st
}

func mustPool(t *testing.T, st *state.State, asset string) *state.AssetPool {
	t.Helper()
	p, err := st.Pool(asset)
	if err != nil {
		t.Fatalf("Pool(%s) failed: %v", asset, err)
	}
	return p
}

func mustStake(t *testing.T, st *state.State, asset string, staker uuid.UUID, amt uint64) {
	t.Helper()
	if _, err := state.NewStakeManager(st).Stake(asset, staker, staker, uint256.NewInt(amt)); err != nil {
		t.Fatalf("Stake(%s, %d) failed: %v", asset, amt, err)
	}
}

// appreciate grows a pool's underlying without minting shares, raising the
// share exchange rate the way external yield would.
func appreciate(t *testing.T, st *state.State, asset string, amt uint64) {
	t.Helper()
	p := mustPool(t, st, asset)
	p.StakersPool.AddUint64(p.StakersPool, amt)
	p.Unactivated.AddUint64(p.Unactivated, amt)
}

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), amount.Wad)
}

func wantReason(t *testing.T, err error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", reason)
	}
	if !state.IsReason(err, reason) {
		t.Fatalf("expected %s error, got %v", reason, err)
	}
}

func wantEq(t *testing.T, got *uint256.Int, want uint64, label string) {
	t.Helper()
	if got == nil || got.Uint64() != want || !got.IsUint64() {
		t.Errorf("%s = %v, want %d", label, got, want)
	}
}
