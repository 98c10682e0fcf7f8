package ledger_test

import (
	"math/big"
	"testing"

	"SherPool/internal/ledger"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// ============================================================================
// Test: Account Paths
// ============================================================================

func TestAccountPath_RoundTrip(t *testing.T) {
	protocolID := uuid.New()

	keys := []ledger.AccountKey{
		ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool),
		ledger.NewPoolAccountKey("DAI", ledger.SubTypeFirstMoneyOut),
		ledger.NewProtocolAccountKey(protocolID, "USDC"),
		ledger.NewExternalAccountKey("WETH", ledger.SubTypeExternalDeposits),
		ledger.NewExternalAccountKey("WETH", ledger.SubTypeExternalWithdrawals),
		ledger.NewExternalAccountKey("WETH", ledger.SubTypeExternalPayouts),
	}

	for _, key := range keys {
		path := key.AccountPath()
		parsed, err := ledger.ParseAccountPath(path)
		if err != nil {
			t.Fatalf("ParseAccountPath(%q) failed: %v", path, err)
		}
		if parsed != key {
			t.Errorf("round trip mismatch for %q: got %+v, want %+v", path, parsed, key)
		}
	}
}

func TestAccountPath_Format(t *testing.T) {
	protocolID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	tests := []struct {
		key  ledger.AccountKey
		want string
	}{
		{ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool), "pool:DAI:stakers_pool"},
		{ledger.NewPoolAccountKey("DAI", ledger.SubTypeFirstMoneyOut), "pool:DAI:first_money_out"},
		{ledger.NewProtocolAccountKey(protocolID, "DAI"), "protocol:11111111-2222-3333-4444-555555555555:DAI:premium_balance"},
		{ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits), "external:DAI:deposits"},
	}

	for _, tt := range tests {
		if got := tt.key.AccountPath(); got != tt.want {
			t.Errorf("AccountPath() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseAccountPath_Malformed(t *testing.T) {
	paths := []string{
		"",
		"pool",
		"pool:DAI",
		"pool:DAI:unknown_sub",
		"protocol:not-a-uuid:DAI:premium_balance",
		"protocol:11111111-2222-3333-4444-555555555555:DAI",
		"external:DAI:premium_balance",
		"galaxy:DAI:stakers_pool",
	}
	for _, path := range paths {
		if _, err := ledger.ParseAccountPath(path); err == nil {
			t.Errorf("ParseAccountPath(%q) should fail", path)
		}
	}
}

// ============================================================================
// Test: Batch
// ============================================================================

func TestBatch_AppendDropsZeroAmounts(t *testing.T) {
	batch := ledger.NewBatch("cmd-1", 0, 100)
	debit := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)
	credit := ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits)

	batch.Append(ledger.JournalTypeStakeDeposit, debit, credit, uint256.NewInt(0))
	batch.Append(ledger.JournalTypeStakeDeposit, debit, credit, nil)
	batch.Append(ledger.JournalTypeStakeDeposit, debit, credit, uint256.NewInt(500))

	if len(batch.Journals) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(batch.Journals))
	}
	j := batch.Journals[0]
	if j.Amount.Uint64() != 500 {
		t.Errorf("expected amount 500, got %s", j.Amount.Dec())
	}
	if j.Asset != "DAI" {
		t.Errorf("expected asset DAI, got %s", j.Asset)
	}
	if j.Block != 100 {
		t.Errorf("expected block 100, got %d", j.Block)
	}
}

func TestBatch_AppendCopiesAmount(t *testing.T) {
	batch := ledger.NewBatch("cmd-1", 0, 1)
	amt := uint256.NewInt(10)
	batch.Append(ledger.JournalTypeStakeDeposit,
		ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool),
		ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits),
		amt)

	amt.SetUint64(999)
	if batch.Journals[0].Amount.Uint64() != 10 {
		t.Errorf("journal amount aliased caller's value: %s", batch.Journals[0].Amount.Dec())
	}
}

func TestBatch_ValidateRejectsSameAccount(t *testing.T) {
	batch := ledger.NewBatch("cmd-1", 0, 1)
	acct := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)
	batch.Journals = append(batch.Journals, ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		DebitAccount:  acct,
		CreditAccount: acct,
		Asset:         "DAI",
		Amount:        uint256.NewInt(1),
	})

	if err := batch.Validate(); err == nil {
		t.Error("expected validation error for same debit and credit account")
	}
}

func TestBatch_ValidateRejectsCrossAsset(t *testing.T) {
	batch := ledger.NewBatch("cmd-1", 0, 1)
	batch.Journals = append(batch.Journals, ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		DebitAccount:  ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool),
		CreditAccount: ledger.NewExternalAccountKey("USDC", ledger.SubTypeExternalDeposits),
		Asset:         "DAI",
		Amount:        uint256.NewInt(1),
	})

	if err := batch.Validate(); err == nil {
		t.Error("expected validation error for cross-asset journal")
	}
}

// ============================================================================
// Test: Balance Tracker
// ============================================================================

func TestBalanceTracker_DebitIncreasesCreditDecreases(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	pool := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)
	external := ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits)

	batch := ledger.NewBatch("cmd-1", 0, 1)
	batch.Append(ledger.JournalTypeStakeDeposit, pool, external, uint256.NewInt(1000))
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	if got := bt.GetBalance(pool); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("pool balance = %s, want 1000", got)
	}
	if got := bt.GetBalance(external); got.Cmp(big.NewInt(-1000)) != 0 {
		t.Errorf("external balance = %s, want -1000", got)
	}
}

func TestBalanceTracker_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	protocolID := uuid.New()

	stakers := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)
	fmo := ledger.NewPoolAccountKey("DAI", ledger.SubTypeFirstMoneyOut)
	protocol := ledger.NewProtocolAccountKey(protocolID, "DAI")
	deposits := ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits)

	batch := ledger.NewBatch("cmd-1", 0, 1)
	batch.Append(ledger.JournalTypeStakeDeposit, stakers, deposits, uint256.NewInt(1000))
	batch.Append(ledger.JournalTypeProtocolDeposit, protocol, deposits, uint256.NewInt(300))
	batch.Append(ledger.JournalTypeDebtSettlement, fmo, protocol, uint256.NewInt(50))
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	global := bt.ComputeGlobalBalance()
	if sum, ok := global["DAI"]; !ok || sum.Sign() != 0 {
		t.Errorf("global DAI balance = %v, want 0", sum)
	}
}

func TestBalanceTracker_MatchesPoolAggregate(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	stakers := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)
	deposits := ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits)

	batch := ledger.NewBatch("cmd-1", 0, 1)
	batch.Append(ledger.JournalTypeStakeDeposit, stakers, deposits, uint256.NewInt(777))
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	if !bt.MatchesPoolAggregate(stakers, uint256.NewInt(777)) {
		t.Error("shadow balance should match the aggregate 777")
	}
	if bt.MatchesPoolAggregate(stakers, uint256.NewInt(778)) {
		t.Error("shadow balance should not match 778")
	}
}

func TestBalanceTracker_SnapshotIndependent(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	stakers := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)
	deposits := ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits)

	batch := ledger.NewBatch("cmd-1", 0, 1)
	batch.Append(ledger.JournalTypeStakeDeposit, stakers, deposits, uint256.NewInt(100))
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	snap := bt.Snapshot()
	snap[stakers].SetInt64(0)
	if got := bt.GetBalance(stakers); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("mutating the snapshot changed the tracker: %s", got)
	}
}

// ============================================================================
// Test: Invariant Validator
// ============================================================================

func TestInvariantValidator_ConservationHolds(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)

	batch := ledger.NewBatch("cmd-1", 0, 1)
	batch.Append(ledger.JournalTypeStakeDeposit,
		ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool),
		ledger.NewExternalAccountKey("DAI", ledger.SubTypeExternalDeposits),
		uint256.NewInt(1000))
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	if err := v.ValidateConservation(); err != nil {
		t.Errorf("conservation should hold: %v", err)
	}
}

func TestInvariantValidator_ConservationBroken(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)

	// Inject an unbalanced entry directly; ApplyBatch would never produce one.
	bt.SetBalance(ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool), big.NewInt(5))

	if err := v.ValidateConservation(); err == nil {
		t.Error("expected conservation violation")
	}
}

func TestInvariantValidator_PoolNonNegative(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	stakers := ledger.NewPoolAccountKey("DAI", ledger.SubTypeStakersPool)

	bt.SetBalance(stakers, big.NewInt(-1))
	if err := v.ValidatePoolNonNegative("DAI"); err == nil {
		t.Error("expected non-negative violation for pool account")
	}

	bt.SetBalance(stakers, big.NewInt(0))
	if err := v.ValidatePoolNonNegative("DAI"); err != nil {
		t.Errorf("zero balance should pass: %v", err)
	}
}
