package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// BalanceTracker maintains signed shadow balances for every audit account.
// External boundary accounts run negative as capital flows in; the sum over
// all accounts of one asset is zero at all times — that zero-sum check IS the
// engine's conservation invariant.
type BalanceTracker struct {
	balances map[AccountKey]*big.Int
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]*big.Int),
	}
}

func (bt *BalanceTracker) get(key AccountKey) *big.Int {
	b, ok := bt.balances[key]
	if !ok {
		b = new(big.Int)
		bt.balances[key] = b
	}
	return b
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	amt := j.Amount.ToBig()
	bt.get(j.DebitAccount).Add(bt.get(j.DebitAccount), amt)
	bt.get(j.CreditAccount).Sub(bt.get(j.CreditAccount), amt)
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}
	return nil
}

// GetBalance returns a copy of the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) *big.Int {
	if b, ok := bt.balances[key]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// StakersPoolBalance returns the audited stakers-pool balance for an asset
func (bt *BalanceTracker) StakersPoolBalance(asset string) *big.Int {
	return bt.GetBalance(NewPoolAccountKey(asset, SubTypeStakersPool))
}

// FirstMoneyOutBalance returns the audited first-money-out balance for an asset
func (bt *BalanceTracker) FirstMoneyOutBalance(asset string) *big.Int {
	return bt.GetBalance(NewPoolAccountKey(asset, SubTypeFirstMoneyOut))
}

// ProtocolBalance returns the audited prepaid balance for a protocol on an asset
func (bt *BalanceTracker) ProtocolBalance(protocolID uuid.UUID, asset string) *big.Int {
	return bt.GetBalance(NewProtocolAccountKey(protocolID, asset))
}

// MatchesPoolAggregate reports whether the audited pool account equals the
// engine's own uint256 aggregate for the same balance.
func (bt *BalanceTracker) MatchesPoolAggregate(key AccountKey, aggregate *uint256.Int) bool {
	return bt.GetBalance(key).Cmp(aggregate.ToBig()) == 0
}

// ComputeGlobalBalance sums all account balances per asset (zero for a
// conserved ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[string]*big.Int {
	totals := make(map[string]*big.Int)
	for key, balance := range bt.balances {
		t, ok := totals[key.Asset]
		if !ok {
			t = new(big.Int)
			totals[key.Asset] = t
		}
		t.Add(t, balance)
	}
	return totals
}

// ValidateNonNegative checks that a pool or protocol account is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	if bt.GetBalance(key).Sign() < 0 {
		return fmt.Errorf("account %s has negative balance: %s",
			key.AccountPath(), bt.GetBalance(key).String())
	}
	return nil
}

// SetBalance overwrites an account balance (snapshot restore only)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance *big.Int) {
	bt.balances[key] = new(big.Int).Set(balance)
}

// Snapshot returns a copy of all balances
func (bt *BalanceTracker) Snapshot() map[AccountKey]*big.Int {
	out := make(map[AccountKey]*big.Int, len(bt.balances))
	for k, v := range bt.balances {
		out[k] = new(big.Int).Set(v)
	}
	return out
}
