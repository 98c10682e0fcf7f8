package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeStakeDeposit JournalType = iota
	JournalTypeUnstakeWithdrawal
	JournalTypeCooldownFee
	JournalTypeProtocolDeposit
	JournalTypeProtocolWithdrawal
	JournalTypeProtocolRefund
	JournalTypeDebtSettlement
	JournalTypePayoutFirstMoneyOut
	JournalTypePayoutStakersPool
	JournalTypePayoutUnallocated
	JournalTypeUnloadSweep
)

// Journal represents a single audit transfer between two accounts.
// Amounts are always positive; direction is carried by the account pair.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	CommandRef    string // idempotency key of the source command
	Sequence      int64
	DebitAccount  AccountKey // balance increases
	CreditAccount AccountKey // balance decreases
	Asset         string
	Amount        *uint256.Int
	JournalType   JournalType
	Block         uint64
}

// Batch groups the journals produced by one command
type Batch struct {
	BatchID    uuid.UUID
	CommandRef string
	Sequence   int64
	Block      uint64
	Journals   []Journal
}

// NewBatch creates an empty batch for a command.
func NewBatch(commandRef string, sequence int64, block uint64) *Batch {
	return &Batch{
		BatchID:    uuid.New(),
		CommandRef: commandRef,
		Sequence:   sequence,
		Block:      block,
		Journals:   make([]Journal, 0, 2),
	}
}

// Append adds a transfer to the batch. Zero amounts are dropped — a payout
// leg of zero, for example, produces no audit row.
func (b *Batch) Append(jt JournalType, debit, credit AccountKey, amt *uint256.Int) {
	if amt == nil || amt.IsZero() {
		return
	}
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		CommandRef:    b.CommandRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         debit.Asset,
		Amount:        new(uint256.Int).Set(amt),
		JournalType:   jt,
		Block:         b.Block,
	})
}

// Validate ensures the batch is well-formed. Each journal is a balanced
// transfer by construction (one positive amount moving credit → debit), so
// Σ debits == Σ credits holds per entry; multi-leg operations use several
// entries under one batch id.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount == nil || j.Amount.IsZero() {
			return fmt.Errorf("journal %s has zero amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
		if j.DebitAccount.Asset != j.CreditAccount.Asset {
			return fmt.Errorf("journal %s crosses assets: %s vs %s",
				j.JournalID, j.DebitAccount.Asset, j.CreditAccount.Asset)
		}
	}
	return nil
}
