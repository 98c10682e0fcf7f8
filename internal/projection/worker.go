package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	CommandType    string
	Asset          *string
	Block          uint64
	JournalEntries []JournalEntry
	PoolStats      []PoolStat
	StakerStats    []StakerStat
	Derivative     *DerivativeStat
	CoverageStats  []CoverageStat
}

// JournalEntry is a simplified journal for projection consumption.
// Amount is a decimal string matching the numeric(78,0) column.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	Asset         string
	Amount        string
	JournalType   int32
}

// PoolStat carries an asset pool's aggregates after the command applied.
type PoolStat struct {
	Asset            string
	TotalShares      string
	StakersPool      string
	FirstMoneyOut    string
	Unactivated      string
	StrategyDeployed string
	UnallocatedSherX string
	SherXWeight      uint16
}

// StakerStat is one staker position. UnstakeEntries is pre-marshaled JSON
// for the jsonb column.
type StakerStat struct {
	Asset          string
	Account        string
	Shares         string
	UnstakeEntries []byte
}

// DerivativeStat is the SherX ledger snapshot plus touched balances.
type DerivativeStat struct {
	InternalSupply    string
	MintedSupply      string
	UsdPool           string
	BeneficiaryWeight uint16
	Balances          []SherXBalanceStat
}

type SherXBalanceStat struct {
	Account string
	Balance string
}

// CoverageStat is one protocol's premium position on one pool. Removed
// rows are deleted from the projection.
type CoverageStat struct {
	Asset           string
	ProtocolID      string
	PremiumPerBlock string
	Balance         string
	Removed         bool
}

// ProjectionWorker updates projection tables from applied commands.
// The projection channel is non-blocking with drop; if projections fall
// behind, they can be rebuilt from the command log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue — projections are eventually consistent
				// and can be rebuilt from the command log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Update balance projections from journal entries
	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	// Update per-asset pool aggregates
	for _, p := range output.PoolStats {
		if err := pw.updatePoolProjection(ctx, tx, p, output.Sequence); err != nil {
			return fmt.Errorf("pool projection: %w", err)
		}
	}

	for _, s := range output.StakerStats {
		if err := pw.updateStakerProjection(ctx, tx, s, output.Sequence); err != nil {
			return fmt.Errorf("staker projection: %w", err)
		}
	}

	if output.Derivative != nil {
		if err := pw.updateDerivativeProjection(ctx, tx, *output.Derivative, output.Sequence); err != nil {
			return fmt.Errorf("derivative projection: %w", err)
		}
	}

	for _, cs := range output.CoverageStats {
		if err := pw.updateCoverageProjection(ctx, tx, cs, output.Sequence); err != nil {
			return fmt.Errorf("coverage projection: %w", err)
		}
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalanceProjection applies one journal. Debit accounts increase,
// credit accounts decrease, matching the core's audit convention.
func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset, balance, last_sequence)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (account_path, asset)
		DO UPDATE SET balance = projections.balances.balance + $3::numeric, last_sequence = $4
	`, j.DebitAccount, j.Asset, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset, balance, last_sequence)
		VALUES ($1, $2, -$3::numeric, $4)
		ON CONFLICT (account_path, asset)
		DO UPDATE SET balance = projections.balances.balance - $3::numeric, last_sequence = $4
	`, j.CreditAccount, j.Asset, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) updatePoolProjection(ctx context.Context, tx *sql.Tx, p PoolStat, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.pools
			(asset, total_shares, stakers_pool, first_money_out, unactivated, strategy_deployed, unallocated_sherx, sherx_weight, last_sequence, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9, NOW())
		ON CONFLICT (asset) DO UPDATE SET
			total_shares = $2::numeric,
			stakers_pool = $3::numeric,
			first_money_out = $4::numeric,
			unactivated = $5::numeric,
			strategy_deployed = $6::numeric,
			unallocated_sherx = $7::numeric,
			sherx_weight = $8,
			last_sequence = $9,
			updated_at = NOW()
	`, p.Asset, p.TotalShares, p.StakersPool, p.FirstMoneyOut,
		p.Unactivated, p.StrategyDeployed, p.UnallocatedSherX, int32(p.SherXWeight), seq)
	return err
}

func (pw *ProjectionWorker) updateStakerProjection(ctx context.Context, tx *sql.Tx, s StakerStat, seq int64) error {
	entries := s.UnstakeEntries
	if len(entries) == 0 {
		entries = []byte("[]")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.staker_shares
			(asset, account, shares, unstake_entries, last_sequence, updated_at)
		VALUES ($1, $2, $3::numeric, $4::jsonb, $5, NOW())
		ON CONFLICT (asset, account) DO UPDATE SET
			shares = $3::numeric,
			unstake_entries = $4::jsonb,
			last_sequence = $5,
			updated_at = NOW()
	`, s.Asset, s.Account, s.Shares, entries, seq)
	return err
}

func (pw *ProjectionWorker) updateDerivativeProjection(ctx context.Context, tx *sql.Tx, d DerivativeStat, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.sherx_supply
			(id, internal_supply, minted_supply, usd_pool, beneficiary_weight, last_sequence)
		VALUES (TRUE, $1::numeric, $2::numeric, $3::numeric, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			internal_supply = $1::numeric,
			minted_supply = $2::numeric,
			usd_pool = $3::numeric,
			beneficiary_weight = $4,
			last_sequence = $5
	`, d.InternalSupply, d.MintedSupply, d.UsdPool, int32(d.BeneficiaryWeight), seq); err != nil {
		return err
	}

	for _, b := range d.Balances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.sherx_balances (account, balance, last_sequence)
			VALUES ($1, $2::numeric, $3)
			ON CONFLICT (account) DO UPDATE SET balance = $2::numeric, last_sequence = $3
		`, b.Account, b.Balance, seq); err != nil {
			return err
		}
	}
	return nil
}

func (pw *ProjectionWorker) updateCoverageProjection(ctx context.Context, tx *sql.Tx, cs CoverageStat, seq int64) error {
	if cs.Removed {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM projections.protocol_coverage
			WHERE asset = $1 AND protocol_id = $2
		`, cs.Asset, cs.ProtocolID)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.protocol_coverage
			(asset, protocol_id, premium_per_block, balance, last_sequence)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5)
		ON CONFLICT (asset, protocol_id) DO UPDATE SET
			premium_per_block = $3::numeric,
			balance = $4::numeric,
			last_sequence = $5
	`, cs.Asset, cs.ProtocolID, cs.PremiumPerBlock, cs.Balance, seq)
	return err
}

// LastSequence returns the last projected sequence (freshness watermark).
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq
}
