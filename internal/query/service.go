package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"SherPool/internal/ledger"
)

// QueryService provides read-only access to projection tables. Queries are
// served over HTTP/JSON from PostgreSQL projections; all responses include
// as_of_sequence for freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetPool returns the aggregates for one asset pool.
func (qs *QueryService) GetPool(ctx context.Context, asset string) (*PoolResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row := qs.db.QueryRowContext(ctx, `
		SELECT total_shares, stakers_pool, first_money_out,
		       unactivated, strategy_deployed, unallocated_sherx, sherx_weight
		FROM projections.pools
		WHERE asset = $1
	`, asset)

	p := &PoolResponse{Asset: asset, AsOfSequence: asOfSeq}
	err = row.Scan(&p.TotalShares, &p.StakersPool, &p.FirstMoneyOut,
		&p.Unactivated, &p.StrategyDeployed, &p.UnallocatedSherX, &p.SherXWeight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPools returns aggregates for every projected pool.
func (qs *QueryService) ListPools(ctx context.Context) ([]PoolResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset, total_shares, stakers_pool, first_money_out,
		       unactivated, strategy_deployed, unallocated_sherx, sherx_weight
		FROM projections.pools
		ORDER BY asset
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []PoolResponse
	for rows.Next() {
		var p PoolResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(&p.Asset, &p.TotalShares, &p.StakersPool, &p.FirstMoneyOut,
			&p.Unactivated, &p.StrategyDeployed, &p.UnallocatedSherX, &p.SherXWeight); err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// GetStakerPosition returns one staker's shares and cooldown entries on a
// pool. Nil when the staker has never held shares there.
func (qs *QueryService) GetStakerPosition(ctx context.Context, asset, account string) (*StakerPositionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var entriesJSON []byte
	resp := &StakerPositionResponse{Asset: asset, Account: account, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT shares, unstake_entries
		FROM projections.staker_shares
		WHERE asset = $1 AND account = $2
	`, asset, account).Scan(&resp.Shares, &entriesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entriesJSON, &resp.UnstakeEntries); err != nil {
		return nil, fmt.Errorf("unstake entries for %s/%s: %w", asset, account, err)
	}
	return resp, nil
}

// GetExchangeRate returns the wad-scaled underlying value of one share.
// Nil when the pool is not projected or no shares exist yet.
func (qs *QueryService) GetExchangeRate(ctx context.Context, asset string) (*ExchangeRateResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var totalShares, stakersPool string
	err = qs.db.QueryRowContext(ctx, `
		SELECT total_shares, stakers_pool FROM projections.pools WHERE asset = $1
	`, asset).Scan(&totalShares, &stakersPool)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rate, ok := ExchangeRate(totalShares, stakersPool)
	if !ok {
		return nil, nil
	}
	return &ExchangeRateResponse{Asset: asset, Rate: rate, AsOfSequence: asOfSeq}, nil
}

// GetSherXSupply returns the derivative ledger snapshot with the current
// wad-scaled price.
func (qs *QueryService) GetSherXSupply(ctx context.Context) (*SherXSupplyResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	resp := &SherXSupplyResponse{
		InternalSupply: "0", MintedSupply: "0", UsdPool: "0",
		AsOfSequence: asOfSeq,
	}
	err = qs.db.QueryRowContext(ctx, `
		SELECT internal_supply, minted_supply, usd_pool, beneficiary_weight
		FROM projections.sherx_supply
	`).Scan(&resp.InternalSupply, &resp.MintedSupply, &resp.UsdPool, &resp.BeneficiaryWeight)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	resp.Price = sherXPrice(resp.InternalSupply, resp.UsdPool)
	return resp, nil
}

// GetSherXBalance returns an account's minted SherX balance; absent
// accounts read as zero.
func (qs *QueryService) GetSherXBalance(ctx context.Context, account string) (*SherXBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	resp := &SherXBalanceResponse{Account: account, Balance: "0", AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT balance FROM projections.sherx_balances WHERE account = $1
	`, account).Scan(&resp.Balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return resp, nil
}

// ListWeights returns the emission weight table: every nonzero asset weight
// plus the beneficiary weight.
func (qs *QueryService) ListWeights(ctx context.Context) (*WeightsResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset, sherx_weight FROM projections.pools
		WHERE sherx_weight > 0
		ORDER BY asset
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &WeightsResponse{AsOfSequence: asOfSeq}
	for rows.Next() {
		var w AssetWeight
		if err := rows.Scan(&w.Asset, &w.Weight); err != nil {
			return nil, err
		}
		resp.Weights = append(resp.Weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT beneficiary_weight FROM projections.sherx_supply
	`).Scan(&resp.BeneficiaryWeight)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return resp, nil
}

// GetProtocolCoverage returns a protocol's premium positions across every
// pool covering it.
func (qs *QueryService) GetProtocolCoverage(ctx context.Context, protocolID uuid.UUID) ([]CoverageResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset, premium_per_block, balance
		FROM projections.protocol_coverage
		WHERE protocol_id = $1
		ORDER BY asset
	`, protocolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coverage []CoverageResponse
	for rows.Next() {
		c := CoverageResponse{ProtocolID: protocolID.String(), AsOfSequence: asOfSeq}
		if err := rows.Scan(&c.Asset, &c.PremiumPerBlock, &c.Balance); err != nil {
			return nil, err
		}
		coverage = append(coverage, c)
	}
	return coverage, rows.Err()
}

// GetAccountBalance returns one audited account balance by path.
func (qs *QueryService) GetAccountBalance(ctx context.Context, accountPath, asset string) (*AccountBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := qs.getProjectedBalance(ctx, accountPath, asset)
	if err != nil {
		return nil, err
	}

	return &AccountBalanceResponse{
		AccountPath:  accountPath,
		Asset:        asset,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetProtocolBalance returns a covered protocol's prepaid premium balance.
func (qs *QueryService) GetProtocolBalance(ctx context.Context, protocolID uuid.UUID, asset string) (*ProtocolBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	accountPath := fmt.Sprintf("protocol:%s:%s:premium_balance", protocolID, asset)
	balance, err := qs.getProjectedBalance(ctx, accountPath, asset)
	if err != nil {
		return nil, err
	}

	return &ProtocolBalanceResponse{
		ProtocolID:   protocolID,
		Asset:        asset,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetSettlementHistory returns premium debt settlements against a protocol,
// newest first. Supports cursor-based pagination on sequence.
func (qs *QueryService) GetSettlementHistory(
	ctx context.Context,
	protocolID uuid.UUID,
	asset *string,
	limit int,
	afterSequence *int64,
) ([]SettlementResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	// Debt settlements credit the protocol's prepaid account.
	accountPrefix := fmt.Sprintf("protocol:%s:%%", protocolID)
	query := `
		SELECT journal_id, asset, amount, sequence, block
		FROM event_log.journal
		WHERE journal_type = $1 AND credit_account LIKE $2
	`
	args := []interface{}{int32(ledger.JournalTypeDebtSettlement), accountPrefix}
	argIdx := 3

	if asset != nil {
		query += fmt.Sprintf(" AND asset = $%d", argIdx)
		args = append(args, *asset)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []SettlementResponse
	for rows.Next() {
		var s SettlementResponse
		s.ProtocolID = protocolID.String()
		s.AsOfSequence = asOfSeq
		if err := rows.Scan(&s.JournalID, &s.Asset, &s.Paid, &s.Sequence, &s.Block); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}

	return settlements, rows.Err()
}

// GetJournalHistory returns journal entries touching an account path prefix,
// with cursor-based pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	accountPrefix string,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	prefix := accountPrefix + "%"

	query := `
		SELECT journal_id, batch_id, command_ref, sequence,
		       debit_account, credit_account, asset, amount, journal_type, block
		FROM event_log.journal
		WHERE debit_account LIKE $1 OR credit_account LIKE $1
	`
	args := []interface{}{prefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.CommandRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Asset, &e.Amount,
			&e.JournalType, &e.Block,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and global zero-sum balance.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence
		FROM event_log.commands c1
		LEFT JOIN event_log.commands c2 ON c2.sequence = c1.sequence - 1
		WHERE c1.sequence > 0 AND c1.prev_hash != COALESCE(c2.state_hash, c1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Check global balance (should sum to zero across all accounts per asset)
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset, SUM(balance)::text AS total
		FROM projections.balances
		GROUP BY asset
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var ua UnbalancedAsset
		if err := balanceRows.Scan(&ua.Asset, &ua.Imbalance); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, ua)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// getWatermark returns the last projected sequence.
func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// getProjectedBalance reads one balance as a decimal string; absent rows
// read as zero.
func (qs *QueryService) getProjectedBalance(ctx context.Context, accountPath, asset string) (string, error) {
	var balance string
	err := qs.db.QueryRowContext(ctx, `
		SELECT balance::text FROM projections.balances
		WHERE account_path = $1 AND asset = $2
	`, accountPath, asset).Scan(&balance)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return balance, nil
}
