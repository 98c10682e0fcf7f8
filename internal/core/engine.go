package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/command"
	"SherPool/internal/ledger"
	"SherPool/internal/observability"
	"SherPool/internal/state"
)

// DeterministicCore is the single-threaded command processor. All pool,
// premium, derivative and payout state lives behind it; the shell feeds it
// commands one at a time and executes the boundary effects it emits.
type DeterministicCore struct {
	sequence       int64
	hasher         *StateHasher
	balanceTracker *ledger.BalanceTracker
	validator      *ledger.InvariantValidator

	st       *state.State
	registry *state.Registry
	stake    *state.StakeManager
	premium  *state.PremiumManager
	emission *state.EmissionManager
	payout   *state.PayoutManager
	gov      *state.GovManager

	authorizer     *Authorizer
	idempotency    *IdempotencyChecker
	blockValidator *BlockValidator
	metrics        *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is one applied command: its envelope for the log, the audit
// journal batch, and the boundary effects for the shell to execute.
type CoreOutput struct {
	Envelope      *command.Envelope
	Batch         *ledger.Batch
	Effects       []state.Effect
	StateDelta    []byte
	PoolViews     []PoolView
	StakerViews   []StakerView
	Derivative    *DerivativeView
	CoverageViews []CoverageView
}

// PoolView is a decimal-string snapshot of one pool's aggregates, captured
// synchronously inside Process so downstream consumers never read live state.
type PoolView struct {
	Asset            string
	TotalShares      string
	StakersPool      string
	FirstMoneyOut    string
	Unactivated      string
	StrategyDeployed string
	UnallocatedSherX string
	SherXWeight      uint16
}

// StakerView is one staker's position after the command applied, including
// the still-active cooldown entries addressed by their slot index.
type StakerView struct {
	Asset          string
	Account        uuid.UUID
	Shares         string
	UnstakeEntries []UnstakeEntryView
}

type UnstakeEntryView struct {
	Index          int
	BlockInitiated uint64
	Shares         string
}

// DerivativeView snapshots the SherX ledger after a command that moved it,
// carrying the balances of the accounts the command touched.
type DerivativeView struct {
	InternalSupply    string
	MintedSupply      string
	UsdPool           string
	BeneficiaryWeight uint16
	Balances          []DerivativeBalanceView
}

type DerivativeBalanceView struct {
	Account uuid.UUID
	Balance string
}

// CoverageView is one protocol's premium position on one pool. Removed is
// set when the command deleted the coverage (clean).
type CoverageView struct {
	Asset           string
	ProtocolID      uuid.UUID
	PremiumPerBlock string
	Balance         string
	Removed         bool
}

func NewDeterministicCore(
	startSequence int64,
	governance uuid.UUID,
	lockTokens state.LockTokens,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *DeterministicCore {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)

	st := state.New()
	emission := state.NewEmissionManager(st)

	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)

	return &DeterministicCore{
		sequence:       startSequence,
		hasher:         NewStateHasher(),
		balanceTracker: balanceTracker,
		validator:      validator,
		st:             st,
		registry:       state.NewRegistry(st, lockTokens),
		stake:          state.NewStakeManager(st),
		premium:        state.NewPremiumManager(st),
		emission:       emission,
		payout:         state.NewPayoutManager(st, emission),
		gov:            state.NewGovManager(st),
		authorizer:     NewAuthorizer(st, governance),
		idempotency:    idempotencyChecker,
		blockValidator: NewBlockValidator(),
		metrics:        metrics,
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}
}

// Process is the main processing pipeline
func (c *DeterministicCore) Process(cmd command.Command) error {
	start := time.Now()
	cmdType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(cmdType, idempotencyKey)

	// Step 2: Ordering validation — per-partition source sequence, then the
	// block high-water mark. Blocks are versioned inputs; the core never
	// invents a height.
	partition := c.getPartition(cmd)
	if err := c.blockValidator.ValidateSequence(partition, cmd.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
		c.reject(cmdType, "sequence")
		return fmt.Errorf("ordering validation failed: %w", err)
	}

	if isDuplicate {
		c.reject(cmdType, "duplicate")
		return nil
	}

	if err := c.blockValidator.ValidateBlock(cmd.Block()); err != nil {
		c.reject(cmdType, "block_regression")
		return fmt.Errorf("ordering validation failed: %w", err)
	}

	// Step 3: Authorization
	if err := c.authorizer.Authorize(cmd); err != nil {
		c.reject(cmdType, "unauthorized")
		return fmt.Errorf("authorization failed: %w", err)
	}

	// Step 4: Dispatch. Managers validate every precondition before their
	// first mutation, so an error here means state is untouched.
	batch, effects, err := c.dispatch(cmd)
	if err != nil {
		c.reject(cmdType, rejectReason(err))
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 5: Apply the audit batch. Failures past this point are bugs, not
	// recoverable preconditions.
	if len(batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: apply batch: %v", err))
		}
		if c.metrics != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(journalTypeName(j.JournalType)).Inc()
			}
		}
	}

	// Step 6: Post-checks — aggregate/audit cross-check and conservation
	if err := c.postCheckInvariants(cmd); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 7: State digest and hash chain
	stateDigest := c.computeStateDigest(batch)
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	payload, err := json.Marshal(cmd)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal command payload: %v", err))
	}

	envelope := &command.Envelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		Type:           cmd.CommandType(),
		Asset:          cmd.Asset(),
		Block:          cmd.Block(),
		SourceSequence: cmd.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       c.hasher.GetPrevHash(),
	}

	output := CoreOutput{
		Envelope:      envelope,
		Batch:         batch,
		Effects:       effects,
		StateDelta:    stateDigest,
		PoolViews:     c.collectPoolViews(cmd, batch),
		StakerViews:   c.collectStakerViews(cmd),
		Derivative:    c.collectDerivativeView(cmd),
		CoverageViews: c.collectCoverageViews(cmd),
	}
	c.sequence++

	// Step 8: Emit. Persist channel uses a BLOCKING send (backpressure, no
	// command is ever lost); projection channel is NON-BLOCKING with silent
	// drop — projections rebuild from the command log when they fall behind.
	c.persistChan <- output

	select {
	case c.projectionChan <- output:
	default:
		// Dropped — projection catches up via rebuild
	}

	// Step 9: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(cmdType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreCommandsApplied.WithLabelValues(cmdType).Inc()
		c.metrics.CoreCommandDuration.WithLabelValues(cmdType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.metrics.CoreBlockHeight.Set(float64(c.blockValidator.LastBlock()))
		c.recordDomainMetrics(cmd)
	}

	return nil
}

func (c *DeterministicCore) reject(cmdType, reason string) {
	if c.metrics != nil {
		c.metrics.CoreCommandsRejected.WithLabelValues(cmdType, reason).Inc()
	}
}

// rejectReason maps domain errors to a bounded metric label.
func rejectReason(err error) string {
	var e *state.Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "error"
}

func f64(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	return v.Float64()
}

// collectPoolViews snapshots the aggregates of every pool the command
// touched, so projection updates never race against the core goroutine.
func (c *DeterministicCore) collectPoolViews(cmd command.Command, batch *ledger.Batch) []PoolView {
	touched := make(map[string]bool)
	if a := cmd.Asset(); a != nil {
		touched[*a] = true
	}
	if batch != nil {
		for _, j := range batch.Journals {
			touched[j.Asset] = true
		}
	}

	assets := make([]string, 0, len(touched))
	for a := range touched {
		if _, ok := c.st.Pools[a]; ok {
			assets = append(assets, a)
		}
	}
	sort.Strings(assets)

	views := make([]PoolView, 0, len(assets))
	for _, a := range assets {
		p := c.st.Pools[a]
		views = append(views, PoolView{
			Asset:            a,
			TotalShares:      p.TotalShares.Dec(),
			StakersPool:      p.StakersPool.Dec(),
			FirstMoneyOut:    p.FirstMoneyOut.Dec(),
			Unactivated:      p.Unactivated.Dec(),
			StrategyDeployed: p.StrategyDeployed.Dec(),
			UnallocatedSherX: p.UnallocatedSherX.Dec(),
			SherXWeight:      p.SherXWeight,
		})
	}
	return views
}

// collectStakerViews snapshots the positions whose shares or cooldown
// entries the command moved.
func (c *DeterministicCore) collectStakerViews(cmd command.Command) []StakerView {
	var asset string
	var accounts []uuid.UUID

	switch e := cmd.(type) {
	case *command.Stake:
		asset, accounts = e.AssetSymbol, []uuid.UUID{e.Receiver}
	case *command.ActivateCooldown:
		asset, accounts = e.AssetSymbol, []uuid.UUID{e.From}
	case *command.CancelCooldown:
		asset, accounts = e.AssetSymbol, []uuid.UUID{e.From}
	case *command.Unstake:
		asset, accounts = e.AssetSymbol, []uuid.UUID{e.From}
	case *command.UnstakeWindowExpiry:
		asset, accounts = e.AssetSymbol, []uuid.UUID{e.Account}
	default:
		return nil
	}

	p, ok := c.st.Pools[asset]
	if !ok {
		return nil
	}

	views := make([]StakerView, 0, len(accounts))
	for _, acct := range accounts {
		v := StakerView{Asset: asset, Account: acct, Shares: p.SharesOf(acct).Dec()}
		entries := p.UnstakeEntries[acct]
		for i := p.FirstActive[acct]; i < len(entries); i++ {
			if !entries[i].Active() {
				continue
			}
			v.UnstakeEntries = append(v.UnstakeEntries, UnstakeEntryView{
				Index:          i,
				BlockInitiated: entries[i].BlockInitiated,
				Shares:         entries[i].Shares.Dec(),
			})
		}
		views = append(views, v)
	}
	return views
}

// collectDerivativeView snapshots the SherX ledger for commands that mint,
// move or accrue the derivative. Nil for everything else.
func (c *DeterministicCore) collectDerivativeView(cmd command.Command) *DerivativeView {
	var touched []uuid.UUID

	switch e := cmd.(type) {
	case *command.Harvest:
		account := e.Account
		if account == uuid.Nil {
			account = e.From
		}
		touched = []uuid.UUID{account}
	case *command.TokenUnload:
		touched = []uuid.UUID{e.DerivativeReceiver}
	case *command.SherXTransfer:
		touched = []uuid.UUID{e.From, e.To}
	case *command.SherXTransferFrom:
		touched = []uuid.UUID{e.Owner, e.To}
	case *command.SetPremium, *command.SetPremiums, *command.SetWeights, *command.SetTokenPrice:
		// Accrual moves the supply and USD pool without touching balances.
	default:
		return nil
	}

	d := c.st.Derivative
	view := &DerivativeView{
		InternalSupply:    d.InternalTotalSupply.Dec(),
		MintedSupply:      d.TotalSupply.Dec(),
		UsdPool:           c.st.Emission.UsdPool.Dec(),
		BeneficiaryWeight: c.st.Emission.BeneficiaryWeight,
	}
	seen := make(map[uuid.UUID]bool, len(touched))
	for _, acct := range touched {
		if acct == uuid.Nil || seen[acct] {
			continue
		}
		seen[acct] = true
		view.Balances = append(view.Balances, DerivativeBalanceView{
			Account: acct, Balance: d.BalanceOf(acct).Dec(),
		})
	}
	return view
}

// collectCoverageViews snapshots the coverage positions a premium command
// touched. A protocol absent from the pool after the command is reported
// with Removed set so projections drop its row.
func (c *DeterministicCore) collectCoverageViews(cmd command.Command) []CoverageView {
	var asset string
	var ids []uuid.UUID

	switch e := cmd.(type) {
	case *command.ProtocolAdd:
		asset, ids = e.AssetSymbol, []uuid.UUID{e.ProtocolID}
	case *command.ProtocolUpdate:
		asset, ids = e.AssetSymbol, []uuid.UUID{e.ProtocolID}
	case *command.ProtocolDeposit:
		asset, ids = e.AssetSymbol, []uuid.UUID{e.ProtocolID}
	case *command.ProtocolWithdraw:
		asset, ids = e.AssetSymbol, []uuid.UUID{e.ProtocolID}
	case *command.SetPremium:
		asset, ids = e.AssetSymbol, []uuid.UUID{e.ProtocolID}
	case *command.SetPremiums:
		asset, ids = e.AssetSymbol, e.ProtocolIDs
	case *command.PayOffDebtAll:
		asset = e.AssetSymbol
		if p, ok := c.st.Pools[asset]; ok {
			ids = append(ids, p.ProtocolList...)
		}
	case *command.CleanProtocol:
		asset, ids = e.AssetSymbol, []uuid.UUID{e.ProtocolID}
	default:
		return nil
	}

	p, ok := c.st.Pools[asset]
	if !ok {
		return nil
	}

	views := make([]CoverageView, 0, len(ids))
	for _, id := range ids {
		cov, ok := p.Protocols[id]
		if !ok {
			views = append(views, CoverageView{
				Asset: asset, ProtocolID: id,
				PremiumPerBlock: "0", Balance: "0", Removed: true,
			})
			continue
		}
		views = append(views, CoverageView{
			Asset: asset, ProtocolID: id,
			PremiumPerBlock: cov.PremiumPerBlock.Dec(),
			Balance:         cov.Balance.Dec(),
		})
	}
	return views
}

// getPartition determines partition key for sequence validation
func (c *DeterministicCore) getPartition(cmd command.Command) string {
	if asset := cmd.Asset(); asset != nil {
		return fmt.Sprintf("asset:%s", *asset)
	}
	return "global"
}

// dispatch routes a command to its manager and assembles the journal batch.
func (c *DeterministicCore) dispatch(cmd command.Command) (*ledger.Batch, []state.Effect, error) {
	batch := ledger.NewBatch(cmd.IdempotencyKey(), c.sequence, cmd.Block())

	switch e := cmd.(type) {
	// --- Token lifecycle ---
	case *command.TokenInit:
		return batch, nil, c.registry.TokenInit(e.AssetSymbol, e.GovAddress, e.LockToken, e.EnableStaking, e.EnablePremium)

	case *command.TokenDisableStakers:
		return batch, nil, c.registry.DisableStakers(e.AssetSymbol, e.ExpectedIndex, e.AtBlock)

	case *command.TokenDisableProtocol:
		return batch, nil, c.registry.DisableProtocol(e.AssetSymbol, e.ExpectedIndex, e.AtBlock)

	case *command.TokenUnload:
		res, err := c.registry.Unload(e.AssetSymbol, e.UnderlyingReceiver, e.DerivativeReceiver)
		if err != nil {
			return nil, nil, err
		}
		payouts := ledger.NewExternalAccountKey(e.AssetSymbol, ledger.SubTypeExternalPayouts)
		batch.Append(ledger.JournalTypeUnloadSweep, payouts,
			ledger.NewPoolAccountKey(e.AssetSymbol, ledger.SubTypeFirstMoneyOut), res.FirstMoneyOut)
		batch.Append(ledger.JournalTypeUnloadSweep, payouts,
			ledger.NewPoolAccountKey(e.AssetSymbol, ledger.SubTypeStakersPool), res.StakersPool)
		return batch, res.Effects, nil

	case *command.TokenRemove:
		return batch, nil, c.registry.Remove(e.AssetSymbol)

	// --- Staking ---
	case *command.Stake:
		res, err := c.stake.Stake(e.AssetSymbol, e.From, e.Receiver, e.Amount)
		if err != nil {
			return nil, nil, err
		}
		batch.Append(ledger.JournalTypeStakeDeposit,
			ledger.NewPoolAccountKey(e.AssetSymbol, ledger.SubTypeStakersPool),
			ledger.NewExternalAccountKey(e.AssetSymbol, ledger.SubTypeExternalDeposits),
			e.Amount)
		return batch, res.Effects, nil

	case *command.ActivateCooldown:
		res, err := c.stake.ActivateCooldown(e.AssetSymbol, e.From, e.ShareAmount, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		batch.Append(ledger.JournalTypeCooldownFee,
			ledger.NewPoolAccountKey(e.AssetSymbol, ledger.SubTypeFirstMoneyOut),
			ledger.NewPoolAccountKey(e.AssetSymbol, ledger.SubTypeStakersPool),
			res.FeeUnderlying)
		return batch, res.Effects, nil

	case *command.CancelCooldown:
		_, err := c.stake.CancelCooldown(e.AssetSymbol, e.From, e.EntryID, e.AtBlock)
		return batch, nil, err

	case *command.Unstake:
		res, err := c.stake.Unstake(e.AssetSymbol, e.From, e.EntryID, e.Receiver, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		batch.Append(ledger.JournalTypeUnstakeWithdrawal,
			ledger.NewExternalAccountKey(e.AssetSymbol, ledger.SubTypeExternalWithdrawals),
			ledger.NewPoolAccountKey(e.AssetSymbol, ledger.SubTypeStakersPool),
			res.Underlying)
		return batch, res.Effects, nil

	case *command.UnstakeWindowExpiry:
		_, err := c.stake.WindowExpiry(e.AssetSymbol, e.Account, e.EntryID, e.AtBlock)
		return batch, nil, err

	// --- Premium ---
	case *command.ProtocolAdd:
		return batch, nil, c.premium.ProtocolAdd(e.AssetSymbol, e.ProtocolID, e.Agent, e.Manager)

	case *command.ProtocolUpdate:
		return batch, nil, c.premium.ProtocolUpdate(e.AssetSymbol, e.ProtocolID, e.Agent, e.Manager)

	case *command.ProtocolDeposit:
		settled, err := c.premium.Deposit(e.AssetSymbol, e.ProtocolID, e.Amount, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		c.appendSettlements(batch, e.AssetSymbol, settled)
		batch.Append(ledger.JournalTypeProtocolDeposit,
			ledger.NewProtocolAccountKey(e.ProtocolID, e.AssetSymbol),
			ledger.NewExternalAccountKey(e.AssetSymbol, ledger.SubTypeExternalDeposits),
			e.Amount)
		effects := []state.Effect{{
			Kind: state.EffectTransferIn, Asset: e.AssetSymbol, Account: e.From, Amount: e.Amount,
		}}
		return batch, effects, nil

	case *command.ProtocolWithdraw:
		res, err := c.premium.Withdraw(e.AssetSymbol, e.ProtocolID, e.Amount, e.Receiver, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		c.appendSettlements(batch, e.AssetSymbol, res.Settled)
		batch.Append(ledger.JournalTypeProtocolWithdrawal,
			ledger.NewExternalAccountKey(e.AssetSymbol, ledger.SubTypeExternalWithdrawals),
			ledger.NewProtocolAccountKey(e.ProtocolID, e.AssetSymbol),
			res.Amount)
		return batch, res.Effects, nil

	case *command.SetPremium:
		settled, err := c.setPremiums(e.AssetSymbol,
			[]uuid.UUID{e.ProtocolID}, []*uint256.Int{e.PremiumPerBlock}, e.UsdPrice, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		c.appendSettlements(batch, e.AssetSymbol, settled)
		return batch, nil, nil

	case *command.SetPremiums:
		settled, err := c.setPremiums(e.AssetSymbol, e.ProtocolIDs, e.PremiumsPerBlock, e.UsdPrice, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		c.appendSettlements(batch, e.AssetSymbol, settled)
		return batch, nil, nil

	case *command.PayOffDebtAll:
		settled, err := c.premium.SettleDebt(e.AssetSymbol, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		c.appendSettlements(batch, e.AssetSymbol, settled)
		return batch, nil, nil

	case *command.CleanProtocol:
		res, err := c.premium.Clean(e.AssetSymbol, e.ProtocolID, e.ExpectedIndex, e.Force, e.Receiver, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		c.appendSettlements(batch, e.AssetSymbol, res.Settled)
		batch.Append(ledger.JournalTypeProtocolRefund,
			ledger.NewExternalAccountKey(e.AssetSymbol, ledger.SubTypeExternalWithdrawals),
			ledger.NewProtocolAccountKey(e.ProtocolID, e.AssetSymbol),
			res.Refund)
		return batch, res.Effects, nil

	// --- SherX ---
	case *command.SetWeights:
		return batch, nil, c.emission.SetWeights(e.Assets, e.Weights, e.BeneficiaryWeight, e.Beneficiary, e.AtBlock)

	case *command.SetTokenPrice:
		return batch, nil, c.emission.SetTokenPrice(e.AssetSymbol, e.UsdPrice, e.AtBlock)

	case *command.Harvest:
		account := e.Account
		if account == uuid.Nil {
			account = e.From
		}
		_, err := c.emission.Harvest(account, e.AssetSymbols, e.AtBlock)
		return batch, nil, err

	case *command.SherXTransfer:
		return batch, nil, c.st.Derivative.Transfer(e.From, e.To, e.Amount)

	case *command.SherXApprove:
		return batch, nil, c.st.Derivative.Approve(e.From, e.Spender, e.Amount)

	case *command.SherXTransferFrom:
		return batch, nil, c.st.Derivative.TransferFrom(e.From, e.Owner, e.To, e.Amount)

	// --- Payout ---
	case *command.Payout:
		res, err := c.payout.Execute(e.Receiver, e.AssetSymbols,
			e.FirstMoneyOut, e.StakerPoolAmounts, e.UnallocatedAmounts, e.ExcludedAsset, e.AtBlock)
		if err != nil {
			return nil, nil, err
		}
		for _, leg := range res.Legs {
			payouts := ledger.NewExternalAccountKey(leg.Asset, ledger.SubTypeExternalPayouts)
			batch.Append(ledger.JournalTypePayoutFirstMoneyOut, payouts,
				ledger.NewPoolAccountKey(leg.Asset, ledger.SubTypeFirstMoneyOut), leg.FirstMoneyOut)
			batch.Append(ledger.JournalTypePayoutStakersPool, payouts,
				ledger.NewPoolAccountKey(leg.Asset, ledger.SubTypeStakersPool), leg.StakersPool)
			batch.Append(ledger.JournalTypePayoutUnallocated, payouts,
				ledger.NewPoolAccountKey(leg.Asset, ledger.SubTypeStakersPool), leg.Redistributed)
		}
		return batch, res.Effects, nil

	// --- Governance parameters ---
	case *command.SetCooldownFee:
		return batch, nil, c.gov.SetCooldownFee(e.AssetSymbol, e.FeeBps)

	case *command.SetCooldownDuration:
		c.gov.SetCooldownDuration(e.Blocks)
		return batch, nil, nil

	case *command.SetUnstakeWindow:
		c.gov.SetUnstakeWindow(e.Blocks)
		return batch, nil, nil

	case *command.SetStrategy:
		return batch, nil, c.gov.SetStrategy(e.AssetSymbol, e.StrategyID)

	case *command.StrategyDeposit:
		_, effects, err := c.gov.StrategyDeposit(e.AssetSymbol, e.Amount)
		return batch, effects, err

	case *command.StrategyWithdraw:
		_, effects, err := c.gov.StrategyWithdraw(e.AssetSymbol, e.Amount)
		return batch, effects, err

	default:
		return nil, nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// setPremiums runs the rate-change pipeline shared by the single and batched
// setters: accrue emission at the old rates, settle debt, apply the new
// rates, rederive the emission rate from the new premium table.
func (c *DeterministicCore) setPremiums(asset string, ids []uuid.UUID, rates []*uint256.Int, usdPrice *uint256.Int, now uint64) ([]state.DebtSettlement, error) {
	c.emission.Accrue(now)
	settled, err := c.premium.SetPremiums(asset, ids, rates, usdPrice, now)
	if err != nil {
		return nil, err
	}
	if err := c.emission.RecomputeRate(); err != nil {
		return nil, err
	}
	return settled, nil
}

// appendSettlements adds one debt-settlement journal per settled protocol.
func (c *DeterministicCore) appendSettlements(batch *ledger.Batch, asset string, settled []state.DebtSettlement) {
	fmo := ledger.NewPoolAccountKey(asset, ledger.SubTypeFirstMoneyOut)
	for _, s := range settled {
		batch.Append(ledger.JournalTypeDebtSettlement, fmo,
			ledger.NewProtocolAccountKey(s.ProtocolID, asset), s.Paid)
		if c.metrics != nil && !s.Shortfall.IsZero() {
			c.metrics.PremiumShortfalls.WithLabelValues(asset).Inc()
		}
	}
	if c.metrics != nil && len(settled) > 0 {
		c.metrics.PremiumSettlements.WithLabelValues(asset).Inc()
	}
}

// computeStateDigest creates canonical bytes for the state hash from the
// audited balances the batch touched.
func (c *DeterministicCore) computeStateDigest(batch *ledger.Batch) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		// Balance as sign byte + length-prefixed magnitude
		digest = appendBigInt(digest, balance)
	}

	return digest
}

func appendBigInt(buf []byte, v *big.Int) []byte {
	if v.Sign() < 0 {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	mag := v.Bytes()
	buf = append(buf, byte(len(mag)))
	return append(buf, mag...)
}

// postCheckInvariants validates invariants after batch application
func (c *DeterministicCore) postCheckInvariants(cmd command.Command) error {
	// Aggregate/audit cross-check for the touched asset: the engine's own
	// uint256 aggregates and the signed audit balances must agree exactly.
	if assetPtr := cmd.Asset(); assetPtr != nil {
		asset := *assetPtr
		if p, ok := c.st.Pools[asset]; ok {
			if err := p.CheckBalanceInvariant(); err != nil {
				return err
			}
			if !c.balanceTracker.MatchesPoolAggregate(
				ledger.NewPoolAccountKey(asset, ledger.SubTypeStakersPool), p.StakersPool) {
				return fmt.Errorf("stakers pool aggregate mismatch for %s: state=%s audit=%s",
					asset, p.StakersPool.Dec(), c.balanceTracker.StakersPoolBalance(asset))
			}
			if !c.balanceTracker.MatchesPoolAggregate(
				ledger.NewPoolAccountKey(asset, ledger.SubTypeFirstMoneyOut), p.FirstMoneyOut) {
				return fmt.Errorf("first-money-out aggregate mismatch for %s: state=%s audit=%s",
					asset, p.FirstMoneyOut.Dec(), c.balanceTracker.FirstMoneyOutBalance(asset))
			}
			if err := c.validator.ValidatePoolNonNegative(asset); err != nil {
				return err
			}
		}
	}

	// Payout touches many assets; verify every aggregate it may have moved.
	if _, ok := cmd.(*command.Payout); ok {
		for asset, p := range c.st.Pools {
			if err := p.CheckBalanceInvariant(); err != nil {
				return err
			}
			if !c.balanceTracker.MatchesPoolAggregate(
				ledger.NewPoolAccountKey(asset, ledger.SubTypeStakersPool), p.StakersPool) {
				return fmt.Errorf("stakers pool aggregate mismatch for %s after payout", asset)
			}
		}
		return c.validator.ValidateConservation()
	}

	// Periodic global zero-sum conservation check
	if c.sequence > 0 && c.sequence%1000 == 0 {
		return c.validator.ValidateConservation()
	}

	return nil
}

func (c *DeterministicCore) recordDomainMetrics(cmd command.Command) {
	switch e := cmd.(type) {
	case *command.Stake:
		c.metrics.StakeDeposits.WithLabelValues(e.AssetSymbol).Inc()
	case *command.ActivateCooldown:
		c.metrics.CooldownsOpened.WithLabelValues(e.AssetSymbol).Inc()
	case *command.Unstake:
		c.metrics.UnstakeWithdraws.WithLabelValues(e.AssetSymbol).Inc()
	case *command.UnstakeWindowExpiry:
		c.metrics.CooldownsExpired.WithLabelValues(e.AssetSymbol).Inc()
	case *command.Harvest:
		for _, asset := range e.AssetSymbols {
			c.metrics.SherXHarvests.WithLabelValues(asset).Inc()
		}
	case *command.Payout:
		c.metrics.PayoutsExecuted.Inc()
	case *command.CleanProtocol:
		c.metrics.ProtocolsCleaned.WithLabelValues(e.AssetSymbol).Inc()
	}

	if asset := cmd.Asset(); asset != nil {
		if p, ok := c.st.Pools[*asset]; ok {
			c.metrics.PoolTotalShares.WithLabelValues(*asset).Set(f64(p.TotalShares))
			c.metrics.PoolStakersPool.WithLabelValues(*asset).Set(f64(p.StakersPool))
			c.metrics.PoolFirstMoneyOut.WithLabelValues(*asset).Set(f64(p.FirstMoneyOut))
			c.metrics.ProtocolsActive.WithLabelValues(*asset).Set(float64(p.ActivePremiums))
		}
	}
	c.metrics.SherXInternalSupply.Set(f64(c.st.Derivative.InternalTotalSupply))
	c.metrics.DedupLRUSize.Set(float64(c.idempotency.lru.Size()))
}

func journalTypeName(jt ledger.JournalType) string {
	switch jt {
	case ledger.JournalTypeStakeDeposit:
		return "stake_deposit"
	case ledger.JournalTypeUnstakeWithdrawal:
		return "unstake_withdrawal"
	case ledger.JournalTypeCooldownFee:
		return "cooldown_fee"
	case ledger.JournalTypeProtocolDeposit:
		return "protocol_deposit"
	case ledger.JournalTypeProtocolWithdrawal:
		return "protocol_withdrawal"
	case ledger.JournalTypeProtocolRefund:
		return "protocol_refund"
	case ledger.JournalTypeDebtSettlement:
		return "debt_settlement"
	case ledger.JournalTypePayoutFirstMoneyOut:
		return "payout_first_money_out"
	case ledger.JournalTypePayoutStakersPool:
		return "payout_stakers_pool"
	case ledger.JournalTypePayoutUnallocated:
		return "payout_unallocated"
	case ledger.JournalTypeUnloadSweep:
		return "unload_sweep"
	default:
		return "unknown"
	}
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Balances        map[ledger.AccountKey]*big.Int
	Domain          *state.State
	Partitions      map[string]int64
	LastBlock       uint64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state from a snapshot.
// On warm restart, load the latest snapshot then replay the command log.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign

	c.hasher.SetPrevHash(snap.StateHash)

	for key, balance := range snap.Balances {
		c.balanceTracker.SetBalance(key, balance)
	}

	if snap.Domain != nil {
		*c.st = *snap.Domain
	}

	for partition, nextSeq := range snap.Partitions {
		c.blockValidator.SetExpectedSequence(partition, nextSeq)
	}
	c.blockValidator.SetLastBlock(snap.LastBlock)
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently applied commands.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number.
func (c *DeterministicCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// State exposes the domain aggregate for read-model bootstrapping and tests.
// Callers must treat it as read-only; only Process mutates.
func (c *DeterministicCore) State() *state.State {
	return c.st
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		Balances:        c.balanceTracker.Snapshot(),
		Domain:          c.st,
		Partitions:      c.blockValidator.GetAllPartitions(),
		LastBlock:       c.blockValidator.LastBlock(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
