package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
)

// PayoutManager executes the loss waterfall. A payout is atomic across every
// listed asset: the whole request is validated and priced into a plan before
// the first balance moves, so a failing leg rejects the command with state
// untouched.
type PayoutManager struct {
	st       *State
	emission *EmissionManager
}

func NewPayoutManager(st *State, emission *EmissionManager) *PayoutManager {
	return &PayoutManager{st: st, emission: emission}
}

// PayoutLeg is the per-asset outcome: the two direct legs, the underlying
// drawn by the redistributed unallocated leg, and any capital pulled back
// from the strategy to cover the idle shortfall.
type PayoutLeg struct {
	Asset             string
	FirstMoneyOut     *uint256.Int
	StakersPool       *uint256.Int
	Redistributed     *uint256.Int
	StrategyWithdrawn *uint256.Int
}

// Total returns the underlying paid out of the asset.
func (l *PayoutLeg) Total() *uint256.Int {
	t := new(uint256.Int).Add(l.FirstMoneyOut, l.StakersPool)
	return t.Add(t, l.Redistributed)
}

// PayoutResult is the applied plan.
type PayoutResult struct {
	Legs []*PayoutLeg
	// UnallocatedSherX is the total derivative accrual burned by the third
	// leg; UsdValue is what it was worth at execution.
	UnallocatedSherX *uint256.Int
	UsdValue         *uint256.Int
	Effects          []Effect
}

type payoutPlan struct {
	receiver uuid.UUID
	now      uint64

	legs    map[string]*PayoutLeg
	order   []string
	unalloc map[string]*uint256.Int // SherX debited per listed asset

	totalUnalloc *uint256.Int
	usdValue     *uint256.Int
}

// Execute validates, prices and applies a payout at block now.
func (m *PayoutManager) Execute(receiver uuid.UUID, assets []string, fmo, staker, unalloc []*uint256.Int, excluded string, now uint64) (*PayoutResult, error) {
	// Accrual is time passing, not part of the payout mutation. It must run
	// first so the unallocated accumulators are current.
	m.emission.Accrue(now)

	plan, err := m.buildPlan(receiver, assets, fmo, staker, unalloc, excluded, now)
	if err != nil {
		return nil, err
	}
	return m.apply(plan), nil
}

func (m *PayoutManager) buildPlan(receiver uuid.UUID, assets []string, fmo, staker, unalloc []*uint256.Int, excluded string, now uint64) (*payoutPlan, error) {
	if receiver == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "payout receiver")
	}
	n := len(assets)
	if n == 0 || len(fmo) != n || len(staker) != n || len(unalloc) != n {
		return nil, errArg(ReasonLengthMismatch,
			"%d assets vs %d/%d/%d amounts", n, len(fmo), len(staker), len(unalloc))
	}

	plan := &payoutPlan{
		receiver:     receiver,
		now:          now,
		legs:         make(map[string]*PayoutLeg, n),
		unalloc:      make(map[string]*uint256.Int, n),
		totalUnalloc: new(uint256.Int),
		usdValue:     new(uint256.Int),
	}

	// Direct legs. First-money-out sits outside the stakers pool, so only
	// the staker legs count against the idle/deployed split.
	for i, asset := range assets {
		if _, dup := plan.legs[asset]; dup {
			return nil, errArg(ReasonIndex, "asset %s listed twice", asset)
		}
		p, err := m.st.Pool(asset)
		if err != nil {
			return nil, err
		}
		f := amount.Clone(fmo[i])
		s := amount.Clone(staker[i])
		u := amount.Clone(unalloc[i])

		if p.FirstMoneyOut.Lt(f) {
			return nil, errState(ReasonInsufficient,
				"%s first-money-out %s below %s", asset, p.FirstMoneyOut.Dec(), f.Dec())
		}
		if p.StakersPool.Lt(s) {
			return nil, errState(ReasonInsufficient,
				"%s stakers pool %s below %s", asset, p.StakersPool.Dec(), s.Dec())
		}
		if p.UnallocatedSherX.Lt(u) {
			return nil, errGuard(ReasonUnallocFee,
				"%s unallocated %s below %s", asset, p.UnallocatedSherX.Dec(), u.Dec())
		}

		plan.legs[asset] = &PayoutLeg{
			Asset:             asset,
			FirstMoneyOut:     f,
			StakersPool:       s,
			Redistributed:     new(uint256.Int),
			StrategyWithdrawn: new(uint256.Int),
		}
		plan.order = append(plan.order, asset)
		plan.unalloc[asset] = u
		plan.totalUnalloc.Add(plan.totalUnalloc, u)
	}

	if !plan.totalUnalloc.IsZero() {
		if err := m.priceUnallocLeg(plan, excluded); err != nil {
			return nil, err
		}
	}

	// Idle-funds discipline: a payout may outrun the idle balance, in which
	// case the shortfall is pulled back from the strategy.
	for _, asset := range plan.order {
		leg := plan.legs[asset]
		p := m.st.Pools[asset]
		need := new(uint256.Int).Add(leg.StakersPool, leg.Redistributed)
		if p.Unactivated.Lt(need) {
			shortfall := new(uint256.Int).Sub(need, p.Unactivated)
			if p.StrategyID == uuid.Nil || p.StrategyDeployed.Lt(shortfall) {
				return nil, errState(ReasonInsufficientIdle,
					"%s idle %s + deployed %s below payout %s",
					asset, p.Unactivated.Dec(), p.StrategyDeployed.Dec(), need.Dec())
			}
			leg.StrategyWithdrawn = shortfall
		}
	}
	return plan, nil
}

// priceUnallocLeg converts the burned SherX into USD at the current price and
// spreads the draw across every active staking asset except the excluded one,
// proportional to USD-valued stakers-pool backing net of the direct legs.
func (m *PayoutManager) priceUnallocLeg(plan *payoutPlan, excluded string) error {
	usd, err := amount.UsdValue(plan.totalUnalloc, m.emission.SherXUsdPrice())
	if err != nil {
		return errArg(ReasonZeroAmount, "unallocated leg: %v", err)
	}
	plan.usdValue = usd
	if usd.IsZero() {
		return nil
	}

	type backing struct {
		asset string
		pool  *uint256.Int // post-direct-leg stakers pool
		usd   *uint256.Int
	}
	var targets []backing
	totalUsd := new(uint256.Int)
	for _, asset := range m.st.StakerList {
		if asset == excluded {
			continue
		}
		p := m.st.Pools[asset]
		if !p.StakingEnabled || p.UsdPrice.IsZero() {
			continue
		}
		net := new(uint256.Int).Set(p.StakersPool)
		if leg, ok := plan.legs[asset]; ok {
			net.Sub(net, leg.StakersPool)
		}
		if net.IsZero() {
			continue
		}
		v, err := amount.UsdValue(net, p.UsdPrice)
		if err != nil || v.IsZero() {
			continue
		}
		targets = append(targets, backing{asset: asset, pool: net, usd: v})
		totalUsd.Add(totalUsd, v)
	}
	if totalUsd.IsZero() {
		return errState(ReasonEmptySwap, "no staking backing for unallocated leg of %s usd", usd.Dec())
	}

	for _, t := range targets {
		portionUsd, err := amount.MulDiv(usd, t.usd, totalUsd)
		if err != nil {
			return errArg(ReasonZeroAmount, "unallocated split: %v", err)
		}
		tokens, err := amount.FromUsd(portionUsd, m.st.Pools[t.asset].UsdPrice)
		if err != nil {
			return errArg(ReasonZeroAmount, "unallocated split: %v", err)
		}
		if t.pool.Lt(tokens) {
			tokens = new(uint256.Int).Set(t.pool)
		}
		if tokens.IsZero() {
			continue
		}
		leg, ok := plan.legs[t.asset]
		if !ok {
			leg = &PayoutLeg{
				Asset:             t.asset,
				FirstMoneyOut:     new(uint256.Int),
				StakersPool:       new(uint256.Int),
				Redistributed:     new(uint256.Int),
				StrategyWithdrawn: new(uint256.Int),
			}
			plan.legs[t.asset] = leg
			plan.order = append(plan.order, t.asset)
		}
		leg.Redistributed = tokens
	}
	return nil
}

func (m *PayoutManager) apply(plan *payoutPlan) *PayoutResult {
	res := &PayoutResult{
		UnallocatedSherX: plan.totalUnalloc,
		UsdValue:         plan.usdValue,
	}
	for _, asset := range plan.order {
		leg := plan.legs[asset]
		p := m.st.Pools[asset]

		if !leg.StrategyWithdrawn.IsZero() {
			p.StrategyDeployed.Sub(p.StrategyDeployed, leg.StrategyWithdrawn)
			p.Unactivated.Add(p.Unactivated, leg.StrategyWithdrawn)
			res.Effects = append(res.Effects, Effect{
				Kind: EffectStrategyWithdraw, Asset: asset,
				Amount: new(uint256.Int).Set(leg.StrategyWithdrawn),
			})
		}

		p.FirstMoneyOut.Sub(p.FirstMoneyOut, leg.FirstMoneyOut)

		fromStakers := new(uint256.Int).Add(leg.StakersPool, leg.Redistributed)
		p.StakersPool.Sub(p.StakersPool, fromStakers)
		p.Unactivated.Sub(p.Unactivated, fromStakers)

		if u, ok := plan.unalloc[asset]; ok {
			p.UnallocatedSherX.Sub(p.UnallocatedSherX, u)
		}

		if total := leg.Total(); !total.IsZero() {
			res.Effects = append(res.Effects, Effect{
				Kind: EffectTransferOut, Asset: asset, Account: plan.receiver, Amount: total,
			})
		}
		res.Legs = append(res.Legs, leg)
	}

	if !plan.totalUnalloc.IsZero() {
		d := m.st.Derivative
		d.InternalTotalSupply.Sub(d.InternalTotalSupply, plan.totalUnalloc)
		m.st.Emission.UsdPool.Sub(m.st.Emission.UsdPool, plan.usdValue)
	}
	m.st.Derivative.InternalSettledAtBlock = plan.now
	return res
}
