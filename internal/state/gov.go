package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
)

// GovManager holds the governance parameter setters and the strategy sweeps.
// Authorization is the engine's concern; by the time these run the caller is
// already known to be the asset's governance.
type GovManager struct {
	st *State
}

func NewGovManager(st *State) *GovManager {
	return &GovManager{st: st}
}

// SetCooldownFee sets the basis-point fee charged on cooldown activation.
func (m *GovManager) SetCooldownFee(asset string, bps uint32) error {
	p, err := m.st.Pool(asset)
	if err != nil {
		return err
	}
	if bps > amount.BpsDenominator {
		return errArg(ReasonFee, "cooldown fee %d exceeds %d bps", bps, amount.BpsDenominator)
	}
	p.CooldownFeeBps = bps
	return nil
}

// SetCooldownDuration sets the global cooldown length in blocks.
func (m *GovManager) SetCooldownDuration(blocks uint64) {
	m.st.CooldownBlocks = blocks
}

// SetUnstakeWindow sets the global unstake-window length in blocks.
func (m *GovManager) SetUnstakeWindow(blocks uint64) {
	m.st.UnstakeWindowBlocks = blocks
}

// SetStrategy attaches, switches, or detaches (zero id) the yield strategy.
// Any change while capital is deployed is blocked; withdraw first.
func (m *GovManager) SetStrategy(asset string, strategyID uuid.UUID) error {
	p, err := m.st.Pool(asset)
	if err != nil {
		return err
	}
	if p.StrategyID == strategyID {
		return nil
	}
	if !p.StrategyDeployed.IsZero() {
		return errGuard(ReasonActiveStrategy,
			"%s has %s deployed", asset, p.StrategyDeployed.Dec())
	}
	p.StrategyID = strategyID
	return nil
}

// StrategyDeposit sweeps idle capital into the attached strategy. The
// all-ones sentinel sweeps the full idle balance.
func (m *GovManager) StrategyDeposit(asset string, amt *uint256.Int) (*uint256.Int, []Effect, error) {
	if amt == nil || amt.IsZero() {
		return nil, nil, errArg(ReasonZeroAmount, "strategy deposit amount")
	}
	p, err := m.st.Pool(asset)
	if err != nil {
		return nil, nil, err
	}
	if p.StrategyID == uuid.Nil {
		return nil, nil, errState(ReasonNoStrategy, "asset %s", asset)
	}
	take := new(uint256.Int).Set(amt)
	if amount.IsMax(amt) {
		take.Set(p.Unactivated)
	} else if p.Unactivated.Lt(take) {
		return nil, nil, errState(ReasonInsufficientIdle,
			"%s idle %s below %s", asset, p.Unactivated.Dec(), take.Dec())
	}
	if take.IsZero() {
		return nil, nil, errArg(ReasonZeroAmount, "nothing idle to deploy")
	}
	p.Unactivated.Sub(p.Unactivated, take)
	p.StrategyDeployed.Add(p.StrategyDeployed, take)
	effects := []Effect{{Kind: EffectStrategyDeposit, Asset: asset, Amount: new(uint256.Int).Set(take)}}
	return take, effects, nil
}

// StrategyWithdraw pulls deployed capital back to idle. The all-ones
// sentinel withdraws everything.
func (m *GovManager) StrategyWithdraw(asset string, amt *uint256.Int) (*uint256.Int, []Effect, error) {
	if amt == nil || amt.IsZero() {
		return nil, nil, errArg(ReasonZeroAmount, "strategy withdraw amount")
	}
	p, err := m.st.Pool(asset)
	if err != nil {
		return nil, nil, err
	}
	if p.StrategyID == uuid.Nil {
		return nil, nil, errState(ReasonNoStrategy, "asset %s", asset)
	}
	take := new(uint256.Int).Set(amt)
	if amount.IsMax(amt) {
		take.Set(p.StrategyDeployed)
	} else if p.StrategyDeployed.Lt(take) {
		return nil, nil, errState(ReasonInsufficient,
			"%s deployed %s below %s", asset, p.StrategyDeployed.Dec(), take.Dec())
	}
	if take.IsZero() {
		return nil, nil, errArg(ReasonZeroAmount, "nothing deployed to withdraw")
	}
	p.StrategyDeployed.Sub(p.StrategyDeployed, take)
	p.Unactivated.Add(p.Unactivated, take)
	effects := []Effect{{Kind: EffectStrategyWithdraw, Asset: asset, Amount: new(uint256.Int).Set(take)}}
	return take, effects, nil
}
