package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
)

// PremiumManager implements protocol coverage: prepaid balances, per-block
// premium rates, and lazy debt settlement. Debt never accrues in storage —
// it is a pure function of the current block, settled atomically into
// first-money-out whenever a rate changes, a balance moves, or settlement is
// requested explicitly.
type PremiumManager struct {
	st *State
}

func NewPremiumManager(st *State) *PremiumManager {
	return &PremiumManager{st: st}
}

// DebtSettlement is one protocol's share of a settlement pass.
type DebtSettlement struct {
	ProtocolID uuid.UUID
	Paid       *uint256.Int
	Shortfall  *uint256.Int // accrued beyond the prepaid balance
}

// ProtocolAdd registers a covered protocol on an asset.
func (m *PremiumManager) ProtocolAdd(asset string, protocolID, agent, manager uuid.UUID) error {
	if protocolID == uuid.Nil {
		return errArg(ReasonZeroAddress, "protocol id")
	}
	p, err := m.st.PremiumPool(asset)
	if err != nil {
		return err
	}
	if _, ok := p.Protocols[protocolID]; ok {
		return errState(ReasonProtocolExists, "protocol %s on %s", protocolID, asset)
	}
	p.Protocols[protocolID] = &Coverage{
		ProtocolID:      protocolID,
		Agent:           agent,
		Manager:         manager,
		PremiumPerBlock: new(uint256.Int),
		Balance:         new(uint256.Int),
		UnpaidDebt:      new(uint256.Int),
	}
	p.ProtocolList = append(p.ProtocolList, protocolID)
	return nil
}

// ProtocolUpdate rebinds agent/manager identities.
func (m *PremiumManager) ProtocolUpdate(asset string, protocolID, agent, manager uuid.UUID) error {
	cov, _, err := m.coverage(asset, protocolID)
	if err != nil {
		return err
	}
	if agent != uuid.Nil {
		cov.Agent = agent
	}
	if manager != uuid.Nil {
		cov.Manager = manager
	}
	return nil
}

func (m *PremiumManager) coverage(asset string, protocolID uuid.UUID) (*Coverage, *AssetPool, error) {
	p, err := m.st.Pool(asset)
	if err != nil {
		return nil, nil, err
	}
	cov, ok := p.Protocols[protocolID]
	if !ok {
		return nil, nil, errState(ReasonProtocolUnknown, "protocol %s on %s", protocolID, asset)
	}
	return cov, p, nil
}

// SettleDebt runs one settlement pass over the whole asset: every accruing
// protocol pays rate·Δblocks into first-money-out, capped at its prepaid
// balance. Exactly one pass per asset per call, regardless of how many
// rates change afterwards.
func (m *PremiumManager) SettleDebt(asset string, now uint64) ([]DebtSettlement, error) {
	p, err := m.st.Pool(asset)
	if err != nil {
		return nil, err
	}
	return m.settle(p, now), nil
}

func (m *PremiumManager) settle(p *AssetPool, now uint64) []DebtSettlement {
	if now <= p.PremiumLastPaidBlock {
		return nil
	}
	delta := uint256.NewInt(now - p.PremiumLastPaidBlock)
	p.PremiumLastPaidBlock = now

	var out []DebtSettlement
	for _, pid := range p.ProtocolList {
		cov := p.Protocols[pid]
		if cov.PremiumPerBlock.IsZero() {
			continue
		}
		debt := new(uint256.Int).Mul(cov.PremiumPerBlock, delta)
		paid := new(uint256.Int).Set(debt)
		shortfall := new(uint256.Int)
		if cov.Balance.Lt(debt) {
			paid.Set(cov.Balance)
			shortfall.Sub(debt, cov.Balance)
			if cov.UnpaidDebt == nil {
				cov.UnpaidDebt = new(uint256.Int)
			}
			cov.UnpaidDebt.Add(cov.UnpaidDebt, shortfall)
		}
		cov.Balance.Sub(cov.Balance, paid)
		p.FirstMoneyOut.Add(p.FirstMoneyOut, paid)
		out = append(out, DebtSettlement{ProtocolID: pid, Paid: paid, Shortfall: shortfall})
	}
	return out
}

// Deposit adds to a protocol's prepaid balance, settling the asset first.
func (m *PremiumManager) Deposit(asset string, protocolID uuid.UUID, amt *uint256.Int, now uint64) ([]DebtSettlement, error) {
	if amt == nil || amt.IsZero() {
		return nil, errArg(ReasonZeroAmount, "deposit amount")
	}
	cov, p, err := m.coverage(asset, protocolID)
	if err != nil {
		return nil, err
	}
	settled := m.settle(p, now)
	cov.Balance.Add(cov.Balance, amt)
	return settled, nil
}

// WithdrawResult reports the actual amount paid out (resolves the MAX
// sentinel).
type WithdrawResult struct {
	Amount  *uint256.Int
	Settled []DebtSettlement
	Effects []Effect
}

// Withdraw removes from a protocol's prepaid balance after settling. The
// all-ones sentinel withdraws the full remaining balance.
func (m *PremiumManager) Withdraw(asset string, protocolID uuid.UUID, amt *uint256.Int, receiver uuid.UUID, now uint64) (*WithdrawResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, errArg(ReasonZeroAmount, "withdraw amount")
	}
	if receiver == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "withdraw receiver")
	}
	cov, p, err := m.coverage(asset, protocolID)
	if err != nil {
		return nil, err
	}

	// Settlement must run before the available balance is known.
	settled := m.settle(p, now)

	take := new(uint256.Int).Set(amt)
	if amount.IsMax(amt) {
		take.Set(cov.Balance)
	} else if cov.Balance.Lt(take) {
		return nil, errState(ReasonInsufficient,
			"protocol %s balance %s below %s", protocolID, cov.Balance.Dec(), take.Dec())
	}
	cov.Balance.Sub(cov.Balance, take)

	res := &WithdrawResult{Amount: take, Settled: settled}
	if !take.IsZero() {
		res.Effects = append(res.Effects, Effect{
			Kind: EffectTransferOut, Asset: asset, Account: receiver, Amount: new(uint256.Int).Set(take),
		})
	}
	return res, nil
}

// SetPremiums applies new premium rates for one or more protocols on one
// asset, after a single settlement pass at the old rates. A non-nil price
// updates the injected USD price. The caller (core) accrues emission before
// and recomputes the emission rate after.
func (m *PremiumManager) SetPremiums(asset string, protocolIDs []uuid.UUID, rates []*uint256.Int, usdPrice *uint256.Int, now uint64) ([]DebtSettlement, error) {
	if len(protocolIDs) == 0 || len(protocolIDs) != len(rates) {
		return nil, errArg(ReasonLengthMismatch, "%d protocols vs %d rates", len(protocolIDs), len(rates))
	}
	p, err := m.st.PremiumPool(asset)
	if err != nil {
		return nil, err
	}
	for _, pid := range protocolIDs {
		if _, ok := p.Protocols[pid]; !ok {
			return nil, errState(ReasonProtocolUnknown, "protocol %s on %s", pid, asset)
		}
	}

	settled := m.settle(p, now)

	for i, pid := range protocolIDs {
		cov := p.Protocols[pid]
		rate := rates[i]
		if rate == nil {
			rate = new(uint256.Int)
		}
		wasActive := !cov.PremiumPerBlock.IsZero()
		isActive := !rate.IsZero()

		p.TotalPremiumPerBlock.Sub(p.TotalPremiumPerBlock, cov.PremiumPerBlock)
		p.TotalPremiumPerBlock.Add(p.TotalPremiumPerBlock, rate)
		cov.PremiumPerBlock = new(uint256.Int).Set(rate)

		switch {
		case isActive && !wasActive:
			p.ActivePremiums++
		case !isActive && wasActive:
			p.ActivePremiums--
		}
	}
	if usdPrice != nil {
		p.UsdPrice = new(uint256.Int).Set(usdPrice)
	}
	return settled, nil
}

// CleanResult reports the refund performed by Clean.
type CleanResult struct {
	Refund  *uint256.Int
	Settled []DebtSettlement
	Effects []Effect
}

// Clean removes a protocol from an asset's coverage, refunding its remaining
// prepaid balance. A protocol that underpaid its settled debt needs
// force=true; a still-nonzero rate blocks removal outright — zero the rate
// (settling in the process) before cleaning.
func (m *PremiumManager) Clean(asset string, protocolID uuid.UUID, expectedIndex int, force bool, receiver uuid.UUID, now uint64) (*CleanResult, error) {
	if receiver == uuid.Nil {
		return nil, errArg(ReasonZeroAddress, "clean receiver")
	}
	cov, p, err := m.coverage(asset, protocolID)
	if err != nil {
		return nil, err
	}
	if expectedIndex < 0 || expectedIndex >= len(p.ProtocolList) || p.ProtocolList[expectedIndex] != protocolID {
		return nil, errState(ReasonIndex, "protocol %s not at index %d", protocolID, expectedIndex)
	}

	if !cov.PremiumPerBlock.IsZero() {
		return nil, errGuard(ReasonCanNotDelete2, "protocol %s still accruing at %s/block", protocolID, cov.PremiumPerBlock.Dec())
	}

	settled := m.settle(p, now)
	if !force && cov.UnpaidDebt != nil && !cov.UnpaidDebt.IsZero() {
		return nil, errGuard(ReasonCanNotDelete, "protocol %s settled short by %s", protocolID, cov.UnpaidDebt.Dec())
	}

	refund := new(uint256.Int).Set(cov.Balance)
	cov.Balance.Clear()

	last := len(p.ProtocolList) - 1
	p.ProtocolList[expectedIndex] = p.ProtocolList[last]
	p.ProtocolList = p.ProtocolList[:last]
	delete(p.Protocols, protocolID)

	res := &CleanResult{Refund: refund, Settled: settled}
	if !refund.IsZero() {
		res.Effects = append(res.Effects, Effect{
			Kind: EffectTransferOut, Asset: asset, Account: receiver, Amount: new(uint256.Int).Set(refund),
		})
	}
	return res, nil
}
