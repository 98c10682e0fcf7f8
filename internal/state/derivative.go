package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// DerivativeLedger is the fungible ledger for the protocol-wide claim token.
// TotalSupply counts minted (harvested) tokens; InternalTotalSupply adds the
// accrued-but-unminted portion so payout accounting can value the whole
// claim. InternalSettledAtBlock marks the last point the unminted portion
// was folded into payout accounting.
type DerivativeLedger struct {
	TotalSupply         *uint256.Int
	InternalTotalSupply *uint256.Int

	Balances    map[uuid.UUID]*uint256.Int
	Allowances  map[uuid.UUID]map[uuid.UUID]*uint256.Int
	AccountList []uuid.UUID

	InternalSettledAtBlock uint64
}

func NewDerivativeLedger() *DerivativeLedger {
	return &DerivativeLedger{
		TotalSupply:         new(uint256.Int),
		InternalTotalSupply: new(uint256.Int),
		Balances:            make(map[uuid.UUID]*uint256.Int),
		Allowances:          make(map[uuid.UUID]map[uuid.UUID]*uint256.Int),
	}
}

// BalanceOf returns a copy of an account's minted balance.
func (d *DerivativeLedger) BalanceOf(account uuid.UUID) *uint256.Int {
	if b, ok := d.Balances[account]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Allowance returns a copy of the spender allowance.
func (d *DerivativeLedger) Allowance(owner, spender uuid.UUID) *uint256.Int {
	if m, ok := d.Allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(uint256.Int).Set(a)
		}
	}
	return new(uint256.Int)
}

// Unminted returns the accrued-but-unharvested supply.
func (d *DerivativeLedger) Unminted() *uint256.Int {
	return new(uint256.Int).Sub(d.InternalTotalSupply, d.TotalSupply)
}

func (d *DerivativeLedger) credit(account uuid.UUID, amt *uint256.Int) {
	b, ok := d.Balances[account]
	if !ok {
		b = new(uint256.Int)
		d.Balances[account] = b
		d.AccountList = append(d.AccountList, account)
	}
	b.Add(b, amt)
}

// Mint converts unminted accrual into an account balance.
func (d *DerivativeLedger) Mint(account uuid.UUID, amt *uint256.Int) {
	d.TotalSupply.Add(d.TotalSupply, amt)
	d.credit(account, amt)
}

// Transfer moves minted balance between accounts.
func (d *DerivativeLedger) Transfer(from, to uuid.UUID, amt *uint256.Int) error {
	if amt == nil || amt.IsZero() {
		return errArg(ReasonZeroAmount, "transfer amount")
	}
	if to == uuid.Nil {
		return errArg(ReasonZeroAddress, "transfer receiver")
	}
	b, ok := d.Balances[from]
	if !ok || b.Lt(amt) {
		return errState(ReasonInsufficient, "derivative balance of %s", from)
	}
	b.Sub(b, amt)
	d.credit(to, amt)
	return nil
}

// Approve sets a spender allowance.
func (d *DerivativeLedger) Approve(owner, spender uuid.UUID, amt *uint256.Int) error {
	if spender == uuid.Nil {
		return errArg(ReasonZeroAddress, "approve spender")
	}
	m, ok := d.Allowances[owner]
	if !ok {
		m = make(map[uuid.UUID]*uint256.Int)
		d.Allowances[owner] = m
	}
	m[spender] = new(uint256.Int).Set(amt)
	return nil
}

// TransferFrom spends an allowance to move balance.
func (d *DerivativeLedger) TransferFrom(spender, owner, to uuid.UUID, amt *uint256.Int) error {
	if amt == nil || amt.IsZero() {
		return errArg(ReasonZeroAmount, "transfer amount")
	}
	allowance := d.Allowance(owner, spender)
	if allowance.Lt(amt) {
		return errState(ReasonInsufficient, "allowance of %s for %s", owner, spender)
	}
	if err := d.Transfer(owner, to, amt); err != nil {
		return err
	}
	d.Allowances[owner][spender] = allowance.Sub(allowance, amt)
	return nil
}
