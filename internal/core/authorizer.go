package core

import (
	"github.com/google/uuid"

	"SherPool/internal/command"
	"SherPool/internal/state"
)

// Authorizer gates every command on the caller identity it carries. There
// are three tiers: the root governance identity (token lifecycle, payout,
// emission table, global parameters), the per-asset governance bound at
// tokenInit, and protocol agents for their own prepaid balance. Staking,
// deposits, harvests and window expiry are permissionless.
type Authorizer struct {
	st         *state.State
	governance uuid.UUID
}

func NewAuthorizer(st *state.State, governance uuid.UUID) *Authorizer {
	return &Authorizer{st: st, governance: governance}
}

// Authorize returns a reason-coded error when the caller may not run cmd.
func (a *Authorizer) Authorize(cmd command.Command) error {
	caller := cmd.Caller()

	switch c := cmd.(type) {
	// Permissionless entry points.
	case *command.Stake, *command.ActivateCooldown, *command.CancelCooldown,
		*command.Unstake, *command.UnstakeWindowExpiry,
		*command.ProtocolDeposit, *command.Harvest,
		*command.SherXTransfer, *command.SherXApprove, *command.SherXTransferFrom:
		return nil

	// Protocol agent (or governance) moves the prepaid balance.
	case *command.ProtocolWithdraw:
		if a.isGov(caller, c.AssetSymbol) {
			return nil
		}
		if cov := a.coverage(c.AssetSymbol, c.ProtocolID); cov != nil && caller == cov.Agent {
			return nil
		}
		return a.deny(caller)

	// Global governance only.
	case *command.SetWeights, *command.Payout,
		*command.SetCooldownDuration, *command.SetUnstakeWindow:
		if caller == a.governance {
			return nil
		}
		return a.deny(caller)

	// tokenInit creates the pool, so there is no asset governance yet.
	case *command.TokenInit:
		if caller == a.governance {
			return nil
		}
		return a.deny(caller)
	}

	// Everything else is asset-scoped governance.
	if asset := cmd.Asset(); asset != nil {
		if a.isGov(caller, *asset) {
			return nil
		}
	}
	return a.deny(caller)
}

func (a *Authorizer) isGov(caller uuid.UUID, asset string) bool {
	if caller == a.governance {
		return true
	}
	if p, ok := a.st.Pools[asset]; ok {
		return caller != uuid.Nil && caller == p.GovAddress
	}
	return false
}

func (a *Authorizer) coverage(asset string, protocolID uuid.UUID) *state.Coverage {
	p, ok := a.st.Pools[asset]
	if !ok {
		return nil
	}
	return p.Protocols[protocolID]
}

func (a *Authorizer) deny(caller uuid.UUID) error {
	return &state.Error{
		Reason: state.ReasonUnauthorized,
		Class:  state.ClassGuard,
		Detail: "caller " + caller.String(),
	}
}
