package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	// AccountScopePool is the per-asset aggregate namespace
	AccountScopePool AccountScope = iota
	// AccountScopeProtocol holds covered protocols' prepaid premium balances
	AccountScopeProtocol
	// AccountScopeExternal is the boundary with the outside world
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Pool sub-types
	SubTypeStakersPool AccountSubType = iota
	SubTypeFirstMoneyOut

	// Protocol sub-types
	SubTypePremiumBalance

	// External sub-types
	SubTypeExternalDeposits
	SubTypeExternalWithdrawals
	SubTypeExternalPayouts
)

// AccountKey is the in-memory key for audit balance tracking. Asset symbols
// are governance-curated and bounded, so the key carries the symbol directly
// rather than a numeric id table.
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // protocol id for protocol accounts, zero otherwise
	SubType  AccountSubType
	Asset    string
}

// NewPoolAccountKey creates a key for a per-asset aggregate account
func NewPoolAccountKey(asset string, subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:   AccountScopePool,
		SubType: subType,
		Asset:   asset,
	}
}

// NewProtocolAccountKey creates a key for a protocol's prepaid balance
func NewProtocolAccountKey(protocolID uuid.UUID, asset string) AccountKey {
	return AccountKey{
		Scope:    AccountScopeProtocol,
		EntityID: protocolID,
		SubType:  SubTypePremiumBalance,
		Asset:    asset,
	}
}

// NewExternalAccountKey creates a key for a boundary account
func NewExternalAccountKey(asset string, subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		Asset:   asset,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopePool:
		return fmt.Sprintf("pool:%s:%s", k.Asset, k.subTypeName())
	case AccountScopeProtocol:
		pid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("protocol:%s:%s:%s", pid.String(), k.Asset, k.subTypeName())
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.Asset, k.subTypeName())
	}
	return "unknown"
}

// ParseAccountPath inverts AccountPath. Used when restoring audit balances
// from a snapshot.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	switch {
	case len(parts) == 3 && parts[0] == "pool":
		st, err := subTypeFromName(parts[2])
		if err != nil {
			return AccountKey{}, err
		}
		return AccountKey{Scope: AccountScopePool, SubType: st, Asset: parts[1]}, nil

	case len(parts) == 4 && parts[0] == "protocol":
		pid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		st, err := subTypeFromName(parts[3])
		if err != nil {
			return AccountKey{}, err
		}
		return AccountKey{Scope: AccountScopeProtocol, EntityID: pid, SubType: st, Asset: parts[2]}, nil

	case len(parts) == 3 && parts[0] == "external":
		st, err := subTypeFromName(parts[2])
		if err != nil {
			return AccountKey{}, err
		}
		return AccountKey{Scope: AccountScopeExternal, SubType: st, Asset: parts[1]}, nil
	}
	return AccountKey{}, fmt.Errorf("malformed account path %q", path)
}

func subTypeFromName(name string) (AccountSubType, error) {
	switch name {
	case "stakers_pool":
		return SubTypeStakersPool, nil
	case "first_money_out":
		return SubTypeFirstMoneyOut, nil
	case "premium_balance":
		return SubTypePremiumBalance, nil
	case "deposits":
		return SubTypeExternalDeposits, nil
	case "withdrawals":
		return SubTypeExternalWithdrawals, nil
	case "payouts":
		return SubTypeExternalPayouts, nil
	default:
		return 0, fmt.Errorf("unknown account sub-type %q", name)
	}
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeStakersPool:
		return "stakers_pool"
	case SubTypeFirstMoneyOut:
		return "first_money_out"
	case SubTypePremiumBalance:
		return "premium_balance"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalWithdrawals:
		return "withdrawals"
	case SubTypeExternalPayouts:
		return "payouts"
	default:
		return "unknown"
	}
}
