package command

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Payout executes the loss-absorbing waterfall: per asset, first-money-out is
// drained first, then staker principal, then unallocated SherX backing — the
// last leg redistributed across active assets except ExcludedAsset.
// Governance-only, atomic across all listed assets.
type Payout struct {
	Meta
	Receiver           uuid.UUID
	AssetSymbols       []string
	FirstMoneyOut      []*uint256.Int
	StakerPoolAmounts  []*uint256.Int
	UnallocatedAmounts []*uint256.Int
	ExcludedAsset      string
}

func (c *Payout) CommandType() Type { return TypePayout }
func (c *Payout) Asset() *string    { return nil }
