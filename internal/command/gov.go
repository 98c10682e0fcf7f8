package command

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// SetCooldownFee sets the per-asset basis-point fee taken into first-money-out
// when a cooldown is activated.
type SetCooldownFee struct {
	Meta
	AssetSymbol string
	FeeBps      uint32
}

func (c *SetCooldownFee) CommandType() Type { return TypeSetCooldownFee }
func (c *SetCooldownFee) Asset() *string    { return &c.AssetSymbol }

// SetCooldownDuration sets the global cooldown length in blocks.
type SetCooldownDuration struct {
	Meta
	Blocks uint64
}

func (c *SetCooldownDuration) CommandType() Type { return TypeSetCooldownDuration }
func (c *SetCooldownDuration) Asset() *string    { return nil }

// SetUnstakeWindow sets the global unstake-window length in blocks.
type SetUnstakeWindow struct {
	Meta
	Blocks uint64
}

func (c *SetUnstakeWindow) CommandType() Type { return TypeSetUnstakeWindow }
func (c *SetUnstakeWindow) Asset() *string    { return nil }

// SetStrategy attaches or detaches (zero StrategyID) the yield strategy for an
// asset. Detaching requires the deployed balance to be zero.
type SetStrategy struct {
	Meta
	AssetSymbol string
	StrategyID  uuid.UUID
}

func (c *SetStrategy) CommandType() Type { return TypeSetStrategy }
func (c *SetStrategy) Asset() *string    { return &c.AssetSymbol }

// StrategyDeposit sweeps idle capital into the attached yield strategy.
type StrategyDeposit struct {
	Meta
	AssetSymbol string
	Amount      *uint256.Int
}

func (c *StrategyDeposit) CommandType() Type { return TypeStrategyDeposit }
func (c *StrategyDeposit) Asset() *string    { return &c.AssetSymbol }

// StrategyWithdraw pulls deployed capital back to idle. An all-ones Amount
// withdraws everything.
type StrategyWithdraw struct {
	Meta
	AssetSymbol string
	Amount      *uint256.Int
}

func (c *StrategyWithdraw) CommandType() Type { return TypeStrategyWithdraw }
func (c *StrategyWithdraw) Asset() *string    { return &c.AssetSymbol }
