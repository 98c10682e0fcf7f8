package command

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Stake deposits underlying into the pool and mints shares to Receiver at the
// current exchange rate.
type Stake struct {
	Meta
	AssetSymbol string
	Amount      *uint256.Int
	Receiver    uuid.UUID
}

func (c *Stake) CommandType() Type { return TypeStake }
func (c *Stake) Asset() *string    { return &c.AssetSymbol }

// ActivateCooldown burns shares from the caller's position into a new unstake
// entry, extracting the cooldown fee into first-money-out.
type ActivateCooldown struct {
	Meta
	AssetSymbol string
	ShareAmount *uint256.Int
}

func (c *ActivateCooldown) CommandType() Type { return TypeActivateCooldown }
func (c *ActivateCooldown) Asset() *string    { return &c.AssetSymbol }

// CancelCooldown restores an entry's locked shares to the caller while the
// cooldown is still running.
type CancelCooldown struct {
	Meta
	AssetSymbol string
	EntryID     int
}

func (c *CancelCooldown) CommandType() Type { return TypeCancelCooldown }
func (c *CancelCooldown) Asset() *string    { return &c.AssetSymbol }

// Unstake converts an entry's locked shares to underlying at the current
// exchange rate, inside the unstake window.
type Unstake struct {
	Meta
	AssetSymbol string
	EntryID     int
	Receiver    uuid.UUID
}

func (c *Unstake) CommandType() Type { return TypeUnstake }
func (c *Unstake) Asset() *string    { return &c.AssetSymbol }

// UnstakeWindowExpiry returns an expired entry's shares to its owner.
// Callable by anyone — a permissionless safety valve.
type UnstakeWindowExpiry struct {
	Meta
	AssetSymbol string
	Account     uuid.UUID
	EntryID     int
}

func (c *UnstakeWindowExpiry) CommandType() Type { return TypeUnstakeWindowExpiry }
func (c *UnstakeWindowExpiry) Asset() *string    { return &c.AssetSymbol }
