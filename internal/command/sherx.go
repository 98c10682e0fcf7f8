package command

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// SetWeights replaces the emission-weight table. Weights plus the beneficiary
// weight must sum to the full weight total.
type SetWeights struct {
	Meta
	Assets            []string
	Weights           []uint16
	BeneficiaryWeight uint16
	// Beneficiary rebinds the beneficiary account when nonzero.
	Beneficiary uuid.UUID
}

func (c *SetWeights) CommandType() Type { return TypeSetWeights }
func (c *SetWeights) Asset() *string    { return nil }

// Harvest settles unallocated SherX for Account across the listed assets
// (all staking assets when empty), crediting the derivative ledger. A zero
// Account harvests for the caller.
type Harvest struct {
	Meta
	Account      uuid.UUID
	AssetSymbols []string
}

func (c *Harvest) CommandType() Type { return TypeHarvest }
func (c *Harvest) Asset() *string    { return nil }

// SetTokenPrice injects the wad-scaled USD price for an asset and rederives
// the emission rate.
type SetTokenPrice struct {
	Meta
	AssetSymbol string
	UsdPrice    *uint256.Int
}

func (c *SetTokenPrice) CommandType() Type { return TypeSetTokenPrice }
func (c *SetTokenPrice) Asset() *string    { return &c.AssetSymbol }

// SherXTransfer moves derivative-token balance between accounts.
type SherXTransfer struct {
	Meta
	To     uuid.UUID
	Amount *uint256.Int
}

func (c *SherXTransfer) CommandType() Type { return TypeSherXTransfer }
func (c *SherXTransfer) Asset() *string    { return nil }

// SherXApprove sets a spender allowance on the caller's derivative balance.
type SherXApprove struct {
	Meta
	Spender uuid.UUID
	Amount  *uint256.Int
}

func (c *SherXApprove) CommandType() Type { return TypeSherXApprove }
func (c *SherXApprove) Asset() *string    { return nil }

// SherXTransferFrom spends an allowance to move balance between accounts.
type SherXTransferFrom struct {
	Meta
	Owner  uuid.UUID
	To     uuid.UUID
	Amount *uint256.Int
}

func (c *SherXTransferFrom) CommandType() Type { return TypeSherXTransferFrom }
func (c *SherXTransferFrom) Asset() *string    { return nil }
