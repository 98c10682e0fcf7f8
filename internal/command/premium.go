package command

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// ProtocolAdd registers a covered protocol on an asset pool.
type ProtocolAdd struct {
	Meta
	AssetSymbol string
	ProtocolID  uuid.UUID
	Agent       uuid.UUID
	Manager     uuid.UUID
}

func (c *ProtocolAdd) CommandType() Type { return TypeProtocolAdd }
func (c *ProtocolAdd) Asset() *string    { return &c.AssetSymbol }

// ProtocolUpdate rebinds a protocol's agent/manager identities.
type ProtocolUpdate struct {
	Meta
	AssetSymbol string
	ProtocolID  uuid.UUID
	Agent       uuid.UUID
	Manager     uuid.UUID
}

func (c *ProtocolUpdate) CommandType() Type { return TypeProtocolUpdate }
func (c *ProtocolUpdate) Asset() *string    { return &c.AssetSymbol }

// ProtocolDeposit adds to a protocol's prepaid premium balance. Settles
// outstanding debt for the asset first.
type ProtocolDeposit struct {
	Meta
	AssetSymbol string
	ProtocolID  uuid.UUID
	Amount      *uint256.Int
}

func (c *ProtocolDeposit) CommandType() Type { return TypeProtocolDeposit }
func (c *ProtocolDeposit) Asset() *string    { return &c.AssetSymbol }

// ProtocolWithdraw removes from a protocol's prepaid balance after settling.
// An all-ones Amount is the sentinel for "full remaining balance".
type ProtocolWithdraw struct {
	Meta
	AssetSymbol string
	ProtocolID  uuid.UUID
	Amount      *uint256.Int
	Receiver    uuid.UUID
}

func (c *ProtocolWithdraw) CommandType() Type { return TypeProtocolWithdraw }
func (c *ProtocolWithdraw) Asset() *string    { return &c.AssetSymbol }

// SetPremium changes a single protocol's premium-per-block rate, settling the
// asset's accrued debt at the old rate first. A non-nil UsdPrice also updates
// the injected token price.
type SetPremium struct {
	Meta
	AssetSymbol     string
	ProtocolID      uuid.UUID
	PremiumPerBlock *uint256.Int
	UsdPrice        *uint256.Int // optional
}

func (c *SetPremium) CommandType() Type { return TypeSetPremium }
func (c *SetPremium) Asset() *string    { return &c.AssetSymbol }

// SetPremiums changes several protocols' rates on one asset with a single
// settlement pass per call.
type SetPremiums struct {
	Meta
	AssetSymbol      string
	ProtocolIDs      []uuid.UUID
	PremiumsPerBlock []*uint256.Int
	UsdPrice         *uint256.Int // optional
}

func (c *SetPremiums) CommandType() Type { return TypeSetPremiums }
func (c *SetPremiums) Asset() *string    { return &c.AssetSymbol }

// PayOffDebtAll settles all accrued premium debt on the asset with no rate
// change.
type PayOffDebtAll struct {
	Meta
	AssetSymbol string
}

func (c *PayOffDebtAll) CommandType() Type { return TypePayOffDebtAll }
func (c *PayOffDebtAll) Asset() *string    { return &c.AssetSymbol }

// CleanProtocol removes a protocol from an asset's coverage, refunding its
// remaining prepaid balance.
type CleanProtocol struct {
	Meta
	AssetSymbol   string
	ProtocolID    uuid.UUID
	ExpectedIndex int
	Force         bool
	Receiver      uuid.UUID
}

func (c *CleanProtocol) CommandType() Type { return TypeCleanProtocol }
func (c *CleanProtocol) Asset() *string    { return &c.AssetSymbol }
