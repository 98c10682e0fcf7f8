package command

import "github.com/google/uuid"

// TokenInit creates or re-initializes an asset pool. Idempotent: re-running
// against an existing pool restores it to the iteration lists without
// duplication.
type TokenInit struct {
	Meta
	AssetSymbol   string
	GovAddress    uuid.UUID
	LockToken     uuid.UUID // external share-token binding, zero = absent
	EnableStaking bool
	EnablePremium bool
}

func (c *TokenInit) CommandType() Type { return TypeTokenInit }
func (c *TokenInit) Asset() *string    { return &c.AssetSymbol }

// TokenDisableStakers removes the asset from the staker-iteration list.
// The caller passes the index it expects the asset to occupy; removal is
// swap-and-pop so remaining order may change.
type TokenDisableStakers struct {
	Meta
	AssetSymbol   string
	ExpectedIndex int
}

func (c *TokenDisableStakers) CommandType() Type { return TypeTokenDisableStakers }
func (c *TokenDisableStakers) Asset() *string    { return &c.AssetSymbol }

// TokenDisableProtocol removes the asset from the premium-iteration list.
type TokenDisableProtocol struct {
	Meta
	AssetSymbol   string
	ExpectedIndex int
}

func (c *TokenDisableProtocol) CommandType() Type { return TypeTokenDisableProtocol }
func (c *TokenDisableProtocol) Asset() *string    { return &c.AssetSymbol }

// TokenUnload sweeps a fully-disabled asset's balances out of the engine.
type TokenUnload struct {
	Meta
	AssetSymbol        string
	UnderlyingReceiver uuid.UUID
	DerivativeReceiver uuid.UUID
}

func (c *TokenUnload) CommandType() Type { return TypeTokenUnload }
func (c *TokenUnload) Asset() *string    { return &c.AssetSymbol }

// TokenRemove destroys an emptied asset pool. Terminal.
type TokenRemove struct {
	Meta
	AssetSymbol string
}

func (c *TokenRemove) CommandType() Type { return TypeTokenRemove }
func (c *TokenRemove) Asset() *string    { return &c.AssetSymbol }
