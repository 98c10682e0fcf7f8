package command

import (
	"github.com/google/uuid"
)

// Type discriminator for command payloads
type Type int32

const (
	TypeUnknown Type = iota

	// Token lifecycle
	TypeTokenInit
	TypeTokenDisableStakers
	TypeTokenDisableProtocol
	TypeTokenUnload
	TypeTokenRemove

	// Staking
	TypeStake
	TypeActivateCooldown
	TypeCancelCooldown
	TypeUnstake
	TypeUnstakeWindowExpiry

	// Premium
	TypeProtocolAdd
	TypeProtocolUpdate
	TypeProtocolDeposit
	TypeProtocolWithdraw
	TypeSetPremium
	TypeSetPremiums
	TypePayOffDebtAll
	TypeCleanProtocol

	// SherX
	TypeSetWeights
	TypeHarvest
	TypeSherXTransfer
	TypeSherXApprove
	TypeSherXTransferFrom

	// Payout
	TypePayout

	// Governance parameters
	TypeSetCooldownFee
	TypeSetCooldownDuration
	TypeSetUnstakeWindow
	TypeSetStrategy
	TypeStrategyDeposit
	TypeStrategyWithdraw

	// SherX (late addition, appended to keep discriminator values stable)
	TypeSetTokenPrice
)

// Envelope wraps every applied command in the log
type Envelope struct {
	// Global monotonic sequence assigned by the core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	Type Type

	// Asset context (nullable for multi-asset/global commands)
	Asset *string

	// Block height at which the command executes (versioned input,
	// NOT wall-clock — the core never invents time)
	Block uint64

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command payload
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all command payloads implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() Type

	// Asset returns the asset context (nil for global commands)
	Asset() *string

	// Block returns the execution block height
	Block() uint64

	// Caller returns the identity invoking the entry point
	Caller() uuid.UUID

	// SourceSequence returns the upstream ordering key
	SourceSequence() int64
}

// Meta carries the fields shared by every command. Embedded by each payload.
type Meta struct {
	CommandID uuid.UUID
	From      uuid.UUID // caller identity, checked against the authorization gate
	AtBlock   uint64
	Sequence  int64
}

func (m *Meta) IdempotencyKey() string { return m.CommandID.String() }
func (m *Meta) Block() uint64          { return m.AtBlock }
func (m *Meta) Caller() uuid.UUID      { return m.From }
func (m *Meta) SourceSequence() int64  { return m.Sequence }

func (t Type) String() string {
	switch t {
	case TypeTokenInit:
		return "TokenInit"
	case TypeTokenDisableStakers:
		return "TokenDisableStakers"
	case TypeTokenDisableProtocol:
		return "TokenDisableProtocol"
	case TypeTokenUnload:
		return "TokenUnload"
	case TypeTokenRemove:
		return "TokenRemove"
	case TypeStake:
		return "Stake"
	case TypeActivateCooldown:
		return "ActivateCooldown"
	case TypeCancelCooldown:
		return "CancelCooldown"
	case TypeUnstake:
		return "Unstake"
	case TypeUnstakeWindowExpiry:
		return "UnstakeWindowExpiry"
	case TypeProtocolAdd:
		return "ProtocolAdd"
	case TypeProtocolUpdate:
		return "ProtocolUpdate"
	case TypeProtocolDeposit:
		return "ProtocolDeposit"
	case TypeProtocolWithdraw:
		return "ProtocolWithdraw"
	case TypeSetPremium:
		return "SetPremium"
	case TypeSetPremiums:
		return "SetPremiums"
	case TypePayOffDebtAll:
		return "PayOffDebtAll"
	case TypeCleanProtocol:
		return "CleanProtocol"
	case TypeSetWeights:
		return "SetWeights"
	case TypeHarvest:
		return "Harvest"
	case TypeSherXTransfer:
		return "SherXTransfer"
	case TypeSherXApprove:
		return "SherXApprove"
	case TypeSherXTransferFrom:
		return "SherXTransferFrom"
	case TypePayout:
		return "Payout"
	case TypeSetCooldownFee:
		return "SetCooldownFee"
	case TypeSetCooldownDuration:
		return "SetCooldownDuration"
	case TypeSetUnstakeWindow:
		return "SetUnstakeWindow"
	case TypeSetStrategy:
		return "SetStrategy"
	case TypeStrategyDeposit:
		return "StrategyDeposit"
	case TypeStrategyWithdraw:
		return "StrategyWithdraw"
	case TypeSetTokenPrice:
		return "SetTokenPrice"
	default:
		return "Unknown"
	}
}
