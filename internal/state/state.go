package state

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// DerivativeSymbol is the reserved symbol of the protocol-wide claim token.
// An asset pool may never be created for it.
const DerivativeSymbol = "SHERX"

// LockTokenInfo describes an external share token at bind time. Supplied by
// the shell's lock-token capability; the engine only validates the binding
// invariants.
type LockTokenInfo struct {
	Owner       uuid.UUID
	TotalSupply *uint256.Int
}

// LockTokens is the external share-token capability consulted on tokenInit.
type LockTokens interface {
	Info(id uuid.UUID) (LockTokenInfo, bool)
}

// EffectKind enumerates boundary calls emitted after local state is final.
type EffectKind int

const (
	// EffectTransferIn pulls underlying from an account into the engine
	EffectTransferIn EffectKind = iota
	// EffectTransferOut pays underlying out to an account
	EffectTransferOut
	// EffectStrategyDeposit sweeps idle capital into the yield strategy
	EffectStrategyDeposit
	// EffectStrategyWithdraw pulls deployed capital back
	EffectStrategyWithdraw
	// EffectLockMint mints external lock-token shares
	EffectLockMint
	// EffectLockBurn burns external lock-token shares
	EffectLockBurn
)

// Effect is one boundary call. The deterministic core never performs these
// itself; they ride on the output for the shell to execute once the
// command's local mutations are complete.
type Effect struct {
	Kind    EffectKind
	Asset   string
	Account uuid.UUID
	Amount  *uint256.Int
}

func (k EffectKind) String() string {
	switch k {
	case EffectTransferIn:
		return "transfer_in"
	case EffectTransferOut:
		return "transfer_out"
	case EffectStrategyDeposit:
		return "strategy_deposit"
	case EffectStrategyWithdraw:
		return "strategy_withdraw"
	case EffectLockMint:
		return "lock_mint"
	case EffectLockBurn:
		return "lock_burn"
	default:
		return "unknown"
	}
}

// State is the whole engine state: every asset pool, the two iteration
// lists, global staking parameters, the derivative ledger and the emission
// accumulators. Mutated only by the single-threaded core.
type State struct {
	Pools map[string]*AssetPool

	// StakerList and PremiumList are the ordered iteration collections.
	// Removal is swap-and-pop; callers pass the index they expect.
	StakerList  []string
	PremiumList []string

	CooldownBlocks      uint64
	UnstakeWindowBlocks uint64

	Derivative *DerivativeLedger
	Emission   *EmissionState
}

func New() *State {
	return &State{
		Pools:      make(map[string]*AssetPool),
		Derivative: NewDerivativeLedger(),
		Emission:   NewEmissionState(),
	}
}

// Pool returns the initialized pool for an asset.
func (s *State) Pool(asset string) (*AssetPool, error) {
	p, ok := s.Pools[asset]
	if !ok {
		return nil, errState(ReasonNotInitialized, "asset %s", asset)
	}
	return p, nil
}

// StakingPool returns the pool and requires staking to be enabled.
func (s *State) StakingPool(asset string) (*AssetPool, error) {
	p, err := s.Pool(asset)
	if err != nil {
		return nil, err
	}
	if !p.StakingEnabled {
		return nil, errState(ReasonNoStaking, "asset %s", asset)
	}
	return p, nil
}

// PremiumPool returns the pool and requires premium to be enabled.
func (s *State) PremiumPool(asset string) (*AssetPool, error) {
	p, err := s.Pool(asset)
	if err != nil {
		return nil, err
	}
	if !p.PremiumEnabled {
		return nil, errState(ReasonNoPremium, "asset %s", asset)
	}
	return p, nil
}

func listIndex(list []string, asset string) int {
	for i, a := range list {
		if a == asset {
			return i
		}
	}
	return -1
}

// swapAndPop removes index i in O(1); order of the remainder changes.
func swapAndPop(list []string, i int) []string {
	last := len(list) - 1
	list[i] = list[last]
	return list[:last]
}
