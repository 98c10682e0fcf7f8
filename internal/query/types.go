package query

import "github.com/google/uuid"

// All balances in query responses are decimal strings: pool amounts are
// 256-bit and do not fit JSON numbers. Every response carries
// as_of_sequence for freshness semantics.

// PoolResponse represents an asset pool's aggregates for API queries.
type PoolResponse struct {
	Asset            string `json:"asset"`
	TotalShares      string `json:"total_shares"`
	StakersPool      string `json:"stakers_pool"`
	FirstMoneyOut    string `json:"first_money_out"`
	Unactivated      string `json:"unactivated"`
	StrategyDeployed string `json:"strategy_deployed"`
	UnallocatedSherX string `json:"unallocated_sherx"`
	SherXWeight      uint16 `json:"sherx_weight"`
	AsOfSequence     int64  `json:"as_of_sequence"`
}

// StakerPositionResponse is one staker's share position on one pool,
// including still-active cooldown entries.
type StakerPositionResponse struct {
	Asset          string         `json:"asset"`
	Account        string         `json:"account"`
	Shares         string         `json:"shares"`
	UnstakeEntries []UnstakeEntry `json:"unstake_entries"`
	AsOfSequence   int64          `json:"as_of_sequence"`
}

// UnstakeEntry is one cooldown slot, addressed by its index.
type UnstakeEntry struct {
	Index          int    `json:"index"`
	BlockInitiated uint64 `json:"block_initiated"`
	Shares         string `json:"shares"`
}

// ExchangeRateResponse carries the wad-scaled underlying value of one share.
type ExchangeRateResponse struct {
	Asset        string `json:"asset"`
	Rate         string `json:"rate"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// SherXSupplyResponse is the derivative ledger snapshot. Price is the
// wad-scaled USD value of one SherX.
type SherXSupplyResponse struct {
	InternalSupply    string `json:"internal_supply"`
	MintedSupply      string `json:"minted_supply"`
	UsdPool           string `json:"usd_pool"`
	Price             string `json:"price"`
	BeneficiaryWeight uint16 `json:"beneficiary_weight"`
	AsOfSequence      int64  `json:"as_of_sequence"`
}

// SherXBalanceResponse is one account's minted SherX balance.
type SherXBalanceResponse struct {
	Account      string `json:"account"`
	Balance      string `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// WeightsResponse is the emission weight table. Asset weights plus the
// beneficiary weight sum to 65535 when a table is set.
type WeightsResponse struct {
	Weights           []AssetWeight `json:"weights"`
	BeneficiaryWeight uint16        `json:"beneficiary_weight"`
	AsOfSequence      int64         `json:"as_of_sequence"`
}

type AssetWeight struct {
	Asset  string `json:"asset"`
	Weight uint16 `json:"weight"`
}

// CoverageResponse is one protocol's premium position on one pool.
type CoverageResponse struct {
	Asset           string `json:"asset"`
	ProtocolID      string `json:"protocol_id"`
	PremiumPerBlock string `json:"premium_per_block"`
	Balance         string `json:"balance"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// AccountBalanceResponse represents one audited account balance.
type AccountBalanceResponse struct {
	AccountPath  string `json:"account_path"`
	Asset        string `json:"asset"`
	Balance      string `json:"balance"` // signed decimal
	AsOfSequence int64  `json:"as_of_sequence"`
}

// ProtocolBalanceResponse represents a covered protocol's prepaid premium
// balance on one asset.
type ProtocolBalanceResponse struct {
	ProtocolID   uuid.UUID `json:"protocol_id"`
	Asset        string    `json:"asset"`
	Balance      string    `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// SettlementResponse represents a premium debt settlement for API queries.
type SettlementResponse struct {
	JournalID    string `json:"journal_id"`
	ProtocolID   string `json:"protocol_id"`
	Asset        string `json:"asset"`
	Paid         string `json:"paid"`
	Sequence     int64  `json:"sequence"`
	Block        uint64 `json:"block"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	CommandRef    string `json:"command_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Block         uint64 `json:"block"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset with non-zero global balance sum.
type UnbalancedAsset struct {
	Asset     string `json:"asset"`
	Imbalance string `json:"imbalance"`
}
