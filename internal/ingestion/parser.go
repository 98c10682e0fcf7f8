package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SherPool/internal/amount"
	"SherPool/internal/command"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed command.Command. The ingestion shell validates, parses, and
// converts raw messages before sending to the deterministic core.
func ParseRawCommand(raw RawCommand, commandType string) (command.Command, error) {
	switch commandType {
	case "TokenInit":
		return parseTokenInit(raw.Data)
	case "TokenDisableStakers":
		return parseTokenDisableStakers(raw.Data)
	case "TokenDisableProtocol":
		return parseTokenDisableProtocol(raw.Data)
	case "TokenUnload":
		return parseTokenUnload(raw.Data)
	case "TokenRemove":
		return parseTokenRemove(raw.Data)
	case "Stake":
		return parseStake(raw.Data)
	case "ActivateCooldown":
		return parseActivateCooldown(raw.Data)
	case "CancelCooldown":
		return parseCancelCooldown(raw.Data)
	case "Unstake":
		return parseUnstake(raw.Data)
	case "UnstakeWindowExpiry":
		return parseUnstakeWindowExpiry(raw.Data)
	case "ProtocolAdd":
		return parseProtocolAdd(raw.Data)
	case "ProtocolUpdate":
		return parseProtocolUpdate(raw.Data)
	case "ProtocolDeposit":
		return parseProtocolDeposit(raw.Data)
	case "ProtocolWithdraw":
		return parseProtocolWithdraw(raw.Data)
	case "SetPremium":
		return parseSetPremium(raw.Data)
	case "SetPremiums":
		return parseSetPremiums(raw.Data)
	case "PayOffDebtAll":
		return parsePayOffDebtAll(raw.Data)
	case "CleanProtocol":
		return parseCleanProtocol(raw.Data)
	case "SetWeights":
		return parseSetWeights(raw.Data)
	case "SetTokenPrice":
		return parseSetTokenPrice(raw.Data)
	case "Harvest":
		return parseHarvest(raw.Data)
	case "SherXTransfer":
		return parseSherXTransfer(raw.Data)
	case "SherXApprove":
		return parseSherXApprove(raw.Data)
	case "SherXTransferFrom":
		return parseSherXTransferFrom(raw.Data)
	case "Payout":
		return parsePayout(raw.Data)
	case "SetCooldownFee":
		return parseSetCooldownFee(raw.Data)
	case "SetCooldownDuration":
		return parseSetCooldownDuration(raw.Data)
	case "SetUnstakeWindow":
		return parseSetUnstakeWindow(raw.Data)
	case "SetStrategy":
		return parseSetStrategy(raw.Data)
	case "StrategyDeposit":
		return parseStrategyDeposit(raw.Data)
	case "StrategyWithdraw":
		return parseStrategyWithdraw(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Amounts are
// decimal strings (token units do not fit int64); "max" is the
// full-balance sentinel where a command accepts it.

type metaJSON struct {
	CommandID string `json:"command_id"`
	From      string `json:"from"`
	AtBlock   uint64 `json:"at_block"`
	Sequence  int64  `json:"sequence"`
}

func (j metaJSON) toMeta() (command.Meta, error) {
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return command.Meta{}, fmt.Errorf("parse command_id: %w", err)
	}
	from, err := uuid.Parse(j.From)
	if err != nil {
		return command.Meta{}, fmt.Errorf("parse from: %w", err)
	}
	return command.Meta{
		CommandID: commandID,
		From:      from,
		AtBlock:   j.AtBlock,
		Sequence:  j.Sequence,
	}, nil
}

// parseAmount decodes a decimal-string amount. "max" maps to the
// full-balance sentinel.
func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "max" {
		return amount.Clone(amount.Max), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", field, err)
	}
	return v, nil
}

// parseOptionalAmount decodes an amount that may be absent (empty string).
func parseOptionalAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(field, s)
}

// parseOptionalUUID decodes a UUID that may be absent (empty string means
// the zero address).
func parseOptionalUUID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse %s: %w", field, err)
	}
	return v, nil
}

func parseRequiredUUID(field, s string) (uuid.UUID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse %s: %w", field, err)
	}
	return v, nil
}

// --- Token lifecycle ---

type tokenInitJSON struct {
	metaJSON
	Asset         string `json:"asset"`
	GovAddress    string `json:"gov_address"`
	LockToken     string `json:"lock_token,omitempty"`
	EnableStaking bool   `json:"enable_staking"`
	EnablePremium bool   `json:"enable_premium"`
}

func parseTokenInit(data []byte) (*command.TokenInit, error) {
	var j tokenInitJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenInit: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	gov, err := parseRequiredUUID("gov_address", j.GovAddress)
	if err != nil {
		return nil, err
	}
	lockToken, err := parseOptionalUUID("lock_token", j.LockToken)
	if err != nil {
		return nil, err
	}
	return &command.TokenInit{
		Meta:          meta,
		AssetSymbol:   j.Asset,
		GovAddress:    gov,
		LockToken:     lockToken,
		EnableStaking: j.EnableStaking,
		EnablePremium: j.EnablePremium,
	}, nil
}

type tokenDisableJSON struct {
	metaJSON
	Asset         string `json:"asset"`
	ExpectedIndex int    `json:"expected_index"`
}

func parseTokenDisableStakers(data []byte) (*command.TokenDisableStakers, error) {
	var j tokenDisableJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenDisableStakers: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.TokenDisableStakers{
		Meta:          meta,
		AssetSymbol:   j.Asset,
		ExpectedIndex: j.ExpectedIndex,
	}, nil
}

func parseTokenDisableProtocol(data []byte) (*command.TokenDisableProtocol, error) {
	var j tokenDisableJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenDisableProtocol: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.TokenDisableProtocol{
		Meta:          meta,
		AssetSymbol:   j.Asset,
		ExpectedIndex: j.ExpectedIndex,
	}, nil
}

type tokenUnloadJSON struct {
	metaJSON
	Asset              string `json:"asset"`
	UnderlyingReceiver string `json:"underlying_receiver"`
	DerivativeReceiver string `json:"derivative_receiver"`
}

func parseTokenUnload(data []byte) (*command.TokenUnload, error) {
	var j tokenUnloadJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenUnload: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	underlying, err := parseRequiredUUID("underlying_receiver", j.UnderlyingReceiver)
	if err != nil {
		return nil, err
	}
	derivative, err := parseRequiredUUID("derivative_receiver", j.DerivativeReceiver)
	if err != nil {
		return nil, err
	}
	return &command.TokenUnload{
		Meta:               meta,
		AssetSymbol:        j.Asset,
		UnderlyingReceiver: underlying,
		DerivativeReceiver: derivative,
	}, nil
}

type assetOnlyJSON struct {
	metaJSON
	Asset string `json:"asset"`
}

func parseTokenRemove(data []byte) (*command.TokenRemove, error) {
	var j assetOnlyJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenRemove: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.TokenRemove{Meta: meta, AssetSymbol: j.Asset}, nil
}

// --- Staking ---

type stakeJSON struct {
	metaJSON
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
}

func parseStake(data []byte) (*command.Stake, error) {
	var j stakeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Stake: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	receiver, err := parseRequiredUUID("receiver", j.Receiver)
	if err != nil {
		return nil, err
	}
	return &command.Stake{
		Meta:        meta,
		AssetSymbol: j.Asset,
		Amount:      amt,
		Receiver:    receiver,
	}, nil
}

type activateCooldownJSON struct {
	metaJSON
	Asset       string `json:"asset"`
	ShareAmount string `json:"share_amount"`
}

func parseActivateCooldown(data []byte) (*command.ActivateCooldown, error) {
	var j activateCooldownJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ActivateCooldown: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	shares, err := parseAmount("share_amount", j.ShareAmount)
	if err != nil {
		return nil, err
	}
	return &command.ActivateCooldown{
		Meta:        meta,
		AssetSymbol: j.Asset,
		ShareAmount: shares,
	}, nil
}

type entryJSON struct {
	metaJSON
	Asset   string `json:"asset"`
	EntryID int    `json:"entry_id"`
}

func parseCancelCooldown(data []byte) (*command.CancelCooldown, error) {
	var j entryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CancelCooldown: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.CancelCooldown{
		Meta:        meta,
		AssetSymbol: j.Asset,
		EntryID:     j.EntryID,
	}, nil
}

type unstakeJSON struct {
	metaJSON
	Asset    string `json:"asset"`
	EntryID  int    `json:"entry_id"`
	Receiver string `json:"receiver"`
}

func parseUnstake(data []byte) (*command.Unstake, error) {
	var j unstakeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Unstake: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	receiver, err := parseRequiredUUID("receiver", j.Receiver)
	if err != nil {
		return nil, err
	}
	return &command.Unstake{
		Meta:        meta,
		AssetSymbol: j.Asset,
		EntryID:     j.EntryID,
		Receiver:    receiver,
	}, nil
}

type windowExpiryJSON struct {
	metaJSON
	Asset   string `json:"asset"`
	Account string `json:"account"`
	EntryID int    `json:"entry_id"`
}

func parseUnstakeWindowExpiry(data []byte) (*command.UnstakeWindowExpiry, error) {
	var j windowExpiryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UnstakeWindowExpiry: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	account, err := parseRequiredUUID("account", j.Account)
	if err != nil {
		return nil, err
	}
	return &command.UnstakeWindowExpiry{
		Meta:        meta,
		AssetSymbol: j.Asset,
		Account:     account,
		EntryID:     j.EntryID,
	}, nil
}

// --- Premium ---

type protocolBindJSON struct {
	metaJSON
	Asset      string `json:"asset"`
	ProtocolID string `json:"protocol_id"`
	Agent      string `json:"agent,omitempty"`
	Manager    string `json:"manager,omitempty"`
}

func (j protocolBindJSON) parts() (command.Meta, uuid.UUID, uuid.UUID, uuid.UUID, error) {
	meta, err := j.toMeta()
	if err != nil {
		return command.Meta{}, uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	protocolID, err := parseRequiredUUID("protocol_id", j.ProtocolID)
	if err != nil {
		return command.Meta{}, uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	agent, err := parseOptionalUUID("agent", j.Agent)
	if err != nil {
		return command.Meta{}, uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	manager, err := parseOptionalUUID("manager", j.Manager)
	if err != nil {
		return command.Meta{}, uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return meta, protocolID, agent, manager, nil
}

func parseProtocolAdd(data []byte) (*command.ProtocolAdd, error) {
	var j protocolBindJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProtocolAdd: %w", err)
	}
	meta, protocolID, agent, manager, err := j.parts()
	if err != nil {
		return nil, err
	}
	return &command.ProtocolAdd{
		Meta:        meta,
		AssetSymbol: j.Asset,
		ProtocolID:  protocolID,
		Agent:       agent,
		Manager:     manager,
	}, nil
}

func parseProtocolUpdate(data []byte) (*command.ProtocolUpdate, error) {
	var j protocolBindJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProtocolUpdate: %w", err)
	}
	meta, protocolID, agent, manager, err := j.parts()
	if err != nil {
		return nil, err
	}
	return &command.ProtocolUpdate{
		Meta:        meta,
		AssetSymbol: j.Asset,
		ProtocolID:  protocolID,
		Agent:       agent,
		Manager:     manager,
	}, nil
}

type protocolFundsJSON struct {
	metaJSON
	Asset      string `json:"asset"`
	ProtocolID string `json:"protocol_id"`
	Amount     string `json:"amount"`
	Receiver   string `json:"receiver,omitempty"`
}

func parseProtocolDeposit(data []byte) (*command.ProtocolDeposit, error) {
	var j protocolFundsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProtocolDeposit: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	protocolID, err := parseRequiredUUID("protocol_id", j.ProtocolID)
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.ProtocolDeposit{
		Meta:        meta,
		AssetSymbol: j.Asset,
		ProtocolID:  protocolID,
		Amount:      amt,
	}, nil
}

func parseProtocolWithdraw(data []byte) (*command.ProtocolWithdraw, error) {
	var j protocolFundsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProtocolWithdraw: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	protocolID, err := parseRequiredUUID("protocol_id", j.ProtocolID)
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	receiver, err := parseRequiredUUID("receiver", j.Receiver)
	if err != nil {
		return nil, err
	}
	return &command.ProtocolWithdraw{
		Meta:        meta,
		AssetSymbol: j.Asset,
		ProtocolID:  protocolID,
		Amount:      amt,
		Receiver:    receiver,
	}, nil
}

type setPremiumJSON struct {
	metaJSON
	Asset           string `json:"asset"`
	ProtocolID      string `json:"protocol_id"`
	PremiumPerBlock string `json:"premium_per_block"`
	UsdPrice        string `json:"usd_price,omitempty"`
}

func parseSetPremium(data []byte) (*command.SetPremium, error) {
	var j setPremiumJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetPremium: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	protocolID, err := parseRequiredUUID("protocol_id", j.ProtocolID)
	if err != nil {
		return nil, err
	}
	rate, err := parseAmount("premium_per_block", j.PremiumPerBlock)
	if err != nil {
		return nil, err
	}
	usdPrice, err := parseOptionalAmount("usd_price", j.UsdPrice)
	if err != nil {
		return nil, err
	}
	return &command.SetPremium{
		Meta:            meta,
		AssetSymbol:     j.Asset,
		ProtocolID:      protocolID,
		PremiumPerBlock: rate,
		UsdPrice:        usdPrice,
	}, nil
}

type setPremiumsJSON struct {
	metaJSON
	Asset            string   `json:"asset"`
	ProtocolIDs      []string `json:"protocol_ids"`
	PremiumsPerBlock []string `json:"premiums_per_block"`
	UsdPrice         string   `json:"usd_price,omitempty"`
}

func parseSetPremiums(data []byte) (*command.SetPremiums, error) {
	var j setPremiumsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetPremiums: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	protocolIDs := make([]uuid.UUID, len(j.ProtocolIDs))
	for i, s := range j.ProtocolIDs {
		protocolIDs[i], err = parseRequiredUUID("protocol_ids", s)
		if err != nil {
			return nil, err
		}
	}
	rates := make([]*uint256.Int, len(j.PremiumsPerBlock))
	for i, s := range j.PremiumsPerBlock {
		rates[i], err = parseAmount("premiums_per_block", s)
		if err != nil {
			return nil, err
		}
	}
	usdPrice, err := parseOptionalAmount("usd_price", j.UsdPrice)
	if err != nil {
		return nil, err
	}
	return &command.SetPremiums{
		Meta:             meta,
		AssetSymbol:      j.Asset,
		ProtocolIDs:      protocolIDs,
		PremiumsPerBlock: rates,
		UsdPrice:         usdPrice,
	}, nil
}

func parsePayOffDebtAll(data []byte) (*command.PayOffDebtAll, error) {
	var j assetOnlyJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PayOffDebtAll: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.PayOffDebtAll{Meta: meta, AssetSymbol: j.Asset}, nil
}

type cleanProtocolJSON struct {
	metaJSON
	Asset         string `json:"asset"`
	ProtocolID    string `json:"protocol_id"`
	ExpectedIndex int    `json:"expected_index"`
	Force         bool   `json:"force"`
	Receiver      string `json:"receiver"`
}

func parseCleanProtocol(data []byte) (*command.CleanProtocol, error) {
	var j cleanProtocolJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CleanProtocol: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	protocolID, err := parseRequiredUUID("protocol_id", j.ProtocolID)
	if err != nil {
		return nil, err
	}
	receiver, err := parseRequiredUUID("receiver", j.Receiver)
	if err != nil {
		return nil, err
	}
	return &command.CleanProtocol{
		Meta:          meta,
		AssetSymbol:   j.Asset,
		ProtocolID:    protocolID,
		ExpectedIndex: j.ExpectedIndex,
		Force:         j.Force,
		Receiver:      receiver,
	}, nil
}

// --- SherX ---

type setWeightsJSON struct {
	metaJSON
	Assets            []string `json:"assets"`
	Weights           []uint16 `json:"weights"`
	BeneficiaryWeight uint16   `json:"beneficiary_weight"`
	Beneficiary       string   `json:"beneficiary,omitempty"`
}

func parseSetWeights(data []byte) (*command.SetWeights, error) {
	var j setWeightsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetWeights: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	beneficiary, err := parseOptionalUUID("beneficiary", j.Beneficiary)
	if err != nil {
		return nil, err
	}
	return &command.SetWeights{
		Meta:              meta,
		Assets:            j.Assets,
		Weights:           j.Weights,
		BeneficiaryWeight: j.BeneficiaryWeight,
		Beneficiary:       beneficiary,
	}, nil
}

type setTokenPriceJSON struct {
	metaJSON
	Asset    string `json:"asset"`
	UsdPrice string `json:"usd_price"`
}

func parseSetTokenPrice(data []byte) (*command.SetTokenPrice, error) {
	var j setTokenPriceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetTokenPrice: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	price, err := parseAmount("usd_price", j.UsdPrice)
	if err != nil {
		return nil, err
	}
	return &command.SetTokenPrice{
		Meta:        meta,
		AssetSymbol: j.Asset,
		UsdPrice:    price,
	}, nil
}

type harvestJSON struct {
	metaJSON
	Account string   `json:"account,omitempty"`
	Assets  []string `json:"assets,omitempty"`
}

func parseHarvest(data []byte) (*command.Harvest, error) {
	var j harvestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Harvest: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	account, err := parseOptionalUUID("account", j.Account)
	if err != nil {
		return nil, err
	}
	return &command.Harvest{
		Meta:         meta,
		Account:      account,
		AssetSymbols: j.Assets,
	}, nil
}

type sherXTransferJSON struct {
	metaJSON
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func parseSherXTransfer(data []byte) (*command.SherXTransfer, error) {
	var j sherXTransferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SherXTransfer: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	to, err := parseRequiredUUID("to", j.To)
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.SherXTransfer{Meta: meta, To: to, Amount: amt}, nil
}

type sherXApproveJSON struct {
	metaJSON
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func parseSherXApprove(data []byte) (*command.SherXApprove, error) {
	var j sherXApproveJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SherXApprove: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	spender, err := parseRequiredUUID("spender", j.Spender)
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.SherXApprove{Meta: meta, Spender: spender, Amount: amt}, nil
}

type sherXTransferFromJSON struct {
	metaJSON
	Owner  string `json:"owner"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func parseSherXTransferFrom(data []byte) (*command.SherXTransferFrom, error) {
	var j sherXTransferFromJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SherXTransferFrom: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	owner, err := parseRequiredUUID("owner", j.Owner)
	if err != nil {
		return nil, err
	}
	to, err := parseRequiredUUID("to", j.To)
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.SherXTransferFrom{Meta: meta, Owner: owner, To: to, Amount: amt}, nil
}

// --- Payout ---

type payoutJSON struct {
	metaJSON
	Receiver           string   `json:"receiver"`
	Assets             []string `json:"assets"`
	FirstMoneyOut      []string `json:"first_money_out"`
	StakerPoolAmounts  []string `json:"staker_pool_amounts"`
	UnallocatedAmounts []string `json:"unallocated_amounts"`
	ExcludedAsset      string   `json:"excluded_asset,omitempty"`
}

func parsePayout(data []byte) (*command.Payout, error) {
	var j payoutJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Payout: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	receiver, err := parseRequiredUUID("receiver", j.Receiver)
	if err != nil {
		return nil, err
	}
	fmo, err := parseAmountSlice("first_money_out", j.FirstMoneyOut)
	if err != nil {
		return nil, err
	}
	staker, err := parseAmountSlice("staker_pool_amounts", j.StakerPoolAmounts)
	if err != nil {
		return nil, err
	}
	unalloc, err := parseAmountSlice("unallocated_amounts", j.UnallocatedAmounts)
	if err != nil {
		return nil, err
	}
	return &command.Payout{
		Meta:               meta,
		Receiver:           receiver,
		AssetSymbols:       j.Assets,
		FirstMoneyOut:      fmo,
		StakerPoolAmounts:  staker,
		UnallocatedAmounts: unalloc,
		ExcludedAsset:      j.ExcludedAsset,
	}, nil
}

func parseAmountSlice(field string, ss []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(ss))
	for i, s := range ss {
		v, err := parseAmount(field, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// --- Governance parameters ---

type setCooldownFeeJSON struct {
	metaJSON
	Asset  string `json:"asset"`
	FeeBps uint32 `json:"fee_bps"`
}

func parseSetCooldownFee(data []byte) (*command.SetCooldownFee, error) {
	var j setCooldownFeeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetCooldownFee: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.SetCooldownFee{
		Meta:        meta,
		AssetSymbol: j.Asset,
		FeeBps:      j.FeeBps,
	}, nil
}

type blocksJSON struct {
	metaJSON
	Blocks uint64 `json:"blocks"`
}

func parseSetCooldownDuration(data []byte) (*command.SetCooldownDuration, error) {
	var j blocksJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetCooldownDuration: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.SetCooldownDuration{Meta: meta, Blocks: j.Blocks}, nil
}

func parseSetUnstakeWindow(data []byte) (*command.SetUnstakeWindow, error) {
	var j blocksJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetUnstakeWindow: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	return &command.SetUnstakeWindow{Meta: meta, Blocks: j.Blocks}, nil
}

type setStrategyJSON struct {
	metaJSON
	Asset      string `json:"asset"`
	StrategyID string `json:"strategy_id,omitempty"`
}

func parseSetStrategy(data []byte) (*command.SetStrategy, error) {
	var j setStrategyJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetStrategy: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	strategyID, err := parseOptionalUUID("strategy_id", j.StrategyID)
	if err != nil {
		return nil, err
	}
	return &command.SetStrategy{
		Meta:        meta,
		AssetSymbol: j.Asset,
		StrategyID:  strategyID,
	}, nil
}

type strategyMoveJSON struct {
	metaJSON
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func parseStrategyDeposit(data []byte) (*command.StrategyDeposit, error) {
	var j strategyMoveJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StrategyDeposit: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.StrategyDeposit{
		Meta:        meta,
		AssetSymbol: j.Asset,
		Amount:      amt,
	}, nil
}

func parseStrategyWithdraw(data []byte) (*command.StrategyWithdraw, error) {
	var j strategyMoveJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StrategyWithdraw: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, err
	}
	amt, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.StrategyWithdraw{
		Meta:        meta,
		AssetSymbol: j.Asset,
		Amount:      amt,
	}, nil
}
