package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"SherPool/internal/amount"
	"SherPool/internal/command"
	"SherPool/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func baseMeta() map[string]interface{} {
	return map[string]interface{}{
		"command_id": "550e8400-e29b-41d4-a716-446655440000",
		"from":       "660e8400-e29b-41d4-a716-446655440001",
		"at_block":   uint64(1000),
		"sequence":   int64(42),
	}
}

func TestParseStake(t *testing.T) {
	payload := baseMeta()
	payload["asset"] = "USDC"
	payload["amount"] = "1000000000000000000000"
	payload["receiver"] = "770e8400-e29b-41d4-a716-446655440002"

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Stake")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	s, ok := cmd.(*command.Stake)
	if !ok {
		t.Fatalf("expected *command.Stake, got %T", cmd)
	}

	if s.AssetSymbol != "USDC" {
		t.Errorf("asset: got %s, want USDC", s.AssetSymbol)
	}
	if s.Amount.Dec() != "1000000000000000000000" {
		t.Errorf("amount: got %s, want 1000000000000000000000", s.Amount.Dec())
	}
	if s.AtBlock != 1000 {
		t.Errorf("at_block: got %d, want 1000", s.AtBlock)
	}
	if s.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", s.Sequence)
	}
	if s.CommandType() != command.TypeStake {
		t.Errorf("command type: got %v, want Stake", s.CommandType())
	}
}

func TestParseTokenInit(t *testing.T) {
	payload := baseMeta()
	payload["asset"] = "DAI"
	payload["gov_address"] = "770e8400-e29b-41d4-a716-446655440002"
	payload["enable_staking"] = true
	payload["enable_premium"] = false

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "TokenInit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ti, ok := cmd.(*command.TokenInit)
	if !ok {
		t.Fatalf("expected *command.TokenInit, got %T", cmd)
	}

	if ti.AssetSymbol != "DAI" {
		t.Errorf("asset: got %s, want DAI", ti.AssetSymbol)
	}
	if !ti.EnableStaking {
		t.Error("enable_staking: got false, want true")
	}
	if ti.EnablePremium {
		t.Error("enable_premium: got true, want false")
	}
}

func TestParseProtocolWithdraw_MaxSentinel(t *testing.T) {
	payload := baseMeta()
	payload["asset"] = "USDC"
	payload["protocol_id"] = "770e8400-e29b-41d4-a716-446655440002"
	payload["amount"] = "max"
	payload["receiver"] = "880e8400-e29b-41d4-a716-446655440003"

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "ProtocolWithdraw")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pw := cmd.(*command.ProtocolWithdraw)
	if !amount.IsMax(pw.Amount) {
		t.Errorf("amount: got %s, want full-balance sentinel", pw.Amount.Dec())
	}
}

func TestParseSetPremiums(t *testing.T) {
	payload := baseMeta()
	payload["asset"] = "USDC"
	payload["protocol_ids"] = []string{
		"770e8400-e29b-41d4-a716-446655440002",
		"880e8400-e29b-41d4-a716-446655440003",
	}
	payload["premiums_per_block"] = []string{"100", "200"}
	payload["usd_price"] = "1000000000000000000"

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetPremiums")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sp := cmd.(*command.SetPremiums)
	if len(sp.ProtocolIDs) != 2 {
		t.Fatalf("protocol_ids: got %d, want 2", len(sp.ProtocolIDs))
	}
	if sp.PremiumsPerBlock[1].Uint64() != 200 {
		t.Errorf("premiums_per_block[1]: got %d, want 200", sp.PremiumsPerBlock[1].Uint64())
	}
	if sp.UsdPrice == nil || sp.UsdPrice.Dec() != "1000000000000000000" {
		t.Errorf("usd_price: got %v, want 1e18", sp.UsdPrice)
	}
}

func TestParseSetPremium_OptionalPriceAbsent(t *testing.T) {
	payload := baseMeta()
	payload["asset"] = "USDC"
	payload["protocol_id"] = "770e8400-e29b-41d4-a716-446655440002"
	payload["premium_per_block"] = "5"

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetPremium")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sp := cmd.(*command.SetPremium)
	if sp.UsdPrice != nil {
		t.Errorf("usd_price: got %s, want nil", sp.UsdPrice.Dec())
	}
	if sp.PremiumPerBlock.Uint64() != 5 {
		t.Errorf("premium_per_block: got %d, want 5", sp.PremiumPerBlock.Uint64())
	}
}

func TestParseSetWeights(t *testing.T) {
	payload := baseMeta()
	payload["assets"] = []string{"USDC", "DAI"}
	payload["weights"] = []uint16{40000, 25000}
	payload["beneficiary_weight"] = uint16(535)
	payload["beneficiary"] = "990e8400-e29b-41d4-a716-446655440004"

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetWeights")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sw := cmd.(*command.SetWeights)
	if len(sw.Assets) != 2 || sw.Assets[1] != "DAI" {
		t.Errorf("assets: got %v, want [USDC DAI]", sw.Assets)
	}
	if sw.Weights[0] != 40000 {
		t.Errorf("weights[0]: got %d, want 40000", sw.Weights[0])
	}
	if sw.BeneficiaryWeight != 535 {
		t.Errorf("beneficiary_weight: got %d, want 535", sw.BeneficiaryWeight)
	}
}

func TestParsePayout(t *testing.T) {
	payload := baseMeta()
	payload["receiver"] = "770e8400-e29b-41d4-a716-446655440002"
	payload["assets"] = []string{"USDC", "DAI"}
	payload["first_money_out"] = []string{"100", "0"}
	payload["staker_pool_amounts"] = []string{"50", "25"}
	payload["unallocated_amounts"] = []string{"0", "10"}
	payload["excluded_asset"] = "DAI"

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Payout")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	p := cmd.(*command.Payout)
	if len(p.AssetSymbols) != 2 {
		t.Fatalf("assets: got %d, want 2", len(p.AssetSymbols))
	}
	if p.FirstMoneyOut[0].Uint64() != 100 {
		t.Errorf("first_money_out[0]: got %d, want 100", p.FirstMoneyOut[0].Uint64())
	}
	if p.UnallocatedAmounts[1].Uint64() != 10 {
		t.Errorf("unallocated_amounts[1]: got %d, want 10", p.UnallocatedAmounts[1].Uint64())
	}
	if p.ExcludedAsset != "DAI" {
		t.Errorf("excluded_asset: got %s, want DAI", p.ExcludedAsset)
	}
}

func TestParseHarvest_EmptyAssets(t *testing.T) {
	payload := baseMeta()

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Harvest")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	h := cmd.(*command.Harvest)
	if len(h.AssetSymbols) != 0 {
		t.Errorf("assets: got %v, want empty (harvest all)", h.AssetSymbols)
	}
}

func TestParseUnknownCommandType_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawCommand(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawCommand(raw, "Stake")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := baseMeta()
	payload["from"] = "not-a-uuid"
	payload["asset"] = "USDC"
	payload["amount"] = "1"
	payload["receiver"] = "770e8400-e29b-41d4-a716-446655440002"

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, "Stake")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}

func TestParseInvalidAmount_Fails(t *testing.T) {
	payload := baseMeta()
	payload["asset"] = "USDC"
	payload["amount"] = "12abc"
	payload["receiver"] = "770e8400-e29b-41d4-a716-446655440002"

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, "Stake")
	if err == nil {
		t.Fatal("expected error for malformed amount")
	}
}
