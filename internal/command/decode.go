package command

import (
	"encoding/json"
	"fmt"
)

// FromPayload decodes a stored command payload back into its typed form.
// The payload is the JSON the core wrote to the command log, so this is
// the inverse of marshalling the command struct, used during replay.
func FromPayload(typeName string, payload []byte) (Command, error) {
	cmd, err := newByTypeName(typeName)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", typeName, err)
	}
	return cmd, nil
}

func newByTypeName(typeName string) (Command, error) {
	switch typeName {
	case "TokenInit":
		return &TokenInit{}, nil
	case "TokenDisableStakers":
		return &TokenDisableStakers{}, nil
	case "TokenDisableProtocol":
		return &TokenDisableProtocol{}, nil
	case "TokenUnload":
		return &TokenUnload{}, nil
	case "TokenRemove":
		return &TokenRemove{}, nil
	case "Stake":
		return &Stake{}, nil
	case "ActivateCooldown":
		return &ActivateCooldown{}, nil
	case "CancelCooldown":
		return &CancelCooldown{}, nil
	case "Unstake":
		return &Unstake{}, nil
	case "UnstakeWindowExpiry":
		return &UnstakeWindowExpiry{}, nil
	case "ProtocolAdd":
		return &ProtocolAdd{}, nil
	case "ProtocolUpdate":
		return &ProtocolUpdate{}, nil
	case "ProtocolDeposit":
		return &ProtocolDeposit{}, nil
	case "ProtocolWithdraw":
		return &ProtocolWithdraw{}, nil
	case "SetPremium":
		return &SetPremium{}, nil
	case "SetPremiums":
		return &SetPremiums{}, nil
	case "PayOffDebtAll":
		return &PayOffDebtAll{}, nil
	case "CleanProtocol":
		return &CleanProtocol{}, nil
	case "SetWeights":
		return &SetWeights{}, nil
	case "Harvest":
		return &Harvest{}, nil
	case "SherXTransfer":
		return &SherXTransfer{}, nil
	case "SherXApprove":
		return &SherXApprove{}, nil
	case "SherXTransferFrom":
		return &SherXTransferFrom{}, nil
	case "Payout":
		return &Payout{}, nil
	case "SetCooldownFee":
		return &SetCooldownFee{}, nil
	case "SetCooldownDuration":
		return &SetCooldownDuration{}, nil
	case "SetUnstakeWindow":
		return &SetUnstakeWindow{}, nil
	case "SetStrategy":
		return &SetStrategy{}, nil
	case "StrategyDeposit":
		return &StrategyDeposit{}, nil
	case "StrategyWithdraw":
		return &StrategyWithdraw{}, nil
	case "SetTokenPrice":
		return &SetTokenPrice{}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", typeName)
}
