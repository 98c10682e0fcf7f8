package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks audit-ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{tracker: tracker}
}

// ValidateBatchBalance verifies a batch is well-formed before application
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateConservation verifies the zero-sum conservation invariant: for every
// asset, pool + protocol balances exactly offset the external boundary flows.
func (v *InvariantValidator) ValidateConservation() error {
	for asset, total := range v.tracker.ComputeGlobalBalance() {
		if total.Sign() != 0 {
			return fmt.Errorf("conservation violated for %s: global sum %s", asset, total.String())
		}
	}
	return nil
}

// ValidatePoolNonNegative checks both per-asset pool accounts are >= 0
func (v *InvariantValidator) ValidatePoolNonNegative(asset string) error {
	if err := v.tracker.ValidateNonNegative(NewPoolAccountKey(asset, SubTypeStakersPool)); err != nil {
		return err
	}
	return v.tracker.ValidateNonNegative(NewPoolAccountKey(asset, SubTypeFirstMoneyOut))
}

// ValidateProtocolNonNegative checks a protocol's prepaid balance is >= 0
func (v *InvariantValidator) ValidateProtocolNonNegative(protocolID uuid.UUID, asset string) error {
	return v.tracker.ValidateNonNegative(NewProtocolAccountKey(protocolID, asset))
}
