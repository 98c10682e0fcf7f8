package core

import (
	"fmt"
)

// BlockValidator validates the two ordering inputs every command carries:
// the per-partition source sequence from the upstream feed, and the block
// height the command executes at. Blocks never invent themselves inside the
// core; they arrive as versioned inputs and may only move forward. Equal
// heights are allowed — many commands land in one block.
//
// Not thread-safe — only accessed from the single-threaded core.
type BlockValidator struct {
	expectedNextSeq map[string]int64 // partition -> next expected sequence
	lastBlock       uint64
	metrics         *OrderingMetrics
}

func NewBlockValidator() *BlockValidator {
	return &BlockValidator{
		expectedNextSeq: make(map[string]int64),
		metrics:         NewOrderingMetrics(),
	}
}

// ValidateSequence checks source sequence ordering within a partition
func (bv *BlockValidator) ValidateSequence(
	partition string,
	sourceSequence int64,
	idempotencyKey string,
	isDuplicate bool,
) error {
	expected := bv.expectedNextSeq[partition]

	if sourceSequence < expected {
		// Stale or duplicate
		if isDuplicate {
			// Already applied — expected
			return nil
		}
		// Out-of-order delivery of a NEW command
		bv.metrics.RecordOutOfOrder(partition)
		return fmt.Errorf("out-of-order command: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	if sourceSequence == expected {
		bv.expectedNextSeq[partition] = expected + 1
		return nil
	}

	// sourceSequence > expected - gap detected
	bv.metrics.RecordGap(partition, expected, sourceSequence)
	return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
		partition, expected, sourceSequence)
}

// ValidateBlock enforces block monotonicity and advances the high-water mark
func (bv *BlockValidator) ValidateBlock(block uint64) error {
	if block < bv.lastBlock {
		bv.metrics.RecordBlockRegression()
		return fmt.Errorf("block regression: last=%d, got=%d", bv.lastBlock, block)
	}
	bv.lastBlock = block
	return nil
}

// LastBlock returns the block high-water mark
func (bv *BlockValidator) LastBlock() uint64 {
	return bv.lastBlock
}

// GetExpectedSequence returns next expected sequence for a partition
func (bv *BlockValidator) GetExpectedSequence(partition string) int64 {
	return bv.expectedNextSeq[partition]
}

// SetExpectedSequence initializes expected sequence (used during recovery)
func (bv *BlockValidator) SetExpectedSequence(partition string, seq int64) {
	bv.expectedNextSeq[partition] = seq
}

// SetLastBlock restores the block high-water mark (used during recovery)
func (bv *BlockValidator) SetLastBlock(block uint64) {
	bv.lastBlock = block
}

// GetAllPartitions returns a copy of the per-partition sequence state
func (bv *BlockValidator) GetAllPartitions() map[string]int64 {
	out := make(map[string]int64, len(bv.expectedNextSeq))
	for k, v := range bv.expectedNextSeq {
		out[k] = v
	}
	return out
}

// --- Metrics ---

// OrderingMetrics tracks ordering validation stats.
// Not thread-safe — only accessed from the single-threaded core.
type OrderingMetrics struct {
	gaps             map[string]int64 // partition -> gap count
	outOfOrder       map[string]int64 // partition -> out-of-order count
	blockRegressions int64
}

func NewOrderingMetrics() *OrderingMetrics {
	return &OrderingMetrics{
		gaps:       make(map[string]int64),
		outOfOrder: make(map[string]int64),
	}
}

func (m *OrderingMetrics) RecordGap(partition string, expected, got int64) {
	m.gaps[partition]++
}

func (m *OrderingMetrics) RecordOutOfOrder(partition string) {
	m.outOfOrder[partition]++
}

func (m *OrderingMetrics) RecordBlockRegression() {
	m.blockRegressions++
}

func (m *OrderingMetrics) GetGaps(partition string) int64 {
	return m.gaps[partition]
}

func (m *OrderingMetrics) GetOutOfOrder(partition string) int64 {
	return m.outOfOrder[partition]
}

func (m *OrderingMetrics) GetBlockRegressions() int64 {
	return m.blockRegressions
}
