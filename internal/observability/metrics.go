package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for SherPool.
type Metrics struct {
	// --- Core Processing ---
	CoreCommandsApplied  *prometheus.CounterVec
	CoreCommandsRejected *prometheus.CounterVec
	CoreCommandDuration  *prometheus.HistogramVec
	CoreJournals         *prometheus.CounterVec
	CoreStateHashDur     prometheus.Histogram
	CoreSequence         prometheus.Gauge
	CoreBlockHeight      prometheus.Gauge

	// --- Latency ---
	IngestToApply       *prometheus.HistogramVec
	ApplyToPersist      prometheus.Histogram
	QueryFreshnessLag   *prometheus.HistogramVec
	NATSPullLatency     *prometheus.HistogramVec
	PersistBatchDur     prometheus.Histogram
	ProjectionUpdateDur *prometheus.HistogramVec

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & Ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	DedupTier2Duration    prometheus.Histogram
	CommandSequenceGap    *prometheus.CounterVec
	CommandOutOfOrder     *prometheus.CounterVec
	BlockRegressions      prometheus.Counter

	// --- Staking ---
	StakeDeposits    *prometheus.CounterVec
	UnstakeWithdraws *prometheus.CounterVec
	CooldownsOpened  *prometheus.CounterVec
	CooldownsExpired *prometheus.CounterVec
	PoolTotalShares  *prometheus.GaugeVec
	PoolStakersPool  *prometheus.GaugeVec
	PoolFirstMoneyOut *prometheus.GaugeVec

	// --- Premium ---
	PremiumSettlements  *prometheus.CounterVec
	PremiumShortfalls   *prometheus.CounterVec
	ProtocolsActive     *prometheus.GaugeVec
	ProtocolsCleaned    *prometheus.CounterVec

	// --- SherX & Payout ---
	SherXHarvests       *prometheus.CounterVec
	SherXInternalSupply prometheus.Gauge
	PayoutsExecuted     prometheus.Counter
	PayoutLegs          *prometheus.CounterVec

	// --- Persistence ---
	PersistCommandsWritten prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken       prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	SnapshotSizeBytes   prometheus.Gauge
	SnapshotLastSeq     prometheus.Gauge
	ReplayCommandsTotal prometheus.Counter
	ReplayDuration      prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core Processing
		CoreCommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_core_commands_applied_total",
			Help: "Commands successfully applied by core",
		}, []string{"command_type"}),

		CoreCommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_core_commands_rejected_total",
			Help: "Commands rejected (dedup, gap, precondition)",
		}, []string{"command_type", "reason"}),

		CoreCommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sher_core_command_apply_duration_seconds",
			Help:    "Time to apply a single command in core",
			Buckets: latencyBuckets,
		}, []string{"command_type"}),

		CoreJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreStateHashDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sher_core_state_hash_duration_seconds",
			Help:    "Time to compute state hash",
			Buckets: latencyBuckets,
		}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_core_sequence",
			Help: "Current global sequence number",
		}),

		CoreBlockHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_core_block_height",
			Help: "Block high-water mark",
		}),

		// Latency
		IngestToApply: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sher_ingest_to_apply_seconds",
			Help:    "NATS receive to core apply complete",
			Buckets: ingestBuckets,
		}, []string{"command_type"}),

		ApplyToPersist: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sher_apply_to_persist_seconds",
			Help:    "Core emit to Postgres commit",
			Buckets: latencyBuckets,
		}),

		QueryFreshnessLag: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sher_query_freshness_lag_seconds",
			Help:    "Core sequence minus projection sequence (in time)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0},
		}, []string{"endpoint"}),

		NATSPullLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sher_nats_pull_latency_seconds",
			Help:    "NATS pull request latency",
			Buckets: ingestBuckets,
		}, []string{"subject"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sher_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sher_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}, []string{"projection"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_publish_drops_total",
			Help: "Outputs dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		// Idempotency & Ordering
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"command_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		DedupTier2Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sher_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: latencyBuckets,
		}),

		CommandSequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_command_sequence_gap_total",
			Help: "Source sequence gaps",
		}, []string{"partition"}),

		CommandOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_command_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		BlockRegressions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_block_regressions_total",
			Help: "Commands rejected for a block below the high-water mark",
		}),

		// Staking
		StakeDeposits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_stake_deposits_total",
			Help: "Stake deposits applied",
		}, []string{"asset"}),

		UnstakeWithdraws: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_unstake_withdrawals_total",
			Help: "Unstake withdrawals paid out",
		}, []string{"asset"}),

		CooldownsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_cooldowns_opened_total",
			Help: "Cooldown entries opened",
		}, []string{"asset"}),

		CooldownsExpired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_cooldowns_expired_total",
			Help: "Unstake windows expired without withdrawal",
		}, []string{"asset"}),

		PoolTotalShares: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_pool_total_shares",
			Help: "Total outstanding shares per asset",
		}, []string{"asset"}),

		PoolStakersPool: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_pool_stakers_balance",
			Help: "Staker principal per asset",
		}, []string{"asset"}),

		PoolFirstMoneyOut: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_pool_first_money_out_balance",
			Help: "First-money-out buffer per asset",
		}, []string{"asset"}),

		// Premium
		PremiumSettlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_premium_settlements_total",
			Help: "Debt settlement passes per asset",
		}, []string{"asset"}),

		PremiumShortfalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_premium_shortfalls_total",
			Help: "Settlements where accrued debt exceeded the prepaid balance",
		}, []string{"asset"}),

		ProtocolsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sher_protocols_active",
			Help: "Protocols with a nonzero premium rate per asset",
		}, []string{"asset"}),

		ProtocolsCleaned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_protocols_cleaned_total",
			Help: "Protocols removed from coverage",
		}, []string{"asset"}),

		// SherX & Payout
		SherXHarvests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_sherx_harvests_total",
			Help: "Harvest commands applied",
		}, []string{"asset"}),

		SherXInternalSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_sherx_internal_supply",
			Help: "Internal (minted + accrued) SherX supply",
		}),

		PayoutsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_payouts_executed_total",
			Help: "Payout commands applied",
		}),

		PayoutLegs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_payout_legs_total",
			Help: "Payout legs by waterfall tier",
		}, []string{"leg"}),

		// Persistence
		PersistCommandsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_persist_commands_written_total",
			Help: "Commands written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sher_persist_batch_size",
			Help:    "Commands per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sher_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayCommandsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sher_replay_commands_total",
			Help: "Commands replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sher_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sher_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sher_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
