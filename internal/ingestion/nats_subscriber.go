package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds commands
// into the deterministic core via the commandChan.
// JetStream is the primary high-throughput ingestion surface. Each subject
// maps to a command type.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumers   []jetstream.ConsumeContext
}

// RawCommand is the received-but-untyped command from NATS, ready for the
// shell to validate and convert into a typed command.Command before sending
// to the core.
type RawCommand struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to command types.
// Each command type has its own subject for independent scaling.
type SubjectConfig struct {
	Subject      string
	CommandType  string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "sher.pool.init.>", CommandType: "TokenInit", ConsumerName: "sher-token-init", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.disable_stakers.>", CommandType: "TokenDisableStakers", ConsumerName: "sher-token-disable-stakers", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.disable_protocol.>", CommandType: "TokenDisableProtocol", ConsumerName: "sher-token-disable-protocol", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.unload.>", CommandType: "TokenUnload", ConsumerName: "sher-token-unload", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.remove.>", CommandType: "TokenRemove", ConsumerName: "sher-token-remove", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.stake.>", CommandType: "Stake", ConsumerName: "sher-stake", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.cooldown.activate.>", CommandType: "ActivateCooldown", ConsumerName: "sher-cooldown-activate", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.cooldown.cancel.>", CommandType: "CancelCooldown", ConsumerName: "sher-cooldown-cancel", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.unstake.>", CommandType: "Unstake", ConsumerName: "sher-unstake", StreamName: "SHER_POOL"},
		{Subject: "sher.pool.window_expiry.>", CommandType: "UnstakeWindowExpiry", ConsumerName: "sher-window-expiry", StreamName: "SHER_POOL"},
		{Subject: "sher.premium.protocol.add.>", CommandType: "ProtocolAdd", ConsumerName: "sher-protocol-add", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.protocol.update.>", CommandType: "ProtocolUpdate", ConsumerName: "sher-protocol-update", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.deposit.>", CommandType: "ProtocolDeposit", ConsumerName: "sher-protocol-deposit", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.withdraw.>", CommandType: "ProtocolWithdraw", ConsumerName: "sher-protocol-withdraw", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.set.>", CommandType: "SetPremium", ConsumerName: "sher-premium-set", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.set_batch.>", CommandType: "SetPremiums", ConsumerName: "sher-premium-set-batch", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.payoff.>", CommandType: "PayOffDebtAll", ConsumerName: "sher-premium-payoff", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.premium.clean.>", CommandType: "CleanProtocol", ConsumerName: "sher-protocol-clean", StreamName: "SHER_PREMIUM"},
		{Subject: "sher.sherx.weights.>", CommandType: "SetWeights", ConsumerName: "sher-weights", StreamName: "SHER_SHERX"},
		{Subject: "sher.sherx.price.>", CommandType: "SetTokenPrice", ConsumerName: "sher-token-price", StreamName: "SHER_SHERX"},
		{Subject: "sher.sherx.harvest.>", CommandType: "Harvest", ConsumerName: "sher-harvest", StreamName: "SHER_SHERX"},
		{Subject: "sher.sherx.transfer.>", CommandType: "SherXTransfer", ConsumerName: "sher-sherx-transfer", StreamName: "SHER_SHERX"},
		{Subject: "sher.sherx.approve.>", CommandType: "SherXApprove", ConsumerName: "sher-sherx-approve", StreamName: "SHER_SHERX"},
		{Subject: "sher.sherx.transfer_from.>", CommandType: "SherXTransferFrom", ConsumerName: "sher-sherx-transfer-from", StreamName: "SHER_SHERX"},
		{Subject: "sher.payout.execute.>", CommandType: "Payout", ConsumerName: "sher-payout", StreamName: "SHER_PAYOUT"},
		{Subject: "sher.gov.cooldown_fee.>", CommandType: "SetCooldownFee", ConsumerName: "sher-cooldown-fee", StreamName: "SHER_GOV"},
		{Subject: "sher.gov.cooldown_duration.>", CommandType: "SetCooldownDuration", ConsumerName: "sher-cooldown-duration", StreamName: "SHER_GOV"},
		{Subject: "sher.gov.unstake_window.>", CommandType: "SetUnstakeWindow", ConsumerName: "sher-unstake-window", StreamName: "SHER_GOV"},
		{Subject: "sher.gov.strategy.set.>", CommandType: "SetStrategy", ConsumerName: "sher-strategy-set", StreamName: "SHER_GOV"},
		{Subject: "sher.gov.strategy.deposit.>", CommandType: "StrategyDeposit", ConsumerName: "sher-strategy-deposit", StreamName: "SHER_GOV"},
		{Subject: "sher.gov.strategy.withdraw.>", CommandType: "StrategyWithdraw", ConsumerName: "sher-strategy-withdraw", StreamName: "SHER_GOV"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.commandChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "SHER_POOL",
			Subjects:  []string{"sher.pool.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "SHER_PREMIUM",
			Subjects:  []string{"sher.premium.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "SHER_SHERX",
			Subjects:  []string{"sher.sherx.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "SHER_PAYOUT",
			Subjects:  []string{"sher.payout.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "SHER_GOV",
			Subjects:  []string{"sher.gov.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
