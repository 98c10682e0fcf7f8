package state

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Strategy is the yield capability consumed by the engine: idle capital is
// swept in, pulled back out on demand. The engine keeps its own deployed
// counter; BalanceOf is a boundary read used by the query surface and for
// drift detection, never by the deterministic core.
type Strategy interface {
	Deposit(asset string, amount *uint256.Int) error
	Withdraw(asset string, amount *uint256.Int) error
	WithdrawAll(asset string) (*uint256.Int, error)
	BalanceOf(asset string) (*uint256.Int, error)
}

// InMemoryStrategy is a trivial Strategy used in tests and local runs.
type InMemoryStrategy struct {
	balances map[string]*uint256.Int
}

func NewInMemoryStrategy() *InMemoryStrategy {
	return &InMemoryStrategy{balances: make(map[string]*uint256.Int)}
}

func (s *InMemoryStrategy) Deposit(asset string, amount *uint256.Int) error {
	b, ok := s.balances[asset]
	if !ok {
		b = new(uint256.Int)
		s.balances[asset] = b
	}
	b.Add(b, amount)
	return nil
}

func (s *InMemoryStrategy) Withdraw(asset string, amount *uint256.Int) error {
	b := s.balances[asset]
	if b == nil || b.Lt(amount) {
		return fmt.Errorf("strategy balance for %s below %s", asset, amount.Dec())
	}
	b.Sub(b, amount)
	return nil
}

func (s *InMemoryStrategy) WithdrawAll(asset string) (*uint256.Int, error) {
	b := s.balances[asset]
	if b == nil {
		return new(uint256.Int), nil
	}
	out := new(uint256.Int).Set(b)
	b.Clear()
	return out, nil
}

func (s *InMemoryStrategy) BalanceOf(asset string) (*uint256.Int, error) {
	b := s.balances[asset]
	if b == nil {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Set(b), nil
}

// StrategyExecutor replays the strategy legs of a command's effects against
// a Strategy. The shell runs it after the core commits, so the strategy's
// external position tracks the engine's StrategyDeployed counter.
type StrategyExecutor struct {
	strategy Strategy
}

func NewStrategyExecutor(s Strategy) *StrategyExecutor {
	return &StrategyExecutor{strategy: s}
}

// Apply executes the strategy deposits and withdrawals in effects, in order.
// Non-strategy effects pass through untouched.
func (e *StrategyExecutor) Apply(effects []Effect) error {
	for _, ef := range effects {
		switch ef.Kind {
		case EffectStrategyDeposit:
			if err := e.strategy.Deposit(ef.Asset, ef.Amount); err != nil {
				return fmt.Errorf("strategy deposit %s %s: %w", ef.Asset, ef.Amount.Dec(), err)
			}
		case EffectStrategyWithdraw:
			if err := e.strategy.Withdraw(ef.Asset, ef.Amount); err != nil {
				return fmt.Errorf("strategy withdraw %s %s: %w", ef.Asset, ef.Amount.Dec(), err)
			}
		}
	}
	return nil
}
