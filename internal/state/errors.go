package state

import (
	"errors"
	"fmt"
)

// ErrorClass categorizes precondition failures. Every failure leaves state
// untouched and is recoverable by the caller correcting the precondition.
type ErrorClass int

const (
	// ClassArgument — malformed input: zero amount/address, length mismatch
	ClassArgument ErrorClass = iota
	// ClassPrecondition — state does not admit the operation yet/anymore
	ClassPrecondition
	// ClassGuard — invariant-protection guard blocking a destructive change
	ClassGuard
)

// Reason codes, enumerable per operation.
const (
	ReasonZeroAmount       = "AMOUNT"
	ReasonZeroAddress      = "RECEIVER"
	ReasonLengthMismatch   = "LENGTH"
	ReasonNotInitialized   = "NOT_INITIALIZED"
	ReasonNoStaking        = "NO_STAKING"
	ReasonNoPremium        = "NO_PREMIUM"
	ReasonNotDisabled      = "NOT_DISABLED"
	ReasonNotEmpty         = "NOT_EMPTY"
	ReasonWrongLock        = "WRONG_LOCK"
	ReasonOwner            = "OWNER"
	ReasonSupply           = "SUPPLY"
	ReasonUnderlying       = "UNDERLYING"
	ReasonActiveWeight     = "ACTIVE_WEIGHT"
	ReasonActivePremium    = "ACTIVE_PREMIUM"
	ReasonActiveSherX      = "ACTIVE_SHERX"
	ReasonActiveStrategy   = "ACTIVE_STRATEGY"
	ReasonEmptySwap        = "EMPTY_SWAP"
	ReasonIndex            = "INDEX"
	ReasonNoData           = "NO_DATA"
	ReasonInsufficient     = "INSUFFICIENT_BALANCE"
	ReasonInsufficientIdle = "INSUFFICIENT_IDLE"
	ReasonWithdrawNotActive = "WITHDRAW_NOT_ACTIVE"
	ReasonCooldownActive    = "COOLDOWN_ACTIVE"
	ReasonCooldownExpired   = "COOLDOWN_EXPIRED"
	ReasonWindowExpired     = "UNSTAKE_WINDOW_EXPIRED"
	ReasonWindowNotExpired  = "UNSTAKE_WINDOW_NOT_EXPIRED"
	ReasonProtocolUnknown   = "PROTOCOL_UNKNOWN"
	ReasonProtocolExists    = "PROTOCOL_EXISTS"
	ReasonCanNotDelete      = "CAN_NOT_DELETE"
	ReasonCanNotDelete2     = "CAN_NOT_DELETE2"
	ReasonSum               = "SUM"
	ReasonDisabled          = "DISABLED"
	ReasonUnallocFee        = "ERR_UNALLOC_FEE"
	ReasonUnauthorized      = "UNAUTHORIZED"
	ReasonStrategyDeployed  = "STRATEGY_DEPLOYED"
	ReasonNoStrategy        = "NO_STRATEGY"
	ReasonFee               = "FEE"
)

// Error is a reason-coded precondition failure.
type Error struct {
	Reason string
	Class  ErrorClass
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func errArg(reason, format string, args ...interface{}) error {
	return &Error{Reason: reason, Class: ClassArgument, Detail: fmt.Sprintf(format, args...)}
}

func errState(reason, format string, args ...interface{}) error {
	return &Error{Reason: reason, Class: ClassPrecondition, Detail: fmt.Sprintf(format, args...)}
}

func errGuard(reason, format string, args ...interface{}) error {
	return &Error{Reason: reason, Class: ClassGuard, Detail: fmt.Sprintf(format, args...)}
}

// IsReason reports whether err carries the given reason code.
func IsReason(err error, reason string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason == reason
	}
	return false
}
