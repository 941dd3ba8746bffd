package domain

import (
	"errors"
	"fmt"
)

// FaultKind separates retryable transport faults from policy rejections,
// venue business errors, ledger invariant violations and fatal
// configuration problems. Only Transient faults are ever retried.
type FaultKind int

const (
	FaultTransient FaultKind = iota
	FaultPolicy
	FaultExecution
	FaultLedger
	FaultConfig
)

func (k FaultKind) String() string {
	switch k {
	case FaultTransient:
		return "transient"
	case FaultPolicy:
		return "policy_rejection"
	case FaultExecution:
		return "execution_failure"
	case FaultLedger:
		return "ledger_inconsistency"
	case FaultConfig:
		return "fatal_config"
	default:
		return "unknown"
	}
}

// Fault wraps an error with its kind so callers can branch on retry
// policy without string matching.
type Fault struct {
	Kind   FaultKind
	Reason string
	Err    error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s (%s): %v", f.Reason, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s (%s)", f.Reason, f.Kind)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault builds a Fault of the given kind.
func NewFault(kind FaultKind, reason string, err error) *Fault {
	return &Fault{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the fault kind from an error chain. Unclassified errors
// are treated as transient, matching the retry policy for raw transport
// errors.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultTransient
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool { return KindOf(err) == FaultTransient }
