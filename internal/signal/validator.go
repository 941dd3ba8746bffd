package signal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// BookView is the slice of ledger state the validator reads. Acceptance
// here is advisory: the ledger re-checks ExistingPosition at commit time,
// so a race between two signals for one token loses cleanly there.
type BookView interface {
	HasPosition(token string) bool
	OpenCount() int
}

// Auditor records every validation verdict. Implementations must not
// block the pipeline.
type Auditor interface {
	RecordSignal(sig *domain.TradeSignal, accepted bool, reason domain.RejectReason)
}

// ValidatorConfig carries the acceptance thresholds.
type ValidatorConfig struct {
	MinConfidence float64
	MaxPositions  int
	MinNotional   float64
}

// Validator applies the acceptance policy to built signals. Rejection
// reasons are evaluated in a fixed order and the first match wins.
type Validator struct {
	mu   sync.Mutex
	seen map[string]struct{}

	cfg    ValidatorConfig
	book   BookView
	audit  Auditor
	logger *zap.Logger
}

func NewValidator(cfg ValidatorConfig, book BookView, audit Auditor, logger *zap.Logger) *Validator {
	return &Validator{
		seen:   make(map[string]struct{}),
		cfg:    cfg,
		book:   book,
		audit:  audit,
		logger: logger.Named("validator"),
	}
}

// Validate returns ("", true) for accepted signals or the first matching
// rejection reason. Every signal, accepted or not, is marked seen and
// audited exactly once.
func (v *Validator) Validate(sig *domain.TradeSignal) (domain.RejectReason, bool) {
	reason, ok := v.check(sig)

	if v.audit != nil {
		v.audit.RecordSignal(sig, ok, reason)
	}
	if ok {
		v.logger.Info("Signal accepted",
			zap.String("token", sig.TokenAddress),
			zap.String("wallet", sig.WalletAddress),
			zap.Float64("confidence", sig.Confidence))
	} else {
		v.logger.Info("Signal rejected",
			zap.String("token", sig.TokenAddress),
			zap.String("reason", string(reason)))
	}
	return reason, ok
}

func (v *Validator) check(sig *domain.TradeSignal) (domain.RejectReason, bool) {
	v.mu.Lock()
	key := sig.Key()
	if _, dup := v.seen[key]; dup {
		v.mu.Unlock()
		return domain.RejectDuplicateSignal, false
	}
	v.seen[key] = struct{}{}
	v.mu.Unlock()

	if sig.Confidence < v.cfg.MinConfidence {
		return domain.RejectLowConfidence, false
	}
	if v.book.HasPosition(sig.TokenAddress) {
		return domain.RejectExistingPosition, false
	}
	if v.book.OpenCount() >= v.cfg.MaxPositions {
		return domain.RejectPositionCap, false
	}
	if sig.Notional < v.cfg.MinNotional {
		return domain.RejectBelowMinNotional, false
	}
	return "", true
}

// SeenCount reports how many unique signal keys have been processed.
func (v *Validator) SeenCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
