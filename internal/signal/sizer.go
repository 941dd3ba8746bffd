package signal

// SizerConfig bounds the stake computation. The multiplier floor and the
// fractions are configurable because historical deployments disagreed on
// their exact values.
type SizerConfig struct {
	MaxPositionFraction float64 // base fraction of cash per position
	MaxSingleFraction   float64 // hard ceiling independent of confidence
	MinStakeUSD         float64 // below this the sizer returns 0
}

// Sizer computes the USD stake for an accepted signal.
type Sizer struct {
	cfg SizerConfig
}

func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the stake in USD for the given available cash and wallet
// confidence. A zero return is an implicit rejection.
//
//	base  = cash * maxPositionFraction
//	mult  = 0.5 + confidence        (0.5 .. 1.5)
//	stake = min(base*mult, cash*maxSingleFraction)
func (s *Sizer) Size(cash, confidence float64) float64 {
	if cash <= 0 {
		return 0
	}

	base := cash * s.cfg.MaxPositionFraction
	mult := 0.5 + confidence
	stake := base * mult

	if ceiling := cash * s.cfg.MaxSingleFraction; stake > ceiling {
		stake = ceiling
	}
	if stake < s.cfg.MinStakeUSD {
		return 0
	}
	return stake
}
