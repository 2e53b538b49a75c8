package enchant

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyCatalog    = errors.New("catalog has no templates")
	ErrInvalidTemplate = errors.New("invalid option template")
)

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: probability is not finite", ErrInvalidTemplate)
	}
	if p <= 0 || p > 1 {
		return fmt.Errorf("%w: probability %v outside (0,1]", ErrInvalidTemplate, p)
	}
	return nil
}

func validateTemplate(t OptionTemplate) error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTemplate)
	}
	if t.Min > t.Max {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidTemplate, t.Min, t.Max)
	}
	switch t.Kind {
	case KindStat, KindSet:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTemplate, t.Kind)
	}
	switch t.Tier {
	case TierCommon, TierUncommon, TierRare, TierLegendary:
	default:
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidTemplate, t.Tier)
	}
	return validateProb(t.Probability)
}
