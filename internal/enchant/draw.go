package enchant

import (
	"math"
	"strconv"
	"strings"
)

// DefaultSkew is the exponent applied to the magnitude roll; larger means rarer high rolls.
const DefaultSkew = 2.5

// RolledOption is the outcome of one holy water: a rendered name and the tier it came from.
type RolledOption struct {
	Name string `json:"name"`
	Tier Tier   `json:"tier"`
}

// Roll carries the draw internals behind a RolledOption.
type Roll struct {
	Option   RolledOption
	Template int  // index into the catalog
	Value    int  // magnitude, within [Min, Max] of the template
	Fallback bool // weighted walk overran the table and took the last template
}

// Engine draws outcomes from a catalog. It holds no state besides its RandomSource.
type Engine struct {
	cat  *Catalog
	rng  RandomSource
	skew float64
}

// NewEngine builds an engine over cat. A nil rng means crypto randomness; skew <= 0 means DefaultSkew.
func NewEngine(cat *Catalog, rng RandomSource, skew float64) *Engine {
	if rng == nil {
		rng = DefaultRNG()
	}
	if skew <= 0 || math.IsNaN(skew) || math.IsInf(skew, 0) {
		skew = DefaultSkew
	}
	return &Engine{cat: cat, rng: rng, skew: skew}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog { return e.cat }

// Draw performs one two-stage draw: template by weight, then a skewed magnitude.
func (e *Engine) Draw() RolledOption {
	return e.Roll().Option
}

// Roll is Draw with the internals exposed.
func (e *Engine) Roll() Roll {
	idx, fallback := SelectTemplate(e.cat, e.rng.Float64()*e.cat.total)
	t := e.cat.templates[idx]
	v := Magnitude(t.Min, t.Max, e.rng.Float64(), e.skew)
	return Roll{
		Option:   RolledOption{Name: Render(t, v), Tier: t.Tier},
		Template: idx,
		Value:    v,
		Fallback: fallback,
	}
}

// SelectTemplate walks the catalog in declaration order, subtracting each weight from r,
// and returns the first template r falls under. r is expected in [0, TotalWeight).
// If rounding leaves r past the end, the last template is chosen and fallback is true.
func SelectTemplate(cat *Catalog, r float64) (idx int, fallback bool) {
	for i, t := range cat.templates {
		if r < t.Probability {
			return i, false
		}
		r -= t.Probability
	}
	return len(cat.templates) - 1, true
}

// Magnitude maps a uniform u in [0,1) to lo + floor(u^skew * (hi-lo+1)).
func Magnitude(lo, hi int, u, skew float64) int {
	span := hi - lo + 1
	v := lo + int(math.Floor(math.Pow(u, skew)*float64(span)))
	// u is below 1, so v stays below lo+span; guard the source contract anyway
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// Render formats "name value unit"; a unit starting with "%" is glued to the value.
func Render(t OptionTemplate, value int) string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(value))
	if !strings.HasPrefix(t.Unit, "%") {
		b.WriteByte(' ')
	}
	b.WriteString(t.Unit)
	return b.String()
}
