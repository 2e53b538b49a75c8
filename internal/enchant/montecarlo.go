package enchant

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrUnreachableTarget means no renderable outcome starts with the requested prefix.
var ErrUnreachableTarget = errors.New("target cannot be rolled from this catalog")

// Stats summarizes simulation results.
type Stats struct {
	Trials int     `json:"trials"`
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	// Optional: raw samples if caller needs histograms/exports
	Samples []int `json:"-"`
}

// calcStats computes mean/variance/percentiles for integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// population variance
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	percentile := func(p float64) float64 {
		if n == 1 || p <= 0 {
			return float64(cp[0])
		}
		if p >= 1 {
			return float64(cp[n-1])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i])
		}
		return float64(cp[i])*(1-f) + float64(cp[i+1])*f
	}

	return Stats{
		Trials:  n,
		Mean:    mean,
		Var:     variance,
		StdDev:  math.Sqrt(variance),
		P50:     percentile(0.50),
		P90:     percentile(0.90),
		P99:     percentile(0.99),
		Samples: xs,
	}
}

// drawsUntil counts draws up to and including the first outcome starting with target.
func drawsUntil(ctx context.Context, e *Engine, target string) (int, error) {
	draws := 0
	for {
		// checking the context on every draw is measurable; every 1024 is plenty
		if draws&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return draws, err
			}
		}
		draws++
		if strings.HasPrefix(e.Draw().Name, target) {
			return draws, nil
		}
	}
}

// RunMonteCarlo repeats independent auto-searches for target and summarizes
// the number of draws each needed.
func RunMonteCarlo(ctx context.Context, e *Engine, target string, trials int) (Stats, error) {
	if trials <= 0 {
		return Stats{}, nil
	}
	if !e.cat.Reachable(target) {
		return Stats{}, ErrUnreachableTarget
	}
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		v, err := drawsUntil(ctx, e, target)
		if err != nil {
			return Stats{}, err
		}
		samples[i] = v
	}
	return calcStats(samples), nil
}

// TierFrequencies draws n times and returns the observed share of each tier.
func TierFrequencies(e *Engine, n int) map[Tier]float64 {
	out := make(map[Tier]float64, len(Tiers))
	if n <= 0 {
		return out
	}
	counts := make(map[Tier]int, len(Tiers))
	for i := 0; i < n; i++ {
		counts[e.Draw().Tier]++
	}
	for _, t := range Tiers {
		out[t] = float64(counts[t]) / float64(n)
	}
	return out
}
