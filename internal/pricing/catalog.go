package pricing

import (
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
)

// PriceKey is the store key the unit price is persisted under.
const PriceKey = "holyWaterPrice"

// DefaultUnitPrice is used when nothing has been persisted yet.
const DefaultUnitPrice = "1000000"

// ParsePrice reads a non-negative integer price, tolerating "," thousands separators
// and surrounding spaces. Empty input is a price of 0. ok is false for anything else.
func ParsePrice(s string) (price *big.Int, ok bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return new(big.Int), true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return v, true
}

// Cost returns tries * unitPrice exactly.
func Cost(tries uint64, unitPrice *big.Int) *big.Int {
	if unitPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(tries), unitPrice)
}

// ExpectedCost prices a fractional expected number of tries, rounded to the nearest unit.
func ExpectedCost(meanTries float64, unitPrice *big.Int) *big.Int {
	if unitPrice == nil || meanTries <= 0 {
		return new(big.Int)
	}
	f := new(big.Float).SetPrec(256).SetFloat64(meanTries)
	f.Mul(f, new(big.Float).SetPrec(256).SetInt(unitPrice))
	f.Add(f, big.NewFloat(0.5))
	out, _ := f.Int(nil)
	return out
}

// AffordableTries is how many holy waters a budget buys at unitPrice.
// A zero price buys nothing meaningful, so it reports 0.
func AffordableTries(budget, unitPrice *big.Int) *big.Int {
	if budget == nil || unitPrice == nil || unitPrice.Sign() <= 0 || budget.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Quo(budget, unitPrice)
}

// Format groups digits the way the ko-KR locale does ("3,000,000").
func Format(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return humanize.BigComma(n)
}
