package enchant

import (
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Kind separates plain stat boosts from set-effect bonuses.
type Kind string

const (
	KindStat Kind = "stat"
	KindSet  Kind = "set"
)

// Tier is the rarity class a template hands down to its rolled outcomes.
type Tier string

const (
	TierCommon    Tier = "common"
	TierUncommon  Tier = "uncommon"
	TierRare      Tier = "rare"
	TierLegendary Tier = "legendary"
)

// Tiers lists every tier, rarest last.
var Tiers = []Tier{TierCommon, TierUncommon, TierRare, TierLegendary}

// OptionTemplate is one row of the option table.
// Example: {"크리티컬", stat, 4..5, "% 증가", rare, 0.01}
type OptionTemplate struct {
	Name        string
	Kind        Kind
	Min         int
	Max         int
	Unit        string  // display suffix; a leading "%" is glued to the value
	Tier        Tier
	Probability float64 // relative weight in (0,1]; the table need not sum to 1
}

// Catalog is an immutable, ordered list of templates.
// Declaration order is the tie-break for the weighted walk.
type Catalog struct {
	templates []OptionTemplate
	total     float64
}

// NewCatalog validates and freezes templates.
func NewCatalog(templates []OptionTemplate) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, ErrEmptyCatalog
	}
	cp := make([]OptionTemplate, len(templates))
	var total float64
	for i, t := range templates {
		if err := validateTemplate(t); err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i, t.Name, err)
		}
		cp[i] = t
		total += t.Probability
	}
	return &Catalog{templates: cp, total: total}, nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }

// Template returns the i-th template in declaration order.
func (c *Catalog) Template(i int) OptionTemplate { return c.templates[i] }

// Templates returns a copy of the ordered template list.
func (c *Catalog) Templates() []OptionTemplate {
	return append([]OptionTemplate(nil), c.templates...)
}

// TotalWeight is the sum of all template probabilities.
func (c *Catalog) TotalWeight() float64 { return c.total }

// TierWeights returns each tier's share of the total weight, normalized to 1.
func (c *Catalog) TierWeights() map[Tier]float64 {
	out := make(map[Tier]float64, len(Tiers))
	for _, t := range c.templates {
		out[t.Tier] += t.Probability
	}
	for k, v := range out {
		out[k] = v / c.total
	}
	return out
}

// Names returns the distinct template names in Korean collation order.
func (c *Catalog) Names() []string {
	seen := make(map[string]bool, len(c.templates))
	var names []string
	for _, t := range c.templates {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		names = append(names, t.Name)
	}
	collate.New(language.Korean).SortStrings(names)
	return names
}

// Outcomes enumerates every name the engine can render, in declaration order, without duplicates.
func (c *Catalog) Outcomes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.templates {
		for v := t.Min; v <= t.Max; v++ {
			name := Render(t, v)
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Reachable reports whether any renderable outcome starts with prefix.
func (c *Catalog) Reachable(prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, t := range c.templates {
		// cheap reject before enumerating magnitudes
		if !strings.HasPrefix(t.Name, prefix) && !strings.HasPrefix(prefix, t.Name) {
			continue
		}
		for v := t.Min; v <= t.Max; v++ {
			if strings.HasPrefix(Render(t, v), prefix) {
				return true
			}
		}
	}
	return false
}

// TableRow is one line of the probability table shown to the operator.
type TableRow struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Range   string `json:"range"`
	Tier    Tier   `json:"tier"`
	Percent string `json:"percent"`
}

// Table renders the catalog as display rows.
// A single-value range prints as "1증가", a span as "4 ~ 5% 증가".
func (c *Catalog) Table() []TableRow {
	rows := make([]TableRow, 0, len(c.templates))
	for _, t := range c.templates {
		var rng string
		if t.Min == t.Max {
			rng = fmt.Sprintf("%d%s", t.Min, t.Unit)
		} else {
			rng = fmt.Sprintf("%d ~ %d%s", t.Min, t.Max, t.Unit)
		}
		rows = append(rows, TableRow{
			Name:    t.Name,
			Kind:    t.Kind,
			Range:   rng,
			Tier:    t.Tier,
			Percent: fmt.Sprintf("%.4f%%", t.Probability*100),
		})
	}
	return rows
}
