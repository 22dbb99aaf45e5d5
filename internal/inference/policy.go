package inference

import "fmt"

// Tier maps observed cell lengths up to and including Max onto a storage Length.
type Tier struct {
	Max    int `json:"max" yaml:"max"`
	Length int `json:"length" yaml:"length"`
}

// LengthPolicy buckets observed text lengths into a small number of storage
// widths. Values longer than every tier round up to the next multiple of
// RoundTo.
type LengthPolicy struct {
	Name     string `json:"name" yaml:"name"`
	Baseline int    `json:"baseline" yaml:"baseline"`
	Tiers    []Tier `json:"tiers" yaml:"tiers"`
	RoundTo  int    `json:"round_to" yaml:"round_to"`
}

// WideLadder is the default policy: a 1000 character baseline and generous
// ceilings so that a single long value rarely forces a later schema change.
var WideLadder = LengthPolicy{
	Name:     "wide",
	Baseline: 1000,
	Tiers: []Tier{
		{Max: 249, Length: 1500},
		{Max: 499, Length: 3000},
		{Max: 999, Length: 5000},
	},
	RoundTo: 1000,
}

// NarrowLadder starts at the classic 255 width and grows in 250/500/1000 steps.
var NarrowLadder = LengthPolicy{
	Name:     "narrow",
	Baseline: 255,
	Tiers: []Tier{
		{Max: 249, Length: 250},
		{Max: 499, Length: 500},
		{Max: 999, Length: 1000},
	},
	RoundTo: 1000,
}

// PolicyByName resolves a built-in ladder. An empty name selects WideLadder.
func PolicyByName(name string) (LengthPolicy, error) {
	switch name {
	case "", "wide":
		return WideLadder, nil
	case "narrow":
		return NarrowLadder, nil
	default:
		return LengthPolicy{}, fmt.Errorf("inference: unknown length policy %q", name)
	}
}

// Validate checks that tiers are ascending and every bucket is usable.
func (p LengthPolicy) Validate() error {
	if p.Baseline <= 0 {
		return fmt.Errorf("inference: policy %q: baseline must be > 0", p.Name)
	}
	if p.RoundTo <= 0 {
		return fmt.Errorf("inference: policy %q: round_to must be > 0", p.Name)
	}
	prev := -1
	for i, t := range p.Tiers {
		if t.Max <= prev {
			return fmt.Errorf("inference: policy %q: tier %d max %d is not ascending", p.Name, i, t.Max)
		}
		if t.Length <= 0 {
			return fmt.Errorf("inference: policy %q: tier %d length must be > 0", p.Name, i)
		}
		prev = t.Max
	}
	return nil
}

// Grow returns the length a column should have after seeing a value of n
// characters. The result never shrinks below current.
func (p LengthPolicy) Grow(current, n int) int {
	if n <= current {
		return current
	}
	next := -1
	for _, t := range p.Tiers {
		if n <= t.Max {
			next = t.Length
			break
		}
	}
	if next < 0 {
		round := p.RoundTo
		if round <= 0 {
			round = 1000
		}
		next = ((n + round - 1) / round) * round
	}
	// A tier narrower than the value itself would truncate it.
	if next < n {
		next = n
	}
	if next < current {
		return current
	}
	return next
}
