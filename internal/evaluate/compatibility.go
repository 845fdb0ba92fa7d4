package evaluate

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"pidcheck/pkg/domain/value"
)

// Pair is one entry of a compatibility table. Order within a pair does not
// matter.
type Pair [2]string

// Compatibility answers the "matches" and "compatible with" predicates. Two
// values are compatible when they are equal or when the table lists them as
// a pair.
type Compatibility struct {
	pairs map[Pair]struct{}
}

// NewCompatibility returns a table holding pairs. Each pair is stored in both
// orientations.
func NewCompatibility(pairs ...Pair) *Compatibility {
	c := &Compatibility{pairs: make(map[Pair]struct{}, len(pairs)*2)}
	for _, p := range pairs {
		c.pairs[p] = struct{}{}
		c.pairs[Pair{p[1], p[0]}] = struct{}{}
	}
	return c
}

// DefaultPairs lists the actuator to signal pairings used when no table is
// configured.
func DefaultPairs() []Pair {
	return []Pair{
		{"pneumatic", "3-15psi"},
		{"pneumatic", "4-20mA"},
		{"electric", "4-20mA"},
		{"electric", "0-10V"},
		{"hydraulic", "4-20mA"},
	}
}

// DefaultCompatibility returns a table over DefaultPairs.
func DefaultCompatibility() *Compatibility {
	return NewCompatibility(DefaultPairs()...)
}

// Compatible reports whether a and b are equal or paired in the table.
func (c *Compatibility) Compatible(a, b cty.Value) bool {
	if value.Equal(a, b) {
		return true
	}
	if c == nil {
		return false
	}
	_, ok := c.pairs[Pair{key(a), key(b)}]
	return ok
}

// Pairs returns the table contents with each pair in one orientation, sorted.
func (c *Compatibility) Pairs() []Pair {
	if c == nil {
		return nil
	}
	out := make([]Pair, 0, len(c.pairs)/2)
	for p := range c.pairs {
		if p[0] <= p[1] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func key(v cty.Value) string {
	if s, ok := value.Text(v); ok {
		return s
	}
	return value.Format(v)
}
