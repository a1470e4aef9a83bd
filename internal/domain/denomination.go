package domain

import (
	"fmt"
	"sort"
)

// Denomination is one physical coin kind
type Denomination struct {
	Value int64  `json:"value" yaml:"value"` // Face value, positive
	Tag   string `json:"tag" yaml:"tag"`     // Item identity tag in the game
}

// Catalog is an ordered, immutable set of denominations, largest value first
type Catalog struct {
	items []Denomination
}

// NewCatalog validates and orders the given denominations
func NewCatalog(ds ...Denomination) (Catalog, error) {
	if len(ds) == 0 {
		return Catalog{}, fmt.Errorf("catalog: no denominations")
	}
	items := make([]Denomination, len(ds))
	copy(items, ds)
	sort.Slice(items, func(i, j int) bool { return items[i].Value > items[j].Value })
	tags := make(map[string]struct{}, len(items))
	for i, d := range items {
		if d.Value <= 0 {
			return Catalog{}, fmt.Errorf("catalog: denomination %q has non-positive value %d", d.Tag, d.Value)
		}
		if d.Tag == "" {
			return Catalog{}, fmt.Errorf("catalog: denomination %d has an empty tag", d.Value)
		}
		if i > 0 && items[i-1].Value == d.Value {
			return Catalog{}, fmt.Errorf("catalog: duplicate value %d", d.Value)
		}
		if _, dup := tags[d.Tag]; dup {
			return Catalog{}, fmt.Errorf("catalog: duplicate tag %q", d.Tag)
		}
		tags[d.Tag] = struct{}{}
	}
	return Catalog{items: items}, nil
}

// MustCatalog is NewCatalog for static catalogs
func MustCatalog(ds ...Denomination) Catalog {
	c, err := NewCatalog(ds...)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the five coin catalog used by the shop
func DefaultCatalog() Catalog {
	return MustCatalog(
		Denomination{Value: 10000, Tag: "kubeshop:coin_10000"},
		Denomination{Value: 1000, Tag: "kubeshop:coin_1000"},
		Denomination{Value: 100, Tag: "kubeshop:coin_100"},
		Denomination{Value: 10, Tag: "kubeshop:coin_10"},
		Denomination{Value: 1, Tag: "kubeshop:coin_1"},
	)
}

// Denominations returns a copy of the catalog, largest first
func (c Catalog) Denominations() []Denomination {
	out := make([]Denomination, len(c.items))
	copy(out, c.items)
	return out
}

// Len is the number of denominations
func (c Catalog) Len() int { return len(c.items) }

// ByValue finds the denomination with the given value
func (c Catalog) ByValue(v int64) (Denomination, bool) {
	for _, d := range c.items {
		if d.Value == v {
			return d, true
		}
	}
	return Denomination{}, false
}

// ByTag finds the denomination with the given tag
func (c Catalog) ByTag(tag string) (Denomination, bool) {
	for _, d := range c.items {
		if d.Tag == tag {
			return d, true
		}
	}
	return Denomination{}, false
}

// HasUnit reports whether the smallest denomination has value 1,
// which makes every non-negative amount representable
func (c Catalog) HasUnit() bool {
	return len(c.items) > 0 && c.items[len(c.items)-1].Value == 1
}

// IsChain reports whether every value divides the next larger one.
// For chains a bounded greedy walk finds exact change whenever it exists.
func (c Catalog) IsChain() bool {
	for i := 1; i < len(c.items); i++ {
		if c.items[i-1].Value%c.items[i].Value != 0 {
			return false
		}
	}
	return true
}
