package level

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Data is one level (or a consolidated group of floors) with its devices and
// aggregated loads. Data values are replaced, never mutated, once built.
type Data struct {
	Name     string
	Category Category
	SortKey  int

	Devices     []device.Load
	DeviceCount int
	CurrentA    float64
	StandbyA    float64
	WattageW    float64
	UnitLoads   int
	Families    map[string]int

	Combined          bool
	OriginalFloors    []string
	RequiresIsolators bool
	HasRepeater       bool

	// Utilization is max(current, unit loads) against the hard circuit
	// limits, in percent.
	Utilization float64
}

// Fraction returns the utilization of d against limits as a fraction.
func (d *Data) Fraction(limits policy.Limits) float64 {
	return limits.Utilization(d.CurrentA, float64(d.UnitLoads))
}

// Floors returns the original floor names covered by d.
func (d *Data) Floors() []string {
	if len(d.OriginalFloors) > 0 {
		return d.OriginalFloors
	}
	return []string{d.Name}
}

func newData(name string) *Data {
	cat, key := Classify(name)
	return &Data{
		Name:     name,
		Category: cat,
		SortKey:  key,
		Families: make(map[string]int),
	}
}

func (d *Data) add(l device.Load) {
	d.Devices = append(d.Devices, l)
	d.DeviceCount++
	d.CurrentA += l.CurrentA
	d.StandbyA += l.StandbyA
	d.WattageW += l.WattageW
	d.UnitLoads += l.UnitLoads
	family := strings.TrimSpace(l.Family)
	if family == "" {
		family = "Unspecified"
	}
	d.Families[family]++
	if l.IsRepeater {
		d.HasRepeater = true
	}
}

func (d *Data) finish(hard policy.Limits) {
	d.Utilization = policy.Percent(d.Fraction(hard))
}

// Exclusions selects level categories dropped before planning.
type Exclusions struct {
	Villa      bool
	Garage     bool
	Mechanical bool
}

// ExclusionsFromPolicy returns the exclusions configured in p.
func ExclusionsFromPolicy(p policy.Policy) Exclusions {
	return Exclusions{Villa: p.ExcludeVilla, Garage: p.ExcludeGarage, Mechanical: p.ExcludeMechanical}
}

func (e Exclusions) excludes(c Category) bool {
	switch c {
	case CategoryVilla:
		return e.Villa
	case CategoryParking:
		return e.Garage
	case CategoryMechanical:
		return e.Mechanical
	}
	return false
}

// Grouping is the result of [Group].
type Grouping struct {
	// Levels sorted by ordinal key, then name.
	Levels []*Data
	// Excluded counts dropped devices per category.
	Excluded map[Category]int
	// UnknownDevices counts devices that landed in the Unknown bucket.
	UnknownDevices int
}

// ExcludedTotal returns the total number of excluded devices.
func (g Grouping) ExcludedTotal() int {
	n := 0
	for _, c := range g.Excluded {
		n += c
	}
	return n
}

// Group buckets devices by level name. Empty names go to [UnknownName].
// Devices on levels whose category is excluded are dropped and counted.
// Device order within a level follows the input order.
func Group(devices []device.Load, ex Exclusions, hard policy.Limits) Grouping {
	g := Grouping{Excluded: make(map[Category]int)}
	byName := make(map[string]*Data)
	for _, d := range devices {
		name := Normalize(d.Level)
		lvl, ok := byName[name]
		if !ok {
			lvl = newData(name)
			byName[name] = lvl
		}
		if ex.excludes(lvl.Category) {
			g.Excluded[lvl.Category]++
			continue
		}
		if lvl.Category == CategoryUnknown {
			g.UnknownDevices++
		}
		lvl.add(d)
	}
	for _, lvl := range byName {
		if lvl.DeviceCount == 0 {
			continue
		}
		lvl.finish(hard)
		g.Levels = append(g.Levels, lvl)
	}
	Sort(g.Levels)
	return g
}

// Sort orders levels by ordinal key, then name.
func Sort(levels []*Data) {
	slices.SortFunc(levels, func(a, b *Data) int {
		return cmp.Or(cmp.Compare(a.SortKey, b.SortKey), strings.Compare(a.Name, b.Name))
	})
}
