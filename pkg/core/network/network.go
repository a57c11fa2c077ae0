// Package network is the arena that holds devices, circuit branches and
// power supplies for one sizing run.
//
// Entities live in slices and refer to each other through integer handles
// ([DeviceID], [BranchID], [SupplyID]). There are no pointer back-references:
// a branch knows its supply handle, a supply lists its branch handles, and
// aggregated loads are always derived from the member devices.
//
// A Network is owned by a single run and is not safe for concurrent use.
package network

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Handles into the arena.
type (
	DeviceID int
	BranchID int
	SupplyID int
)

// Unassigned marks a branch that is not yet placed in a supply.
const Unassigned SupplyID = -1

// Device is an input load placed in the arena together with the level
// group it was allocated under.
type Device struct {
	Load device.Load

	// Level is the name of the level group (a consolidated name such as
	// "P1 + P2" for merged floors).
	Level    string
	Category string
	SortKey  int
	Combined bool

	Branch BranchID
}

// Branch is one notification circuit.
type Branch struct {
	ID      BranchID
	Number  int
	Devices []DeviceID
	Supply  SupplyID

	// Oversize marks a branch holding a single device that exceeds a hard limit.
	Oversize bool
	// Island marks a branch of a repeater fresh-budget domain.
	Island bool
	// Domain names the capacity domain the branch was allocated in.
	Domain string
	// Merged marks a branch produced by cross-level merging.
	Merged bool
}

// Label returns the display name of the branch, e.g. "NAC-001".
func (b *Branch) Label() string {
	if b.Number > 0 {
		return fmt.Sprintf("NAC-%03d", b.Number)
	}
	return fmt.Sprintf("branch-%d", b.ID)
}

// Supply is one power supply.
type Supply struct {
	ID            SupplyID
	Number        int
	Branches      []BranchID
	MaxBranches   int
	CapacityA     float64
	SpareFraction float64
	ReservedA     float64
	Levels        []string
}

// Label returns the display name of the supply, e.g. "PS-01".
func (s *Supply) Label() string {
	return fmt.Sprintf("PS-%02d", s.Number)
}

// UsableA returns the supply capacity after the spare fraction.
func (s *Supply) UsableA() float64 {
	return s.CapacityA * (1 - s.SpareFraction)
}

// Network is the arena.
type Network struct {
	Devices  []Device
	Branches []Branch
	Supplies []Supply
}

// New returns an empty network.
func New() *Network {
	return &Network{}
}

// AddDevice adds a load allocated under the given level group.
func (n *Network) AddDevice(l device.Load, lvl string, category string, sortKey int, combined bool) DeviceID {
	id := DeviceID(len(n.Devices))
	n.Devices = append(n.Devices, Device{
		Load:     l,
		Level:    lvl,
		Category: category,
		SortKey:  sortKey,
		Combined: combined,
		Branch:   -1,
	})
	return id
}

// NewBranch creates an empty, unplaced branch.
func (n *Network) NewBranch(domain string) BranchID {
	id := BranchID(len(n.Branches))
	n.Branches = append(n.Branches, Branch{ID: id, Supply: Unassigned, Domain: domain})
	return id
}

// Branch returns the branch for id.
func (n *Network) Branch(id BranchID) *Branch {
	return &n.Branches[id]
}

// Supply returns the supply for id.
func (n *Network) Supply(id SupplyID) *Supply {
	return &n.Supplies[id]
}

// Device returns the device for id.
func (n *Network) Device(id DeviceID) *Device {
	return &n.Devices[id]
}

// Frozen reports whether b is already placed in a supply.
func (n *Network) Frozen(b BranchID) bool {
	return n.Branches[b].Supply != Unassigned
}

// Append adds device d to the end of branch b.
func (n *Network) Append(b BranchID, d DeviceID) error {
	if err := n.checkBranch(b); err != nil {
		return err
	}
	if n.Frozen(b) {
		return errors.New(errors.ErrCodeBranchFrozen, "branch %d is placed in a supply", b)
	}
	n.Branches[b].Devices = append(n.Branches[b].Devices, d)
	n.Devices[d].Branch = b
	return nil
}

// Move moves device d from branch from to branch to.
func (n *Network) Move(d DeviceID, from, to BranchID) error {
	if err := n.checkBranch(from); err != nil {
		return err
	}
	if err := n.checkBranch(to); err != nil {
		return err
	}
	if n.Frozen(from) || n.Frozen(to) {
		return errors.New(errors.ErrCodeBranchFrozen, "cannot move device between placed branches %d and %d", from, to)
	}
	src := &n.Branches[from]
	i := slices.Index(src.Devices, d)
	if i < 0 {
		return errors.New(errors.ErrCodeInvalidHandle, "device %d is not in branch %d", d, from)
	}
	src.Devices = slices.Delete(src.Devices, i, i+1)
	n.Branches[to].Devices = append(n.Branches[to].Devices, d)
	n.Devices[d].Branch = to
	return nil
}

// Absorb moves every device of src into dst, leaving src empty.
func (n *Network) Absorb(dst, src BranchID) error {
	if err := n.checkBranch(dst); err != nil {
		return err
	}
	if err := n.checkBranch(src); err != nil {
		return err
	}
	if n.Frozen(dst) || n.Frozen(src) {
		return errors.New(errors.ErrCodeBranchFrozen, "cannot merge placed branches %d and %d", dst, src)
	}
	for _, d := range n.Branches[src].Devices {
		n.Devices[d].Branch = dst
	}
	n.Branches[dst].Devices = append(n.Branches[dst].Devices, n.Branches[src].Devices...)
	n.Branches[src].Devices = nil
	n.Branches[dst].Merged = true
	return nil
}

func (n *Network) checkBranch(b BranchID) error {
	if b < 0 || int(b) >= len(n.Branches) {
		return errors.New(errors.ErrCodeInvalidHandle, "invalid branch handle %d", b)
	}
	return nil
}

// =============================================================================
// Derived values
// =============================================================================

// Totals aggregates the loads of a set of devices.
type Totals struct {
	CurrentA  float64
	StandbyA  float64
	WattageW  float64
	UnitLoads float64
	Devices   int
	Isolators int
	Repeaters int
}

// Add accumulates one load.
func (t *Totals) Add(l device.Load) {
	t.CurrentA += l.CurrentA
	t.StandbyA += l.StandbyA
	t.WattageW += l.WattageW
	t.UnitLoads += float64(l.UnitLoads)
	t.Devices++
	if l.IsIsolator {
		t.Isolators++
	}
	if l.IsRepeater {
		t.Repeaters++
	}
}

// Plus returns the sum of t and o.
func (t Totals) Plus(o Totals) Totals {
	return Totals{
		CurrentA:  t.CurrentA + o.CurrentA,
		StandbyA:  t.StandbyA + o.StandbyA,
		WattageW:  t.WattageW + o.WattageW,
		UnitLoads: t.UnitLoads + o.UnitLoads,
		Devices:   t.Devices + o.Devices,
		Isolators: t.Isolators + o.Isolators,
		Repeaters: t.Repeaters + o.Repeaters,
	}
}

// Fits reports whether t is within limits.
func (t Totals) Fits(limits policy.Limits) bool {
	return limits.Fits(t.CurrentA, t.UnitLoads, t.Devices)
}

// Utilization returns the utilization fraction of t against limits.
func (t Totals) Utilization(limits policy.Limits) float64 {
	return limits.Utilization(t.CurrentA, t.UnitLoads)
}

// Totals returns the aggregated loads of branch b.
func (n *Network) Totals(b BranchID) Totals {
	var t Totals
	for _, d := range n.Branches[b].Devices {
		t.Add(n.Devices[d].Load)
	}
	return t
}

// Levels returns the distinct level group names of branch b, ordered by
// ordinal key then name.
func (n *Network) Levels(b BranchID) []string {
	type lvl struct {
		name string
		key  int
	}
	seen := make(map[string]bool)
	var levels []lvl
	for _, d := range n.Branches[b].Devices {
		dev := n.Devices[d]
		if seen[dev.Level] {
			continue
		}
		seen[dev.Level] = true
		levels = append(levels, lvl{dev.Level, dev.SortKey})
	}
	slices.SortFunc(levels, func(a, b lvl) int {
		return cmp.Or(cmp.Compare(a.key, b.key), strings.Compare(a.name, b.name))
	})
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.name
	}
	return names
}

// LevelName returns the display name of branch b: its level names joined
// with " + ".
func (n *Network) LevelName(b BranchID) string {
	return strings.Join(n.Levels(b), " + ")
}

// Category returns the level category of branch b (the category of its
// first device, or "" for an empty branch).
func (n *Network) Category(b BranchID) string {
	if len(n.Branches[b].Devices) == 0 {
		return ""
	}
	return n.Devices[n.Branches[b].Devices[0]].Category
}

// SortKey returns the smallest ordinal key among the devices of b.
func (n *Network) SortKey(b BranchID) int {
	key := 0
	for i, d := range n.Branches[b].Devices {
		if k := n.Devices[d].SortKey; i == 0 || k < key {
			key = k
		}
	}
	return key
}

// Combined reports whether branch b spans more than one floor.
func (n *Network) Combined(b BranchID) bool {
	if len(n.Levels(b)) > 1 {
		return true
	}
	for _, d := range n.Branches[b].Devices {
		if n.Devices[d].Combined {
			return true
		}
	}
	return false
}

// RequiresIsolators reports whether branch b needs isolator modules:
// combined branches and repeater islands always do.
func (n *Network) RequiresIsolators(b BranchID) bool {
	return n.Branches[b].Island || n.Combined(b)
}

// HasIsolator reports whether any device of b is an isolator.
func (n *Network) HasIsolator(b BranchID) bool {
	return n.Totals(b).Isolators > 0
}

// Compact drops empty branches and renumbers the remaining handles.
// It must run before any supply is created.
func (n *Network) Compact() error {
	if len(n.Supplies) > 0 {
		return errors.New(errors.ErrCodeBranchFrozen, "cannot compact after supplies are assigned")
	}
	kept := n.Branches[:0]
	for _, b := range n.Branches {
		if len(b.Devices) == 0 {
			continue
		}
		b.ID = BranchID(len(kept))
		for _, d := range b.Devices {
			n.Devices[d].Branch = b.ID
		}
		kept = append(kept, b)
	}
	n.Branches = kept
	return nil
}

// Number assigns sequential branch numbers in handle order, starting at 1.
func (n *Network) Number() {
	for i := range n.Branches {
		n.Branches[i].Number = i + 1
	}
}

// =============================================================================
// Supplies
// =============================================================================

// NewSupply creates an empty supply.
func (n *Network) NewSupply(maxBranches int, capacityA, spare float64) SupplyID {
	id := SupplyID(len(n.Supplies))
	n.Supplies = append(n.Supplies, Supply{
		ID:            id,
		Number:        int(id) + 1,
		MaxBranches:   maxBranches,
		CapacityA:     capacityA,
		SpareFraction: spare,
	})
	return id
}

// Assign places branch b in supply s. Once placed, a branch is frozen.
func (n *Network) Assign(b BranchID, s SupplyID) error {
	if err := n.checkBranch(b); err != nil {
		return err
	}
	if s < 0 || int(s) >= len(n.Supplies) {
		return errors.New(errors.ErrCodeInvalidHandle, "invalid supply handle %d", s)
	}
	if n.Frozen(b) {
		return errors.New(errors.ErrCodeBranchFrozen, "branch %d is already placed in supply %d", b, n.Branches[b].Supply)
	}
	n.Branches[b].Supply = s
	sup := &n.Supplies[s]
	sup.Branches = append(sup.Branches, b)
	for _, lvl := range n.Levels(b) {
		if !slices.Contains(sup.Levels, lvl) {
			sup.Levels = append(sup.Levels, lvl)
		}
	}
	return nil
}

// SupplyCurrentA returns the alarm current drawn from supply s including
// reserved auxiliary current.
func (n *Network) SupplyCurrentA(s SupplyID) float64 {
	sup := &n.Supplies[s]
	total := sup.ReservedA
	for _, b := range sup.Branches {
		total += n.Totals(b).CurrentA
	}
	return total
}

// SupplyStandbyA returns the standby current of the branches in supply s.
func (n *Network) SupplyStandbyA(s SupplyID) float64 {
	total := 0.0
	for _, b := range n.Supplies[s].Branches {
		total += n.Totals(b).StandbyA
	}
	return total
}

// =============================================================================
// Invariants
// =============================================================================

// Verify checks that every device belongs to exactly one branch and that
// every placed branch is listed by its supply.
func (n *Network) Verify() error {
	owner := make([]int, len(n.Devices))
	for b := range n.Branches {
		for _, d := range n.Branches[b].Devices {
			if d < 0 || int(d) >= len(n.Devices) {
				return errors.New(errors.ErrCodeInternal, "branch %d references invalid device %d", b, d)
			}
			owner[d]++
		}
	}
	for d, c := range owner {
		if c != 1 {
			return errors.New(errors.ErrCodeInternal, "device %s belongs to %d branches", n.Devices[d].Load.ID, c)
		}
	}
	for s := range n.Supplies {
		for _, b := range n.Supplies[s].Branches {
			if n.Branches[b].Supply != SupplyID(s) {
				return errors.New(errors.ErrCodeInternal, "supply %d lists branch %d placed in %d", s, b, n.Branches[b].Supply)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of n.
func (n *Network) Clone() *Network {
	c := &Network{
		Devices:  slices.Clone(n.Devices),
		Branches: make([]Branch, len(n.Branches)),
		Supplies: make([]Supply, len(n.Supplies)),
	}
	for i, b := range n.Branches {
		b.Devices = slices.Clone(b.Devices)
		c.Branches[i] = b
	}
	for i, s := range n.Supplies {
		s.Branches = slices.Clone(s.Branches)
		s.Levels = slices.Clone(s.Levels)
		c.Supplies[i] = s
	}
	return c
}
