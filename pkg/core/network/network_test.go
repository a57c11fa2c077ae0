package network

import (
	"math"
	"testing"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/policy"
)

func build(t *testing.T) (*Network, BranchID, BranchID) {
	t.Helper()
	n := New()
	a := n.NewBranch("level:Level 1")
	b := n.NewBranch("level:Level 2")
	for i, l := range []device.Load{
		{ID: "d1", CurrentA: 0.5, UnitLoads: 2},
		{ID: "d2", CurrentA: 0.25, UnitLoads: 1, IsIsolator: true},
	} {
		d := n.AddDevice(l, "Level 1", "main", 1001, false)
		if err := n.Append(a, d); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	d := n.AddDevice(device.Load{ID: "d3", CurrentA: 1.0, UnitLoads: 4}, "Level 2", "main", 1002, false)
	if err := n.Append(b, d); err != nil {
		t.Fatal(err)
	}
	return n, a, b
}

func TestTotals(t *testing.T) {
	n, a, _ := build(t)
	tot := n.Totals(a)
	if math.Abs(tot.CurrentA-0.75) > 1e-9 || tot.UnitLoads != 3 || tot.Devices != 2 || tot.Isolators != 1 {
		t.Errorf("Totals = %+v", tot)
	}
	if !tot.Fits(policy.Limits{CurrentA: 0.75, UnitLoads: 3}) {
		t.Error("Fits at the boundary = false, want true")
	}
	if !n.HasIsolator(a) {
		t.Error("HasIsolator = false, want true")
	}
}

func TestMoveAndLevelName(t *testing.T) {
	n, a, b := build(t)
	if err := n.Move(0, a, b); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := n.LevelName(b); got != "Level 1 + Level 2" {
		t.Errorf("LevelName = %q, want %q", got, "Level 1 + Level 2")
	}
	if !n.Combined(b) || !n.RequiresIsolators(b) {
		t.Error("branch spanning two levels should be combined and require isolators")
	}
	if n.Device(0).Branch != b {
		t.Errorf("device branch = %d, want %d", n.Device(0).Branch, b)
	}
	if err := n.Move(0, a, b); !errors.Is(err, errors.ErrCodeInvalidHandle) {
		t.Errorf("Move() of absent device error = %v, want INVALID_HANDLE", err)
	}
}

func TestFrozenBranchRejectsMoves(t *testing.T) {
	n, a, b := build(t)
	s := n.NewSupply(3, 9, 0.2)
	if err := n.Assign(a, s); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if err := n.Move(0, a, b); !errors.Is(err, errors.ErrCodeBranchFrozen) {
		t.Errorf("Move() from frozen branch error = %v, want BRANCH_FROZEN", err)
	}
	if err := n.Assign(a, s); !errors.Is(err, errors.ErrCodeBranchFrozen) {
		t.Errorf("second Assign() error = %v, want BRANCH_FROZEN", err)
	}
	if err := n.Compact(); !errors.Is(err, errors.ErrCodeBranchFrozen) {
		t.Errorf("Compact() after supplies error = %v, want BRANCH_FROZEN", err)
	}
}

func TestAbsorbAndCompact(t *testing.T) {
	n, a, b := build(t)
	if err := n.Absorb(a, b); err != nil {
		t.Fatalf("Absorb() error = %v", err)
	}
	if !n.Branch(a).Merged {
		t.Error("Merged = false, want true")
	}
	if err := n.Compact(); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if len(n.Branches) != 1 {
		t.Fatalf("Branches = %d, want 1", len(n.Branches))
	}
	if err := n.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestSupplyCurrent(t *testing.T) {
	n, a, b := build(t)
	s := n.NewSupply(3, 9, 0.2)
	n.Supply(s).ReservedA = 0.5
	_ = n.Assign(a, s)
	_ = n.Assign(b, s)
	if got := n.SupplyCurrentA(s); math.Abs(got-2.25) > 1e-9 {
		t.Errorf("SupplyCurrentA = %v, want 2.25", got)
	}
	if got := n.Supply(s).UsableA(); math.Abs(got-7.2) > 1e-9 {
		t.Errorf("UsableA = %v, want 7.2", got)
	}
	if len(n.Supply(s).Levels) != 2 {
		t.Errorf("Levels = %v, want two served levels", n.Supply(s).Levels)
	}
	if err := n.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestVerifyDetectsOrphans(t *testing.T) {
	n, _, _ := build(t)
	n.AddDevice(device.Load{ID: "orphan"}, "Level 1", "main", 1001, false)
	if err := n.Verify(); err == nil {
		t.Error("Verify() = nil, want error for unassigned device")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	n, a, b := build(t)
	c := n.Clone()
	if err := c.Move(0, a, b); err != nil {
		t.Fatal(err)
	}
	if len(n.Branch(a).Devices) != 2 {
		t.Error("Clone shares branch device slices with the original")
	}
}
