package supply

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// branches builds one branch per entry, each with a single device on the
// given level.
func branches(currents []float64, levels ...string) *network.Network {
	net := network.New()
	for i, c := range currents {
		lvl := "Level 1"
		if len(levels) > 0 {
			lvl = levels[i%len(levels)]
		}
		d := net.AddDevice(device.Load{ID: fmt.Sprintf("d%d", i), CurrentA: c}, lvl, "main", 1001+i%3, false)
		b := net.NewBranch("level:" + lvl)
		if err := net.Append(b, d); err != nil {
			panic(err)
		}
	}
	net.Number()
	return net
}

func TestTenUnitBranchesFillFiveSupplies(t *testing.T) {
	currents := make([]float64, 10)
	for i := range currents {
		currents[i] = 1.0
	}
	net := branches(currents)

	p := policy.Defaults()
	p.MaxBranchesPerSupply = 3
	p.SupplyCapacityA = 3.0 // usable 2.4A with 20% spare

	res, err := Organize(context.Background(), net, p, nil)
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}
	// ceil(10 / min(3, floor(2.4/1.0))) = 5
	if len(res.Supplies) != 5 {
		t.Fatalf("supplies = %d, want 5", len(res.Supplies))
	}
	for _, s := range res.Supplies {
		if n := len(net.Supply(s).Branches); n != 2 {
			t.Errorf("supply %d branches = %d, want 2", s, n)
		}
	}
	if err := net.Verify(); err != nil {
		t.Error(err)
	}
}

func TestBranchCapLimitsSupply(t *testing.T) {
	net := branches([]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1})
	p := policy.Defaults()
	res, err := Organize(context.Background(), net, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 3 {
		t.Errorf("supplies = %d, want 3 (3 branches max each)", len(res.Supplies))
	}
}

func TestDescendingCurrentOrder(t *testing.T) {
	net := branches([]float64{0.5, 2.0, 1.0, 1.5})
	p := policy.Defaults()
	p.MaxBranchesPerSupply = 1
	res, err := Organize(context.Background(), net, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2.0, 1.5, 1.0, 0.5}
	for i, s := range res.Supplies {
		b := net.Supply(s).Branches[0]
		if got := net.Totals(b).CurrentA; got != want[i] {
			t.Errorf("supply %d current = %v, want %v", i, got, want[i])
		}
	}
}

func TestOversizeBranchStillPlaced(t *testing.T) {
	net := branches([]float64{12.0, 0.5})
	res, err := Organize(context.Background(), net, policy.Defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 2 {
		t.Errorf("supplies = %d, want 2", len(res.Supplies))
	}
	for i := range net.Branches {
		if !net.Frozen(network.BranchID(i)) {
			t.Errorf("branch %d not placed", i)
		}
	}
}

func TestAuxLoadApportioning(t *testing.T) {
	net := branches([]float64{1.0, 1.0}, "Level 1", "Level 2")
	p := policy.Defaults()
	p.SupervisoryCurrentPerLevelA = 0.1
	aux := []AuxLoad{
		{Name: "AMP-1", CurrentA: 2.0, BlocksRequired: 2, ServingLevels: []string{"Level 1", "Level 2"}},
		{Name: "AMP-2", CurrentA: 0.4, BlocksRequired: 1},
		{Name: "AMP-3", CurrentA: 0.2, ServingLevels: []string{"Level 9"}},
	}
	res, err := Organize(context.Background(), net, p, aux)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 1 {
		t.Fatalf("supplies = %d, want 1", len(res.Supplies))
	}
	// 2.0 apportioned + 0.6 floating + 2 x 0.1 supervisory
	if math.Abs(res.ReservedA-2.8) > 1e-9 {
		t.Errorf("ReservedA = %v, want 2.8", res.ReservedA)
	}
	if got := net.SupplyCurrentA(res.Supplies[0]); math.Abs(got-4.8) > 1e-9 {
		t.Errorf("SupplyCurrentA = %v, want 4.8", got)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != "AMP-3" {
		t.Errorf("Unmatched = %v, want [AMP-3]", res.Unmatched)
	}
	if TotalBlocks(aux) != 3 {
		t.Errorf("TotalBlocks = %d, want 3", TotalBlocks(aux))
	}
}

func TestReserveOpensNewSupply(t *testing.T) {
	net := branches([]float64{2.0, 2.0}, "Level 1", "Level 2")
	p := policy.Defaults() // usable 7.2A
	aux := []AuxLoad{{CurrentA: 6.0, ServingLevels: []string{"Level 2"}}}
	res, err := Organize(context.Background(), net, p, aux)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 2 {
		t.Errorf("supplies = %d, want 2 (reserve pushes Level 2 to its own supply)", len(res.Supplies))
	}
}

func TestAuxReservedOnceAcrossSupplies(t *testing.T) {
	net := branches([]float64{2.0, 2.0, 2.0, 2.0})
	aux := []AuxLoad{{Name: "AMP-1", CurrentA: 2.0, ServingLevels: []string{"Level 1"}}}
	res, err := Organize(context.Background(), net, policy.Defaults(), aux)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 2 {
		t.Fatalf("supplies = %d, want 2", len(res.Supplies))
	}
	if math.Abs(res.ReservedA-2.0) > 1e-9 {
		t.Errorf("ReservedA = %v, want 2.0 (the amplifier once)", res.ReservedA)
	}
	var total float64
	for _, s := range res.Supplies {
		total += net.SupplyCurrentA(s)
	}
	if math.Abs(total-10.0) > 1e-9 {
		t.Errorf("total supply current = %v, want 10.0", total)
	}
	if got := net.Supply(res.Supplies[1]).ReservedA; got != 0 {
		t.Errorf("second supply ReservedA = %v, want 0", got)
	}
}

func TestSupervisoryReservedPerSupply(t *testing.T) {
	net := branches([]float64{2.0, 2.0, 2.0, 2.0})
	p := policy.Defaults()
	p.SupervisoryCurrentPerLevelA = 0.1
	res, err := Organize(context.Background(), net, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 2 {
		t.Fatalf("supplies = %d, want 2", len(res.Supplies))
	}
	if math.Abs(res.ReservedA-0.2) > 1e-9 {
		t.Errorf("ReservedA = %v, want 0.2 (Level 1 on each supply)", res.ReservedA)
	}
}

func TestIslandsGetOwnSupplies(t *testing.T) {
	net := branches([]float64{1.2, 1.2}, "Level 1", "Level 5")
	island := net.Branch(1)
	island.Island = true
	island.Domain = "island:Level 5"

	res, err := Organize(context.Background(), net, policy.Defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 2 {
		t.Fatalf("supplies = %d, want 2", len(res.Supplies))
	}
	if net.Branch(0).Supply == net.Branch(1).Supply {
		t.Error("island branch shares a supply with another level")
	}
}

func TestIslandSupplyFillsWithinDomain(t *testing.T) {
	net := branches([]float64{1.0, 1.0, 1.0}, "Level 5")
	for i := range net.Branches {
		net.Branches[i].Island = true
		net.Branches[i].Domain = "island:Level 5"
	}
	res, err := Organize(context.Background(), net, policy.Defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Supplies) != 1 {
		t.Errorf("supplies = %d, want 1 (one island domain)", len(res.Supplies))
	}
}

func TestConsolidatedLevelsMatchAux(t *testing.T) {
	net := branches([]float64{1.0}, "P1 + P2")
	aux := []AuxLoad{{CurrentA: 1.0, ServingLevels: []string{"P2"}}}
	res, err := Organize(context.Background(), net, policy.Defaults(), aux)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Unmatched) != 0 || math.Abs(res.ReservedA-1.0) > 1e-9 {
		t.Errorf("Unmatched = %v ReservedA = %v", res.Unmatched, res.ReservedA)
	}
}

func TestOrganizeCancelled(t *testing.T) {
	net := branches([]float64{1.0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Organize(ctx, net, policy.Defaults(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Organize() error = %v, want context.Canceled", err)
	}
}

func TestInvalidAux(t *testing.T) {
	net := branches([]float64{1.0})
	_, err := Organize(context.Background(), net, policy.Defaults(), []AuxLoad{{CurrentA: -1}})
	if err == nil {
		t.Error("Organize() error = nil, want error for negative aux current")
	}
}
