package circuit

import (
	"context"

	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// BalanceResult reports what [Balance] did.
type BalanceResult struct {
	Passes          int
	Moves           int
	InitialVariance float64
	FinalVariance   float64
	// Converged is true when a full pass found no improving move.
	Converged bool
}

// Balance moves single devices between the given branches to reduce the
// population variance of branch current. Oversize and placed branches are
// left alone.
//
// A move is accepted only when the receiving branch stays within usable,
// the source keeps at least one device and the variance strictly drops.
// At most maxPasses passes run; ctx is checked before each pass.
func Balance(ctx context.Context, net *network.Network, branches []network.BranchID, usable policy.Limits, maxPasses int) (BalanceResult, error) {
	var set []network.BranchID
	for _, b := range branches {
		br := net.Branch(b)
		if br.Oversize || net.Frozen(b) {
			continue
		}
		set = append(set, b)
	}

	totals := make([]network.Totals, len(set))
	for i, b := range set {
		totals[i] = net.Totals(b)
	}
	res := BalanceResult{InitialVariance: currentVariance(totals)}
	res.FinalVariance = res.InitialVariance
	if len(set) < 2 {
		res.Converged = true
		return res, nil
	}

	for res.Passes < maxPasses {
		if err := ctx.Err(); err != nil {
			return BalanceResult{}, err
		}
		res.Passes++
		moved := false
		for i := 0; i < len(set); i++ {
			for j := i + 1; j < len(set); j++ {
				for _, dir := range [2][2]int{{i, j}, {j, i}} {
					ok, err := tryMove(net, set, totals, dir[0], dir[1], usable)
					if err != nil {
						return BalanceResult{}, err
					}
					if ok {
						res.Moves++
						moved = true
					}
				}
			}
		}
		if !moved {
			res.Converged = true
			break
		}
	}
	res.FinalVariance = currentVariance(totals)
	return res, nil
}

// tryMove moves the device of set[src] that lowers the sum of squared
// branch currents the most into set[dst], if any device does.
func tryMove(net *network.Network, set []network.BranchID, totals []network.Totals, src, dst int, usable policy.Limits) (bool, error) {
	from, to := set[src], set[dst]
	devices := net.Branch(from).Devices
	if len(devices) < 2 {
		return false, nil
	}
	cs, cd := totals[src].CurrentA, totals[dst].CurrentA

	best, bestDelta := network.DeviceID(-1), -1e-12
	for _, d := range devices {
		l := net.Device(d).Load
		moved := totals[dst]
		moved.Add(l)
		if !moved.Fits(usable) {
			continue
		}
		x := l.CurrentA
		// Change of cs^2 + cd^2 when x moves from src to dst.
		delta := 2 * x * (cd - cs + x)
		if delta < bestDelta {
			best, bestDelta = d, delta
		}
	}
	if best < 0 {
		return false, nil
	}
	if err := net.Move(best, from, to); err != nil {
		return false, err
	}
	totals[src] = net.Totals(from)
	totals[dst] = net.Totals(to)
	return true, nil
}

func currentVariance(totals []network.Totals) float64 {
	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = t.CurrentA
	}
	return Variance(values)
}
