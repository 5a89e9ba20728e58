package engine

import (
	"math/rand"
	"time"
)

// convergedAfter is how many consecutive non-improving iterations end the
// search early once every request is already placed.
const convergedAfter = 300

type insertion struct {
	vehicle int
	order   []int
	sched   Schedule
	delta   int
	ok      bool
}

// bestInsertion scans every vehicle and every pickup/delivery position
// pair for the cheapest feasible insertion of a request. Scan order is
// fixed (vehicle, then positions ascending) and ties keep the first
// candidate, so the result is deterministic.
func bestInsertion(p *Problem, sol *Solution, ri int) insertion {
	req := p.Requests[ri]
	best := insertion{}

	for vi := range p.Vehicles {
		base := sol.Routes[vi].Order
		baseCost := sol.Schedules[vi].TravelMin + sol.Schedules[vi].WaitMin
		for i := 0; i <= len(base); i++ {
			for j := i; j <= len(base); j++ {
				cand := make([]int, 0, len(base)+2)
				cand = append(cand, base[:i]...)
				cand = append(cand, req.Pickup)
				cand = append(cand, base[i:j]...)
				cand = append(cand, req.Delivery)
				cand = append(cand, base[j:]...)

				sched, ok := p.Propagate(vi, cand)
				if !ok {
					continue
				}
				delta := sched.TravelMin + sched.WaitMin - baseCost
				if !best.ok || delta < best.delta {
					best = insertion{vehicle: vi, order: cand, sched: sched, delta: delta, ok: true}
				}
			}
		}
	}
	return best
}

func removeRequest(order []int, req Request) []int {
	out := make([]int, 0, len(order))
	for _, idx := range order {
		if idx != req.Pickup && idx != req.Delivery {
			out = append(out, idx)
		}
	}
	return out
}

// improve runs a deadline-bounded local search over the construction
// seed: repeatedly ruin (remove one or two random request pairs) and
// recreate (cheapest feasible reinsertion), plus a retry pass over the
// unassigned set. Only strictly better solutions are accepted, so the
// incumbent is always the best found; on deadline expiry it is returned
// rather than discarded. Randomness comes solely from the seeded rng.
func improve(p *Problem, sol Solution, deadline time.Time, rng *rand.Rand, stats *Stats) Solution {
	current := sol.clone()
	noImprove := 0
	converged := false

	for time.Now().Before(deadline) {
		if p.Config.MaxIterations > 0 && stats.Iterations >= p.Config.MaxIterations {
			converged = len(current.Unassigned) == 0
			break
		}
		stats.Iterations++
		improved := false

		// Retry pass: place pending requests into the current solution.
		if len(current.Unassigned) > 0 {
			retained := current.Unassigned[:0:0]
			for _, ua := range current.Unassigned {
				if ua.Diag.Kind == DiagInfeasibleRequest {
					retained = append(retained, ua)
					continue
				}
				if ins := bestInsertion(p, &current, ua.Request); ins.ok {
					current.Routes[ins.vehicle].Order = ins.order
					current.Schedules[ins.vehicle] = ins.sched
					stats.Improvements++
					improved = true
				} else {
					retained = append(retained, ua)
				}
			}
			current.Unassigned = retained
		}

		assigned := assignedRequests(p, &current)
		if len(assigned) > 0 {
			cand := current.clone()
			k := 1 + rng.Intn(2)
			if k > len(assigned) {
				k = len(assigned)
			}
			removed := make([]int, 0, k)
			for len(removed) < k {
				ri := assigned[rng.Intn(len(assigned))]
				if !contains(removed, ri) {
					removed = append(removed, ri)
				}
			}
			for _, ri := range removed {
				req := p.Requests[ri]
				for vi := range cand.Routes {
					trimmed := removeRequest(cand.Routes[vi].Order, req)
					if len(trimmed) != len(cand.Routes[vi].Order) {
						cand.Routes[vi].Order = trimmed
						cand.Schedules[vi], _ = p.Propagate(vi, trimmed)
						break
					}
				}
			}
			for _, ri := range removed {
				if ins := bestInsertion(p, &cand, ri); ins.ok {
					cand.Routes[ins.vehicle].Order = ins.order
					cand.Schedules[ins.vehicle] = ins.sched
				} else {
					cand.Unassigned = append(cand.Unassigned, unassignedDiag(p, ri))
				}
			}
			if cand.betterThan(&current, len(p.Requests)) {
				current = cand
				stats.Improvements++
				improved = true
			}
		}

		if improved {
			noImprove = 0
		} else {
			noImprove++
			if noImprove >= convergedAfter && len(current.Unassigned) == 0 {
				converged = true
				break
			}
		}
	}

	stats.DeadlineHit = !converged && !time.Now().Before(deadline)
	return current
}

func assignedRequests(p *Problem, sol *Solution) []int {
	out := make([]int, 0, len(p.Requests))
	seen := make(map[int]bool, len(sol.Unassigned))
	for _, ua := range sol.Unassigned {
		seen[ua.Request] = true
	}
	for ri := range p.Requests {
		if !seen[ri] {
			out = append(out, ri)
		}
	}
	return out
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
