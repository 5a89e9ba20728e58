package engine

import (
	"math/rand"
	"time"
)

// Solve runs the full search: construction heuristic, then, within the
// configured time budget, the improvement search. The result always
// satisfies every constraint in the model; when the budget expires first,
// the best solution found so far is returned and flagged, never an
// infeasible or silently truncated one.
//
// Determinism: for identical inputs, configuration and seed, Solve
// produces an identical Solution.
func Solve(p *Problem) Solution {
	seed := p.Config.Seed
	if seed == 0 {
		seed = 1
	}

	if len(p.Vehicles) == 0 {
		sol := Solution{}
		for ri, req := range p.Requests {
			sol.Unassigned = append(sol.Unassigned, Unassigned{Request: ri, Diag: Diagnostic{
				Kind:      DiagUnassigned,
				RequestID: req.ID,
				Patient:   req.Patient,
				Detail:    "no vehicles configured",
			}})
		}
		if len(p.Requests) > 0 {
			sol.Diags = append(sol.Diags, Diagnostic{
				Kind:   DiagNoFeasibleSolution,
				Detail: "zero requests served: no vehicles configured",
			})
		}
		sol.Stats.Seed = seed
		return sol
	}

	sol := construct(p)

	if p.Config.TimeBudget > 0 && len(p.Requests) > 0 {
		rng := rand.New(rand.NewSource(seed))
		deadline := time.Now().Add(p.Config.TimeBudget)
		stats := sol.Stats
		sol = improve(p, sol, deadline, rng, &stats)
		sol.Stats = stats
	}

	sol.Stats.Seed = seed
	sol.Stats.Served = sol.served(len(p.Requests))
	for _, sch := range sol.Schedules {
		sol.Stats.TravelMin += sch.TravelMin
		sol.Stats.WaitMin += sch.WaitMin
	}

	if sol.Stats.Served == 0 && len(p.Requests) > 0 {
		sol.Diags = append(sol.Diags, Diagnostic{
			Kind:   DiagNoFeasibleSolution,
			Detail: "zero requests could be served by the configured fleet",
		})
	}
	if sol.Stats.DeadlineHit {
		sol.Diags = append(sol.Diags, Diagnostic{
			Kind:   DiagSolverTimeout,
			Detail: "time budget exhausted; best solution found so far returned",
		})
	}
	return sol
}
