package engine

import (
	"fmt"
	"sort"
)

// construct builds an initial solution with the appointment-ordered
// construction heuristic: requests sorted by priority class (stretcher/ICU
// before wheelchair before seated, protecting scarce capacity), then
// appointment time, then request ID; each request is appended to the first
// vehicle, in availability order, whose route stays feasible.
//
// Vehicle state lives in a local arena indexed by vehicle; the Problem and
// its fleet are never mutated.
func construct(p *Problem) Solution {
	sol := Solution{
		Routes:    make([]Route, len(p.Vehicles)),
		Schedules: make([]Schedule, len(p.Vehicles)),
	}
	for vi := range p.Vehicles {
		sol.Routes[vi] = Route{Vehicle: vi}
		sol.Schedules[vi], _ = p.Propagate(vi, nil)
	}

	order := requestOrder(p)
	for _, ri := range order {
		req := p.Requests[ri]
		assigned := false
		for _, vi := range vehicleOrder(p, &sol) {
			cand := append(append([]int(nil), sol.Routes[vi].Order...), req.Pickup, req.Delivery)
			if sched, ok := p.Propagate(vi, cand); ok {
				sol.Routes[vi].Order = cand
				sol.Schedules[vi] = sched
				assigned = true
				break
			}
		}
		if !assigned {
			sol.Unassigned = append(sol.Unassigned, unassignedDiag(p, ri))
		}
	}
	return sol
}

// requestOrder is the deterministic processing order for construction.
func requestOrder(p *Problem) []int {
	order := make([]int, len(p.Requests))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := p.Requests[order[a]], p.Requests[order[b]]
		if ra.Priority != rb.Priority {
			return ra.Priority > rb.Priority
		}
		// Flexible requests (no appointment) go after timed ones.
		aa, ab := ra.Appointment, rb.Appointment
		if aa < 0 {
			aa = 1 << 20
		}
		if ab < 0 {
			ab = 1 << 20
		}
		if aa != ab {
			return aa < ab
		}
		return ra.ID < rb.ID
	})
	return order
}

// vehicleOrder ranks candidate vehicles: soonest available first, then
// least worked (load balance), then ID for a stable tie-break.
func vehicleOrder(p *Problem, sol *Solution) []int {
	order := make([]int, len(p.Vehicles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := sol.Schedules[order[a]], sol.Schedules[order[b]]
		if sa.End != sb.End {
			return sa.End < sb.End
		}
		if sa.WorkedMin != sb.WorkedMin {
			return sa.WorkedMin < sb.WorkedMin
		}
		return p.Vehicles[order[a]].ID < p.Vehicles[order[b]].ID
	})
	return order
}

// unassignedDiag classifies why a request could not be placed: permanent
// (no vehicle type can ever carry it) versus transient contention.
func unassignedDiag(p *Problem, ri int) Unassigned {
	req := p.Requests[ri]
	demand := p.Nodes[req.Pickup].Demand
	for _, v := range p.Vehicles {
		if demand.Fits(v.Capacity) {
			return Unassigned{Request: ri, Diag: Diagnostic{
				Kind:      DiagUnassigned,
				RequestID: req.ID,
				Patient:   req.Patient,
				Detail:    "no vehicle could serve the request within its time window and current load",
			}}
		}
	}
	return Unassigned{Request: ri, Diag: Diagnostic{
		Kind:      DiagInfeasibleRequest,
		RequestID: req.ID,
		Patient:   req.Patient,
		Detail:    fmt.Sprintf("no configured vehicle can carry a %s request", req.Category),
	}}
}
