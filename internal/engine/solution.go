package engine

// Route is an ordered sequence of patient node indices assigned to one
// vehicle. Depot start/end are implicit.
type Route struct {
	Vehicle int
	Order   []int
}

// Unassigned records a request left out of the solution and why.
type Unassigned struct {
	Request int
	Diag    Diagnostic
}

// Stats summarizes the search that produced a Solution.
type Stats struct {
	Iterations   int   `json:"iterations"`
	Improvements int   `json:"improvements"`
	DeadlineHit  bool  `json:"deadlineHit"`
	Served       int   `json:"served"`
	TravelMin    int   `json:"travelMin"`
	WaitMin      int   `json:"waitMin"`
	Seed         int64 `json:"seed"`
}

// Solution is the solver output: one route per vehicle (possibly empty),
// the schedules that prove feasibility, and the unassigned set. Immutable
// once returned.
type Solution struct {
	Routes     []Route
	Schedules  []Schedule
	Unassigned []Unassigned
	Diags      []Diagnostic // run-level diagnostics (timeout, no feasible solution)
	Stats      Stats
}

func (s *Solution) clone() Solution {
	out := Solution{
		Routes:     make([]Route, len(s.Routes)),
		Schedules:  make([]Schedule, len(s.Schedules)),
		Unassigned: append([]Unassigned(nil), s.Unassigned...),
		Diags:      append([]Diagnostic(nil), s.Diags...),
		Stats:      s.Stats,
	}
	for i, r := range s.Routes {
		out.Routes[i] = Route{Vehicle: r.Vehicle, Order: append([]int(nil), r.Order...)}
	}
	copy(out.Schedules, s.Schedules)
	return out
}

// cost is the secondary objective: total travel plus waiting minutes.
// The primary objective, served request count, is compared separately.
func (s *Solution) cost() int {
	total := 0
	for _, sch := range s.Schedules {
		total += sch.TravelMin + sch.WaitMin
	}
	return total
}

func (s *Solution) served(total int) int {
	return total - len(s.Unassigned)
}

// betterThan orders solutions lexicographically: more served requests
// first, then lower travel+wait cost.
func (s *Solution) betterThan(o *Solution, totalRequests int) bool {
	a, b := s.served(totalRequests), o.served(totalRequests)
	if a != b {
		return a > b
	}
	return s.cost() < o.cost()
}
