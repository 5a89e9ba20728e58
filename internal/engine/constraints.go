package engine

import "math"

// Visit is one scheduled stop: cumulative time (after any waiting),
// waiting incurred before service, and cumulative load after the stop.
type Visit struct {
	Node int
	Time int
	Wait int
	Load Demand
}

// Schedule is the propagated timing of one route: depot departure and
// return, every visit in order, and aggregate totals.
type Schedule struct {
	Start     int
	End       int
	Visits    []Visit
	WorkedMin int
	WaitMin   int
	TravelMin int
}

// Propagate evaluates the feasibility predicate for one vehicle visiting
// the given patient nodes in order, and computes the resulting schedule.
//
// The predicate is declarative: it checks, at every prefix of the route,
//   - the node's time window, with waiting capped at MaxWaitMin;
//   - every capacity dimension within [0, capacity];
//   - pickup-before-delivery pairing on this same route;
//   - the optional max-ride bound per request;
// and, over the whole route, the shift span limit. It never mutates the
// Problem and performs no search.
func (p *Problem) Propagate(vehicle int, order []int) (Schedule, bool) {
	v := p.Vehicles[vehicle]
	s := Schedule{Start: v.ShiftStart, Visits: make([]Visit, 0, len(order))}

	t := v.ShiftStart
	cur := v.Depot
	var load Demand
	pickupTime := map[int]int{} // request index -> time at pickup

	for _, idx := range order {
		nd := p.Nodes[idx]
		if nd.Kind == NodeDepot {
			return Schedule{}, false
		}

		leg := p.Travel[cur][idx]
		arr := t + leg
		s.TravelMin += leg

		wait := 0
		if arr < nd.Window.Earliest {
			wait = nd.Window.Earliest - arr
			if wait > p.Config.MaxWaitMin {
				return Schedule{}, false
			}
			arr = nd.Window.Earliest
		}
		if arr > nd.Window.Latest {
			return Schedule{}, false
		}

		switch nd.Kind {
		case NodePickup:
			pickupTime[nd.Request] = arr
		case NodeDelivery:
			pt, open := pickupTime[nd.Request]
			if !open {
				return Schedule{}, false
			}
			if p.Config.MaxRideFactor > 0 {
				direct := p.Travel[nd.Pair][idx]
				maxRide := int(math.Ceil(float64(direct)*p.Config.MaxRideFactor)) + p.Config.MaxRideBufferMin
				if arr-pt > maxRide {
					return Schedule{}, false
				}
			}
			delete(pickupTime, nd.Request)
		}

		load = load.Add(nd.Demand)
		for r := 0; r < numResources; r++ {
			if load[r] < 0 || load[r] > v.Capacity[r] {
				return Schedule{}, false
			}
		}

		s.Visits = append(s.Visits, Visit{Node: idx, Time: arr, Wait: wait, Load: load})
		s.WaitMin += wait
		t = arr
		cur = idx
	}

	// Every pickup must have been delivered on this route.
	if len(pickupTime) > 0 {
		return Schedule{}, false
	}

	// Return leg to base.
	if cur != v.Depot {
		leg := p.Travel[cur][v.Depot]
		t += leg
		s.TravelMin += leg
	}
	if t > p.Config.ShiftEndMin {
		return Schedule{}, false
	}
	s.End = t
	s.WorkedMin = s.End - s.Start
	if s.WorkedMin > v.MaxShiftMin {
		return Schedule{}, false
	}
	return s, true
}
