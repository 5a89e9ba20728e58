package engine

// Stop is one row of a vehicle's printed route sheet.
type Stop struct {
	Order     int    `json:"order"`
	Type      string `json:"type"` // depot-start, pickup, delivery, depot-end
	RequestID string `json:"requestId,omitempty"`
	Patient   string `json:"patient,omitempty"`
	Location  string `json:"location"`
	Time      string `json:"time"` // wall-clock HH:MM
	Minute    int    `json:"minute"`
	WaitMin   int    `json:"waitMin,omitempty"`
}

// VehiclePlan is the rendered, timestamped route for one vehicle.
type VehiclePlan struct {
	VehicleID   string `json:"vehicleId"`
	VehicleType string `json:"vehicleType"`
	Stops       []Stop `json:"stops"`
	WorkedMin   int    `json:"workedMin"`
	WaitMin     int    `json:"waitMin"`
	TravelMin   int    `json:"travelMin"`
}

// Extract renders a Solution as ordered per-vehicle stop sheets with
// wall-clock timestamps. Vehicles with no assigned nodes are skipped.
// The Solution is never mutated.
func Extract(p *Problem, sol *Solution) []VehiclePlan {
	plans := make([]VehiclePlan, 0, len(sol.Routes))
	for vi, route := range sol.Routes {
		if len(route.Order) == 0 {
			continue
		}
		v := p.Vehicles[route.Vehicle]
		sched := sol.Schedules[vi]

		stops := make([]Stop, 0, len(route.Order)+2)
		stops = append(stops, Stop{
			Order:    0,
			Type:     "depot-start",
			Location: p.Nodes[v.Depot].Address,
			Time:     MinuteToClock(sched.Start),
			Minute:   sched.Start,
		})
		for i, visit := range sched.Visits {
			nd := p.Nodes[visit.Node]
			stop := Stop{
				Order:    i + 1,
				Type:     nd.Kind.String(),
				Location: nd.Address,
				Time:     MinuteToClock(visit.Time),
				Minute:   visit.Time,
				WaitMin:  visit.Wait,
			}
			if nd.Request >= 0 {
				req := p.Requests[nd.Request]
				stop.RequestID = req.ID
				stop.Patient = req.Patient
			}
			stops = append(stops, stop)
		}
		stops = append(stops, Stop{
			Order:    len(stops),
			Type:     "depot-end",
			Location: p.Nodes[v.Depot].Address,
			Time:     MinuteToClock(sched.End),
			Minute:   sched.End,
		})

		plans = append(plans, VehiclePlan{
			VehicleID:   v.ID,
			VehicleType: v.Type,
			Stops:       stops,
			WorkedMin:   sched.WorkedMin,
			WaitMin:     sched.WaitMin,
			TravelMin:   sched.TravelMin,
		})
	}
	return plans
}
