package engine

import (
	"fmt"

	"medroute/internal/geo"
)

// VehicleSpec is one configured fleet member as read from configuration.
// Specs are read-only inputs; the solver never mutates them.
type VehicleSpec struct {
	ID            string    `yaml:"id" json:"id"`
	Type          string    `yaml:"type" json:"type"`
	Capacity      Demand    `yaml:"-" json:"capacity"`
	Base          geo.Point `yaml:"-" json:"base"`
	BaseName      string    `yaml:"base" json:"baseName"`
	ShiftStartMin int       `yaml:"-" json:"shiftStartMin"`
	MaxShiftMin   int       `yaml:"max_shift_min" json:"maxShiftMin"`
}

// VehicleProfiles maps ambulance type labels to capacity vectors,
// matching the operational classes of the transport provider.
var VehicleProfiles = map[string]Demand{
	// A: 1 stretcher or wheelchair plus 2 seats.
	"A": {ResSeat: 2, ResWheelchair: 1, ResStretcher: 1},
	// B: 2 wheelchairs plus 4 seats.
	"B": {ResSeat: 4, ResWheelchair: 2},
	// C: collective, 7 seats.
	"C": {ResSeat: 7},
	// UVI: one exclusive stretcher with isolation, 1 accompanying seat.
	"UVI": {ResSeat: 1, ResStretcher: 1, ResIsolation: 1},
}

// ValidateFleet reports fleet-level diagnostics against the request set.
// A fleet with zero stretcher capacity while stretcher requests exist
// guarantees those requests are unassignable; that is reported up front
// rather than failing the solve.
func ValidateFleet(specs []VehicleSpec, requests []Request, nodes []Node) []Diagnostic {
	var diags []Diagnostic

	capTotal := Demand{}
	capMax := Demand{}
	for _, s := range specs {
		capTotal = capTotal.Add(s.Capacity)
		for r := 0; r < numResources; r++ {
			if s.Capacity[r] > capMax[r] {
				capMax[r] = s.Capacity[r]
			}
		}
	}

	shortfall := [numResources]int{}
	for _, req := range requests {
		demand := nodes[req.Pickup].Demand
		for r := 0; r < numResources; r++ {
			if demand[r] > capMax[r] {
				shortfall[r]++
			}
		}
	}
	for r := 0; r < numResources; r++ {
		if shortfall[r] > 0 {
			diags = append(diags, Diagnostic{
				Kind: DiagInfeasibleRequest,
				Detail: fmt.Sprintf("%d request(s) demand more %s capacity than any configured vehicle offers",
					shortfall[r], resourceNames[r]),
			})
		}
	}
	return diags
}
