package engine

import (
	"fmt"
	"time"

	"medroute/internal/geo"
)

// Resource dimensions tracked along a route. Each is a signed cumulative
// quantity: positive at a pickup, negated at the matching delivery.
const (
	ResSeat = iota
	ResWheelchair
	ResStretcher
	ResIsolation
	numResources
)

var resourceNames = [numResources]string{"seat", "wheelchair", "stretcher", "isolation"}

// Demand is a per-resource demand or capacity vector.
type Demand [numResources]int

func (d Demand) Add(o Demand) Demand {
	for i := range d {
		d[i] += o[i]
	}
	return d
}

// Negate returns the vector a delivery node carries for a pickup demand.
func (d Demand) Negate() Demand {
	for i := range d {
		d[i] = -d[i]
	}
	return d
}

// Fits reports whether d can ever be carried by a vehicle with capacity c.
func (d Demand) Fits(c Demand) bool {
	for i := range d {
		if d[i] > c[i] {
			return false
		}
	}
	return true
}

type NodeKind int

const (
	NodePickup NodeKind = iota
	NodeDelivery
	NodeDepot
)

func (k NodeKind) String() string {
	switch k {
	case NodePickup:
		return "pickup"
	case NodeDelivery:
		return "delivery"
	default:
		return "depot"
	}
}

// TimeWindow bounds the cumulative time at a node, in minutes of day.
type TimeWindow struct {
	Earliest int
	Latest   int
}

// Node is a visitable point in the routing graph: a pickup or delivery
// derived from a transport request, or a vehicle depot.
type Node struct {
	Kind       NodeKind
	Loc        geo.Point
	Address    string
	Window     TimeWindow
	Demand     Demand
	ServiceMin int
	Request    int // index into Problem.Requests, -1 for depots
	Pair       int // index of the paired node, -1 for depots
}

// Request is a pickup/delivery pair built from one transport request row.
type Request struct {
	ID          string
	Patient     string
	Category    string
	Pickup      int // node index
	Delivery    int // node index
	Appointment int // minute of day, -1 when flexible
	Companion   bool
	Priority    int // 2 stretcher/icu, 1 wheelchair, 0 seated
}

// Vehicle is a configured fleet member. Never mutated during a solve;
// the solver keeps its own per-vehicle state records.
type Vehicle struct {
	ID          string
	Type        string
	Capacity    Demand
	Depot       int // node index
	ShiftStart  int // minute of day
	MaxShiftMin int
}

// Config is the immutable per-solve configuration.
type Config struct {
	SpeedKmh          float64
	ServiceMin        int
	LatenessMarginMin int
	MaxWaitMin        int
	ShiftStartMin     int
	ShiftEndMin       int
	MaxShiftMin       int
	// Max ride: time(delivery) - time(pickup) <= ceil(direct*factor) + buffer.
	// Factor 0 disables the constraint.
	MaxRideFactor    float64
	MaxRideBufferMin int
	TimeBudget       time.Duration
	// MaxIterations caps the improvement search independently of the
	// wall clock; 0 means no cap. A capped run is reproducible across
	// machines of different speeds.
	MaxIterations int
	Seed          int64
	MatrixWorkers int
}

// DefaultConfig mirrors the operational constants of the dispatch center:
// 55 km/h average speed, 10 min per stop, 08:00-22:00 horizon, 8h shifts.
func DefaultConfig() Config {
	return Config{
		SpeedKmh:          55,
		ServiceMin:        10,
		LatenessMarginMin: 60,
		MaxWaitMin:        60,
		ShiftStartMin:     8 * 60,
		ShiftEndMin:       22 * 60,
		MaxShiftMin:       8 * 60,
		MaxRideFactor:     3.0,
		MaxRideBufferMin:  90,
		TimeBudget:        5 * time.Second,
		Seed:              1,
		MatrixWorkers:     8,
	}
}

// Problem is the full solver input: node graph, fleet, travel matrix.
// Read-only once assembled.
type Problem struct {
	Nodes    []Node
	Requests []Request
	Vehicles []Vehicle
	// Travel[i][j] is whole minutes from node i to node j, including the
	// per-stop service time on the origin side when i is a patient node.
	Travel [][]int
	Config Config
}

// NewProblem assembles a Problem from built request nodes and a fleet.
// Depot nodes are appended per vehicle (vehicles may share a base; each
// still gets its own depot node so start/end times stay per-vehicle).
// Fleet-level diagnostics (e.g. stretcher demand without stretcher
// capacity) are returned alongside; they do not fail assembly.
func NewProblem(nodes []Node, requests []Request, specs []VehicleSpec, cfg Config) (*Problem, []Diagnostic, error) {
	diags := ValidateFleet(specs, requests, nodes)
	for _, s := range specs {
		for r, c := range s.Capacity {
			if c < 0 {
				return nil, diags, fmt.Errorf("vehicle %s: negative %s capacity", s.ID, resourceNames[r])
			}
		}
	}

	all := make([]Node, len(nodes), len(nodes)+len(specs))
	copy(all, nodes)

	vehicles := make([]Vehicle, 0, len(specs))
	for _, s := range specs {
		depot := len(all)
		all = append(all, Node{
			Kind:    NodeDepot,
			Loc:     s.Base,
			Address: s.BaseName,
			Window:  TimeWindow{Earliest: cfg.ShiftStartMin, Latest: cfg.ShiftEndMin},
			Request: -1,
			Pair:    -1,
		})
		shiftStart := s.ShiftStartMin
		if shiftStart == 0 {
			shiftStart = cfg.ShiftStartMin
		}
		maxShift := s.MaxShiftMin
		if maxShift == 0 {
			maxShift = cfg.MaxShiftMin
		}
		vehicles = append(vehicles, Vehicle{
			ID:          s.ID,
			Type:        s.Type,
			Capacity:    s.Capacity,
			Depot:       depot,
			ShiftStart:  shiftStart,
			MaxShiftMin: maxShift,
		})
	}

	p := &Problem{
		Nodes:    all,
		Requests: requests,
		Vehicles: vehicles,
		Config:   cfg,
	}
	p.Travel = BuildMatrix(all, cfg)
	return p, diags, nil
}
