package engine

import "testing"

// twoRequestProblem builds one type-A vehicle and two stretcher requests
// with 10:00 and 11:00 appointments. Node indices: 0/1 are r1's
// pickup/delivery, 2/3 are r2's, 4 is the depot.
func twoRequestProblem(t *testing.T, cfg Config) *Problem {
	t.Helper()
	rows := []RawRequest{
		{ID: "r1", Patient: "P1", PickupAddr: "A", DeliveryAddr: "Clinic", Category: "stretcher", Appointment: "10:00"},
		{ID: "r2", Patient: "P2", PickupAddr: "B", DeliveryAddr: "Clinic", Category: "stretcher", Appointment: "11:00"},
	}
	p, diags := buildProblem(t, rows, []VehicleSpec{vehicleA("AMB-101")}, cfg)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	return p
}

func TestPropagateFeasibleRoute(t *testing.T) {
	p := twoRequestProblem(t, testConfig())

	sched, ok := p.Propagate(0, []int{0, 1, 2, 3})
	if !ok {
		t.Fatal("expected feasible route")
	}
	if len(sched.Visits) != 4 {
		t.Fatalf("expected 4 visits, got %d", len(sched.Visits))
	}
	// Both deliveries inside their windows.
	if v := sched.Visits[1]; v.Time < 540 || v.Time > 600 {
		t.Errorf("r1 delivered at %s, want within [09:00,10:00]", MinuteToClock(v.Time))
	}
	if v := sched.Visits[3]; v.Time < 600 || v.Time > 660 {
		t.Errorf("r2 delivered at %s, want within [10:00,11:00]", MinuteToClock(v.Time))
	}
	if sched.WorkedMin != sched.End-sched.Start {
		t.Errorf("worked %d != span %d", sched.WorkedMin, sched.End-sched.Start)
	}
	if sched.WorkedMin > p.Vehicles[0].MaxShiftMin {
		t.Errorf("worked %d exceeds limit %d", sched.WorkedMin, p.Vehicles[0].MaxShiftMin)
	}
}

func TestPropagateRejectsDeliveryBeforePickup(t *testing.T) {
	p := twoRequestProblem(t, testConfig())
	if _, ok := p.Propagate(0, []int{1, 0}); ok {
		t.Fatal("delivery before its pickup must be infeasible")
	}
}

func TestPropagateRejectsOpenPickup(t *testing.T) {
	p := twoRequestProblem(t, testConfig())
	if _, ok := p.Propagate(0, []int{0}); ok {
		t.Fatal("pickup without delivery must be infeasible")
	}
}

func TestPropagateRejectsCapacityOverflow(t *testing.T) {
	// Type A carries a single stretcher; both patients aboard at once
	// overflows it.
	p := twoRequestProblem(t, testConfig())
	if _, ok := p.Propagate(0, []int{0, 2, 1, 3}); ok {
		t.Fatal("two stretchers aboard a single-stretcher vehicle must be infeasible")
	}
}

func TestPropagateRejectsDepotInOrder(t *testing.T) {
	p := twoRequestProblem(t, testConfig())
	depot := p.Vehicles[0].Depot
	if _, ok := p.Propagate(0, []int{0, depot, 1}); ok {
		t.Fatal("depot nodes are not insertable stops")
	}
}

func TestPropagateWaitCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWaitMin = 5
	p := twoRequestProblem(t, cfg)

	// Leaving at shift start puts the vehicle at the clinic long before
	// the 09:00 window opens; the wait far exceeds 5 minutes.
	if _, ok := p.Propagate(0, []int{0, 1, 2, 3}); ok {
		t.Fatal("expected wait cap violation")
	}
}

func TestPropagateMaxRide(t *testing.T) {
	rows := []RawRequest{
		{ID: "r1", Patient: "P1", PickupAddr: "A", DeliveryAddr: "Clinic", Category: "seated", Appointment: "10:00"},
		{ID: "r2", Patient: "P2", PickupAddr: "B", DeliveryAddr: "Clinic", Category: "seated", Appointment: "10:00"},
	}

	// Detouring to B with P1 aboard stretches the ride past direct
	// travel time with no buffer allowed.
	cfg := testConfig()
	cfg.MaxRideFactor = 1.0
	cfg.MaxRideBufferMin = 0
	p, _ := buildProblem(t, rows, []VehicleSpec{vehicleA("AMB-101")}, cfg)
	if _, ok := p.Propagate(0, []int{0, 2, 1, 3}); ok {
		t.Fatal("expected max-ride violation")
	}

	// Factor 0 disables the bound; the same shared run becomes feasible.
	cfg2 := testConfig()
	cfg2.MaxRideFactor = 0
	p2, _ := buildProblem(t, rows, []VehicleSpec{vehicleA("AMB-101")}, cfg2)
	if _, ok := p2.Propagate(0, []int{0, 2, 1, 3}); !ok {
		t.Fatal("with the ride bound off, the shared run should be feasible")
	}
}

func TestPropagateShiftSpan(t *testing.T) {
	cfg := testConfig()
	cfg.MaxShiftMin = 60
	p := twoRequestProblem(t, cfg)

	// Waiting for the 09:00 window alone consumes the hour.
	if _, ok := p.Propagate(0, []int{0, 1}); ok {
		t.Fatal("expected shift span violation")
	}
}
