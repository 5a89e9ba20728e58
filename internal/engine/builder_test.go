package engine

import (
	"context"
	"testing"
)

func TestParseMinuteOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want int
		err  bool
	}{
		{"08:00", 480, false},
		{"22:00", 1320, false},
		{"09:30:00", 570, false},
		{"2024-01-01 09:30", 570, false},
		{"", -1, true},
		{"25:00", -1, true},
		{"nine", -1, true},
	}
	for _, c := range cases {
		got, err := ParseMinuteOfDay(c.in)
		if (err != nil) != c.err {
			t.Errorf("ParseMinuteOfDay(%q): err=%v, want err=%v", c.in, err, c.err)
			continue
		}
		if !c.err && got != c.want {
			t.Errorf("ParseMinuteOfDay(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDemandVectors(t *testing.T) {
	cases := []struct {
		category  string
		companion bool
		want      Demand
		priority  int
	}{
		{"seated", false, Demand{ResSeat: 1}, 0},
		{"seated", true, Demand{ResSeat: 2}, 0},
		{"sentado", false, Demand{ResSeat: 1}, 0},
		{"wheelchair", true, Demand{ResSeat: 1, ResWheelchair: 1}, 1},
		{"silla", false, Demand{ResWheelchair: 1}, 1},
		{"stretcher", false, Demand{ResStretcher: 1}, 2},
		{"camilla", true, Demand{ResSeat: 1, ResStretcher: 1}, 2},
		{"icu", false, Demand{ResStretcher: 1, ResIsolation: 1}, 2},
		{"uvi", false, Demand{ResStretcher: 1, ResIsolation: 1}, 2},
	}
	for _, c := range cases {
		got, prio, err := demandFor(c.category, c.companion)
		if err != nil {
			t.Fatalf("demandFor(%q): %v", c.category, err)
		}
		if got != c.want || prio != c.priority {
			t.Errorf("demandFor(%q, companion=%v) = %v/%d, want %v/%d",
				c.category, c.companion, got, prio, c.want, c.priority)
		}
	}
	if _, _, err := demandFor("hoverboard", false); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestBuildRequestsGeocodeFailure(t *testing.T) {
	rows := []RawRequest{
		{ID: "good", Patient: "P1", PickupAddr: "A", DeliveryAddr: "Clinic", Category: "seated", Appointment: "10:00"},
		{ID: "bad", Patient: "P2", PickupAddr: "Nowhere Street 42", DeliveryAddr: "Clinic", Category: "seated", Appointment: "10:00"},
	}
	nodes, reqs, diags := BuildRequests(context.Background(), rows, testGeocoder(), DefaultConfig())

	if len(reqs) != 1 || reqs[0].ID != "good" {
		t.Fatalf("expected only the resolvable row to survive, got %+v", reqs)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if len(diags) != 1 || diags[0].Kind != DiagValidation || diags[0].RequestID != "bad" {
		t.Fatalf("expected one validation diagnostic for %q, got %+v", "bad", diags)
	}
}

func TestBuildRequestsValidation(t *testing.T) {
	cfg := DefaultConfig()
	rows := []RawRequest{
		{ID: "same", Patient: "P1", PickupAddr: "A", DeliveryAddr: " A ", Category: "seated"},
		{ID: "blank", Patient: "P2", PickupAddr: "", DeliveryAddr: "Clinic", Category: "seated"},
		{ID: "early", Patient: "P3", PickupAddr: "A", DeliveryAddr: "Clinic", Category: "seated", Appointment: "06:00"},
		{ID: "garbled", Patient: "P4", PickupAddr: "A", DeliveryAddr: "Clinic", Category: "seated", Appointment: "later"},
	}
	nodes, reqs, diags := BuildRequests(context.Background(), rows, testGeocoder(), cfg)
	if len(reqs) != 0 || len(nodes) != 0 {
		t.Fatalf("expected every row rejected, got %d requests", len(reqs))
	}
	if len(diags) != len(rows) {
		t.Fatalf("expected %d diagnostics, got %+v", len(rows), diags)
	}
	for _, d := range diags {
		if d.Kind != DiagValidation {
			t.Errorf("diagnostic %+v: want kind %q", d, DiagValidation)
		}
	}
}

func TestBuildRequestsWindows(t *testing.T) {
	cfg := DefaultConfig()
	rows := []RawRequest{
		{ID: "r1", Patient: "P1", PickupAddr: "A", DeliveryAddr: "Clinic", Category: "wheelchair", Appointment: "10:00"},
		{ID: "r2", Patient: "P2", PickupAddr: "B", DeliveryAddr: "Clinic", Category: "seated"},
	}
	nodes, reqs, diags := BuildRequests(context.Background(), rows, testGeocoder(), cfg)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	// Appointment request: delivery window is [appt-margin, appt].
	del := nodes[reqs[0].Delivery]
	if del.Window.Earliest != 600-cfg.LatenessMarginMin || del.Window.Latest != 600 {
		t.Errorf("delivery window = %+v, want [%d,%d]", del.Window, 600-cfg.LatenessMarginMin, 600)
	}
	// Pickup window always spans the shift.
	pick := nodes[reqs[0].Pickup]
	if pick.Window.Earliest != cfg.ShiftStartMin || pick.Window.Latest != cfg.ShiftEndMin {
		t.Errorf("pickup window = %+v, want full shift", pick.Window)
	}
	// Flexible request: both windows span the shift, appointment is -1.
	if reqs[1].Appointment != -1 {
		t.Errorf("flexible request appointment = %d, want -1", reqs[1].Appointment)
	}
	flex := nodes[reqs[1].Delivery]
	if flex.Window.Earliest != cfg.ShiftStartMin || flex.Window.Latest != cfg.ShiftEndMin {
		t.Errorf("flexible delivery window = %+v, want full shift", flex.Window)
	}

	// Pairing: pickup and delivery point at each other and negate demand.
	for _, r := range reqs {
		if nodes[r.Pickup].Pair != r.Delivery || nodes[r.Delivery].Pair != r.Pickup {
			t.Errorf("request %s: pair links broken", r.ID)
		}
		if nodes[r.Delivery].Demand != nodes[r.Pickup].Demand.Negate() {
			t.Errorf("request %s: delivery demand is not the pickup negation", r.ID)
		}
	}
}
