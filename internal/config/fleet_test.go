package config

import (
	"strings"
	"testing"

	"medroute/internal/engine"
)

const fleetYAML = `
bases:
  - name: Hospital Santa Bárbara
    lat: 41.7632
    lon: -2.4687
  - name: Centro de Salud Almazán
    lat: 41.4846
    lon: -2.5297
vehicles:
  - id: AMB-101
    type: A
    base: Hospital Santa Bárbara
    shift_start: "08:00"
    max_shift_min: 480
  - id: UVI-301
    type: UVI
    base: Centro de Salud Almazán
  - id: COL-1
    type: C
    base: Hospital Santa Bárbara
    capacity: {seat: 5}
`

func TestParseFleet(t *testing.T) {
	specs, bases, err := ParseFleet([]byte(fleetYAML))
	if err != nil {
		t.Fatalf("ParseFleet: %v", err)
	}
	if len(specs) != 3 || len(bases) != 2 {
		t.Fatalf("got %d vehicles, %d bases", len(specs), len(bases))
	}

	amb := specs[0]
	if amb.ID != "AMB-101" || amb.Capacity != engine.VehicleProfiles["A"] {
		t.Errorf("AMB-101 spec = %+v", amb)
	}
	if amb.ShiftStartMin != 480 || amb.MaxShiftMin != 480 {
		t.Errorf("AMB-101 shift = %d/%d, want 480/480", amb.ShiftStartMin, amb.MaxShiftMin)
	}
	if amb.Base != bases["Hospital Santa Bárbara"] {
		t.Errorf("AMB-101 base not resolved")
	}

	// Explicit capacity overrides the type profile per dimension.
	col := specs[2]
	want := engine.VehicleProfiles["C"]
	want[engine.ResSeat] = 5
	if col.Capacity != want {
		t.Errorf("COL-1 capacity = %v, want %v", col.Capacity, want)
	}

	// Unset shift fields stay zero; the engine applies its defaults.
	if specs[1].ShiftStartMin != 0 || specs[1].MaxShiftMin != 0 {
		t.Errorf("UVI-301 shift fields should be zero, got %+v", specs[1])
	}
}

func TestParseFleetErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown base", "bases: []\nvehicles:\n  - id: V1\n    type: A\n    base: Nowhere\n", "unknown base"},
		{"unknown type", "bases:\n  - {name: B, lat: 1, lon: 2}\nvehicles:\n  - id: V1\n    type: Z\n    base: B\n", "unknown type"},
		{"duplicate id", "bases:\n  - {name: B, lat: 1, lon: 2}\nvehicles:\n  - {id: V1, type: A, base: B}\n  - {id: V1, type: A, base: B}\n", "duplicate"},
		{"bad capacity key", "bases:\n  - {name: B, lat: 1, lon: 2}\nvehicles:\n  - {id: V1, type: A, base: B, capacity: {beds: 1}}\n", "capacity dimension"},
		{"bad shift", "bases:\n  - {name: B, lat: 1, lon: 2}\nvehicles:\n  - {id: V1, type: A, base: B, shift_start: noon}\n", "invalid time"},
	}
	for _, c := range cases {
		_, _, err := ParseFleet([]byte(c.yaml))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: err = %v, want substring %q", c.name, err, c.want)
		}
	}
}
