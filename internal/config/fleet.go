package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"medroute/internal/engine"
	"medroute/internal/geo"
)

// Fleet file layout:
//
//	bases:
//	  - name: Hospital Santa Bárbara
//	    lat: 41.7632
//	    lon: -2.4687
//	vehicles:
//	  - id: AMB-101
//	    type: A
//	    base: Hospital Santa Bárbara
//	    shift_start: "08:00"
//	    max_shift_min: 480
//	  - id: COL-1
//	    type: C
//	    base: Hospital Santa Bárbara
//	    capacity: {seat: 5}
//
// A vehicle's capacity defaults to its type profile; an explicit capacity
// map overrides individual dimensions.
type fleetFile struct {
	Bases    []baseEntry    `yaml:"bases"`
	Vehicles []vehicleEntry `yaml:"vehicles"`
}

type baseEntry struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type vehicleEntry struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Base        string         `yaml:"base"`
	ShiftStart  string         `yaml:"shift_start"`
	MaxShiftMin int            `yaml:"max_shift_min"`
	Capacity    map[string]int `yaml:"capacity"`
}

var capacityKeys = map[string]int{
	"seat":       engine.ResSeat,
	"wheelchair": engine.ResWheelchair,
	"stretcher":  engine.ResStretcher,
	"isolation":  engine.ResIsolation,
}

// LoadFleet parses a fleet YAML file into vehicle specs and the base
// location table (the latter doubles as the static geocoder seed).
func LoadFleet(path string) ([]engine.VehicleSpec, map[string]geo.Point, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("fleet file: %w", err)
	}
	return ParseFleet(raw)
}

// ParseFleet is LoadFleet over in-memory bytes.
func ParseFleet(raw []byte) ([]engine.VehicleSpec, map[string]geo.Point, error) {
	var f fleetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("fleet file: %w", err)
	}

	bases := make(map[string]geo.Point, len(f.Bases))
	for _, b := range f.Bases {
		name := geo.Normalize(b.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("fleet file: base with empty name")
		}
		bases[name] = geo.Point{Lat: b.Lat, Lon: b.Lon}
	}

	specs := make([]engine.VehicleSpec, 0, len(f.Vehicles))
	seen := map[string]bool{}
	for _, v := range f.Vehicles {
		if v.ID == "" {
			return nil, nil, fmt.Errorf("fleet file: vehicle with empty id")
		}
		if seen[v.ID] {
			return nil, nil, fmt.Errorf("fleet file: duplicate vehicle id %q", v.ID)
		}
		seen[v.ID] = true

		capacity, ok := engine.VehicleProfiles[v.Type]
		if !ok && len(v.Capacity) == 0 {
			return nil, nil, fmt.Errorf("fleet file: vehicle %s: unknown type %q and no explicit capacity", v.ID, v.Type)
		}
		for key, n := range v.Capacity {
			r, ok := capacityKeys[key]
			if !ok {
				return nil, nil, fmt.Errorf("fleet file: vehicle %s: unknown capacity dimension %q", v.ID, key)
			}
			capacity[r] = n
		}

		baseName := geo.Normalize(v.Base)
		base, ok := bases[baseName]
		if !ok {
			return nil, nil, fmt.Errorf("fleet file: vehicle %s: unknown base %q", v.ID, v.Base)
		}

		shiftStart := 0
		if v.ShiftStart != "" {
			m, err := engine.ParseMinuteOfDay(v.ShiftStart)
			if err != nil {
				return nil, nil, fmt.Errorf("fleet file: vehicle %s: %v", v.ID, err)
			}
			shiftStart = m
		}

		specs = append(specs, engine.VehicleSpec{
			ID:            v.ID,
			Type:          v.Type,
			Capacity:      capacity,
			Base:          base,
			BaseName:      baseName,
			ShiftStartMin: shiftStart,
			MaxShiftMin:   v.MaxShiftMin,
		})
	}
	return specs, bases, nil
}
