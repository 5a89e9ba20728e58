package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"medroute/internal/geo"
)

// RawRequest is one ingested transport request row, post-parsing but
// pre-resolution. PickupAddr and DeliveryAddr are free-form location
// strings; Appointment is "HH:MM" or empty for a flexible request.
type RawRequest struct {
	ID           string
	Patient      string
	PickupAddr   string
	DeliveryAddr string
	Category     string
	Appointment  string
	Companion    bool
}

// ParseMinuteOfDay converts "HH:MM" (or "HH:MM:SS") to minutes of day.
func ParseMinuteOfDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1, fmt.Errorf("empty time")
	}
	// Tolerate a leading date component ("2024-01-01 09:30").
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return -1, fmt.Errorf("invalid time %q", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return -1, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// MinuteToClock renders minutes of day as wall-clock "HH:MM".
func MinuteToClock(m int) string {
	if m < 0 {
		m = 0
	}
	return fmt.Sprintf("%02d:%02d", (m/60)%24, m%60)
}

func demandFor(category string, companion bool) (Demand, int, error) {
	var d Demand
	priority := 0
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "seated", "sentado":
		d[ResSeat] = 1
	case "wheelchair", "silla":
		d[ResWheelchair] = 1
		priority = 1
	case "stretcher", "camilla":
		d[ResStretcher] = 1
		priority = 2
	case "icu", "isolation", "uvi":
		d[ResStretcher] = 1
		d[ResIsolation] = 1
		priority = 2
	default:
		return d, 0, fmt.Errorf("unknown mobility category %q", category)
	}
	if companion {
		d[ResSeat]++
	}
	return d, priority, nil
}

// BuildRequests turns raw rows into paired pickup/delivery nodes.
//
// Each row resolves both locations through the geocoder; a row whose pickup
// or delivery cannot be resolved is excluded with a validation diagnostic
// and the rest of the batch continues. The pickup window spans the full
// shift; the delivery window, when an appointment is known, is
// [appointment - margin, appointment].
func BuildRequests(ctx context.Context, rows []RawRequest, gc geo.Geocoder, cfg Config) ([]Node, []Request, []Diagnostic) {
	nodes := make([]Node, 0, 2*len(rows))
	requests := make([]Request, 0, len(rows))
	var diags []Diagnostic

	reject := func(row RawRequest, detail string) {
		diags = append(diags, Diagnostic{
			Kind:      DiagValidation,
			RequestID: row.ID,
			Patient:   row.Patient,
			Detail:    detail,
		})
	}

	for i, row := range rows {
		if row.ID == "" {
			row.ID = fmt.Sprintf("req-%d", i+1)
		}

		demand, priority, err := demandFor(row.Category, row.Companion)
		if err != nil {
			reject(row, err.Error())
			continue
		}

		if geo.Normalize(row.PickupAddr) == "" || geo.Normalize(row.DeliveryAddr) == "" {
			reject(row, "pickup and delivery locations are required")
			continue
		}
		if geo.Normalize(row.PickupAddr) == geo.Normalize(row.DeliveryAddr) {
			reject(row, "pickup and delivery locations are identical")
			continue
		}

		pickup, err := gc.Geocode(ctx, row.PickupAddr)
		if err != nil {
			reject(row, fmt.Sprintf("pickup location unresolvable: %v", err))
			continue
		}
		delivery, err := gc.Geocode(ctx, row.DeliveryAddr)
		if err != nil {
			reject(row, fmt.Sprintf("delivery location unresolvable: %v", err))
			continue
		}

		appointment := -1
		if strings.TrimSpace(row.Appointment) != "" {
			appointment, err = ParseMinuteOfDay(row.Appointment)
			if err != nil {
				reject(row, fmt.Sprintf("appointment time: %v", err))
				continue
			}
		}

		deliveryWindow := TimeWindow{Earliest: cfg.ShiftStartMin, Latest: cfg.ShiftEndMin}
		if appointment >= 0 {
			earliest := appointment - cfg.LatenessMarginMin
			if earliest < cfg.ShiftStartMin {
				earliest = cfg.ShiftStartMin
			}
			if appointment < cfg.ShiftStartMin || earliest > cfg.ShiftEndMin {
				reject(row, fmt.Sprintf("appointment %s is outside the %s-%s shift",
					MinuteToClock(appointment), MinuteToClock(cfg.ShiftStartMin), MinuteToClock(cfg.ShiftEndMin)))
				continue
			}
			deliveryWindow = TimeWindow{Earliest: earliest, Latest: appointment}
		}

		reqIdx := len(requests)
		pickupIdx := len(nodes)
		nodes = append(nodes, Node{
			Kind:       NodePickup,
			Loc:        pickup,
			Address:    geo.Normalize(row.PickupAddr),
			Window:     TimeWindow{Earliest: cfg.ShiftStartMin, Latest: cfg.ShiftEndMin},
			Demand:     demand,
			ServiceMin: cfg.ServiceMin,
			Request:    reqIdx,
			Pair:       pickupIdx + 1,
		}, Node{
			Kind:       NodeDelivery,
			Loc:        delivery,
			Address:    geo.Normalize(row.DeliveryAddr),
			Window:     deliveryWindow,
			Demand:     demand.Negate(),
			ServiceMin: cfg.ServiceMin,
			Request:    reqIdx,
			Pair:       pickupIdx,
		})

		requests = append(requests, Request{
			ID:          row.ID,
			Patient:     row.Patient,
			Category:    strings.ToLower(strings.TrimSpace(row.Category)),
			Pickup:      pickupIdx,
			Delivery:    pickupIdx + 1,
			Appointment: appointment,
			Companion:   row.Companion,
			Priority:    priority,
		})
	}

	return nodes, requests, diags
}
