package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// TopicVehicles carries live vehicle position events.
const TopicVehicles = "vehicles"

// VehiclePosition is the latest known position of one ambulance.
type VehiclePosition struct {
	VehicleID string  `json:"vehicleId"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	TS        string  `json:"ts"`
}

// PositionCache stores the latest position per vehicle.
type PositionCache struct {
	mu sync.Mutex
	m  map[string]VehiclePosition
}

func NewPositionCache() *PositionCache { return &PositionCache{m: map[string]VehiclePosition{}} }

// Upsert stores or updates the latest position for a vehicle.
func (c *PositionCache) Upsert(p VehiclePosition) {
	if p.VehicleID == "" {
		return
	}
	if p.TS == "" {
		p.TS = time.Now().UTC().Format(time.RFC3339)
	}
	c.mu.Lock()
	c.m[p.VehicleID] = p
	c.mu.Unlock()
}

// List returns the latest positions ordered by vehicle id.
func (c *PositionCache) List() []VehiclePosition {
	c.mu.Lock()
	out := make([]VehiclePosition, 0, len(c.m))
	for _, v := range c.m {
		out = append(out, v)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// PositionsHandler handles POST/GET /v1/vehicles/positions. Crews post
// their position from the vehicle terminal; the dispatch board reads it
// back and follows live updates over the websocket stream.
func (s *Server) PositionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var p VehiclePosition
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if p.VehicleID == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid position", "vehicleId is required", r.URL.Path)
			return
		}
		if p.TS == "" {
			p.TS = time.Now().UTC().Format(time.RFC3339)
		}
		s.Positions.Upsert(p)
		s.Broker.Publish(TopicVehicles, Event{Type: "vehicle.position", Data: map[string]any{
			"vehicleId": p.VehicleID,
			"lat":       p.Lat,
			"lon":       p.Lon,
			"ts":        p.TS,
		}})
		w.WriteHeader(http.StatusAccepted)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"items": s.Positions.List()})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
