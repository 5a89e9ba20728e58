package model

import (
	"time"

	"medroute/internal/engine"
)

// API ingestion and read models.

// RequestIn is one transport request as posted by a dispatcher: free-form
// addresses, a mobility category, and an optional "HH:MM" appointment.
type RequestIn struct {
	ExternalRef     string `json:"externalRef,omitempty"`
	Patient         string `json:"patient"`
	PickupAddress   string `json:"pickupAddress"`
	DeliveryAddress string `json:"deliveryAddress"`
	Category        string `json:"category"`
	Appointment     string `json:"appointment,omitempty"`
	Companion       bool   `json:"companion,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Request statuses.
const (
	RequestPending  = "pending"
	RequestPlanned  = "planned"
	RequestRejected = "rejected"
)

// StoredRequest is a persisted transport request.
type StoredRequest struct {
	ID        string    `json:"id"`
	RequestIn           // inline, same JSON shape plus the fields below
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SolveRequest triggers a planning run. An empty RequestIDs plans every
// pending request. Zero-valued knobs fall back to the server defaults.
type SolveRequest struct {
	RequestIDs    []string `json:"requestIds,omitempty"`
	TimeBudgetMs  int      `json:"timeBudgetMs,omitempty"`
	MaxIterations int      `json:"maxIterations,omitempty"`
	Seed          int64    `json:"seed,omitempty"`
}

// UnassignedOut is one request a plan could not serve, with its reason.
type UnassignedOut struct {
	RequestID string `json:"requestId"`
	Patient   string `json:"patient,omitempty"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
}

// Plan is a persisted planning result: one stop sheet per active vehicle,
// plus the requests that could not be served and the run statistics.
type Plan struct {
	ID          string               `json:"id"`
	CreatedAt   time.Time            `json:"createdAt"`
	Vehicles    []engine.VehiclePlan `json:"vehicles"`
	Unassigned  []UnassignedOut      `json:"unassigned"`
	Diagnostics []engine.Diagnostic  `json:"diagnostics,omitempty"`
	Stats       engine.Stats         `json:"stats"`
}

// PlanSummary is the list-view projection of a Plan.
type PlanSummary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Served     int       `json:"served"`
	Unassigned int       `json:"unassigned"`
	TravelMin  int       `json:"travelMin"`
	WaitMin    int       `json:"waitMin"`
}

// SolverSettings is the read model for the effective solver configuration.
type SolverSettings struct {
	SpeedKmh          float64 `json:"speedKmh"`
	ServiceMin        int     `json:"serviceMin"`
	LatenessMarginMin int     `json:"latenessMarginMin"`
	MaxWaitMin        int     `json:"maxWaitMin"`
	ShiftStart        string  `json:"shiftStart"`
	ShiftEnd          string  `json:"shiftEnd"`
	MaxShiftMin       int     `json:"maxShiftMin"`
	MaxRideFactor     float64 `json:"maxRideFactor"`
	MaxRideBufferMin  int     `json:"maxRideBufferMin"`
	TimeBudgetMs      int     `json:"timeBudgetMs"`
	MaxIterations     int     `json:"maxIterations"`
	Seed              int64   `json:"seed"`
	Vehicles          int     `json:"vehicles"`
}

// SubscriptionRequest registers a webhook endpoint for plan events.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
