package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medroute/internal/engine"
	"medroute/internal/geo"
	"medroute/internal/model"
	"medroute/internal/store"
	"medroute/internal/webhooks"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := store.NewMemory()
	gc := geo.NewStatic(map[string]geo.Point{
		"Base":            {Lat: 41.00, Lon: -2.00},
		"Calle Mayor 1":   {Lat: 41.05, Lon: -2.00},
		"Avenida Sur 3":   {Lat: 41.10, Lon: -2.00},
		"Hospital Clinic": {Lat: 41.20, Lon: -2.00},
	})
	cfg := engine.DefaultConfig()
	cfg.TimeBudget = 2 * time.Second
	cfg.MaxIterations = 300
	cfg.Seed = 1
	fleet := []engine.VehicleSpec{
		{ID: "AMB-1", Type: "A", Capacity: engine.VehicleProfiles["A"],
			Base: geo.Point{Lat: 41.00, Lon: -2.00}, BaseName: "Base",
			ShiftStartMin: 480, MaxShiftMin: 480},
		{ID: "AMB-2", Type: "A", Capacity: engine.VehicleProfiles["A"],
			Base: geo.Point{Lat: 41.00, Lon: -2.00}, BaseName: "Base",
			ShiftStartMin: 480, MaxShiftMin: 480},
	}
	return &Server{
		Store:     st,
		Pub:       webhooks.NewPublisher(st),
		Broker:    NewBroker(),
		Geo:       gc,
		Fleet:     fleet,
		Engine:    cfg,
		Positions: NewPositionCache(),
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b)))
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestRequestsCreateListGet(t *testing.T) {
	s := newTestServer(t)

	rr := postJSON(t, s.RequestsHandler, "/v1/requests", map[string]any{
		"requests": []model.RequestIn{
			{Patient: "Carmen Ruiz", PickupAddress: "Calle Mayor 1", DeliveryAddress: "Hospital Clinic",
				Category: "stretcher", Appointment: "10:00"},
			{Patient: "Luis Vega", PickupAddress: "Avenida Sur 3", DeliveryAddress: "Hospital Clinic",
				Category: "seated", Appointment: "11:00"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Items   []model.StoredRequest `json:"items"`
		Created int                   `json:"created"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Created != 2 || len(created.Items) != 2 {
		t.Fatalf("expected 2 created, got %+v", created)
	}
	for _, it := range created.Items {
		if it.ID == "" || it.Status != model.RequestPending {
			t.Fatalf("bad stored request: %+v", it)
		}
	}

	rr = httptest.NewRecorder()
	s.RequestsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/requests?status=pending", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got %d", rr.Code)
	}
	var list struct {
		Items []model.StoredRequest `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 2 {
		t.Fatalf("list: expected 2 items, got %d", len(list.Items))
	}

	rr = httptest.NewRecorder()
	s.RequestByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/requests/"+created.Items[0].ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.RequestByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/requests/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get missing: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected problem content type, got %q", ct)
	}
}

func TestRequestsValidation(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.RequestsHandler, "/v1/requests", map[string]any{
		"requests": []model.RequestIn{
			{PickupAddress: "Calle Mayor 1", DeliveryAddress: "Hospital Clinic", Category: "seated"},
		},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.RequestsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/requests", bytes.NewReader([]byte("{bad"))))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", rr.Code)
	}
}

func TestSolveEndToEnd(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.RequestsHandler, "/v1/requests", map[string]any{
		"requests": []model.RequestIn{
			{Patient: "Carmen Ruiz", PickupAddress: "Calle Mayor 1", DeliveryAddress: "Hospital Clinic",
				Category: "stretcher", Appointment: "10:00"},
			{Patient: "Luis Vega", PickupAddress: "Avenida Sur 3", DeliveryAddress: "Hospital Clinic",
				Category: "seated", Appointment: "11:00"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rr.Code)
	}

	events := s.Broker.Subscribe(TopicPlans)
	defer s.Broker.Unsubscribe(TopicPlans, events)

	rr = postJSON(t, s.SolveHandler, "/v1/solve", model.SolveRequest{})
	if rr.Code != http.StatusOK {
		t.Fatalf("solve: got %d body %s", rr.Code, rr.Body.String())
	}
	var plan model.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.ID == "" {
		t.Fatal("plan has no id")
	}
	if plan.Stats.Served != 2 {
		t.Fatalf("expected 2 served, got %d (unassigned %+v)", plan.Stats.Served, plan.Unassigned)
	}
	if len(plan.Unassigned) != 0 {
		t.Fatalf("unexpected unassigned: %+v", plan.Unassigned)
	}
	if len(plan.Vehicles) == 0 {
		t.Fatal("plan has no vehicle plans")
	}

	// Requests move to planned.
	items, err := s.Store.ListRequests(context.Background(), model.RequestPlanned)
	if err != nil {
		t.Fatalf("list planned: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 planned requests, got %d", len(items))
	}

	// Plan is retrievable.
	rr = httptest.NewRecorder()
	s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get plan: got %d", rr.Code)
	}

	// A plan.created event reaches subscribers.
	select {
	case evt := <-events:
		if evt.Type != "plan.created" {
			t.Fatalf("expected plan.created, got %s", evt.Type)
		}
		if evt.Data["planId"] != plan.ID {
			t.Fatalf("event planId = %v, want %s", evt.Data["planId"], plan.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for plan.created event")
	}
}

func TestSolveUnknownRequestID(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.SolveHandler, "/v1/solve", model.SolveRequest{RequestIDs: []string{"ghost"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPlansList(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.RequestsHandler, "/v1/requests", map[string]any{
		"requests": []model.RequestIn{
			{Patient: "Carmen Ruiz", PickupAddress: "Calle Mayor 1", DeliveryAddress: "Hospital Clinic",
				Category: "seated", Appointment: "10:00"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rr.Code)
	}
	rr = postJSON(t, s.SolveHandler, "/v1/solve", model.SolveRequest{})
	if rr.Code != http.StatusOK {
		t.Fatalf("solve: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.PlansIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans?limit=10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list plans: got %d", rr.Code)
	}
	var list struct {
		Items []model.PlanSummary `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(list.Items))
	}
	if list.Items[0].Served != 1 {
		t.Fatalf("summary served = %d, want 1", list.Items[0].Served)
	}
}

func TestSolverConfig(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.SolverConfigHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solver/config", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var cfg model.SolverSettings
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.SpeedKmh != 55 || cfg.ShiftStart != "08:00" || cfg.ShiftEnd != "22:00" {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
	if cfg.Vehicles != 2 {
		t.Fatalf("vehicles = %d, want 2", cfg.Vehicles)
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", model.SubscriptionRequest{
		URL:    "https://example.com/hook",
		Events: []string{"plan.created"},
		Secret: "s3cret",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rr.Code)
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)
	if sub.ID == "" {
		t.Fatal("subscription has no id")
	}

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	var list struct {
		Items []model.Subscription `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(list.Items))
	}

	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 0 {
		t.Fatalf("expected 0 subscriptions after delete, got %d", len(list.Items))
	}

	rr = postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", model.SubscriptionRequest{URL: ""})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid subscription: expected 400, got %d", rr.Code)
	}
}

func TestRequestsImport(t *testing.T) {
	s := newTestServer(t)
	csv := "patient,pickup_address,delivery_address,category,appointment\n" +
		"Carmen Ruiz,Calle Mayor 1,Hospital Clinic,stretcher,10:00\n" +
		",Calle Mayor 1,Hospital Clinic,seated,11:00\n"
	rr := httptest.NewRecorder()
	s.RequestsImportHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/requests/import", bytes.NewReader([]byte(csv))))
	if rr.Code != http.StatusCreated {
		t.Fatalf("import: got %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items   []model.StoredRequest `json:"items"`
		Created int                   `json:"created"`
		Errors  []string              `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Created != 1 || len(resp.Items) != 1 {
		t.Fatalf("expected 1 created, got %+v", resp)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %v", resp.Errors)
	}

	rr = httptest.NewRecorder()
	s.RequestsImportHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/requests/import", bytes.NewReader([]byte("garbage"))))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad csv: expected 400, got %d", rr.Code)
	}
}

func TestVehiclePositions(t *testing.T) {
	s := newTestServer(t)
	events := s.Broker.Subscribe(TopicVehicles)
	defer s.Broker.Unsubscribe(TopicVehicles, events)

	rr := postJSON(t, s.PositionsHandler, "/v1/vehicles/positions", VehiclePosition{
		VehicleID: "AMB-1", Lat: 41.02, Lon: -2.01,
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("post position: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.PositionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/vehicles/positions", nil))
	var list struct {
		Items []VehiclePosition `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0].VehicleID != "AMB-1" {
		t.Fatalf("unexpected positions: %+v", list.Items)
	}
	if list.Items[0].TS == "" {
		t.Fatal("position has no timestamp")
	}

	select {
	case evt := <-events:
		if evt.Type != "vehicle.position" {
			t.Fatalf("expected vehicle.position, got %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for vehicle.position event")
	}

	rr = postJSON(t, s.PositionsHandler, "/v1/vehicles/positions", VehiclePosition{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing vehicleId: expected 400, got %d", rr.Code)
	}
}
