package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"medroute/internal/engine"
	"medroute/internal/metrics"
	"medroute/internal/model"
	"medroute/internal/store"
)

// RequestsHandler handles POST/GET /v1/requests.
func (s *Server) RequestsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Requests []model.RequestIn `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if len(req.Requests) == 0 {
			writeProblem(w, http.StatusBadRequest, "Empty batch", "at least one request is required", r.URL.Path)
			return
		}
		for i := range req.Requests {
			if err := validateRequestIn(&req.Requests[i]); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid request",
					fmt.Sprintf("requests[%d]: %v", i, err), r.URL.Path)
				return
			}
		}
		created, err := s.Store.CreateRequests(r.Context(), req.Requests)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create requests failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": created, "created": len(created)})
	case http.MethodGet:
		status := r.URL.Query().Get("status")
		items, err := s.Store.ListRequests(r.Context(), status)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List requests failed", err.Error(), r.URL.Path)
			return
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			limit := 0
			fmt.Sscanf(v, "%d", &limit)
			if limit > 0 && limit < len(items) {
				items = items[:limit]
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RequestByIDHandler handles GET /v1/requests/{id}.
func (s *Server) RequestByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/requests/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	item, err := s.Store.GetRequest(r.Context(), id)
	if err == store.ErrNotFound {
		writeProblem(w, http.StatusNotFound, "Request not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get request failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// SolveHandler handles POST /v1/solve: it resolves the selected requests,
// assembles the routing problem against the configured fleet, runs the
// solver and persists the resulting plan.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SolveRequest
	if r.Body != nil {
		// body is optional; an empty solve plans every pending request
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}

	stored, err := s.resolveRequests(r.Context(), req.RequestIDs)
	if err == store.ErrNotFound {
		writeProblem(w, http.StatusNotFound, "Request not found", "one or more requestIds are unknown", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load requests failed", err.Error(), r.URL.Path)
		return
	}

	cfg := s.Engine
	if req.TimeBudgetMs > 0 {
		cfg.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}

	rows := make([]engine.RawRequest, 0, len(stored))
	for _, sr := range stored {
		rows = append(rows, engine.RawRequest{
			ID:           sr.ID,
			Patient:      sr.Patient,
			PickupAddr:   sr.PickupAddress,
			DeliveryAddr: sr.DeliveryAddress,
			Category:     sr.Category,
			Appointment:  sr.Appointment,
			Companion:    sr.Companion,
		})
	}

	started := time.Now()
	nodes, reqs, diags := engine.BuildRequests(r.Context(), rows, s.Geo, cfg)
	p, fleetDiags, err := engine.NewProblem(nodes, reqs, s.Fleet, cfg)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid fleet", err.Error(), r.URL.Path)
		return
	}
	sol := engine.Solve(p)

	metrics.SolveDuration.Observe(time.Since(started).Seconds())
	metrics.SolveIterations.Observe(float64(sol.Stats.Iterations))

	plan := s.buildPlan(p, &sol, append(diags, fleetDiags...))
	if err := s.Store.SavePlan(r.Context(), plan); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}
	s.markOutcomes(r.Context(), p, &sol, diags)

	summary := map[string]any{
		"planId":     plan.ID,
		"served":     plan.Stats.Served,
		"unassigned": len(plan.Unassigned),
		"travelMin":  plan.Stats.TravelMin,
		"waitMin":    plan.Stats.WaitMin,
		"ts":         plan.CreatedAt.Format(time.RFC3339),
	}
	s.Broker.Publish(TopicPlans, Event{Type: "plan.created", Data: summary})
	s.Pub.Emit(r.Context(), "plan.created", summary)

	writeJSON(w, http.StatusOK, plan)
}

// resolveRequests loads the solve's working set: all pending requests, or
// the explicitly named ones.
func (s *Server) resolveRequests(ctx context.Context, ids []string) ([]model.StoredRequest, error) {
	if len(ids) == 0 {
		return s.Store.ListRequests(ctx, model.RequestPending)
	}
	out := make([]model.StoredRequest, 0, len(ids))
	for _, id := range ids {
		sr, err := s.Store.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, nil
}

func (s *Server) buildPlan(p *engine.Problem, sol *engine.Solution, diags []engine.Diagnostic) model.Plan {
	unassigned := make([]model.UnassignedOut, 0, len(sol.Unassigned))
	for _, ua := range sol.Unassigned {
		req := p.Requests[ua.Request]
		unassigned = append(unassigned, model.UnassignedOut{
			RequestID: req.ID,
			Patient:   req.Patient,
			Kind:      string(ua.Diag.Kind),
			Detail:    ua.Diag.Detail,
		})
	}
	// Validation rejections never reach the solver; surface them in the
	// same list so a plan accounts for every submitted request.
	for _, d := range diags {
		if d.Kind == engine.DiagValidation {
			unassigned = append(unassigned, model.UnassignedOut{
				RequestID: d.RequestID,
				Patient:   d.Patient,
				Kind:      string(d.Kind),
				Detail:    d.Detail,
			})
		}
	}
	return model.Plan{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Vehicles:    engine.Extract(p, sol),
		Unassigned:  unassigned,
		Diagnostics: append(diags, sol.Diags...),
		Stats:       sol.Stats,
	}
}

// markOutcomes moves request statuses to reflect the plan: routed requests
// become planned, validation rejects become rejected, the rest stay
// pending for the next run.
func (s *Server) markOutcomes(ctx context.Context, p *engine.Problem, sol *engine.Solution, diags []engine.Diagnostic) {
	var planned []string
	for _, route := range sol.Routes {
		for _, idx := range route.Order {
			nd := p.Nodes[idx]
			if nd.Kind == engine.NodePickup {
				planned = append(planned, p.Requests[nd.Request].ID)
			}
		}
	}
	var rejected []string
	for _, d := range diags {
		if d.Kind == engine.DiagValidation && d.RequestID != "" {
			rejected = append(rejected, d.RequestID)
		}
	}
	_ = s.Store.MarkRequests(ctx, planned, model.RequestPlanned)
	_ = s.Store.MarkRequests(ctx, rejected, model.RequestRejected)

	metrics.RequestsPlanned.WithLabelValues("assigned").Add(float64(len(planned)))
	metrics.RequestsPlanned.WithLabelValues("unassigned").Add(float64(len(sol.Unassigned)))
	metrics.RequestsPlanned.WithLabelValues("rejected").Add(float64(len(rejected)))
}

// PlansIndexHandler handles GET /v1/plans.
func (s *Server) PlansIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListPlans(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PlanByIDHandler handles GET /v1/plans/{id}.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), id)
	if err == store.ErrNotFound {
		writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// SolverConfigHandler handles GET /v1/solver/config.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.Engine
	writeJSON(w, http.StatusOK, model.SolverSettings{
		SpeedKmh:          cfg.SpeedKmh,
		ServiceMin:        cfg.ServiceMin,
		LatenessMarginMin: cfg.LatenessMarginMin,
		MaxWaitMin:        cfg.MaxWaitMin,
		ShiftStart:        engine.MinuteToClock(cfg.ShiftStartMin),
		ShiftEnd:          engine.MinuteToClock(cfg.ShiftEndMin),
		MaxShiftMin:       cfg.MaxShiftMin,
		MaxRideFactor:     cfg.MaxRideFactor,
		MaxRideBufferMin:  cfg.MaxRideBufferMin,
		TimeBudgetMs:      int(cfg.TimeBudget / time.Millisecond),
		MaxIterations:     cfg.MaxIterations,
		Seed:              cfg.Seed,
		Vehicles:          len(s.Fleet),
	})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store.
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
