package engine

// DiagKind classifies a per-request or per-run diagnostic.
type DiagKind string

const (
	// DiagValidation marks a malformed or unresolvable request. The request
	// is excluded from the node set and reported, never retried.
	DiagValidation DiagKind = "validation"
	// DiagInfeasibleRequest marks a request no configured vehicle can ever
	// serve (permanent), as opposed to a transient capacity shortfall.
	DiagInfeasibleRequest DiagKind = "infeasible_request"
	// DiagUnassigned marks a request left out of this solution for
	// transient reasons (capacity or time contention).
	DiagUnassigned DiagKind = "unassigned"
	// DiagSolverTimeout flags a best-effort solution returned because the
	// search exhausted its time budget.
	DiagSolverTimeout DiagKind = "solver_timeout_partial"
	// DiagNoFeasibleSolution flags a run in which zero requests could be
	// served.
	DiagNoFeasibleSolution DiagKind = "no_feasible_solution"
)

// Diagnostic is a structured, caller-facing note attached to a run.
// Diagnostics accumulate; a bad row never aborts the batch.
type Diagnostic struct {
	Kind      DiagKind `json:"kind"`
	RequestID string   `json:"requestId,omitempty"`
	Patient   string   `json:"patient,omitempty"`
	Detail    string   `json:"detail"`
}
