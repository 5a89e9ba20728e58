package api

import (
	"net/http"

	"medroute/internal/ingest"
)

// RequestsImportHandler handles POST /v1/requests/import with a CSV body.
// Parseable rows are stored as pending requests; rejected rows come back
// with their line numbers so the dispatcher can fix the export.
func (s *Server) RequestsImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reqs, rowErrs, err := ingest.ParseCSV(r.Body)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
		return
	}
	errs := make([]string, 0, len(rowErrs))
	for _, re := range rowErrs {
		errs = append(errs, re.Error())
	}
	if len(reqs) == 0 {
		writeProblem(w, http.StatusBadRequest, "No importable rows", joinErrs(errs), r.URL.Path)
		return
	}
	created, err := s.Store.CreateRequests(r.Context(), reqs)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create requests failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"items":   created,
		"created": len(created),
		"errors":  errs,
	})
}

func joinErrs(errs []string) string {
	if len(errs) == 0 {
		return "empty file"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}
