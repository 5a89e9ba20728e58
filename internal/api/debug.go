package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"medroute/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"ADDR":                 os.Getenv("ADDR"),
			"FLEET_FILE":           os.Getenv("FLEET_FILE"),
			"GEOCODER_URL":         os.Getenv("GEOCODER_URL"),
			"WEBHOOK_MAX_ATTEMPTS": os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
			"HAS_DATABASE_URL":     os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":        os.Getenv("REDIS_URL") != "",
			"vehicles":             len(s.Fleet),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
