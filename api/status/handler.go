package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/controller"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// Provider is the controller surface the API reads from.
type Provider interface {
	State() model.OperatingState
	Health() (map[string]float64, float64)
	Transitions() []controller.TransitionRecord
}

// Snapshot is the response body of GET /api/status.
type Snapshot struct {
	State           model.OperatingState `json:"state"`
	OverallHealth   float64              `json:"overall_health"`
	ComponentHealth map[string]float64   `json:"component_health"`
	Time            time.Time            `json:"time"`
}

// NewStatusHandler returns an HTTP handler exposing the controller state via
// GET /api/status. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewStatusHandler(p Provider, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		health, overall := p.Health()
		snap := Snapshot{
			State:           p.State(),
			OverallHealth:   overall,
			ComponentHealth: health,
			Time:            time.Now().UTC(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewTransitionsHandler returns an HTTP handler exposing the operating-state
// history via GET /api/transitions. The optional "since" query parameter
// (RFC 3339) drops older records.
func NewTransitionsHandler(p Provider, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		recs := p.Transitions()
		if s := r.URL.Query().Get("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid since parameter", http.StatusBadRequest)
				return
			}
			filtered := recs[:0:0]
			for _, rec := range recs {
				if !rec.Time.Before(t) {
					filtered = append(filtered, rec)
				}
			}
			recs = filtered
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(recs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func authorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}
