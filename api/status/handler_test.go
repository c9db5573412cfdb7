package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/controller"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

type stubProvider struct {
	state model.OperatingState
	recs  []controller.TransitionRecord
}

func (s *stubProvider) State() model.OperatingState { return s.state }
func (s *stubProvider) Health() (map[string]float64, float64) {
	return map[string]float64{"em1": 0.9}, 0.9
}
func (s *stubProvider) Transitions() []controller.TransitionRecord { return s.recs }

func TestStatusHandler_AuthAndBody(t *testing.T) {
	p := &stubProvider{state: model.StateNormal}
	h := NewStatusHandler(p, "tok")

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.State != model.StateNormal || snap.OverallHealth != 0.9 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	// unauthorized
	req = httptest.NewRequest("GET", "/api/status", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestTransitionsHandler_SinceFilter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &stubProvider{recs: []controller.TransitionRecord{
		{From: model.StateStartup, To: model.StateNormal, Time: base},
		{From: model.StateNormal, To: model.StateFault, Time: base.Add(time.Hour)},
	}}
	h := NewTransitionsHandler(p, "")

	req := httptest.NewRequest("GET", "/api/transitions?since="+base.Add(30*time.Minute).Format(time.RFC3339), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var recs []controller.TransitionRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 1 || recs[0].To != model.StateFault {
		t.Fatalf("filter wrong: %+v", recs)
	}

	req = httptest.NewRequest("GET", "/api/transitions?since=bogus", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}
