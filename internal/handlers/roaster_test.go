package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coffee_roaster/internal/models"
	"coffee_roaster/internal/service"
	"coffee_roaster/internal/telemetry"
)

func TestRoasterHandlers_RequireToken(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}})
	for _, path := range []string{"/api/v1/roaster/state", "/api/v1/roasts", "/api/v1/messages"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d, want 401", path, w.Code)
		}
	}
}

func TestGetState(t *testing.T) {
	cases := []struct {
		name string
		mon  *mockMonitoring
		want int
	}{
		{"ok", &mockMonitoring{state: models.Tick{Snapshot: models.Snapshot{BeanTemp: 187, Roasting: true}}}, http.StatusOK},
		{"failure", &mockMonitoring{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Monitoring: tc.mon})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/roaster/state"))
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d", w.Code, tc.want)
			}
			if tc.want != http.StatusOK {
				return
			}
			var got models.Tick
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.BeanTemp != 187 || !got.Roasting {
				t.Fatalf("unexpected state: %+v", got)
			}
		})
	}
}

func TestRoasts_ListGetAndTicks(t *testing.T) {
	started := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	rec := &mockRecording{
		roasts: map[string]models.Roast{"r1": {ID: "r1", Name: "42", Automatic: true, StartedAt: started}},
		ticks: map[string][]models.Tick{"r1": {
			{RoastID: "r1", Timestamp: started, Snapshot: models.Snapshot{ElapsedSecs: 0, BeanTemp: 150}},
			{RoastID: "r1", Timestamp: started.Add(time.Second), Snapshot: models.Snapshot{ElapsedSecs: 1, BeanTemp: 149}},
		}},
	}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Recording: rec})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/roasts?limit=10"))
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", w.Code, w.Body.String())
	}
	if rec.lastLimit != 10 {
		t.Fatalf("limit forwarded = %d, want 10", rec.lastLimit)
	}
	var list struct {
		Count  int            `json:"count"`
		Roasts []models.Roast `json:"roasts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 1 || list.Roasts[0].Name != "42" {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/roasts/r1"))
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/roasts/r1/ticks"))
	if w.Code != http.StatusOK {
		t.Fatalf("ticks status=%d", w.Code)
	}
	var ticks struct {
		Count int           `json:"count"`
		Ticks []models.Tick `json:"ticks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ticks)
	if ticks.Count != 2 || ticks.Ticks[1].BeanTemp != 149 {
		t.Fatalf("unexpected ticks: %+v", ticks)
	}
}

func TestRoasts_Errors(t *testing.T) {
	cases := []struct {
		name string
		rec  *mockRecording
		path string
		want int
	}{
		{"unknown roast", &mockRecording{}, "/api/v1/roasts/nope", http.StatusNotFound},
		{"unknown roast ticks", &mockRecording{}, "/api/v1/roasts/nope/ticks", http.StatusNotFound},
		{"bad limit", &mockRecording{}, "/api/v1/roasts?limit=0", http.StatusBadRequest},
		{"limit too large", &mockRecording{}, "/api/v1/roasts?limit=100000", http.StatusBadRequest},
		{"list failure", &mockRecording{err: errors.New("db down")}, "/api/v1/roasts", http.StatusInternalServerError},
		{"ticks failure", &mockRecording{
			roasts:   map[string]models.Roast{"r1": {ID: "r1"}},
			ticksErr: errors.New("db down"),
		}, "/api/v1/roasts/r1/ticks", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Recording: tc.rec})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, authedRequest(http.MethodGet, tc.path))
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestGetMessages(t *testing.T) {
	relay := &mockRelay{drain: []telemetry.Message{
		{Channel: "torrador/status", Data: json.RawMessage(`"00:00:01 GRAO: 150"`)},
	}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Relay: relay})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/messages?max=5"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if relay.lastMax != 5 {
		t.Fatalf("max forwarded = %d, want 5", relay.lastMax)
	}
	var out []telemetry.Message
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].Channel != "torrador/status" {
		t.Fatalf("unexpected messages: %+v", out)
	}

	relay.drain = nil
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/messages"))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty drain should render [], got %s", w.Body.String())
	}
	if relay.lastMax != service.MaxDrain {
		t.Fatalf("default max = %d, want %d", relay.lastMax, service.MaxDrain)
	}
}

func TestIndexAndHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/ws") {
		t.Fatalf("index: status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("index content type = %q", ct)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: status=%d", w.Code)
	}
}
