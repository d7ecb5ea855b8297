package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"coffee_roaster/internal/models"
	"coffee_roaster/internal/service"
	"coffee_roaster/internal/telemetry"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockRecording struct {
	roasts   map[string]models.Roast
	ticks    map[string][]models.Tick
	err      error
	ticksErr error

	lastLimit int
}

func (m *mockRecording) Begin(ctx context.Context, r models.Roast) (models.Roast, error) {
	return r, m.err
}
func (m *mockRecording) Finish(ctx context.Context, id, exportPath string) error {
	return m.err
}
func (m *mockRecording) Get(ctx context.Context, id string) (*models.Roast, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.roasts[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
func (m *mockRecording) List(ctx context.Context, limit int) ([]models.Roast, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Roast, 0, len(m.roasts))
	for _, r := range m.roasts {
		out = append(out, r)
	}
	return out, nil
}
func (m *mockRecording) Ticks(ctx context.Context, id string) ([]models.Tick, error) {
	return m.ticks[id], m.ticksErr
}

type mockMonitoring struct {
	state models.Tick
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.Tick, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp     []models.RoastEvent
	err      error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.RoastEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockRelay struct {
	mu       sync.Mutex
	drain    []telemetry.Message
	lastMax  int
	live     chan telemetry.Message
	released bool
}

func (m *mockRelay) Drain(max int) []telemetry.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMax = max
	return m.drain
}

func (m *mockRelay) Listen(buffer int) (<-chan telemetry.Message, func()) {
	return m.live, func() {
		m.mu.Lock()
		m.released = true
		m.mu.Unlock()
	}
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
