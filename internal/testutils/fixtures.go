package testutils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/KirkDiggler/pcg-director/internal/entities"
)

// Canonical exchange used across tests
const (
	ScenarioRequestBody = `{"data":"{\"health\":45,\"killCount\":3,\"averageKillTime\":12.5,\"isDying\":false}"}`
	ScenarioAnswer      = `{"analysis":"tense","difficultyMultiplier":1.2,"enemySpawnRate":0.7,"mapComplexity":0.6,"enemyAggression":"Aggro.High","obstacleType":"Obstacle.Dense","atmosphere":"Atmosphere.Dark_Foggy"}`
	ScenarioReply       = `{"status":"ok","answer":"{\"analysis\":\"tense\",\"difficultyMultiplier\":1.2,\"enemySpawnRate\":0.7,\"mapComplexity\":0.6,\"enemyAggression\":\"Aggro.High\",\"obstacleType\":\"Obstacle.Dense\",\"atmosphere\":\"Atmosphere.Dark_Foggy\"}"}`
)

// ScenarioPlayerState returns the player state that encodes to
// ScenarioRequestBody
func ScenarioPlayerState() *entities.PlayerState {
	return &entities.PlayerState{
		Health:          45.0,
		KillCount:       3,
		AverageKillTime: 12.5,
		IsDying:         false,
	}
}

// CapturedRequest is what a fake analysis service saw
type CapturedRequest struct {
	Method      string
	Path        string
	ContentType string
	PlayerID    string
	Body        string
}

// FakeAnalysisService is an httptest server that replies with a fixed
// status and body and records every request
type FakeAnalysisService struct {
	*httptest.Server

	mu       sync.Mutex
	requests []CapturedRequest
	status   int
	body     string
	gate     chan struct{}
}

// NewFakeAnalysisService starts a fake service. It is closed when the test
// ends.
func NewFakeAnalysisService(t *testing.T, status int, body string) *FakeAnalysisService {
	t.Helper()

	f := &FakeAnalysisService{status: status, body: body}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(func() {
		f.Release()
		f.Close()
	})
	return f
}

// Hold makes the service block every reply until Release is called
func (f *FakeAnalysisService) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release lets held replies through
func (f *FakeAnalysisService) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Requests returns a copy of the captured requests
func (f *FakeAnalysisService) Requests() []CapturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CapturedRequest(nil), f.requests...)
}

// URL returns the analysis endpoint on the fake service
func (f *FakeAnalysisService) URL() string {
	return f.Server.URL + "/api/openai"
}

func (f *FakeAnalysisService) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, CapturedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		PlayerID:    r.Header.Get("X-Player-ID"),
		Body:        string(body),
	})
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.body)
}
