package analysis

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/pkg/idgen"
	"github.com/KirkDiggler/pcg-director/internal/testutils"
)

type ClientTestSuite struct {
	suite.Suite

	ctx context.Context
	bus events.EventBus

	mu       sync.Mutex
	received []receivedParams

	logs        *logBuffer
	previousLog *slog.Logger
}

// logBuffer collects log output from request goroutines
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type receivedParams struct {
	requestID string
	params    *entities.MapParams
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bus = events.NewBus()
	s.mu.Lock()
	s.received = nil
	s.mu.Unlock()

	s.logs = &logBuffer{}
	s.previousLog = slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func (s *ClientTestSuite) TearDownTest() {
	slog.SetDefault(s.previousLog)
}

func (s *ClientTestSuite) newClient(cfg *Config) Client {
	if cfg.EventBus == nil {
		cfg.EventBus = s.bus
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = idgen.NewSequential(idgen.PrefixRequest)
	}

	c, err := New(cfg)
	s.Require().NoError(err)
	s.T().Cleanup(func() {
		_ = c.Close()
	})

	c.OnMapParamsReceived(func(_ context.Context, requestID string, params *entities.MapParams) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.received = append(s.received, receivedParams{requestID: requestID, params: params})
	})
	return c
}

func (s *ClientTestSuite) broadcasts() []receivedParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]receivedParams(nil), s.received...)
}

func (s *ClientTestSuite) waitForRequests(fake *testutils.FakeAnalysisService, n int) {
	s.Require().Eventually(func() bool {
		return len(fake.Requests()) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *ClientTestSuite) TestScenarioRoundTrip() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	c := s.newClient(&Config{URL: fake.URL(), PlayerID: "player-1"})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Require().True(result.OK(), result.ErrorMessage())
	s.Equal(OutcomeSuccess, result.Outcome)
	s.Equal(http.StatusOK, result.StatusCode)
	s.NotEmpty(result.RequestID)

	requests := fake.Requests()
	s.Require().Len(requests, 1)
	s.Equal(http.MethodPost, requests[0].Method)
	s.Equal("/api/openai", requests[0].Path)
	s.Equal("application/json", requests[0].ContentType)
	s.Equal("player-1", requests[0].PlayerID)
	s.Equal(testutils.ScenarioRequestBody, requests[0].Body)

	got := s.broadcasts()
	s.Require().Len(got, 1)
	s.Equal(result.RequestID, got[0].requestID)

	params := got[0].params
	s.Equal("tense", params.Analysis)
	s.InDelta(1.2, params.DifficultyMultiplier, 1e-9)
	s.InDelta(0.7, params.EnemySpawnRate, 1e-9)
	s.InDelta(0.6, params.MapComplexity, 1e-9)
	s.Equal("Aggro.High", params.EnemyAggression.Key)
	s.Equal("Obstacle.Dense", params.ObstacleType.Key)
	s.Equal("Atmosphere.Dark_Foggy", params.Atmosphere.Key)
	s.False(params.HasUnresolvedTags())
}

func (s *ClientTestSuite) TestListenersReceiveCopies() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	c := s.newClient(&Config{URL: fake.URL()})

	var other *entities.MapParams
	c.OnMapParamsReceived(func(_ context.Context, _ string, params *entities.MapParams) {
		params.Analysis = "mutated"
		other = params
	})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())
	s.Require().True(result.OK(), result.ErrorMessage())

	got := s.broadcasts()
	s.Require().Len(got, 1)
	s.Require().NotNil(other)
	s.Equal("tense", got[0].params.Analysis)
	s.Equal("tense", result.Params.Analysis)
}

func (s *ClientTestSuite) TestStatusErrorDoesNotBroadcast() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusInternalServerError, `{"error":"internal server error"}`)
	c := s.newClient(&Config{URL: fake.URL()})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeStatusError, result.Outcome)
	s.Equal(http.StatusInternalServerError, result.StatusCode)
	s.Nil(result.Params)
	s.True(errors.IsInternal(result.Err))
	s.Equal(http.StatusInternalServerError, errors.GetMeta(result.Err)["status_code"])
	s.Empty(s.broadcasts())

	logs := s.logs.String()
	s.Contains(logs, `level=ERROR msg="Analysis service returned error status"`)
	s.Contains(logs, "status_code=500")
}

func (s *ClientTestSuite) TestNonOKSuccessStatusIsRejected() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusAccepted, testutils.ScenarioReply)
	c := s.newClient(&Config{URL: fake.URL()})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeStatusError, result.Outcome)
	s.Equal(errors.CodeFailedPrecondition, errors.GetCode(result.Err))
	s.Empty(s.broadcasts())
}

func (s *ClientTestSuite) TestMalformedOuterDocument() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, `not json`)
	c := s.newClient(&Config{URL: fake.URL()})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeParseError, result.Outcome)
	s.Nil(result.Params)
	s.True(errors.IsDataLoss(result.Err))
	s.Empty(s.broadcasts())
}

func (s *ClientTestSuite) TestMalformedAnswerFallsBackToDefaults() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, `{"status":"ok","answer":"{broken"}`)
	c := s.newClient(&Config{URL: fake.URL()})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeParseError, result.Outcome)
	s.Require().NotNil(result.Params)
	s.Equal(entities.DefaultMapParams(), result.Params)
	s.Empty(s.broadcasts())
	s.Contains(s.logs.String(), `level=WARN msg="Failed to parse analysis answer, using defaults"`)
}

func (s *ClientTestSuite) TestUnknownTagStillBroadcasts() {
	reply := `{"status":"ok","answer":"{\"analysis\":\"x\",\"enemyAggression\":\"Aggro.Extreme\",\"obstacleType\":\"Cover\",\"atmosphere\":\"Atmosphere.Red_Alarm\"}"}`
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, reply)
	c := s.newClient(&Config{URL: fake.URL()})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Require().True(result.OK(), result.ErrorMessage())
	s.False(result.Params.EnemyAggression.IsValid())
	s.Equal("Obstacle.Cover", result.Params.ObstacleType.Key)
	s.Equal("Atmosphere.Red_Alarm", result.Params.Atmosphere.Key)
	s.Equal([]string{"Aggro.Extreme"}, result.Params.UnresolvedTags)
	s.InDelta(entities.DefaultDifficultyMultiplier, result.Params.DifficultyMultiplier, 1e-9)
	s.Len(s.broadcasts(), 1)
}

func (s *ClientTestSuite) TestTransportError() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	url := fake.URL()
	fake.Close()

	c := s.newClient(&Config{URL: url})
	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeTransportError, result.Outcome)
	s.True(errors.IsUnavailable(result.Err))
	s.Empty(s.broadcasts())
}

func (s *ClientTestSuite) TestTimeout() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	fake.Hold()
	c := s.newClient(&Config{URL: fake.URL(), Timeout: 50 * time.Millisecond})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeTransportError, result.Outcome)
	s.Equal(errors.CodeDeadlineExceeded, errors.GetCode(result.Err))
	s.Empty(s.broadcasts())
}

func (s *ClientTestSuite) TestInvalidPlayerState() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	c := s.newClient(&Config{URL: fake.URL()})

	testCases := []struct {
		name  string
		state *entities.PlayerState
	}{
		{name: "nil state", state: nil},
		{name: "NaN health", state: &entities.PlayerState{Health: math.NaN()}},
		{name: "infinite kill time", state: &entities.PlayerState{AverageKillTime: math.Inf(1)}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			req := c.RequestMapAnalysis(s.ctx, tc.state)

			select {
			case <-req.Done():
			default:
				s.Fail("invalid request should complete immediately")
			}
			result := req.Result()
			s.Equal(OutcomeInvalidRequest, result.Outcome)
			s.True(errors.IsInvalidArgument(result.Err))
			s.Equal(req.ID(), result.RequestID)
		})
	}

	s.Empty(fake.Requests())
	s.Empty(s.broadcasts())
}

func (s *ClientTestSuite) TestCancel() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	fake.Hold()
	c := s.newClient(&Config{URL: fake.URL()})

	req := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.waitForRequests(fake, 1)
	s.True(req.Valid())

	req.Cancel()
	fake.Release()

	result := req.Result()
	s.Equal(OutcomeCanceled, result.Outcome)
	s.True(errors.IsCanceled(result.Err))
	s.False(req.Valid())
	s.Empty(s.broadcasts())

	// cancel after completion is a no-op
	req.Cancel()
}

func (s *ClientTestSuite) TestTimeoutWhileReadingBody() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"status":"ok",`)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	s.T().Cleanup(server.Close)
	c := s.newClient(&Config{URL: server.URL, Timeout: 50 * time.Millisecond})

	result := c.Analyze(s.ctx, testutils.ScenarioPlayerState())

	s.Equal(OutcomeTransportError, result.Outcome)
	s.Equal(http.StatusOK, result.StatusCode)
	s.Equal(errors.CodeDeadlineExceeded, errors.GetCode(result.Err))
	s.Empty(s.broadcasts())
}

func (s *ClientTestSuite) TestCloseReachesRequestWaitingToDeliver() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	c := s.newClient(&Config{URL: fake.URL()})

	delivering := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c.OnMapParamsReceived(func(_ context.Context, _ string, _ *entities.MapParams) {
		once.Do(func() {
			close(delivering)
			<-release
		})
	})

	first := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	<-delivering

	// second finishes its round trip while first still holds delivery
	second := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.waitForRequests(fake, 2)

	closed := make(chan error, 1)
	go func() {
		closed <- c.Close()
	}()

	s.Eventually(func() bool {
		return !second.Valid()
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	s.Require().NoError(<-closed)

	s.Equal(OutcomeSuccess, first.Result().Outcome)
	s.Equal(OutcomeCanceled, second.Result().Outcome)

	got := s.broadcasts()
	s.Require().Len(got, 1)
	s.Equal(first.ID(), got[0].requestID)
}

func (s *ClientTestSuite) TestCloseCancelsInflight() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	fake.Hold()
	c := s.newClient(&Config{URL: fake.URL()})

	first := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	second := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.waitForRequests(fake, 2)

	s.Require().NoError(c.Close())

	s.Equal(OutcomeCanceled, first.Result().Outcome)
	s.Equal(OutcomeCanceled, second.Result().Outcome)
	s.Empty(s.broadcasts())

	after := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.Equal(OutcomeCanceled, after.Result().Outcome)
	s.Len(fake.Requests(), 2)

	s.NoError(c.Close())
}

func (s *ClientTestSuite) TestWaitGivesUpWithoutCanceling() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	fake.Hold()
	c := s.newClient(&Config{URL: fake.URL()})

	req := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.waitForRequests(fake, 1)

	waitCtx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	result, err := req.Wait(waitCtx)
	s.Nil(result)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.True(req.Valid())

	fake.Release()
	result, err = req.Wait(s.ctx)
	s.Require().NoError(err)
	s.True(result.OK(), result.ErrorMessage())
	s.Len(s.broadcasts(), 1)
}

func (s *ClientTestSuite) TestOverlappingRequestsRaceByDefault() {
	server := newOrderedServer(s.T())
	c := s.newClient(&Config{URL: server.URL})

	first := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.Require().Eventually(func() bool { return server.count.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	second := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())

	s.True(second.Result().OK())
	close(server.releaseFirst)
	s.True(first.Result().OK())

	got := s.broadcasts()
	s.Require().Len(got, 2)
	s.Equal(second.ID(), got[0].requestID)
	s.Equal(first.ID(), got[1].requestID)
}

func (s *ClientTestSuite) TestDropStale() {
	server := newOrderedServer(s.T())
	c := s.newClient(&Config{URL: server.URL, DropStale: true})

	first := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())
	s.Require().Eventually(func() bool { return server.count.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	second := c.RequestMapAnalysis(s.ctx, testutils.ScenarioPlayerState())

	s.True(second.Result().OK())
	close(server.releaseFirst)

	result := first.Result()
	s.Equal(OutcomeStale, result.Outcome)
	s.True(errors.IsAborted(result.Err))
	s.NotNil(result.Params)

	got := s.broadcasts()
	s.Require().Len(got, 1)
	s.Equal(second.ID(), got[0].requestID)
}

func (s *ClientTestSuite) TestUnsubscribe() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	c := s.newClient(&Config{URL: fake.URL()})

	var calls atomic.Int32
	id := c.OnMapParamsReceived(func(context.Context, string, *entities.MapParams) {
		calls.Add(1)
	})

	s.True(c.Analyze(s.ctx, testutils.ScenarioPlayerState()).OK())
	s.Equal(int32(1), calls.Load())

	s.Require().NoError(c.Unsubscribe(id))
	s.True(c.Analyze(s.ctx, testutils.ScenarioPlayerState()).OK())
	s.Equal(int32(1), calls.Load())
	s.Len(s.broadcasts(), 2)
}

func (s *ClientTestSuite) TestSharedBusIsolatesClients() {
	fake := testutils.NewFakeAnalysisService(s.T(), http.StatusOK, testutils.ScenarioReply)
	first := s.newClient(&Config{URL: fake.URL()})

	other, err := New(&Config{URL: fake.URL(), EventBus: s.bus})
	s.Require().NoError(err)
	defer func() {
		_ = other.Close()
	}()

	var otherCalls atomic.Int32
	other.OnMapParamsReceived(func(context.Context, string, *entities.MapParams) {
		otherCalls.Add(1)
	})

	s.True(first.Analyze(s.ctx, testutils.ScenarioPlayerState()).OK())
	s.Equal(int32(0), otherCalls.Load())
}

func (s *ClientTestSuite) TestConfigValidate() {
	s.Run("nil config", func() {
		var cfg *Config
		s.Error(cfg.Validate())
	})

	s.Run("defaults", func() {
		cfg := &Config{}
		s.Require().NoError(cfg.Validate())
		s.Equal(DefaultURL, cfg.URL)
		s.NotNil(cfg.HTTPClient)
		s.NotNil(cfg.Registry)
		s.NotNil(cfg.EventBus)
		s.NotNil(cfg.IDGenerator)
	})

	s.Run("bad url", func() {
		_, err := New(&Config{URL: "ftp://example.com"})
		s.Error(err)
		s.True(errors.IsInvalidArgument(err))
	})

	s.Run("negative timeout", func() {
		cfg := &Config{Timeout: -time.Second}
		s.Error(cfg.Validate())
	})
}

func TestOutcomeString(t *testing.T) {
	suite.Run(t, new(outcomeSuite))
}

type outcomeSuite struct {
	suite.Suite
}

func (s *outcomeSuite) TestNames() {
	s.Equal("success", OutcomeSuccess.String())
	s.Equal("status_error", OutcomeStatusError.String())
	s.Equal("stale", OutcomeStale.String())
	s.Equal("unknown", Outcome(99).String())

	text, err := OutcomeParseError.MarshalText()
	s.Require().NoError(err)
	s.Equal("parse_error", string(text))
}

// orderedServer holds the first request until releaseFirst is closed and
// answers later ones immediately
type orderedServer struct {
	*httptest.Server
	count        atomic.Int32
	releaseFirst chan struct{}
}

func newOrderedServer(t *testing.T) *orderedServer {
	t.Helper()

	o := &orderedServer{releaseFirst: make(chan struct{})}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if o.count.Add(1) == 1 {
			select {
			case <-o.releaseFirst:
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, testutils.ScenarioReply)
	}))
	t.Cleanup(o.Close)
	return o
}
