package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/config"
	domain "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/email"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/health"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/outbox"
	prometheusHandler "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/prometheus"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/stream"
	userHandler "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/middleware"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository/sqlstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/service/notification"
	userService "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/service/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/auth"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/eventstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/validator"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/worker"
)

type recordingTransport struct {
	mu         sync.Mutex
	recipients []string
}

func (t *recordingTransport) Send(_ context.Context, recipient, _, _, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recipients = append(t.recipients, recipient)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type RouterTestSuite struct {
	suite.Suite
	engine    *gin.Engine
	jwt       auth.JWTService
	transport *recordingTransport
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	ctx := context.Background()
	db, err := sqlstore.NewDB(ctx, config.DatabaseConfig{Driver: sqlstore.DriverSQLite, DSN: ":memory:"})
	s.Require().NoError(err)
	s.T().Cleanup(func() { db.Close() })
	s.Require().NoError(sqlstore.Migrate(ctx, db))

	registry := event.NewRegistry()
	upcasters := event.NewUpcasterChain()
	s.Require().NoError(domain.RegisterEvents(registry, upcasters))

	log := logger.Nop()
	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics("router_test", promRegistry)

	base := sqlstore.NewBaseRepository(db)
	outboxRepo := sqlstore.NewOutboxRepository(base)
	store := eventstore.New(sqlstore.NewEventRepository(base), base, event.NewCodec(registry, upcasters))

	reactor := notification.NewService(outboxRepo, email.NewRenderer(), validator.New(), []string{"admin@example.com"}, log)
	users := userService.NewService(store, base, reactor, log)

	s.transport = &recordingTransport{}
	processor := worker.NewOutboxProcessor(outboxRepo, s.transport,
		worker.OutboxProcessorConfig{BatchSize: 10, PollInterval: time.Second}, log, m)

	s.jwt, err = auth.NewJWTService("router-test-secret-0123456789", "eventstore")
	s.Require().NoError(err)

	s.engine = NewRouter(middleware.NewAuthMiddleware(s.jwt), Handlers{
		Health:  health.NewHandler(db),
		Metrics: prometheusHandler.New("router_test", promRegistry),
		Streams: stream.NewHandler(store),
		Outbox:  outbox.NewHandler(outboxRepo, processor),
		Users:   userHandler.NewHandler(users),
	}, log).Setup()
}

func (s *RouterTestSuite) do(method, path, body, token string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *RouterTestSuite) TestRegisterApproveAndDeliver() {
	w, env := s.do(http.MethodPost, "/api/v1/users",
		`{"email":"ada@example.com","full_name":"Ada Lovelace"}`, "", middleware.HeaderXRequestID, "req-42")
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Equal("1.0", w.Header().Get("X-API-Version"))

	var created struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &created))

	w, env = s.do(http.MethodGet, "/api/v1/streams/"+created.ID, "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var streamBody struct {
		Events []eventstore.Envelope `json:"events"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &streamBody))
	s.Require().Len(streamBody.Events, 1)
	s.Equal(domain.EventUserCreated, streamBody.Events[0].EventName)
	s.Equal("req-42", streamBody.Events[0].Metadata[event.MetaCorrelationID])

	w, _ = s.do(http.MethodPost, "/api/v1/users/"+created.ID+"/approve", "", "")
	s.Equal(http.StatusUnauthorized, w.Code)

	token, err := s.jwt.GenerateToken("ops@example.com", time.Minute)
	s.Require().NoError(err)
	w, _ = s.do(http.MethodPost, "/api/v1/users/"+created.ID+"/approve", "", token)
	s.Require().Equal(http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/api/v1/streams/"+created.ID+"?from=1", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(env.Data, &streamBody))
	s.Require().Len(streamBody.Events, 1)
	s.Equal("ops@example.com", streamBody.Events[0].Metadata[event.MetaActorID])

	w, env = s.do(http.MethodGet, "/api/v1/outbox", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var pending []json.RawMessage
	s.Require().NoError(json.Unmarshal(env.Data, &pending))
	s.Len(pending, 3)

	w, env = s.do(http.MethodPost, "/api/v1/outbox/process", "", token)
	s.Require().Equal(http.StatusOK, w.Code)
	var result worker.BatchResult
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Equal(worker.BatchResult{Fetched: 3, Sent: 3}, result)
	s.ElementsMatch([]string{"ada@example.com", "admin@example.com", "ada@example.com"}, s.transport.recipients)

	w, env = s.do(http.MethodGet, "/api/v1/outbox/stats", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), `"SENT":3`)
}

func (s *RouterTestSuite) TestApproveTwiceConflicts() {
	token, err := s.jwt.GenerateToken("ops@example.com", time.Minute)
	s.Require().NoError(err)

	_, env := s.do(http.MethodPost, "/api/v1/users", `{"email":"bob@example.com","full_name":"Bob"}`, "")
	var created struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &created))

	w, _ := s.do(http.MethodPost, "/api/v1/users/"+created.ID+"/approve", "", token)
	s.Require().Equal(http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, "/api/v1/users/"+created.ID+"/approve", "", token)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *RouterTestSuite) TestOperationalRoutes() {
	w, _ := s.do(http.MethodGet, "/health/ready", "", "")
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/users/missing", "", "")
	s.Equal(http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "router_test_http_requests_total")
}
