package server

import (
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/handler"
	"github.com/goevery/relay/internal/relay"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "test-secret"
	testAPIKey = "test-api-key"
)

func signToken(t *testing.T, userId string) string {
	t.Helper()

	return signTokenWithRole(t, userId, auth.RoleUser)
}

func signTokenWithRole(t *testing.T, userId string, role auth.Role) string {
	t.Helper()

	claims := jwt.MapClaims{
		"userId": userId,
		"role":   string(role),
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	return tokenString
}

type nopTransport struct {
	mu     sync.Mutex
	closed bool
}

func (t *nopTransport) Ping() error {
	return nil
}

func (t *nopTransport) Close(relay.CloseReason) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	return nil
}

func newTestRouter(service *relay.Service) *Router {
	userIdValidator := handler.NewUserIdValidator()

	return NewRouter(
		zap.NewNop(),
		handler.NewMessageHandler(userIdValidator, service),
		handler.NewCallSignalHandler(userIdValidator, service),
		handler.NewTypingHandler(userIdValidator, service),
	)
}

type testStack struct {
	service *relay.Service
	monitor *relay.HeartbeatMonitor
	url     url.URL
}

func newTestStack(t *testing.T, options WebSocketOptions) *testStack {
	t.Helper()

	logger := zap.NewNop()
	service := relay.NewService(logger, relay.NewRegistry(), nil)
	authenticator := auth.NewAuthenticator(testSecret, []string{testAPIKey}, "")
	upgrader := &websocket.Upgrader{
		CheckOrigin: NewOriginChecker(nil).Check,
	}

	wsServer := NewWebSocketServer(
		logger,
		upgrader,
		authenticator,
		handler.NewUserIdValidator(),
		service,
		newTestRouter(service),
		options,
	)

	mainRouter := mux.NewRouter()
	wsServer.Register(mainRouter)

	server := httptest.NewServer(mainRouter)
	t.Cleanup(func() {
		service.Close()
		server.Close()
	})

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	return &testStack{
		service: service,
		monitor: relay.NewHeartbeatMonitor(logger, service, time.Hour),
		url:     *u,
	}
}

func (s *testStack) dialURL(token string) string {
	u := s.url
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}

	return u.String()
}
