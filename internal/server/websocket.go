package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/handler"
	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/metrics"
	"github.com/goevery/relay/internal/relay"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultQueueSize      = 64
	defaultMaxMessageSize = 64 * 1024
)

type WebSocketOptions struct {
	WriteWait      time.Duration
	QueueSize      int
	MaxMessageSize int64
	// InboundRate is the sustained number of envelopes per second a single
	// connection may send. Zero disables the limit.
	InboundRate  float64
	InboundBurst int
}

func (o WebSocketOptions) withDefaults() WebSocketOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = 1
	}

	return o
}

type WebSocketServer struct {
	logger          *zap.Logger
	upgrader        *websocket.Upgrader
	authenticator   *auth.Authenticator
	userIdValidator *handler.UserIdValidator
	service         *relay.Service
	router          *Router
	options         WebSocketOptions
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	authenticator *auth.Authenticator,
	userIdValidator *handler.UserIdValidator,
	service *relay.Service,
	router *Router,
	options WebSocketOptions,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		authenticator,
		userIdValidator,
		service,
		router,
		options.withDefaults(),
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/ws", s.handle).Methods("GET")
}

func (s *WebSocketServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		metrics.Handshakes.WithLabelValues(metrics.HandshakeMissingToken).Inc()
		s.reject(conn, "Authentication required")

		return
	}

	authentication, err := s.authenticator.AuthenticateJWT(token)
	if err == nil {
		// Admitted user ids must be valid receiver ids.
		err = s.userIdValidator.Validate(authentication.UserId)
	}
	if err != nil {
		metrics.Handshakes.WithLabelValues(metrics.HandshakeInvalidToken).Inc()
		s.logger.Info("rejected websocket handshake", zap.Error(err))
		s.reject(conn, "Invalid token")

		return
	}

	metrics.Handshakes.WithLabelValues(metrics.HandshakeAccepted).Inc()

	transport := &websocketTransport{
		conn:      conn,
		writeWait: s.options.WriteWait,
	}
	connection := relay.NewConnection(authentication, transport, s.options.QueueSize)

	connection.Deliver(relay.Connected{UserId: connection.UserId})

	conn.SetReadLimit(s.options.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		connection.MarkAlive()
		return nil
	})

	s.service.Admit(connection)

	go s.writePump(connection, transport)

	ctx := auth.WithAuthentication(r.Context(), authentication)
	ctx = relay.WithConnection(ctx, connection)

	s.readPump(ctx, connection, conn)

	s.service.Disconnect(connection, relay.CloseReasonClientClosed)
}

func (s *WebSocketServer) reject(conn *websocket.Conn, text string) {
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, text)

	err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(s.options.WriteWait))
	if err != nil {
		s.logger.Debug("failed to write close frame", zap.Error(err))
	}

	_ = conn.Close()
}

// readPump processes inbound frames one at a time until the peer goes away
// or the connection is closed from the server side.
func (s *WebSocketServer) readPump(ctx context.Context, connection *relay.Connection, conn *websocket.Conn) {
	limit := rate.Inf
	if s.options.InboundRate > 0 {
		limit = rate.Limit(s.options.InboundRate)
	}
	limiter := rate.NewLimiter(limit, s.options.InboundBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) && !connection.IsClosed() {
				s.logger.Debug("websocket read failed",
					zap.String("userId", connection.UserId),
					zap.String("connectionId", connection.Id),
					zap.Error(err))
			}

			return
		}

		if !limiter.Allow() {
			s.logger.Info("discarded inbound envelope",
				zap.String("userId", connection.UserId),
				zap.String("connectionId", connection.Id),
				zap.String("code", string(ierr.ErrorCodeResourceExhausted)))
			metrics.Events.WithLabelValues("unknown", metrics.OutcomeRateLimited).Inc()

			continue
		}

		s.router.Route(ctx, data)
	}
}

func (s *WebSocketServer) writePump(connection *relay.Connection, transport *websocketTransport) {
	for {
		select {
		case <-connection.Done():
			return
		case env := <-connection.Outbound():
			data, err := relay.Encode(env)
			if err != nil {
				s.logger.Error("failed to encode envelope",
					zap.String("kind", string(env.Kind())),
					zap.Error(err))

				continue
			}

			err = transport.write(data)
			if err != nil {
				s.logger.Debug("websocket write failed",
					zap.String("userId", connection.UserId),
					zap.String("connectionId", connection.Id),
					zap.String("code", string(ierr.CodeOf(err))),
					zap.Error(err))

				s.service.Disconnect(connection, relay.CloseReasonTransportError)

				return
			}
		}
	}
}

// websocketTransport adapts a gorilla connection to relay.Transport. Data
// frames are written only by the write pump; Ping and Close use control
// frames, which gorilla allows concurrently with it.
type websocketTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

func (t *websocketTransport) write(data []byte) error {
	err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err == nil {
		err = t.conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		return ierr.New(ierr.ErrorCodeUnavailable, err)
	}

	return nil
}

func (t *websocketTransport) Ping() error {
	err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait))
	if err != nil {
		return ierr.New(ierr.ErrorCodeUnavailable, err)
	}

	return nil
}

func (t *websocketTransport) Close(reason relay.CloseReason) error {
	code, text, ok := closeFrame(reason)
	if ok {
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(t.writeWait),
		)
	}

	return t.conn.Close()
}

func closeFrame(reason relay.CloseReason) (int, string, bool) {
	switch reason {
	case relay.CloseReasonSuperseded:
		return websocket.CloseNormalClosure, "Superseded by a new connection", true
	case relay.CloseReasonShutdown:
		return websocket.CloseGoingAway, "Server shutting down", true
	case relay.CloseReasonBackpressure:
		return websocket.CloseTryAgainLater, "Send queue overflow", true
	default:
		return 0, "", false
	}
}
