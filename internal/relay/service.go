package relay

import (
	"github.com/goevery/relay/internal/metrics"
	"go.uber.org/zap"
)

// PresenceObserver is told about registry changes. Implementations must not
// block.
type PresenceObserver interface {
	Online(userId string)
	Offline(userId string)
	Refresh(userIds []string)
}

type NopPresenceObserver struct{}

func (NopPresenceObserver) Online(string)    {}
func (NopPresenceObserver) Offline(string)   {}
func (NopPresenceObserver) Refresh([]string) {}

// Service is the entry point to the relay for handlers and the REST layer.
//
// Delivery is at-most-once and fire-and-forget: an envelope addressed to a
// user with no live connection is dropped, and nothing is queued for later.
// Callers needing durability must persist before relaying.
type Service struct {
	logger   *zap.Logger
	registry *Registry
	observer PresenceObserver
}

func NewService(
	logger *zap.Logger,
	registry *Registry,
	observer PresenceObserver,
) *Service {
	if observer == nil {
		observer = NopPresenceObserver{}
	}

	return &Service{
		logger,
		registry,
		observer,
	}
}

// Admit registers a freshly authenticated connection, closing the connection
// it supersedes after the swap.
func (s *Service) Admit(conn *Connection) {
	superseded := s.registry.Register(conn)
	metrics.Connections.Set(float64(s.registry.Len()))

	s.observer.Online(conn.UserId)

	s.logger.Info("connection admitted",
		zap.String("userId", conn.UserId),
		zap.String("connectionId", conn.Id))

	if superseded == nil {
		return
	}

	s.logger.Info("closing superseded connection",
		zap.String("userId", superseded.UserId),
		zap.String("connectionId", superseded.Id))

	metrics.Disconnects.WithLabelValues(string(CloseReasonSuperseded)).Inc()

	if err := superseded.Close(CloseReasonSuperseded); err != nil {
		s.logger.Debug("failed to close superseded connection",
			zap.String("connectionId", superseded.Id),
			zap.Error(err))
	}
}

// Disconnect deregisters conn and releases its transport. Safe to call any
// number of times from any goroutine.
func (s *Service) Disconnect(conn *Connection, reason CloseReason) bool {
	removed := s.registry.Unregister(conn)

	if err := conn.Close(reason); err != nil {
		s.logger.Debug("failed to close connection transport",
			zap.String("connectionId", conn.Id),
			zap.Error(err))
	}

	if !removed {
		return false
	}

	metrics.Connections.Set(float64(s.registry.Len()))
	metrics.Disconnects.WithLabelValues(string(reason)).Inc()

	s.observer.Offline(conn.UserId)

	s.logger.Info("connection closed",
		zap.String("userId", conn.UserId),
		zap.String("connectionId", conn.Id),
		zap.String("reason", string(reason)))

	return true
}

func (s *Service) Evict(conn *Connection) {
	if s.Disconnect(conn, CloseReasonUnresponsive) {
		metrics.Evictions.Inc()
	}
}

// SendToUser enqueues env on the user's live connection. It reports whether
// such a connection existed and the send was issued; it never waits for the
// peer.
func (s *Service) SendToUser(userId string, env Envelope) bool {
	conn, ok := s.registry.Get(userId)
	if !ok {
		return false
	}

	return s.SendToConnection(conn, env)
}

// SendToConnection enqueues env on conn. A connection whose queue is full is
// disconnected.
func (s *Service) SendToConnection(conn *Connection, env Envelope) bool {
	if conn.Deliver(env) {
		return true
	}

	if conn.IsClosed() {
		return false
	}

	s.logger.Warn("connection send queue is full, closing connection",
		zap.String("userId", conn.UserId),
		zap.String("connectionId", conn.Id))

	metrics.DroppedSends.Inc()
	s.Disconnect(conn, CloseReasonBackpressure)

	return false
}

// Broadcast sends env to every live connection except excludeUserId's.
func (s *Service) Broadcast(env Envelope, excludeUserId string) {
	for _, conn := range s.registry.Snapshot() {
		if excludeUserId != "" && conn.UserId == excludeUserId {
			continue
		}

		s.SendToConnection(conn, env)
	}
}

func (s *Service) IsUserOnline(userId string) bool {
	conn, ok := s.registry.Get(userId)

	return ok && !conn.IsClosed()
}

// OnlineUsers returns a snapshot of registered user ids. A user may
// disconnect right after the snapshot is taken.
func (s *Service) OnlineUsers() []string {
	return s.registry.UserIds()
}

// Close disconnects every registered connection. The heartbeat monitor must
// already be stopped.
func (s *Service) Close() {
	connections := s.registry.Snapshot()

	for _, conn := range connections {
		s.Disconnect(conn, CloseReasonShutdown)
	}

	s.logger.Info("relay closed", zap.Int("connections", len(connections)))
}
