package relay

import (
	"context"
	"time"

	"github.com/goevery/relay/internal/ierr"
	"go.uber.org/zap"
)

const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatMonitor probes every registered connection on a fixed interval.
// A connection that has not acknowledged the previous probe by the next sweep
// is evicted, so an unresponsive peer is dropped within two intervals.
type HeartbeatMonitor struct {
	logger   *zap.Logger
	service  *Service
	interval time.Duration
}

func NewHeartbeatMonitor(logger *zap.Logger, service *Service, interval time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	return &HeartbeatMonitor{
		logger,
		service,
		interval,
	}
}

// Run sweeps until ctx is cancelled.
func (m *HeartbeatMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("heartbeat monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")

			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs a single probe pass over the registry.
func (m *HeartbeatMonitor) Sweep() {
	connections := m.service.registry.Snapshot()
	survivors := make([]string, 0, len(connections))

	for _, conn := range connections {
		if !conn.probe() {
			m.logger.Info("evicting unresponsive connection",
				zap.String("userId", conn.UserId),
				zap.String("connectionId", conn.Id))

			m.service.Evict(conn)

			continue
		}

		if err := conn.Ping(); err != nil {
			m.logger.Warn("failed to send liveness probe",
				zap.String("userId", conn.UserId),
				zap.String("connectionId", conn.Id),
				zap.String("code", string(ierr.CodeOf(err))),
				zap.Error(err))

			m.service.Disconnect(conn, CloseReasonTransportError)

			continue
		}

		survivors = append(survivors, conn.UserId)
	}

	m.service.observer.Refresh(survivors)
}
