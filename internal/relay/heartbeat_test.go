package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHeartbeatMonitor(t *testing.T) {
	logger := zap.NewNop()

	t.Run("connection missing two consecutive sweeps is evicted", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		monitor := NewHeartbeatMonitor(logger, service, time.Minute)
		conn, transport := newTestConnection("user-a", 4)
		service.Admit(conn)

		monitor.Sweep()
		assert.Equal(t, 1, transport.Pings())
		assert.True(t, service.IsUserOnline("user-a"))

		monitor.Sweep()
		assert.Equal(t, 1, transport.Pings())
		assert.False(t, service.IsUserOnline("user-a"))
		assert.NotContains(t, service.OnlineUsers(), "user-a")
		assert.Equal(t, []CloseReason{CloseReasonUnresponsive}, transport.Closes())
	})

	t.Run("acknowledgment between sweeps keeps the connection", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		monitor := NewHeartbeatMonitor(logger, service, time.Minute)
		conn, transport := newTestConnection("user-a", 4)
		service.Admit(conn)

		monitor.Sweep()
		conn.MarkAlive()
		monitor.Sweep()

		assert.True(t, service.IsUserOnline("user-a"))
		assert.Equal(t, 2, transport.Pings())

		monitor.Sweep()

		assert.False(t, service.IsUserOnline("user-a"))
	})

	t.Run("acknowledging every probe keeps the connection", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		monitor := NewHeartbeatMonitor(logger, service, time.Minute)
		conn, _ := newTestConnection("user-a", 4)
		service.Admit(conn)

		for range 5 {
			monitor.Sweep()
			conn.MarkAlive()
		}

		assert.True(t, service.IsUserOnline("user-a"))
	})

	t.Run("failed probe tears the connection down", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		monitor := NewHeartbeatMonitor(logger, service, time.Minute)
		conn, transport := newTestConnection("user-a", 4)
		transport.pingErr = errors.New("broken pipe")
		service.Admit(conn)

		monitor.Sweep()

		assert.False(t, service.IsUserOnline("user-a"))
		assert.Equal(t, []CloseReason{CloseReasonTransportError}, transport.Closes())
	})

	t.Run("survivors are refreshed", func(t *testing.T) {
		observer := &recordingObserver{}
		service := NewService(logger, NewRegistry(), observer)
		monitor := NewHeartbeatMonitor(logger, service, time.Minute)
		a, _ := newTestConnection("user-a", 4)
		service.Admit(a)

		monitor.Sweep()

		assert.Equal(t, [][]string{{"user-a"}}, observer.refreshes)
	})

	t.Run("eviction of a superseded connection spares the fresh one", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		stale, _ := newTestConnection("user-a", 4)
		fresh, freshTransport := newTestConnection("user-a", 4)
		service.Admit(stale)
		service.Admit(fresh)

		service.Evict(stale)

		assert.True(t, service.IsUserOnline("user-a"))
		assert.Empty(t, freshTransport.Closes())
	})

	t.Run("run stops when the context is cancelled", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		monitor := NewHeartbeatMonitor(logger, service, 5*time.Millisecond)
		conn, transport := newTestConnection("user-a", 4)
		service.Admit(conn)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- monitor.Run(ctx)
		}()

		assert.Eventually(t, func() bool {
			return !service.IsUserOnline("user-a")
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []CloseReason{CloseReasonUnresponsive}, transport.Closes())

		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("heartbeat monitor did not stop")
		}
	})
}
