package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestService(t *testing.T) {
	logger := zap.NewNop()

	t.Run("admit closes the superseded connection", func(t *testing.T) {
		observer := &recordingObserver{}
		service := NewService(logger, NewRegistry(), observer)
		first, firstTransport := newTestConnection("user-a", 4)
		second, secondTransport := newTestConnection("user-a", 4)

		service.Admit(first)
		service.Admit(second)

		assert.Equal(t, []CloseReason{CloseReasonSuperseded}, firstTransport.Closes())
		assert.Empty(t, secondTransport.Closes())
		assert.True(t, first.IsClosed())
		assert.Equal(t, []string{"user-a"}, service.OnlineUsers())
		assert.Equal(t, []string{"user-a", "user-a"}, observer.online)

		// the stale connection's reader exiting must not evict the fresh one
		assert.False(t, service.Disconnect(first, CloseReasonClientClosed))
		assert.True(t, service.IsUserOnline("user-a"))
		assert.Empty(t, observer.offline)
	})

	t.Run("send to online user", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		conn, _ := newTestConnection("user-a", 4)
		service.Admit(conn)

		delivered := service.SendToUser("user-a", Notice{Code: "info", Message: "hello"})

		assert.True(t, delivered)
		envelopes := drain(conn)
		require.Len(t, envelopes, 1)
		assert.Equal(t, Notice{Code: "info", Message: "hello"}, envelopes[0])
	})

	t.Run("send to offline user", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)

		assert.False(t, service.SendToUser("nobody", Notice{}))
	})

	t.Run("full queue disconnects the connection", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		conn, transport := newTestConnection("user-a", 1)
		service.Admit(conn)

		assert.True(t, service.SendToUser("user-a", Notice{}))
		assert.False(t, service.SendToUser("user-a", Notice{}))

		assert.Equal(t, []CloseReason{CloseReasonBackpressure}, transport.Closes())
		assert.False(t, service.IsUserOnline("user-a"))
	})

	t.Run("broadcast skips the excluded user", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		a, _ := newTestConnection("user-a", 4)
		b, _ := newTestConnection("user-b", 4)
		c, _ := newTestConnection("user-c", 4)
		service.Admit(a)
		service.Admit(b)
		service.Admit(c)

		service.Broadcast(Notice{Code: "maintenance"}, "user-b")

		assert.Len(t, drain(a), 1)
		assert.Empty(t, drain(b))
		assert.Len(t, drain(c), 1)
	})

	t.Run("broadcast without exclusion reaches everyone", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		a, _ := newTestConnection("user-a", 4)
		b, _ := newTestConnection("user-b", 4)
		service.Admit(a)
		service.Admit(b)

		service.Broadcast(Notice{Code: "maintenance"}, "")

		assert.Len(t, drain(a), 1)
		assert.Len(t, drain(b), 1)
	})

	t.Run("disconnect is idempotent", func(t *testing.T) {
		observer := &recordingObserver{}
		service := NewService(logger, NewRegistry(), observer)
		conn, transport := newTestConnection("user-a", 4)
		service.Admit(conn)

		assert.True(t, service.Disconnect(conn, CloseReasonClientClosed))
		assert.False(t, service.Disconnect(conn, CloseReasonTransportError))
		service.Evict(conn)

		assert.Equal(t, []CloseReason{CloseReasonClientClosed}, transport.Closes())
		assert.Equal(t, []string{"user-a"}, observer.offline)
		assert.Empty(t, service.OnlineUsers())
	})

	t.Run("closed connections receive nothing", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		conn, _ := newTestConnection("user-a", 4)
		service.Admit(conn)
		service.Disconnect(conn, CloseReasonClientClosed)

		assert.False(t, service.SendToConnection(conn, Notice{}))
		assert.False(t, service.IsUserOnline("user-a"))
	})

	t.Run("close shuts every connection down", func(t *testing.T) {
		service := NewService(logger, NewRegistry(), nil)
		a, aTransport := newTestConnection("user-a", 4)
		b, bTransport := newTestConnection("user-b", 4)
		service.Admit(a)
		service.Admit(b)

		service.Close()

		assert.Equal(t, []CloseReason{CloseReasonShutdown}, aTransport.Closes())
		assert.Equal(t, []CloseReason{CloseReasonShutdown}, bTransport.Closes())
		assert.Empty(t, service.OnlineUsers())
	})
}
