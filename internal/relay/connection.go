package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goevery/relay/internal/auth"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type CloseReason string

const (
	CloseReasonSuperseded     CloseReason = "superseded"
	CloseReasonUnresponsive   CloseReason = "unresponsive"
	CloseReasonBackpressure   CloseReason = "backpressure"
	CloseReasonTransportError CloseReason = "transport_error"
	CloseReasonClientClosed   CloseReason = "client_closed"
	CloseReasonShutdown       CloseReason = "shutdown"
)

// Transport is the send/close capability behind a Connection. Ping and Close
// must be safe to call concurrently with the connection's writer.
type Transport interface {
	Ping() error
	Close(reason CloseReason) error
}

// Connection is one live channel to one authenticated user. Outbound
// envelopes are queued and drained by the transport's writer.
type Connection struct {
	Id     string
	UserId string
	Role   auth.Role

	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once

	alive atomic.Bool

	transport Transport
}

func NewConnection(authentication *auth.Authentication, transport Transport, queueSize int) *Connection {
	if queueSize <= 0 {
		queueSize = 1
	}

	connection := &Connection{
		Id:        gonanoid.Must(),
		UserId:    authentication.UserId,
		Role:      authentication.Role,
		send:      make(chan Envelope, queueSize),
		done:      make(chan struct{}),
		transport: transport,
	}
	connection.alive.Store(true)

	return connection
}

// Deliver enqueues env without blocking. It reports false when the
// connection is closed or its queue is full.
func (c *Connection) Deliver(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Connection) Outbound() <-chan Envelope {
	return c.send
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// MarkAlive records a liveness acknowledgment from the peer.
func (c *Connection) MarkAlive() {
	c.alive.Store(true)
}

func (c *Connection) IsAlive() bool {
	return c.alive.Load()
}

// probe consumes the liveness flag. It reports false when no acknowledgment
// arrived since the previous probe.
func (c *Connection) probe() bool {
	return c.alive.Swap(false)
}

func (c *Connection) Ping() error {
	return c.transport.Ping()
}

// Close releases the transport. Only the first call reaches the transport;
// later calls return nil.
func (c *Connection) Close(reason CloseReason) error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close(reason)
	})

	return err
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
