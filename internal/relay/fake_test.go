package relay

import (
	"errors"
	"sync"

	"github.com/goevery/relay/internal/auth"
)

type fakeTransport struct {
	mu      sync.Mutex
	pings   int
	closes  []CloseReason
	pingErr error
}

func (t *fakeTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pings++

	return t.pingErr
}

func (t *fakeTransport) Close(reason CloseReason) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closes = append(t.closes, reason)
	if len(t.closes) > 1 {
		return errors.New("transport closed twice")
	}

	return nil
}

func (t *fakeTransport) Pings() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.pings
}

func (t *fakeTransport) Closes() []CloseReason {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]CloseReason(nil), t.closes...)
}

func newTestConnection(userId string, queueSize int) (*Connection, *fakeTransport) {
	transport := &fakeTransport{}
	conn := NewConnection(&auth.Authentication{UserId: userId, Role: auth.RoleUser}, transport, queueSize)

	return conn, transport
}

type recordingObserver struct {
	mu        sync.Mutex
	online    []string
	offline   []string
	refreshes [][]string
}

func (o *recordingObserver) Online(userId string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.online = append(o.online, userId)
}

func (o *recordingObserver) Offline(userId string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.offline = append(o.offline, userId)
}

func (o *recordingObserver) Refresh(userIds []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.refreshes = append(o.refreshes, userIds)
}

func drain(conn *Connection) []Envelope {
	var envelopes []Envelope

	for {
		select {
		case env := <-conn.Outbound():
			envelopes = append(envelopes, env)
		default:
			return envelopes
		}
	}
}
