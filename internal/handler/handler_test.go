package handler

import (
	"context"
	"sync"

	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/relay"
	"go.uber.org/zap"
)

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

func newTestService() *relay.Service {
	return relay.NewService(zap.NewNop(), relay.NewRegistry(), nil)
}

func connect(service *relay.Service, userId string, role auth.Role) *relay.Connection {
	conn := relay.NewConnection(&auth.Authentication{UserId: userId, Role: role}, &nopTransport{}, 8)
	service.Admit(conn)

	return conn
}

func received(conn *relay.Connection) []relay.Envelope {
	var envelopes []relay.Envelope

	for {
		select {
		case env := <-conn.Outbound():
			envelopes = append(envelopes, env)
		default:
			return envelopes
		}
	}
}

func withSender(conn *relay.Connection) context.Context {
	return relay.WithConnection(context.Background(), conn)
}

func withAuthentication(userId string, role auth.Role) context.Context {
	return auth.WithAuthentication(context.Background(), &auth.Authentication{UserId: userId, Role: role})
}
