package server

import (
	"testing"

	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/metrics"
	"github.com/goevery/relay/internal/relay"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouter_Route(t *testing.T) {
	service := relay.NewService(zap.NewNop(), relay.NewRegistry(), nil)
	router := newTestRouter(service)

	alice := relay.NewConnection(&auth.Authentication{UserId: "alice", Role: auth.RoleUser}, &nopTransport{}, 8)
	bob := relay.NewConnection(&auth.Authentication{UserId: "bob", Role: auth.RoleUser}, &nopTransport{}, 8)
	service.Admit(alice)
	service.Admit(bob)

	ctx := relay.WithConnection(t.Context(), alice)

	t.Run("routes a message", func(t *testing.T) {
		delivered := testutil.ToFloat64(metrics.Events.WithLabelValues("message", metrics.OutcomeDelivered))

		router.Route(ctx, []byte(`{"type":"message","receiverId":"bob","id":"m-1","content":"hi"}`))

		received := <-bob.Outbound()
		message, ok := received.(relay.Message)
		require.True(t, ok)
		assert.Equal(t, "alice", message.SenderId)
		assert.Empty(t, message.ReceiverId)

		echo := <-alice.Outbound()
		assert.Equal(t, relay.KindMessageSent, echo.Kind())

		assert.Equal(t, delivered+1, testutil.ToFloat64(metrics.Events.WithLabelValues("message", metrics.OutcomeDelivered)))
	})

	t.Run("counts offline recipients", func(t *testing.T) {
		offline := testutil.ToFloat64(metrics.Events.WithLabelValues("typing", metrics.OutcomeRecipientOffline))

		router.Route(ctx, []byte(`{"type":"typing","receiverId":"nobody","isTyping":true}`))

		assert.Empty(t, alice.Outbound())
		assert.Equal(t, offline+1, testutil.ToFloat64(metrics.Events.WithLabelValues("typing", metrics.OutcomeRecipientOffline)))
	})

	t.Run("discards malformed input", func(t *testing.T) {
		malformed := testutil.ToFloat64(metrics.Events.WithLabelValues("unknown", metrics.OutcomeMalformed))

		router.Route(ctx, []byte(`{"type":`))

		assert.Empty(t, alice.Outbound())
		assert.Empty(t, bob.Outbound())
		assert.Equal(t, malformed+1, testutil.ToFloat64(metrics.Events.WithLabelValues("unknown", metrics.OutcomeMalformed)))
	})

	t.Run("discards unknown kinds", func(t *testing.T) {
		unknown := testutil.ToFloat64(metrics.Events.WithLabelValues("unknown", metrics.OutcomeUnknownKind))

		router.Route(ctx, []byte(`{"type":"message-sent","id":"m-1"}`))

		assert.Empty(t, alice.Outbound())
		assert.Equal(t, unknown+1, testutil.ToFloat64(metrics.Events.WithLabelValues("unknown", metrics.OutcomeUnknownKind)))
	})

	t.Run("fails without a sender connection", func(t *testing.T) {
		failed := testutil.ToFloat64(metrics.Events.WithLabelValues("message", metrics.OutcomeFailed))

		router.Route(t.Context(), []byte(`{"type":"message","receiverId":"bob","content":"hi"}`))

		assert.Empty(t, bob.Outbound())
		assert.Equal(t, failed+1, testutil.ToFloat64(metrics.Events.WithLabelValues("message", metrics.OutcomeFailed)))
	})
}
