package server

import (
	"context"
	"errors"

	"github.com/goevery/relay/internal/handler"
	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/metrics"
	"github.com/goevery/relay/internal/relay"
	"go.uber.org/zap"
)

type Router struct {
	logger *zap.Logger

	messageHandler    handler.MessageHandlerInterface
	callSignalHandler handler.CallSignalHandlerInterface
	typingHandler     handler.TypingHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	messageHandler handler.MessageHandlerInterface,
	callSignalHandler handler.CallSignalHandlerInterface,
	typingHandler handler.TypingHandlerInterface,
) *Router {
	return &Router{
		logger,
		messageHandler,
		callSignalHandler,
		typingHandler,
	}
}

// Route decodes one inbound frame and dispatches it. Errors are logged and
// never reported back to the sender.
func (r *Router) Route(ctx context.Context, data []byte) {
	env, err := relay.DecodeEnvelope(data)
	if err != nil {
		r.logError(ctx, "", err)
		metrics.Events.WithLabelValues("unknown", outcomeOf(err)).Inc()

		return
	}

	kind := string(env.Kind())

	outcome, err := r.Handle(ctx, env)
	if err != nil {
		r.logError(ctx, kind, err)
		metrics.Events.WithLabelValues(kind, outcomeOf(err)).Inc()

		return
	}

	if outcome.Delivered {
		metrics.Events.WithLabelValues(kind, metrics.OutcomeDelivered).Inc()
	} else {
		metrics.Events.WithLabelValues(kind, metrics.OutcomeRecipientOffline).Inc()
	}
}

func (r *Router) Handle(ctx context.Context, env relay.Envelope) (handler.Outcome, error) {
	switch e := env.(type) {
	case relay.Message:
		return r.messageHandler.Handle(ctx, e)
	case relay.CallSignal:
		return r.callSignalHandler.Handle(ctx, e)
	case relay.Typing:
		return r.typingHandler.Handle(ctx, e)
	default:
		return handler.Outcome{},
			ierr.New(ierr.ErrorCodeNotFound, errors.New("unknown event kind: "+string(env.Kind())))
	}
}

func (r *Router) logError(ctx context.Context, kind string, err error) {
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("code", string(ierr.CodeOf(err))),
		zap.Error(err),
	}

	if conn, ok := relay.ConnectionFromContext(ctx); ok {
		fields = append(fields,
			zap.String("userId", conn.UserId),
			zap.String("connectionId", conn.Id))
	}

	switch ierr.CodeOf(err) {
	case ierr.ErrorCodeInternal:
		r.logger.Error("failed to route envelope", fields...)
	default:
		r.logger.Info("discarded inbound envelope", fields...)
	}
}

func outcomeOf(err error) string {
	switch ierr.CodeOf(err) {
	case ierr.ErrorCodeInvalidArgument:
		return metrics.OutcomeMalformed
	case ierr.ErrorCodeNotFound:
		return metrics.OutcomeUnknownKind
	case ierr.ErrorCodeResourceExhausted:
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeFailed
	}
}
