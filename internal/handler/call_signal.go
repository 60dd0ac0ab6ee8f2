package handler

import (
	"context"

	"github.com/goevery/relay/internal/relay"
)

type CallSignalHandlerInterface interface {
	Handle(ctx context.Context, req relay.CallSignal) (Outcome, error)
}

type CallSignalHandler struct {
	userIdValidator *UserIdValidator
	relay           Relay
}

func NewCallSignalHandler(
	userIdValidator *UserIdValidator,
	relay Relay,
) *CallSignalHandler {
	return &CallSignalHandler{
		userIdValidator,
		relay,
	}
}

// Handle forwards a call signal with fromId set to the authenticated sender.
// Nothing is echoed to the sender.
func (h *CallSignalHandler) Handle(ctx context.Context, req relay.CallSignal) (Outcome, error) {
	err := h.userIdValidator.Validate(req.ToId)
	if err != nil {
		return Outcome{}, err
	}

	sender, err := senderFromContext(ctx)
	if err != nil {
		return Outcome{}, err
	}

	signal := relay.CallSignal{
		FromId:     sender.UserId,
		SignalType: req.SignalType,
		Payload:    req.Payload,
		Timestamp:  req.Timestamp,
	}

	return Outcome{
		Delivered: h.relay.SendToUser(req.ToId, signal),
	}, nil
}
