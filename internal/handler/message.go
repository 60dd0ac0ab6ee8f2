package handler

import (
	"context"

	"github.com/goevery/relay/internal/relay"
)

type MessageHandlerInterface interface {
	Handle(ctx context.Context, req relay.Message) (Outcome, error)
}

type MessageHandler struct {
	userIdValidator *UserIdValidator
	relay           Relay
}

func NewMessageHandler(
	userIdValidator *UserIdValidator,
	relay Relay,
) *MessageHandler {
	return &MessageHandler{
		userIdValidator,
		relay,
	}
}

// Handle forwards a chat message to its receiver and always echoes it back to
// the sender as message-sent, whether or not the receiver is online.
func (h *MessageHandler) Handle(ctx context.Context, req relay.Message) (Outcome, error) {
	sender, err := senderFromContext(ctx)
	if err != nil {
		return Outcome{}, err
	}

	fields := req.ChatFields
	fields.SenderId = sender.UserId

	h.relay.SendToConnection(sender, relay.MessageSent{ChatFields: fields})

	err = h.userIdValidator.Validate(req.ReceiverId)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Delivered: h.relay.SendToUser(req.ReceiverId, relay.Message{ChatFields: fields}),
	}, nil
}
