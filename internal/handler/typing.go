package handler

import (
	"context"

	"github.com/goevery/relay/internal/relay"
)

type TypingHandlerInterface interface {
	Handle(ctx context.Context, req relay.Typing) (Outcome, error)
}

type TypingHandler struct {
	userIdValidator *UserIdValidator
	relay           Relay
}

func NewTypingHandler(
	userIdValidator *UserIdValidator,
	relay Relay,
) *TypingHandler {
	return &TypingHandler{
		userIdValidator,
		relay,
	}
}

func (h *TypingHandler) Handle(ctx context.Context, req relay.Typing) (Outcome, error) {
	err := h.userIdValidator.Validate(req.ReceiverId)
	if err != nil {
		return Outcome{}, err
	}

	sender, err := senderFromContext(ctx)
	if err != nil {
		return Outcome{}, err
	}

	typing := relay.Typing{
		UserId:   sender.UserId,
		IsTyping: req.IsTyping,
	}

	return Outcome{
		Delivered: h.relay.SendToUser(req.ReceiverId, typing),
	}, nil
}
