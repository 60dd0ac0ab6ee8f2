package handler

import (
	"context"
	"errors"

	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/persistence"
	"github.com/goevery/relay/internal/relay"
)

type SendMessageRequest struct {
	ReceiverId string                  `json:"receiverId"`
	Content    string                  `json:"content"`
	Type       persistence.MessageType `json:"type"`
	FileName   string                  `json:"fileName,omitempty"`
	FileSize   string                  `json:"fileSize,omitempty"`
	MimeType   string                  `json:"mimeType,omitempty"`
}

type SendMessageResponse struct {
	persistence.Message
	Delivered bool `json:"delivered"`
}

type SendMessageHandlerInterface interface {
	Handle(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
}

type SendMessageHandler struct {
	userIdValidator   *UserIdValidator
	persistenceEngine persistence.Engine
	relay             Relay
}

func NewSendMessageHandler(
	userIdValidator *UserIdValidator,
	persistenceEngine persistence.Engine,
	relay Relay,
) *SendMessageHandler {
	return &SendMessageHandler{
		userIdValidator,
		persistenceEngine,
		relay,
	}
}

// Handle stores the message and then relays it to the receiver. The two
// steps are not transactional: a stored message may go undelivered, in which
// case the receiver picks it up from its conversation history.
func (h *SendMessageHandler) Handle(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return SendMessageResponse{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("user not authenticated"))
	}

	err := h.userIdValidator.Validate(req.ReceiverId)
	if err != nil {
		return SendMessageResponse{}, err
	}

	if req.Content == "" {
		return SendMessageResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("content is required"))
	}

	if !req.Type.Valid() {
		return SendMessageResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid message type"))
	}

	message, err := h.persistenceEngine.Save(ctx, persistence.SaveRequest{
		SenderId:   authentication.UserId,
		ReceiverId: req.ReceiverId,
		Content:    req.Content,
		Type:       req.Type,
		FileName:   req.FileName,
		FileSize:   req.FileSize,
		MimeType:   req.MimeType,
	})
	if err != nil {
		return SendMessageResponse{}, err
	}

	fields := relay.ChatFields{
		Id:          message.Id,
		SenderId:    message.SenderId,
		Content:     message.Content,
		MessageType: string(message.Type),
		FileName:    message.FileName,
		FileSize:    message.FileSize,
		MimeType:    message.MimeType,
		Timestamp:   message.Timestamp,
	}

	delivered := h.relay.SendToUser(message.ReceiverId, relay.Message{ChatFields: fields})
	h.relay.SendToUser(message.SenderId, relay.MessageSent{ChatFields: fields})

	return SendMessageResponse{
		Message:   message,
		Delivered: delivered,
	}, nil
}
