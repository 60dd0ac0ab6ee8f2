package handler

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/relay"
)

// PushRequest addresses one user when UserId is set and every connected user
// (minus ExcludeUserId) otherwise.
type PushRequest struct {
	UserId        string          `json:"userId,omitempty"`
	ExcludeUserId string          `json:"excludeUserId,omitempty"`
	Envelope      json.RawMessage `json:"envelope"`
}

type PushResponse struct {
	Delivered bool `json:"delivered"`
}

type PushRelay interface {
	SendToUser(userId string, env relay.Envelope) bool
	Broadcast(env relay.Envelope, excludeUserId string)
}

type PushHandlerInterface interface {
	Handle(ctx context.Context, req PushRequest) (PushResponse, error)
}

type PushHandler struct {
	userIdValidator *UserIdValidator
	relay           PushRelay
}

func NewPushHandler(
	userIdValidator *UserIdValidator,
	relay PushRelay,
) *PushHandler {
	return &PushHandler{
		userIdValidator,
		relay,
	}
}

func (h *PushHandler) Handle(ctx context.Context, req PushRequest) (PushResponse, error) {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return PushResponse{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("caller not authenticated"))
	}

	if !authentication.IsService() {
		return PushResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("push requires a service credential"))
	}

	if len(req.Envelope) == 0 {
		return PushResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing envelope"))
	}

	env, err := relay.DecodeServerEnvelope(req.Envelope)
	if err != nil {
		return PushResponse{}, err
	}

	if req.UserId == "" {
		h.relay.Broadcast(env, req.ExcludeUserId)

		return PushResponse{
			Delivered: true,
		}, nil
	}

	err = h.userIdValidator.Validate(req.UserId)
	if err != nil {
		return PushResponse{}, err
	}

	return PushResponse{
		Delivered: h.relay.SendToUser(req.UserId, env),
	}, nil
}
