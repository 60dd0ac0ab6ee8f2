package handler

import (
	"context"
	"errors"

	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/persistence"
)

const (
	defaultConversationLimit = 100
	maxConversationLimit     = 500
)

type ConversationRequest struct {
	UserId string
	Limit  int64
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type HistoryHandler struct {
	userIdValidator   *UserIdValidator
	persistenceEngine persistence.Engine
}

func NewHistoryHandler(
	userIdValidator *UserIdValidator,
	persistenceEngine persistence.Engine,
) *HistoryHandler {
	return &HistoryHandler{
		userIdValidator,
		persistenceEngine,
	}
}

func (h *HistoryHandler) Conversation(ctx context.Context, req ConversationRequest) ([]persistence.Message, error) {
	authentication, err := h.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	err = h.userIdValidator.Validate(req.UserId)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	limit = min(limit, maxConversationLimit)

	messages, err := h.persistenceEngine.Conversation(ctx, authentication.UserId, req.UserId, limit)
	if err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []persistence.Message{}
	}

	return messages, nil
}

func (h *HistoryHandler) MarkConversationRead(ctx context.Context, otherUserId string) (MarkReadResponse, error) {
	authentication, err := h.authenticated(ctx)
	if err != nil {
		return MarkReadResponse{}, err
	}

	err = h.userIdValidator.Validate(otherUserId)
	if err != nil {
		return MarkReadResponse{}, err
	}

	updated, err := h.persistenceEngine.MarkConversationRead(ctx, authentication.UserId, otherUserId)
	if err != nil {
		return MarkReadResponse{}, err
	}

	return MarkReadResponse{
		Updated: updated,
	}, nil
}

func (h *HistoryHandler) UnreadCount(ctx context.Context) (UnreadCountResponse, error) {
	authentication, err := h.authenticated(ctx)
	if err != nil {
		return UnreadCountResponse{}, err
	}

	count, err := h.persistenceEngine.UnreadCount(ctx, authentication.UserId)
	if err != nil {
		return UnreadCountResponse{}, err
	}

	return UnreadCountResponse{
		Count: count,
	}, nil
}

func (h *HistoryHandler) authenticated(ctx context.Context) (*auth.Authentication, error) {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("user not authenticated"))
	}

	return authentication, nil
}
