package handler

import (
	"context"
	"errors"
	"regexp"

	"github.com/goevery/relay/internal/ierr"
	"github.com/goevery/relay/internal/relay"
)

type UserIdValidator struct {
	userIdRegex *regexp.Regexp
}

func NewUserIdValidator() *UserIdValidator {
	return &UserIdValidator{
		userIdRegex: regexp.MustCompile(`^[\w.@:-]{1,128}$`),
	}
}

func (v *UserIdValidator) Validate(userId string) error {
	valid := v.userIdRegex.MatchString(userId)
	if !valid {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid user id"))
	}

	return nil
}

// Relay is the part of the relay service the handlers deliver through.
type Relay interface {
	SendToUser(userId string, env relay.Envelope) bool
	SendToConnection(conn *relay.Connection, env relay.Envelope) bool
}

type Outcome struct {
	Delivered bool `json:"delivered"`
}

func senderFromContext(ctx context.Context) (*relay.Connection, error) {
	connection, ok := relay.ConnectionFromContext(ctx)
	if !ok {
		return nil, errors.New("connection not found in context")
	}

	return connection, nil
}
