package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/goevery/relay/internal/ierr"
	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleService Role = "service"
)

// Claims mirrors the tokens issued by the REST login flow. The user id travels
// in a dedicated claim; sub is accepted as a fallback.
type Claims struct {
	jwt.RegisteredClaims
	UserId string `json:"userId,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

type Authentication struct {
	UserId string
	Role   Role
}

func (a *Authentication) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleService
}

func (a *Authentication) IsService() bool {
	return a.Role == RoleService
}

type contextKey string

const authenticationKey contextKey = "authentication"

func WithAuthentication(ctx context.Context, auth *Authentication) context.Context {
	return context.WithValue(ctx, authenticationKey, auth)
}

func AuthenticationFromContext(ctx context.Context) (*Authentication, bool) {
	auth, ok := ctx.Value(authenticationKey).(*Authentication)
	return auth, ok
}

type Authenticator struct {
	secret    []byte
	apiKeys   []string
	jwtParser *jwt.Parser
}

// NewAuthenticator builds an HS256 validator. The audience is only enforced
// when non-empty.
func NewAuthenticator(secret string, apiKeys []string, audience string) *Authenticator {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}

	return &Authenticator{
		secret:    []byte(secret),
		apiKeys:   apiKeys,
		jwtParser: jwt.NewParser(options...),
	}
}

func (a *Authenticator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("unexpected signing method"))
	}
	return a.secret, nil
}

func (a *Authenticator) AuthenticateJWT(tokenString string) (*Authentication, error) {
	if tokenString == "" {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing token"))
	}

	claims := Claims{}

	_, err := a.jwtParser.ParseWithClaims(tokenString, &claims, a.keyFunc)
	if err != nil {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, err)
	}

	userId := claims.UserId
	if userId == "" {
		userId, _ = claims.GetSubject()
	}
	if userId == "" {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid user id claim"))
	}

	role := claims.Role
	switch role {
	case RoleUser, RoleAdmin:
	case "":
		role = RoleUser
	default:
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid role claim"))
	}

	return &Authentication{
		UserId: userId,
		Role:   role,
	}, nil
}

func (a *Authenticator) AuthenticateAPIKey(apiKey string) (*Authentication, error) {
	for _, key := range a.apiKeys {
		if key == "" {
			continue
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			return &Authentication{
				UserId: "api",
				Role:   RoleService,
			}, nil
		}
	}

	return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid api key"))
}
