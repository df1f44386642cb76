package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidCredential is matched (using errors.Is) by a bad bearer token
var ErrInvalidCredential = errors.New("invalid bearer credential")

// CredentialError is returned when a bearer token cannot be verified.  It fails the whole operation.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string { return "invalid token: " + e.Err.Error() }

func (e *CredentialError) Unwrap() error { return e.Err }

func (e *CredentialError) Is(target error) bool { return target == ErrInvalidCredential }

// Extensions adds a code to the GraphQL error
func (e *CredentialError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "INVALID_TOKEN"}
}

// UserFinder is the part of the store that the gate needs
type UserFinder interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

// Gate decides who the current user is from the Authorization value of a request
type Gate struct {
	signer *Signer
	users  UserFinder
	log    *zap.Logger
}

func NewGate(signer *Signer, users UserFinder, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{signer: signer, users: users, log: log}
}

const bearer = "bearer "

// Context returns a context with the current user (if any).  A missing or non-bearer
// Authorization value means there is no current user; an invalid token is an error.
func (g *Gate) Context(ctx context.Context, authorization string) (context.Context, error) {
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return ctx, nil
	}
	claims, err := g.signer.Verify(strings.TrimSpace(authorization[len(bearer):]))
	if err != nil {
		g.log.Debug("bearer token rejected", zap.Error(err))
		return ctx, err
	}
	user, err := g.users.UserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		g.log.Debug("token for unknown user", zap.String("id", claims.UserID))
		return ctx, nil
	}
	if err != nil {
		return ctx, err
	}
	return WithUser(ctx, user), nil
}

type userKey struct{}

// WithUser returns a context with the user as the current user
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// CurrentUser returns the user added by WithUser or nil if there is none
func CurrentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey{}).(*model.User)
	return u
}
