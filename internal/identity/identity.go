package identity

import (
	"context"
	"errors"
)

// ErrIdentityFailure marks failures talking to the external identity
// provider, distinct from the caller's own store failures.
var ErrIdentityFailure = errors.New("external identity failure")

// ErrInvalidCredentials is returned on bad tokens or bad logins.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Subject is the identity provider's view of a signed-in user: an opaque,
// stable subject id plus optional profile fields.
type Subject struct {
	Id    string
	Name  string
	Email string
}

// Provider is the contract consumed by the directory: verify a bearer
// token to a subject, and delete the identity when the account goes away.
type Provider interface {
	Verify(ctx context.Context, token string) (Subject, error)
	DeleteIdentity(ctx context.Context, subjectId string) error
}

// Authenticator extends Provider with first-party credential flows. The
// built-in dev provider implements it; hosted providers handle these
// flows out-of-band and only need Provider.
type Authenticator interface {
	Provider
	Register(ctx context.Context, name, email, password string) (Subject, string, error)
	Login(ctx context.Context, email, password string) (Subject, string, error)
}
