package engine

import "context"

// Authenticator validates a session's credentials when it is initialized.
// No check is performed unless one is installed with WithAuthenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) error {
	return f(ctx, token)
}
